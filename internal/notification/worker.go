package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"bedlog-backend/internal/bed"
	"bedlog-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Subscriptions is where registered browsers are kept.
type Subscriptions interface {
	ListPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

// Recorder counts delivery outcomes. It may be nil.
type Recorder interface {
	IncPush(ok bool)
}

// Alert announces that a bed was taken out of service.
type Alert struct {
	BedID    string
	Label    string
	EditedBy string
}

// AlertFor builds the alert for a saved record.
func AlertFor(r bed.Record) Alert {
	return Alert{BedID: r.ID, Label: bed.EffectiveLabel(r), EditedBy: r.LastEditedBy}
}

type message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	BedID string `json:"bedId"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Alert
	subs    Subscriptions
	webpush *webpush.Options
	sender  NotificationSender
	rec     Recorder
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, subs Subscriptions, webpushOptions *webpush.Options, rec Recorder, log *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Alert, size*4),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		rec:     rec,
		log:     log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case a := <-wp.jobs:
			wp.sendAlert(ctx, a)
		case <-ctx.Done():
			wp.log.Debug("notification worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues an alert. Alerts are best effort: when the queue is full
// the alert is dropped rather than blocking the write that raised it.
func (wp *WorkerPool) Dispatch(a Alert) bool {
	select {
	case wp.jobs <- a:
		return true
	default:
		wp.log.Warn("notification queue full, dropping alert", zap.String("bed_id", a.BedID))
		return false
	}
}

func (wp *WorkerPool) sendAlert(ctx context.Context, a Alert) {
	subscriptions, err := wp.subs.ListPushSubscriptions(ctx)
	if err != nil {
		wp.log.Error("failed to load push subscriptions", zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(message{
		Title: "Bed out of service",
		Body:  fmt.Sprintf("%s moved to %s by %s.", a.Label, bed.OutOfServiceLocation, a.EditedBy),
		BedID: a.BedID,
	})
	if err != nil {
		wp.log.Error("failed to encode alert", zap.Error(err))
		return
	}

	wp.log.Info("sending out-of-service alerts",
		zap.String("bed_id", a.BedID), zap.Int("subscriptions", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.observe(false)
		wp.log.Warn("push delivery failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		wp.observe(false)
		wp.log.Info("push subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.subs.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
		return
	}
	wp.observe(resp.StatusCode < http.StatusBadRequest)
}

func (wp *WorkerPool) observe(ok bool) {
	if wp.rec != nil {
		wp.rec.IncPush(ok)
	}
}
