package live

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"bedlog-backend/internal/bed"
)

// Source loads the bed collection in feed order (most recently edited first).
type Source interface {
	ListBeds(ctx context.Context) ([]bed.Record, error)
}

// Notifier tells other instances that the collection changed.
type Notifier interface {
	Publish(ctx context.Context) error
}

// Feed is the push-subscription contract: fn receives the full ordered
// snapshot on subscribe and after every change, onErr receives load
// failures. The returned func unsubscribes; it must not be called from
// inside fn or onErr.
type Feed interface {
	Subscribe(fn func([]bed.Record), onErr func(error)) (unsubscribe func())
}

// Hub fans the bed collection out to subscribers. Snapshots handed to
// subscribers are shared and must be treated as read-only.
type Hub struct {
	src      Source
	notifier Notifier
	log      *zap.Logger

	mu      sync.Mutex
	subs    map[int]*subscriber
	nextID  int
	latest  []bed.Record
	loaded  bool
	lastErr error

	// issued and published order concurrent refreshes so an older load
	// never overwrites a newer one.
	issued    uint64
	published uint64
}

// NewHub creates a hub over src. notifier may be nil.
func NewHub(src Source, notifier Notifier, log *zap.Logger) *Hub {
	return &Hub{
		src:      src,
		notifier: notifier,
		log:      log,
		subs:     make(map[int]*subscriber),
	}
}

// Subscribe registers fn and onErr. See Feed.
func (h *Hub) Subscribe(fn func([]bed.Record), onErr func(error)) func() {
	s := newSubscriber(fn, onErr)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = s
	needLoad := false
	switch {
	case h.loaded:
		s.offer(delivery{records: h.latest})
	case h.lastErr != nil:
		s.offer(delivery{err: h.lastErr})
	default:
		needLoad = true
	}
	h.mu.Unlock()

	if needLoad {
		go func() {
			if err := h.Refresh(context.Background()); err != nil {
				h.log.Warn("initial bed snapshot failed", zap.Error(err))
			}
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			s.stop()
		})
	}
}

// Refresh reloads the collection and publishes it to every subscriber.
func (h *Hub) Refresh(ctx context.Context) error {
	h.mu.Lock()
	h.issued++
	ticket := h.issued
	h.mu.Unlock()

	records, err := h.src.ListBeds(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if ticket < h.published {
		return nil
	}
	h.published = ticket
	if err != nil {
		h.lastErr = err
		for _, s := range h.subs {
			s.offer(delivery{err: err})
		}
		return err
	}
	h.latest, h.loaded, h.lastErr = records, true, nil
	for _, s := range h.subs {
		s.offer(delivery{records: records})
	}
	return nil
}

// Changed is called after a committed write: it republishes locally and
// tells other instances. Remote notification is best effort.
func (h *Hub) Changed(ctx context.Context) error {
	err := h.Refresh(ctx)
	if h.notifier != nil {
		if perr := h.notifier.Publish(ctx); perr != nil {
			h.log.Warn("failed to publish bed change", zap.Error(perr))
		}
	}
	return err
}

// Subscribers reports how many subscriptions are live.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

type delivery struct {
	records []bed.Record
	err     error
}

// subscriber delivers on its own goroutine through a one-slot mailbox, so
// a slow consumer only ever sees the newest snapshot.
type subscriber struct {
	fn    func([]bed.Record)
	onErr func(error)
	slot  chan delivery
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

func newSubscriber(fn func([]bed.Record), onErr func(error)) *subscriber {
	s := &subscriber{
		fn:    fn,
		onErr: onErr,
		slot:  make(chan delivery, 1),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *subscriber) offer(d delivery) {
	for {
		select {
		case s.slot <- d:
			return
		default:
			select {
			case <-s.slot:
			default:
			}
		}
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case d := <-s.slot:
			s.deliver(d)
		}
	}
}

func (s *subscriber) deliver(d delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if d.err != nil {
		if s.onErr != nil {
			s.onErr(d.err)
		}
		return
	}
	s.fn(d.records)
}

// stop waits for an in-flight callback, then guarantees no further ones.
func (s *subscriber) stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	close(s.done)
}
