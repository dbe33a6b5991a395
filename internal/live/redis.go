package live

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RedisNotifier shares "beds changed" events between instances over a
// redis pub/sub channel. The payload is the publishing instance id, so an
// instance ignores its own messages.
type RedisNotifier struct {
	client   *redis.Client
	channel  string
	instance string
	log      *zap.Logger
}

// NewRedisNotifier creates a notifier publishing on channel.
func NewRedisNotifier(client *redis.Client, channel string, log *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:   client,
		channel:  channel,
		instance: uuid.NewString(),
		log:      log,
	}
}

// Publish announces a local change.
func (n *RedisNotifier) Publish(ctx context.Context) error {
	return n.client.Publish(ctx, n.channel, n.instance).Err()
}

// Run refreshes hub whenever another instance announces a change. It
// returns when ctx is done.
func (n *RedisNotifier) Run(ctx context.Context, hub *Hub) {
	sub := n.client.Subscribe(ctx, n.channel)
	defer sub.Close()

	n.log.Info("listening for remote bed changes", zap.String("channel", n.channel))
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Payload == n.instance {
				continue
			}
			if err := hub.Refresh(ctx); err != nil {
				n.log.Warn("refresh after remote change failed", zap.Error(err))
			}
		}
	}
}
