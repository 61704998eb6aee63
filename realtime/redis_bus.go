package realtime

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus over Redis pub/sub, the "shared cache" spec §4.11
// says the bus is backed by (the same Redis instance the session cache and
// job broker may use).
type RedisBus struct {
	rdb *redis.Client
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus wraps rdb as a Bus.
func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.rdb.Publish(ctx, channel, payload).Err()
}

func (b *RedisBus) PSubscribe(ctx context.Context, pattern string) (Subscription, error) {
	pubsub := b.rdb.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	return &redisSubscription{pubsub: pubsub, out: translate(pubsub)}, nil
}

func translate(pubsub *redis.PubSub) <-chan Message {
	out := make(chan Message)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			out <- Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}
		}
	}()
	return out
}

type redisSubscription struct {
	pubsub *redis.PubSub
	out    <-chan Message
}

func (s *redisSubscription) Messages() <-chan Message { return s.out }

func (s *redisSubscription) Close() error { return s.pubsub.Close() }

var _ Subscription = (*redisSubscription)(nil)
