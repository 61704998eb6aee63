package realtime

import (
	"context"
	"path"
	"sync"
)

// memSubBuffer bounds how many unconsumed messages a single-process
// MemoryBus subscription holds before Publish starts dropping for it;
// matches the "best-effort delivery" posture spec §5 assigns streaming
// channels.
const memSubBuffer = 64

// MemoryBus is an in-process Bus, grounded on the same synchronous
// fan-out-to-registered-subscribers shape as the teacher's event bus, but
// pattern-matched per channel (via path.Match) instead of type-switched
// per event. Useful for single-process deployments and tests; RedisBus is
// the cross-process implementation.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[*memSubscription]struct{}
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus returns an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[*memSubscription]struct{})}
}

func (b *MemoryBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if ok, _ := path.Match(sub.pattern, channel); !ok {
			continue
		}
		select {
		case sub.out <- Message{Channel: channel, Payload: payload}:
		default:
			// subscriber too slow to drain; drop rather than block the publisher.
		}
	}
	return nil
}

func (b *MemoryBus) PSubscribe(_ context.Context, pattern string) (Subscription, error) {
	sub := &memSubscription{bus: b, pattern: pattern, out: make(chan Message, memSubBuffer)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

type memSubscription struct {
	bus     *MemoryBus
	pattern string
	out     chan Message
	once    sync.Once
}

func (s *memSubscription) Messages() <-chan Message { return s.out }

func (s *memSubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.out)
	})
	return nil
}

var _ Subscription = (*memSubscription)(nil)
