// Package realtime implements the pub/sub fan-out that carries job status
// and streamed content from a worker to every subscribed client (spec
// §4.11): a Bus abstracts the underlying transport, a ConnectionManager
// tracks which user owns which open client and which job, and a
// subscriber loop bridges the two.
package realtime

import "context"

// Message is one payload delivered on a subscribed pattern, carrying the
// concrete channel name it arrived on (e.g. "job:<uuid>") so a listener
// can recover the job id without re-parsing the pattern.
type Message struct {
	Channel string
	Payload []byte
}

// Subscription is a live pattern subscription. Messages delivers payloads
// as they arrive; Close stops the subscription and releases the
// underlying transport resource. Safe to call Close more than once.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Bus is the collaborator interface for the realtime transport (spec §6):
// publish a payload on a named channel, or open a subscription over every
// channel matching a glob pattern (e.g. "job:*", "stream:*").
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	PSubscribe(ctx context.Context, pattern string) (Subscription, error)
}
