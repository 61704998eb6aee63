package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/telemetry"
)

// Subscriber is the long-lived task spec §4.11 describes: it consumes
// both channel families (pattern "job:*"/"stream:*"), looks up the
// subscribed user for the published job id via Manager, and pushes the
// envelope to every open client of that user. A job:* envelope whose
// status is terminal drops the job's binding afterward, so a late,
// orphaned redelivery on either channel is silently ignored rather than
// routed to a client that has moved on.
type Subscriber struct {
	bus     Bus
	manager *Manager
	log     telemetry.Logger
}

// SubscriberOption configures a Subscriber at construction time.
type SubscriberOption func(*Subscriber)

// WithSubscriberLogger overrides the subscriber's logger. Defaults to a no-op.
func WithSubscriberLogger(l telemetry.Logger) SubscriberOption {
	return func(s *Subscriber) { s.log = l }
}

// NewSubscriber binds bus and manager into a Subscriber.
func NewSubscriber(bus Bus, manager *Manager, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{bus: bus, manager: manager, log: telemetry.NewNoopLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run opens both pattern subscriptions and dispatches until ctx is
// canceled, at which point both subscriptions are closed and Run returns
// ctx.Err().
func (s *Subscriber) Run(ctx context.Context) error {
	jobs, err := s.bus.PSubscribe(ctx, "job:*")
	if err != nil {
		return err
	}
	defer jobs.Close()

	streams, err := s.bus.PSubscribe(ctx, "stream:*")
	if err != nil {
		return err
	}
	defer streams.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-jobs.Messages():
			if !ok {
				return nil
			}
			s.handleJobMessage(ctx, msg)
		case msg, ok := <-streams.Messages():
			if !ok {
				return nil
			}
			s.handleStreamMessage(ctx, msg)
		}
	}
}

func (s *Subscriber) handleJobMessage(ctx context.Context, msg Message) {
	jobID := strings.TrimPrefix(msg.Channel, "job:")
	s.manager.Dispatch(ctx, jobID, msg.Payload)

	var env apitypes.JobEnvelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		s.log.Warn(ctx, "failed to decode job envelope", "channel", msg.Channel, "error", err)
		return
	}
	if env.Status.Terminal() {
		s.manager.UnbindJob(jobID)
	}
}

func (s *Subscriber) handleStreamMessage(ctx context.Context, msg Message) {
	jobID := strings.TrimPrefix(msg.Channel, "stream:")
	s.manager.Dispatch(ctx, jobID, msg.Payload)
}
