package jobs

import (
	"context"
	"time"

	"github.com/agentplatform/core/apitypes"
)

// Publisher is the narrow surface the worker needs from the realtime
// fan-out (spec §4.11): publish a status/progress envelope on a job's
// channel, or a content delta on its stream channel. Defined locally so
// jobs never imports realtime — a realtime.Bus-backed publisher satisfies
// this interface structurally, the same one-directional pattern used for
// pipeline.Agent and agentctx.SubAgentInvoker.
type Publisher interface {
	PublishJob(ctx context.Context, env apitypes.JobEnvelope) error
	PublishStream(ctx context.Context, env apitypes.StreamEnvelope) error
}

// NoopPublisher discards every envelope; used where a job runs with no
// realtime fan-out configured (e.g. isolated worker tests).
type NoopPublisher struct{}

func (NoopPublisher) PublishJob(context.Context, apitypes.JobEnvelope) error       { return nil }
func (NoopPublisher) PublishStream(context.Context, apitypes.StreamEnvelope) error { return nil }

var _ Publisher = NoopPublisher{}

// progressPublisher adapts a Publisher bound to one job into the
// agentctx.ProgressPublisher shape agent code calls through ctx.set_progress.
type progressPublisher struct {
	pub   Publisher
	jobID string
	now   func() time.Time
}

func (p *progressPublisher) Publish(ctx context.Context, percent int, message string) {
	pct := percent
	env := apitypes.JobEnvelope{
		JobID:     p.jobID,
		Status:    apitypes.JobRunning,
		Progress:  &pct,
		Message:   message,
		Timestamp: p.now(),
	}
	_ = p.pub.PublishJob(ctx, env)
}
