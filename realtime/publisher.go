package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/jobs"
)

// JobChannel and StreamChannel name the two bus channel families spec
// §4.11/§6 define.
func JobChannel(jobID string) string    { return "job:" + jobID }
func StreamChannel(jobID string) string { return "stream:" + jobID }

// BusPublisher adapts a Bus into jobs.Publisher, so the worker can publish
// envelopes without importing realtime directly (jobs defines the narrow
// Publisher interface it needs; this is the concrete wiring, assembled
// only by the process entrypoint).
type BusPublisher struct {
	bus Bus
}

var _ jobs.Publisher = (*BusPublisher)(nil)

// NewBusPublisher adapts bus into a jobs.Publisher.
func NewBusPublisher(bus Bus) *BusPublisher {
	return &BusPublisher{bus: bus}
}

func (p *BusPublisher) PublishJob(ctx context.Context, env apitypes.JobEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("realtime: marshal job envelope: %w", err)
	}
	return p.bus.Publish(ctx, JobChannel(env.JobID), data)
}

func (p *BusPublisher) PublishStream(ctx context.Context, env apitypes.StreamEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("realtime: marshal stream envelope: %w", err)
	}
	return p.bus.Publish(ctx, StreamChannel(env.JobID), data)
}
