// Package jobs implements the durable async queue and worker loop that
// runs an agent turn outside the request/response cycle (spec §4.10).
package jobs

import (
	"context"

	"github.com/agentplatform/core/apitypes"
)

// Task is the payload enqueued for one asynchronous agent invocation. It
// carries everything the worker needs to rebuild the same engine call the
// synchronous path would make (spec §4.9), plus an optional max duration.
type Task struct {
	JobID         string               `json:"job_id"`
	AgentSlug     string               `json:"agent_slug"`
	UserID        string               `json:"user_id"`
	SessionID     string               `json:"session_id"`
	WorkspaceID   string               `json:"workspace_id,omitempty"`
	Lang          string               `json:"lang"`
	Message       apitypes.UserMessage `json:"message"`
	Stream        bool                 `json:"stream"`
	MaxDurationMs int64                `json:"max_duration_ms,omitempty"`
}

// Reservation is a task handed out by BrokerQueue.Reserve. Opaque is
// broker-specific state (e.g. the raw payload) Ack/Fail need to remove the
// task from the in-flight/reservation list.
type Reservation struct {
	Task   Task
	Opaque string
}

// BrokerQueue is the collaborator interface for the durable job queue
// (spec §6): enqueue hands a task to the queue, reserve pulls the next
// one with at-least-once delivery semantics, ack/fail retire or requeue
// the reservation.
type BrokerQueue interface {
	Enqueue(ctx context.Context, queue string, task Task) error
	Reserve(ctx context.Context, queue string) (Reservation, error)
	Ack(ctx context.Context, res Reservation) error
	Fail(ctx context.Context, res Reservation) error
}
