package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/agentplatform/core/apitypes"
)

// Store persists the durable Job record the worker transitions through
// queued -> running -> (streaming)* -> terminal. It backs the worker's
// idempotent-redelivery check: before re-executing a reserved task, the
// worker rechecks the persisted record and skips re-running a job already
// in a terminal state.
type Store interface {
	Create(ctx context.Context, job apitypes.Job) error
	Get(ctx context.Context, jobID string) (apitypes.Job, bool, error)
	SetStatus(ctx context.Context, jobID string, status apitypes.JobStatus) error
	SetTerminal(ctx context.Context, jobID string, status apitypes.JobStatus, result *apitypes.AgentResponse, errCode apitypes.ErrorCode, errMsg string, terminalAt time.Time) error
}

// MemoryStore is an in-memory Store for development and testing.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]apitypes.Job
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]apitypes.Job)}
}

func (s *MemoryStore) Create(_ context.Context, job apitypes.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (apitypes.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	return job, ok, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, jobID string, status apitypes.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	job.Status = status
	s.jobs[jobID] = job
	return nil
}

func (s *MemoryStore) SetTerminal(_ context.Context, jobID string, status apitypes.JobStatus, result *apitypes.AgentResponse, errCode apitypes.ErrorCode, errMsg string, terminalAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	job.Status = status
	job.Result = result
	job.ErrorCode = errCode
	job.ErrorMsg = errMsg
	t := terminalAt
	job.TerminalAt = &t
	s.jobs[jobID] = job
	return nil
}
