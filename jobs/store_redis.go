package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentplatform/core/apitypes"
)

// jobTTL bounds how long a terminal job record survives in Redis after
// completion; clients are expected to have consumed the result well
// before this, and the store is not the system of record for job
// history (spec §6 lists no `jobs` table — terminal records here exist
// only to make redelivery idempotent, not for long-term audit).
const jobTTL = 24 * time.Hour

func jobKey(jobID string) string { return "job-record:" + jobID }

// RedisStore is a Redis-backed Store, grounded on the same
// read/write-through style as session.Cached.
type RedisStore struct {
	rdb *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps rdb as a Store.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) save(ctx context.Context, job apitypes.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("jobs: marshal job record: %w", err)
	}
	return s.rdb.Set(ctx, jobKey(job.JobID), data, jobTTL).Err()
}

func (s *RedisStore) Create(ctx context.Context, job apitypes.Job) error {
	return s.save(ctx, job)
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (apitypes.Job, bool, error) {
	raw, err := s.rdb.Get(ctx, jobKey(jobID)).Result()
	if err == redis.Nil {
		return apitypes.Job{}, false, nil
	}
	if err != nil {
		return apitypes.Job{}, false, fmt.Errorf("jobs: get job record: %w", err)
	}
	var job apitypes.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return apitypes.Job{}, false, fmt.Errorf("jobs: decode job record: %w", err)
	}
	return job, true, nil
}

func (s *RedisStore) SetStatus(ctx context.Context, jobID string, status apitypes.JobStatus) error {
	job, ok, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	job.Status = status
	return s.save(ctx, job)
}

func (s *RedisStore) SetTerminal(ctx context.Context, jobID string, status apitypes.JobStatus, result *apitypes.AgentResponse, errCode apitypes.ErrorCode, errMsg string, terminalAt time.Time) error {
	job, ok, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	job.Status = status
	job.Result = result
	job.ErrorCode = errCode
	job.ErrorMsg = errMsg
	t := terminalAt
	job.TerminalAt = &t
	return s.save(ctx, job)
}
