package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/jobs"
)

func TestRedisStoreCreateGetSetTerminal(t *testing.T) {
	rdb := newTestRedis(t)
	store := jobs.NewRedisStore(rdb)
	jobID := "redis-store-test-job"
	t.Cleanup(func() { rdb.Del(context.Background(), "job-record:"+jobID) })

	require.NoError(t, store.Create(context.Background(), apitypes.Job{JobID: jobID, Status: apitypes.JobQueued}))

	got, ok, err := store.Get(context.Background(), jobID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, apitypes.JobQueued, got.Status)

	require.NoError(t, store.SetStatus(context.Background(), jobID, apitypes.JobRunning))
	got, ok, err = store.Get(context.Background(), jobID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, apitypes.JobRunning, got.Status)

	resp := &apitypes.AgentResponse{Content: "done"}
	now := time.Now()
	require.NoError(t, store.SetTerminal(context.Background(), jobID, apitypes.JobCompleted, resp, "", "", now))

	got, ok, err = store.Get(context.Background(), jobID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, apitypes.JobCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "done", got.Result.Content)
}

func TestRedisStoreGetUnknownReturnsFalse(t *testing.T) {
	rdb := newTestRedis(t)
	store := jobs.NewRedisStore(rdb)

	_, ok, err := store.Get(context.Background(), "ghost-job-id")
	require.NoError(t, err)
	assert.False(t, ok)
}
