package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/agentplatform/core/session"
	"github.com/agentplatform/core/session/memory"
)

// newTestRedis connects to a local Redis instance for integration testing.
// Skips the test when Redis is unreachable, matching the pattern the
// module's other Redis-backed tests use for optional external dependencies.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	return rdb
}

func TestCachedGetSessionReadsThroughOnMiss(t *testing.T) {
	rdb := newTestRedis(t)
	durable := memory.New(nil)
	cached := session.NewCached(durable, rdb)

	sess, err := cached.CreateSession(context.Background(), "echo", "u1", "")
	require.NoError(t, err)

	got, err := cached.GetSession(context.Background(), sess.SessionID)
	require.NoError(t, err)
	require.Equal(t, sess.SessionID, got.SessionID)
}

func TestCachedCloseSessionInvalidatesCache(t *testing.T) {
	rdb := newTestRedis(t)
	durable := memory.New(nil)
	cached := session.NewCached(durable, rdb)

	sess, err := cached.CreateSession(context.Background(), "echo", "u1", "")
	require.NoError(t, err)

	require.NoError(t, cached.CloseSession(context.Background(), sess.SessionID))

	got, err := cached.GetSession(context.Background(), sess.SessionID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}
