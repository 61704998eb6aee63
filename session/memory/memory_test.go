package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/session"
	"github.com/agentplatform/core/session/memory"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCreateAndGetSession(t *testing.T) {
	store := memory.New(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	sess, err := store.CreateSession(context.Background(), "echo", "u1", "")
	require.NoError(t, err)
	require.NotEmpty(t, sess.SessionID)
	require.True(t, sess.IsActive)
	require.Contains(t, sess.Title, "Session")

	got, err := store.GetSession(context.Background(), sess.SessionID)
	require.NoError(t, err)
	require.Equal(t, sess, got)
}

func TestCreateSessionWithIDIsIdempotent(t *testing.T) {
	store := memory.New(nil)

	first, err := store.CreateSessionWithID(context.Background(), "fixed-id", "echo", "u1", "custom title")
	require.NoError(t, err)

	second, err := store.CreateSessionWithID(context.Background(), "fixed-id", "echo", "u1", "a different title")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGetSessionNotFound(t *testing.T) {
	store := memory.New(nil)
	_, err := store.GetSession(context.Background(), "missing")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestAppendAndGetMessagesOrdered(t *testing.T) {
	store := memory.New(nil)
	sess, err := store.CreateSession(context.Background(), "echo", "u1", "")
	require.NoError(t, err)

	_, err = store.AppendMessage(context.Background(), sess.SessionID, apitypes.RoleUser, "hello", nil, nil)
	require.NoError(t, err)
	_, err = store.AppendMessage(context.Background(), sess.SessionID, apitypes.RoleAssistant, "hi there", nil, nil)
	require.NoError(t, err)

	msgs, err := store.GetMessages(context.Background(), sess.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, "hi there", msgs[1].Content)
}

func TestClearMessagesAndCloseSession(t *testing.T) {
	store := memory.New(nil)
	sess, err := store.CreateSession(context.Background(), "echo", "u1", "")
	require.NoError(t, err)
	_, err = store.AppendMessage(context.Background(), sess.SessionID, apitypes.RoleUser, "hello", nil, nil)
	require.NoError(t, err)

	require.NoError(t, store.ClearMessages(context.Background(), sess.SessionID))
	msgs, err := store.GetMessages(context.Background(), sess.SessionID, 0)
	require.NoError(t, err)
	require.Empty(t, msgs)

	require.NoError(t, store.CloseSession(context.Background(), sess.SessionID))
	got, err := store.GetSession(context.Background(), sess.SessionID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}

func TestListSessionsOrderedByUpdatedAtDescending(t *testing.T) {
	store := memory.New(nil)
	a, err := store.CreateSession(context.Background(), "echo", "u1", "a")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	b, err := store.CreateSession(context.Background(), "echo", "u1", "b")
	require.NoError(t, err)

	list, err := store.ListSessions(context.Background(), "echo", "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, b.SessionID, list[0].SessionID)
	require.Equal(t, a.SessionID, list[1].SessionID)
}
