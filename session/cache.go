package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentplatform/core/apitypes"
)

// CacheTTL is how long a cached session/message-list entry survives
// without being touched again.
const CacheTTL = 15 * time.Minute

// Cached wraps a durable Store with a Redis read-through/write-through
// cache for hot sessions. GetSession checks the cache before falling
// through to the durable store; CreateSession/CreateSessionWithID/
// AppendMessage/ClearMessages/CloseSession keep the cache in sync as they
// write. The durable store remains authoritative: a cache miss or a Redis
// error on read never surfaces as an error, it just falls through.
//
// Cached is also where the Store interface's same-session append
// ordering guarantee is enforced: appendLocks hands out one mutex per
// session id, held for the durable AppendMessage call, so two concurrent
// turns on the same session can never interleave their user-message and
// assistant-message inserts regardless of what the underlying durable
// store does on its own.
type Cached struct {
	durable Store
	rdb     *redis.Client

	appendLocks sync.Map // session id -> *sync.Mutex
}

var _ Store = (*Cached)(nil)

// NewCached wraps durable with a Redis cache.
func NewCached(durable Store, rdb *redis.Client) *Cached {
	return &Cached{durable: durable, rdb: rdb}
}

// sessionLock returns the mutex serializing appends for sessionID,
// creating one on first use.
func (c *Cached) sessionLock(sessionID string) *sync.Mutex {
	v, _ := c.appendLocks.LoadOrStore(sessionID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func sessionCacheKey(id string) string { return "session:" + id }
func messagesCacheKey(id string) string { return "session:" + id + ":messages" }

func (c *Cached) cacheSession(ctx context.Context, sess apitypes.Session) {
	data, err := json.Marshal(sess)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, sessionCacheKey(sess.SessionID), data, CacheTTL)
}

func (c *Cached) invalidate(ctx context.Context, sessionID string) {
	c.rdb.Del(ctx, sessionCacheKey(sessionID), messagesCacheKey(sessionID))
}

func (c *Cached) CreateSession(ctx context.Context, agentSlug, userID, title string) (apitypes.Session, error) {
	sess, err := c.durable.CreateSession(ctx, agentSlug, userID, title)
	if err != nil {
		return apitypes.Session{}, err
	}
	c.cacheSession(ctx, sess)
	return sess, nil
}

func (c *Cached) CreateSessionWithID(ctx context.Context, sessionID, agentSlug, userID, title string) (apitypes.Session, error) {
	sess, err := c.durable.CreateSessionWithID(ctx, sessionID, agentSlug, userID, title)
	if err != nil {
		return apitypes.Session{}, err
	}
	c.cacheSession(ctx, sess)
	return sess, nil
}

// GetSession checks Redis first; on a miss or decode failure it loads from
// the durable store and repopulates the cache.
func (c *Cached) GetSession(ctx context.Context, sessionID string) (apitypes.Session, error) {
	if raw, err := c.rdb.Get(ctx, sessionCacheKey(sessionID)).Result(); err == nil {
		var sess apitypes.Session
		if jsonErr := json.Unmarshal([]byte(raw), &sess); jsonErr == nil {
			return sess, nil
		}
	}

	sess, err := c.durable.GetSession(ctx, sessionID)
	if err != nil {
		return apitypes.Session{}, err
	}
	c.cacheSession(ctx, sess)
	return sess, nil
}

// ListSessions is not cached: it is a paginated query over a mutable set,
// which the durable store answers directly.
func (c *Cached) ListSessions(ctx context.Context, agentSlug, userID string, limit, offset int) ([]apitypes.Session, error) {
	return c.durable.ListSessions(ctx, agentSlug, userID, limit, offset)
}

func (c *Cached) AppendMessage(ctx context.Context, sessionID string, role apitypes.MessageRole, content string, attachments []apitypes.Attachment, metadata map[string]any) (apitypes.SessionMessage, error) {
	lock := c.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := c.durable.AppendMessage(ctx, sessionID, role, content, attachments, metadata)
	if err != nil {
		return apitypes.SessionMessage{}, err
	}
	// The message-list cache (if any) is now stale; drop it rather than
	// maintain an append-only cached list, and bump the session's
	// updated_at by re-reading it from the durable store.
	c.rdb.Del(ctx, messagesCacheKey(sessionID))
	if sess, getErr := c.durable.GetSession(ctx, sessionID); getErr == nil {
		c.cacheSession(ctx, sess)
	}
	return msg, nil
}

func (c *Cached) GetMessages(ctx context.Context, sessionID string, limit int) ([]apitypes.SessionMessage, error) {
	return c.durable.GetMessages(ctx, sessionID, limit)
}

func (c *Cached) ClearMessages(ctx context.Context, sessionID string) error {
	if err := c.durable.ClearMessages(ctx, sessionID); err != nil {
		return err
	}
	c.invalidate(ctx, sessionID)
	return nil
}

func (c *Cached) CloseSession(ctx context.Context, sessionID string) error {
	if err := c.durable.CloseSession(ctx, sessionID); err != nil {
		return err
	}
	c.invalidate(ctx, sessionID)
	c.appendLocks.Delete(sessionID)
	return nil
}
