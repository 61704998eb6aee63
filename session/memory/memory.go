// Package memory provides an in-memory implementation of session.Store for
// development and testing. Data is not persisted across restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/session"
)

// Store is an in-memory session.Store. Safe for concurrent use; a single
// mutex serializes all operations, which trivially satisfies the
// same-session append-ordering guarantee the interface requires.
type Store struct {
	mu       sync.Mutex
	sessions map[string]apitypes.Session
	messages map[string][]apitypes.SessionMessage
	nextID   int64
	now      func() time.Time
}

var _ session.Store = (*Store)(nil)

// New returns an empty in-memory session store. now defaults to time.Now
// if nil; tests may override it for deterministic timestamps.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		sessions: make(map[string]apitypes.Session),
		messages: make(map[string][]apitypes.SessionMessage),
		now:      now,
	}
}

func (s *Store) create(sessionID, agentSlug, userID, title string) apitypes.Session {
	if title == "" {
		title = session.DefaultTitle("en", s.now())
	}
	now := s.now()
	sess := apitypes.Session{
		SessionID: sessionID,
		AgentSlug: agentSlug,
		UserID:    userID,
		Title:     title,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sessionID] = sess
	return sess
}

// CreateSession creates a new session with a fresh id.
func (s *Store) CreateSession(ctx context.Context, agentSlug, userID, title string) (apitypes.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(uuid.NewString(), agentSlug, userID, title), nil
}

// CreateSessionWithID creates a session using a caller-supplied id,
// idempotently: if sessionID already exists, the existing session is
// returned unchanged.
func (s *Store) CreateSessionWithID(ctx context.Context, sessionID, agentSlug, userID, title string) (apitypes.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[sessionID]; ok {
		return existing, nil
	}
	return s.create(sessionID, agentSlug, userID, title), nil
}

// GetSession retrieves a session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (apitypes.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return apitypes.Session{}, session.ErrNotFound
	}
	return sess, nil
}

// ListSessions lists sessions for (agentSlug, userID), newest-updated first.
func (s *Store) ListSessions(ctx context.Context, agentSlug, userID string, limit, offset int) ([]apitypes.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]apitypes.Session, 0)
	for _, sess := range s.sessions {
		if sess.AgentSlug == agentSlug && sess.UserID == userID {
			matched = append(matched, sess)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].UpdatedAt.After(matched[j].UpdatedAt) })

	if offset >= len(matched) {
		return []apitypes.Session{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// AppendMessage appends a message to sessionID's history and bumps the
// session's updated_at.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, role apitypes.MessageRole, content string, attachments []apitypes.Attachment, metadata map[string]any) (apitypes.SessionMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return apitypes.SessionMessage{}, session.ErrNotFound
	}

	s.nextID++
	msg := apitypes.SessionMessage{
		ID:          s.nextID,
		SessionID:   sessionID,
		Role:        role,
		Content:     content,
		Attachments: attachments,
		Metadata:    metadata,
		Timestamp:   s.now(),
	}
	s.messages[sessionID] = append(s.messages[sessionID], msg)

	sess.UpdatedAt = msg.Timestamp
	s.sessions[sessionID] = sess
	return msg, nil
}

// GetMessages returns sessionID's messages in chronological order, capped
// at limit (0 means unbounded).
func (s *Store) GetMessages(ctx context.Context, sessionID string, limit int) ([]apitypes.SessionMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.messages[sessionID]
	if limit <= 0 || limit >= len(all) {
		out := make([]apitypes.SessionMessage, len(all))
		copy(out, all)
		return out, nil
	}
	out := make([]apitypes.SessionMessage, limit)
	copy(out, all[:limit])
	return out, nil
}

// ClearMessages deletes all messages for sessionID.
func (s *Store) ClearMessages(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, sessionID)
	return nil
}

// CloseSession marks sessionID inactive, keeping its history.
func (s *Store) CloseSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return session.ErrNotFound
	}
	sess.IsActive = false
	sess.UpdatedAt = s.now()
	s.sessions[sessionID] = sess
	return nil
}
