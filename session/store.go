// Package session implements the session store (spec C5): durable
// conversation history plus a write-through cache for hot sessions.
// Implementations available as subpackages:
//
//   - memory: in-memory store for development and testing
//   - mongo: MongoDB-backed durable store for production
//
// Cached wraps any durable Store with a Redis read-through/
// write-through cache.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/agentplatform/core/apitypes"
)

// ErrNotFound is returned by GetSession when no session exists with the
// given id.
var ErrNotFound = errors.New("session: not found")

// Store is the persistence layer for sessions and their messages.
// Implementations must serialize appends on the same session id: two
// concurrent AppendMessage calls on the same session MUST NOT interleave.
type Store interface {
	CreateSession(ctx context.Context, agentSlug, userID, title string) (apitypes.Session, error)
	CreateSessionWithID(ctx context.Context, sessionID, agentSlug, userID, title string) (apitypes.Session, error)
	GetSession(ctx context.Context, sessionID string) (apitypes.Session, error)
	ListSessions(ctx context.Context, agentSlug, userID string, limit, offset int) ([]apitypes.Session, error)
	AppendMessage(ctx context.Context, sessionID string, role apitypes.MessageRole, content string, attachments []apitypes.Attachment, metadata map[string]any) (apitypes.SessionMessage, error)
	GetMessages(ctx context.Context, sessionID string, limit int) ([]apitypes.SessionMessage, error)
	ClearMessages(ctx context.Context, sessionID string) error
	CloseSession(ctx context.Context, sessionID string) error
}

// DefaultTitle returns the default session title used when the caller
// does not supply one, localized to lang. Falls back to English for any
// language not in the supported set.
func DefaultTitle(lang string, now time.Time) string {
	stamp := now.UTC().Format("2006-01-02 15:04")
	switch lang {
	case "fr":
		return "Session du " + stamp
	case "es":
		return "Sesión del " + stamp
	default:
		return "Session " + stamp
	}
}
