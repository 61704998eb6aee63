package agentctx

import (
	"context"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/session"
)

// Memory is the thin view over the session store behind ctx.memory: it is
// bound to one session id and exposes only the operations an agent needs
// to read and extend conversation history, never session lifecycle
// operations (create/close/list), which remain the engine's concern.
type Memory interface {
	Append(ctx context.Context, role apitypes.MessageRole, content string, attachments []apitypes.Attachment, metadata map[string]any) (apitypes.SessionMessage, error)
	Recent(ctx context.Context, limit int) ([]apitypes.SessionMessage, error)
}

type sessionMemory struct {
	store     session.Store
	sessionID string
}

// NewSessionMemory binds store to sessionID, producing the Memory handle
// the engine wires into a turn's Context.
func NewSessionMemory(store session.Store, sessionID string) Memory {
	return &sessionMemory{store: store, sessionID: sessionID}
}

func (m *sessionMemory) Append(ctx context.Context, role apitypes.MessageRole, content string, attachments []apitypes.Attachment, metadata map[string]any) (apitypes.SessionMessage, error) {
	return m.store.AppendMessage(ctx, m.sessionID, role, content, attachments, metadata)
}

func (m *sessionMemory) Recent(ctx context.Context, limit int) ([]apitypes.SessionMessage, error) {
	return m.store.GetMessages(ctx, m.sessionID, limit)
}

var _ Memory = (*sessionMemory)(nil)
