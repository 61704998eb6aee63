package collaborators

import (
	"context"
	"strings"
	"sync"

	"github.com/agentplatform/core/pipeline"
)

// KeywordModeration is a deliberately simple pipeline.Moderation: it
// blocks content containing any configured denied phrase (case
// insensitive) and never rewrites. It exists for development and tests;
// production deployments are expected to swap in a real moderation
// service.
type KeywordModeration struct {
	mu     sync.RWMutex
	denied []string
}

// NewKeywordModeration builds a moderator with the given denied phrases.
func NewKeywordModeration(denied ...string) *KeywordModeration {
	m := &KeywordModeration{}
	m.denied = append(m.denied, denied...)
	return m
}

var _ pipeline.Moderation = (*KeywordModeration)(nil)

// Deny adds a phrase to the denied list.
func (m *KeywordModeration) Deny(phrase string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied = append(m.denied, phrase)
}

func (m *KeywordModeration) blocked(content string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lower := strings.ToLower(content)
	for _, phrase := range m.denied {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// FilterIn implements pipeline.Moderation phase 3.
func (m *KeywordModeration) FilterIn(_ context.Context, content, _ string) (pipeline.ModerationDecision, error) {
	return pipeline.ModerationDecision{Blocked: m.blocked(content)}, nil
}

// FilterOut implements pipeline.Moderation phase 5.
func (m *KeywordModeration) FilterOut(_ context.Context, content, _ string) (pipeline.ModerationDecision, error) {
	return pipeline.ModerationDecision{Blocked: m.blocked(content)}, nil
}
