package collaborators

import (
	"context"
	"sync"

	"github.com/agentplatform/core/pipeline"
)

// CounterQuota is a per-(user, agent) call counter enforcing a fixed
// limit, implementing pipeline.QuotaService. It exists for development
// and tests; production deployments are expected to swap in a real quota
// service backed by a billing/usage system.
type CounterQuota struct {
	mu    sync.Mutex
	limit int
	used  map[string]int
}

// NewCounterQuota builds a quota service allowing up to limit calls per
// (user, agent) pair. A non-positive limit means unlimited.
func NewCounterQuota(limit int) *CounterQuota {
	return &CounterQuota{limit: limit, used: make(map[string]int)}
}

var _ pipeline.QuotaService = (*CounterQuota)(nil)

// Check implements pipeline.QuotaService: increments the (user, agent)
// counter and reports whether the call is within limit.
func (q *CounterQuota) Check(_ context.Context, userID, agentSlug string) (pipeline.QuotaDecision, error) {
	if q.limit <= 0 {
		return pipeline.QuotaDecision{Allowed: true}, nil
	}

	key := userID + "/" + agentSlug
	q.mu.Lock()
	defer q.mu.Unlock()
	q.used[key]++
	if q.used[key] > q.limit {
		return pipeline.QuotaDecision{Allowed: false, Reason: "call limit exceeded for this agent"}, nil
	}
	return pipeline.QuotaDecision{Allowed: true}, nil
}

// Reset clears the counter for a (user, agent) pair.
func (q *CounterQuota) Reset(userID, agentSlug string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.used, userID+"/"+agentSlug)
}
