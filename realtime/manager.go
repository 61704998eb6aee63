package realtime

import (
	"context"
	"sync"
)

// Client is the abstraction over one open client connection (WebSocket,
// SSE, …) a subscribed user is listening on. Grounded on the teacher's
// stream.Sink shape: a single Send method, leaving the transport to the
// caller. Send should not block indefinitely; a slow client is the
// caller's responsibility to disconnect (spec §5 "Backpressure").
type Client interface {
	Send(ctx context.Context, payload []byte) error
}

// Manager maintains the two subscription tables spec §4.11 names: which
// clients belong to a user, and which user owns a job. Dispatch looks up
// the owning user for a published job id and pushes the payload to every
// open client of that user.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]map[Client]struct{} // user_id -> set<Client>
	jobUser map[string]string              // job_id -> user_id
}

// NewManager returns an empty connection manager.
func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]map[Client]struct{}),
		jobUser: make(map[string]string),
	}
}

// Subscribe registers client under userID. The returned func unregisters
// it; callers should defer it on connection close.
func (m *Manager) Subscribe(userID string, client Client) func() {
	m.mu.Lock()
	set, ok := m.clients[userID]
	if !ok {
		set = make(map[Client]struct{})
		m.clients[userID] = set
	}
	set[client] = struct{}{}
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if set, ok := m.clients[userID]; ok {
			delete(set, client)
			if len(set) == 0 {
				delete(m.clients, userID)
			}
		}
	}
}

// BindJob records that jobID's envelopes belong to userID, so Dispatch can
// route them once published.
func (m *Manager) BindJob(jobID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobUser[jobID] = userID
}

// UnbindJob drops jobID's binding. Called once the job reaches a terminal
// state, per spec §4.11 "subscriptions for terminal jobs are
// automatically dropped".
func (m *Manager) UnbindJob(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobUser, jobID)
}

// userFor returns the user bound to jobID, if any.
func (m *Manager) userFor(jobID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	userID, ok := m.jobUser[jobID]
	return userID, ok
}

// Dispatch pushes payload to every open client of the user bound to
// jobID. A client whose Send errors is left registered — closing on
// transport failure is the caller's (connection handler's) job, not the
// manager's.
func (m *Manager) Dispatch(ctx context.Context, jobID string, payload []byte) {
	userID, ok := m.userFor(jobID)
	if !ok {
		return
	}

	m.mu.RLock()
	clients := make([]Client, 0, len(m.clients[userID]))
	for c := range m.clients[userID] {
		clients = append(clients, c)
	}
	m.mu.RUnlock()

	for _, c := range clients {
		_ = c.Send(ctx, payload)
	}
}
