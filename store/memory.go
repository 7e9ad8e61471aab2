package store

import (
	"context"
	"sync"
	"time"

	"kyatplay/models"
)

// Memory is an in-process Store. It backs tests and lets the bot run without
// DATABASE_URL, at the cost of losing all state on restart.
type Memory struct {
	mu        sync.Mutex
	accounts  map[int64]*models.Account
	exchanges map[string]*models.ExchangeRequest
	event     *models.Event
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts:  make(map[int64]*models.Account),
		exchanges: make(map[string]*models.ExchangeRequest),
	}
}

func (m *Memory) getLocked(userID int64) *models.Account {
	a, ok := m.accounts[userID]
	if !ok {
		a = &models.Account{UserID: userID, CreatedAt: time.Now()}
		m.accounts[userID] = a
	}
	return a
}

// Get returns a copy of the account, creating it if missing.
func (m *Memory) Get(_ context.Context, userID int64) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(userID).Clone(), nil
}

// Apply mutates the account atomically. fn runs against a working copy;
// a non-nil error discards the copy so no partial update is visible.
func (m *Memory) Apply(_ context.Context, userID int64, fn func(*models.Account) error) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.getLocked(userID).Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	m.accounts[userID] = work
	return work.Clone(), nil
}

// All returns copies of every account.
func (m *Memory) All(_ context.Context) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a.Clone())
	}
	return out, nil
}

// PutExchange inserts or replaces a pending request.
func (m *Memory) PutExchange(_ context.Context, req *models.ExchangeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	m.exchanges[req.ID] = &cp
	return nil
}

// GetExchange returns the pending request or ErrNotFound.
func (m *Memory) GetExchange(_ context.Context, id string) (*models.ExchangeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.exchanges[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *req
	return &cp, nil
}

// DeleteExchange removes a request from the pending set.
func (m *Memory) DeleteExchange(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exchanges[id]; !ok {
		return ErrNotFound
	}
	delete(m.exchanges, id)
	return nil
}

// PendingExchanges lists every unresolved request.
func (m *Memory) PendingExchanges(_ context.Context) ([]*models.ExchangeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.ExchangeRequest, 0, len(m.exchanges))
	for _, req := range m.exchanges {
		cp := *req
		out = append(out, &cp)
	}
	return out, nil
}

// ActiveEvent returns the current event, nil when none.
func (m *Memory) ActiveEvent(_ context.Context) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.event == nil {
		return nil, nil
	}
	cp := *m.event
	cp.Channels = append([]string(nil), m.event.Channels...)
	cp.Participants = append([]int64(nil), m.event.Participants...)
	return &cp, nil
}

// SetEvent replaces the active event; nil clears it.
func (m *Memory) SetEvent(_ context.Context, ev *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev == nil {
		m.event = nil
		return nil
	}
	cp := *ev
	cp.Channels = append([]string(nil), ev.Channels...)
	cp.Participants = append([]int64(nil), ev.Participants...)
	m.event = &cp
	return nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() {}
