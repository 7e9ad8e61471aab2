package models

import (
	"time"
)

// HistoryCap is the maximum number of activity entries kept per account.
// Older entries are evicted first.
const HistoryCap = 20

// HistoryEntry is one line of an account's activity history.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// Account is the per-user ledger record. Accounts are mutated only through
// the store's Apply so balance updates are read-modify-write against the
// latest persisted value.
type Account struct {
	UserID        int64
	Username      string
	Balance       int64
	GamesPlayed   int
	BonusSpins    int
	SpinsToday    int
	LastSpinDate  string // ISO date of the last quota-counted spin
	ReferredBy    *int64
	ReferralCount int
	EventDone     bool
	History       []HistoryEntry
	CreatedAt     time.Time
}

// AddHistory appends an activity entry, evicting the oldest beyond HistoryCap.
func (a *Account) AddHistory(action, details string) {
	a.History = append(a.History, HistoryEntry{
		Timestamp: time.Now(),
		Action:    action,
		Details:   details,
	})
	if len(a.History) > HistoryCap {
		a.History = a.History[len(a.History)-HistoryCap:]
	}
}

// Clone returns a deep copy so callers never share mutable state with the store.
func (a *Account) Clone() *Account {
	cp := *a
	if a.ReferredBy != nil {
		ref := *a.ReferredBy
		cp.ReferredBy = &ref
	}
	cp.History = make([]HistoryEntry, len(a.History))
	copy(cp.History, a.History)
	return &cp
}
