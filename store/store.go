package store

import (
	"context"
	"errors"

	"kyatplay/models"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the ledger persistence boundary. Account mutation goes through
// Apply exclusively: the callback sees the latest persisted record and its
// changes are committed atomically per account, so concurrent operations on
// the same account never lose updates.
//
// The exchange and event methods cover the shared bot-state blob: the
// pending-withdrawal set keyed by request ID and the single active event.
type Store interface {
	// Get returns the account, creating a fresh one if it does not exist.
	Get(ctx context.Context, userID int64) (*models.Account, error)
	// Apply runs fn against the current account record under per-account
	// serialization and persists the result. If fn returns an error nothing
	// is written and the error is returned unchanged.
	Apply(ctx context.Context, userID int64, fn func(*models.Account) error) (*models.Account, error)
	// All returns every known account.
	All(ctx context.Context) ([]*models.Account, error)

	PutExchange(ctx context.Context, req *models.ExchangeRequest) error
	GetExchange(ctx context.Context, id string) (*models.ExchangeRequest, error)
	DeleteExchange(ctx context.Context, id string) error
	PendingExchanges(ctx context.Context) ([]*models.ExchangeRequest, error)

	// ActiveEvent returns nil when no event is running.
	ActiveEvent(ctx context.Context) (*models.Event, error)
	// SetEvent replaces the active event; nil clears it.
	SetEvent(ctx context.Context, ev *models.Event) error

	Close()
}
