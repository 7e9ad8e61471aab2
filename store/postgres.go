package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"kyatplay/models"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgres connects, tunes the pool for a chat-bot workload and bootstraps
// the schema.
func NewPostgres(ctx context.Context, databaseURL string, log zerolog.Logger) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 4
	config.MaxConnLifetime = 45 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second
	config.ConnConfig.RuntimeParams = map[string]string{
		"application_name":  "kyatplay-bot",
		"timezone":          "UTC",
		"statement_timeout": "30s",
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	conn.Release()

	p := &Postgres{pool: pool, log: log}
	if err := p.createTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) createTables(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS accounts (
		user_id BIGINT PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		balance BIGINT NOT NULL DEFAULT 0,
		games_played INTEGER NOT NULL DEFAULT 0,
		bonus_spins INTEGER NOT NULL DEFAULT 0,
		spins_today INTEGER NOT NULL DEFAULT 0,
		last_spin_date TEXT NOT NULL DEFAULT '',
		referred_by BIGINT,
		referral_count INTEGER NOT NULL DEFAULT 0,
		event_done BOOLEAN NOT NULL DEFAULT FALSE,
		history JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_balance ON accounts(balance DESC, user_id);

	CREATE TABLE IF NOT EXISTS exchange_requests (
		id UUID PRIMARY KEY,
		user_id BIGINT NOT NULL,
		username TEXT NOT NULL DEFAULT '',
		amount BIGINT NOT NULL,
		channel TEXT NOT NULL,
		phone TEXT NOT NULL,
		account_name TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_exchange_requests_user ON exchange_requests(user_id);

	CREATE TABLE IF NOT EXISTS bot_state (
		id INTEGER PRIMARY KEY,
		active_event JSONB
	);
	INSERT INTO bot_state (id, active_event) VALUES (1, NULL) ON CONFLICT (id) DO NOTHING;`

	if _, err := p.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

const accountColumns = `user_id, username, balance, games_played, bonus_spins, spins_today,
	last_spin_date, referred_by, referral_count, event_done, history, created_at`

func (p *Postgres) scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	var history []byte
	if err := row.Scan(
		&a.UserID, &a.Username, &a.Balance, &a.GamesPlayed, &a.BonusSpins,
		&a.SpinsToday, &a.LastSpinDate, &a.ReferredBy, &a.ReferralCount,
		&a.EventDone, &history, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &a.History); err != nil {
			// A corrupt history blob should not make the account unreadable.
			p.log.Warn().Err(err).Int64("user_id", a.UserID).
				Msg("dropping undecodable account history")
			a.History = nil
		}
	}
	return &a, nil
}

// Get returns the account, inserting a fresh row if it does not exist.
func (p *Postgres) Get(ctx context.Context, userID int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`
	a, err := p.scanAccount(p.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p.create(ctx, userID)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

func (p *Postgres) create(ctx context.Context, userID int64) (*models.Account, error) {
	query := `INSERT INTO accounts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING ` + accountColumns
	a, err := p.scanAccount(p.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return a, nil
}

// Apply runs fn against the row under SELECT ... FOR UPDATE so concurrent
// mutations of the same account serialize instead of losing updates.
func (p *Postgres) Apply(ctx context.Context, userID int64, fn func(*models.Account) error) (*models.Account, error) {
	if _, err := p.Get(ctx, userID); err != nil {
		return nil, err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 FOR UPDATE`
	a, err := p.scanAccount(tx.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	if err := fn(a); err != nil {
		return nil, err
	}

	history, err := json.Marshal(a.History)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}

	update := `UPDATE accounts SET
		username = $2, balance = $3, games_played = $4, bonus_spins = $5,
		spins_today = $6, last_spin_date = $7, referred_by = $8,
		referral_count = $9, event_done = $10, history = $11
		WHERE user_id = $1`
	if _, err := tx.Exec(ctx, update,
		a.UserID, a.Username, a.Balance, a.GamesPlayed, a.BonusSpins,
		a.SpinsToday, a.LastSpinDate, a.ReferredBy, a.ReferralCount,
		a.EventDone, history,
	); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit account update: %w", err)
	}
	return a, nil
}

// All returns every known account.
func (p *Postgres) All(ctx context.Context) ([]*models.Account, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		a, err := p.scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PutExchange inserts or replaces a pending request.
func (p *Postgres) PutExchange(ctx context.Context, req *models.ExchangeRequest) error {
	query := `INSERT INTO exchange_requests (id, user_id, username, amount, channel, phone, account_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status`
	_, err := p.pool.Exec(ctx, query,
		req.ID, req.UserID, req.Username, req.Amount, string(req.Channel),
		req.Phone, req.AccountName, string(req.Status), req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store exchange request: %w", err)
	}
	return nil
}

// GetExchange returns the pending request or ErrNotFound.
func (p *Postgres) GetExchange(ctx context.Context, id string) (*models.ExchangeRequest, error) {
	query := `SELECT id, user_id, username, amount, channel, phone, account_name, status, created_at
		FROM exchange_requests WHERE id = $1`
	var req models.ExchangeRequest
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&req.ID, &req.UserID, &req.Username, &req.Amount, &req.Channel,
		&req.Phone, &req.AccountName, &req.Status, &req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get exchange request: %w", err)
	}
	return &req, nil
}

// DeleteExchange removes a request from the pending set.
func (p *Postgres) DeleteExchange(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM exchange_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete exchange request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PendingExchanges lists every unresolved request, oldest first.
func (p *Postgres) PendingExchanges(ctx context.Context) ([]*models.ExchangeRequest, error) {
	query := `SELECT id, user_id, username, amount, channel, phone, account_name, status, created_at
		FROM exchange_requests ORDER BY created_at`
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchange requests: %w", err)
	}
	defer rows.Close()

	var out []*models.ExchangeRequest
	for rows.Next() {
		var req models.ExchangeRequest
		if err := rows.Scan(
			&req.ID, &req.UserID, &req.Username, &req.Amount, &req.Channel,
			&req.Phone, &req.AccountName, &req.Status, &req.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan exchange request: %w", err)
		}
		out = append(out, &req)
	}
	return out, rows.Err()
}

// ActiveEvent returns the current event, nil when none.
func (p *Postgres) ActiveEvent(ctx context.Context) (*models.Event, error) {
	var blob []byte
	err := p.pool.QueryRow(ctx, `SELECT active_event FROM bot_state WHERE id = 1`).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load event state: %w", err)
	}
	if len(blob) == 0 {
		return nil, nil
	}
	var ev models.Event
	if err := json.Unmarshal(blob, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode event state: %w", err)
	}
	return &ev, nil
}

// SetEvent replaces the active event; nil clears it.
func (p *Postgres) SetEvent(ctx context.Context, ev *models.Event) error {
	var blob []byte
	if ev != nil {
		var err error
		blob, err = json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to encode event state: %w", err)
		}
	}
	query := `INSERT INTO bot_state (id, active_event) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET active_event = EXCLUDED.active_event`
	if _, err := p.pool.Exec(ctx, query, blob); err != nil {
		return fmt.Errorf("failed to save event state: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
