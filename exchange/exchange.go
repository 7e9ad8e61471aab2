package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kyatplay/models"
	"kyatplay/store"
	"kyatplay/utils"
)

var (
	ErrNotAuthorized       = errors.New("exchange: authority-only action")
	ErrWrongState          = errors.New("exchange: no input expected in the current state")
	ErrInvalidAmount       = errors.New("exchange: amount must be a positive number")
	ErrInsufficientBalance = errors.New("exchange: insufficient balance")
	ErrUnknownChannel      = errors.New("exchange: unknown payment channel")
	ErrAlreadyResolved     = errors.New("exchange: request already resolved")
)

// Mode is the pending input expected from the requester's session.
type Mode int

const (
	ModeNone Mode = iota
	ModeAwaitingAmount
	ModeAwaitingMethod
	ModeAwaitingInfo
)

// Session is the per-account wizard state while a withdrawal request is being
// assembled. It is replaced wholesale on restart and destroyed on submission
// or cancellation.
type Session struct {
	Mode    Mode
	Amount  int64
	Channel models.PaymentChannel
}

// Notifier delivers the outward messages of the workflow. Failures are logged
// by implementations and never undo a committed balance change.
type Notifier interface {
	// RequestSubmitted notifies the authority of a new pending request.
	RequestSubmitted(req *models.ExchangeRequest)
	// Rejected notifies the requester that the hold was refunded.
	Rejected(req *models.ExchangeRequest, newBalance int64)
	// Completed forwards the payout receipt to the requester.
	Completed(req *models.ExchangeRequest, receiptURL string)
}

// Workflow runs the manual withdrawal pipeline: amount → payment method →
// payment info → authority approval → receipt. While a request is pending or
// approved the amount stays held out of the account balance; rejection
// refunds it in full and completion makes the hold permanent.
type Workflow struct {
	store    store.Store
	notifier Notifier
	ownerID  int64
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewWorkflow creates the workflow; ownerID is the approval authority.
func NewWorkflow(st store.Store, n Notifier, ownerID int64, log zerolog.Logger) *Workflow {
	return &Workflow{
		store:    st,
		notifier: n,
		ownerID:  ownerID,
		log:      log,
		sessions: make(map[int64]*Session),
	}
}

// Begin opens (or restarts) the wizard for an account.
func (w *Workflow) Begin(userID int64) *Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := &Session{Mode: ModeAwaitingAmount}
	w.sessions[userID] = s
	return s
}

// Cancel drops the wizard session without touching the balance.
func (w *Workflow) Cancel(userID int64) {
	w.mu.Lock()
	delete(w.sessions, userID)
	w.mu.Unlock()
}

// SessionMode reports what input, if any, the account's session is expecting.
func (w *Workflow) SessionMode(userID int64) Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.sessions[userID]; ok {
		return s.Mode
	}
	return ModeNone
}

// SubmitAmount validates the typed amount against the current balance and
// advances the session. Invalid input leaves the session unchanged.
func (w *Workflow) SubmitAmount(ctx context.Context, userID int64, text string) (int64, error) {
	w.mu.Lock()
	s, ok := w.sessions[userID]
	w.mu.Unlock()
	if !ok || s.Mode != ModeAwaitingAmount {
		return 0, ErrWrongState
	}

	a, err := w.store.Get(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("read account: %w", err)
	}
	amount, err := utils.ParseAmount(text, a.Balance)
	if err != nil || amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if amount > a.Balance {
		return 0, ErrInsufficientBalance
	}

	w.mu.Lock()
	s.Amount = amount
	s.Mode = ModeAwaitingMethod
	w.mu.Unlock()
	return amount, nil
}

// SelectChannel records the chosen payout channel and advances the session.
func (w *Workflow) SelectChannel(userID int64, channel string) (models.PaymentChannel, error) {
	ch, ok := models.ValidPaymentChannel(channel)
	if !ok {
		return "", ErrUnknownChannel
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	s, exists := w.sessions[userID]
	if !exists || s.Mode != ModeAwaitingMethod {
		return "", ErrWrongState
	}
	s.Channel = ch
	s.Mode = ModeAwaitingInfo
	return ch, nil
}

// SubmitInfo validates the payout destination, atomically holds the amount
// and records the pending request under a generated unique ID. The hold
// re-validates the balance at deduction time, so a concurrent spend since
// SubmitAmount fails the submission closed instead of going negative.
func (w *Workflow) SubmitInfo(ctx context.Context, userID int64, username, text string) (*models.ExchangeRequest, error) {
	w.mu.Lock()
	s, ok := w.sessions[userID]
	w.mu.Unlock()
	if !ok || s.Mode != ModeAwaitingInfo {
		return nil, ErrWrongState
	}

	phone, name, err := utils.ParsePaymentInfo(text)
	if err != nil {
		return nil, err
	}

	req := &models.ExchangeRequest{
		ID:          uuid.NewString(),
		UserID:      userID,
		Username:    username,
		Amount:      s.Amount,
		Channel:     s.Channel,
		Phone:       phone,
		AccountName: name,
		Status:      models.ExchangePending,
		CreatedAt:   time.Now(),
	}

	_, err = w.store.Apply(ctx, userID, func(a *models.Account) error {
		if a.Balance < req.Amount {
			return ErrInsufficientBalance
		}
		a.Balance -= req.Amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := w.store.PutExchange(ctx, req); err != nil {
		// The hold committed but the request record did not: release the
		// hold rather than strand the money.
		if _, rerr := w.store.Apply(ctx, userID, func(a *models.Account) error {
			a.Balance += req.Amount
			return nil
		}); rerr != nil {
			w.log.Error().Err(rerr).Str("request_id", req.ID).Int64("user_id", userID).
				Msg("failed to release hold after record failure")
		}
		return nil, fmt.Errorf("record request: %w", err)
	}

	w.Cancel(userID)
	utils.ExchangeSubmitted.Inc()
	w.log.Info().Str("request_id", req.ID).Int64("user_id", userID).
		Int64("amount", req.Amount).Str("channel", string(req.Channel)).
		Msg("exchange request submitted")
	w.notifier.RequestSubmitted(req)
	return req, nil
}

// Approve moves a pending request to approved-awaiting-receipt. Authority
// only; no balance change.
func (w *Workflow) Approve(ctx context.Context, actorID int64, requestID string) (*models.ExchangeRequest, error) {
	if actorID != w.ownerID {
		return nil, ErrNotAuthorized
	}
	req, err := w.store.GetExchange(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAlreadyResolved
		}
		return nil, err
	}
	if req.Status != models.ExchangePending {
		return nil, ErrAlreadyResolved
	}

	req.Status = models.ExchangeApproved
	if err := w.store.PutExchange(ctx, req); err != nil {
		return nil, fmt.Errorf("approve request: %w", err)
	}
	w.log.Info().Str("request_id", req.ID).Msg("exchange request approved")
	return req, nil
}

// Reject refunds the held amount in full and removes the request from the
// pending set. Authority only; idempotent for already-resolved requests.
func (w *Workflow) Reject(ctx context.Context, actorID int64, requestID string) (*models.ExchangeRequest, error) {
	if actorID != w.ownerID {
		return nil, ErrNotAuthorized
	}
	req, err := w.store.GetExchange(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAlreadyResolved
		}
		return nil, err
	}
	if req.Status != models.ExchangePending {
		return nil, ErrAlreadyResolved
	}

	// Removing the record first makes a concurrent second reject resolve to
	// ErrAlreadyResolved instead of refunding twice.
	if err := w.store.DeleteExchange(ctx, requestID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAlreadyResolved
		}
		return nil, err
	}

	req.Status = models.ExchangeRejected
	updated, err := w.store.Apply(ctx, req.UserID, func(a *models.Account) error {
		a.Balance += req.Amount
		a.AddHistory("Exchange Rejected", fmt.Sprintf("%d refunded", req.Amount))
		return nil
	})
	if err != nil {
		// Refund must not be lost: put the request back so the authority can
		// retry the rejection.
		req.Status = models.ExchangePending
		if perr := w.store.PutExchange(ctx, req); perr != nil {
			w.log.Error().Err(perr).Str("request_id", req.ID).
				Msg("failed to restore request after refund failure")
		}
		return nil, fmt.Errorf("refund hold: %w", err)
	}

	utils.ExchangeResolved.WithLabelValues("rejected").Inc()
	w.log.Info().Str("request_id", req.ID).Int64("user_id", req.UserID).
		Int64("amount", req.Amount).Msg("exchange request rejected, hold refunded")
	w.notifier.Rejected(req, updated.Balance)
	return req, nil
}

// DeliverReceipt completes an approved request: the receipt is forwarded to
// the requester, the hold becomes permanent and the request leaves the
// pending set. Authority only.
func (w *Workflow) DeliverReceipt(ctx context.Context, actorID int64, requestID, receiptURL string) (*models.ExchangeRequest, error) {
	if actorID != w.ownerID {
		return nil, ErrNotAuthorized
	}
	req, err := w.store.GetExchange(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAlreadyResolved
		}
		return nil, err
	}
	if req.Status != models.ExchangeApproved {
		return nil, ErrAlreadyResolved
	}

	if err := w.store.DeleteExchange(ctx, requestID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAlreadyResolved
		}
		return nil, err
	}
	req.Status = models.ExchangeCompleted

	if _, err := w.store.Apply(ctx, req.UserID, func(a *models.Account) error {
		a.AddHistory("Exchange", fmt.Sprintf("Exchanged %d via %s", req.Amount, req.Channel.DisplayName()))
		return nil
	}); err != nil {
		w.log.Error().Err(err).Str("request_id", req.ID).Msg("failed to record exchange history")
	}

	utils.ExchangeResolved.WithLabelValues("completed").Inc()
	w.log.Info().Str("request_id", req.ID).Int64("user_id", req.UserID).
		Int64("amount", req.Amount).Msg("exchange request completed")
	w.notifier.Completed(req, receiptURL)
	return req, nil
}

// AwaitingReceipt returns the approved request for which the authority owes a
// receipt, if exactly one exists for routing an uploaded attachment.
func (w *Workflow) AwaitingReceipt(ctx context.Context) (*models.ExchangeRequest, error) {
	pending, err := w.store.PendingExchanges(ctx)
	if err != nil {
		return nil, err
	}
	var found *models.ExchangeRequest
	for _, req := range pending {
		if req.Status == models.ExchangeApproved {
			if found != nil {
				return nil, fmt.Errorf("exchange: multiple requests awaiting receipt")
			}
			found = req
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

// Pending lists all unresolved requests for the admin panel.
func (w *Workflow) Pending(ctx context.Context) ([]*models.ExchangeRequest, error) {
	return w.store.PendingExchanges(ctx)
}
