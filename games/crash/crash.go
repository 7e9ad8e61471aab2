package crash

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kyatplay/models"
	"kyatplay/store"
	"kyatplay/utils"
)

var (
	ErrInvalidStake        = errors.New("crash: stake must be a positive amount")
	ErrInsufficientBalance = errors.New("crash: insufficient balance")
	ErrRoundInProgress     = errors.New("crash: a round is already in progress")
	ErrNoActiveRound       = errors.New("crash: no active round")
	ErrRoundEnded          = errors.New("crash: round already ended")
)

// Outcome is the terminal resolution of a round. Exactly one terminal
// transition commits per round.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeCrashed
	OutcomeCashedOut
	OutcomeAborted
)

// Notifier receives the outward-facing round updates. Implementations must
// tolerate being called from timer goroutines and log their own failures;
// the engine never aborts a committed balance change over a notification.
type Notifier interface {
	CheckpointReached(r *Round, cp utils.CrashCheckpoint, potential int64)
	Crashed(r *Round, crashPoint float64)
	CashedOut(r *Round, multiplier float64, payout int64)
	Aborted(r *Round, refunded bool)
}

// Config is the round policy: the checkpoint ladder, the crash-draw range and
// the delay between checkpoints. Draw may be overridden for deterministic
// rounds; nil uses a uniform draw rounded to one decimal.
type Config struct {
	Checkpoints []utils.CrashCheckpoint
	CrashMin    float64
	CrashMax    float64
	StepDelay   time.Duration
	Draw        func(min, max float64) float64
}

// Round is one play-through of the escalating-multiplier game. The crash
// threshold is drawn at creation and stays hidden until the round ends.
type Round struct {
	UserID int64
	Stake  int64

	ladder []utils.CrashCheckpoint

	mu      sync.Mutex
	live    bool // set once the stake deduction has committed
	crashAt float64
	idx     int // index of the last emitted checkpoint, -1 before the first
	outcome Outcome
	timer   *time.Timer
}

// Outcome returns the terminal resolution, OutcomeNone while live.
func (r *Round) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

// LastMultiplier returns the multiplier of the last emitted checkpoint.
func (r *Round) LastMultiplier() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastMultiplierLocked()
}

// CrashPoint reveals the hidden threshold once the round has ended; it
// returns 0 for a live round.
func (r *Round) CrashPoint() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcome == OutcomeNone {
		return 0
	}
	return r.crashAt
}

// Manager owns every live round, at most one per account.
type Manager struct {
	store    store.Store
	notifier Notifier
	cfg      Config
	log      zerolog.Logger

	mu     sync.Mutex
	rounds map[int64]*Round

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewManager creates a round manager with the given policy.
func NewManager(st store.Store, n Notifier, cfg Config, log zerolog.Logger) *Manager {
	m := &Manager{
		store:    st,
		notifier: n,
		cfg:      cfg,
		log:      log,
		rounds:   make(map[int64]*Round),
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if m.cfg.Draw == nil {
		m.cfg.Draw = m.uniformDraw
	}
	return m
}

func (m *Manager) uniformDraw(min, max float64) float64 {
	m.randMu.Lock()
	defer m.randMu.Unlock()
	return math.Round((min+m.rand.Float64()*(max-min))*10) / 10
}

// ActiveRound returns the live round for the account, or nil.
func (m *Manager) ActiveRound(userID int64) *Round {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rounds[userID]
}

// StartRound validates and deducts the stake atomically, draws the hidden
// crash threshold and emits the first checkpoint. The deduction re-validates
// against the freshly read balance inside Apply, so a concurrent operation on
// the same account cannot push it negative. The registry entry is only a
// reservation until the deduction commits: a cash-out arriving in that window
// sees no active round, so no payout can ever precede its stake.
func (m *Manager) StartRound(ctx context.Context, userID, stake int64) (*Round, error) {
	if stake <= 0 {
		return nil, ErrInvalidStake
	}

	r := &Round{UserID: userID, Stake: stake, ladder: m.cfg.Checkpoints, idx: -1}

	m.mu.Lock()
	if _, exists := m.rounds[userID]; exists {
		m.mu.Unlock()
		return nil, ErrRoundInProgress
	}
	m.rounds[userID] = r
	m.mu.Unlock()

	_, err := m.store.Apply(ctx, userID, func(a *models.Account) error {
		if a.Balance < stake {
			return ErrInsufficientBalance
		}
		a.Balance -= stake
		a.GamesPlayed++
		return nil
	})
	if err != nil {
		// Nothing was deducted; void the reservation terminally so any holder
		// of the round pointer sees it ended.
		r.mu.Lock()
		r.endLocked(OutcomeAborted)
		r.mu.Unlock()
		m.unregister(userID)
		return nil, err
	}

	r.mu.Lock()
	r.crashAt = m.cfg.Draw(m.cfg.CrashMin, m.cfg.CrashMax)
	r.live = true
	r.mu.Unlock()

	utils.RoundsStarted.Inc()
	m.log.Info().Int64("user_id", userID).Int64("stake", stake).Msg("round started")

	// Emit the first checkpoint right away so a cash-out always has a
	// last-emitted multiplier to lock in.
	m.Advance(r)
	return r, nil
}

// Advance performs one step of the round: it either emits the next checkpoint
// and schedules the following step, or commits a terminal transition. It is
// driven by the step timer; calling it on an ended round is a no-op.
func (m *Manager) Advance(r *Round) (utils.CrashCheckpoint, bool) {
	r.mu.Lock()
	if !r.live || r.outcome != OutcomeNone {
		r.mu.Unlock()
		return utils.CrashCheckpoint{}, true
	}

	next := r.idx + 1
	if next >= len(m.cfg.Checkpoints) {
		// Ladder exhausted without crashing: resolve as a cash-out at the
		// final multiplier rather than leaving the round dangling.
		mult := r.lastMultiplierLocked()
		r.endLocked(OutcomeCashedOut)
		r.mu.Unlock()
		m.settleCashOut(r, mult, true)
		return utils.CrashCheckpoint{}, true
	}

	cp := m.cfg.Checkpoints[next]
	if cp.Multiplier >= r.crashAt {
		crashAt := r.crashAt
		r.endLocked(OutcomeCrashed)
		r.mu.Unlock()
		m.settleCrash(r, crashAt)
		return utils.CrashCheckpoint{}, true
	}

	r.idx = next
	r.timer = time.AfterFunc(m.cfg.StepDelay, func() { m.Advance(r) })
	r.mu.Unlock()

	m.notifier.CheckpointReached(r, cp, int64(float64(r.Stake)*cp.Multiplier))
	return cp, false
}

// CashOut ends the round at the last emitted checkpoint and credits the
// payout. It races the step timer; whichever terminal transition takes the
// round mutex first wins, and the loser sees ErrRoundEnded.
func (m *Manager) CashOut(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	r := m.rounds[userID]
	m.mu.Unlock()
	if r == nil {
		return 0, ErrNoActiveRound
	}

	r.mu.Lock()
	if !r.live {
		// Stake deduction has not committed yet; the round does not exist for
		// payout purposes.
		r.mu.Unlock()
		return 0, ErrNoActiveRound
	}
	if r.outcome != OutcomeNone {
		r.mu.Unlock()
		return 0, ErrRoundEnded
	}
	mult := r.lastMultiplierLocked()
	r.endLocked(OutcomeCashedOut)
	r.mu.Unlock()

	return m.settleCashOutCtx(ctx, r, mult, false)
}

// Abort force-ends a live round and refunds the stake. Used when the engine
// cannot continue a round (persistence fault, shutdown).
func (m *Manager) Abort(ctx context.Context, userID int64) error {
	m.mu.Lock()
	r := m.rounds[userID]
	m.mu.Unlock()
	if r == nil {
		return ErrNoActiveRound
	}

	r.mu.Lock()
	if !r.live {
		r.mu.Unlock()
		return ErrNoActiveRound
	}
	if r.outcome != OutcomeNone {
		r.mu.Unlock()
		return ErrRoundEnded
	}
	r.endLocked(OutcomeAborted)
	r.mu.Unlock()
	m.unregister(userID)

	refunded := true
	_, err := m.store.Apply(ctx, userID, func(a *models.Account) error {
		a.Balance += r.Stake
		a.AddHistory("Crash Refund", fmt.Sprintf("Round aborted, %d refunded", r.Stake))
		return nil
	})
	if err != nil {
		refunded = false
		m.log.Error().Err(err).Int64("user_id", userID).Int64("stake", r.Stake).
			Msg("failed to refund aborted round")
	}
	utils.RoundsAborted.Inc()
	m.notifier.Aborted(r, refunded)
	if err != nil {
		return fmt.Errorf("abort refund: %w", err)
	}
	return nil
}

// Shutdown aborts every live round, refunding stakes, so a process restart
// never silently eats a staked bet.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	ids := make([]int64, 0, len(m.rounds))
	for id := range m.rounds {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Abort(ctx, id); err != nil && !errors.Is(err, ErrRoundEnded) && !errors.Is(err, ErrNoActiveRound) {
			m.log.Error().Err(err).Int64("user_id", id).Msg("shutdown abort failed")
		}
	}
}

func (m *Manager) settleCrash(r *Round, crashAt float64) {
	m.unregister(r.UserID)
	utils.RoundsCrashed.Inc()
	m.log.Info().Int64("user_id", r.UserID).Int64("stake", r.Stake).
		Float64("crash_point", crashAt).Msg("round crashed")

	// Stake was already deducted at round start; a loss only records history.
	_, err := m.store.Apply(context.Background(), r.UserID, func(a *models.Account) error {
		a.AddHistory("Crash Loss", fmt.Sprintf("Crashed at %.1fx, lost %d", crashAt, r.Stake))
		return nil
	})
	if err != nil {
		m.log.Error().Err(err).Int64("user_id", r.UserID).Msg("failed to record crash history")
	}
	m.notifier.Crashed(r, crashAt)
}

func (m *Manager) settleCashOut(r *Round, mult float64, auto bool) {
	if _, err := m.settleCashOutCtx(context.Background(), r, mult, auto); err != nil {
		m.log.Error().Err(err).Int64("user_id", r.UserID).Msg("auto cash-out settlement failed")
	}
}

func (m *Manager) settleCashOutCtx(ctx context.Context, r *Round, mult float64, auto bool) (int64, error) {
	m.unregister(r.UserID)
	payout := int64(float64(r.Stake) * mult)

	_, err := m.store.Apply(ctx, r.UserID, func(a *models.Account) error {
		a.Balance += payout
		a.AddHistory("Crash Win", fmt.Sprintf("Cashed out at %.1fx, won %d", mult, payout))
		return nil
	})
	if err != nil {
		// The round is terminally cashed out but the credit did not commit.
		// Surface the failure instead of acknowledging a payout that was
		// never written.
		m.log.Error().Err(err).Int64("user_id", r.UserID).Int64("payout", payout).
			Msg("failed to credit cash-out")
		return 0, fmt.Errorf("credit cash-out: %w", err)
	}

	utils.RoundsCashedOut.Inc()
	m.log.Info().Int64("user_id", r.UserID).Float64("multiplier", mult).
		Int64("payout", payout).Bool("auto", auto).Msg("round cashed out")
	m.notifier.CashedOut(r, mult, payout)
	return payout, nil
}

func (m *Manager) unregister(userID int64) {
	m.mu.Lock()
	delete(m.rounds, userID)
	m.mu.Unlock()
}

// lastMultiplierLocked assumes r.mu is held. Before the first checkpoint the
// ladder's opening multiplier applies.
func (r *Round) lastMultiplierLocked() float64 {
	if r.idx < 0 {
		return 1.0
	}
	return r.ladder[r.idx].Multiplier
}

// endLocked commits the terminal transition; r.mu must be held. Stopping the
// timer here is what makes the cash-out/crash race resolve to one winner.
func (r *Round) endLocked(out Outcome) {
	r.outcome = out
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
