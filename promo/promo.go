package promo

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kyatplay/store"
)

var (
	ErrNotAuthorized = errors.New("promo: authority-only action")
	ErrNoAccounts    = errors.New("promo: no accounts yet")
	ErrNoActiveEvent = errors.New("promo: no active event")
	ErrEventDone     = errors.New("promo: event already completed")
	ErrEventFull     = errors.New("promo: event participant limit reached")
	ErrEventRunning  = errors.New("promo: an event is already active")
	ErrNoChannels    = errors.New("promo: at least one channel link is required")
)

// Notifier delivers bonus notifications. A failed delivery never rolls back
// the credit that triggered it.
type Notifier interface {
	ReferralBonus(referrerID, amount int64, referralCount int) error
	JackpotWin(userID, amount int64) error
}

// Config is the one-shot bonus policy.
type Config struct {
	ReferralBonus  int64
	JackpotWinners int
	JackpotReward  int64
	EventReward    int64
	EventLimit     int
	MaxChannels    int
}

// Distributor grants referral, jackpot and event bonuses.
type Distributor struct {
	store    store.Store
	notifier Notifier
	ownerID  int64
	cfg      Config
	log      zerolog.Logger

	// eventMu serializes event transitions so the participant-limit check,
	// the grant and the participant record commit as one step.
	eventMu sync.Mutex

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewDistributor creates a distributor; ownerID is the authority allowed to
// run jackpots and manage events. src may be nil for a time-seeded source.
func NewDistributor(st store.Store, n Notifier, ownerID int64, cfg Config, log zerolog.Logger, src rand.Source) *Distributor {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	if cfg.MaxChannels == 0 {
		cfg.MaxChannels = 10
	}
	return &Distributor{
		store:    st,
		notifier: n,
		ownerID:  ownerID,
		cfg:      cfg,
		log:      log,
		rand:     rand.New(src),
	}
}
