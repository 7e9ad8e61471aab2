package spin

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kyatplay/models"
	"kyatplay/store"
	"kyatplay/utils"
)

// ErrNoSpinsLeft means every spin-credit source is exhausted for today.
var ErrNoSpinsLeft = errors.New("spin: daily spin limit reached")

// CreditSource names which spin credit paid for a spin, checked in priority
// order: unlimited, bonus, daily.
type CreditSource string

const (
	SourceUnlimited CreditSource = "unlimited"
	SourceBonus     CreditSource = "bonus"
	SourceDaily     CreditSource = "daily"
)

// Result is the outcome of one spin.
type Result struct {
	Reward    int64
	Source    CreditSource
	Balance   int64
	SpinsUsed int
	Limit     int
}

// Config is the reward policy.
type Config struct {
	Bands        []utils.SpinBand
	DailyLimit   int
	UnlimitedIDs []int64
}

// Engine draws probability-weighted rewards for the simple spin game.
type Engine struct {
	store store.Store
	cfg   Config
	log   zerolog.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewEngine creates a spin engine. src may be nil for a time-seeded source.
func NewEngine(st store.Store, cfg Config, log zerolog.Logger, src rand.Source) *Engine {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Engine{store: st, cfg: cfg, log: log, rand: rand.New(src)}
}

// Spin consumes one spin credit and credits a drawn reward. The credit check
// and the balance credit commit in one atomic account update.
func (e *Engine) Spin(ctx context.Context, userID int64) (*Result, error) {
	today := time.Now().Format("2006-01-02")
	reward := e.drawReward()

	var res Result
	_, err := e.store.Apply(ctx, userID, func(a *models.Account) error {
		// A stored count from an earlier day reads as zero today.
		used := a.SpinsToday
		if a.LastSpinDate != today {
			used = 0
		}

		switch {
		case e.unlimited(userID):
			res.Source = SourceUnlimited
			res.SpinsUsed = used
		case a.BonusSpins > 0:
			a.BonusSpins--
			res.Source = SourceBonus
			res.SpinsUsed = used
		default:
			if used >= e.cfg.DailyLimit {
				return ErrNoSpinsLeft
			}
			a.SpinsToday = used + 1
			a.LastSpinDate = today
			res.Source = SourceDaily
			res.SpinsUsed = a.SpinsToday
		}

		a.Balance += reward
		a.AddHistory("Spin", fmt.Sprintf("Won %d", reward))
		res.Reward = reward
		res.Balance = a.Balance
		res.Limit = e.cfg.DailyLimit
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.Spins.WithLabelValues(string(res.Source)).Inc()
	e.log.Info().Int64("user_id", userID).Int64("reward", res.Reward).
		Str("source", string(res.Source)).Msg("spin")
	return &res, nil
}

// SpinsRemaining reports today's remaining daily quota for display.
func (e *Engine) SpinsRemaining(a *models.Account) int {
	today := time.Now().Format("2006-01-02")
	used := a.SpinsToday
	if a.LastSpinDate != today {
		used = 0
	}
	remaining := e.cfg.DailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (e *Engine) unlimited(userID int64) bool {
	for _, id := range e.cfg.UnlimitedIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// drawReward selects a band by cumulative probability against one uniform
// draw, then a uniform integer within the band. If no threshold is reached
// (the configured probabilities need not sum to 1) the first band applies.
func (e *Engine) drawReward() int64 {
	e.randMu.Lock()
	defer e.randMu.Unlock()

	roll := e.rand.Float64()
	cumulative := 0.0
	for _, band := range e.cfg.Bands {
		cumulative += band.Prob
		if roll <= cumulative {
			return e.randInBandLocked(band)
		}
	}
	return e.randInBandLocked(e.cfg.Bands[0])
}

func (e *Engine) randInBandLocked(b utils.SpinBand) int64 {
	if b.Max <= b.Min {
		return b.Min
	}
	return b.Min + e.rand.Int63n(b.Max-b.Min+1)
}
