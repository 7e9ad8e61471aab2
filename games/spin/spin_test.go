package spin

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyatplay/models"
	"kyatplay/store"
	"kyatplay/utils"
)

func newTestEngine(st store.Store, cfg Config) *Engine {
	if cfg.Bands == nil {
		cfg.Bands = utils.DefaultSpinBands
	}
	if cfg.DailyLimit == 0 {
		cfg.DailyLimit = 5
	}
	return NewEngine(st, cfg, zerolog.Nop(), rand.NewSource(1))
}

func TestSpin(t *testing.T) {
	ctx := context.Background()

	t.Run("credits a reward within the configured bands", func(t *testing.T) {
		st := store.NewMemory()
		e := newTestEngine(st, Config{})

		res, err := e.Spin(ctx, 1)

		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Reward, int64(1))
		assert.LessOrEqual(t, res.Reward, int64(100))
		assert.Equal(t, res.Reward, res.Balance)
		assert.Equal(t, SourceDaily, res.Source)
		assert.Equal(t, 1, res.SpinsUsed)
	})

	t.Run("exhausts the daily quota", func(t *testing.T) {
		st := store.NewMemory()
		e := newTestEngine(st, Config{DailyLimit: 3})

		for i := 1; i <= 3; i++ {
			res, err := e.Spin(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, i, res.SpinsUsed)
		}

		_, err := e.Spin(ctx, 1)
		assert.ErrorIs(t, err, ErrNoSpinsLeft)

		acct, err := st.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, acct.SpinsToday, "rejected spin does not consume quota")
	})

	t.Run("resets the quota on a new calendar day", func(t *testing.T) {
		st := store.NewMemory()
		e := newTestEngine(st, Config{DailyLimit: 2})

		_, err := st.Apply(ctx, 1, func(a *models.Account) error {
			a.SpinsToday = 2
			a.LastSpinDate = time.Now().AddDate(0, 0, -1).Format("2006-01-02")
			return nil
		})
		require.NoError(t, err)

		res, err := e.Spin(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, SourceDaily, res.Source)
		assert.Equal(t, 1, res.SpinsUsed)
	})

	t.Run("bonus spins are consumed before the daily quota", func(t *testing.T) {
		st := store.NewMemory()
		e := newTestEngine(st, Config{DailyLimit: 1})

		_, err := st.Apply(ctx, 1, func(a *models.Account) error {
			a.BonusSpins = 2
			return nil
		})
		require.NoError(t, err)

		res, err := e.Spin(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, SourceBonus, res.Source)

		acct, err := st.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, acct.BonusSpins)
		assert.Zero(t, acct.SpinsToday, "bonus spin leaves the daily quota untouched")
	})

	t.Run("bonus spins report today's usage, not a stale count", func(t *testing.T) {
		st := store.NewMemory()
		e := newTestEngine(st, Config{DailyLimit: 5})

		_, err := st.Apply(ctx, 1, func(a *models.Account) error {
			a.BonusSpins = 1
			a.SpinsToday = 3
			a.LastSpinDate = time.Now().AddDate(0, 0, -1).Format("2006-01-02")
			return nil
		})
		require.NoError(t, err)

		res, err := e.Spin(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, SourceBonus, res.Source)
		assert.Zero(t, res.SpinsUsed, "yesterday's count does not leak into today")
	})

	t.Run("unlimited accounts report today's usage, not a stale count", func(t *testing.T) {
		st := store.NewMemory()
		e := newTestEngine(st, Config{DailyLimit: 5, UnlimitedIDs: []int64{7}})

		_, err := st.Apply(ctx, 7, func(a *models.Account) error {
			a.SpinsToday = 4
			a.LastSpinDate = time.Now().AddDate(0, 0, -1).Format("2006-01-02")
			return nil
		})
		require.NoError(t, err)

		res, err := e.Spin(ctx, 7)

		require.NoError(t, err)
		assert.Equal(t, SourceUnlimited, res.Source)
		assert.Zero(t, res.SpinsUsed)
	})

	t.Run("unlimited accounts never hit the quota", func(t *testing.T) {
		st := store.NewMemory()
		e := newTestEngine(st, Config{DailyLimit: 1, UnlimitedIDs: []int64{7}})

		for i := 0; i < 5; i++ {
			res, err := e.Spin(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, SourceUnlimited, res.Source)
		}
	})

	t.Run("appends a history entry", func(t *testing.T) {
		st := store.NewMemory()
		e := newTestEngine(st, Config{})

		_, err := e.Spin(ctx, 1)
		require.NoError(t, err)

		acct, err := st.Get(ctx, 1)
		require.NoError(t, err)
		require.Len(t, acct.History, 1)
		assert.Equal(t, "Spin", acct.History[0].Action)
	})
}

func TestDrawReward(t *testing.T) {
	st := store.NewMemory()

	t.Run("every draw lands inside a configured band", func(t *testing.T) {
		e := newTestEngine(st, Config{})

		inBand := func(v int64) bool {
			for _, b := range utils.DefaultSpinBands {
				if v >= b.Min && v <= b.Max {
					return true
				}
			}
			return false
		}
		for i := 0; i < 1000; i++ {
			assert.True(t, inBand(e.drawReward()))
		}
	})

	t.Run("falls back to the first band when no threshold is reached", func(t *testing.T) {
		e := newTestEngine(st, Config{Bands: []utils.SpinBand{
			{Min: 5, Max: 9, Prob: 0.0},
			{Min: 50, Max: 60, Prob: 0.0},
		}})

		for i := 0; i < 100; i++ {
			v := e.drawReward()
			assert.GreaterOrEqual(t, v, int64(5))
			assert.LessOrEqual(t, v, int64(9))
		}
	})

	t.Run("a degenerate band returns its minimum", func(t *testing.T) {
		e := newTestEngine(st, Config{Bands: []utils.SpinBand{{Min: 100, Max: 100, Prob: 1.0}}})
		assert.Equal(t, int64(100), e.drawReward())
	})
}

func TestSpinsRemaining(t *testing.T) {
	e := newTestEngine(store.NewMemory(), Config{DailyLimit: 5})
	today := time.Now().Format("2006-01-02")

	assert.Equal(t, 5, e.SpinsRemaining(&models.Account{}))
	assert.Equal(t, 3, e.SpinsRemaining(&models.Account{SpinsToday: 2, LastSpinDate: today}))
	assert.Equal(t, 0, e.SpinsRemaining(&models.Account{SpinsToday: 9, LastSpinDate: today}))
	assert.Equal(t, 5, e.SpinsRemaining(&models.Account{SpinsToday: 5, LastSpinDate: "2020-01-01"}))
}
