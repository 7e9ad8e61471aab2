package promo

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyatplay/models"
	"kyatplay/store"
)

const ownerID = int64(999)

type recordingNotifier struct {
	referralCalls int
	jackpotCalls  int
	fail          bool
}

func (n *recordingNotifier) ReferralBonus(_, _ int64, _ int) error {
	n.referralCalls++
	if n.fail {
		return errors.New("delivery failed")
	}
	return nil
}

func (n *recordingNotifier) JackpotWin(_, _ int64) error {
	n.jackpotCalls++
	if n.fail {
		return errors.New("delivery failed")
	}
	return nil
}

func newTestDistributor(st store.Store, cfg Config) (*Distributor, *recordingNotifier) {
	n := &recordingNotifier{}
	return NewDistributor(st, n, ownerID, cfg, zerolog.Nop(), rand.NewSource(1)), n
}

func seed(t *testing.T, st store.Store, userID, balance int64) {
	t.Helper()
	_, err := st.Apply(context.Background(), userID, func(a *models.Account) error {
		a.Balance = balance
		return nil
	})
	require.NoError(t, err)
}

func balanceOf(t *testing.T, st store.Store, userID int64) int64 {
	t.Helper()
	acct, err := st.Get(context.Background(), userID)
	require.NoError(t, err)
	return acct.Balance
}

type failingEventStore struct {
	store.Store
	fail bool
}

func (s *failingEventStore) SetEvent(ctx context.Context, ev *models.Event) error {
	if s.fail {
		return errors.New("store unavailable")
	}
	return s.Store.SetEvent(ctx, ev)
}

func TestApplyReferral(t *testing.T) {
	ctx := context.Background()
	cfg := Config{ReferralBonus: 100}

	t.Run("credits the referrer once", func(t *testing.T) {
		st := store.NewMemory()
		seed(t, st, 10, 0)
		d, n := newTestDistributor(st, cfg)

		applied, err := d.ApplyReferral(ctx, 1, 10)

		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, int64(100), balanceOf(t, st, 10))
		assert.Equal(t, 1, n.referralCalls)

		referrer, err := st.Get(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, referrer.ReferralCount)

		referred, err := st.Get(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, referred.ReferredBy)
		assert.Equal(t, int64(10), *referred.ReferredBy)
	})

	t.Run("a replay is a no-op", func(t *testing.T) {
		st := store.NewMemory()
		seed(t, st, 10, 0)
		d, _ := newTestDistributor(st, cfg)

		_, err := d.ApplyReferral(ctx, 1, 10)
		require.NoError(t, err)

		applied, err := d.ApplyReferral(ctx, 1, 10)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, int64(100), balanceOf(t, st, 10), "no second credit")
	})

	t.Run("a different referrer cannot overwrite the link", func(t *testing.T) {
		st := store.NewMemory()
		seed(t, st, 10, 0)
		seed(t, st, 20, 0)
		d, _ := newTestDistributor(st, cfg)

		_, err := d.ApplyReferral(ctx, 1, 10)
		require.NoError(t, err)

		applied, err := d.ApplyReferral(ctx, 1, 20)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Zero(t, balanceOf(t, st, 20))
	})

	t.Run("self-referral is ignored", func(t *testing.T) {
		st := store.NewMemory()
		seed(t, st, 1, 0)
		d, _ := newTestDistributor(st, cfg)

		applied, err := d.ApplyReferral(ctx, 1, 1)

		require.NoError(t, err)
		assert.False(t, applied)
		assert.Zero(t, balanceOf(t, st, 1))
	})

	t.Run("a failed notification keeps the credit", func(t *testing.T) {
		st := store.NewMemory()
		seed(t, st, 10, 0)
		d, n := newTestDistributor(st, cfg)
		n.fail = true

		applied, err := d.ApplyReferral(ctx, 1, 10)

		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, int64(100), balanceOf(t, st, 10))
	})
}

func TestRunJackpot(t *testing.T) {
	ctx := context.Background()
	cfg := Config{JackpotWinners: 5, JackpotReward: 5000}

	t.Run("credits fewer winners than configured when accounts are scarce", func(t *testing.T) {
		st := store.NewMemory()
		for id := int64(1); id <= 3; id++ {
			seed(t, st, id, 0)
		}
		d, n := newTestDistributor(st, cfg)

		winners, err := d.RunJackpot(ctx, ownerID)

		require.NoError(t, err)
		require.Len(t, winners, 3)
		assert.Equal(t, 3, n.jackpotCalls)

		seen := make(map[int64]bool)
		for _, w := range winners {
			assert.False(t, seen[w.UserID], "no duplicate winners")
			seen[w.UserID] = true
			assert.Equal(t, int64(5000), w.Amount)
			assert.Equal(t, int64(5000), balanceOf(t, st, w.UserID), "each winner credited exactly once")
		}
	})

	t.Run("picks the configured number of winners from a larger pool", func(t *testing.T) {
		st := store.NewMemory()
		for id := int64(1); id <= 20; id++ {
			seed(t, st, id, 0)
		}
		d, _ := newTestDistributor(st, cfg)

		winners, err := d.RunJackpot(ctx, ownerID)

		require.NoError(t, err)
		assert.Len(t, winners, 5)

		var credited int
		for id := int64(1); id <= 20; id++ {
			if balanceOf(t, st, id) > 0 {
				credited++
			}
		}
		assert.Equal(t, 5, credited)
	})

	t.Run("requires the authority", func(t *testing.T) {
		st := store.NewMemory()
		seed(t, st, 1, 0)
		d, _ := newTestDistributor(st, cfg)

		_, err := d.RunJackpot(ctx, 1)
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("fails with no accounts", func(t *testing.T) {
		st := store.NewMemory()
		d, _ := newTestDistributor(st, cfg)

		_, err := d.RunJackpot(ctx, ownerID)
		assert.ErrorIs(t, err, ErrNoAccounts)
	})

	t.Run("failed notifications keep the credits", func(t *testing.T) {
		st := store.NewMemory()
		seed(t, st, 1, 0)
		d, n := newTestDistributor(st, cfg)
		n.fail = true

		winners, err := d.RunJackpot(ctx, ownerID)

		require.NoError(t, err)
		require.Len(t, winners, 1)
		assert.Equal(t, int64(5000), balanceOf(t, st, winners[0].UserID))
	})
}

func TestEvent(t *testing.T) {
	ctx := context.Background()
	cfg := Config{EventReward: 200, EventLimit: 2}

	t.Run("start rejects a second concurrent event", func(t *testing.T) {
		st := store.NewMemory()
		d, _ := newTestDistributor(st, cfg)

		_, err := d.StartEvent(ctx, ownerID, []string{"https://t.me/one"})
		require.NoError(t, err)

		_, err = d.StartEvent(ctx, ownerID, []string{"https://t.me/two"})
		assert.ErrorIs(t, err, ErrEventRunning)
	})

	t.Run("start caps the channel list", func(t *testing.T) {
		st := store.NewMemory()
		d, _ := newTestDistributor(st, Config{EventReward: 200, EventLimit: 2, MaxChannels: 3})

		channels := []string{"a", "b", "c", "d", "e"}
		ev, err := d.StartEvent(ctx, ownerID, channels)

		require.NoError(t, err)
		assert.Len(t, ev.Channels, 3)
	})

	t.Run("start requires channels and authority", func(t *testing.T) {
		st := store.NewMemory()
		d, _ := newTestDistributor(st, cfg)

		_, err := d.StartEvent(ctx, ownerID, nil)
		assert.ErrorIs(t, err, ErrNoChannels)

		_, err = d.StartEvent(ctx, 1, []string{"a"})
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("a new event resets completion flags", func(t *testing.T) {
		st := store.NewMemory()
		d, _ := newTestDistributor(st, cfg)

		_, err := d.StartEvent(ctx, ownerID, []string{"a"})
		require.NoError(t, err)
		_, err = d.CompleteEvent(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, d.CancelEvent(ctx, ownerID))

		_, err = d.StartEvent(ctx, ownerID, []string{"b"})
		require.NoError(t, err)

		_, err = d.CompleteEvent(ctx, 1)
		assert.NoError(t, err, "flag reset lets the account earn the new event")
	})

	t.Run("complete pays once per account", func(t *testing.T) {
		st := store.NewMemory()
		d, _ := newTestDistributor(st, cfg)
		_, err := d.StartEvent(ctx, ownerID, []string{"a"})
		require.NoError(t, err)

		reward, err := d.CompleteEvent(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(200), reward)
		assert.Equal(t, int64(200), balanceOf(t, st, 1))

		_, err = d.CompleteEvent(ctx, 1)
		assert.ErrorIs(t, err, ErrEventDone)
		assert.Equal(t, int64(200), balanceOf(t, st, 1))
	})

	t.Run("complete stops at the participant limit", func(t *testing.T) {
		st := store.NewMemory()
		d, _ := newTestDistributor(st, cfg)
		_, err := d.StartEvent(ctx, ownerID, []string{"a"})
		require.NoError(t, err)

		_, err = d.CompleteEvent(ctx, 1)
		require.NoError(t, err)
		_, err = d.CompleteEvent(ctx, 2)
		require.NoError(t, err)

		_, err = d.CompleteEvent(ctx, 3)
		assert.ErrorIs(t, err, ErrEventFull)
		assert.Zero(t, balanceOf(t, st, 3))
	})

	t.Run("concurrent completions never pay past the limit", func(t *testing.T) {
		st := store.NewMemory()
		d, _ := newTestDistributor(st, Config{EventReward: 200, EventLimit: 1})
		_, err := d.StartEvent(ctx, ownerID, []string{"a"})
		require.NoError(t, err)

		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for id := int64(1); id <= 2; id++ {
			wg.Add(1)
			go func(userID int64) {
				defer wg.Done()
				_, err := d.CompleteEvent(ctx, userID)
				errs <- err
			}(id)
		}
		wg.Wait()
		close(errs)

		var paid, full int
		for err := range errs {
			switch {
			case err == nil:
				paid++
			case errors.Is(err, ErrEventFull):
				full++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, paid)
		assert.Equal(t, 1, full)

		var credited int64
		for id := int64(1); id <= 2; id++ {
			credited += balanceOf(t, st, id)
		}
		assert.Equal(t, int64(200), credited, "exactly one reward across both accounts")
	})

	t.Run("a failed slot reservation grants nothing", func(t *testing.T) {
		st := store.NewMemory()
		failing := &failingEventStore{Store: st}
		d := NewDistributor(failing, &recordingNotifier{}, ownerID, cfg, zerolog.Nop(), rand.NewSource(1))
		_, err := d.StartEvent(ctx, ownerID, []string{"a"})
		require.NoError(t, err)

		failing.fail = true
		_, err = d.CompleteEvent(ctx, 1)

		require.Error(t, err)
		assert.Zero(t, balanceOf(t, st, 1))

		ev, err := st.ActiveEvent(ctx)
		require.NoError(t, err)
		assert.Empty(t, ev.Participants, "no slot consumed by the failed completion")
	})

	t.Run("complete fails without an active event", func(t *testing.T) {
		st := store.NewMemory()
		d, _ := newTestDistributor(st, cfg)

		_, err := d.CompleteEvent(ctx, 1)
		assert.ErrorIs(t, err, ErrNoActiveEvent)
	})

	t.Run("cancel clears the event", func(t *testing.T) {
		st := store.NewMemory()
		d, _ := newTestDistributor(st, cfg)
		_, err := d.StartEvent(ctx, ownerID, []string{"a"})
		require.NoError(t, err)

		require.NoError(t, d.CancelEvent(ctx, ownerID))

		ev, err := d.ActiveEvent(ctx)
		require.NoError(t, err)
		assert.Nil(t, ev)

		assert.ErrorIs(t, d.CancelEvent(ctx, ownerID), ErrNoActiveEvent)
	})
}
