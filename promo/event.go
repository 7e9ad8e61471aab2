package promo

import (
	"context"
	"fmt"
	"time"

	"kyatplay/models"
)

// StartEvent opens a channel-join event. Only one event runs at a time; every
// account's completion flag is reset so the new event can be earned once.
func (d *Distributor) StartEvent(ctx context.Context, actorID int64, channels []string) (*models.Event, error) {
	if actorID != d.ownerID {
		return nil, ErrNotAuthorized
	}
	if len(channels) == 0 {
		return nil, ErrNoChannels
	}
	d.eventMu.Lock()
	defer d.eventMu.Unlock()
	if len(channels) > d.cfg.MaxChannels {
		channels = channels[:d.cfg.MaxChannels]
	}

	current, err := d.store.ActiveEvent(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, ErrEventRunning
	}

	ev := &models.Event{
		Channels:         channels,
		ParticipantLimit: d.cfg.EventLimit,
		CreatedAt:        time.Now(),
	}
	if err := d.store.SetEvent(ctx, ev); err != nil {
		return nil, err
	}

	accounts, err := d.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	for _, a := range accounts {
		if !a.EventDone {
			continue
		}
		if _, err := d.store.Apply(ctx, a.UserID, func(acc *models.Account) error {
			acc.EventDone = false
			return nil
		}); err != nil {
			d.log.Error().Err(err).Int64("user_id", a.UserID).Msg("failed to reset event flag")
		}
	}

	d.log.Info().Int("channels", len(channels)).Msg("event started")
	return ev, nil
}

// CancelEvent clears the active event.
func (d *Distributor) CancelEvent(ctx context.Context, actorID int64) error {
	if actorID != d.ownerID {
		return ErrNotAuthorized
	}
	d.eventMu.Lock()
	defer d.eventMu.Unlock()
	current, err := d.store.ActiveEvent(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrNoActiveEvent
	}
	return d.store.SetEvent(ctx, nil)
}

// ActiveEvent returns the running event, nil when none.
func (d *Distributor) ActiveEvent(ctx context.Context) (*models.Event, error) {
	return d.store.ActiveEvent(ctx)
}

// CompleteEvent grants the event reward once per account, up to the
// participant limit. The participant slot is reserved before the grant
// commits; a failed grant releases it, so a persistence fault can at worst
// under-admit, never pay past the limit.
func (d *Distributor) CompleteEvent(ctx context.Context, userID int64) (int64, error) {
	d.eventMu.Lock()
	defer d.eventMu.Unlock()

	ev, err := d.store.ActiveEvent(ctx)
	if err != nil {
		return 0, err
	}
	if ev == nil {
		return 0, ErrNoActiveEvent
	}
	if ev.ParticipantLimit > 0 && len(ev.Participants) >= ev.ParticipantLimit {
		return 0, ErrEventFull
	}

	ev.Participants = append(ev.Participants, userID)
	if err := d.store.SetEvent(ctx, ev); err != nil {
		return 0, fmt.Errorf("reserve event slot: %w", err)
	}

	_, err = d.store.Apply(ctx, userID, func(a *models.Account) error {
		if a.EventDone {
			return ErrEventDone
		}
		a.EventDone = true
		a.Balance += d.cfg.EventReward
		a.AddHistory("Event", fmt.Sprintf("Earned %d for completing the event", d.cfg.EventReward))
		return nil
	})
	if err != nil {
		ev.Participants = ev.Participants[:len(ev.Participants)-1]
		if serr := d.store.SetEvent(ctx, ev); serr != nil {
			d.log.Error().Err(serr).Int64("user_id", userID).Msg("failed to release event slot")
		}
		return 0, err
	}

	d.log.Info().Int64("user_id", userID).Int64("reward", d.cfg.EventReward).Msg("event completed")
	return d.cfg.EventReward, nil
}
