package promo

import (
	"context"
	"fmt"

	"kyatplay/models"
	"kyatplay/utils"
)

// ApplyReferral links a new account to its referrer and grants the referrer a
// fixed bonus. Idempotent per referred account: once referred_by is set,
// replays are no-ops. Self-referrals are ignored.
func (d *Distributor) ApplyReferral(ctx context.Context, newUserID, referrerID int64) (bool, error) {
	if newUserID == referrerID || referrerID == 0 {
		return false, nil
	}

	applied := false
	_, err := d.store.Apply(ctx, newUserID, func(a *models.Account) error {
		if a.ReferredBy != nil {
			return nil
		}
		ref := referrerID
		a.ReferredBy = &ref
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("link referral: %w", err)
	}
	if !applied {
		return false, nil
	}

	updated, err := d.store.Apply(ctx, referrerID, func(a *models.Account) error {
		a.Balance += d.cfg.ReferralBonus
		a.ReferralCount++
		a.AddHistory("Referral", fmt.Sprintf("Earned %d for inviting a friend", d.cfg.ReferralBonus))
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("credit referrer: %w", err)
	}

	utils.ReferralBonuses.Inc()
	d.log.Info().Int64("user_id", newUserID).Int64("referrer_id", referrerID).
		Int64("bonus", d.cfg.ReferralBonus).Msg("referral applied")

	if err := d.notifier.ReferralBonus(referrerID, d.cfg.ReferralBonus, updated.ReferralCount); err != nil {
		d.log.Warn().Err(err).Int64("referrer_id", referrerID).Msg("referral notification failed")
	}
	return true, nil
}
