package promo

import (
	"context"
	"fmt"

	"kyatplay/models"
	"kyatplay/utils"
)

// Winner is one credited jackpot recipient.
type Winner struct {
	UserID   int64
	Username string
	Amount   int64
}

// RunJackpot credits a fixed reward to min(configured winners, account count)
// distinct accounts drawn uniformly without replacement. A winner that cannot
// be notified still keeps the credit, and one failed credit does not stop the
// remaining winners.
func (d *Distributor) RunJackpot(ctx context.Context, actorID int64) ([]Winner, error) {
	if actorID != d.ownerID {
		return nil, ErrNotAuthorized
	}

	accounts, err := d.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}

	d.randMu.Lock()
	d.rand.Shuffle(len(accounts), func(i, j int) {
		accounts[i], accounts[j] = accounts[j], accounts[i]
	})
	d.randMu.Unlock()

	count := d.cfg.JackpotWinners
	if count > len(accounts) {
		count = len(accounts)
	}

	winners := make([]Winner, 0, count)
	for _, a := range accounts[:count] {
		userID := a.UserID
		updated, err := d.store.Apply(ctx, userID, func(acc *models.Account) error {
			acc.Balance += d.cfg.JackpotReward
			acc.AddHistory("Jackpot Win", fmt.Sprintf("Received %d", d.cfg.JackpotReward))
			return nil
		})
		if err != nil {
			d.log.Error().Err(err).Int64("user_id", userID).Msg("jackpot credit failed")
			continue
		}

		winners = append(winners, Winner{UserID: userID, Username: updated.Username, Amount: d.cfg.JackpotReward})
		utils.JackpotWinners.Inc()

		if err := d.notifier.JackpotWin(userID, d.cfg.JackpotReward); err != nil {
			d.log.Warn().Err(err).Int64("user_id", userID).Msg("jackpot notification failed")
		}
	}

	d.log.Info().Int("winners", len(winners)).Int64("reward", d.cfg.JackpotReward).Msg("jackpot distributed")
	return winners, nil
}
