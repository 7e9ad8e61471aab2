package cogs

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"kyatplay/games/spin"
)

func (b *Bot) handleSpinCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, username := interactionUserID(i)
	if userID == 0 {
		return
	}

	res, err := b.Spin.Spin(b.ctx(), userID)
	if err != nil {
		if errors.Is(err, spin.ErrNoSpinsLeft) {
			b.respond(s, i, embed("🎰 Spin",
				fmt.Sprintf("🚫 You have used all your spins for today!\n🎁 Spins used: %d/%d\n⏰ Come back tomorrow!",
					b.Cfg.DailySpinLimit, b.Cfg.DailySpinLimit),
				colorError), nil, true)
			return
		}
		b.respondError(s, i, "Spin failed, try again.")
		return
	}

	used := fmt.Sprintf("%d/%d", res.SpinsUsed, res.Limit)
	if res.Source == spin.SourceUnlimited {
		used = "∞"
	} else if res.Source == spin.SourceBonus {
		used = "bonus spin"
	}

	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "🎁 Spin Again", Style: discordgo.PrimaryButton, CustomID: "spin"},
		}},
	}
	b.respond(s, i, embed("🎰 Spin Result!",
		fmt.Sprintf("🏆 You won: %d MMK!\n💰 Balance: %d MMK\n🎁 Spins used today: %s",
			res.Reward, res.Balance, used),
		colorWin), components, false)

	b.logToChannel(fmt.Sprintf("🎰 Spin: %s (ID: %d) won %d MMK, balance %d", username, userID, res.Reward, res.Balance))
}
