package cogs

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"kyatplay/models"
)

func (b *Bot) handleMenuCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, username := interactionUserID(i)
	// Refresh the stored display name while we are here so owner-facing
	// reports show who the account belongs to.
	acct, err := b.Store.Apply(b.ctx(), userID, func(a *models.Account) error {
		if username != "" {
			a.Username = username
		}
		return nil
	})
	if err != nil {
		b.respondError(s, i, "Failed to load your account, try again.")
		return
	}

	text := fmt.Sprintf("💰 Balance: **%d MMK**\n🎮 Games played: %d\n🎡 Spins left today: %d",
		acct.Balance, acct.GamesPlayed, b.Spin.SpinsRemaining(acct))
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "🎡 Spin", Style: discordgo.PrimaryButton, CustomID: "spin"},
			discordgo.Button{Label: "💱 Exchange", Style: discordgo.SuccessButton, CustomID: "exchange_start"},
			discordgo.Button{Label: "✅ Event Done", Style: discordgo.SecondaryButton, CustomID: "event_done"},
		}},
	}
	b.respond(s, i, embed("🎰 KyatPlay", text, colorBrand), components, true)
}

func (b *Bot) handleBalanceCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, _ := interactionUserID(i)
	acct, err := b.Store.Get(b.ctx(), userID)
	if err != nil {
		b.respondError(s, i, "Failed to load your account, try again.")
		return
	}
	b.respond(s, i, embed("💰 Balance",
		fmt.Sprintf("You have **%d MMK**.", acct.Balance), colorBrand), nil, true)
}

// handleHistoryCommand shows the most recent transactions, newest first.
func (b *Bot) handleHistoryCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, _ := interactionUserID(i)
	acct, err := b.Store.Get(b.ctx(), userID)
	if err != nil {
		b.respondError(s, i, "Failed to load your account, try again.")
		return
	}
	if len(acct.History) == 0 {
		b.respond(s, i, embed("📜 History", "No transactions yet. Play a game!", colorBrand), nil, true)
		return
	}

	entries := acct.History
	if len(entries) > 10 {
		entries = entries[len(entries)-10:]
	}
	lines := make([]string, 0, len(entries))
	for j := len(entries) - 1; j >= 0; j-- {
		e := entries[j]
		lines = append(lines, fmt.Sprintf("• **%s** %s · %s", e.Action, e.Details, e.Timestamp.Format("Jan 2 15:04")))
	}
	b.respond(s, i, embed("📜 History", strings.Join(lines, "\n"), colorBrand), nil, true)
}
