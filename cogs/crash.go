package cogs

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"kyatplay/games/crash"
	"kyatplay/utils"
)

// handleCrashCommand validates the bet, posts the round message and starts
// the engine round. Checkpoint updates arrive through the Notifier methods
// below and edit the same message in place.
func (b *Bot) handleCrashCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, _ := interactionUserID(i)
	if userID == 0 {
		return
	}

	betStr := ""
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "bet" {
			betStr = opt.StringValue()
		}
	}

	account, err := b.Store.Get(b.ctx(), userID)
	if err != nil {
		b.respondError(s, i, "Failed to load your account.")
		return
	}
	stake, err := utils.ParseAmount(betStr, account.Balance)
	if err != nil {
		b.respondError(s, i, err.Error())
		return
	}

	b.respond(s, i, embed("🚀 Crash Game", "Game starting... ⏳", colorBrand), nil, false)
	msg, err := s.InteractionResponse(i.Interaction)
	if err != nil {
		b.log.Warn().Err(err).Msg("failed to fetch round message")
		return
	}
	b.mu.Lock()
	b.crashMessages[userID] = messageRef{ChannelID: msg.ChannelID, MessageID: msg.ID}
	b.mu.Unlock()

	if _, err := b.Crash.StartRound(b.ctx(), userID, stake); err != nil {
		b.clearCrashMessage(userID)
		var text string
		switch {
		case errors.Is(err, crash.ErrInsufficientBalance):
			text = fmt.Sprintf("Insufficient balance.\n💰 Balance: %d MMK", account.Balance)
		case errors.Is(err, crash.ErrRoundInProgress):
			text = "You already have a round in progress."
		case errors.Is(err, crash.ErrInvalidStake):
			text = "Bet must be a positive amount."
		default:
			text = "Failed to start the round."
		}
		b.editCrashMessage(messageRef{ChannelID: msg.ChannelID, MessageID: msg.ID},
			embed("🚀 Crash Game", "❌ "+text, colorError), nil)
	}
}

// handleCashOutButton resolves the cash-out race; the engine decides the
// winner and the notifier edits the message.
func (b *Bot) handleCashOutButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, _ := interactionUserID(i)
	b.ack(s, i)

	if _, err := b.Crash.CashOut(b.ctx(), userID); err != nil {
		if errors.Is(err, crash.ErrRoundEnded) || errors.Is(err, crash.ErrNoActiveRound) {
			// The crash step won the race; its edit already tells the story.
			return
		}
		b.log.Error().Err(err).Int64("user_id", userID).Msg("cash-out failed")
	}
}

// CheckpointReached implements crash.Notifier.
func (b *Bot) CheckpointReached(r *crash.Round, cp utils.CrashCheckpoint, potential int64) {
	ref, ok := b.crashMessage(r.UserID)
	if !ok {
		return
	}
	e := embed("🚀 Crash Game",
		fmt.Sprintf("📈 Multiplier: %.1fx %s\n💰 Win: %d MMK", cp.Multiplier, cp.Label, potential),
		colorBrand)
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    fmt.Sprintf("💰 Cash Out (%.1fx)", cp.Multiplier),
				Style:    discordgo.SuccessButton,
				CustomID: "crash_cashout",
			},
		}},
	}
	b.editCrashMessage(ref, e, components)
}

// Crashed implements crash.Notifier.
func (b *Bot) Crashed(r *crash.Round, crashPoint float64) {
	ref, ok := b.crashMessage(r.UserID)
	if !ok {
		return
	}
	b.clearCrashMessage(r.UserID)
	b.editCrashMessage(ref, embed("🚀 Crash Game",
		fmt.Sprintf("💥 BOOM! Crashed at %.1fx.\n💸 Lost: %d MMK", crashPoint, r.Stake),
		colorLoss), nil)
	b.logToChannel(fmt.Sprintf("💥 Crash loss: user %d lost %d MMK at %.1fx", r.UserID, r.Stake, crashPoint))
}

// CashedOut implements crash.Notifier.
func (b *Bot) CashedOut(r *crash.Round, multiplier float64, payout int64) {
	ref, ok := b.crashMessage(r.UserID)
	if !ok {
		return
	}
	b.clearCrashMessage(r.UserID)
	b.editCrashMessage(ref, embed("🚀 Crash Game",
		fmt.Sprintf("✅ Cash Out successful at %.1fx.\n💰 Won: %d MMK", multiplier, payout),
		colorWin), nil)
	b.logToChannel(fmt.Sprintf("💰 Crash win: user %d won %d MMK at %.1fx", r.UserID, payout, multiplier))
}

// Aborted implements crash.Notifier.
func (b *Bot) Aborted(r *crash.Round, refunded bool) {
	ref, ok := b.crashMessage(r.UserID)
	if !ok {
		return
	}
	b.clearCrashMessage(r.UserID)
	text := fmt.Sprintf("⚠️ Round aborted. Your stake of %d MMK has been refunded.", r.Stake)
	if !refunded {
		text = "⚠️ Round aborted. The refund could not be processed; please contact support."
	}
	b.editCrashMessage(ref, embed("🚀 Crash Game", text, colorError), nil)
}

func (b *Bot) crashMessage(userID int64) (messageRef, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref, ok := b.crashMessages[userID]
	return ref, ok
}

func (b *Bot) clearCrashMessage(userID int64) {
	b.mu.Lock()
	delete(b.crashMessages, userID)
	b.mu.Unlock()
}

func (b *Bot) editCrashMessage(ref messageRef, e *discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	edit := &discordgo.MessageEdit{
		Channel: ref.ChannelID,
		ID:      ref.MessageID,
		Embeds:  &[]*discordgo.MessageEmbed{e},
	}
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	edit.Components = &components
	if _, err := b.Session.ChannelMessageEditComplex(edit); err != nil {
		b.log.Warn().Err(err).Msg("failed to edit round message")
	}
}
