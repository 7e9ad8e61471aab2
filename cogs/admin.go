package cogs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"kyatplay/exchange"
	"kyatplay/models"
	"kyatplay/promo"
	"kyatplay/utils"
)

// handleExchangeConfirmButton is the authority's approve action: the request
// moves to awaiting-receipt and the next uploaded attachment completes it.
func (b *Bot) handleExchangeConfirmButton(s *discordgo.Session, i *discordgo.InteractionCreate, requestID string) {
	actorID, _ := interactionUserID(i)
	req, err := b.Exchange.Approve(b.ctx(), actorID, requestID)
	if err != nil {
		b.respondExchangeActionError(s, i, err)
		return
	}

	b.mu.Lock()
	b.pendingReceipt[actorID] = req.ID
	b.mu.Unlock()

	b.respond(s, i, embed("✅ Exchange Approved",
		fmt.Sprintf("Send the receipt photo now.\n👤 User: %s\n💸 Amount: %d MMK", req.Username, req.Amount),
		colorWin), nil, false)
}

// handleExchangeRejectButton refunds the hold and closes the request.
func (b *Bot) handleExchangeRejectButton(s *discordgo.Session, i *discordgo.InteractionCreate, requestID string) {
	actorID, _ := interactionUserID(i)
	req, err := b.Exchange.Reject(b.ctx(), actorID, requestID)
	if err != nil {
		b.respondExchangeActionError(s, i, err)
		return
	}
	b.respond(s, i, embed("❌ Exchange Rejected",
		fmt.Sprintf("Request for %d MMK cancelled. The amount was refunded to the user.", req.Amount),
		colorError), nil, false)
}

func (b *Bot) respondExchangeActionError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	switch {
	case errors.Is(err, exchange.ErrNotAuthorized):
		b.respondError(s, i, "You are not authorized for this action.")
	case errors.Is(err, exchange.ErrAlreadyResolved):
		b.respondError(s, i, "Exchange request not found or already processed.")
	default:
		b.respondError(s, i, "Action failed, try again.")
	}
}

// handleReceiptUpload completes the request the authority most recently
// approved with the uploaded attachment.
func (b *Bot) handleReceiptUpload(s *discordgo.Session, m *discordgo.MessageCreate, actorID int64) {
	b.mu.Lock()
	requestID, ok := b.pendingReceipt[actorID]
	b.mu.Unlock()
	if !ok {
		// No approval in this process's memory; fall back to the single
		// request awaiting a receipt, if unambiguous.
		req, err := b.Exchange.AwaitingReceipt(b.ctx())
		if err != nil {
			b.reply(s, m, "❌ No pending exchange found.")
			return
		}
		requestID = req.ID
	}

	if _, err := b.Exchange.DeliverReceipt(b.ctx(), actorID, requestID, m.Attachments[0].URL); err != nil {
		b.respondReceiptError(s, m, err)
		return
	}

	b.mu.Lock()
	delete(b.pendingReceipt, actorID)
	b.mu.Unlock()
	b.reply(s, m, "✅ Exchange completed successfully!")
}

func (b *Bot) respondReceiptError(s *discordgo.Session, m *discordgo.MessageCreate, err error) {
	if errors.Is(err, exchange.ErrAlreadyResolved) {
		b.reply(s, m, "❌ Exchange request not found or already processed.")
		return
	}
	b.reply(s, m, "❌ Failed to complete the exchange.")
}

// handleJackpotCommand runs the owner's jackpot draw.
func (b *Bot) handleJackpotCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	actorID, _ := interactionUserID(i)
	winners, err := b.Promo.RunJackpot(b.ctx(), actorID)
	if err != nil {
		switch {
		case errors.Is(err, promo.ErrNotAuthorized):
			b.respondError(s, i, "Access denied.")
		case errors.Is(err, promo.ErrNoAccounts):
			b.respondError(s, i, "No users yet.")
		default:
			b.respondError(s, i, "Jackpot failed.")
		}
		return
	}

	lines := make([]string, 0, len(winners))
	for _, w := range winners {
		name := w.Username
		if name == "" {
			name = fmt.Sprintf("%d", w.UserID)
		}
		lines = append(lines, "👤 "+name)
	}
	b.respond(s, i, embed("✅ Jackpot Winners",
		strings.Join(lines, "\n")+
			fmt.Sprintf("\n\n%d winners received %d MMK each.", len(winners), b.Cfg.JackpotReward),
		colorWin), nil, false)
	b.logToChannel(fmt.Sprintf("🎰 Jackpot: %d winners, %d MMK each", len(winners), b.Cfg.JackpotReward))
}

// JackpotWin implements promo.Notifier.
func (b *Bot) JackpotWin(userID, amount int64) error {
	return b.dm(userID, embed("🎰 🎉 Congratulations!",
		fmt.Sprintf("You won **%d MMK** in the jackpot draw!", amount), colorWin))
}

// ReferralBonus implements promo.Notifier.
func (b *Bot) ReferralBonus(referrerID, amount int64, referralCount int) error {
	return b.dm(referrerID, embed("🤝 Referral Bonus",
		fmt.Sprintf("A friend joined with your invite!\n💰 Bonus: %d MMK\n👥 Total referrals: %d", amount, referralCount),
		colorWin))
}

func (b *Bot) handleReferralCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, _ := interactionUserID(i)
	var referrerID int64
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "referrer" {
			if u := opt.UserValue(s); u != nil {
				referrerID, _ = utils.ParseUserID(u.ID)
			}
		}
	}
	if referrerID == 0 {
		b.respondError(s, i, "Referrer not found.")
		return
	}

	applied, err := b.Promo.ApplyReferral(b.ctx(), userID, referrerID)
	if err != nil {
		b.respondError(s, i, "Failed to record the referral.")
		return
	}
	if !applied {
		b.respond(s, i, embed("🤝 Referral", "Your referral is already recorded.", colorBrand), nil, true)
		return
	}
	b.respond(s, i, embed("🤝 Referral", "✅ Referral recorded. Your friend received a bonus!", colorWin), nil, true)
}

// handleBonusCommand grants consumable bonus spins; they are spent before the
// daily quota.
func (b *Bot) handleBonusCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	actorID, _ := interactionUserID(i)
	if actorID != b.Cfg.OwnerID {
		b.respondError(s, i, "Access denied.")
		return
	}

	var targetID int64
	var spins int64
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "user":
			if u := opt.UserValue(s); u != nil {
				targetID, _ = utils.ParseUserID(u.ID)
			}
		case "spins":
			spins = opt.IntValue()
		}
	}
	if targetID == 0 || spins <= 0 {
		b.respondError(s, i, "Pick a user and a positive number of spins.")
		return
	}

	acct, err := b.Store.Apply(b.ctx(), targetID, func(a *models.Account) error {
		a.BonusSpins += int(spins)
		return nil
	})
	if err != nil {
		b.respondError(s, i, "Failed to grant bonus spins.")
		return
	}

	b.respond(s, i, embed("🎁 Bonus Spins Granted",
		fmt.Sprintf("✅ %d bonus spins added.\n🎡 Total bonus spins: %d", spins, acct.BonusSpins),
		colorWin), nil, false)
	if err := b.dm(targetID, embed("🎁 Bonus Spins",
		fmt.Sprintf("You received **%d bonus spins**! Use /spin to spend them.", spins), colorWin)); err != nil {
		b.log.Warn().Err(err).Int64("user_id", targetID).Msg("bonus spin notification failed")
	}
}

// handleEventCommand manages the channel-join event: start, cancel, status.
func (b *Bot) handleEventCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	actorID, _ := interactionUserID(i)
	action, channelsArg := "", ""
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "action":
			action = opt.StringValue()
		case "channels":
			channelsArg = opt.StringValue()
		}
	}

	switch action {
	case "start":
		ev, err := b.Promo.StartEvent(b.ctx(), actorID, strings.Fields(channelsArg))
		if err != nil {
			b.respondEventError(s, i, err)
			return
		}
		b.respond(s, i, embed("✅ Event Created",
			fmt.Sprintf("📊 Channels: %d\n🎁 Reward: %d MMK per completion\n👥 Limit: %d participants",
				len(ev.Channels), b.Cfg.EventReward, ev.ParticipantLimit),
			colorWin), nil, false)
	case "cancel":
		if err := b.Promo.CancelEvent(b.ctx(), actorID); err != nil {
			b.respondEventError(s, i, err)
			return
		}
		b.respond(s, i, embed("❌ Event Cancelled", "The event has been cancelled.", colorError), nil, false)
	case "status":
		b.showEventStatus(s, i)
	default:
		b.respondError(s, i, "Unknown action. Use start, cancel or status.")
	}
}

func (b *Bot) showEventStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ev, err := b.Promo.ActiveEvent(b.ctx())
	if err != nil {
		b.respondError(s, i, "Failed to load the event.")
		return
	}
	if ev == nil {
		b.respond(s, i, embed("📋 Event", "❌ There is no active event right now.", colorBrand), nil, true)
		return
	}

	text := fmt.Sprintf("👥 Participants: %d/%d\n\n📋 Join the channels and press ✅ Done:\n%s",
		len(ev.Participants), ev.ParticipantLimit, strings.Join(ev.Channels, "\n"))
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "✅ Done", Style: discordgo.SuccessButton, CustomID: "event_done"},
		}},
	}
	b.respond(s, i, embed("📢 Active Event!", text, colorBrand), components, false)
}

func (b *Bot) handleEventDoneButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, _ := interactionUserID(i)
	reward, err := b.Promo.CompleteEvent(b.ctx(), userID)
	if err != nil {
		switch {
		case errors.Is(err, promo.ErrEventDone):
			b.respondError(s, i, "You have already completed this event.")
		case errors.Is(err, promo.ErrEventFull):
			b.respondError(s, i, "Sorry, this event has reached its participant limit.")
		case errors.Is(err, promo.ErrNoActiveEvent):
			b.respondError(s, i, "There is no active event.")
		default:
			b.respondError(s, i, "Failed to record your completion.")
		}
		return
	}
	b.respond(s, i, embed("🎁 Event Completed",
		fmt.Sprintf("✅ You earned %d MMK!", reward), colorWin), nil, true)
}

func (b *Bot) respondEventError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	switch {
	case errors.Is(err, promo.ErrNotAuthorized):
		b.respondError(s, i, "Access denied.")
	case errors.Is(err, promo.ErrEventRunning):
		b.respondError(s, i, "An event is already active.")
	case errors.Is(err, promo.ErrNoChannels):
		b.respondError(s, i, "Provide at least one channel link.")
	case errors.Is(err, promo.ErrNoActiveEvent):
		b.respondError(s, i, "No active event to cancel.")
	default:
		b.respondError(s, i, "Event action failed.")
	}
}
