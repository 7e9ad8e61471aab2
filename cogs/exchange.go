package cogs

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"kyatplay/exchange"
	"kyatplay/models"
)

// handleExchangeCommand opens the withdrawal wizard: the user is asked to
// type the amount next.
func (b *Bot) handleExchangeCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, _ := interactionUserID(i)
	if userID == 0 {
		return
	}

	account, err := b.Store.Get(b.ctx(), userID)
	if err != nil {
		b.respondError(s, i, "Failed to load your account.")
		return
	}

	b.Exchange.Begin(userID)
	presets := make([]discordgo.MessageComponent, 0, len(b.Cfg.ExchangePresets))
	for _, amount := range b.Cfg.ExchangePresets {
		presets = append(presets, discordgo.Button{
			Label:    fmt.Sprintf("%d MMK", amount),
			Style:    discordgo.SecondaryButton,
			CustomID: fmt.Sprintf("exchange_amount_%d", amount),
		})
	}
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: presets},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "❌ Cancel", Style: discordgo.DangerButton, CustomID: "exchange_abort"},
		}},
	}
	b.respond(s, i, embed("📤 Exchange MMK",
		fmt.Sprintf("💰 Your balance: %d MMK\n\nPick an amount or type your own (numbers only).", account.Balance),
		colorBrand), components, false)
}

// handleExchangeAmountButton handles the preset amount shortcuts; they go
// through the same validation as typed amounts.
func (b *Bot) handleExchangeAmountButton(s *discordgo.Session, i *discordgo.InteractionCreate, amountStr string) {
	userID, _ := interactionUserID(i)
	amount, err := b.Exchange.SubmitAmount(b.ctx(), userID, amountStr)
	if err != nil {
		switch {
		case errors.Is(err, exchange.ErrInsufficientBalance):
			b.respondError(s, i, "Insufficient balance for that amount.")
		case errors.Is(err, exchange.ErrWrongState):
			b.respondError(s, i, "Start the exchange again with /exchange.")
		default:
			b.respondError(s, i, "Invalid amount.")
		}
		return
	}
	b.respond(s, i, embed("💳 Select Payment Method",
		fmt.Sprintf("💸 Amount: %d MMK\nChoose how you want to receive the money.", amount),
		colorBrand), methodComponents(), false)
}

func methodComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "📱 KPay", Style: discordgo.PrimaryButton, CustomID: "exchange_method_kpay"},
			discordgo.Button{Label: "🌊 Wave Money", Style: discordgo.PrimaryButton, CustomID: "exchange_method_wave"},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "❌ Cancel", Style: discordgo.DangerButton, CustomID: "exchange_abort"},
		}},
	}
}

func (b *Bot) handleExchangeAmountMessage(s *discordgo.Session, m *discordgo.MessageCreate, userID int64) {
	amount, err := b.Exchange.SubmitAmount(b.ctx(), userID, m.Content)
	if err != nil {
		switch {
		case errors.Is(err, exchange.ErrInvalidAmount):
			b.reply(s, m, "❌ Please type numbers only.")
		case errors.Is(err, exchange.ErrInsufficientBalance):
			b.reply(s, m, "❌ Insufficient balance for that amount.")
		}
		return
	}

	if _, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed("💳 Select Payment Method",
			fmt.Sprintf("💸 Amount: %d MMK\nChoose how you want to receive the money.", amount), colorBrand)},
		Components: methodComponents(),
	}); err != nil {
		b.log.Warn().Err(err).Msg("failed to send payment method prompt")
	}
}

func (b *Bot) handleExchangeMethodButton(s *discordgo.Session, i *discordgo.InteractionCreate, method string) {
	userID, _ := interactionUserID(i)
	ch, err := b.Exchange.SelectChannel(userID, method)
	if err != nil {
		b.ack(s, i)
		return
	}

	b.respond(s, i, embed(fmt.Sprintf("📱 %s Selected", ch.DisplayName()),
		"Send your payout details as two lines:\n"+
			"📞 Phone Number: 09xxxxxxxxx\n"+
			"👤 Account Name: Your Name\n\n"+
			"Example:\n09123456789\nJohn Doe",
		colorBrand), []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "❌ Cancel", Style: discordgo.DangerButton, CustomID: "exchange_abort"},
		}},
	}, false)
}

func (b *Bot) handleExchangeInfoMessage(s *discordgo.Session, m *discordgo.MessageCreate, userID int64) {
	req, err := b.Exchange.SubmitInfo(b.ctx(), userID, m.Author.Username, m.Content)
	if err != nil {
		switch {
		case errors.Is(err, exchange.ErrInsufficientBalance):
			b.reply(s, m, "❌ Your balance changed and no longer covers the request.")
		case errors.Is(err, exchange.ErrWrongState):
			// Session is gone; nothing to say.
		default:
			b.reply(s, m, "❌ "+err.Error())
		}
		return
	}

	b.reply(s, m, "✅ Request sent! Please wait for approval.")
	b.logToChannel(fmt.Sprintf("📤 Exchange requested: %s (ID: %d), %d MMK via %s",
		req.Username, req.UserID, req.Amount, req.Channel.DisplayName()))
}

func (b *Bot) handleExchangeAbortButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, _ := interactionUserID(i)
	b.Exchange.Cancel(userID)
	b.respond(s, i, embed("📤 Exchange", "❌ Exchange cancelled.", colorError), nil, true)
}

// RequestSubmitted implements exchange.Notifier: the authority gets the
// request details with an approve/reject action pair.
func (b *Bot) RequestSubmitted(req *models.ExchangeRequest) {
	e := embed("📤 New Exchange Request",
		fmt.Sprintf("👤 User: %s (%d)\n💸 Amount: %d MMK\n💳 Method: %s\n📞 Phone: %s\n👤 Name: %s",
			req.Username, req.UserID, req.Amount, req.Channel.DisplayName(), req.Phone, req.AccountName),
		colorBrand)
	ch, err := b.Session.UserChannelCreate(fmt.Sprintf("%d", b.Cfg.OwnerID))
	if err != nil {
		b.log.Error().Err(err).Str("request_id", req.ID).Msg("failed to open authority DM")
		return
	}
	_, err = b.Session.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{e},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "✅ Approve", Style: discordgo.SuccessButton, CustomID: "exchange_confirm_" + req.ID},
				discordgo.Button{Label: "❌ Reject", Style: discordgo.DangerButton, CustomID: "exchange_reject_" + req.ID},
			}},
		},
	})
	if err != nil {
		b.log.Error().Err(err).Str("request_id", req.ID).Msg("failed to notify authority")
	}
}

// Rejected implements exchange.Notifier.
func (b *Bot) Rejected(req *models.ExchangeRequest, newBalance int64) {
	err := b.dm(req.UserID, embed("❌ Exchange Request Rejected",
		fmt.Sprintf("Your request for %d MMK was rejected.\n💰 The amount has been refunded.\n💳 Balance: %d MMK",
			req.Amount, newBalance), colorError))
	if err != nil {
		b.log.Warn().Err(err).Int64("user_id", req.UserID).Msg("failed to notify user of rejection")
	}
}

// Completed implements exchange.Notifier: the receipt is forwarded to the
// requester.
func (b *Bot) Completed(req *models.ExchangeRequest, receiptURL string) {
	e := embed("✅ Exchange Completed!",
		fmt.Sprintf("💸 Amount: %d MMK\n📧 Receipt attached below.", req.Amount), colorWin)
	e.Image = &discordgo.MessageEmbedImage{URL: receiptURL}
	if err := b.dm(req.UserID, e); err != nil {
		b.log.Warn().Err(err).Int64("user_id", req.UserID).Msg("failed to deliver receipt")
	}
	b.logToChannel(fmt.Sprintf("✅ Exchange completed: %s (ID: %d), %d MMK", req.Username, req.UserID, req.Amount))
}

func (b *Bot) reply(s *discordgo.Session, m *discordgo.MessageCreate, text string) {
	if _, err := s.ChannelMessageSend(m.ChannelID, text); err != nil {
		b.log.Warn().Err(err).Msg("failed to send reply")
	}
}
