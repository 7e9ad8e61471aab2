package cogs

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"kyatplay/exchange"
	"kyatplay/games/crash"
	"kyatplay/games/spin"
	"kyatplay/promo"
	"kyatplay/store"
	"kyatplay/utils"
)

const (
	colorBrand = 0xF1C40F
	colorError = 0xFF0000
	colorWin   = 0x2ECC71
	colorLoss  = 0xE74C3C
)

// messageRef locates a sent message for edit-in-place updates.
type messageRef struct {
	ChannelID string
	MessageID string
}

// Bot glues the game engines to the Discord transport: slash commands and
// button presses in, message edits and DMs out.
type Bot struct {
	Session  *discordgo.Session
	Cfg      *utils.Config
	Store    store.Store
	Crash    *crash.Manager
	Spin     *spin.Engine
	Exchange *exchange.Workflow
	Promo    *promo.Distributor

	log zerolog.Logger

	mu             sync.Mutex
	crashMessages  map[int64]messageRef // live round message per player
	pendingReceipt map[int64]string     // authority -> request ID awaiting receipt upload
}

// New creates the bot shell; the engines are attached by main after their
// notifiers (which are this bot) exist.
func New(session *discordgo.Session, cfg *utils.Config, st store.Store, log zerolog.Logger) *Bot {
	return &Bot{
		Session:        session,
		Cfg:            cfg,
		Store:          st,
		log:            log,
		crashMessages:  make(map[int64]messageRef),
		pendingReceipt: make(map[int64]string),
	}
}

// Commands returns the slash commands to register.
func (b *Bot) Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{Name: "menu", Description: "Open the main menu"},
		{Name: "balance", Description: "Check your current balance"},
		{Name: "history", Description: "View your recent activity"},
		{
			Name:        "crash",
			Description: "Play the crash game",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "bet", Description: "Bet amount (e.g. 500, 5k, half, all)", Required: true},
			},
		},
		{Name: "spin", Description: "Spin for a reward"},
		{Name: "exchange", Description: "Withdraw your balance"},
		{
			Name:        "referral",
			Description: "Record who invited you",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "referrer", Description: "The user who invited you", Required: true},
			},
		},
		{Name: "jackpot", Description: "Run the jackpot draw (owner only)"},
		{
			Name:        "bonus",
			Description: "Grant bonus spins to a user (owner only)",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Who receives the spins", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "spins", Description: "Number of bonus spins", Required: true},
			},
		},
		{
			Name:        "event",
			Description: "Manage the channel-join event (owner only)",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "action", Description: "start | cancel | status", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "channels", Description: "Channel links, space separated", Required: false},
			},
		},
	}
}

// OnInteraction routes slash commands and button presses.
func (b *Bot) OnInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		switch i.ApplicationCommandData().Name {
		case "menu":
			b.handleMenuCommand(s, i)
		case "balance":
			b.handleBalanceCommand(s, i)
		case "history":
			b.handleHistoryCommand(s, i)
		case "crash":
			b.handleCrashCommand(s, i)
		case "spin":
			b.handleSpinCommand(s, i)
		case "exchange":
			b.handleExchangeCommand(s, i)
		case "referral":
			b.handleReferralCommand(s, i)
		case "jackpot":
			b.handleJackpotCommand(s, i)
		case "bonus":
			b.handleBonusCommand(s, i)
		case "event":
			b.handleEventCommand(s, i)
		}
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		switch {
		case customID == "crash_cashout":
			b.handleCashOutButton(s, i)
		case customID == "spin":
			b.handleSpinCommand(s, i)
		case customID == "exchange_start":
			b.handleExchangeCommand(s, i)
		case strings.HasPrefix(customID, "exchange_amount_"):
			b.handleExchangeAmountButton(s, i, strings.TrimPrefix(customID, "exchange_amount_"))
		case strings.HasPrefix(customID, "exchange_method_"):
			b.handleExchangeMethodButton(s, i, strings.TrimPrefix(customID, "exchange_method_"))
		case customID == "exchange_abort":
			b.handleExchangeAbortButton(s, i)
		case strings.HasPrefix(customID, "exchange_confirm_"):
			b.handleExchangeConfirmButton(s, i, strings.TrimPrefix(customID, "exchange_confirm_"))
		case strings.HasPrefix(customID, "exchange_reject_"):
			b.handleExchangeRejectButton(s, i, strings.TrimPrefix(customID, "exchange_reject_"))
		case customID == "event_done":
			b.handleEventDoneButton(s, i)
		}
	}
}

// OnMessage routes free-text input: wizard amounts, payout destinations and
// the authority's receipt uploads.
func (b *Bot) OnMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	userID, err := utils.ParseUserID(m.Author.ID)
	if err != nil {
		return
	}

	if userID == b.Cfg.OwnerID && len(m.Attachments) > 0 {
		b.handleReceiptUpload(s, m, userID)
		return
	}

	switch b.Exchange.SessionMode(userID) {
	case exchange.ModeAwaitingAmount:
		b.handleExchangeAmountMessage(s, m, userID)
	case exchange.ModeAwaitingInfo:
		b.handleExchangeInfoMessage(s, m, userID)
	}
}

func (b *Bot) ctx() context.Context {
	return context.Background()
}

func interactionUserID(i *discordgo.InteractionCreate) (int64, string) {
	var user *discordgo.User
	if i.Member != nil {
		user = i.Member.User
	} else {
		user = i.User
	}
	if user == nil {
		return 0, ""
	}
	id, _ := utils.ParseUserID(user.ID)
	return id, user.Username
}

func embed(title, description string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, e *discordgo.MessageEmbed, components []discordgo.MessageComponent, ephemeral bool) {
	data := &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{e},
		Components: components,
	}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}); err != nil {
		b.log.Warn().Err(err).Msg("failed to respond to interaction")
	}
}

func (b *Bot) respondError(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	b.respond(s, i, embed("Error", "❌ "+msg, colorError), nil, true)
}

func (b *Bot) ack(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		b.log.Warn().Err(err).Msg("failed to ack interaction")
	}
}

// dm opens (or reuses) a DM channel and sends the embed. Delivery failures
// are reported to the caller for logging only.
func (b *Bot) dm(userID int64, e *discordgo.MessageEmbed) error {
	ch, err := b.Session.UserChannelCreate(strconv.FormatInt(userID, 10))
	if err != nil {
		return err
	}
	_, err = b.Session.ChannelMessageSendEmbed(ch.ID, e)
	return err
}

// logToChannel mirrors notable results to the configured log channel.
func (b *Bot) logToChannel(text string) {
	if b.Cfg.LogChannelID == "" {
		return
	}
	if _, err := b.Session.ChannelMessageSend(b.Cfg.LogChannelID, text); err != nil {
		b.log.Warn().Err(err).Msg("failed to post to log channel")
	}
}
