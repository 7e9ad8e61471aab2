package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"kyatplay/cogs"
	"kyatplay/exchange"
	"kyatplay/games/crash"
	"kyatplay/games/spin"
	"kyatplay/promo"
	"kyatplay/store"
	"kyatplay/utils"
)

func main() {
	_ = godotenv.Load()

	log := utils.NewLogger("main")

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	go startHealthServer(cfg.Port, log)

	st := openStore(cfg, log)
	defer st.Close()

	if cfg.BotToken == "" {
		log.Warn().Msg("BOT_TOKEN not set, bot will not connect")
		select {}
	}

	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Discord session")
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	bot := cogs.New(session, cfg, st, utils.NewLogger("bot"))
	bot.Crash = crash.NewManager(st, bot, crash.Config{
		Checkpoints: cfg.CrashCheckpoints,
		CrashMin:    cfg.CrashMin,
		CrashMax:    cfg.CrashMax,
		StepDelay:   cfg.CrashStepDelay,
	}, utils.NewLogger("crash"))
	bot.Spin = spin.NewEngine(st, spin.Config{
		Bands:      cfg.SpinBands,
		DailyLimit: cfg.DailySpinLimit,
	}, utils.NewLogger("spin"), nil)
	bot.Exchange = exchange.NewWorkflow(st, bot, cfg.OwnerID, utils.NewLogger("exchange"))
	bot.Promo = promo.NewDistributor(st, bot, cfg.OwnerID, promo.Config{
		ReferralBonus:  cfg.ReferralBonus,
		JackpotWinners: cfg.JackpotWinners,
		JackpotReward:  cfg.JackpotReward,
		EventReward:    cfg.EventReward,
		EventLimit:     cfg.EventLimit,
	}, utils.NewLogger("promo"), nil)

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Info().Str("username", r.User.Username).Str("id", r.User.ID).Msg("logged in")
		registerCommands(s, bot, log)
	})
	session.AddHandler(bot.OnInteraction)
	session.AddHandler(bot.OnMessage)

	if err := session.Open(); err != nil {
		log.Fatal().Err(err).Msg("failed to open Discord connection")
	}
	defer session.Close()

	log.Info().Msg("bot is running, press CTRL+C to exit")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	bot.Crash.Shutdown(ctx)
}

// openStore prefers Postgres and falls back to memory, so the bot still
// starts when the database is unreachable.
func openStore(cfg *utils.Config, log zerolog.Logger) store.Store {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store")
		return store.NewMemory()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, utils.NewLogger("store"))
	if err != nil {
		log.Error().Err(err).Msg("database setup failed, continuing with in-memory store")
		return store.NewMemory()
	}
	log.Info().Msg("database connected")
	return pg
}

func registerCommands(s *discordgo.Session, bot *cogs.Bot, log zerolog.Logger) {
	commands := bot.Commands()
	for _, command := range commands {
		if _, err := s.ApplicationCommandCreate(s.State.User.ID, "", command); err != nil {
			log.Error().Err(err).Str("command", command.Name).Msg("failed to register command")
		}
	}
	log.Info().Int("count", len(commands)).Msg("registered slash commands")
}

func startHealthServer(port string, log zerolog.Logger) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	log.Info().Str("port", port).Msg("health server listening")
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Error().Err(err).Msg("health server stopped")
	}
}
