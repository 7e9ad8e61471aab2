package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// CrashCheckpoint is one rung of the crash-game multiplier ladder.
type CrashCheckpoint struct {
	Multiplier float64
	Label      string
}

// SpinBand is one reward band of the spin wheel. Probabilities are used as
// cumulative thresholds against a single uniform draw.
type SpinBand struct {
	Min  int64
	Max  int64
	Prob float64
}

// Config collects every tunable the bot reads from the environment, with the
// game policy tables that ship as code defaults.
type Config struct {
	BotToken     string
	OwnerID      int64
	LogChannelID string
	DatabaseURL  string
	Port         string
	LogLevel     string

	// Crash game policy
	CrashCheckpoints []CrashCheckpoint
	CrashMin         float64
	CrashMax         float64
	CrashStepDelay   time.Duration

	// Spin policy
	SpinBands      []SpinBand
	DailySpinLimit int

	// Exchange / promo policy
	ExchangePresets []int64
	JackpotWinners  int
	JackpotReward   int64
	ReferralBonus   int64
	EventReward     int64
	EventLimit      int
}

// DefaultCrashCheckpoints mirrors the escalating ladder the game animates
// through. Labels are the per-step emoji shown to the player.
var DefaultCrashCheckpoints = []CrashCheckpoint{
	{1.0, "🥚"}, {1.1, "🐣"}, {1.3, "🐥"}, {1.6, "🦅"},
	{2.0, "✈️"}, {2.5, "🚀"}, {3.2, "🛸"}, {4.0, "☄️"},
}

// DefaultSpinBands: the probabilities intentionally do not sum to 1; they are
// cumulative thresholds and the engine falls back to the first band.
var DefaultSpinBands = []SpinBand{
	{1, 10, 0.9},
	{10, 25, 0.7},
	{25, 50, 0.5},
	{50, 70, 0.2},
	{100, 100, 0.1},
}

// LoadConfig reads the environment into a Config. Only OWNER_ID is required;
// everything else has a workable default so the bot can start in offline mode.
func LoadConfig() (*Config, error) {
	ownerID, err := envInt64("OWNER_ID", 0)
	if err != nil {
		return nil, err
	}
	if ownerID == 0 {
		return nil, fmt.Errorf("OWNER_ID environment variable is required")
	}

	jackpotReward, err := envInt64("JACKPOT_REWARD", 5000)
	if err != nil {
		return nil, err
	}
	referralBonus, err := envInt64("REFERRAL_BONUS", 100)
	if err != nil {
		return nil, err
	}
	eventReward, err := envInt64("EVENT_REWARD", 200)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BotToken:     os.Getenv("BOT_TOKEN"),
		OwnerID:      ownerID,
		LogChannelID: os.Getenv("LOG_CHANNEL_ID"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		Port:         envString("PORT", "8080"),
		LogLevel:     envString("LOG_LEVEL", "info"),

		CrashCheckpoints: DefaultCrashCheckpoints,
		CrashMin:         1.1,
		CrashMax:         4.0,
		CrashStepDelay:   1200 * time.Millisecond,

		SpinBands:      DefaultSpinBands,
		DailySpinLimit: 5,

		ExchangePresets: []int64{500, 1000},
		JackpotWinners:  5,
		JackpotReward:   jackpotReward,
		ReferralBonus:   referralBonus,
		EventReward:     eventReward,
		EventLimit:      30,
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}
