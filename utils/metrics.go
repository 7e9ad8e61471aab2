package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus counters for the financially interesting transitions. Exposed on
// /metrics by the health server in main.
var (
	RoundsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kyatplay_crash_rounds_started_total",
		Help: "Crash rounds started (stake deducted).",
	})
	RoundsCrashed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kyatplay_crash_rounds_crashed_total",
		Help: "Crash rounds ended at the crash threshold (stake forfeited).",
	})
	RoundsCashedOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kyatplay_crash_rounds_cashed_out_total",
		Help: "Crash rounds ended by cash-out (payout credited).",
	})
	RoundsAborted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kyatplay_crash_rounds_aborted_total",
		Help: "Crash rounds force-ended by an engine fault or shutdown.",
	})
	Spins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kyatplay_spins_total",
		Help: "Spins performed, labeled by the credit source consumed.",
	}, []string{"source"})
	ExchangeSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kyatplay_exchange_submitted_total",
		Help: "Exchange requests submitted (amount held).",
	})
	ExchangeResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kyatplay_exchange_resolved_total",
		Help: "Exchange requests terminally resolved, labeled by outcome.",
	}, []string{"outcome"})
	JackpotWinners = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kyatplay_jackpot_winners_total",
		Help: "Accounts credited by jackpot runs.",
	})
	ReferralBonuses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kyatplay_referral_bonuses_total",
		Help: "Referral bonuses granted.",
	})
)
