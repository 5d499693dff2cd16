package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded label values. Intents and outcomes come from closed enums, so
// label cardinality stays fixed.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"

	CacheHit  = "hit"
	CacheMiss = "miss"
)

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_turns_total",
			Help: "Conversation turns processed, by classified intent",
		},
		[]string{"intent"},
	)

	turnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "advisor_turn_duration_seconds",
			Help:    "End-to-end turn latency including generation",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	tradeProposals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "advisor_trade_proposals_total",
			Help: "Trade proposals created and awaiting confirmation",
		},
	)

	tradeExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_trade_executions_total",
			Help: "Confirmed trade submissions, by outcome",
		},
		[]string{"outcome"},
	)

	tradeCancellations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "advisor_trade_cancellations_total",
			Help: "Pending trades cancelled, explicitly or by topic drift",
		},
	)

	contextCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_context_cache_total",
			Help: "Context aggregator cache lookups, by result",
		},
		[]string{"result"},
	)
)

// RecordTurn records a completed turn with its classified intent
func RecordTurn(intent string, duration time.Duration) {
	turnsTotal.WithLabelValues(intent).Inc()
	turnDuration.Observe(duration.Seconds())
}

// RecordTradeProposal records a new pending trade
func RecordTradeProposal() {
	tradeProposals.Inc()
}

// RecordTradeExecution records a confirmed submission outcome
func RecordTradeExecution(success bool) {
	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeFailure
	}
	tradeExecutions.WithLabelValues(outcome).Inc()
}

// RecordTradeCancellation records a cancelled pending trade
func RecordTradeCancellation() {
	tradeCancellations.Inc()
}

// RecordContextCache records a context cache lookup result
func RecordContextCache(hit bool) {
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	contextCache.WithLabelValues(result).Inc()
}
