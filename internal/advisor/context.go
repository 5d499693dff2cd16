package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/irisfin/advisor/internal/ledger"
	"github.com/irisfin/advisor/internal/memorystore"
	"github.com/irisfin/advisor/internal/metrics"
)

const contextKeyPrefix = "user_context:"

// ContextBuilder assembles the user-context block: portfolio summary, recent
// transactions and recent chat turns. Assembled blocks are cached with a
// short TTL; on a hit the block is returned verbatim with zero upstream
// calls.
type ContextBuilder struct {
	store        *memorystore.Store
	ledger       ledger.Service
	ttl          time.Duration
	txLimit      int
	historyTurns int
}

// NewContextBuilder creates a context builder
func NewContextBuilder(store *memorystore.Store, ledgerSvc ledger.Service, ttl time.Duration, txLimit, historyTurns int) *ContextBuilder {
	if ttl == 0 {
		ttl = 300 * time.Second
	}
	if txLimit == 0 {
		txLimit = 1000
	}
	if historyTurns == 0 {
		historyTurns = 10
	}
	return &ContextBuilder{
		store:        store,
		ledger:       ledgerSvc,
		ttl:          ttl,
		txLimit:      txLimit,
		historyTurns: historyTurns,
	}
}

// Build returns the formatted context block for a user. Every upstream
// failure is rendered inline in its section; partial context is always
// better than none, and the turn never fails here.
func (b *ContextBuilder) Build(ctx context.Context, userID string, history []Message) string {
	key := contextKeyPrefix + userID

	cached, err := b.store.Get(ctx, key)
	if err == nil {
		metrics.RecordContextCache(true)
		log.Debug().Str("user_id", userID).Msg("Context cache hit")
		return cached
	}
	metrics.RecordContextCache(false)

	if errors.Is(err, memorystore.ErrUnavailable) {
		// Cache backend down: degrade to portfolio-summary-only rather
		// than hammering every upstream without a cache in front.
		log.Warn().Str("user_id", userID).Msg("Memory store unavailable, degrading to portfolio summary")
		return "Portfolio: " + b.fetchPortfolio(ctx, userID)
	}

	// Portfolio and transaction fetches are independent; issue them
	// concurrently. The goroutines render their own failures inline and
	// never return an error.
	var portfolio, activity string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		portfolio = b.fetchPortfolio(gctx, userID)
		return nil
	})
	g.Go(func() error {
		activity = b.fetchTransactions(gctx, userID)
		return nil
	})
	_ = g.Wait()

	block := formatContextBlock(portfolio, activity, formatHistory(history, b.historyTurns))

	if err := b.store.SetWithTTL(ctx, key, block, b.ttl); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("Could not cache context block")
	}

	return block
}

func (b *ContextBuilder) fetchPortfolio(ctx context.Context, userID string) string {
	summary, err := b.ledger.GetPortfolio(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Portfolio fetch failed")
		return "Could not fetch portfolio details."
	}
	return summary
}

func (b *ContextBuilder) fetchTransactions(ctx context.Context, userID string) string {
	activity, err := b.ledger.GetTransactions(ctx, userID, b.txLimit)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Transaction fetch failed")
		return "Could not fetch transaction history."
	}
	return activity
}

// formatHistory renders the most recent turns; an empty history is fine and
// renders as an empty section.
func formatHistory(history []Message, turns int) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > turns {
		history = history[len(history)-turns:]
	}

	var b strings.Builder
	b.WriteString("--- CHAT HISTORY ---\n")
	for _, msg := range history {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(msg.Role), msg.Content)
	}
	b.WriteString("--- END HISTORY ---")
	return b.String()
}

func formatContextBlock(portfolio, activity, history string) string {
	var b strings.Builder
	b.WriteString("Portfolio: " + portfolio + "\n")
	b.WriteString("Recent Transactions: " + activity)
	if history != "" {
		b.WriteString("\n\n[Memory]\n" + history)
	}
	return b.String()
}
