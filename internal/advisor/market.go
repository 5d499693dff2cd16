package advisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/irisfin/advisor/internal/broker"
	"github.com/irisfin/advisor/internal/knowledge"
)

// Embedder produces an embedding vector for a query string
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// KnowledgeSearcher retrieves the topK passages nearest to an embedding
type KnowledgeSearcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]knowledge.Passage, error)
}

// Tokens that look like tickers but never are
var tickerStoplist = map[string]bool{
	"BUY": true, "SELL": true, "WHAT": true, "HOW": true, "WHY": true, "IS": true, "THE": true,
}

// MarketLookup resolves tickers from free text and retrieves quote data and
// knowledge-base passages.
type MarketLookup struct {
	broker        broker.Service
	embedder      Embedder
	knowledge     KnowledgeSearcher
	defaultSymbol string
	topK          int
}

// NewMarketLookup creates a market/knowledge lookup
func NewMarketLookup(brokerSvc broker.Service, embedder Embedder, searcher KnowledgeSearcher, defaultSymbol string, topK int) *MarketLookup {
	if defaultSymbol == "" {
		defaultSymbol = "SPY"
	}
	if topK == 0 {
		topK = 2
	}
	return &MarketLookup{
		broker:        brokerSvc,
		embedder:      embedder,
		knowledge:     searcher,
		defaultSymbol: defaultSymbol,
		topK:          topK,
	}
}

// ResolveTicker extracts the first token that looks like a ticker symbol:
// all-uppercase, alphabetic, at most five letters, not on the stoplist.
// Falls back to the configured broad-market proxy.
func (m *MarketLookup) ResolveTicker(message string) string {
	for _, word := range strings.Fields(message) {
		cleaned := strings.Trim(word, ".,?!:;()\"'")
		if len(cleaned) == 0 || len(cleaned) > 5 {
			continue
		}
		if cleaned != strings.ToUpper(cleaned) || !isAlpha(cleaned) {
			continue
		}
		if tickerStoplist[cleaned] {
			continue
		}
		return cleaned
	}
	return m.defaultSymbol
}

// MarketData returns a one-line price summary for a symbol. Tradability is
// validated first so unknown symbols never reach the quote endpoint.
func (m *MarketLookup) MarketData(ctx context.Context, symbol string) string {
	tradable, err := m.broker.CheckTradable(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Tradability check failed")
		return fmt.Sprintf("Error retrieving market data for %s.", symbol)
	}
	if !tradable {
		return fmt.Sprintf("Market data for %s is not available.", symbol)
	}

	quote, err := m.Quote(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Quote fetch failed")
		return fmt.Sprintf("Error retrieving market data for %s.", symbol)
	}

	return fmt.Sprintf("Current Price of %s: $%s (as of %s).",
		symbol, quote.Price.StringFixed(2), quote.AsOf.Format("15:04 MST"))
}

// Quote fetches the latest quote and reduces it to a single price: the
// ask/bid midpoint when both sides are present, otherwise whichever side is
// non-zero.
func (m *MarketLookup) Quote(ctx context.Context, symbol string) (*Quote, error) {
	raw, err := m.broker.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	price := midPrice(raw)
	if price.IsZero() {
		return nil, fmt.Errorf("no price data for %s", symbol)
	}

	asOf := raw.Timestamp
	if asOf.IsZero() {
		asOf = time.Now()
	}

	return &Quote{Symbol: symbol, Price: price, AsOf: asOf}, nil
}

func midPrice(q *broker.Quote) decimal.Decimal {
	switch {
	case !q.AskPrice.IsZero() && !q.BidPrice.IsZero():
		return q.AskPrice.Add(q.BidPrice).Div(decimal.NewFromInt(2))
	case !q.AskPrice.IsZero():
		return q.AskPrice
	default:
		return q.BidPrice
	}
}

// Knowledge embeds the query and retrieves the nearest passages. Any failure
// returns an empty string; knowledge lookup never aborts the turn.
func (m *MarketLookup) Knowledge(ctx context.Context, query string) string {
	if m.embedder == nil || m.knowledge == nil {
		return ""
	}

	embedding, err := m.embedder.Embed(ctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("Query embedding failed, skipping knowledge lookup")
		return ""
	}

	passages, err := m.knowledge.Search(ctx, embedding, m.topK)
	if err != nil {
		log.Warn().Err(err).Msg("Knowledge search failed")
		return ""
	}
	if len(passages) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant Financial Context:\n")
	for _, p := range passages {
		fmt.Fprintf(&b, "- [%s]: %s\n", p.Title, p.Text)
	}
	return b.String()
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
