package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/irisfin/advisor/internal/broker"
	"github.com/irisfin/advisor/internal/llm"
	"github.com/irisfin/advisor/internal/metrics"
)

// Extractor turns free text into structured JSON at low temperature
type Extractor interface {
	ExtractStructured(ctx context.Context, prompt string) (string, error)
}

const extractionPromptTemplate = `Extract the trade order from the user message below.
Respond with ONLY a JSON object, no prose, with these fields:
  "symbol":   uppercase ticker symbol, or "" if none was given
  "action":   "BUY" or "SELL"
  "quantity": number of shares, 0 if not specified
  "amount":   dollar amount to invest, 0 if not specified
  "strategy": short free-text note on the user's stated goal, or ""

User message: %s`

// tradeExtraction mirrors the JSON shape the extraction model is asked for
type tradeExtraction struct {
	Symbol   string          `json:"symbol"`
	Action   string          `json:"action"`
	Quantity decimal.Decimal `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
	Strategy string          `json:"strategy"`
}

// TradeDesk turns trade requests into confirmed proposals and submits
// confirmed proposals to the brokerage gateway.
type TradeDesk struct {
	extractor     Extractor
	broker        broker.Service
	markets       *MarketLookup
	defaultSymbol string
}

// NewTradeDesk creates a trade desk
func NewTradeDesk(extractor Extractor, brokerSvc broker.Service, markets *MarketLookup, defaultSymbol string) *TradeDesk {
	if defaultSymbol == "" {
		defaultSymbol = "SPY"
	}
	return &TradeDesk{
		extractor:     extractor,
		broker:        brokerSvc,
		markets:       markets,
		defaultSymbol: defaultSymbol,
	}
}

// Propose extracts a structured order from the message and returns the
// proposal together with the confirmation question to put to the user.
// A failed or malformed extraction returns a nil proposal and a clarification
// request instead; proposing never returns an error.
func (d *TradeDesk) Propose(ctx context.Context, userID, message string) (*PendingTrade, string) {
	raw, err := d.extractor.ExtractStructured(ctx, fmt.Sprintf(extractionPromptTemplate, message))
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Trade extraction failed")
		return nil, "I failed to understand the trade details. Could you rephrase your order?"
	}

	var ext tradeExtraction
	if err := llm.ParseJSONResponse(raw, &ext); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Trade extraction returned malformed JSON")
		return nil, "I failed to understand the trade details. Could you rephrase your order?"
	}

	trade := &PendingTrade{
		Symbol:   strings.ToUpper(strings.TrimSpace(ext.Symbol)),
		Action:   normalizeAction(ext.Action),
		Quantity: ext.Quantity,
		Amount:   ext.Amount,
	}
	if trade.Symbol == "" {
		trade.Symbol = d.defaultSymbol
	}

	quote, err := d.markets.Quote(ctx, trade.Symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", trade.Symbol).Msg("No live quote while sizing proposal")
		quote = nil
	}

	// Notional orders are converted to shares at the live price. Without a
	// price, or with neither quantity nor amount, fall back to a single share
	// so the confirmation question always names a concrete order.
	if trade.Quantity.IsZero() && trade.Amount.IsPositive() && quote != nil {
		trade.Quantity = trade.Amount.Div(quote.Price).Round(4)
	}
	if trade.Quantity.IsZero() {
		trade.Quantity = decimal.NewFromInt(1)
	}

	metrics.RecordTradeProposal()
	log.Info().
		Str("user_id", userID).
		Str("symbol", trade.Symbol).
		Str("action", string(trade.Action)).
		Str("quantity", trade.Quantity.String()).
		Msg("Trade proposed")

	return trade, confirmationText(trade, quote)
}

func confirmationText(trade *PendingTrade, quote *Quote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Please confirm: %s %s shares of %s", trade.Action, trade.Quantity.String(), trade.Symbol)
	if quote != nil {
		total := trade.Quantity.Mul(quote.Price)
		fmt.Fprintf(&b, " at an estimated $%s per share (total approx. $%s)",
			quote.Price.StringFixed(2), total.StringFixed(2))
	}
	b.WriteString(". Reply \"yes\" to place the order or \"no\" to cancel.")
	return b.String()
}

// Execute submits a confirmed proposal as a market day order and returns the
// execution report for the user. Failures are reported in the text, never as
// an error: by the time Execute runs the proposal is already cleared and the
// turn must produce a reply either way.
func (d *TradeDesk) Execute(ctx context.Context, userID string, trade *PendingTrade) string {
	accountID, err := d.broker.GetAccountID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Account lookup failed")
		metrics.RecordTradeExecution(false)
		return fmt.Sprintf("Trade failed: could not resolve your brokerage account (%v).", err)
	}

	ack, err := d.broker.SubmitOrder(ctx, accountID, trade.Symbol, sideFor(trade.Action), trade.Quantity)
	if err != nil {
		log.Error().Err(err).
			Str("user_id", userID).
			Str("symbol", trade.Symbol).
			Msg("Order submission failed")
		metrics.RecordTradeExecution(false)
		return fmt.Sprintf("Trade failed: the %s order for %s shares of %s was rejected (%v).",
			trade.Action, trade.Quantity.String(), trade.Symbol, err)
	}

	metrics.RecordTradeExecution(true)
	log.Info().
		Str("user_id", userID).
		Str("symbol", trade.Symbol).
		Str("status", ack.Status).
		Msg("Order submitted")

	report := fmt.Sprintf("Order placed: %s %s shares of %s.", trade.Action, trade.Quantity.String(), trade.Symbol)
	if quote, err := d.markets.Quote(ctx, trade.Symbol); err == nil {
		total := trade.Quantity.Mul(quote.Price)
		report += fmt.Sprintf(" Estimated fill price: $%s per share (total approx. $%s).",
			quote.Price.StringFixed(2), total.StringFixed(2))
	}
	return report
}

func normalizeAction(action string) TradeAction {
	if strings.EqualFold(strings.TrimSpace(action), string(ActionSell)) {
		return ActionSell
	}
	return ActionBuy
}

func sideFor(action TradeAction) string {
	if action == ActionSell {
		return broker.SideSell
	}
	return broker.SideBuy
}
