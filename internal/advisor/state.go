// Package advisor implements the conversational decision pipeline: intent
// classification, context aggregation, the two-phase trade confirmation
// protocol and grounded response synthesis.
package advisor

import (
	"time"

	"github.com/shopspring/decimal"
)

// Intent is the classified purpose of the user's latest message. It drives
// routing and is recomputed every turn, never read stale.
type Intent string

const (
	IntentTrade        Intent = "TRADE"
	IntentConfirmTrade Intent = "CONFIRM_TRADE"
	IntentCancelTrade  Intent = "CANCEL_TRADE"
	IntentAdvice       Intent = "ADVICE"
	IntentGeneralChat  Intent = "GENERAL_CHAT"
)

// TradeAction is the direction of a proposed order
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged conversation entry
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// PendingTrade is an unexecuted order proposal awaiting explicit user
// confirmation. At most one exists per session; it is immutable between
// creation and resolution - a new extraction overwrites it.
type PendingTrade struct {
	Symbol   string          `json:"symbol"` // uppercase ticker
	Action   TradeAction     `json:"action"`
	Quantity decimal.Decimal `json:"quantity"` // > 0
	Amount   decimal.Decimal `json:"amount"`   // notional, >= 0
}

// SessionState is the per-user conversation state. It is owned exclusively
// by the Orchestrator and mutated only under the per-user turn lock.
// Intent and tool outputs are per-turn values and are never persisted.
type SessionState struct {
	UserID       string        `json:"user_id"`
	Messages     []Message     `json:"messages"`
	PendingTrade *PendingTrade `json:"pending_trade,omitempty"`
}

// AppendMessage appends a role-tagged message to the history
func (s *SessionState) AppendMessage(role, content string) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// ToolOutputs is the ephemeral per-turn bundle consumed by the response
// synthesizer. ConfirmationRequest is deliberately separate from TradeResult
// so a proposal prompt and an execution report never share a slot.
type ToolOutputs struct {
	ContextData         string
	TradeResult         string
	ConfirmationRequest string
}

// Quote is a read-only market snapshot used within a single turn
type Quote struct {
	Symbol string
	Price  decimal.Decimal
	AsOf   time.Time
}
