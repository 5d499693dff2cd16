package broker

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order sides accepted by the brokerage gateway
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Quote is the latest market quote for a symbol
type Quote struct {
	Symbol    string          `json:"symbol"`
	AskPrice  decimal.Decimal `json:"ap"`
	BidPrice  decimal.Decimal `json:"bp"`
	Timestamp time.Time       `json:"t"`
}

// OrderRequest is a trade submission. Type and TimeInForce default to a
// market day order when left empty.
type OrderRequest struct {
	AccountID     string          `json:"account_id"`
	Symbol        string          `json:"symbol"`
	Qty           decimal.Decimal `json:"qty"`
	Side          string          `json:"side"` // "buy" or "sell"
	Type          string          `json:"type"`
	TimeInForce   string          `json:"time_in_force"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
}

// OrderAck is the gateway's acknowledgment of a submitted order
type OrderAck struct {
	Status   string `json:"status"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Accepted bool   `json:"-"` // true when the gateway queued the order (202)
}

// Asset describes a tradable instrument
type Asset struct {
	ID       string `json:"id"`
	Class    string `json:"class"`
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Status   string `json:"status"`
	Tradable bool   `json:"tradable"`
}
