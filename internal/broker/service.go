package broker

import (
	"context"

	"github.com/shopspring/decimal"
)

// Service defines the brokerage gateway operations the advisor consumes.
// Both Client (live gateway) and MockService (tests) implement this interface.
type Service interface {
	// GetAccountID resolves the brokerage account for a platform user
	GetAccountID(ctx context.Context, userID string) (string, error)

	// SubmitOrder places an order for an account
	SubmitOrder(ctx context.Context, accountID, symbol, side string, qty decimal.Decimal) (*OrderAck, error)

	// GetQuote returns the latest quote for a symbol
	GetQuote(ctx context.Context, symbol string) (*Quote, error)

	// CheckTradable reports whether the symbol is a known, tradable asset
	CheckTradable(ctx context.Context, symbol string) (bool, error)
}
