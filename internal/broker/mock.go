package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// SubmittedOrder records a SubmitOrder call against the mock
type SubmittedOrder struct {
	AccountID string
	Symbol    string
	Side      string
	Qty       decimal.Decimal
}

// MockService is an in-memory Service implementation for tests
type MockService struct {
	mu sync.Mutex

	AccountID  string
	AccountErr error

	Quotes   map[string]*Quote
	QuoteErr error

	Tradable    map[string]bool
	TradableErr error

	SubmitErr error
	Accepted  bool

	Orders     []SubmittedOrder
	QuoteCalls int
}

// NewMockService creates a mock with a single account and no market data
func NewMockService() *MockService {
	return &MockService{
		AccountID: "acct-0001",
		Quotes:    make(map[string]*Quote),
		Tradable:  make(map[string]bool),
	}
}

// SetQuote registers a quote and marks the symbol tradable
func (m *MockService) SetQuote(symbol string, ask, bid float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Quotes[symbol] = &Quote{
		Symbol:   symbol,
		AskPrice: decimal.NewFromFloat(ask),
		BidPrice: decimal.NewFromFloat(bid),
	}
	m.Tradable[symbol] = true
}

// GetAccountID implements Service
func (m *MockService) GetAccountID(ctx context.Context, userID string) (string, error) {
	if m.AccountErr != nil {
		return "", m.AccountErr
	}
	return m.AccountID, nil
}

// SubmitOrder implements Service
func (m *MockService) SubmitOrder(ctx context.Context, accountID, symbol, side string, qty decimal.Decimal) (*OrderAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubmitErr != nil {
		return nil, m.SubmitErr
	}
	m.Orders = append(m.Orders, SubmittedOrder{
		AccountID: accountID,
		Symbol:    symbol,
		Side:      side,
		Qty:       qty,
	})
	return &OrderAck{Status: "submitted", Symbol: symbol, Side: side, Accepted: m.Accepted}, nil
}

// GetQuote implements Service
func (m *MockService) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QuoteCalls++
	if m.QuoteErr != nil {
		return nil, m.QuoteErr
	}
	q, ok := m.Quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}
	return q, nil
}

// CheckTradable implements Service
func (m *MockService) CheckTradable(ctx context.Context, symbol string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TradableErr != nil {
		return false, m.TradableErr
	}
	return m.Tradable[symbol], nil
}
