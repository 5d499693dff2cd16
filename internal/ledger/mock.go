package ledger

import (
	"context"
	"sync"
)

// MockService is an in-memory Service implementation for tests
type MockService struct {
	mu sync.Mutex

	Portfolio    string
	PortfolioErr error

	Transactions    string
	TransactionsErr error

	PortfolioCalls    int
	TransactionCalls  int
	LastRequestedUser string
}

// GetPortfolio implements Service
func (m *MockService) GetPortfolio(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PortfolioCalls++
	m.LastRequestedUser = userID
	if m.PortfolioErr != nil {
		return "", m.PortfolioErr
	}
	return m.Portfolio, nil
}

// GetTransactions implements Service
func (m *MockService) GetTransactions(ctx context.Context, userID string, limit int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransactionCalls++
	if m.TransactionsErr != nil {
		return "", m.TransactionsErr
	}
	return m.Transactions, nil
}
