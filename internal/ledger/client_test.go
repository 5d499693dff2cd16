package ledger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPortfolio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/portfolio/user-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"totalValue": 12500.50,
			"holdings": [
				{"symbol": "NVDA", "shares": 10, "price": 450.25},
				{"symbol": "AAPL", "shares": 5.5, "price": 180.10}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	summary, err := client.GetPortfolio(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Total Value: $12500.50. Holdings: NVDA (10 shares @ $450.25), AAPL (5.5 shares @ $180.10)", summary)
}

func TestGetPortfolioEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalValue": 0, "holdings": []}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	summary, err := client.GetPortfolio(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Total Value: $0.00. No current holdings.", summary)
}

func TestGetTransactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transactions/user-1", r.URL.Path)
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			{"timestamp": "2026-08-28T14:02:11Z", "type": "BUY", "shares": 10, "symbol": "NVDA", "price": 450.25},
			{"timestamp": "2026-08-27T09:30:00Z", "type": "SELL", "shares": 2, "symbol": "AAPL", "price": 179.90}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	activity, err := client.GetTransactions(context.Background(), "user-1", 1000)
	require.NoError(t, err)
	assert.Equal(t, "Recent Activity: 2026-08-28: BUY 10 NVDA @ $450.25; 2026-08-27: SELL 2 AAPL @ $179.90", activity)
}

func TestGetTransactionsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)
	activity, err := client.GetTransactions(context.Background(), "user-1", 1000)
	require.NoError(t, err)
	assert.Equal(t, "No recent transactions.", activity)
}

func TestGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second)

	_, err := client.GetPortfolio(context.Background(), "user-1")
	require.Error(t, err)

	_, err = client.GetTransactions(context.Background(), "user-1", 10)
	require.Error(t, err)
}
