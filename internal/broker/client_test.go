package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(url string) *Client {
	return NewClient(ClientConfig{
		BaseURL:           url,
		APIKey:            "key",
		APISecret:         "secret",
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000, // tests should not be throttled
	})
}

func TestGetAccountID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/by-user/user-1", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		_ = json.NewEncoder(w).Encode(map[string]string{"account_id": "acct-42"})
	}))
	defer srv.Close()

	id, err := testClient(srv.URL).GetAccountID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "acct-42", id)
}

func TestSubmitOrder(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantErr      bool
		wantAccepted bool
	}{
		{name: "submitted", status: http.StatusOK},
		{name: "accepted for processing", status: http.StatusAccepted, wantAccepted: true},
		{name: "rejected", status: http.StatusForbidden, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/trade", r.URL.Path)

				var req OrderRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "market", req.Type)
				assert.Equal(t, "day", req.TimeInForce)
				assert.NotEmpty(t, req.ClientOrderID)

				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "submitted", "symbol": req.Symbol, "side": req.Side})
			}))
			defer srv.Close()

			ack, err := testClient(srv.URL).SubmitOrder(context.Background(), "acct-1", "NVDA", SideBuy, decimal.NewFromInt(15))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "NVDA", ack.Symbol)
			assert.Equal(t, tt.wantAccepted, ack.Accepted)
		})
	}
}

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quotes/NVDA", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"symbol": "NVDA", "ap": 101.5, "bp": 100.5})
	}))
	defer srv.Close()

	quote, err := testClient(srv.URL).GetQuote(context.Background(), "NVDA")
	require.NoError(t, err)
	assert.Equal(t, "NVDA", quote.Symbol)
	assert.True(t, quote.AskPrice.Equal(decimal.NewFromFloat(101.5)))
	assert.True(t, quote.BidPrice.Equal(decimal.NewFromFloat(100.5)))
}

func TestCheckTradable(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr bool
	}{
		{name: "tradable", status: http.StatusOK, body: `{"symbol": "XXXX", "status": "active", "tradable": true}`, want: true},
		{name: "known but not tradable", status: http.StatusOK, body: `{"symbol": "XXXX", "status": "inactive", "tradable": false}`, want: false},
		{name: "tradable with empty body", status: http.StatusOK, want: true},
		{name: "forbidden", status: http.StatusForbidden, want: false},
		{name: "unknown symbol", status: http.StatusNotFound, want: false},
		{name: "gateway error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != "" {
					_, _ = w.Write([]byte(tt.body))
				}
			}))
			defer srv.Close()

			tradable, err := testClient(srv.URL).CheckTradable(context.Background(), "XXXX")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tradable)
		})
	}
}

func TestMarketDataRequestsUseDataURL(t *testing.T) {
	var dataPaths []string
	dataSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dataPaths = append(dataPaths, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"symbol": "NVDA", "ap": 101.5, "bp": 100.5})
	}))
	defer dataSrv.Close()

	tradeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("market-data request hit the trading host: %s", r.URL.Path)
	}))
	defer tradeSrv.Close()

	client := NewClient(ClientConfig{
		BaseURL:           tradeSrv.URL,
		DataURL:           dataSrv.URL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000,
	})
	ctx := context.Background()

	_, err := client.GetQuote(ctx, "NVDA")
	require.NoError(t, err)
	_, err = client.CheckTradable(ctx, "NVDA")
	require.NoError(t, err)

	assert.Equal(t, []string{"/v1/quotes/NVDA", "/v1/assets/NVDA"}, dataPaths)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close() // every request fails at the transport level

	client := NewClient(ClientConfig{
		BaseURL:           srv.URL,
		Timeout:           500 * time.Millisecond,
		RequestsPerSecond: 1000,
		BreakerMinReqs:    3,
		BreakerRatio:      0.5,
		BreakerOpenFor:    time.Minute,
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = client.GetQuote(ctx, "NVDA")
	}

	_, err := client.GetQuote(ctx, "NVDA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
}
