package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Client is an HTTP client for the brokerage gateway
type Client struct {
	baseURL    string
	dataURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

// ClientConfig contains configuration for the broker client
type ClientConfig struct {
	BaseURL           string
	DataURL           string
	APIKey            string
	APISecret         string
	Timeout           time.Duration
	RequestsPerSecond float64
	BreakerMinReqs    uint32
	BreakerRatio      float64
	BreakerOpenFor    time.Duration
}

// NewClient creates a new broker gateway client
func NewClient(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	// Gateways that don't split trading and market-data hosts serve both
	// from the base URL.
	if config.DataURL == "" {
		config.DataURL = config.BaseURL
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 3.0
	}
	if config.BreakerMinReqs == 0 {
		config.BreakerMinReqs = 5
	}
	if config.BreakerRatio == 0 {
		config.BreakerRatio = 0.6
	}
	if config.BreakerOpenFor == 0 {
		config.BreakerOpenFor = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "broker",
		Interval: 10 * time.Second,
		Timeout:  config.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.BreakerMinReqs {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= config.BreakerRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Broker circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:    config.BaseURL,
		dataURL:    config.DataURL,
		apiKey:     config.APIKey,
		apiSecret:  config.APISecret,
		httpClient: &http.Client{Timeout: config.Timeout},
		breaker:    breaker,
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
	}
}

// doRequest issues an authenticated request through the rate limiter and
// circuit breaker. The breaker fails fast when the gateway is unhealthy; it
// never retries.
func (c *Client) doRequest(ctx context.Context, method, url string, body interface{}) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.SetBasicAuth(c.apiKey, c.apiSecret)
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, err
	}

	return result.(*http.Response), nil
}

// GetAccountID resolves the brokerage account for a platform user
func (c *Client) GetAccountID(ctx context.Context, userID string) (string, error) {
	url := fmt.Sprintf("%s/v1/accounts/by-user/%s", c.baseURL, userID)
	resp, err := c.doRequest(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("account lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("account lookup failed (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode account response: %w", err)
	}
	if result.AccountID == "" {
		return "", fmt.Errorf("no brokerage account for user %s", userID)
	}
	return result.AccountID, nil
}

// SubmitOrder places a market day order for an account. Both 200 (submitted)
// and 202 (accepted for processing) count as success.
func (c *Client) SubmitOrder(ctx context.Context, accountID, symbol, side string, qty decimal.Decimal) (*OrderAck, error) {
	order := OrderRequest{
		AccountID:     accountID,
		Symbol:        symbol,
		Qty:           qty,
		Side:          side,
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: uuid.NewString(),
	}

	url := c.baseURL + "/v1/trade"
	resp, err := c.doRequest(ctx, "POST", url, order)
	if err != nil {
		return nil, fmt.Errorf("order submission failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("order rejected (status %d): %s", resp.StatusCode, string(body))
	}

	var ack OrderAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		// The order went through; a malformed ack body is not a failure
		log.Warn().Err(err).Str("symbol", symbol).Msg("Could not decode order ack")
		ack = OrderAck{Status: "submitted", Symbol: symbol, Side: side}
	}
	ack.Accepted = resp.StatusCode == http.StatusAccepted

	log.Info().
		Str("account_id", accountID).
		Str("symbol", symbol).
		Str("side", side).
		Str("qty", qty.String()).
		Bool("accepted", ack.Accepted).
		Msg("Order submitted")

	return &ack, nil
}

// GetQuote returns the latest quote for a symbol
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	url := fmt.Sprintf("%s/v1/quotes/%s", c.dataURL, symbol)
	resp, err := c.doRequest(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("quote fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("quote fetch failed (status %d): %s", resp.StatusCode, string(body))
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}
	if quote.Symbol == "" {
		quote.Symbol = symbol
	}
	return &quote, nil
}

// CheckTradable reports whether a symbol is a known, tradable asset.
// The gateway answers 200 for known symbols (with the asset's tradable
// flag in the body), 403 for known-but-untradable and 404 for unknown.
func (c *Client) CheckTradable(ctx context.Context, symbol string) (bool, error) {
	url := fmt.Sprintf("%s/v1/assets/%s", c.dataURL, symbol)
	resp, err := c.doRequest(ctx, "GET", url, nil)
	if err != nil {
		return false, fmt.Errorf("asset check failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var asset Asset
		if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
			// Older gateways answer 200 with an empty body for tradable
			// symbols.
			return true, nil
		}
		return asset.Tradable, nil
	case http.StatusForbidden, http.StatusNotFound:
		return false, nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("asset check failed (status %d): %s", resp.StatusCode, string(body))
	}
}
