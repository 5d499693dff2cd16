// Package ledger talks to the portfolio/transactions gateway and renders
// the responses as summary text suitable for grounding prompts.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Service defines the portfolio/ledger operations the advisor consumes
type Service interface {
	// GetPortfolio returns a one-line portfolio summary for the user
	GetPortfolio(ctx context.Context, userID string) (string, error)

	// GetTransactions returns a rendering of the user's most recent
	// transactions, capped at limit
	GetTransactions(ctx context.Context, userID string, limit int) (string, error)
}

// Client is an HTTP client for the portfolio gateway
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new portfolio gateway client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type holding struct {
	Symbol string  `json:"symbol"`
	Shares float64 `json:"shares"`
	Price  float64 `json:"price"`
}

type portfolioResponse struct {
	TotalValue float64   `json:"totalValue"`
	Holdings   []holding `json:"holdings"`
}

// GetPortfolio returns a one-line portfolio summary for the user
func (c *Client) GetPortfolio(ctx context.Context, userID string) (string, error) {
	url := fmt.Sprintf("%s/v1/portfolio/%s", c.baseURL, userID)

	body, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}

	var portfolio portfolioResponse
	if err := json.Unmarshal(body, &portfolio); err != nil {
		return "", fmt.Errorf("failed to decode portfolio: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total Value: $%.2f. ", portfolio.TotalValue)
	if len(portfolio.Holdings) == 0 {
		b.WriteString("No current holdings.")
	} else {
		parts := make([]string, 0, len(portfolio.Holdings))
		for _, h := range portfolio.Holdings {
			parts = append(parts, fmt.Sprintf("%s (%g shares @ $%.2f)", h.Symbol, h.Shares, h.Price))
		}
		b.WriteString("Holdings: " + strings.Join(parts, ", "))
	}

	return b.String(), nil
}

type transaction struct {
	Timestamp string  `json:"timestamp"`
	Type      string  `json:"type"`
	Shares    float64 `json:"shares"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
}

// GetTransactions returns a rendering of the user's most recent transactions
func (c *Client) GetTransactions(ctx context.Context, userID string, limit int) (string, error) {
	url := fmt.Sprintf("%s/v1/transactions/%s?limit=%d", c.baseURL, userID, limit)

	body, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}

	var txns []transaction
	if err := json.Unmarshal(body, &txns); err != nil {
		return "", fmt.Errorf("failed to decode transactions: %w", err)
	}

	if len(txns) == 0 {
		return "No recent transactions.", nil
	}
	if len(txns) > limit {
		txns = txns[:limit]
	}

	entries := make([]string, 0, len(txns))
	for _, t := range txns {
		date := t.Timestamp
		if len(date) > 10 {
			date = date[:10]
		}
		entries = append(entries, fmt.Sprintf("%s: %s %g %s @ $%.2f", date, t.Type, t.Shares, t.Symbol, t.Price))
	}

	return "Recent Activity: " + strings.Join(entries, "; "), nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Debug().
			Int("status", resp.StatusCode).
			Str("url", url).
			Msg("Gateway returned non-OK status")
		return nil, fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
