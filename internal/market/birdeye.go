package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/observability"
)

const (
	// DefaultBirdeyeURL is the Birdeye public API base.
	DefaultBirdeyeURL = "https://public-api.birdeye.so"

	birdeyeRatePerSec = 2
)

// BirdeyeClient is a price oracle and metadata source backed by Birdeye.
type BirdeyeClient struct {
	baseURL string
	doer    *httpDoer
}

// NewBirdeyeClient creates a client limited to 2 requests per second.
func NewBirdeyeClient(baseURL, apiKey string, timeout time.Duration, metrics *observability.Metrics) *BirdeyeClient {
	if baseURL == "" {
		baseURL = DefaultBirdeyeURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BirdeyeClient{
		baseURL: baseURL,
		doer: &httpDoer{
			http:    &http.Client{Timeout: timeout},
			limiter: rate.NewLimiter(birdeyeRatePerSec, 1),
			service: "birdeye",
			metrics: metrics,
			headers: map[string]string{
				"X-API-KEY": apiKey,
				"x-chain":   "solana",
			},
		},
	}
}

type birdeyeResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// get returns the data payload, or nil when Birdeye reports success=false.
func (c *BirdeyeClient) get(ctx context.Context, method, path string, params url.Values) (json.RawMessage, error) {
	var resp birdeyeResponse
	if err := c.doer.getJSON(ctx, method, c.baseURL+path+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if !resp.Success || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, nil
	}
	return resp.Data, nil
}

// CurrentPrice returns the USD price, or nil when Birdeye has none.
func (c *BirdeyeClient) CurrentPrice(ctx context.Context, token string) (*float64, error) {
	data, err := c.get(ctx, "price", "/defi/price", url.Values{"address": {token}})
	if err != nil || data == nil {
		return nil, err
	}
	var price struct {
		Value float64 `json:"value"`
	}
	if err := json.Unmarshal(data, &price); err != nil {
		return nil, fmt.Errorf("decode price: %w", err)
	}
	if price.Value <= 0 {
		return nil, nil
	}
	return &price.Value, nil
}

// TokenMetadata returns name, symbol and decimals from token_overview.
func (c *BirdeyeClient) TokenMetadata(ctx context.Context, token string) (*domain.TokenMetadata, error) {
	data, err := c.get(ctx, "token_overview", "/defi/token_overview", url.Values{"address": {token}})
	if err != nil || data == nil {
		return nil, err
	}
	var overview struct {
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals *int   `json:"decimals"`
	}
	if err := json.Unmarshal(data, &overview); err != nil {
		return nil, fmt.Errorf("decode token overview: %w", err)
	}
	return &domain.TokenMetadata{
		Mint:     token,
		Name:     overview.Name,
		Symbol:   overview.Symbol,
		Decimals: overview.Decimals,
	}, nil
}
