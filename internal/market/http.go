// Package market provides price, metadata, liquidity and token-age adapters
// backed by Birdeye, Jupiter, Redis and Solana RPC.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"curator-signal-lab/internal/observability"
)

const (
	maxRetries    = 3
	baseRetryWait = 250 * time.Millisecond
)

// StatusError is a non-retryable HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// httpDoer is a rate-limited JSON GET client with retries on 429 and 5xx.
type httpDoer struct {
	http    *http.Client
	limiter *rate.Limiter
	service string
	metrics *observability.Metrics
	headers map[string]string
}

func (d *httpDoer) getJSON(ctx context.Context, method, url string, out interface{}) (err error) {
	start := time.Now()
	defer func() { d.metrics.ObserveCall(d.service, method, start, err) }()

	for attempt := 0; ; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range d.headers {
			req.Header.Set(k, v)
		}

		resp, err := d.http.Do(req)
		if err != nil {
			if ctx.Err() != nil || attempt == maxRetries {
				return fmt.Errorf("%s request: %w", d.service, err)
			}
			if err := sleep(ctx, attempt); err != nil {
				return err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if retryable && attempt < maxRetries {
			if err := sleep(ctx, attempt); err != nil {
				return err
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return &StatusError{Code: resp.StatusCode, Body: string(body)}
		}
		if readErr != nil {
			return fmt.Errorf("read response: %w", readErr)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}

func sleep(ctx context.Context, attempt int) error {
	wait := baseRetryWait * time.Duration(1<<attempt)
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
