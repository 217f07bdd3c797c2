package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/observability"
)

// DefaultHeliusURL is the Helius enhanced transactions API base.
const DefaultHeliusURL = "https://api.helius.xyz"

// HeliusParser derives curator trades from the Helius enhanced
// transactions API (POST /v0/transactions).
type HeliusParser struct {
	baseURL string
	apiKey  string
	client  *http.Client
	metrics *observability.Metrics
}

// NewHeliusParser creates a parser. An empty baseURL uses DefaultHeliusURL.
func NewHeliusParser(baseURL, apiKey string, timeout time.Duration, metrics *observability.Metrics) *HeliusParser {
	if baseURL == "" {
		baseURL = DefaultHeliusURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HeliusParser{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		metrics: metrics,
	}
}

type heliusTx struct {
	Signature        string                 `json:"signature"`
	Slot             int64                  `json:"slot"`
	TransactionError interface{}            `json:"transactionError"`
	TokenTransfers   []heliusTokenTransfer  `json:"tokenTransfers"`
	NativeTransfers  []heliusNativeTransfer `json:"nativeTransfers"`
}

type heliusTokenTransfer struct {
	FromUserAccount string          `json:"fromUserAccount"`
	ToUserAccount   string          `json:"toUserAccount"`
	Mint            string          `json:"mint"`
	TokenAmount     decimal.Decimal `json:"tokenAmount"`
}

type heliusNativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"` // lamports
}

// Parse implements TxParser.
func (p *HeliusParser) Parse(ctx context.Context, wallet, signature string) (_ []domain.TradeEvent, err error) {
	start := time.Now()
	defer func() { p.metrics.ObserveCall("helius", "transactions", start, err) }()

	body, err := json.Marshal(map[string][]string{"transactions": {signature}})
	if err != nil {
		return nil, err
	}
	endpoint := p.baseURL + "/v0/transactions?api-key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("helius request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("helius status %d: %s", resp.StatusCode, string(raw))
	}

	var txs []heliusTx
	if err := json.Unmarshal(raw, &txs); err != nil {
		return nil, fmt.Errorf("decode helius response: %w", err)
	}
	if len(txs) == 0 {
		return nil, ErrTxNotFound
	}
	tx := txs[0]
	if tx.TransactionError != nil {
		return nil, nil
	}

	change := newBalanceChange()
	for _, t := range tx.NativeTransfers {
		if t.ToUserAccount == wallet {
			change.addLamports(t.Amount)
		}
		if t.FromUserAccount == wallet {
			change.addLamports(-t.Amount)
		}
	}
	for _, t := range tx.TokenTransfers {
		if t.ToUserAccount == wallet {
			change.addToken(t.Mint, t.TokenAmount)
		}
		if t.FromUserAccount == wallet {
			change.addToken(t.Mint, t.TokenAmount.Neg())
		}
	}
	return change.events(wallet, signature, tx.Slot), nil
}
