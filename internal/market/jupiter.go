package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/observability"
	"curator-signal-lab/internal/solana"
)

const (
	// DefaultJupiterURL is the Jupiter v6 quote API base.
	DefaultJupiterURL = "https://quote-api.jup.ag/v6"

	// USDCMint is the USDC token mint.
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	usdcDecimals       = 6
	defaultSlippageBps = 50
	jupiterRatePerSec  = 10
)

// errNoRoute means Jupiter has no route for the pair.
var errNoRoute = errors.New("no route")

var noRouteCodes = map[string]bool{
	"COULD_NOT_FIND_ANY_ROUTE": true,
	"NO_ROUTES_FOUND":          true,
	"TOKEN_NOT_TRADABLE":       true,
}

// JupiterProbe quotes a round trip through Jupiter: a USDC→token leg sizes
// the test position, then a token→USDC leg gives impact and executable price.
type JupiterProbe struct {
	baseURL     string
	slippageBps int
	doer        *httpDoer
	rpc         solana.RPCClient
	decimals    sync.Map // mint -> int
}

// NewJupiterProbe creates a probe. rpc resolves token decimals.
func NewJupiterProbe(baseURL string, rpc solana.RPCClient, timeout time.Duration, metrics *observability.Metrics) *JupiterProbe {
	if baseURL == "" {
		baseURL = DefaultJupiterURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &JupiterProbe{
		baseURL:     baseURL,
		slippageBps: defaultSlippageBps,
		rpc:         rpc,
		doer: &httpDoer{
			http:    &http.Client{Timeout: timeout},
			limiter: rate.NewLimiter(jupiterRatePerSec, 2),
			service: "jupiter",
			metrics: metrics,
		},
	}
}

type jupiterQuote struct {
	InAmount       decimal.Decimal `json:"inAmount"`
	OutAmount      decimal.Decimal `json:"outAmount"`
	PriceImpactPct decimal.Decimal `json:"priceImpactPct"`
}

type jupiterError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// QuoteExit implements the tracker's liquidity probe. An unroutable pair is
// a successful quote with Routable=false.
func (p *JupiterProbe) QuoteExit(ctx context.Context, token string, sizeUSD float64) (domain.ExitQuote, error) {
	usdcIn := decimal.NewFromFloat(sizeUSD).Shift(usdcDecimals).Floor()
	buy, err := p.quote(ctx, USDCMint, token, usdcIn)
	if errors.Is(err, errNoRoute) {
		return domain.ExitQuote{Routable: false}, nil
	}
	if err != nil {
		return domain.ExitQuote{}, fmt.Errorf("buy leg: %w", err)
	}
	if !buy.OutAmount.IsPositive() {
		return domain.ExitQuote{Routable: false}, nil
	}

	sell, err := p.quote(ctx, token, USDCMint, buy.OutAmount)
	if errors.Is(err, errNoRoute) {
		return domain.ExitQuote{Routable: false}, nil
	}
	if err != nil {
		return domain.ExitQuote{}, fmt.Errorf("sell leg: %w", err)
	}

	decimals, err := p.tokenDecimals(ctx, token)
	if err != nil {
		return domain.ExitQuote{}, fmt.Errorf("token decimals: %w", err)
	}

	tokens := buy.OutAmount.Shift(int32(-decimals))
	usdcOut := sell.OutAmount.Shift(-usdcDecimals)
	price := usdcOut.Div(tokens).InexactFloat64()
	impactBps := sell.PriceImpactPct.Mul(decimal.NewFromInt(100)).InexactFloat64()

	return domain.ExitQuote{
		Routable:        true,
		PriceImpactBps:  &impactBps,
		ExecutablePrice: &price,
	}, nil
}

func (p *JupiterProbe) quote(ctx context.Context, in, out string, amount decimal.Decimal) (*jupiterQuote, error) {
	params := url.Values{
		"inputMint":   {in},
		"outputMint":  {out},
		"amount":      {amount.String()},
		"slippageBps": {strconv.Itoa(p.slippageBps)},
		"swapMode":    {"ExactIn"},
	}
	var q jupiterQuote
	err := p.doer.getJSON(ctx, "quote", p.baseURL+"/quote?"+params.Encode(), &q)
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		var body jupiterError
		if json.Unmarshal([]byte(statusErr.Body), &body) == nil && noRouteCodes[body.ErrorCode] {
			return nil, errNoRoute
		}
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (p *JupiterProbe) tokenDecimals(ctx context.Context, mint string) (int, error) {
	if v, ok := p.decimals.Load(mint); ok {
		return v.(int), nil
	}
	d, err := solana.MintDecimals(ctx, p.rpc, mint)
	if err != nil {
		return 0, err
	}
	p.decimals.Store(mint, d)
	return d, nil
}
