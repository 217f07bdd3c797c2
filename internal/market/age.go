package market

import (
	"context"
	"errors"
	"sync"
	"time"

	"curator-signal-lab/internal/solana"
)

const (
	signaturePageSize = 1000
	defaultMaxPages   = 20
)

// ErrNoHistory is returned when a mint has no signatures.
var ErrNoHistory = errors.New("no signature history")

// TokenAgeLookup finds a token's first on-chain activity by paging
// getSignaturesForAddress on the mint back to its oldest signature.
type TokenAgeLookup struct {
	rpc      solana.RPCClient
	maxPages int
	cache    sync.Map // mint -> time.Time, only for fully paged histories
}

// NewTokenAgeLookup creates a lookup. maxPages bounds the walk; when it is
// reached the oldest signature seen so far is returned.
func NewTokenAgeLookup(rpc solana.RPCClient, maxPages int) *TokenAgeLookup {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &TokenAgeLookup{rpc: rpc, maxPages: maxPages}
}

// FirstSeen returns the block time of the oldest signature on the mint.
func (l *TokenAgeLookup) FirstSeen(ctx context.Context, mint string) (time.Time, error) {
	if v, ok := l.cache.Load(mint); ok {
		return v.(time.Time), nil
	}

	var (
		oldest   time.Time
		before   string
		complete bool
	)
	for page := 0; page < l.maxPages; page++ {
		sigs, err := l.rpc.GetSignaturesForAddress(ctx, mint, &solana.SignaturesOpts{
			Before: before,
			Limit:  signaturePageSize,
		})
		if err != nil {
			return time.Time{}, err
		}
		for _, s := range sigs {
			if s.BlockTime != nil {
				oldest = time.Unix(*s.BlockTime, 0).UTC()
			}
		}
		if len(sigs) < signaturePageSize {
			complete = true
			break
		}
		before = sigs[len(sigs)-1].Signature
	}

	if oldest.IsZero() {
		return time.Time{}, ErrNoHistory
	}
	if complete {
		l.cache.Store(mint, oldest)
	}
	return oldest, nil
}
