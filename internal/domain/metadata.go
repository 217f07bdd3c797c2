package domain

import "time"

// TokenMetadata is descriptive token data from a market data provider.
type TokenMetadata struct {
	Mint      string     // token mint address
	Name      string     // empty when unknown
	Symbol    string     // empty when unknown
	Decimals  *int       // nullable
	CreatedAt *time.Time // first on-chain activity (nullable)
}
