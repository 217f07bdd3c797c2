// Package idhash derives deterministic identifiers for paper trades.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic paper trade id.
// Formula: SHA256(curator_wallet|token_id|detected_at_ms), hex encoded (64 characters).
func ComputeTradeID(curatorWallet, tokenID string, detectedAtMs int64) string {
	data := fmt.Sprintf("%s|%s|%d", curatorWallet, tokenID, detectedAtMs)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
