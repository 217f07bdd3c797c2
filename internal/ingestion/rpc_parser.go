package ingestion

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/solana"
)

// RPCParser derives curator trades from getTransaction balance metadata.
// It is DEX-agnostic: any transaction that moves a token balance owned by
// the wallet counts as a trade.
type RPCParser struct {
	rpc solana.RPCClient
}

// NewRPCParser creates a parser over the given RPC client.
func NewRPCParser(rpc solana.RPCClient) *RPCParser {
	return &RPCParser{rpc: rpc}
}

// Parse implements TxParser.
func (p *RPCParser) Parse(ctx context.Context, wallet, signature string) ([]domain.TradeEvent, error) {
	tx, err := p.rpc.GetTransaction(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", signature, err)
	}
	if tx == nil {
		return nil, ErrTxNotFound
	}
	if tx.Failed() || tx.Meta == nil {
		return nil, nil
	}
	return walletChange(tx, wallet).events(wallet, signature, tx.Slot), nil
}

// walletChange computes the wallet's SOL and token deltas. The fee is added
// back when the wallet paid it so that size reflects the swap alone.
func walletChange(tx *solana.Transaction, wallet string) *balanceChange {
	meta := tx.Meta
	change := newBalanceChange()

	for i, key := range tx.AccountKeys() {
		if key != wallet || i >= len(meta.PreBalances) || i >= len(meta.PostBalances) {
			continue
		}
		delta := int64(meta.PostBalances[i]) - int64(meta.PreBalances[i])
		if i == 0 {
			delta += int64(meta.Fee)
		}
		change.addLamports(delta)
		break
	}

	for _, tb := range meta.PreTokenBalances {
		if tb.Owner == wallet {
			change.addToken(tb.Mint, uiAmount(tb).Neg())
		}
	}
	for _, tb := range meta.PostTokenBalances {
		if tb.Owner == wallet {
			change.addToken(tb.Mint, uiAmount(tb))
		}
	}
	return change
}

func uiAmount(tb solana.TokenBalance) decimal.Decimal {
	raw, err := decimal.NewFromString(tb.Amount)
	if err != nil {
		return decimal.Zero
	}
	return raw.Shift(int32(-tb.Decimals))
}
