/*

This is the exchange's pool record as returned by the pool listing, already parsed into exact
integers. The pricing engine builds its own pool state from it.

*/

package types

import (
	"cosmossdk.io/math"
)

// PoolKind is the exchange's pool implementation.
type PoolKind string

const (
	PoolKindSimple PoolKind = "SIMPLE_POOL"
	PoolKindStable PoolKind = "STABLE_SWAP"
)

type PoolID uint64

type RawPool struct {
	ID              PoolID     `json:"id"`                // Position in the exchange's global pool list
	Kind            PoolKind   `json:"pool_kind"`         // SIMPLE_POOL, STABLE_SWAP, ...
	TokenAccountIDs []TokenID  `json:"token_account_ids"` // Ordered token list
	Amounts         []math.Int `json:"amounts"`           // Balance per token, same order
	TotalFee        uint32     `json:"total_fee"`         // Basis points
	SharesTotal     math.Int   `json:"shares_total_supply"`
	Amp             uint64     `json:"amp"` // Amplification, stable pools only
}

// Supported reports whether the pricing engine understands this pool kind.
func (p RawPool) Supported() bool {
	return p.Kind == PoolKindSimple || p.Kind == PoolKindStable
}
