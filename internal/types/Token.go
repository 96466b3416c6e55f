/*

This file contains the lending market's per-token state: the supply and borrow pools that
convert shares into balances, the risk configuration, and the oracle quotes used to value
balances in USD.

*/

package types

import (
	"github.com/shopspring/decimal"
)

// TokenID is a NEAR fungible token contract account, e.g. "wrap.near".
type TokenID = string

// Pool is a share/balance pair. The exchange rate balance/shares drifts as interest accrues.
type Pool struct {
	Shares  decimal.Decimal `json:"shares"`
	Balance decimal.Decimal `json:"balance"`
}

// AssetConfig is the asset's risk configuration. Ratios are fractions (0.6 = 60%) and rates
// are per-nanosecond multipliers, both already converted from their raw ledger encodings.
type AssetConfig struct {
	ReserveRatio          decimal.Decimal `json:"reserve_ratio"`
	TargetUtilization     decimal.Decimal `json:"target_utilization"`
	TargetUtilizationRate decimal.Decimal `json:"target_utilization_rate"`
	MaxUtilizationRate    decimal.Decimal `json:"max_utilization_rate"`
	VolatilityRatio       decimal.Decimal `json:"volatility_ratio"` // Risk weight in (0, 1]
	ExtraDecimals         int32           `json:"extra_decimals"`   // Ledger-internal decimals on top of the token's own
	CanDeposit            bool            `json:"can_deposit"`
	CanWithdraw           bool            `json:"can_withdraw"`
	CanUseAsCollateral    bool            `json:"can_use_as_collateral"`
	CanBorrow             bool            `json:"can_borrow"`
}

// Asset is one token's market state for a single valuation pass.
type Asset struct {
	TokenID             TokenID         `json:"token_id"`
	Supplied            Pool            `json:"supplied"`
	Borrowed            Pool            `json:"borrowed"`
	Reserved            decimal.Decimal `json:"reserved"`
	LastUpdateTimestamp decimal.Decimal `json:"last_update_timestamp"` // Milliseconds since epoch
	Config              AssetConfig     `json:"config"`
}

// Assets indexes assets by token id.
type Assets map[TokenID]Asset

// PriceQuote values a raw amount as amount * Multiplier / 10^(Decimals + extraDecimals).
type PriceQuote struct {
	Multiplier decimal.Decimal `json:"multiplier"`
	Decimals   int32           `json:"decimals"`
}

// PriceData is an oracle snapshot. A token missing from Prices is unpriced.
type PriceData struct {
	Timestamp          decimal.Decimal        `json:"timestamp"` // Milliseconds since epoch
	RecencyDurationSec int64                  `json:"recency_duration_sec"`
	Prices             map[TokenID]PriceQuote `json:"prices"`
}

// Quote returns the token's price, if the oracle has one.
func (p PriceData) Quote(token TokenID) (PriceQuote, bool) {
	if p.Prices == nil {
		return PriceQuote{}, false
	}
	q, ok := p.Prices[token]
	return q, ok
}
