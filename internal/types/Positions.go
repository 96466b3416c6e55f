/*

This file contains the types for lending positions: the raw share balances read from the
ledger and the valued, risk-weighted form the risk and liquidation engines work on.

*/

package types

import (
	"github.com/shopspring/decimal"
)

// PositionKind says which pool a position's shares belong to.
type PositionKind string

const (
	PositionCollateral PositionKind = "collateral"
	PositionBorrowed   PositionKind = "borrowed"
	PositionSupplied   PositionKind = "supplied" // Deposits not used as collateral
)

// SuppliedSide reports whether the position draws on the supplied pool.
func (k PositionKind) SuppliedSide() bool {
	return k != PositionBorrowed
}

// Position is a raw (token, shares) pair.
type Position struct {
	TokenID TokenID         `json:"token_id"`
	Shares  decimal.Decimal `json:"shares"`
}

// Account is an account's raw positions.
type Account struct {
	AccountID  string     `json:"account_id"`
	Collateral []Position `json:"collateral"`
	Borrowed   []Position `json:"borrowed"`
	Supplied   []Position `json:"supplied"`
}

// ValuedPosition is a position converted through its pool and the oracle. PricedBalance and
// AdjustedPricedBalance are invalid when the token has no price.
type ValuedPosition struct {
	TokenID               TokenID             `json:"token_id"`
	Kind                  PositionKind        `json:"kind"`
	Shares                decimal.Decimal     `json:"shares"`
	Balance               decimal.Decimal     `json:"balance"`       // Ledger-internal units
	TokenBalance          decimal.Decimal     `json:"token_balance"` // Token-native units
	PricedBalance         decimal.NullDecimal `json:"priced_balance"`
	AdjustedPricedBalance decimal.NullDecimal `json:"adjusted_priced_balance"`
	VolatilityRatio       decimal.Decimal     `json:"volatility_ratio"`
	ExtraDecimals         int32               `json:"extra_decimals"`
	Price                 *PriceQuote         `json:"price,omitempty"`
}

// Priced reports whether the position has a known USD value.
func (p ValuedPosition) Priced() bool {
	return p.PricedBalance.Valid && p.Price != nil
}

// ValuedAccount carries an account's valued positions and derived risk scalars. HealthFactor
// and Discount are only meaningful when HealthDefined is true.
type ValuedAccount struct {
	AccountID             string              `json:"account_id"`
	Collateral            []ValuedPosition    `json:"collateral"`
	Borrowed              []ValuedPosition    `json:"borrowed"`
	Supplied              []ValuedPosition    `json:"supplied"`
	CollateralSum         decimal.NullDecimal `json:"collateral_sum"`
	BorrowedSum           decimal.NullDecimal `json:"borrowed_sum"`
	AdjustedCollateralSum decimal.NullDecimal `json:"adjusted_collateral_sum"`
	AdjustedBorrowedSum   decimal.NullDecimal `json:"adjusted_borrowed_sum"`
	AdjustedDebt          decimal.Decimal     `json:"adjusted_debt"`
	HealthFactor          decimal.Decimal     `json:"health_factor"`
	Discount              decimal.Decimal     `json:"discount"`
	HealthDefined         bool                `json:"health_defined"`
}

// AccountSummary is the compact ranking row served by the API and cached between cycles.
type AccountSummary struct {
	AccountID     string          `json:"account_id"`
	HealthFactor  decimal.Decimal `json:"health_factor"`
	Discount      decimal.Decimal `json:"discount"`
	CollateralUSD decimal.Decimal `json:"collateral_usd"`
	BorrowedUSD   decimal.Decimal `json:"borrowed_usd"`
}

// Summary returns the account's ranking row. Unknown sums are reported as zero.
func (a ValuedAccount) Summary() AccountSummary {
	return AccountSummary{
		AccountID:     a.AccountID,
		HealthFactor:  a.HealthFactor,
		Discount:      a.Discount,
		CollateralUSD: a.CollateralSum.Decimal,
		BorrowedUSD:   a.BorrowedSum.Decimal,
	}
}
