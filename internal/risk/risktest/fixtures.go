// Package risktest provides a small lending market with known valuations for tests: NEAR at
// $20 (volatility 0.6), USDC and DAI at $1 (volatility 0.95), with USDC carrying 12 extra
// decimals inside the ledger.
package risktest

import (
	"github.com/burrowland/liquidator/internal/numeric"
	"github.com/burrowland/liquidator/internal/types"
	"github.com/shopspring/decimal"
)

const (
	NEAR = "wrap.near"
	USDC = "usdc.near"
	DAI  = "dai.near"
)

func pool(decimals int32) types.Pool {
	v := numeric.Pow10(decimals).Mul(decimal.NewFromInt(10000))
	return types.Pool{Shares: v, Balance: v}
}

func asset(token string, decimals int32, volatility string, extra int32) types.Asset {
	return types.Asset{
		TokenID:  token,
		Supplied: pool(decimals),
		Borrowed: pool(decimals),
		Reserved: decimal.Zero,
		Config: types.AssetConfig{
			VolatilityRatio:    decimal.RequireFromString(volatility),
			ExtraDecimals:      extra,
			CanDeposit:         true,
			CanWithdraw:        true,
			CanUseAsCollateral: true,
			CanBorrow:          true,
		},
	}
}

// Assets returns the market.
func Assets() types.Assets {
	return types.Assets{
		NEAR: asset(NEAR, 24, "0.6", 0),
		USDC: asset(USDC, 18, "0.95", 12),
		DAI:  asset(DAI, 18, "0.95", 0),
	}
}

// Prices returns the oracle snapshot.
func Prices() types.PriceData {
	return types.PriceData{
		Prices: map[types.TokenID]types.PriceQuote{
			NEAR: {Multiplier: decimal.NewFromInt(200000), Decimals: 28},
			USDC: {Multiplier: decimal.NewFromInt(10000), Decimals: 10},
			DAI:  {Multiplier: decimal.NewFromInt(10000), Decimals: 22},
		},
	}
}

// Shares returns whole * 10^decimals.
func Shares(whole int64, decimals int32) decimal.Decimal {
	return decimal.NewFromInt(whole).Mul(numeric.Pow10(decimals))
}

// Alice is healthy: 7 NEAR collateral against 50 DAI.
func Alice() types.Account {
	return types.Account{
		AccountID:  "alice",
		Collateral: []types.Position{{TokenID: NEAR, Shares: Shares(7, 24)}},
		Borrowed:   []types.Position{{TokenID: DAI, Shares: Shares(50, 18)}},
	}
}

// Rekt is under water: 5 NEAR and 20 USDC collateral against 100 DAI.
func Rekt() types.Account {
	return types.Account{
		AccountID: "rekt",
		Collateral: []types.Position{
			{TokenID: NEAR, Shares: Shares(5, 24)},
			{TokenID: USDC, Shares: Shares(20, 18)},
		},
		Borrowed: []types.Position{{TokenID: DAI, Shares: Shares(100, 18)}},
	}
}

// Bob is barely under water.
func Bob() types.Account {
	return types.Account{
		AccountID:  "bob",
		Collateral: []types.Position{{TokenID: NEAR, Shares: Shares(7, 24).Sub(decimal.RequireFromString("3049877847073640764176570"))}},
		Borrowed:   []types.Position{{TokenID: DAI, Shares: Shares(100, 18).Sub(decimal.RequireFromString("54867607456639504711"))}},
	}
}
