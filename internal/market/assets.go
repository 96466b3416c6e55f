package market

import (
	"fmt"

	"github.com/burrowland/liquidator/internal/numeric"
	"github.com/burrowland/liquidator/internal/types"
	"github.com/burrowland/liquidator/internal/utils"
)

type rawPool struct {
	Shares  string `validate:"required,numeric"`
	Balance string `validate:"required,numeric"`
}

type rawAssetConfig struct {
	ReserveRatio          *int64 `validate:"required"`
	TargetUtilization     *int64 `validate:"required"`
	TargetUtilizationRate string `validate:"required,numeric"`
	MaxUtilizationRate    string `validate:"required,numeric"`
	VolatilityRatio       *int64 `validate:"required"`
	ExtraDecimals         *int32 `validate:"required,min=0,max=36"`
	CanDeposit            bool
	CanWithdraw           bool
	CanUseAsCollateral    bool
	CanBorrow             bool
}

type rawAsset struct {
	Supplied            rawPool
	Borrowed            rawPool
	Reserved            string `validate:"required,numeric"`
	LastUpdateTimestamp string `validate:"required,numeric"`
	Config              rawAssetConfig
}

// ParseAsset converts one asset record as returned by get_asset / get_assets_paged.
func ParseAsset(tokenID types.TokenID, record interface{}) (types.Asset, error) {
	var raw rawAsset
	if err := decodeRecord(record, &raw, "asset "+tokenID); err != nil {
		return types.Asset{}, err
	}

	supplied, err := parsePool(raw.Supplied)
	if err != nil {
		return types.Asset{}, fmt.Errorf("asset %s supplied pool: %w", tokenID, err)
	}
	borrowed, err := parsePool(raw.Borrowed)
	if err != nil {
		return types.Asset{}, fmt.Errorf("asset %s borrowed pool: %w", tokenID, err)
	}
	reserved, err := utils.ParseAmount(raw.Reserved)
	if err != nil {
		return types.Asset{}, fmt.Errorf("asset %s reserved: %w", tokenID, err)
	}
	lastUpdate, err := utils.ParseTimestamp(raw.LastUpdateTimestamp)
	if err != nil {
		return types.Asset{}, fmt.Errorf("asset %s last_update_timestamp: %w", tokenID, err)
	}
	cfg, err := parseAssetConfig(raw.Config)
	if err != nil {
		return types.Asset{}, fmt.Errorf("asset %s config: %w", tokenID, err)
	}

	return types.Asset{
		TokenID:             tokenID,
		Supplied:            supplied,
		Borrowed:            borrowed,
		Reserved:            reserved,
		LastUpdateTimestamp: lastUpdate,
		Config:              cfg,
	}, nil
}

// ParseAssetPairs converts the get_assets_paged result, a list of [token_id, asset] pairs.
func ParseAssetPairs(data []byte) (types.Assets, error) {
	v, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	pairs, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: assets page is not a list", ErrInvalidRecord)
	}

	assets := make(types.Assets, len(pairs))
	for i, p := range pairs {
		pair, ok := p.([]interface{})
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("%w: assets page entry %d is not a [token_id, asset] pair", ErrInvalidRecord, i)
		}
		tokenID, ok := pair[0].(string)
		if !ok || tokenID == "" {
			return nil, fmt.Errorf("%w: assets page entry %d has no token id", ErrInvalidRecord, i)
		}
		asset, err := ParseAsset(tokenID, pair[1])
		if err != nil {
			return nil, err
		}
		assets[tokenID] = asset
	}
	return assets, nil
}

func parsePool(raw rawPool) (types.Pool, error) {
	shares, err := utils.ParseAmount(raw.Shares)
	if err != nil {
		return types.Pool{}, fmt.Errorf("shares: %w", err)
	}
	balance, err := utils.ParseAmount(raw.Balance)
	if err != nil {
		return types.Pool{}, fmt.Errorf("balance: %w", err)
	}
	return types.Pool{Shares: shares, Balance: balance}, nil
}

func parseAssetConfig(raw rawAssetConfig) (types.AssetConfig, error) {
	reserveRatio, err := utils.ParseUnitRatio(*raw.ReserveRatio)
	if err != nil {
		return types.AssetConfig{}, fmt.Errorf("reserve_ratio: %w", err)
	}
	targetUtilization, err := utils.ParseUnitRatio(*raw.TargetUtilization)
	if err != nil {
		return types.AssetConfig{}, fmt.Errorf("target_utilization: %w", err)
	}
	targetRate, err := utils.ParseRate(raw.TargetUtilizationRate)
	if err != nil {
		return types.AssetConfig{}, fmt.Errorf("target_utilization_rate: %w", err)
	}
	maxRate, err := utils.ParseRate(raw.MaxUtilizationRate)
	if err != nil {
		return types.AssetConfig{}, fmt.Errorf("max_utilization_rate: %w", err)
	}
	volatility, err := utils.ParseUnitRatio(*raw.VolatilityRatio)
	if err != nil {
		return types.AssetConfig{}, fmt.Errorf("volatility_ratio: %w", err)
	}
	// A zero volatility ratio would make every debt in this token infinitely risky.
	if volatility.IsZero() {
		return types.AssetConfig{}, fmt.Errorf("volatility_ratio: %w", numeric.ErrDivisionByZero)
	}

	return types.AssetConfig{
		ReserveRatio:          reserveRatio,
		TargetUtilization:     targetUtilization,
		TargetUtilizationRate: targetRate,
		MaxUtilizationRate:    maxRate,
		VolatilityRatio:       volatility,
		ExtraDecimals:         *raw.ExtraDecimals,
		CanDeposit:            raw.CanDeposit,
		CanWithdraw:           raw.CanWithdraw,
		CanUseAsCollateral:    raw.CanUseAsCollateral,
		CanBorrow:             raw.CanBorrow,
	}, nil
}
