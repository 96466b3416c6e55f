package market

import (
	"fmt"

	"github.com/burrowland/liquidator/internal/types"
	"github.com/burrowland/liquidator/internal/utils"
)

type rawQuote struct {
	Multiplier string `validate:"required,numeric"`
	Decimals   *int32 `validate:"required,min=0,max=77"`
}

type rawAssetPrice struct {
	AssetID string    `validate:"required"`
	Price   *rawQuote // null when the oracle has no fresh price
}

type rawPriceData struct {
	Timestamp          string `validate:"required,numeric"`
	RecencyDurationSec int64
	Prices             []rawAssetPrice `validate:"dive"`
}

// ParsePriceData converts the oracle's get_price_data result. Assets whose price is null are
// left out of the map and therefore valued as unknown.
func ParsePriceData(data []byte) (types.PriceData, error) {
	v, err := DecodeJSON(data)
	if err != nil {
		return types.PriceData{}, err
	}
	return ParsePriceRecord(v)
}

// ParsePriceRecord is ParsePriceData for an already decoded record.
func ParsePriceRecord(record interface{}) (types.PriceData, error) {
	var raw rawPriceData
	if err := decodeRecord(record, &raw, "price data"); err != nil {
		return types.PriceData{}, err
	}

	ts, err := utils.ParseTimestamp(raw.Timestamp)
	if err != nil {
		return types.PriceData{}, fmt.Errorf("price data timestamp: %w", err)
	}

	prices := make(map[types.TokenID]types.PriceQuote, len(raw.Prices))
	for _, p := range raw.Prices {
		if p.Price == nil {
			continue
		}
		multiplier, err := utils.ParseAmount(p.Price.Multiplier)
		if err != nil {
			return types.PriceData{}, fmt.Errorf("price of %s: %w", p.AssetID, err)
		}
		prices[p.AssetID] = types.PriceQuote{
			Multiplier: multiplier,
			Decimals:   *p.Price.Decimals,
		}
	}

	return types.PriceData{
		Timestamp:          ts,
		RecencyDurationSec: raw.RecencyDurationSec,
		Prices:             prices,
	}, nil
}
