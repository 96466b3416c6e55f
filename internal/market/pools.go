package market

import (
	"fmt"

	"cosmossdk.io/math"
	"github.com/burrowland/liquidator/internal/types"
)

type rawRefPool struct {
	PoolKind          string   `validate:"required"`
	TokenAccountIDs   []string `validate:"required,min=2,dive,required"`
	Amounts           []string `validate:"required,dive,numeric"`
	TotalFee          *uint32  `validate:"required,max=10000"`
	SharesTotalSupply string   `validate:"required,numeric"`
	Amp               uint64
}

// ParsePools converts a get_pools page. Pool ids are positions in the exchange's global pool
// list, so the page's start index is needed to number them.
func ParsePools(data []byte, fromIndex uint64) ([]types.RawPool, error) {
	v, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	records, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: pools page is not a list", ErrInvalidRecord)
	}

	pools := make([]types.RawPool, 0, len(records))
	for i, r := range records {
		id := types.PoolID(fromIndex + uint64(i))
		p, err := ParsePoolRecord(id, r)
		if err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return pools, nil
}

// ParsePoolRecord converts one decoded pool record.
func ParsePoolRecord(id types.PoolID, record interface{}) (types.RawPool, error) {
	var raw rawRefPool
	what := fmt.Sprintf("pool %d", id)
	if err := decodeRecord(record, &raw, what); err != nil {
		return types.RawPool{}, err
	}
	if len(raw.Amounts) != len(raw.TokenAccountIDs) {
		return types.RawPool{}, fmt.Errorf("%w: %s has %d tokens and %d amounts",
			ErrInvalidRecord, what, len(raw.TokenAccountIDs), len(raw.Amounts))
	}

	amounts := make([]math.Int, len(raw.Amounts))
	for i, a := range raw.Amounts {
		amt, ok := math.NewIntFromString(a)
		if !ok || amt.IsNegative() {
			return types.RawPool{}, fmt.Errorf("%w: %s amount %q", ErrInvalidRecord, what, a)
		}
		amounts[i] = amt
	}
	shares, ok := math.NewIntFromString(raw.SharesTotalSupply)
	if !ok || shares.IsNegative() {
		return types.RawPool{}, fmt.Errorf("%w: %s shares_total_supply %q", ErrInvalidRecord, what, raw.SharesTotalSupply)
	}

	tokens := make([]types.TokenID, len(raw.TokenAccountIDs))
	copy(tokens, raw.TokenAccountIDs)

	return types.RawPool{
		ID:              id,
		Kind:            types.PoolKind(raw.PoolKind),
		TokenAccountIDs: tokens,
		Amounts:         amounts,
		TotalFee:        *raw.TotalFee,
		SharesTotal:     shares,
		Amp:             raw.Amp,
	}, nil
}
