package datafetcher

import (
	"context"
	"fmt"

	"github.com/burrowland/liquidator/internal/market"
	"github.com/burrowland/liquidator/internal/types"
	"golang.org/x/sync/errgroup"
)

const (
	// PoolsPageSize is the get_pools limit.
	PoolsPageSize = 250
	// MaxPools caps how much of the exchange's pool list is read.
	MaxPools = 10000
)

// GetNumPools returns the exchange's pool count, capped at MaxPools.
func (f *Fetcher) GetNumPools(ctx context.Context) (int, error) {
	data, err := f.client.ViewCall(ctx, f.contracts.Exchange, "get_number_of_pools", nil)
	if err != nil {
		return 0, fmt.Errorf("get_number_of_pools: %w", err)
	}
	n, err := parseCount(data)
	if err != nil {
		return 0, err
	}
	if n > MaxPools {
		f.poolLogger.Warn().Int("numPools", n).Int("cap", MaxPools).Msg("Pool list truncated")
		n = MaxPools
	}
	return n, nil
}

// GetPoolsPaged returns up to limit pools starting at fromIndex. Pool ids are positions in
// the exchange's list.
func (f *Fetcher) GetPoolsPaged(ctx context.Context, fromIndex, limit int) ([]types.RawPool, error) {
	args := map[string]interface{}{"from_index": fromIndex, "limit": limit}
	data, err := f.client.ViewCall(ctx, f.contracts.Exchange, "get_pools", args)
	if err != nil {
		return nil, fmt.Errorf("get_pools from %d: %w", fromIndex, err)
	}
	return market.ParsePools(data, uint64(fromIndex))
}

// GetPools reads the exchange's pool list, no partial results.
func (f *Fetcher) GetPools(ctx context.Context) ([]types.RawPool, error) {
	numPools, err := f.GetNumPools(ctx)
	if err != nil {
		return nil, err
	}
	f.poolLogger.Info().Int("numPools", numPools).Msg("Starting pool retrieval")

	pages := (numPools + PoolsPageSize - 1) / PoolsPageSize
	pagePools := make([][]types.RawPool, pages)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(FetchConcurrency)
	for page := 0; page < pages; page++ {
		page := page
		eg.Go(func() error {
			from := page * PoolsPageSize
			limit := PoolsPageSize
			if from+limit > numPools {
				limit = numPools - from
			}
			pools, err := f.GetPoolsPaged(egCtx, from, limit)
			if err != nil {
				return err
			}
			pagePools[page] = pools
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		f.poolLogger.Error().Err(err).Msg("Failed to fetch pools")
		return nil, err
	}

	pools := make([]types.RawPool, 0, numPools)
	for _, p := range pagePools {
		pools = append(pools, p...)
	}
	f.poolLogger.Info().Int("poolCount", len(pools)).Msg("Successfully fetched all pools")
	return pools, nil
}
