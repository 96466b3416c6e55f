package datafetcher

import (
	"context"
	"time"

	"github.com/burrowland/liquidator/internal/types"
)

// Snapshot is one consistent read of the lending market: the assets, the oracle prices for
// them and the accounts. Accounts that could not be read are listed in Errors.
type Snapshot struct {
	Assets    types.Assets
	Prices    types.PriceData
	Accounts  []types.Account
	Errors    []AccountError
	FetchedAt time.Time
}

func (f *Fetcher) loadMarket(ctx context.Context) (types.Assets, types.PriceData, error) {
	assets, err := f.GetAssets(ctx)
	if err != nil {
		return nil, types.PriceData{}, err
	}
	prices, err := f.GetPriceData(ctx, assetIDs(assets))
	if err != nil {
		return nil, types.PriceData{}, err
	}
	return assets, prices, nil
}

// LoadSnapshot reads the market and every account.
func (f *Fetcher) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	assets, prices, err := f.loadMarket(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	accounts, failed, err := f.FetchAllAccounts(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Assets:    assets,
		Prices:    prices,
		Accounts:  accounts,
		Errors:    failed,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// LoadAccountSnapshot reads the market and the given accounts only.
func (f *Fetcher) LoadAccountSnapshot(ctx context.Context, accountIDs ...string) (Snapshot, error) {
	assets, prices, err := f.loadMarket(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	accounts, failed := f.FetchAccounts(ctx, accountIDs)
	return Snapshot{
		Assets:    assets,
		Prices:    prices,
		Accounts:  accounts,
		Errors:    failed,
		FetchedAt: time.Now().UTC(),
	}, nil
}
