package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/burrowland/liquidator/internal/logger"
	"github.com/burrowland/liquidator/internal/market"
	"github.com/burrowland/liquidator/internal/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// AccountsPageSize is the get_accounts_paged limit.
	AccountsPageSize = 100
	// FetchConcurrency bounds parallel view calls within one fetch.
	FetchConcurrency = 8
)

var ErrInvalidCount = errors.New("invalid count")

// AccountError records an account that could not be fetched or parsed.
type AccountError struct {
	AccountID string
	Err       error
}

func (e AccountError) Error() string {
	return fmt.Sprintf("account %s: %v", e.AccountID, e.Err)
}

func (e AccountError) Unwrap() error {
	return e.Err
}

// Contracts are the accounts the fetcher reads from.
type Contracts struct {
	Lending  string
	Oracle   string
	Exchange string
}

// Fetcher reads lending and exchange state through a Client.
type Fetcher struct {
	client        *Client
	contracts     Contracts
	lendingLogger zerolog.Logger
	poolLogger    zerolog.Logger
}

// NewFetcher returns a fetcher reading contracts through client.
func NewFetcher(client *Client, contracts Contracts) *Fetcher {
	return &Fetcher{
		client:        client,
		contracts:     contracts,
		lendingLogger: logger.GetForComponent("lending_fetcher"),
		poolLogger:    logger.GetForComponent("pool_retriever"),
	}
}

// GetAssets returns the lending market's assets.
func (f *Fetcher) GetAssets(ctx context.Context) (types.Assets, error) {
	data, err := f.client.ViewCall(ctx, f.contracts.Lending, "get_assets_paged", nil)
	if err != nil {
		return nil, fmt.Errorf("get_assets_paged: %w", err)
	}
	assets, err := market.ParseAssetPairs(data)
	if err != nil {
		return nil, err
	}
	f.lendingLogger.Debug().Int("assets", len(assets)).Msg("Fetched assets")
	return assets, nil
}

// GetPriceData returns the oracle's prices for the given tokens.
func (f *Fetcher) GetPriceData(ctx context.Context, assetIDs []types.TokenID) (types.PriceData, error) {
	args := map[string]interface{}{"asset_ids": assetIDs}
	data, err := f.client.ViewCall(ctx, f.contracts.Oracle, "get_price_data", args)
	if err != nil {
		return types.PriceData{}, fmt.Errorf("get_price_data: %w", err)
	}
	return market.ParsePriceData(data)
}

// GetNumAccounts returns the number of accounts registered with the lending contract.
func (f *Fetcher) GetNumAccounts(ctx context.Context) (int, error) {
	data, err := f.client.ViewCall(ctx, f.contracts.Lending, "get_num_accounts", nil)
	if err != nil {
		return 0, fmt.Errorf("get_num_accounts: %w", err)
	}
	return parseCount(data)
}

// parseCount reads a count returned either as a JSON number or a JSON string.
func parseCount(data []byte) (int, error) {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCount, string(data))
	}
	return n, nil
}

// GetAccountsPaged returns up to limit accounts starting at fromIndex. Records that fail to
// parse are returned as errors next to the accounts that did.
func (f *Fetcher) GetAccountsPaged(ctx context.Context, fromIndex, limit int) ([]types.Account, []AccountError, error) {
	args := map[string]interface{}{"from_index": fromIndex, "limit": limit}
	data, err := f.client.ViewCall(ctx, f.contracts.Lending, "get_accounts_paged", args)
	if err != nil {
		return nil, nil, fmt.Errorf("get_accounts_paged from %d: %w", fromIndex, err)
	}

	v, err := market.DecodeJSON(data)
	if err != nil {
		return nil, nil, err
	}
	records, ok := v.([]interface{})
	if !ok {
		return nil, nil, fmt.Errorf("%w: accounts page from %d is not a list", market.ErrInvalidRecord, fromIndex)
	}

	accounts := make([]types.Account, 0, len(records))
	var failed []AccountError
	for i, r := range records {
		account, err := market.ParseAccountRecord(r)
		if err != nil {
			failed = append(failed, AccountError{AccountID: recordAccountID(r, fromIndex+i), Err: err})
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, failed, nil
}

func recordAccountID(record interface{}, index int) string {
	if m, ok := record.(map[string]interface{}); ok {
		if id, ok := m["account_id"].(string); ok && id != "" {
			return id
		}
	}
	return fmt.Sprintf("#%d", index)
}

// GetAccount returns one account. market.ErrAccountNotFound is returned for an account the
// lending contract does not know.
func (f *Fetcher) GetAccount(ctx context.Context, accountID string) (types.Account, error) {
	args := map[string]interface{}{"account_id": accountID}
	data, err := f.client.ViewCall(ctx, f.contracts.Lending, "get_account", args)
	if err != nil {
		return types.Account{}, fmt.Errorf("get_account %s: %w", accountID, err)
	}
	return market.ParseAccount(data)
}

// FetchAllAccounts reads every account in pages of AccountsPageSize, at most
// FetchConcurrency pages at a time. A failed page fails the fetch; a malformed record only
// drops that account.
func (f *Fetcher) FetchAllAccounts(ctx context.Context) ([]types.Account, []AccountError, error) {
	numAccounts, err := f.GetNumAccounts(ctx)
	if err != nil {
		return nil, nil, err
	}
	f.lendingLogger.Info().Int("numAccounts", numAccounts).Msg("Fetching all accounts")

	pages := (numAccounts + AccountsPageSize - 1) / AccountsPageSize
	pageAccounts := make([][]types.Account, pages)
	pageErrors := make([][]AccountError, pages)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(FetchConcurrency)
	for page := 0; page < pages; page++ {
		page := page
		eg.Go(func() error {
			accounts, failed, err := f.GetAccountsPaged(egCtx, page*AccountsPageSize, AccountsPageSize)
			if err != nil {
				return err
			}
			pageAccounts[page] = accounts
			pageErrors[page] = failed
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		f.lendingLogger.Error().Err(err).Msg("Failed to fetch accounts")
		return nil, nil, err
	}

	accounts := make([]types.Account, 0, numAccounts)
	var failed []AccountError
	for page := range pageAccounts {
		accounts = append(accounts, pageAccounts[page]...)
		failed = append(failed, pageErrors[page]...)
	}
	if len(failed) > 0 {
		f.lendingLogger.Warn().Int("failed", len(failed)).Msg("Some account records could not be parsed")
	}
	f.lendingLogger.Info().Int("accounts", len(accounts)).Msg("Fetched all accounts")
	return accounts, failed, nil
}

// FetchAccounts reads the given accounts one by one, at most FetchConcurrency at a time.
// Failures are collected per account and never abort the others. Results keep the order of
// accountIDs.
func (f *Fetcher) FetchAccounts(ctx context.Context, accountIDs []string) ([]types.Account, []AccountError) {
	results := make([]*types.Account, len(accountIDs))
	errs := make([]error, len(accountIDs))

	var eg errgroup.Group
	eg.SetLimit(FetchConcurrency)
	for i, id := range accountIDs {
		i, id := i, id
		eg.Go(func() error {
			account, err := f.GetAccount(ctx, id)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = &account
			return nil
		})
	}
	_ = eg.Wait()

	accounts := make([]types.Account, 0, len(accountIDs))
	var failed []AccountError
	for i, id := range accountIDs {
		if errs[i] != nil {
			failed = append(failed, AccountError{AccountID: id, Err: errs[i]})
			continue
		}
		accounts = append(accounts, *results[i])
	}
	return accounts, failed
}

// assetIDs returns the market's token ids in a stable order.
func assetIDs(assets types.Assets) []types.TokenID {
	ids := make([]types.TokenID, 0, len(assets))
	for id := range assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
