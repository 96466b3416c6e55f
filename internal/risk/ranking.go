package risk

import (
	"errors"
	"sort"

	"github.com/burrowland/liquidator/internal/types"
	"github.com/shopspring/decimal"
)

// Exclusion records why an account did not make it into the ranking.
type Exclusion struct {
	AccountID string
	Err       error
}

// ValueAccounts values every account, keeping those with a defined health factor. Accounts
// that fail to value or have unpriced positions are returned as exclusions; one bad account
// never aborts the batch.
func ValueAccounts(accounts []types.Account, assets types.Assets, prices types.PriceData) ([]types.ValuedAccount, []Exclusion) {
	valued := make([]types.ValuedAccount, 0, len(accounts))
	var excluded []Exclusion
	for _, a := range accounts {
		va, err := ValueAccount(a, assets, prices)
		if err != nil {
			excluded = append(excluded, Exclusion{AccountID: a.AccountID, Err: err})
			continue
		}
		if !va.HealthDefined {
			excluded = append(excluded, Exclusion{AccountID: a.AccountID, Err: ErrUnpriced})
			continue
		}
		valued = append(valued, va)
	}
	return valued, excluded
}

// CountUnpriced returns how many exclusions are due to missing prices.
func CountUnpriced(excluded []Exclusion) int {
	n := 0
	for _, e := range excluded {
		if errors.Is(e.Err, ErrUnpriced) {
			n++
		}
	}
	return n
}

// RankByHealth returns the accounts ordered from least to most healthy.
func RankByHealth(accounts []types.ValuedAccount) []types.ValuedAccount {
	ranked := make([]types.ValuedAccount, len(accounts))
	copy(ranked, accounts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].HealthFactor.LessThan(ranked[j].HealthFactor)
	})
	return ranked
}

// SelectLiquidatable returns the accounts with a positive discount of at least minDiscount,
// largest discount first.
func SelectLiquidatable(accounts []types.ValuedAccount, minDiscount decimal.Decimal) []types.ValuedAccount {
	var selected []types.ValuedAccount
	for _, a := range accounts {
		if !a.HealthDefined || !a.Discount.IsPositive() {
			continue
		}
		if a.Discount.LessThan(minDiscount) {
			continue
		}
		selected = append(selected, a)
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Discount.GreaterThan(selected[j].Discount)
	})
	return selected
}

// TopBorrowers returns the n accounts with the largest unweighted borrowed sum.
func TopBorrowers(accounts []types.ValuedAccount, n int) []types.ValuedAccount {
	sorted := make([]types.ValuedAccount, len(accounts))
	copy(sorted, accounts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BorrowedSum.Decimal.GreaterThan(sorted[j].BorrowedSum.Decimal)
	})
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// Summaries converts accounts into their ranking rows.
func Summaries(accounts []types.ValuedAccount) []types.AccountSummary {
	out := make([]types.AccountSummary, len(accounts))
	for i, a := range accounts {
		out[i] = a.Summary()
	}
	return out
}
