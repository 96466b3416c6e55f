package market

import (
	"fmt"

	"github.com/burrowland/liquidator/internal/types"
	"github.com/burrowland/liquidator/internal/utils"
)

type rawPosition struct {
	TokenID string `validate:"required"`
	Shares  string `validate:"required,numeric"`
}

type rawAccount struct {
	AccountID  string        `validate:"required"`
	Collateral []rawPosition `validate:"dive"`
	Borrowed   []rawPosition `validate:"dive"`
	Supplied   []rawPosition `validate:"dive"`
}

// ParseAccount converts a get_account result. A null result means the account is not
// registered with the lending contract.
func ParseAccount(data []byte) (types.Account, error) {
	v, err := DecodeJSON(data)
	if err != nil {
		return types.Account{}, err
	}
	if v == nil {
		return types.Account{}, ErrAccountNotFound
	}
	return ParseAccountRecord(v)
}

// ParseAccountRecord converts one decoded account record.
func ParseAccountRecord(record interface{}) (types.Account, error) {
	var raw rawAccount
	if err := decodeRecord(record, &raw, "account"); err != nil {
		return types.Account{}, err
	}

	collateral, err := parsePositions(raw.Collateral)
	if err != nil {
		return types.Account{}, fmt.Errorf("account %s collateral: %w", raw.AccountID, err)
	}
	borrowed, err := parsePositions(raw.Borrowed)
	if err != nil {
		return types.Account{}, fmt.Errorf("account %s borrowed: %w", raw.AccountID, err)
	}
	supplied, err := parsePositions(raw.Supplied)
	if err != nil {
		return types.Account{}, fmt.Errorf("account %s supplied: %w", raw.AccountID, err)
	}

	return types.Account{
		AccountID:  raw.AccountID,
		Collateral: collateral,
		Borrowed:   borrowed,
		Supplied:   supplied,
	}, nil
}

// ParseAccounts converts a get_accounts_paged result.
func ParseAccounts(data []byte) ([]types.Account, error) {
	v, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	records, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: accounts page is not a list", ErrInvalidRecord)
	}
	accounts := make([]types.Account, 0, len(records))
	for _, r := range records {
		a, err := ParseAccountRecord(r)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func parsePositions(raw []rawPosition) ([]types.Position, error) {
	positions := make([]types.Position, 0, len(raw))
	for _, r := range raw {
		shares, err := utils.ParseAmount(r.Shares)
		if err != nil {
			return nil, fmt.Errorf("%s shares: %w", r.TokenID, err)
		}
		positions = append(positions, types.Position{TokenID: r.TokenID, Shares: shares})
	}
	return positions, nil
}
