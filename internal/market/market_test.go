package market

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const assetsPage = `[
  ["wrap.near", {
    "supplied": {"shares": "10000000000000000000000000000", "balance": "10000000000000000000000000000"},
    "borrowed": {"shares": "5000000000000000000000000000", "balance": "5100000000000000000000000000"},
    "reserved": "1000",
    "last_update_timestamp": "1641234567890123456",
    "config": {
      "reserve_ratio": 2500,
      "target_utilization": 8000,
      "target_utilization_rate": "1000000000003593629036885046",
      "max_utilization_rate": "1000000000039724853136740579",
      "volatility_ratio": 6000,
      "extra_decimals": 0,
      "can_deposit": true,
      "can_withdraw": true,
      "can_use_as_collateral": true,
      "can_borrow": true
    }
  }],
  ["usdc", {
    "supplied": {"shares": "1", "balance": "1"},
    "borrowed": {"shares": "0", "balance": "0"},
    "reserved": "0",
    "lastUpdateTimestamp": "1641234567890000000",
    "config": {
      "reserveRatio": 2500,
      "targetUtilization": 8000,
      "targetUtilizationRate": "1000000000003593629036885046",
      "maxUtilizationRate": "1000000000039724853136740579",
      "volatilityRatio": 9500,
      "extraDecimals": 12,
      "canDeposit": true
    }
  }]
]`

func TestParseAssetPairs(t *testing.T) {
	require := require.New(t)

	assets, err := ParseAssetPairs([]byte(assetsPage))
	require.NoError(err)
	require.Len(assets, 2)

	near := assets["wrap.near"]
	require.Equal("wrap.near", near.TokenID)
	require.Equal("5100000000000000000000000000", near.Borrowed.Balance.String())
	require.Equal("0.6", near.Config.VolatilityRatio.String())
	require.Equal("0.25", near.Config.ReserveRatio.String())
	require.Equal("1641234567890.123456", near.LastUpdateTimestamp.String())
	require.True(near.Config.CanBorrow)

	// camelCase keys decode into the same fields
	usdc := assets["usdc"]
	require.Equal(int32(12), usdc.Config.ExtraDecimals)
	require.Equal("0.95", usdc.Config.VolatilityRatio.String())
	require.True(usdc.Config.CanDeposit)
	require.False(usdc.Config.CanBorrow)
}

func TestParseAssetRejectsMissingFields(t *testing.T) {
	require := require.New(t)

	_, err := ParseAssetPairs([]byte(`[["x", {"supplied": {"shares": "1", "balance": "1"}}]]`))
	require.ErrorIs(err, ErrInvalidRecord)

	_, err = ParseAssetPairs([]byte(`[["x"]]`))
	require.ErrorIs(err, ErrInvalidRecord)

	_, err = ParseAssetPairs([]byte(`{"not": "a list"}`))
	require.ErrorIs(err, ErrInvalidRecord)
}

func TestParsePriceData(t *testing.T) {
	require := require.New(t)

	data := `{
	  "timestamp": "1641234567890123456",
	  "recency_duration_sec": 90,
	  "prices": [
	    {"asset_id": "wrap.near", "price": {"multiplier": "200000", "decimals": 28}},
	    {"asset_id": "dai", "price": null}
	  ]
	}`
	prices, err := ParsePriceData([]byte(data))
	require.NoError(err)
	require.Equal(int64(90), prices.RecencyDurationSec)

	q, ok := prices.Quote("wrap.near")
	require.True(ok)
	require.Equal("200000", q.Multiplier.String())
	require.Equal(int32(28), q.Decimals)

	_, ok = prices.Quote("dai")
	require.False(ok, "null price must be unpriced, not zero")
}

func TestParseAccount(t *testing.T) {
	require := require.New(t)

	data := `{
	  "account_id": "rekt.near",
	  "supplied": [],
	  "collateral": [{"token_id": "wrap.near", "balance": "5", "shares": "5000000000000000000000000"}],
	  "borrowed": [{"token_id": "dai", "balance": "100", "shares": "100000000000000000000"}],
	  "farms": []
	}`
	a, err := ParseAccount([]byte(data))
	require.NoError(err)
	require.Equal("rekt.near", a.AccountID)
	require.Len(a.Collateral, 1)
	require.Equal("5000000000000000000000000", a.Collateral[0].Shares.String())
	require.Equal("dai", a.Borrowed[0].TokenID)
	require.Empty(a.Supplied)

	_, err = ParseAccount([]byte(`null`))
	require.ErrorIs(err, ErrAccountNotFound)

	_, err = ParseAccount([]byte(`{"account_id": "x", "borrowed": [{"token_id": "dai"}]}`))
	require.ErrorIs(err, ErrInvalidRecord)
}

func TestParseAccounts(t *testing.T) {
	require := require.New(t)

	accounts, err := ParseAccounts([]byte(`[
	  {"account_id": "a", "collateral": [], "borrowed": []},
	  {"account_id": "b", "collateral": [{"token_id": "t", "shares": "1"}], "borrowed": []}
	]`))
	require.NoError(err)
	require.Len(accounts, 2)
	require.Equal("b", accounts[1].AccountID)
}

func TestParsePools(t *testing.T) {
	require := require.New(t)

	data := `[
	  {"pool_kind": "SIMPLE_POOL", "token_account_ids": ["wrap.near", "dai"], "amounts": ["1000", "2000"],
	   "total_fee": 30, "shares_total_supply": "1000000", "amp": 0},
	  {"pool_kind": "STABLE_SWAP", "token_account_ids": ["dai", "usdc", "usdt"], "amounts": ["1", "2", "3"],
	   "total_fee": 5, "shares_total_supply": "6", "amp": 240}
	]`
	pools, err := ParsePools([]byte(data), 250)
	require.NoError(err)
	require.Len(pools, 2)
	require.EqualValues(250, pools[0].ID)
	require.EqualValues(251, pools[1].ID)
	require.Equal("2000", pools[0].Amounts[1].String())
	require.EqualValues(240, pools[1].Amp)
	require.True(pools[1].Supported())

	_, err = ParsePools([]byte(`[{"pool_kind": "SIMPLE_POOL", "token_account_ids": ["a", "b"], "amounts": ["1"],
	  "total_fee": 30, "shares_total_supply": "1"}]`), 0)
	require.ErrorIs(err, ErrInvalidRecord)
}
