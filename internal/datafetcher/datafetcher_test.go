package datafetcher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/burrowland/liquidator/internal/logger"
	"github.com/burrowland/liquidator/internal/market"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// viewHandler answers one contract method given its decoded JSON args.
type viewHandler func(args gjson.Result) (string, error)

// fakeNode is a NEAR RPC endpoint serving view calls from handlers keyed by
// "contract/method".
type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]viewHandler
	calls    map[string]int
}

func newFakeNode() *fakeNode {
	return &fakeNode{handlers: map[string]viewHandler{}, calls: map[string]int{}}
}

func (n *fakeNode) on(contract, method string, h viewHandler) {
	n.handlers[contract+"/"+method] = h
}

func (n *fakeNode) count(contract, method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[contract+"/"+method]
}

func resultBytes(data string) string {
	parts := make([]string, len(data))
	for i := 0; i < len(data); i++ {
		parts[i] = fmt.Sprint(data[i])
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	key := req.Params.AccountID + "/" + req.Params.MethodName

	n.mu.Lock()
	n.calls[key]++
	h, ok := n.handlers[key]
	n.mu.Unlock()

	if !ok {
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"error":{"code":-32000,"name":"HANDLER_ERROR","message":"Server error","data":"MethodNotFound %s"}}`, req.ID, key)
		return
	}
	args, _ := base64.StdEncoding.DecodeString(req.Params.ArgsBase64)
	data, err := h(gjson.ParseBytes(args))
	if err != nil {
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"result":{"error":%q,"logs":[],"block_height":1}}`, req.ID, err.Error())
		return
	}
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"result":{"result":%s,"logs":[],"block_height":1,"block_hash":"h"}}`, req.ID, resultBytes(data))
}

var testContracts = Contracts{Lending: "burrow", Oracle: "oracle", Exchange: "ref"}

func newTestFetcher(t *testing.T, node *fakeNode) *Fetcher {
	t.Helper()
	server := httptest.NewServer(node)
	t.Cleanup(server.Close)
	return NewFetcher(NewClient(server.URL, 0), testContracts)
}

func accountJSON(id string) string {
	return fmt.Sprintf(`{"account_id":%q,"supplied":[],"collateral":[{"token_id":"wrap.near","shares":"1000"}],"borrowed":[]}`, id)
}

// serveAccounts registers get_num_accounts, get_accounts_paged and get_account for n
// accounts named acc-0 .. acc-(n-1). Accounts listed in broken have an invalid record.
func serveAccounts(node *fakeNode, n int, broken map[int]bool) {
	node.on("burrow", "get_num_accounts", func(gjson.Result) (string, error) {
		return fmt.Sprintf(`"%d"`, n), nil
	})
	node.on("burrow", "get_accounts_paged", func(args gjson.Result) (string, error) {
		from := int(args.Get("from_index").Int())
		limit := int(args.Get("limit").Int())
		var records []string
		for i := from; i < from+limit && i < n; i++ {
			if broken[i] {
				records = append(records, fmt.Sprintf(`{"account_id":"acc-%d","borrowed":[{"token_id":"dai"}]}`, i))
				continue
			}
			records = append(records, accountJSON(fmt.Sprintf("acc-%d", i)))
		}
		return "[" + strings.Join(records, ",") + "]", nil
	})
	node.on("burrow", "get_account", func(args gjson.Result) (string, error) {
		id := args.Get("account_id").String()
		if id == "ghost" {
			return "null", nil
		}
		if id == "panics" {
			return "", fmt.Errorf("wasm execution failed")
		}
		return accountJSON(id), nil
	})
}

func TestViewCallDecodesResultBytes(t *testing.T) {
	require := require.New(t)

	node := newFakeNode()
	node.on("burrow", "get_num_accounts", func(gjson.Result) (string, error) { return `"42"`, nil })
	f := newTestFetcher(t, node)

	n, err := f.GetNumAccounts(context.Background())
	require.NoError(err)
	require.Equal(42, n)
}

func TestViewCallErrors(t *testing.T) {
	require := require.New(t)

	node := newFakeNode()
	node.on("burrow", "get_account", func(gjson.Result) (string, error) { return "", fmt.Errorf("panicked") })
	f := newTestFetcher(t, node)

	_, err := f.client.ViewCall(context.Background(), "burrow", "missing", nil)
	require.ErrorIs(err, ErrRPC)

	_, err = f.GetAccount(context.Background(), "x")
	require.ErrorIs(err, ErrContractExecution)

	_, err = f.client.decodeViewResult("m", []byte(`{"result":{"result":"nope"}}`))
	require.ErrorIs(err, ErrMalformedResponse)

	_, err = f.client.decodeViewResult("m", []byte(`{"result":{"result":[1,300]}}`))
	require.ErrorIs(err, ErrMalformedResponse)

	_, err = f.client.decodeViewResult("m", []byte(`<html>`))
	require.ErrorIs(err, ErrMalformedResponse)
}

func TestViewCallHTTPError(t *testing.T) {
	require := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, 10)
	_, err := client.ViewCall(context.Background(), "burrow", "get_num_accounts", nil)
	require.ErrorIs(err, ErrRPC)
}

func TestViewCallSendsBase64Args(t *testing.T) {
	require := require.New(t)

	node := newFakeNode()
	var seen []string
	node.on("oracle", "get_price_data", func(args gjson.Result) (string, error) {
		for _, id := range args.Get("asset_ids").Array() {
			seen = append(seen, id.String())
		}
		return `{"timestamp":"1","recency_duration_sec":90,"prices":[{"asset_id":"wrap.near","price":{"multiplier":"200000","decimals":28}}]}`, nil
	})
	f := newTestFetcher(t, node)

	prices, err := f.GetPriceData(context.Background(), []string{"dai", "wrap.near"})
	require.NoError(err)
	require.Equal([]string{"dai", "wrap.near"}, seen)
	_, ok := prices.Quote("wrap.near")
	require.True(ok)
}

func TestFetchAllAccountsPages(t *testing.T) {
	require := require.New(t)

	node := newFakeNode()
	serveAccounts(node, 250, map[int]bool{123: true})
	f := newTestFetcher(t, node)

	accounts, failed, err := f.FetchAllAccounts(context.Background())
	require.NoError(err)
	require.Equal(3, node.count("burrow", "get_accounts_paged"))
	require.Len(accounts, 249)
	require.Equal("acc-0", accounts[0].AccountID)
	require.Equal("acc-249", accounts[248].AccountID)

	require.Len(failed, 1)
	require.Equal("acc-123", failed[0].AccountID)
	require.ErrorIs(failed[0], market.ErrInvalidRecord)
}

func TestFetchAllAccountsEmpty(t *testing.T) {
	require := require.New(t)

	node := newFakeNode()
	serveAccounts(node, 0, nil)
	f := newTestFetcher(t, node)

	accounts, failed, err := f.FetchAllAccounts(context.Background())
	require.NoError(err)
	require.Empty(accounts)
	require.Empty(failed)
	require.Zero(node.count("burrow", "get_accounts_paged"))
}

func TestFetchAccountsPartialFailure(t *testing.T) {
	require := require.New(t)

	node := newFakeNode()
	serveAccounts(node, 0, nil)
	f := newTestFetcher(t, node)

	accounts, failed := f.FetchAccounts(context.Background(), []string{"alice", "ghost", "bob", "panics"})
	require.Len(accounts, 2)
	require.Equal("alice", accounts[0].AccountID)
	require.Equal("bob", accounts[1].AccountID)

	require.Len(failed, 2)
	require.Equal("ghost", failed[0].AccountID)
	require.ErrorIs(failed[0].Err, market.ErrAccountNotFound)
	require.Equal("panics", failed[1].AccountID)
	require.ErrorIs(failed[1].Err, ErrContractExecution)
}

func poolJSON(i int) string {
	return fmt.Sprintf(`{"pool_kind":"SIMPLE_POOL","token_account_ids":["wrap.near","tok-%d"],"amounts":["1000","2000"],"total_fee":30,"shares_total_supply":"1"}`, i)
}

func TestGetPoolsNumbersByPosition(t *testing.T) {
	require := require.New(t)

	const numPools = 600
	node := newFakeNode()
	node.on("ref", "get_number_of_pools", func(gjson.Result) (string, error) { return fmt.Sprint(numPools), nil })
	node.on("ref", "get_pools", func(args gjson.Result) (string, error) {
		from := int(args.Get("from_index").Int())
		limit := int(args.Get("limit").Int())
		var records []string
		for i := from; i < from+limit && i < numPools; i++ {
			records = append(records, poolJSON(i))
		}
		return "[" + strings.Join(records, ",") + "]", nil
	})
	f := newTestFetcher(t, node)

	pools, err := f.GetPools(context.Background())
	require.NoError(err)
	require.Len(pools, numPools)
	require.Equal(3, node.count("ref", "get_pools"))
	for i, p := range pools {
		require.EqualValues(i, p.ID)
		require.Equal(fmt.Sprintf("tok-%d", i), p.TokenAccountIDs[1])
	}
}

func TestGetNumPoolsIsCapped(t *testing.T) {
	require := require.New(t)

	node := newFakeNode()
	node.on("ref", "get_number_of_pools", func(gjson.Result) (string, error) { return "25000", nil })
	f := newTestFetcher(t, node)

	n, err := f.GetNumPools(context.Background())
	require.NoError(err)
	require.Equal(MaxPools, n)
}

func TestFetcherLogsReachConfiguredWriters(t *testing.T) {
	require := require.New(t)

	var out bytes.Buffer
	logger.Initialize("debug", &out)
	t.Cleanup(func() { logger.Initialize("info") })

	node := newFakeNode()
	node.on("ref", "get_number_of_pools", func(gjson.Result) (string, error) { return "20000", nil })
	f := newTestFetcher(t, node)

	_, err := f.GetNumPools(context.Background())
	require.NoError(err)

	logged := out.String()
	require.Contains(logged, "Pool list truncated")
	require.Contains(logged, `"component":"pool_retriever"`)
	require.Contains(logged, "Executing view call")
	require.Contains(logged, `"component":"near_rpc"`)
}

func TestGetPoolsFailsOnBadPage(t *testing.T) {
	require := require.New(t)

	node := newFakeNode()
	node.on("ref", "get_number_of_pools", func(gjson.Result) (string, error) { return "2", nil })
	node.on("ref", "get_pools", func(gjson.Result) (string, error) {
		return `[{"pool_kind":"SIMPLE_POOL","token_account_ids":["a","b"],"amounts":["1"],"total_fee":30,"shares_total_supply":"1"}]`, nil
	})
	f := newTestFetcher(t, node)

	_, err := f.GetPools(context.Background())
	require.ErrorIs(err, market.ErrInvalidRecord)
}

const testAssets = `[["wrap.near",{"supplied":{"shares":"1","balance":"1"},"borrowed":{"shares":"1","balance":"1"},"reserved":"0","last_update_timestamp":"1","config":{"reserve_ratio":2500,"target_utilization":8000,"target_utilization_rate":"1000000000003593629036885046","max_utilization_rate":"1000000000039724853136740579","volatility_ratio":6000,"extra_decimals":0,"can_deposit":true,"can_withdraw":true,"can_use_as_collateral":true,"can_borrow":true}}]]`

func serveMarket(node *fakeNode) {
	node.on("burrow", "get_assets_paged", func(gjson.Result) (string, error) { return testAssets, nil })
	node.on("oracle", "get_price_data", func(gjson.Result) (string, error) {
		return `{"timestamp":"1","recency_duration_sec":90,"prices":[{"asset_id":"wrap.near","price":{"multiplier":"200000","decimals":28}}]}`, nil
	})
}

func TestLoadSnapshot(t *testing.T) {
	require := require.New(t)

	node := newFakeNode()
	serveMarket(node)
	serveAccounts(node, 5, map[int]bool{2: true})
	f := newTestFetcher(t, node)

	snap, err := f.LoadSnapshot(context.Background())
	require.NoError(err)
	require.Contains(snap.Assets, "wrap.near")
	_, ok := snap.Prices.Quote("wrap.near")
	require.True(ok)
	require.Len(snap.Accounts, 4)
	require.Len(snap.Errors, 1)
	require.False(snap.FetchedAt.IsZero())
}

func TestLoadAccountSnapshot(t *testing.T) {
	require := require.New(t)

	node := newFakeNode()
	serveMarket(node)
	serveAccounts(node, 0, nil)
	f := newTestFetcher(t, node)

	snap, err := f.LoadAccountSnapshot(context.Background(), "me.near")
	require.NoError(err)
	require.Len(snap.Accounts, 1)
	require.Equal("me.near", snap.Accounts[0].AccountID)
	require.Zero(node.count("burrow", "get_num_accounts"))
}

func TestLoadSnapshotFailsWithoutPrices(t *testing.T) {
	require := require.New(t)

	node := newFakeNode()
	node.on("burrow", "get_assets_paged", func(gjson.Result) (string, error) { return testAssets, nil })
	f := newTestFetcher(t, node)

	_, err := f.LoadSnapshot(context.Background())
	require.ErrorIs(err, ErrRPC)
}
