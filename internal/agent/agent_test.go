package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/burrowland/liquidator/internal/config"
	"github.com/burrowland/liquidator/internal/datafetcher"
	"github.com/burrowland/liquidator/internal/executor"
	"github.com/burrowland/liquidator/internal/liquidation"
	"github.com/burrowland/liquidator/internal/market"
	"github.com/burrowland/liquidator/internal/metrics"
	"github.com/burrowland/liquidator/internal/risk"
	"github.com/burrowland/liquidator/internal/risk/risktest"
	"github.com/burrowland/liquidator/internal/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var contracts = Contracts{
	Lending:  "contract.main.burrow.near",
	Oracle:   "priceoracle.near",
	Exchange: "v2.ref-finance.near",
	WrapNear: risktest.NEAR,
}

const ownID = "liquidator.near"

type fakeSource struct {
	market    datafetcher.Snapshot
	marketErr error
	own       []datafetcher.Snapshot // One per LoadAccountSnapshot call; the last repeats
	ownCalls  int
	pools     []types.RawPool
	poolCalls int
}

func (f *fakeSource) LoadSnapshot(ctx context.Context) (datafetcher.Snapshot, error) {
	return f.market, f.marketErr
}

func (f *fakeSource) LoadAccountSnapshot(ctx context.Context, accountIDs ...string) (datafetcher.Snapshot, error) {
	i := f.ownCalls
	if i >= len(f.own) {
		i = len(f.own) - 1
	}
	f.ownCalls++
	return f.own[i], nil
}

func (f *fakeSource) GetPools(ctx context.Context) ([]types.RawPool, error) {
	f.poolCalls++
	return f.pools, nil
}

type fakeRecorder struct {
	counter int
	saved   []types.CycleSnapshot
}

func (r *fakeRecorder) IncrementCycleNumber(ctx context.Context) (int, error) {
	r.counter++
	return r.counter, nil
}

func (r *fakeRecorder) SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error) {
	r.saved = append(r.saved, snapshot)
	return int64(len(r.saved)), nil
}

type fakeCache struct {
	ranking []types.AccountSummary
	pools   []types.RawPool
}

func (c *fakeCache) SetRanking(ctx context.Context, accounts []types.AccountSummary) error {
	c.ranking = accounts
	return nil
}

func (c *fakeCache) SetPools(ctx context.Context, pools []types.RawPool) error {
	c.pools = pools
	return nil
}

type fakeSigner struct {
	sent []types.FunctionCall
	err  error
}

func (s *fakeSigner) SignAndSend(ctx context.Context, call types.FunctionCall) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, call)
	return fmt.Sprintf("tx-%d", len(s.sent)), nil
}

func (s *fakeSigner) AccountID() string { return ownID }

func marketOf(accounts ...types.Account) datafetcher.Snapshot {
	return datafetcher.Snapshot{
		Assets:    risktest.Assets(),
		Prices:    risktest.Prices(),
		Accounts:  accounts,
		FetchedAt: time.Now().UTC(),
	}
}

func ownSnapshot(account types.Account) datafetcher.Snapshot {
	account.AccountID = ownID
	return marketOf(account)
}

func daiPosition(whole int64) types.Position {
	return types.Position{TokenID: risktest.DAI, Shares: risktest.Shares(whole, 18)}
}

func newAgent(t *testing.T, source Source, exec executor.Executor, recorder *fakeRecorder, cache *fakeCache) *Agent {
	t.Helper()
	cfg := Config{
		Source:    source,
		Executor:  exec,
		Params:    config.DefaultEngineParameters,
		Contracts: contracts,
		AccountID: ownID,
	}
	if recorder != nil {
		cfg.Recorder = recorder
	}
	if cache != nil {
		cfg.Cache = cache
	}
	a, err := New(cfg)
	require.NoError(t, err)
	return a
}

func TestNewValidatesConfig(t *testing.T) {
	require := require.New(t)

	_, err := New(Config{Executor: executor.NewDryRun(), Contracts: contracts, AccountID: ownID, Params: config.DefaultEngineParameters})
	require.ErrorIs(err, ErrInvalidConfig)

	_, err = New(Config{Source: &fakeSource{}, Executor: executor.NewDryRun(), AccountID: ownID, Params: config.DefaultEngineParameters})
	require.ErrorIs(err, ErrInvalidConfig)

	params := config.DefaultEngineParameters
	params.MaxRebalanceIterations = 0
	_, err = New(Config{Source: &fakeSource{}, Executor: executor.NewDryRun(), Contracts: contracts, AccountID: ownID, Params: params})
	require.ErrorIs(err, ErrInvalidConfig)
}

func TestRunCycleDryRunLiquidatesWorstAccount(t *testing.T) {
	require := require.New(t)

	source := &fakeSource{market: marketOf(risktest.Alice(), risktest.Rekt(), risktest.Bob())}
	dry := executor.NewDryRun()
	recorder := &fakeRecorder{}
	cache := &fakeCache{}
	a := newAgent(t, source, dry, recorder, cache)

	snapshot, err := a.RunCycle(context.Background())
	require.NoError(err)
	require.Equal(types.OutcomeSkipped, snapshot.Outcome)
	require.Equal(types.CycleLiquidation, snapshot.Kind)
	require.Equal("rekt", snapshot.AccountID)
	require.Equal(1, snapshot.CycleNumber)
	require.Equal(3, snapshot.AccountsScanned)
	require.Zero(snapshot.AccountsFailed)
	require.True(snapshot.DryRun)
	require.True(snapshot.ProfitUSD.IsPositive())
	require.True(snapshot.HealthAfter.GreaterThan(snapshot.HealthBefore))
	require.Len(snapshot.TransactionHashes, 1)

	// the submitted message is exactly the plan's
	account, err := risk.ValueAccount(risktest.Rekt(), risktest.Assets(), risktest.Prices())
	require.NoError(err)
	plan, err := liquidation.ComputeLiquidation(account, config.DefaultEngineParameters)
	require.NoError(err)
	wantMsg, err := json.Marshal(plan.ExecuteMsg())
	require.NoError(err)

	calls := dry.Calls()
	require.Len(calls, 1)
	require.Equal(contracts.Oracle, calls[0].ContractID)
	require.Equal("oracle_call", calls[0].MethodName)
	args := calls[0].Args.(executor.OracleCallArgs)
	require.Equal(contracts.Lending, args.ReceiverID)
	require.JSONEq(string(wantMsg), args.Msg)
	require.Equal(plan.Actions, snapshot.Actions)

	require.Len(recorder.saved, 1)
	require.Equal(int64(1), snapshot.SnapshotID)
	require.Equal(snapshot.AccountID, recorder.saved[0].AccountID)

	require.Len(cache.ranking, 3)
	require.Equal("rekt", cache.ranking[0].AccountID)
	require.Equal("alice", cache.ranking[2].AccountID)

	require.Equal(float64(3), testutil.ToFloat64(metrics.AccountsScanned))
	require.Equal(float64(snapshot.LiquidatableCount), testutil.ToFloat64(metrics.LiquidatableAccounts))
}

func TestRunCycleIdleWhenEveryoneIsHealthy(t *testing.T) {
	require := require.New(t)

	dry := executor.NewDryRun()
	recorder := &fakeRecorder{}
	a := newAgent(t, &fakeSource{market: marketOf(risktest.Alice())}, dry, recorder, nil)

	snapshot, err := a.RunCycle(context.Background())
	require.NoError(err)
	require.Equal(types.OutcomeIdle, snapshot.Outcome)
	require.Zero(snapshot.LiquidatableCount)
	require.Empty(snapshot.AccountID)
	require.Empty(dry.Calls())
	require.Len(recorder.saved, 1)

	snapshot, err = a.RunCycle(context.Background())
	require.NoError(err)
	require.Equal(2, snapshot.CycleNumber)
}

func TestRunCycleCountsUnreadableAccounts(t *testing.T) {
	require := require.New(t)

	m := marketOf(risktest.Alice(), risktest.Rekt())
	m.Errors = []datafetcher.AccountError{{AccountID: "broken", Err: market.ErrInvalidRecord}}
	a := newAgent(t, &fakeSource{market: m}, executor.NewDryRun(), &fakeRecorder{}, nil)

	snapshot, err := a.RunCycle(context.Background())
	require.NoError(err)
	require.Equal(3, snapshot.AccountsScanned)
	require.Equal(1, snapshot.AccountsFailed)
}

func TestRunCycleLiveSubmission(t *testing.T) {
	require := require.New(t)

	signer := &fakeSigner{}
	a := newAgent(t, &fakeSource{market: marketOf(risktest.Rekt())}, executor.NewLive(signer), &fakeRecorder{}, nil)

	snapshot, err := a.RunCycle(context.Background())
	require.NoError(err)
	require.Equal(types.OutcomeExecuted, snapshot.Outcome)
	require.False(snapshot.DryRun)
	require.Equal([]string{"tx-1"}, snapshot.TransactionHashes)
	require.Len(signer.sent, 1)
	require.Equal("oracle_call", signer.sent[0].MethodName)
}

func TestRunCycleSubmissionFailureIsRecorded(t *testing.T) {
	require := require.New(t)

	signer := &fakeSigner{err: errors.New("nonce too low")}
	recorder := &fakeRecorder{}
	a := newAgent(t, &fakeSource{market: marketOf(risktest.Rekt())}, executor.NewLive(signer), recorder, nil)

	snapshot, err := a.RunCycle(context.Background())
	require.ErrorIs(err, executor.ErrTransactionFailed)
	require.Equal(types.OutcomeFailed, snapshot.Outcome)
	require.Equal("rekt", snapshot.AccountID)
	require.Empty(snapshot.TransactionHashes)
	require.Len(snapshot.Errors, 1)
	require.Contains(snapshot.Errors[0], "nonce too low")
	require.Len(recorder.saved, 1)
	require.Equal(types.OutcomeFailed, recorder.saved[0].Outcome)
}

func TestRunCycleFetchFailure(t *testing.T) {
	require := require.New(t)

	recorder := &fakeRecorder{}
	source := &fakeSource{marketErr: datafetcher.ErrRPC}
	a := newAgent(t, source, executor.NewDryRun(), recorder, nil)

	snapshot, err := a.RunCycle(context.Background())
	require.ErrorIs(err, datafetcher.ErrRPC)
	require.Equal(types.OutcomeFailed, snapshot.Outcome)
	require.Len(recorder.saved, 1)
}

func TestRebalanceNothingToDo(t *testing.T) {
	require := require.New(t)

	source := &fakeSource{own: []datafetcher.Snapshot{ownSnapshot(types.Account{
		Collateral: []types.Position{{TokenID: risktest.NEAR, Shares: risktest.Shares(5, 24)}},
	})}}
	dry := executor.NewDryRun()
	a := newAgent(t, source, dry, &fakeRecorder{}, nil)

	snapshot, err := a.Rebalance(context.Background())
	require.NoError(err)
	require.Equal(types.OutcomeIdle, snapshot.Outcome)
	require.Equal(types.CycleRebalance, snapshot.Kind)
	require.Equal(ownID, snapshot.AccountID)
	require.Empty(dry.Calls())
	require.Zero(source.poolCalls)
}

func TestRebalanceRepaysUntilSettled(t *testing.T) {
	require := require.New(t)

	source := &fakeSource{own: []datafetcher.Snapshot{
		ownSnapshot(types.Account{
			Collateral: []types.Position{{TokenID: risktest.NEAR, Shares: risktest.Shares(5, 24)}},
			Supplied:   []types.Position{daiPosition(30)},
			Borrowed:   []types.Position{daiPosition(20)},
		}),
		ownSnapshot(types.Account{
			Collateral: []types.Position{{TokenID: risktest.NEAR, Shares: risktest.Shares(5, 24)}},
		}),
	}}
	signer := &fakeSigner{}
	a := newAgent(t, source, executor.NewLive(signer), &fakeRecorder{}, nil)

	snapshot, err := a.Rebalance(context.Background())
	require.NoError(err)
	require.Equal(types.OutcomeExecuted, snapshot.Outcome)
	require.Equal([]string{"tx-1"}, snapshot.TransactionHashes)
	require.Equal([]types.Action{
		{Repay: &types.AssetAmount{TokenID: risktest.DAI, MaxAmount: "30000000000000000000"}},
	}, snapshot.Actions)
	require.Empty(snapshot.Errors)
	require.Equal(2, source.ownCalls)
	require.Zero(source.poolCalls)
}

func simplePool(t *testing.T, id types.PoolID, token string, amounts ...string) types.RawPool {
	t.Helper()
	raw := types.RawPool{
		ID:              id,
		Kind:            types.PoolKindSimple,
		TokenAccountIDs: []types.TokenID{risktest.NEAR, token},
		TotalFee:        30,
		SharesTotal:     sdkmath.OneInt(),
	}
	for _, a := range amounts {
		v, ok := sdkmath.NewIntFromString(a)
		require.True(t, ok)
		raw.Amounts = append(raw.Amounts, v)
	}
	return raw
}

func TestRebalanceDryRunSellsOnce(t *testing.T) {
	require := require.New(t)

	source := &fakeSource{
		own: []datafetcher.Snapshot{ownSnapshot(types.Account{
			Supplied: []types.Position{{TokenID: risktest.USDC, Shares: risktest.Shares(20, 18)}},
		})},
		pools: []types.RawPool{
			simplePool(t, 0, risktest.USDC, "1000000000000000000000000000000", "5000000000000"),
			simplePool(t, 1, risktest.DAI, "1000000000000000000000000000000", "5000000000000000000000000"),
		},
	}
	dry := executor.NewDryRun()
	cache := &fakeCache{}
	a := newAgent(t, source, dry, &fakeRecorder{}, cache)

	snapshot, err := a.Rebalance(context.Background())
	require.NoError(err)
	require.Equal(types.OutcomeSkipped, snapshot.Outcome)
	require.Equal(1, source.ownCalls)
	require.Equal(1, source.poolCalls)
	require.Len(cache.pools, 2)

	calls := dry.Calls()
	require.Len(calls, 2)
	require.Equal("execute", calls[0].MethodName)
	require.Equal(risktest.USDC, calls[1].ContractID)
	require.Equal("ft_transfer_call", calls[1].MethodName)
	require.Len(snapshot.TransactionHashes, 2)
}

func TestRebalanceStopsAtIterationCap(t *testing.T) {
	require := require.New(t)

	// the ledger never changes, so every pass plans the same repay
	source := &fakeSource{own: []datafetcher.Snapshot{ownSnapshot(types.Account{
		Supplied: []types.Position{daiPosition(30)},
		Borrowed: []types.Position{daiPosition(20)},
	})}}
	signer := &fakeSigner{}
	params := config.DefaultEngineParameters
	params.MaxRebalanceIterations = 3
	a, err := New(Config{
		Source:    source,
		Executor:  executor.NewLive(signer),
		Params:    params,
		Contracts: contracts,
		AccountID: ownID,
	})
	require.NoError(err)

	snapshot, err := a.Rebalance(context.Background())
	require.NoError(err)
	require.Equal(types.OutcomeExecuted, snapshot.Outcome)
	require.Len(signer.sent, 3)
	require.Equal([]string{ErrIterationCap.Error()}, snapshot.Errors)
}

func TestRebalanceFailsForUnknownAccount(t *testing.T) {
	require := require.New(t)

	missing := marketOf()
	missing.Errors = []datafetcher.AccountError{{AccountID: ownID, Err: market.ErrAccountNotFound}}
	recorder := &fakeRecorder{}
	a := newAgent(t, &fakeSource{own: []datafetcher.Snapshot{missing}}, executor.NewDryRun(), recorder, nil)

	snapshot, err := a.Rebalance(context.Background())
	require.ErrorIs(err, market.ErrAccountNotFound)
	require.Equal(types.OutcomeFailed, snapshot.Outcome)
	require.Len(recorder.saved, 1)
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	require := require.New(t)

	recorder := &fakeRecorder{}
	a := newAgent(t, &fakeSource{market: marketOf(risktest.Alice())}, executor.NewDryRun(), recorder, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		a.RunLoop(ctx, time.Hour)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunLoop did not stop")
	}
	require.Len(recorder.saved, 1)
	require.Equal(1, a.cycleCount)
}

func TestRunLoopRebalancesAfterLiquidation(t *testing.T) {
	require := require.New(t)

	source := &fakeSource{
		market: marketOf(risktest.Rekt()),
		own: []datafetcher.Snapshot{ownSnapshot(types.Account{
			Collateral: []types.Position{{TokenID: risktest.NEAR, Shares: risktest.Shares(5, 24)}},
		})},
	}
	recorder := &fakeRecorder{}
	a := newAgent(t, source, executor.NewLive(&fakeSigner{}), recorder, nil)

	a.tick(context.Background())
	require.Len(recorder.saved, 2)
	require.Equal(types.CycleLiquidation, recorder.saved[0].Kind)
	require.Equal(types.OutcomeExecuted, recorder.saved[0].Outcome)
	require.Equal(types.CycleRebalance, recorder.saved[1].Kind)
	require.Equal(types.OutcomeIdle, recorder.saved[1].Outcome)
}
