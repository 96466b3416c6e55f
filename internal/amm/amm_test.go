package amm

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/burrowland/liquidator/internal/metrics"
	"github.com/burrowland/liquidator/internal/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	wnear = "wrap.near"
	dai   = "dai.stable"
	usdc  = "usdc.stable"
	usdt  = "usdt.stable"
)

var decimals = map[types.TokenID]int{dai: 18, usdc: 6, usdt: 6}

func amount(t *testing.T, s string) math.Int {
	t.Helper()
	v, ok := math.NewIntFromString(s)
	require.True(t, ok, s)
	return v
}

func simplePool(t *testing.T) *Pool {
	p, err := NewPool(types.RawPool{
		ID:              0,
		Kind:            types.PoolKindSimple,
		TokenAccountIDs: []types.TokenID{wnear, usdc},
		Amounts:         []math.Int{amount(t, "1000000000000000000000000000000"), amount(t, "5000000000000")},
		TotalFee:        30,
		SharesTotal:     math.NewInt(1),
	}, decimals)
	require.NoError(t, err)
	return p
}

func stablePool(t *testing.T, amounts ...string) *Pool {
	raw := types.RawPool{
		ID:              1,
		Kind:            types.PoolKindStable,
		TokenAccountIDs: []types.TokenID{dai, usdc, usdt},
		TotalFee:        5,
		SharesTotal:     math.NewInt(1),
		Amp:             240,
	}
	for _, a := range amounts {
		raw.Amounts = append(raw.Amounts, amount(t, a))
	}
	p, err := NewPool(raw, decimals)
	require.NoError(t, err)
	return p
}

func TestConstantProductQuotes(t *testing.T) {
	require := require.New(t)
	p := simplePool(t)

	out, ok, err := p.GetReturn(wnear, amount(t, "1000000000000000000000000"), usdc)
	require.NoError(err)
	require.True(ok)
	require.Equal("4984995", out.String())

	in, ok, err := p.GetInverseReturn(usdc, math.NewInt(5_000_000), wnear)
	require.NoError(err)
	require.True(ok)
	require.Equal("1003010030091273822467404", in.String())

	// the pool cannot pay out its whole balance
	_, ok, err = p.GetInverseReturn(usdc, amount(t, "5000000000000"), wnear)
	require.NoError(err)
	require.False(ok)
}

func TestQuoteGuards(t *testing.T) {
	require := require.New(t)
	p := simplePool(t)

	out, ok, err := p.GetReturn(wnear, math.ZeroInt(), usdc)
	require.NoError(err)
	require.True(ok)
	require.True(out.IsZero())

	_, ok, err = p.GetReturn(wnear, math.NewInt(10), dai)
	require.NoError(err)
	require.False(ok)

	_, ok, err = p.GetReturn(wnear, math.NewInt(10), wnear)
	require.NoError(err)
	require.False(ok)

	_, ok, err = p.GetInverseReturn(dai, math.NewInt(10), wnear)
	require.NoError(err)
	require.False(ok)

	_, _, err = p.GetReturn(wnear, math.NewInt(-1), usdc)
	require.ErrorIs(err, ErrInvalidAmount)
}

func TestStableBalancedPool(t *testing.T) {
	require := require.New(t)
	p := stablePool(t, "1000000000000000000000000", "1000000000000", "1000000000000")

	require.True(p.D.Converged)
	require.Equal("3000000000000000000000000", p.D.Value.String())
	require.Equal("27", p.NN.String())
	require.Equal("6480", p.Ann.String())

	out, ok, err := p.GetReturn(usdc, math.NewInt(1_000_000_000), dai)
	require.NoError(err)
	require.True(ok)
	require.Equal("999499536482899787761", out.String())

	out, ok, err = p.GetReturn(usdt, math.NewInt(1_000_000_000), usdc)
	require.NoError(err)
	require.True(ok)
	require.Equal("999499536", out.String())

	in, ok, err := p.GetInverseReturn(dai, amount(t, "1000000000000000000000"), usdt)
	require.NoError(err)
	require.True(ok)
	require.Equal("1000500714", in.String())
}

func TestStableImbalancedPool(t *testing.T) {
	require := require.New(t)
	p := stablePool(t, "1200000000000000000000000", "800000000000", "1000000000000")

	require.True(p.D.Converged)
	require.Equal("2999980719298577166554866", p.D.Value.String())
	require.Equal(3, p.D.Iterations)

	out, ok, err := p.GetReturn(usdc, math.NewInt(1_000_000_000), dai)
	require.NoError(err)
	require.True(ok)
	require.Equal("999700166368636188236", out.String())

	out, ok, err = p.GetReturn(dai, amount(t, "5000000000000000000000"), usdc)
	require.NoError(err)
	require.True(ok)
	require.Equal("4996481751", out.String())

	in, ok, err := p.GetInverseReturn(dai, amount(t, "1000000000000000000000"), usdt)
	require.NoError(err)
	require.True(ok)
	require.Equal("1000420291", in.String())

	// more than the pool holds
	_, ok, err = p.GetInverseReturn(usdc, math.NewInt(900_000_000_000), dai)
	require.NoError(err)
	require.False(ok)
}

func TestNewtonIterationCap(t *testing.T) {
	require := require.New(t)
	p := stablePool(t, "1200000000000000000000000", "800000000000", "1000000000000")
	converged := p.D.Value

	maxIterations = 1
	t.Cleanup(func() { maxIterations = MaxNewtonIterations })

	dCounter := metrics.NewtonNonConverged.WithLabelValues(solverD)
	yCounter := metrics.NewtonNonConverged.WithLabelValues(solverY)
	beforeD := testutil.ToFloat64(dCounter)
	beforeY := testutil.ToFloat64(yCounter)

	d, err := ComputeD(p.CAmounts, p.Ann)
	require.NoError(err)
	require.False(d.Converged)
	require.Equal(1, d.Iterations)
	require.False(d.Value.IsZero())
	require.False(d.Value.Equal(converged))
	require.Equal(beforeD+1, testutil.ToFloat64(dCounter))

	x := p.CAmounts[0].Add(amount(t, "50000000000000000000000"))
	y, err := p.ComputeY(x, 0, 1)
	require.NoError(err)
	require.False(y.Converged)
	require.Equal(1, y.Iterations)
	require.Equal(beforeY+1, testutil.ToFloat64(yCounter))

	// a pool built while the cap is hit keeps the last iterate and the flag
	capped := stablePool(t, "1200000000000000000000000", "800000000000", "1000000000000")
	require.False(capped.D.Converged)
	require.True(capped.D.Value.Equal(d.Value))
}

func TestNewPoolRejections(t *testing.T) {
	require := require.New(t)

	_, err := NewPool(types.RawPool{
		ID:              7,
		Kind:            types.PoolKindStable,
		TokenAccountIDs: []types.TokenID{dai, "ghost.near"},
		Amounts:         []math.Int{math.NewInt(1), math.NewInt(1)},
		SharesTotal:     math.NewInt(1),
		Amp:             100,
	}, decimals)
	require.ErrorIs(err, ErrUnknownStableToken)

	_, err = NewPool(types.RawPool{ID: 8, Kind: "RATED_SWAP"}, decimals)
	require.ErrorIs(err, ErrUnsupportedPool)

	_, err = NewPool(types.RawPool{
		ID:              9,
		Kind:            types.PoolKindSimple,
		TokenAccountIDs: []types.TokenID{wnear, usdc},
		Amounts:         []math.Int{math.NewInt(1)},
	}, decimals)
	require.ErrorIs(err, ErrMalformedPool)

	pools, rejected := NewPools([]types.RawPool{
		{ID: 0, Kind: types.PoolKindSimple, TokenAccountIDs: []types.TokenID{wnear, usdc}, Amounts: []math.Int{math.NewInt(5), math.NewInt(5)}, SharesTotal: math.NewInt(1)},
		{ID: 1, Kind: "RATED_SWAP"},
		{ID: 2, Kind: types.PoolKindStable, TokenAccountIDs: []types.TokenID{dai, "ghost.near"}, Amounts: []math.Int{math.NewInt(1), math.NewInt(1)}, Amp: 1},
	}, decimals)
	require.Len(pools, 1)
	require.Equal(types.PoolID(0), pools[0].ID)
	require.Len(rejected, 1)
	require.Equal(types.PoolID(2), rejected[0].PoolID)
}

func TestEmptyStablePool(t *testing.T) {
	require := require.New(t)

	d, err := ComputeD([]math.Int{math.ZeroInt(), math.ZeroInt()}, math.NewInt(400))
	require.NoError(err)
	require.True(d.Converged)
	require.True(d.Value.IsZero())
}

func TestPoolTokens(t *testing.T) {
	require := require.New(t)
	p := stablePool(t, "1000000000000000000000000", "1000000000000", "1000000000000")

	require.True(p.Has(usdt))
	require.False(p.Has(wnear))
	require.Equal(1, p.IndexOf(usdc))
	require.Equal([]types.TokenID{dai, usdt}, p.OtherTokens(usdc))

	bal, ok := p.Balance(usdc)
	require.True(ok)
	require.Equal("1000000000000", bal.String())
}

func TestQuoteProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	balances := gen.Int64Range(1, 1_000_000_000_000)
	fees := gen.UInt32Range(0, 9_999)

	cpPool := func(bi, bo int64, fee uint32) *Pool {
		return &Pool{
			Kind:     types.PoolKindSimple,
			Tokens:   []types.TokenID{wnear, usdc},
			Amounts:  []math.Int{math.NewInt(bi).MulRaw(1_000_000), math.NewInt(bo)},
			TotalFee: fee,
			Shares:   math.OneInt(),
		}
	}

	properties.Property("constant product round trip never returns more than was put in", prop.ForAll(
		func(bi, bo int64, fee uint32, x int64) bool {
			p := cpPool(bi, bo, fee)
			in := math.NewInt(x)
			out, ok, err := p.GetReturn(wnear, in, usdc)
			if err != nil || !ok {
				return false
			}
			back, ok, err := p.GetInverseReturn(usdc, out, wnear)
			if err != nil || !ok {
				return false
			}
			return back.LTE(in)
		},
		balances, balances, fees, balances,
	))

	properties.Property("inverse quote buys at least the requested output", prop.ForAll(
		func(bi, bo int64, fee uint32, want int64) bool {
			p := cpPool(bi, bo, fee)
			target := math.NewInt(want % bo)
			in, ok, err := p.GetInverseReturn(usdc, target, wnear)
			if err != nil || !ok {
				return false
			}
			got, ok, err := p.GetReturn(wnear, in, usdc)
			return err == nil && ok && got.GTE(target)
		},
		balances, balances, fees, balances,
	))

	properties.Property("the invariant solver stops at a fixed point", prop.ForAll(
		func(amp int64, n int, raw []int64) bool {
			if len(raw) < n {
				return true
			}
			c := make([]math.Int, n)
			for i, v := range raw[:n] {
				c[i] = math.NewInt(v).Mul(math.NewIntWithDecimal(1, 12))
			}
			nn := int64(1)
			for i := 0; i < n; i++ {
				nn *= int64(n)
			}
			ann := math.NewInt(amp * nn)
			d, err := ComputeD(c, ann)
			if err != nil || !d.Converged {
				return false
			}
			again, err := ComputeDFrom(c, ann, d.Value)
			if err != nil {
				return false
			}
			diff := again.Value.Sub(d.Value).Abs()
			return diff.LTE(math.OneInt())
		},
		gen.Int64Range(1, 1000),
		gen.IntRange(2, 4),
		gen.SliceOfN(4, gen.Int64Range(100_000_000, 1_000_000_000_000)),
	))

	properties.TestingRun(t)
}
