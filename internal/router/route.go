package router

import (
	"errors"
	"fmt"

	"cosmossdk.io/math"
	"github.com/burrowland/liquidator/internal/amm"
	"github.com/burrowland/liquidator/internal/types"
)

var ErrNoRoute = errors.New("no swap route")

// SwapPlan is a route search result. A plan without pools is the "no route" sentinel: for a
// forward search AmountOut is zero, for an inverse search AmountIn is the available input.
type SwapPlan struct {
	InTokenAccountID  types.TokenID
	OutTokenAccountID types.TokenID
	AmountIn          math.Int
	AmountOut         math.Int
	ExpectedAmountOut math.Int // Zero for forward searches
	Pools             []*amm.Pool
	SwapPath          []types.TokenID
}

// HasRoute reports whether the search found a route.
func (p SwapPlan) HasRoute() bool {
	return len(p.Pools) > 0
}

// Hops returns the number of pools on the route.
func (p SwapPlan) Hops() int {
	return len(p.Pools)
}

// FindBestReturn returns the route that pays the most outToken for amountIn of inToken.
// Direct pools are tried first for each pool listing inToken; a pool that does not list
// outToken is tried as the first hop of a two-hop route.
func (g *Graph) FindBestReturn(inToken, outToken types.TokenID, amountIn math.Int) (SwapPlan, error) {
	best := SwapPlan{
		InTokenAccountID:  inToken,
		OutTokenAccountID: outToken,
		AmountIn:          amountIn,
		AmountOut:         math.ZeroInt(),
		ExpectedAmountOut: math.ZeroInt(),
	}

	for _, pool := range g.PoolsByToken(inToken) {
		if pool.Has(outToken) {
			out, ok, err := pool.GetReturn(inToken, amountIn, outToken)
			if err != nil {
				return SwapPlan{}, err
			}
			if ok && out.GT(best.AmountOut) {
				best.AmountOut = out
				best.Pools = []*amm.Pool{pool}
				best.SwapPath = []types.TokenID{inToken, outToken}
			}
			continue
		}

		for _, middle := range pool.OtherTokens(inToken) {
			second := g.PoolsByPair(middle, outToken)
			if len(second) == 0 {
				continue
			}
			middleOut, ok, err := pool.GetReturn(inToken, amountIn, middle)
			if err != nil {
				return SwapPlan{}, err
			}
			if !ok {
				continue
			}
			for _, pool2 := range second {
				out, ok, err := pool2.GetReturn(middle, middleOut, outToken)
				if err != nil {
					return SwapPlan{}, err
				}
				if ok && out.GT(best.AmountOut) {
					best.AmountOut = out
					best.Pools = []*amm.Pool{pool, pool2}
					best.SwapPath = []types.TokenID{inToken, middle, outToken}
				}
			}
		}
	}
	return best, nil
}

// FindBestInverseReturn returns the route that needs the least inToken to receive amountOut
// of outToken. Only routes cheaper than availableIn are returned.
func (g *Graph) FindBestInverseReturn(inToken, outToken types.TokenID, availableIn, amountOut math.Int) (SwapPlan, error) {
	best := SwapPlan{
		InTokenAccountID:  inToken,
		OutTokenAccountID: outToken,
		AmountIn:          availableIn,
		AmountOut:         math.ZeroInt(),
		ExpectedAmountOut: amountOut,
	}

	for _, pool := range g.PoolsByToken(outToken) {
		if pool.Has(inToken) {
			in, ok, err := pool.GetInverseReturn(outToken, amountOut, inToken)
			if err != nil {
				return SwapPlan{}, err
			}
			if ok && in.LT(best.AmountIn) {
				best.AmountIn = in
				best.AmountOut = amountOut
				best.Pools = []*amm.Pool{pool}
				best.SwapPath = []types.TokenID{inToken, outToken}
			}
			continue
		}

		for _, middle := range pool.OtherTokens(outToken) {
			first := g.PoolsByPair(middle, inToken)
			if len(first) == 0 {
				continue
			}
			middleIn, ok, err := pool.GetInverseReturn(outToken, amountOut, middle)
			if err != nil {
				return SwapPlan{}, err
			}
			if !ok {
				continue
			}
			for _, pool1 := range first {
				in, ok, err := pool1.GetInverseReturn(middle, middleIn, inToken)
				if err != nil {
					return SwapPlan{}, err
				}
				if ok && in.LT(best.AmountIn) {
					best.AmountIn = in
					best.AmountOut = amountOut
					best.Pools = []*amm.Pool{pool1, pool}
					best.SwapPath = []types.TokenID{inToken, middle, outToken}
				}
			}
		}
	}
	return best, nil
}

// Describe renders the route for logs, e.g. "wrap.near -(3)-> usdc.near".
func (p SwapPlan) Describe() string {
	if !p.HasRoute() {
		return fmt.Sprintf("%s -> %s: no route", p.InTokenAccountID, p.OutTokenAccountID)
	}
	s := p.SwapPath[0]
	for i, pool := range p.Pools {
		s += fmt.Sprintf(" -(%d)-> %s", pool.ID, p.SwapPath[i+1])
	}
	return s
}
