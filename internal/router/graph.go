// Package router finds the best one- or two-hop swap route through the exchange's pools.
// Routes longer than two hops are never considered.
package router

import (
	"github.com/burrowland/liquidator/internal/amm"
	"github.com/burrowland/liquidator/internal/types"
)

// Graph indexes pools by the tokens they list. It is built once per snapshot and never
// mutated afterwards.
type Graph struct {
	pools   []*amm.Pool
	byToken map[types.TokenID][]*amm.Pool
	byPair  map[string][]*amm.Pool
}

func pairKey(a, b types.TokenID) string {
	return a + ":" + b
}

// NewGraph indexes every pool that has liquidity. Pool order is preserved inside each index,
// so ties between equally good routes go to the pool listed first.
func NewGraph(pools []*amm.Pool) *Graph {
	g := &Graph{
		byToken: make(map[types.TokenID][]*amm.Pool),
		byPair:  make(map[string][]*amm.Pool),
	}
	for _, p := range pools {
		if p == nil || !p.Shares.IsPositive() {
			continue
		}
		g.pools = append(g.pools, p)
		for _, token := range p.Tokens {
			g.byToken[token] = append(g.byToken[token], p)
			for _, other := range p.OtherTokens(token) {
				key := pairKey(token, other)
				g.byPair[key] = append(g.byPair[key], p)
			}
		}
	}
	return g
}

// Len returns the number of indexed pools.
func (g *Graph) Len() int {
	return len(g.pools)
}

// Pools returns the indexed pools in listing order.
func (g *Graph) Pools() []*amm.Pool {
	return g.pools
}

// PoolsByToken returns the pools listing token.
func (g *Graph) PoolsByToken(token types.TokenID) []*amm.Pool {
	return g.byToken[token]
}

// PoolsByPair returns the pools listing both a and b.
func (g *Graph) PoolsByPair(a, b types.TokenID) []*amm.Pool {
	return g.byPair[pairKey(a, b)]
}

// Pool returns the indexed pool with the given id.
func (g *Graph) Pool(id types.PoolID) (*amm.Pool, bool) {
	for _, p := range g.pools {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}
