// Package amm quotes swaps against the exchange's constant-product and StableSwap pools
// with the same integer arithmetic the exchange contract uses, so a quote matches what the
// contract will pay out.
package amm

import (
	"errors"
	"fmt"

	"cosmossdk.io/math"
	"github.com/burrowland/liquidator/internal/numeric"
	"github.com/burrowland/liquidator/internal/types"
)

var (
	ErrUnsupportedPool    = errors.New("unsupported pool kind")
	ErrMalformedPool      = errors.New("malformed pool")
	ErrUnknownStableToken = errors.New("stable pool token has unknown decimals")
	ErrInvalidAmount      = errors.New("invalid amount")
)

const (
	// FeeDivisor is the basis-point denominator of pool fees.
	FeeDivisor = 10_000
	// StableDecimals is the common scale stable pools normalize balances to.
	StableDecimals = 18
)

var feeDivisor = math.NewInt(FeeDivisor)

// Pool is one exchange pool prepared for quoting. Stable pools carry their normalized
// balances and the solved invariant.
type Pool struct {
	ID       types.PoolID
	Kind     types.PoolKind
	Tokens   []types.TokenID
	Amounts  []math.Int
	TotalFee uint32
	Shares   math.Int

	// StableSwap state
	Amp      uint64
	Decimals []int
	CAmounts []math.Int
	NCoins   int
	NN       math.Int // n^n
	Ann      math.Int // amp * n^n
	D        Solution
}

// Rejection is a pool that could not be prepared.
type Rejection struct {
	PoolID types.PoolID
	Err    error
}

// NewPool prepares raw for quoting. stableDecimals maps every token that may appear in a
// stable pool to its decimals.
func NewPool(raw types.RawPool, stableDecimals map[types.TokenID]int) (*Pool, error) {
	if !raw.Supported() {
		return nil, fmt.Errorf("%w: pool %d is %s", ErrUnsupportedPool, raw.ID, raw.Kind)
	}
	if len(raw.TokenAccountIDs) < 2 || len(raw.TokenAccountIDs) != len(raw.Amounts) {
		return nil, fmt.Errorf("%w: pool %d has %d tokens and %d amounts", ErrMalformedPool, raw.ID, len(raw.TokenAccountIDs), len(raw.Amounts))
	}
	if raw.TotalFee > FeeDivisor {
		return nil, fmt.Errorf("%w: pool %d fee %d bps", ErrMalformedPool, raw.ID, raw.TotalFee)
	}
	for i, a := range raw.Amounts {
		if a.IsNil() || a.IsNegative() {
			return nil, fmt.Errorf("%w: pool %d amount %d", ErrMalformedPool, raw.ID, i)
		}
	}

	p := &Pool{
		ID:       raw.ID,
		Kind:     raw.Kind,
		Tokens:   append([]types.TokenID(nil), raw.TokenAccountIDs...),
		Amounts:  append([]math.Int(nil), raw.Amounts...),
		TotalFee: raw.TotalFee,
		Shares:   raw.SharesTotal,
		Amp:      raw.Amp,
	}
	if p.Shares.IsNil() {
		p.Shares = math.ZeroInt()
	}
	if p.Kind != types.PoolKindStable {
		return p, nil
	}

	if p.Amp == 0 {
		return nil, fmt.Errorf("%w: stable pool %d has no amplification", ErrMalformedPool, raw.ID)
	}
	n := len(p.Tokens)
	p.NCoins = n
	p.Decimals = make([]int, n)
	p.CAmounts = make([]math.Int, n)
	for i, token := range p.Tokens {
		dec, ok := stableDecimals[token]
		if !ok {
			return nil, fmt.Errorf("%w: pool %d token %s", ErrUnknownStableToken, raw.ID, token)
		}
		if dec > StableDecimals {
			return nil, fmt.Errorf("%w: pool %d token %s has %d decimals", ErrMalformedPool, raw.ID, token, dec)
		}
		p.Decimals[i] = dec
		p.CAmounts[i] = p.Amounts[i].Mul(numeric.Pow10Int(StableDecimals - dec))
	}

	nn := math.OneInt()
	for i := 0; i < n; i++ {
		nn = nn.MulRaw(int64(n))
	}
	p.NN = nn
	p.Ann = math.NewIntFromUint64(p.Amp).Mul(nn)

	d, err := ComputeD(p.CAmounts, p.Ann)
	if err != nil {
		return nil, fmt.Errorf("pool %d invariant: %w", raw.ID, err)
	}
	p.D = d
	return p, nil
}

// NewPools prepares every supported pool and reports the ones it had to reject. Pool kinds
// the engine does not quote are skipped silently.
func NewPools(raws []types.RawPool, stableDecimals map[types.TokenID]int) ([]*Pool, []Rejection) {
	pools := make([]*Pool, 0, len(raws))
	var rejected []Rejection
	for _, raw := range raws {
		if !raw.Supported() {
			continue
		}
		p, err := NewPool(raw, stableDecimals)
		if err != nil {
			rejected = append(rejected, Rejection{PoolID: raw.ID, Err: err})
			continue
		}
		pools = append(pools, p)
	}
	return pools, rejected
}

// Stable reports whether the pool uses the StableSwap curve.
func (p *Pool) Stable() bool {
	return p.Kind == types.PoolKindStable
}

// IndexOf returns the token's position in the pool, or -1.
func (p *Pool) IndexOf(token types.TokenID) int {
	for i, t := range p.Tokens {
		if t == token {
			return i
		}
	}
	return -1
}

// Has reports whether the pool lists token.
func (p *Pool) Has(token types.TokenID) bool {
	return p.IndexOf(token) >= 0
}

// OtherTokens returns the pool's tokens except token, in pool order.
func (p *Pool) OtherTokens(token types.TokenID) []types.TokenID {
	out := make([]types.TokenID, 0, len(p.Tokens)-1)
	for _, t := range p.Tokens {
		if t != token {
			out = append(out, t)
		}
	}
	return out
}

// Balance returns the pool's raw balance of token.
func (p *Pool) Balance(token types.TokenID) (math.Int, bool) {
	i := p.IndexOf(token)
	if i < 0 {
		return math.ZeroInt(), false
	}
	return p.Amounts[i], true
}
