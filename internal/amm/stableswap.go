package amm

import (
	"cosmossdk.io/math"
	"github.com/burrowland/liquidator/internal/logger"
	"github.com/burrowland/liquidator/internal/metrics"
	"github.com/burrowland/liquidator/internal/numeric"
)

// MaxNewtonIterations caps both StableSwap solvers.
const MaxNewtonIterations = 256

// maxIterations is the cap the solvers actually use; tests lower it.
var maxIterations = MaxNewtonIterations

const (
	solverD = "compute_d"
	solverY = "compute_y"
)

// Solution is the result of a Newton solve. When Converged is false the solver hit
// MaxNewtonIterations and Value is the last iterate, which is still what the exchange
// contract would use.
type Solution struct {
	Value      math.Int
	Iterations int
	Converged  bool
}

func closeEnough(a, b math.Int) bool {
	return numeric.AbsDiff(a, b).LTE(math.OneInt())
}

func reportNonConvergence(solver string, last math.Int) {
	metrics.NewtonNonConverged.WithLabelValues(solver).Inc()
	log := logger.GetForComponent("amm")
	log.Warn().
		Str("solver", solver).
		Int("iterations", maxIterations).
		Str("last_iterate", last.String()).
		Msg("Newton solver did not converge, using last iterate")
}

// ComputeD solves the StableSwap invariant for normalized balances c and ann = amp*n^n,
// starting from the balance sum.
func ComputeD(c []math.Int, ann math.Int) (Solution, error) {
	sum := math.ZeroInt()
	for _, v := range c {
		sum = sum.Add(v)
	}
	if sum.IsZero() {
		return Solution{Value: math.ZeroInt(), Converged: true}, nil
	}
	return ComputeDFrom(c, ann, sum)
}

// ComputeDFrom runs the invariant solver from an explicit starting point.
func ComputeDFrom(c []math.Int, ann math.Int, start math.Int) (Solution, error) {
	var m numeric.IntMath
	n := math.NewInt(int64(len(c)))
	nPlusOne := n.AddRaw(1)

	sum := math.ZeroInt()
	for _, v := range c {
		sum = m.Add(sum, v)
	}
	leverage := m.Mul(sum, ann)
	annMinusOne := m.Sub(ann, math.OneInt())

	d := start
	for i := 0; i < maxIterations; i++ {
		dProd := d
		for _, cj := range c {
			dProd = m.Quo(m.Mul(dProd, d), m.Mul(cj, n))
		}
		prev := d
		numerator := m.Mul(prev, m.Add(m.Mul(dProd, n), leverage))
		denominator := m.Add(m.Mul(prev, annMinusOne), m.Mul(dProd, nPlusOne))
		d = m.Quo(numerator, denominator)
		if err := m.Err(); err != nil {
			return Solution{}, err
		}
		if closeEnough(d, prev) {
			return Solution{Value: d, Iterations: i + 1, Converged: true}, nil
		}
	}
	reportNonConvergence(solverD, d)
	return Solution{Value: d, Iterations: maxIterations}, nil
}

// ComputeY returns the normalized balance of token indexY that keeps the pool on its
// invariant when token indexX's normalized balance becomes x.
func (p *Pool) ComputeY(x math.Int, indexX, indexY int) (Solution, error) {
	var m numeric.IntMath
	d := p.D.Value

	s := x
	c := m.Quo(m.Mul(d, d), x)
	for idx, ck := range p.CAmounts {
		if idx == indexX || idx == indexY {
			continue
		}
		s = m.Add(s, ck)
		c = m.Quo(m.Mul(c, d), ck)
	}
	c = m.Quo(m.Mul(c, d), m.Mul(p.Ann, p.NN))
	// D is subtracted in the denominator below.
	b := m.Add(m.Quo(d, p.Ann), s)
	if err := m.Err(); err != nil {
		return Solution{}, err
	}

	// y^2 + (b - D)y = c
	y := d
	for i := 0; i < maxIterations; i++ {
		prev := y
		numerator := m.Add(m.Mul(y, y), c)
		denominator := m.Sub(m.Add(m.Mul(y, math.NewInt(2)), b), d)
		y = m.Quo(numerator, denominator)
		if err := m.Err(); err != nil {
			return Solution{}, err
		}
		if closeEnough(y, prev) {
			return Solution{Value: y, Iterations: i + 1, Converged: true}, nil
		}
	}
	reportNonConvergence(solverY, y)
	return Solution{Value: y, Iterations: maxIterations}, nil
}

func (p *Pool) scale(index int) math.Int {
	return numeric.Pow10Int(StableDecimals - p.Decimals[index])
}

// stableReturn quotes amountIn of token in for token out. One unit is withheld from the
// input to absorb the contract's own rounding.
func (p *Pool) stableReturn(in, out int, amountIn math.Int) (math.Int, error) {
	var m numeric.IntMath
	cIn := m.Mul(m.Sub(amountIn, math.OneInt()), p.scale(in))
	x := m.Add(cIn, p.CAmounts[in])
	if err := m.Err(); err != nil {
		return math.ZeroInt(), err
	}
	y, err := p.ComputeY(x, in, out)
	if err != nil {
		return math.ZeroInt(), err
	}

	dy := m.Sub(p.CAmounts[out], y.Value)
	fee := m.Quo(m.Mul(dy, math.NewIntFromUint64(uint64(p.TotalFee))), feeDivisor)
	amount := m.Quo(m.Sub(dy, fee), p.scale(out))
	if err := m.Err(); err != nil {
		return math.ZeroInt(), err
	}
	if amount.IsNegative() {
		return math.ZeroInt(), nil
	}
	return amount, nil
}

// stableInverseReturn quotes the input of token in needed to receive amountOut of token out.
// One unit is added to the result to absorb the contract's own rounding. ok is false when
// the pool cannot pay amountOut.
func (p *Pool) stableInverseReturn(in, out int, amountOut math.Int) (math.Int, bool, error) {
	var m numeric.IntMath
	outWithFee := m.Quo(m.Mul(amountOut, feeDivisor), m.Sub(feeDivisor, math.NewIntFromUint64(uint64(p.TotalFee))))
	cOut := m.Mul(outWithFee, p.scale(out))
	if err := m.Err(); err != nil {
		return math.ZeroInt(), false, err
	}
	if cOut.GTE(p.CAmounts[out]) {
		return math.ZeroInt(), false, nil
	}

	y, err := p.ComputeY(m.Sub(p.CAmounts[out], cOut), out, in)
	if err != nil {
		return math.ZeroInt(), false, err
	}
	cIn := m.Sub(y.Value, p.CAmounts[in])
	if err := m.Err(); err != nil {
		return math.ZeroInt(), false, err
	}
	if cIn.IsNegative() {
		cIn = math.ZeroInt()
	}
	return m.Add(m.Quo(cIn, p.scale(in)), math.OneInt()), true, m.Err()
}
