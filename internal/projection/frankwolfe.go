// Package projection implements the Frank-Wolfe (conditional gradient)
// I-projection of a raw market price vector onto the marginal polytope,
// following original_source/arbi/src/frank_wolfe.cpp.
package projection

import (
	"log/slog"
	"math"
	"time"

	"github.com/polyarb/arbengine/internal/polytope"
)

// clampEpsilon keeps every coordinate strictly inside (0,1) so KL divergence
// terms never divide by zero or take the log of zero.
const clampEpsilon = 1e-12

// lineSearchIterations is the number of golden-section steps used to
// minimize D_KL(p‖·) along the Frank-Wolfe update direction.
const lineSearchIterations = 30

// Result is the outcome of one Optimize call.
type Result struct {
	Optimal     []float64 // q*, the I-projection of Prices onto the polytope
	TradeVector []float64 // q* - Prices, the implied per-market position change
	Profit      float64   // max(D_KL(Prices‖q*), ½‖TradeVector‖₁)
	Converged   bool
	Iterations  int
	Elapsed     time.Duration
}

// Optimize runs Frank-Wolfe to minimize D_KL(prices‖q) over q in the given
// polytope, starting from the polytope's center (0.5,...,0.5) rather than
// from prices itself: the gradient of D_KL(p‖q) is identically zero at
// q=prices, which would report false convergence on the very first
// iteration for any price vector that happens to already be feasible.
func Optimize(prices []float64, m *polytope.Polytope, maxIters int, tolerance float64, log *slog.Logger) Result {
	start := time.Now()
	n := len(prices)

	p := make([]float64, n)
	for i, v := range prices {
		p[i] = clamp(v)
	}

	q := make([]float64, n)
	for i := range q {
		q[i] = 0.5
	}

	var res Result
	for k := 0; k < maxIters; k++ {
		res.Iterations = k + 1

		grad := make([]float64, n)
		for i := range grad {
			qi := clamp(q[i])
			grad[i] = -p[i]/qi + (1-p[i])/(1-qi)
		}

		v, err := m.SolveLP(grad)
		if err != nil {
			if log != nil {
				log.Warn("frank-wolfe LP infeasible", "iteration", k, "error", err)
			}
			break
		}

		gap := dot(grad, sub(q, v))
		if gap < tolerance {
			res.Converged = true
			if log != nil {
				log.Debug("frank-wolfe converged", "iteration", k, "gap", gap)
			}
			break
		}

		gamma := lineSearch(p, q, v)
		for i := range q {
			q[i] = clamp((1-gamma)*q[i] + gamma*v[i])
		}
	}

	res.Optimal = q
	res.TradeVector = make([]float64, n)
	l1 := 0.0
	for i := range q {
		res.TradeVector[i] = q[i] - prices[i]
		l1 += math.Abs(res.TradeVector[i])
	}
	l1 *= 0.5

	kl := klDivergence(p, q)
	res.Profit = math.Max(kl, l1)
	res.Elapsed = time.Since(start)

	if log != nil && res.Converged {
		log.Info("frank-wolfe optimized", "iterations", res.Iterations, "elapsed", res.Elapsed, "profit", res.Profit)
	}

	return res
}

// lineSearch minimizes D_KL(p‖(1-γ)q+γv) over γ∈[0,1] by golden-section
// search.
func lineSearch(p, q, v []float64) float64 {
	lo, hi := 0.0, 1.0
	klAt := func(g float64) float64 {
		kl := 0.0
		for i := range p {
			qi := clamp((1-g)*q[i] + g*v[i])
			kl += p[i]*math.Log(p[i]/qi) + (1-p[i])*math.Log((1-p[i])/(1-qi))
		}
		return kl
	}
	r := (math.Sqrt(5) - 1) / 2
	g1, g2 := hi-r*(hi-lo), lo+r*(hi-lo)
	f1, f2 := klAt(g1), klAt(g2)
	for i := 0; i < lineSearchIterations; i++ {
		if f1 < f2 {
			hi, g2, f2 = g2, g1, f1
			g1 = hi - r*(hi-lo)
			f1 = klAt(g1)
		} else {
			lo, g1, f1 = g1, g2, f2
			g2 = lo + r*(hi-lo)
			f2 = klAt(g2)
		}
	}
	return (lo + hi) / 2
}

// KLDivergence computes D_KL(p‖q) for binary marginals, coordinate-wise.
// D_KL(p‖p) = 0 for any valid p; the value is finite whenever every
// coordinate of p and q lies strictly inside (0,1).
func KLDivergence(p, q []float64) float64 {
	return klDivergence(p, q)
}

func klDivergence(p, q []float64) float64 {
	kl := 0.0
	for i := range p {
		pi := clamp(p[i])
		qi := clamp(q[i])
		kl += pi*math.Log(pi/qi) + (1-pi)*math.Log((1-pi)/(1-qi))
	}
	return kl
}

func clamp(x float64) float64 {
	if x < clampEpsilon {
		return clampEpsilon
	}
	if x > 1-clampEpsilon {
		return 1 - clampEpsilon
	}
	return x
}

func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
