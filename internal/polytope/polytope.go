// Package polytope builds the sparse linear constraint set implied by the
// current dependency graph and answers feasibility and linear-optimization
// queries against it, following original_source/arbi/src/polytope.cpp.
package polytope

import (
	"math"

	"github.com/polyarb/arbengine/internal/domain"
)

// feasibilityEpsilon is the tolerance used by CheckFeasibility, matching the
// 1e-9 tolerance named in the component design.
const feasibilityEpsilon = 1e-9

// RowKind distinguishes an inequality row from an equality row.
type RowKind int

const (
	RowLE RowKind = iota // coeffs·x <= bound
	RowEQ                // coeffs·x == bound
)

// Row is one constraint row built from a single Dependency. Every row here
// touches exactly two market indices; box bounds (0<=x_i<=1) are implicit
// and applied by the simplex solver rather than materialized as rows.
type Row struct {
	Kind    RowKind
	Indices [2]int
	Coeffs  [2]float64
	Bound   float64
}

// Polytope is the marginal polytope M over n market indices: the set of
// [0,1]^n vectors consistent with every active dependency.
type Polytope struct {
	N    int
	Rows []Row
}

// Build constructs a Polytope from the given dependencies. idx resolves a
// market ID to its index in the price vector; dependencies that reference an
// unknown market, or relate a market to itself, are skipped (the classifier
// is untrusted input per the external-classifier design note).
func Build(n int, deps []domain.Dependency, idx func(marketID string) (int, bool)) *Polytope {
	p := &Polytope{N: n}
	for _, d := range deps {
		i, ok1 := idx(d.SourceMarketID)
		j, ok2 := idx(d.TargetMarketID)
		if !ok1 || !ok2 || i == j {
			continue
		}
		switch d.Relation {
		case domain.RelationImplies:
			// p_i <= p_j  <=>  p_i - p_j <= 0
			p.Rows = append(p.Rows, Row{Kind: RowLE, Indices: [2]int{i, j}, Coeffs: [2]float64{1, -1}, Bound: 0})
		case domain.RelationMutex:
			p.Rows = append(p.Rows, Row{Kind: RowLE, Indices: [2]int{i, j}, Coeffs: [2]float64{1, 1}, Bound: 1})
		case domain.RelationExactlyOne:
			p.Rows = append(p.Rows, Row{Kind: RowEQ, Indices: [2]int{i, j}, Coeffs: [2]float64{1, 1}, Bound: 1})
		case domain.RelationIndependent:
			// no constraint
		}
	}
	return p
}

// FeasibilityResult is the outcome of CheckFeasibility.
type FeasibilityResult struct {
	Feasible  bool
	Violation float64
	// Dual holds the signed violation of each row in m.Rows, in order:
	// positive means the upper-bound side is violated, negative the lower.
	Dual []float64
}

// CheckFeasibility evaluates p against every row. Violation is the maximum
// per-row excess over the tolerance, 0 if feasible. A Polytope with no rows
// is always feasible (box bounds alone never produce an infeasible p drawn
// from [0,1]^n).
func (m *Polytope) CheckFeasibility(p []float64) FeasibilityResult {
	res := FeasibilityResult{Feasible: true, Dual: make([]float64, len(m.Rows))}
	for r, row := range m.Rows {
		val := row.Coeffs[0]*p[row.Indices[0]] + row.Coeffs[1]*p[row.Indices[1]]
		switch row.Kind {
		case RowLE:
			viol := val - row.Bound
			res.Dual[r] = viol
			if viol > feasibilityEpsilon {
				res.Feasible = false
				if viol > res.Violation {
					res.Violation = viol
				}
			}
		case RowEQ:
			diff := val - row.Bound
			res.Dual[r] = diff
			if math.Abs(diff) > feasibilityEpsilon {
				res.Feasible = false
				if math.Abs(diff) > res.Violation {
					res.Violation = math.Abs(diff)
				}
			}
		}
	}
	return res
}

// SolveLP returns argmin c·x over M ∩ [0,1]^n via SolveSimplex, wrapping
// domain.ErrLPInfeasible on an infeasible or degenerate constraint set.
func (m *Polytope) SolveLP(c []float64) ([]float64, error) {
	return SolveSimplex(m.N, m.Rows, c)
}
