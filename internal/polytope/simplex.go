package polytope

import (
	"fmt"
	"math"

	"github.com/polyarb/arbengine/internal/domain"
)

// simplexTolerance is the numerical tolerance for treating a tableau entry
// as zero, and for judging phase-1 optimality.
const simplexTolerance = 1e-9

// simplexMaxIterations bounds the pivot count; a two-phase simplex on the
// modest constraint sets this engine builds (O(200) variables, O(200) rows
// including box bounds) terminates in well under this many pivots, so
// hitting the cap signals cycling or a modeling bug rather than a slow but
// valid run.
const simplexMaxIterations = 5000

// SolveSimplex solves argmin c·x subject to the given rows and the implicit
// box bounds 0<=x_i<=1 for i in [0,n), using a dense two-phase primal
// simplex. Box upper bounds are added as explicit <= rows so the whole
// problem is in standard <=/= form with a nonnegative right-hand side,
// which always admits x=0 as a phase-1 starting basic feasible solution.
//
// This is the one hand-rolled numerical routine in the codebase: no example
// in the retrieval pack ships a pure-Go LP/simplex library (the pack's
// numerical dependencies are all domain-specific — decimal arithmetic,
// rate limiting — not general optimization), so there is nothing to wire
// here instead of writing it directly, per DESIGN.md.
func SolveSimplex(n int, rows []Row, c []float64) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}

	// Partition rows into LE and EQ groups, then append the n implicit
	// upper-bound rows (x_i <= 1) to the LE group.
	var leRows, eqRows []Row
	for _, r := range rows {
		switch r.Kind {
		case RowLE:
			leRows = append(leRows, r)
		case RowEQ:
			eqRows = append(eqRows, r)
		}
	}
	for i := 0; i < n; i++ {
		leRows = append(leRows, Row{Kind: RowLE, Indices: [2]int{i, i}, Coeffs: [2]float64{1, 0}, Bound: 1})
	}

	nLE := len(leRows)
	nEQ := len(eqRows)
	nRows := nLE + nEQ
	nCols := n + nLE + nEQ // structural + slack + artificial

	// tableau[r] = [coefficients..., RHS], length nCols+1.
	tableau := make([][]float64, nRows)
	for r := 0; r < nRows; r++ {
		tableau[r] = make([]float64, nCols+1)
	}
	basis := make([]int, nRows)

	for r, row := range leRows {
		if row.Bound < 0 {
			return nil, fmt.Errorf("polytope: %w: negative bound on inequality row", domain.ErrLPInfeasible)
		}
		tableau[r][row.Indices[0]] += row.Coeffs[0]
		if row.Indices[1] != row.Indices[0] {
			tableau[r][row.Indices[1]] += row.Coeffs[1]
		} else {
			tableau[r][row.Indices[0]] += 0 // no-op; box rows only touch one index
		}
		slackCol := n + r
		tableau[r][slackCol] = 1
		tableau[r][nCols] = row.Bound
		basis[r] = slackCol
	}
	for r, row := range eqRows {
		tr := nLE + r
		if row.Bound < 0 {
			return nil, fmt.Errorf("polytope: %w: negative bound on equality row", domain.ErrLPInfeasible)
		}
		tableau[tr][row.Indices[0]] += row.Coeffs[0]
		tableau[tr][row.Indices[1]] += row.Coeffs[1]
		artCol := n + nLE + r
		tableau[tr][artCol] = 1
		tableau[tr][nCols] = row.Bound
		basis[tr] = artCol
	}

	// Phase 1: minimize the sum of artificial variables.
	if nEQ > 0 {
		obj := make([]float64, nCols+1)
		for r := 0; r < nRows; r++ {
			if basis[r] >= n+nLE {
				for c := 0; c <= nCols; c++ {
					obj[c] -= tableau[r][c]
				}
			}
		}
		if err := runSimplex(tableau, basis, obj, nCols); err != nil {
			return nil, err
		}
		if -obj[nCols] > 1e-6 {
			return nil, fmt.Errorf("polytope: %w", domain.ErrLPInfeasible)
		}
		// Artificial variables still in the basis (degenerate zero rows)
		// are left in place; they are harmless at value 0 going into
		// phase 2.
	}

	// Phase 2: minimize c·x. Artificial columns are barred from re-entering
	// the basis by a mask that runSimplexBarred skips when choosing the
	// entering column.
	obj2 := make([]float64, nCols+1)
	for i := 0; i < n; i++ {
		obj2[i] = c[i]
	}
	for r := 0; r < nRows; r++ {
		if basis[r] < nCols {
			coeff := obj2[basis[r]]
			if coeff != 0 {
				for col := 0; col <= nCols; col++ {
					obj2[col] -= coeff * tableau[r][col]
				}
			}
		}
	}
	barred := make([]bool, nCols)
	for j := n + nLE; j < nCols; j++ {
		barred[j] = true
	}
	if err := runSimplexBarred(tableau, basis, obj2, nCols, barred); err != nil {
		return nil, err
	}

	x := make([]float64, n)
	for r := 0; r < nRows; r++ {
		if basis[r] < n {
			x[basis[r]] = tableau[r][nCols]
		}
	}
	for i := range x {
		if x[i] < 0 && x[i] > -simplexTolerance {
			x[i] = 0
		}
		if x[i] > 1 && x[i] < 1+simplexTolerance {
			x[i] = 1
		}
	}
	return x, nil
}

// runSimplex runs the primal simplex to optimality against obj (a -cost row
// where obj[nCols] holds the negated current objective value), using
// Bland's rule to select the entering column (smallest index with a
// negative reduced cost) as an anti-cycling guarantee.
func runSimplex(tableau [][]float64, basis []int, obj []float64, nCols int) error {
	return runSimplexBarred(tableau, basis, obj, nCols, nil)
}

func runSimplexBarred(tableau [][]float64, basis []int, obj []float64, nCols int, barred []bool) error {
	nRows := len(tableau)

	for iter := 0; iter < simplexMaxIterations; iter++ {
		enter := -1
		for j := 0; j < nCols; j++ {
			if barred != nil && barred[j] {
				continue
			}
			if obj[j] < -simplexTolerance {
				enter = j
				break
			}
		}
		if enter == -1 {
			return nil // optimal
		}

		leave := -1
		best := math.Inf(1)
		for r := 0; r < nRows; r++ {
			if tableau[r][enter] > simplexTolerance {
				ratio := tableau[r][nCols] / tableau[r][enter]
				if ratio < best-simplexTolerance {
					best = ratio
					leave = r
				} else if ratio < best+simplexTolerance && (leave == -1 || basis[r] < basis[leave]) {
					leave = r
				}
			}
		}
		if leave == -1 {
			return fmt.Errorf("polytope: %w: unbounded direction", domain.ErrLPInfeasible)
		}

		pivot(tableau, obj, leave, enter, nCols)
		basis[leave] = enter
	}

	return fmt.Errorf("polytope: %w: simplex exceeded %d iterations", domain.ErrLPInfeasible, simplexMaxIterations)
}

// pivot performs Gauss-Jordan elimination around tableau[row][col], applying
// the same row operations to the objective row.
func pivot(tableau [][]float64, obj []float64, row, col int, nCols int) {
	pv := tableau[row][col]
	for c := 0; c <= nCols; c++ {
		tableau[row][c] /= pv
	}
	for r := range tableau {
		if r == row {
			continue
		}
		factor := tableau[r][col]
		if factor == 0 {
			continue
		}
		for c := 0; c <= nCols; c++ {
			tableau[r][c] -= factor * tableau[row][c]
		}
	}
	factor := obj[col]
	if factor != 0 {
		for c := 0; c <= nCols; c++ {
			obj[c] -= factor * tableau[row][c]
		}
	}
}
