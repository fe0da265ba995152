package projection

import (
	"testing"

	"github.com/polyarb/arbengine/internal/domain"
	"github.com/polyarb/arbengine/internal/polytope"
	"github.com/stretchr/testify/assert"
)

func TestKLDivergence_ZeroWhenEqual(t *testing.T) {
	p := []float64{0.3, 0.7, 0.5}
	assert.InDelta(t, 0.0, KLDivergence(p, p), 1e-9)
}

func TestKLDivergence_NonNegative(t *testing.T) {
	p := []float64{0.2, 0.8}
	q := []float64{0.6, 0.4}
	assert.GreaterOrEqual(t, KLDivergence(p, q), 0.0)
}

func TestOptimize_FeasiblePricesConverge(t *testing.T) {
	m := &polytope.Polytope{N: 2}
	prices := []float64{0.4, 0.6}

	res := Optimize(prices, m, 200, 1e-9, nil)

	assert.True(t, res.Converged)
	assert.InDelta(t, 0.0, res.Profit, 1e-3)
}

func TestOptimize_MutexViolationProjectsIntoFeasibleRegion(t *testing.T) {
	idx := func(id string) (int, bool) {
		if id == "a" {
			return 0, true
		}
		if id == "b" {
			return 1, true
		}
		return 0, false
	}
	deps := []domain.Dependency{{SourceMarketID: "a", TargetMarketID: "b", Relation: domain.RelationMutex}}
	m := polytope.Build(2, deps, idx)

	// p_a + p_b = 1.4 > 1: infeasible under MUTEX.
	prices := []float64{0.7, 0.7}
	res := Optimize(prices, m, 500, 1e-9, nil)

	feasibility := m.CheckFeasibility(res.Optimal)
	assert.True(t, feasibility.Feasible)
	assert.Greater(t, res.Profit, 0.0)
}
