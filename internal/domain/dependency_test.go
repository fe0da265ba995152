package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairKey_OrdersLexicographically(t *testing.T) {
	a, b := PairKey("market-b", "market-a")
	assert.Equal(t, "market-a", a)
	assert.Equal(t, "market-b", b)
}

func TestPairKey_LeavesAlreadyOrderedPairUnchanged(t *testing.T) {
	a, b := PairKey("market-a", "market-b")
	assert.Equal(t, "market-a", a)
	assert.Equal(t, "market-b", b)
}

func TestPairKey_IsSymmetric(t *testing.T) {
	a1, b1 := PairKey("x", "y")
	a2, b2 := PairKey("y", "x")
	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
}
