package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarket_YesAndNoTokenID(t *testing.T) {
	m := Market{TokenIDs: [2]string{"yes-tok", "no-tok"}}
	assert.Equal(t, "yes-tok", m.YesTokenID())
	assert.Equal(t, "no-tok", m.NoTokenID())
}
