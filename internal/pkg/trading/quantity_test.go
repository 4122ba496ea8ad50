package trading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantity(t *testing.T) {
	assert.Equal(t, 750, Quantity(10, 75))
	assert.Equal(t, 0, Quantity(0, 75))
	assert.Equal(t, 0, Quantity(10, 0))
}

func TestOnStrikeGrid(t *testing.T) {
	assert.True(t, OnStrikeGrid(25000, 50))
	assert.True(t, OnStrikeGrid(24950, 50))
	assert.False(t, OnStrikeGrid(24975, 50))
	assert.False(t, OnStrikeGrid(-25000, 50))
	assert.False(t, OnStrikeGrid(25000, 0))
}
