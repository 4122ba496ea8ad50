package engine

import (
	"testing"

	"hedger/internal/exitrules"
	"hedger/internal/types"

	"github.com/stretchr/testify/assert"
)

var testProfile = exitrules.Profile{
	ProfitTargetPct: 10,
	ProfitLockPct:   5,
	TrailPct:        5,
	ModelThreshold:  0.7,
	ExitDayOffset:   2,
}

func TestUpdateLockEngagesAtTarget(t *testing.T) {
	pos := types.Position{}

	assert.False(t, UpdateLock(&pos, 4, testProfile, true))
	assert.False(t, pos.ProfitLocked)

	assert.False(t, UpdateLock(&pos, 10, testProfile, true))
	assert.True(t, pos.ProfitLocked)
	assert.Equal(t, 5.0, pos.LockLevelPct)
	assert.Equal(t, 10.0, pos.MaxProfitPct)
}

func TestUpdateLockBreachesFloor(t *testing.T) {
	pos := types.Position{}
	UpdateLock(&pos, 12, testProfile, true)

	// Still above the floor.
	assert.False(t, UpdateLock(&pos, 6, testProfile, true))
	// Fell through it.
	assert.True(t, UpdateLock(&pos, 4, testProfile, true))
	// Peak never decays.
	assert.Equal(t, 12.0, pos.MaxProfitPct)
}

func TestUpdateLockTrailsWithPeak(t *testing.T) {
	pos := types.Position{}
	UpdateLock(&pos, 10, testProfile, true)
	assert.Equal(t, 5.0, pos.LockLevelPct)

	UpdateLock(&pos, 21, testProfile, true)
	// Two full trail steps above target: floor 5 + 2*5.
	assert.Equal(t, 15.0, pos.LockLevelPct)

	// The floor never retreats.
	assert.True(t, UpdateLock(&pos, 14, testProfile, true))
	assert.Equal(t, 15.0, pos.LockLevelPct)
}

func TestUpdateLockTrailDisabled(t *testing.T) {
	pos := types.Position{}
	UpdateLock(&pos, 30, testProfile, false)
	assert.Equal(t, 5.0, pos.LockLevelPct)
}

func TestNetPnLPercentOfEntryCredit(t *testing.T) {
	p := types.Position{
		MainLeg:  types.OrderLeg{FillPrice: 100, Quantity: 750},
		HedgeLeg: types.OrderLeg{FillPrice: 30, Quantity: 750},
	}
	// Main decayed 100 -> 70, hedge unchanged.
	pnl, pct := NetPnL(p, 70, 30)
	assert.InDelta(t, 22500.0, pnl, 1e-9)
	assert.InDelta(t, 30.0, pct, 1e-9)

	// Hedge gains offset main losses.
	pnl, pct = NetPnL(p, 120, 45)
	assert.InDelta(t, -3750.0, pnl, 1e-9)
	assert.InDelta(t, -5.0, pct, 1e-9)
}
