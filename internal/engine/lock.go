package engine

import (
	"math"

	"hedger/internal/exitrules"
	"hedger/internal/types"
)

// UpdateLock advances the profit ratchet on pos in place and reports whether
// the locked floor has been breached at the current P&L percent.
//
// The ratchet is monotonic: MaxProfitPct and LockLevelPct only ever rise.
// Once MaxProfitPct reaches the profit target the lock engages at the lock
// level; with trailing enabled, every further TrailPct of peak profit lifts
// the floor by the same amount.
func UpdateLock(pos *types.Position, currentPct float64, profile exitrules.Profile, trailEnabled bool) bool {
	if currentPct > pos.MaxProfitPct {
		pos.MaxProfitPct = currentPct
	}
	if !pos.ProfitLocked && pos.MaxProfitPct >= profile.ProfitTargetPct {
		pos.ProfitLocked = true
		pos.LockLevelPct = profile.ProfitLockPct
	}
	if pos.ProfitLocked && trailEnabled && profile.TrailPct > 0 {
		steps := math.Floor((pos.MaxProfitPct - profile.ProfitTargetPct) / profile.TrailPct)
		if steps > 0 {
			floor := profile.ProfitLockPct + steps*profile.TrailPct
			if floor > pos.LockLevelPct {
				pos.LockLevelPct = floor
			}
		}
	}
	return pos.ProfitLocked && currentPct < pos.LockLevelPct
}
