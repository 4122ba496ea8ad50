package engine

import (
	"hedger/internal/types"

	"github.com/shopspring/decimal"
)

// Consensus weighting: the model carries half the vote, the ratchet stage
// and a deep drawdown from peak carry a quarter each.
const (
	consensusModelWeight    = 0.5
	consensusLockWeight     = 0.25
	consensusDrawdownWeight = 0.25

	// drawdownTriggerPct is how far below peak profit (in P&L percent points)
	// counts as a deep giveback.
	drawdownTriggerPct = 30.0

	// consensusMinConfidence is the floor below which a model vote is not a
	// medium-confidence hint at all and contributes nothing to the fusion.
	consensusMinConfidence = 0.5
)

// consensusScore fuses weak individual exit hints into one score in [0, 1].
// None of the inputs alone would justify an exit; together they can. Model
// votes under consensusMinConfidence are excluded, so the rule factors
// alone must clear the threshold without one.
func consensusScore(pred types.ModelPrediction, pos types.Position, currentPct float64) float64 {
	score := decimal.Zero
	if pred.Available && pred.ShouldExit && pred.Confidence >= consensusMinConfidence {
		score = score.Add(decimal.NewFromFloat(consensusModelWeight).
			Mul(decimal.NewFromFloat(pred.Confidence)))
	}
	if pos.ProfitLocked {
		score = score.Add(decimal.NewFromFloat(consensusLockWeight))
	}
	if pos.MaxProfitPct-currentPct >= drawdownTriggerPct {
		score = score.Add(decimal.NewFromFloat(consensusDrawdownWeight))
	}
	out, _ := score.Float64()
	return out
}
