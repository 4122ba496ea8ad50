package types

type DecisionKind string

const (
	DecisionProgressiveSL  DecisionKind = "PROGRESSIVE_SL"
	DecisionModelPredicted DecisionKind = "MODEL_PREDICTED"
	DecisionConsensus      DecisionKind = "CONSENSUS"
	DecisionTimeExit       DecisionKind = "TIME_EXIT"
	DecisionIndexBreach    DecisionKind = "INDEX_BREACH"
	DecisionHold           DecisionKind = "HOLD"
)

// ExitDecision is the transient outcome of one evaluation cycle. It is not
// persisted beyond the audit trail.
type ExitDecision struct {
	ShouldExit   bool         `json:"should_exit"`
	Kind         DecisionKind `json:"decision_kind"`
	Confidence   float64      `json:"confidence"`
	Reason       string       `json:"reason"`
	PartialExit  float64      `json:"partial_exit_fraction,omitempty"`
	NetPnL       float64      `json:"net_pnl"`
	NetPnLPct    float64      `json:"net_pnl_pct"`
	LockLevelPct float64      `json:"lock_level_pct"`
}

// ModelPrediction is the external exit adviser's output. Zero value means
// "no prediction available"; the engine then runs rule-only.
type ModelPrediction struct {
	Available  bool    `json:"available"`
	ShouldExit bool    `json:"should_exit"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}
