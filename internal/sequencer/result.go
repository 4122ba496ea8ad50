package sequencer

import "fmt"

// FailKind classifies why an entry or exit sequence did not complete.
type FailKind string

const (
	// FailHedge: the hedge leg never filled, so the main leg was never sent.
	// Flat, no exposure.
	FailHedge FailKind = "HEDGE_FAILED"
	// FailPartial: the hedge filled but the main leg was rejected. The hedge
	// was sold back (or the reversal itself failed, see the audit trail).
	FailPartial FailKind = "PARTIAL_FAILURE"
	// FailBrokerUnavailable: the broker circuit breaker refused the call.
	FailBrokerUnavailable FailKind = "BROKER_UNAVAILABLE"
	// FailConflict: another writer transitioned the position first.
	FailConflict FailKind = "STATE_CONFLICT"
	// FailExitLeg: a close order did not confirm; the position stays CLOSING
	// and the next monitoring cycle resumes from the recorded order id.
	FailExitLeg FailKind = "EXIT_LEG_FAILED"
)

type EntryError struct {
	Kind       FailKind
	PositionID string
	Err        error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %s failed (%s): %v", e.PositionID, e.Kind, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

type ExitError struct {
	Kind       FailKind
	PositionID string
	Err        error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit %s failed (%s): %v", e.PositionID, e.Kind, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }
