package intake

import "fmt"

// RejectKind enumerates terminal, non-retryable admission outcomes. Callers
// receive these synchronously; none of them mutate persistent state.
type RejectKind string

const (
	RejectInvalidParameter RejectKind = "INVALID_PARAMETER"
	RejectDuplicate        RejectKind = "DUPLICATE"
	RejectMarketClosed     RejectKind = "MARKET_CLOSED"
	RejectKillSwitch       RejectKind = "KILL_SWITCH_ACTIVE"
)

type Rejection struct {
	Kind   RejectKind
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("signal rejected (%s): %s", r.Kind, r.Reason)
}

func reject(kind RejectKind, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}
