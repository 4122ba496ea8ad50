package circuit

import (
	"errors"
	"sync"
	"time"

	"hedger/internal/logger"
)

// ErrOpen is returned by Do when the breaker refuses the call.
var ErrOpen = errors.New("circuit breaker open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker guards one named external dependency. It opens after
// failureThreshold consecutive failures, stays open for recoveryTimeout,
// then allows a single probe at a time in half-open until successThreshold
// consecutive successes close it again. Any half-open failure reopens it.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	halfOpenOK       int
	probing          bool
	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration
	lastFailure      time.Time
	name             string
	onStateChange    func(name string, from, to State)
}

func NewCircuitBreaker(name string, failureThreshold, successThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if successThreshold <= 0 {
		successThreshold = 1
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
	}
}

func (cb *CircuitBreaker) Name() string { return cb.name }

func (cb *CircuitBreaker) SetStateChangeHandler(handler func(name string, from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = handler
}

// Allow reports whether a call may proceed. In half-open it admits exactly
// one in-flight probe; concurrent callers are refused until the probe
// resolves via RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.lastFailure) > cb.recoveryTimeout {
			cb.transition(StateHalfOpen)
			cb.halfOpenOK = 0
			cb.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.probing = false
		cb.halfOpenOK++
		if cb.halfOpenOK >= cb.successThreshold {
			cb.transition(StateClosed)
			cb.failures = 0
			cb.halfOpenOK = 0
		}
	case StateClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.failureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.probing = false
		cb.halfOpenOK = 0
		cb.transition(StateOpen)
	}
}

// Do runs fn under the breaker. A refused call returns ErrOpen without
// touching the dependency.
func (cb *CircuitBreaker) Do(fn func() error) error {
	if !cb.Allow() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if cb.onStateChange != nil {
		go cb.onStateChange(cb.name, from, to)
	} else {
		logger.Warnf("CircuitBreaker %s state change: %s -> %s (failures=%d/%d, recovery=%s)",
			cb.name, from, to, cb.failures, cb.failureThreshold, cb.recoveryTimeout)
	}
}
