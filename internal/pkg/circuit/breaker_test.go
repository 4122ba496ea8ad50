package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("broker", 3, 2, time.Minute)

	boom := errors.New("timeout")
	for i := 0; i < 3; i++ {
		err := cb.Do(func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateOpen, cb.State())

	// While open and before the recovery timeout, calls fail fast without
	// ever invoking the function.
	called := false
	err := cb.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("marketdata", 1, 2, 10*time.Millisecond)

	require.Error(t, cb.Do(func() error { return errors.New("down") }))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)

	// First post-timeout call is the probe.
	require.NoError(t, cb.Do(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State())

	// success_threshold=2: a second consecutive success closes it.
	require.NoError(t, cb.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("predictor", 1, 2, 10*time.Millisecond)

	require.Error(t, cb.Do(func() error { return errors.New("down") }))
	time.Sleep(15 * time.Millisecond)

	require.Error(t, cb.Do(func() error { return errors.New("still down") }))
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerSingleProbeInHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("broker", 1, 1, 10*time.Millisecond)

	require.Error(t, cb.Do(func() error { return errors.New("down") }))
	time.Sleep(15 * time.Millisecond)

	require.True(t, cb.Allow())  // the probe
	require.False(t, cb.Allow()) // concurrent caller refused
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewCircuitBreaker("broker", 3, 2, time.Minute))
	reg.Register(NewCircuitBreaker("marketdata", 5, 2, time.Minute))

	cb, ok := reg.Get("broker")
	require.True(t, ok)
	assert.Equal(t, "broker", cb.Name())

	_, ok = reg.Get("unknown")
	assert.False(t, ok)

	states := reg.States()
	assert.Len(t, states, 2)
	assert.Equal(t, StateClosed, states["marketdata"])
}
