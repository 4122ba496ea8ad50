package intake

import (
	"testing"
	"time"

	"hedger/internal/types"

	"github.com/stretchr/testify/assert"
)

func testSignal() types.Signal {
	return types.Signal{
		Type:       types.SignalS1,
		Strike:     25000,
		OptionType: types.OptionPE,
		Lots:       10,
		Timestamp:  time.Date(2026, 3, 10, 10, 17, 42, 0, time.UTC),
	}
}

func TestFingerprintBucketsTimestamp(t *testing.T) {
	window := 5 * time.Minute
	a := testSignal()
	b := testSignal()
	b.Timestamp = a.Timestamp.Add(90 * time.Second) // same 5m bucket

	assert.Equal(t, Fingerprint(a, window), Fingerprint(b, window))

	c := testSignal()
	c.Timestamp = a.Timestamp.Add(10 * time.Minute)
	assert.NotEqual(t, Fingerprint(a, window), Fingerprint(c, window))
}

func TestFingerprintIdempotencyKeyWins(t *testing.T) {
	a := testSignal()
	a.IdempotencyKey = "client-123"
	b := testSignal()
	b.IdempotencyKey = "client-123"
	b.Strike = 24500 // different fields, same explicit key

	window := 5 * time.Minute
	assert.Equal(t, Fingerprint(a, window), Fingerprint(b, window))
}

func TestCheckAndInsertFirstWriterWins(t *testing.T) {
	c := NewDedupCache(5 * time.Minute)
	assert.True(t, c.CheckAndInsert("fp-1"))
	assert.False(t, c.CheckAndInsert("fp-1"))
	assert.True(t, c.CheckAndInsert("fp-2"))
}

func TestCheckAndInsertExpiry(t *testing.T) {
	c := NewDedupCache(5 * time.Minute)
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	c.nowFn = func() time.Time { return now }

	assert.True(t, c.CheckAndInsert("fp-1"))
	now = now.Add(4 * time.Minute)
	assert.False(t, c.CheckAndInsert("fp-1"))
	now = now.Add(2 * time.Minute) // beyond the window since first insert
	assert.True(t, c.CheckAndInsert("fp-1"))
}
