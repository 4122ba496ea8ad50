package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validCandle(now time.Time) Candle {
	open := now.Truncate(time.Hour).Add(-time.Hour)
	return Candle{
		Open:      24980,
		High:      25010,
		Low:       24920,
		Close:     24940,
		Timestamp: open,
		Source:    "breeze",
	}
}

func newTestValidator(now time.Time) *CandleValidator {
	v := NewCandleValidator(2*time.Hour, 5000, 60000, nil)
	v.nowFn = func() time.Time { return now }
	return v
}

func TestCandleValidatorAccepts(t *testing.T) {
	now := time.Date(2026, 3, 10, 11, 0, 5, 0, time.UTC)
	v := newTestValidator(now)
	assert.NoError(t, v.Validate(validCandle(now)))
}

func TestCandleValidatorRejects(t *testing.T) {
	now := time.Date(2026, 3, 10, 11, 0, 5, 0, time.UTC)

	t.Run("mock flagged", func(t *testing.T) {
		v := newTestValidator(now)
		c := validCandle(now)
		c.IsMock = true
		assert.Error(t, v.Validate(c))
	})

	t.Run("untrusted source", func(t *testing.T) {
		v := newTestValidator(now)
		c := validCandle(now)
		c.Source = "backtest-fixture"
		assert.Error(t, v.Validate(c))
	})

	t.Run("stale candle", func(t *testing.T) {
		v := newTestValidator(now)
		c := validCandle(now)
		c.Timestamp = now.Add(-4 * time.Hour).Truncate(time.Hour)
		assert.Error(t, v.Validate(c))
	})

	t.Run("forming candle", func(t *testing.T) {
		v := newTestValidator(now)
		c := validCandle(now)
		c.Timestamp = now.Truncate(time.Hour)
		assert.Error(t, v.Validate(c))
	})

	t.Run("missing OHLC", func(t *testing.T) {
		v := newTestValidator(now)
		c := validCandle(now)
		c.Low = 0
		assert.Error(t, v.Validate(c))
	})

	t.Run("close outside bounds", func(t *testing.T) {
		v := newTestValidator(now)
		c := validCandle(now)
		c.Close = 123456
		assert.Error(t, v.Validate(c))
	})

	t.Run("outside session", func(t *testing.T) {
		v := NewCandleValidator(2*time.Hour, 5000, 60000, func(time.Time) bool { return false })
		v.nowFn = func() time.Time { return now }
		assert.Error(t, v.Validate(validCandle(now)))
	})
}

func TestCandleValidatorAllowSource(t *testing.T) {
	now := time.Date(2026, 3, 10, 11, 0, 5, 0, time.UTC)
	v := newTestValidator(now)
	c := validCandle(now)
	c.Source = "paper-feed"
	assert.Error(t, v.Validate(c))

	v.AllowSource("paper-feed")
	assert.NoError(t, v.Validate(c))
}
