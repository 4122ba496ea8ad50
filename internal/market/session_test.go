package market

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession("Asia/Kolkata", "09:15", "15:30")
	require.NoError(t, err)
	return s
}

func TestSessionIsOpen(t *testing.T) {
	s := newTestSession(t)
	loc := s.Location()

	// Tuesday 2026-03-10.
	assert.True(t, s.IsOpen(time.Date(2026, 3, 10, 10, 0, 0, 0, loc)))
	assert.True(t, s.IsOpen(time.Date(2026, 3, 10, 9, 15, 0, 0, loc)))
	assert.False(t, s.IsOpen(time.Date(2026, 3, 10, 9, 14, 0, 0, loc)))
	assert.False(t, s.IsOpen(time.Date(2026, 3, 10, 15, 30, 0, 0, loc)))
	// Saturday.
	assert.False(t, s.IsOpen(time.Date(2026, 3, 14, 10, 0, 0, 0, loc)))
}

func TestSessionHolidays(t *testing.T) {
	s := newTestSession(t)
	path := filepath.Join(t.TempDir(), "holidays.yaml")
	require.NoError(t, os.WriteFile(path, []byte("holidays:\n  - \"2026-03-11\"\n"), 0o644))
	require.NoError(t, s.LoadHolidays(path))

	loc := s.Location()
	assert.False(t, s.IsTradingDay(time.Date(2026, 3, 11, 10, 0, 0, 0, loc)))
	assert.True(t, s.IsTradingDay(time.Date(2026, 3, 12, 10, 0, 0, 0, loc)))
}

func TestAddTradingDaysSkipsWeekend(t *testing.T) {
	s := newTestSession(t)
	loc := s.Location()

	// Friday + 2 trading days -> Tuesday.
	fri := time.Date(2026, 3, 13, 10, 0, 0, 0, loc)
	got := s.AddTradingDays(fri, 2)
	assert.Equal(t, time.Tuesday, got.Weekday())
	assert.Equal(t, 17, got.Day())

	// n=0 is the identity.
	assert.Equal(t, fri, s.AddTradingDays(fri, 0))
}

func TestSessionAt(t *testing.T) {
	s := newTestSession(t)
	loc := s.Location()
	base := time.Date(2026, 3, 10, 9, 30, 0, 0, loc)
	got, err := s.At(base, "15:15")
	require.NoError(t, err)
	assert.Equal(t, 15, got.Hour())
	assert.Equal(t, 15, got.Minute())
	assert.Equal(t, base.Day(), got.Day())
}
