package audit

import (
	"context"
	"path/filepath"
	"testing"

	"hedger/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndListDecisions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordDecision(ctx, "pos-1", types.ExitDecision{
		ShouldExit: true, Kind: types.DecisionProgressiveSL,
		Confidence: 1.0, Reason: "pnl 4.2% below lock 5.0%",
		NetPnLPct: 4.2, LockLevelPct: 5.0,
	}))
	require.NoError(t, s.RecordDecision(ctx, "pos-1", types.ExitDecision{
		Kind: types.DecisionHold, Reason: "no rule matched",
	}))
	require.NoError(t, s.RecordDecision(ctx, "pos-2", types.ExitDecision{
		Kind: types.DecisionHold,
	}))

	recs, err := s.ListDecisions(ctx, "pos-1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	// Newest first.
	assert.Equal(t, types.DecisionHold, recs[0].Kind)
	assert.Equal(t, types.DecisionProgressiveSL, recs[1].Kind)
	assert.True(t, recs[1].ShouldExit)
	assert.Nil(t, recs[1].Profitable)
}

func TestMarkOutcome(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordDecision(ctx, "pos-1", types.ExitDecision{
		ShouldExit: true, Kind: types.DecisionModelPredicted, Confidence: 0.8,
	}))
	require.NoError(t, s.MarkOutcome(ctx, "pos-1", true))

	recs, err := s.ListDecisions(ctx, "pos-1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].Profitable)
	assert.True(t, *recs[0].Profitable)
}

func TestRecordAndListFailures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordFailure(ctx, FailureRecord{
		PositionID: "pos-1",
		Stage:      "ENTRY_MAIN",
		Reason:     "main leg rejected after hedge fill",
		Action:     "HEDGE_REVERSED",
	}))

	recs, err := s.ListFailures(ctx, "pos-1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ENTRY_MAIN", recs[0].Stage)
	assert.Equal(t, "HEDGE_REVERSED", recs[0].Action)
}
