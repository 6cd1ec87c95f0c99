package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCheckpointer is an in-memory stand-in for *store.Client, grounded on
// the teacher's habit of substituting lightweight fakes for external
// collaborators in unit tests rather than standing up real infrastructure.
type fakeCheckpointer struct {
	mu   sync.Mutex
	rows map[string]store.AnalysisRow
}

func newFakeCheckpointer() *fakeCheckpointer {
	return &fakeCheckpointer{rows: make(map[string]store.AnalysisRow)}
}

func (f *fakeCheckpointer) UpsertAnalysis(_ context.Context, row store.AnalysisRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[row.ID] = row
	return nil
}

func (f *fakeCheckpointer) GetAnalysis(_ context.Context, id string) (*store.AnalysisRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &row, nil
}

func newTestState(id string) *analysis.State {
	return analysis.NewState(id, "user-1", analysis.AnalysisRequest{
		Sessions: []analysis.AttackSession{{SourceIP: "10.0.0.1", Timestamp: time.Now()}},
		Depth:    analysis.DepthStandard,
	})
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	db := newFakeCheckpointer()
	s := New(db, time.Hour)

	st := newTestState("a1")
	require.NoError(t, s.Save(ctx, st, nil))

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AnalysisID)
	assert.Equal(t, analysis.StatusQueued, got.Status)
}

func TestStore_GetFallsBackToCheckpointWhenNotInMemory(t *testing.T) {
	ctx := context.Background()
	db := newFakeCheckpointer()
	s := New(db, time.Hour)

	st := newTestState("a2")
	require.NoError(t, s.Save(ctx, st, nil))

	// simulate process restart: drop the in-memory entry
	s.mu.Lock()
	delete(s.entries, "a2")
	s.mu.Unlock()

	got, err := s.Get(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AnalysisID)
}

func TestStore_GetUnknownReturnsNotFound(t *testing.T) {
	s := New(newFakeCheckpointer(), time.Hour)
	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, analysis.ErrNotFound)
}

func TestStore_UpdatePublishesAtomically(t *testing.T) {
	ctx := context.Background()
	db := newFakeCheckpointer()
	s := New(db, time.Hour)

	st := newTestState("a3")
	require.NoError(t, s.Save(ctx, st, nil))

	err := s.Update(ctx, "a3", func(st *analysis.State) {
		st.Status = analysis.StatusProcessing
		st.RecordStep(analysis.StageOrchestrator, time.Now())
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, "a3")
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusProcessing, got.Status)
	assert.Len(t, got.ProcessingSteps, 1)
}

func TestStore_CancelInvokesHook(t *testing.T) {
	ctx := context.Background()
	db := newFakeCheckpointer()
	s := New(db, time.Hour)

	var cancelled bool
	st := newTestState("a4")
	require.NoError(t, s.Save(ctx, st, func() { cancelled = true }))

	assert.True(t, s.Cancel("a4"))
	assert.True(t, cancelled)
	assert.False(t, s.Cancel("unknown"))
}

func TestStore_CleanupRemovesExpiredErrorStatesAt2xTTL(t *testing.T) {
	ctx := context.Background()
	db := newFakeCheckpointer()
	s := New(db, 10*time.Millisecond)

	st := newTestState("a5")
	require.NoError(t, s.Save(ctx, st, nil))
	require.NoError(t, s.Update(ctx, "a5", func(st *analysis.State) {
		st.Status = analysis.StatusFailed
		end := time.Now()
		st.EndTime = &end
		st.RecordError("boom", end)
	}))

	// within the base TTL but before 2x TTL: should not be removed yet
	removed := s.Cleanup(time.Now().Add(15 * time.Millisecond))
	assert.Equal(t, 0, removed)

	// past 2x TTL
	removed = s.Cleanup(time.Now().Add(25 * time.Millisecond))
	assert.Equal(t, 1, removed)
}

func TestStore_ActiveWorkflows(t *testing.T) {
	ctx := context.Background()
	db := newFakeCheckpointer()
	s := New(db, time.Hour)

	require.NoError(t, s.Save(ctx, newTestState("a6"), nil))
	require.NoError(t, s.Save(ctx, newTestState("a7"), nil))

	ids := s.ActiveWorkflows()
	assert.ElementsMatch(t, []string{"a6", "a7"}, ids)
}
