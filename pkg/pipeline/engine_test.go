package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/state"
	"github.com/dshield-collective/coordination-pipeline/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCheckpointer is an in-memory stand-in for *store.Client, mirroring the
// fake used in pkg/state's own tests.
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

func newTestState(id string, depth analysis.Depth) *analysis.State {
	return analysis.NewState(id, "user-1", analysis.AnalysisRequest{
		Sessions: []analysis.AttackSession{{SourceIP: "10.0.0.1", Timestamp: time.Now()}},
		Depth:    depth,
	})
}

func passThroughStage(name analysis.StageName) StageFunc {
	return func(_ context.Context, st *analysis.State) (*analysis.State, error) {
		return st, nil
	}
}

func failingStage(msg string) StageFunc {
	return func(_ context.Context, st *analysis.State) (*analysis.State, error) {
		return st, errors.New(msg)
	}
}

func allStages(overrides map[analysis.StageName]StageFunc) map[analysis.StageName]StageFunc {
	stages := map[analysis.StageName]StageFunc{
		analysis.StageOrchestrator:    passThroughStage(analysis.StageOrchestrator),
		analysis.StagePatternAnalyzer: passThroughStage(analysis.StagePatternAnalyzer),
		analysis.StageToolCoordinator: passThroughStage(analysis.StageToolCoordinator),
		analysis.StageConfidenceScorer: passThroughStage(analysis.StageConfidenceScorer),
		analysis.StageEnricher:        passThroughStage(analysis.StageEnricher),
	}
	for name, fn := range overrides {
		stages[name] = fn
	}
	return stages
}

func TestEngine_ShallowPathSkipsToolCoordinatorAndEnricher(t *testing.T) {
	ctx := context.Background()
	db := newFakeCheckpointer()
	s := state.New(db, time.Hour)

	st := newTestState("a1", analysis.DepthStandard)
	require.NoError(t, s.Save(ctx, st, nil))

	e := New(s, allStages(map[analysis.StageName]StageFunc{
		analysis.StagePatternAnalyzer: func(_ context.Context, st *analysis.State) (*analysis.State, error) {
			st.Routing.NeedsDeepAnalysis = false
			return st, nil
		},
	}))
	require.NoError(t, e.Run(ctx, "a1"))

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusCompleted, got.Status)

	var ran []analysis.StageName
	for _, step := range got.ProcessingSteps {
		ran = append(ran, analysis.StageName(step.Message))
	}
	assert.Equal(t, []analysis.StageName{
		analysis.StageOrchestrator,
		analysis.StagePatternAnalyzer,
		analysis.StageConfidenceScorer,
	}, ran)
}

func TestEngine_DeepPathVisitsToolCoordinatorAndEnricher(t *testing.T) {
	ctx := context.Background()
	db := newFakeCheckpointer()
	s := state.New(db, time.Hour)

	st := newTestState("a2", analysis.DepthDeep)
	require.NoError(t, s.Save(ctx, st, nil))

	e := New(s, allStages(map[analysis.StageName]StageFunc{
		analysis.StagePatternAnalyzer: func(_ context.Context, st *analysis.State) (*analysis.State, error) {
			st.Routing.NeedsDeepAnalysis = true
			return st, nil
		},
	}))
	require.NoError(t, e.Run(ctx, "a2"))

	got, err := s.Get(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusCompleted, got.Status)

	var ran []analysis.StageName
	for _, step := range got.ProcessingSteps {
		ran = append(ran, analysis.StageName(step.Message))
	}
	assert.Equal(t, []analysis.StageName{
		analysis.StageOrchestrator,
		analysis.StagePatternAnalyzer,
		analysis.StageToolCoordinator,
		analysis.StageConfidenceScorer,
		analysis.StageEnricher,
	}, ran)
}

func TestEngine_SingleStageFailureStillReachesTerminalCompleted(t *testing.T) {
	ctx := context.Background()
	db := newFakeCheckpointer()
	s := state.New(db, time.Hour)

	st := newTestState("a3", analysis.DepthStandard)
	require.NoError(t, s.Save(ctx, st, nil))

	e := New(s, allStages(map[analysis.StageName]StageFunc{
		analysis.StagePatternAnalyzer: failingStage("pattern analyzer unavailable"),
	}))
	require.NoError(t, e.Run(ctx, "a3"))

	got, err := s.Get(ctx, "a3")
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusCompleted, got.Status)
	require.NotEmpty(t, got.Errors)
	assert.Equal(t, "pattern analyzer unavailable", got.Errors[0].Message)
}

func TestEngine_AllStagesFailingProducesFailedStatusAndNeutralAssessment(t *testing.T) {
	ctx := context.Background()
	db := newFakeCheckpointer()
	s := state.New(db, time.Hour)

	st := newTestState("a4", analysis.DepthStandard)
	require.NoError(t, s.Save(ctx, st, nil))

	e := New(s, allStages(map[analysis.StageName]StageFunc{
		analysis.StageOrchestrator:    failingStage("orchestrator down"),
		analysis.StagePatternAnalyzer: failingStage("pattern analyzer down"),
		analysis.StageConfidenceScorer: failingStage("confidence scorer down"),
	}))
	require.NoError(t, e.Run(ctx, "a4"))

	got, err := s.Get(ctx, "a4")
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusFailed, got.Status)
	require.NotNil(t, got.FinalAssessment)
	assert.Equal(t, 0.5, got.FinalAssessment.Confidence)
	assert.Equal(t, "possibly_coordinated", got.FinalAssessment.AssessmentLabel)
}

func TestEngine_StageExceedingItsSubDeadlineRecordsStageTimeout(t *testing.T) {
	ctx := context.Background()
	db := newFakeCheckpointer()
	s := state.New(db, time.Hour)

	st := newTestState("a6", analysis.DepthStandard)
	require.NoError(t, s.Save(ctx, st, nil))

	blockingStage := func(ctx context.Context, st *analysis.State) (*analysis.State, error) {
		<-ctx.Done()
		return st, ctx.Err()
	}

	e := New(s, allStages(map[analysis.StageName]StageFunc{
		analysis.StagePatternAnalyzer: blockingStage,
	}), 10*time.Millisecond)
	require.NoError(t, e.Run(ctx, "a6"))

	got, err := s.Get(ctx, "a6")
	require.NoError(t, err)
	require.NotEmpty(t, got.Errors)
	assert.Contains(t, got.Errors[0].Message, "timeout")
}

func TestEngine_ZeroTimeoutLeavesStagesUnbounded(t *testing.T) {
	ctx := context.Background()
	db := newFakeCheckpointer()
	s := state.New(db, time.Hour)

	st := newTestState("a7", analysis.DepthStandard)
	require.NoError(t, s.Save(ctx, st, nil))

	e := New(s, allStages(nil))
	require.NoError(t, e.Run(ctx, "a7"))

	got, err := s.Get(ctx, "a7")
	require.NoError(t, err)
	assert.Empty(t, got.Errors)
}

func TestEngine_SetsStartAndEndTime(t *testing.T) {
	ctx := context.Background()
	db := newFakeCheckpointer()
	s := state.New(db, time.Hour)

	st := newTestState("a5", analysis.DepthStandard)
	require.NoError(t, s.Save(ctx, st, nil))

	e := New(s, allStages(nil))
	require.NoError(t, e.Run(ctx, "a5"))

	got, err := s.Get(ctx, "a5")
	require.NoError(t, err)
	require.NotNil(t, got.StartTime)
	require.NotNil(t, got.EndTime)
	assert.False(t, got.EndTime.Before(*got.StartTime))
}
