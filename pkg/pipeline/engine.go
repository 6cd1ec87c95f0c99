// Package pipeline implements the Workflow Engine (§4.2): a typed DAG
// executor over analysis.State, with stages as dispatch-table entries and
// edges as routing predicates over the current state.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/state"
)

// StageFunc is the signature every stage implements (§4.2, §9 Design Note:
// "dispatch table instead of virtual methods"). The engine owns the state
// between calls and hands the running stage the sole reference for its
// duration.
type StageFunc func(ctx context.Context, st *analysis.State) (*analysis.State, error)

// terminal is a sentinel StageName meaning "no further stage": it never
// appears as a dispatch-table key.
const terminal analysis.StageName = ""

// stageWeight is each stage's share of the overall analysis deadline,
// proportional to its typical cost (§5 "divided across stages proportional
// to their typical cost"): the Tool Coordinator's concurrent HTTP fan-out
// and the Pattern Analyzer's LLM calls dominate; routing and the enrichment
// marker are cheap.
var stageWeight = map[analysis.StageName]float64{
	analysis.StageOrchestrator:     0.05,
	analysis.StagePatternAnalyzer:  0.30,
	analysis.StageToolCoordinator:  0.40,
	analysis.StageConfidenceScorer: 0.20,
	analysis.StageEnricher:         0.05,
}

// Engine is the typed dispatch table plus routing-predicate table described
// in §4.2/§9.
type Engine struct {
	stages  map[analysis.StageName]StageFunc
	store   *state.Store
	logger  *slog.Logger
	timeout time.Duration
}

// New builds an Engine with the given stage implementations, checkpointing
// to store after every stage. timeout is the overall per-analysis deadline
// (config.Pipeline.AnalysisTimeoutSeconds); it is divided across stages by
// stageWeight to produce each stage's own sub-deadline. Omitting timeout (or
// passing zero) disables per-stage sub-deadlines, leaving only whatever
// deadline the caller's ctx already carries.
func New(store *state.Store, stages map[analysis.StageName]StageFunc, timeout ...time.Duration) *Engine {
	var budget time.Duration
	if len(timeout) > 0 {
		budget = timeout[0]
	}
	return &Engine{
		stages:  stages,
		store:   store,
		logger:  slog.With("component", "workflow_engine"),
		timeout: budget,
	}
}

// stageTimeout returns this stage's slice of the overall budget, or zero if
// no budget was configured.
func (e *Engine) stageTimeout(name analysis.StageName) time.Duration {
	if e.timeout <= 0 {
		return 0
	}
	w, ok := stageWeight[name]
	if !ok {
		return 0
	}
	return time.Duration(float64(e.timeout) * w)
}

// route computes the next stage name from the DAG table in §4.2, given the
// stage that just ran and the state it produced.
func route(from analysis.StageName, st *analysis.State) analysis.StageName {
	switch from {
	case analysis.StageOrchestrator:
		return analysis.StagePatternAnalyzer
	case analysis.StagePatternAnalyzer:
		if st.Routing.NeedsDeepAnalysis {
			return analysis.StageToolCoordinator
		}
		return analysis.StageConfidenceScorer
	case analysis.StageToolCoordinator:
		return analysis.StageConfidenceScorer
	case analysis.StageConfidenceScorer:
		if st.Input.Depth == analysis.DepthDeep {
			return analysis.StageEnricher
		}
		return terminal
	case analysis.StageEnricher:
		return terminal
	default:
		return terminal
	}
}

// Run drives st through the DAG from Orchestrator to the terminal sink,
// checkpointing after every stage (§4.2 "Checkpointing"). On a stage error,
// the error is recorded on st (by the stage itself, per the §4.3-§4.6
// fallback contracts) and the engine proceeds to the next node regardless
// — the pipeline is crash-tolerant across stages but not within one.
func (e *Engine) Run(ctx context.Context, analysisID string) error {
	now := time.Now()
	if err := e.store.Update(ctx, analysisID, func(st *analysis.State) {
		st.StartTime = &now
		st.Status = analysis.StatusProcessing
	}); err != nil {
		return err
	}

	current := analysis.StageOrchestrator
	stagesRun, stagesFailed := 0, 0
	for current != terminal {
		fn, ok := e.stages[current]
		if !ok {
			e.logger.Error("no stage registered, halting workflow", "stage", current)
			break
		}

		stageCtx := ctx
		var stageCancel context.CancelFunc
		if d := e.stageTimeout(current); d > 0 {
			stageCtx, stageCancel = context.WithTimeout(ctx, d)
		}

		next := terminal
		stagesRun++
		stageName := current
		updateErr := e.store.Update(ctx, analysisID, func(st *analysis.State) {
			result, err := fn(stageCtx, st)
			if err != nil {
				if stageCtx.Err() == context.DeadlineExceeded {
					err = analysis.NewStageTimeout(stageName, err)
				}
				st.RecordError(err.Error(), time.Now())
				stagesFailed++
				result = st
			}
			*st = *result
			st.RecordStep(current, time.Now())
			next = route(current, st)
		})
		if stageCancel != nil {
			stageCancel()
		}
		if updateErr != nil {
			return updateErr
		}
		current = next
	}

	end := time.Now()
	allFailed := stagesRun > 0 && stagesFailed == stagesRun
	return e.store.Update(ctx, analysisID, func(st *analysis.State) {
		st.EndTime = &end
		switch {
		case allFailed:
			st.Status = analysis.StatusFailed
		case st.Status != analysis.StatusFailed:
			st.Status = analysis.StatusCompleted
		}
		if st.FinalAssessment == nil {
			st.FinalAssessment = &analysis.FinalAssessment{
				Confidence:        0.5,
				EvidenceBreakdown: map[string]float64{},
				AssessmentLabel:   "possibly_coordinated",
				Reasoning:         "no stage produced a final assessment",
			}
		}
	})
}
