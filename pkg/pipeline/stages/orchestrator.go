// Package stages implements the four Stage Agents of the coordination
// analysis workflow (§4.3-§4.6, plus the Enricher) as pure
// func(ctx, *analysis.State) (*analysis.State, error) stage functions
// dispatched by the Workflow Engine (pkg/pipeline).
package stages

import (
	"context"
	"sort"
	"time"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
)

// Orchestrator computes routing for the analysis: whether deep analysis is
// warranted and which stages the engine should visit (§4.3). It is a pure
// function of the input sessions and never fails.
func Orchestrator(_ context.Context, st *analysis.State) (*analysis.State, error) {
	needsDeep := needsDeepAnalysis(st.Input.Sessions)
	plan := []analysis.StageName{analysis.StagePatternAnalyzer}
	if needsDeep {
		plan = append(plan, analysis.StageToolCoordinator, analysis.StageConfidenceScorer)
	}
	if st.Input.Depth == analysis.DepthDeep {
		plan = append(plan, analysis.StageEnricher)
	}

	st.Routing = analysis.Routing{
		NeedsDeepAnalysis: needsDeep,
		AnalysisPlan:      plan,
	}
	return st, nil
}

// needsDeepAnalysis implements §4.3's four-step deterministic algorithm.
func needsDeepAnalysis(sessions []analysis.AttackSession) bool {
	if len(sessions) < 3 {
		return false
	}

	addrs := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		addrs[s.SourceIP] = struct{}{}
	}
	if len(addrs) == 1 {
		return false
	}

	timestamps := make([]time.Time, 0, len(sessions))
	for _, s := range sessions {
		if !s.Timestamp.IsZero() {
			timestamps = append(timestamps, s.Timestamp)
		}
	}
	if len(timestamps) < 3 {
		return false
	}

	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

	intervals := make([]float64, 0, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		intervals = append(intervals, timestamps[i].Sub(timestamps[i-1]).Seconds())
	}

	short := 0
	for _, iv := range intervals {
		if iv < 300 {
			short++
		}
	}
	return float64(short) > 0.5*float64(len(intervals))
}
