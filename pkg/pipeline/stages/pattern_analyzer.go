package stages

import (
	"context"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/llm"
)

// dimensions is the fixed set of independent sub-analyses the Pattern
// Analyzer produces (§4.4).
var dimensions = []analysis.Dimension{
	analysis.DimTemporal,
	analysis.DimBehavioral,
	analysis.DimInfrastructure,
}

// NewPatternAnalyzer returns a stage that delegates each of the three
// sub-analyses to reasoner, falling back to a neutral score when the LLM is
// unavailable, errors, or times out (§4.4). The stage itself never raises:
// every failure is absorbed into a fallback CorrelationResult.
func NewPatternAnalyzer(reasoner llm.Reasoner) func(context.Context, *analysis.State) (*analysis.State, error) {
	return func(ctx context.Context, st *analysis.State) (*analysis.State, error) {
		if st.CorrelationResults == nil {
			st.CorrelationResults = make(map[analysis.Dimension]analysis.CorrelationResult, len(dimensions))
		}

		for _, dim := range dimensions {
			if reasoner == nil {
				st.CorrelationResults[dim] = analysis.CorrelationResult{
					Score:     0.5,
					Rationale: "fallback: no LLM reasoner configured",
					Method:    analysis.MethodFallback,
				}
				continue
			}
			st.CorrelationResults[dim] = reasoner.AnalyzeCoordination(ctx, dim, st.Input.Sessions, nil)
		}
		return st, nil
	}
}
