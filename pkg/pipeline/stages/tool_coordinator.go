package stages

import (
	"context"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/tools"
)

// NewToolCoordinator returns a stage that fans the configured tool set out
// over the distinct source addresses in the request and synthesizes
// enrichment_data from the results (§4.5). Only reached when
// needs_deep_analysis, per the workflow's routing table.
func NewToolCoordinator(coordinator *tools.Coordinator) func(context.Context, *analysis.State) (*analysis.State, error) {
	return func(ctx context.Context, st *analysis.State) (*analysis.State, error) {
		addrs := distinctAddresses(st.Input.Sessions)
		toolSet := tools.ToolSet(st.Input.Depth)

		results := coordinator.Run(ctx, toolSet, addrs)
		st.ToolResults = results

		enrichment := tools.Synthesize(results, addrs)
		if st.EnrichmentData == nil {
			st.EnrichmentData = make(map[string]float64, len(enrichment))
		}
		for k, v := range enrichment {
			st.EnrichmentData[k] = v
		}
		return st, nil
	}
}

func distinctAddresses(sessions []analysis.AttackSession) []string {
	seen := make(map[string]struct{}, len(sessions))
	addrs := make([]string, 0, len(sessions))
	for _, s := range sessions {
		if _, ok := seen[s.SourceIP]; ok {
			continue
		}
		seen[s.SourceIP] = struct{}{}
		addrs = append(addrs, s.SourceIP)
	}
	return addrs
}
