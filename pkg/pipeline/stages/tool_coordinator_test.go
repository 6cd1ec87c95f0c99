package stages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var time0 = time.Now()

func TestToolCoordinator_PopulatesToolResultsAndEnrichment(t *testing.T) {
	registry := tools.Registry{
		tools.NameBGPLookup: func(_ context.Context, addr string) (map[string]any, error) {
			return map[string]any{"asn": "AS1"}, nil
		},
		tools.NameThreatIntel: func(_ context.Context, addr string) (map[string]any, error) {
			return map[string]any{"threat_score": 0.8}, nil
		},
		tools.NameGeolocation: func(_ context.Context, addr string) (map[string]any, error) {
			return map[string]any{"country": "US"}, nil
		},
	}
	coordinator := tools.NewCoordinator(registry, 4, nil, 0, 0)

	st := analysis.NewState("a1", "u1", analysis.AnalysisRequest{
		Sessions: []analysis.AttackSession{
			sessionAt("1.1.1.1", time0),
			sessionAt("1.1.1.2", time0),
		},
	})

	stage := NewToolCoordinator(coordinator)
	result, err := stage(context.Background(), st)
	require.NoError(t, err)

	assert.Len(t, result.ToolResults, 3)
	assert.Contains(t, result.EnrichmentData, "threat_correlation")
	assert.Contains(t, result.EnrichmentData, "infrastructure_clustering")
}

func TestToolCoordinator_IsolatesFailingTool(t *testing.T) {
	registry := tools.Registry{
		tools.NameBGPLookup: func(_ context.Context, addr string) (map[string]any, error) {
			return nil, errors.New("upstream down")
		},
	}
	coordinator := tools.NewCoordinator(registry, 4, nil, 0, 0)

	st := analysis.NewState("a2", "u1", analysis.AnalysisRequest{
		Sessions: []analysis.AttackSession{sessionAt("1.1.1.1", time0)},
	})

	stage := NewToolCoordinator(coordinator)
	result, err := stage(context.Background(), st)
	require.NoError(t, err)
	assert.Contains(t, result.ToolResults, string(tools.NameBGPLookup))
}

func TestDistinctAddresses_Dedupes(t *testing.T) {
	sessions := []analysis.AttackSession{
		sessionAt("1.1.1.1", time0),
		sessionAt("1.1.1.1", time0),
		sessionAt("1.1.1.2", time0),
	}
	assert.ElementsMatch(t, []string{"1.1.1.1", "1.1.1.2"}, distinctAddresses(sessions))
}
