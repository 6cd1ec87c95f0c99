package tools

import (
	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
)

// Synthesize derives enrichment_data from the collected tool results
// (§4.5). Missing tool outputs contribute 0.0 to their synthesis slot; the
// result is otherwise a deterministic function of the tool outputs.
func Synthesize(results map[string]analysis.ToolResult, addrs []string) map[string]float64 {
	enrichment := map[string]float64{
		"infrastructure_clustering": infrastructureClustering(results, addrs),
		"geographic_proximity":      geographicProximity(results, addrs),
		"threat_correlation":        threatCorrelation(results, addrs),
	}
	return enrichment
}

func infrastructureClustering(results map[string]analysis.ToolResult, addrs []string) float64 {
	asns := distinctValues(results, string(NameBGPLookup), addrs, "asn")
	return clusteringScore(len(asns), len(addrs))
}

func geographicProximity(results map[string]analysis.ToolResult, addrs []string) float64 {
	countries := distinctValues(results, string(NameGeolocation), addrs, "country")
	return clusteringScore(len(countries), len(addrs))
}

// clusteringScore: 0.8 if a single cluster, 0.5 if cardinality < address
// count (partial clustering), 0.0 if no signal or full dispersion.
func clusteringScore(cardinality, total int) float64 {
	if cardinality == 0 || total == 0 {
		return 0.0
	}
	if cardinality == 1 {
		return 0.8
	}
	if cardinality < total {
		return 0.5
	}
	return 0.0
}

func threatCorrelation(results map[string]analysis.ToolResult, addrs []string) float64 {
	tr, ok := results[string(NameThreatIntel)]
	if !ok || tr.Data == nil {
		return 0.0
	}

	sum := 0.0
	count := 0
	for _, addr := range addrs {
		fields, ok := tr.Data[addr]
		if !ok {
			continue
		}
		score, ok := asFloat(fields["threat_score"])
		if !ok {
			continue
		}
		sum += score
		count++
	}
	if count == 0 {
		return 0.0
	}
	return sum / float64(count)
}

// distinctValues collects the distinct string values of field across every
// address's successful entry for the named tool.
func distinctValues(results map[string]analysis.ToolResult, toolName string, addrs []string, field string) map[string]struct{} {
	set := make(map[string]struct{})
	tr, ok := results[toolName]
	if !ok || tr.Data == nil {
		return set
	}
	for _, addr := range addrs {
		fields, ok := tr.Data[addr]
		if !ok {
			continue
		}
		v, ok := fields[field]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
