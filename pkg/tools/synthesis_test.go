package tools

import (
	"testing"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/stretchr/testify/assert"
)

func TestSynthesize_SingleASNAndCountry(t *testing.T) {
	addrs := []string{"1.1.1.1", "1.1.1.2"}
	results := map[string]analysis.ToolResult{
		string(NameBGPLookup): {Data: map[string]map[string]any{
			"1.1.1.1": {"asn": "AS1"},
			"1.1.1.2": {"asn": "AS1"},
		}},
		string(NameGeolocation): {Data: map[string]map[string]any{
			"1.1.1.1": {"country": "US"},
			"1.1.1.2": {"country": "US"},
		}},
	}

	enrichment := Synthesize(results, addrs)
	assert.Equal(t, 0.8, enrichment["infrastructure_clustering"])
	assert.Equal(t, 0.8, enrichment["geographic_proximity"])
}

func TestSynthesize_PartialClustering(t *testing.T) {
	addrs := []string{"1.1.1.1", "1.1.1.2", "1.1.1.3"}
	results := map[string]analysis.ToolResult{
		string(NameBGPLookup): {Data: map[string]map[string]any{
			"1.1.1.1": {"asn": "AS1"},
			"1.1.1.2": {"asn": "AS1"},
			"1.1.1.3": {"asn": "AS2"},
		}},
	}

	enrichment := Synthesize(results, addrs)
	assert.Equal(t, 0.5, enrichment["infrastructure_clustering"])
}

func TestSynthesize_FullDispersionIsZero(t *testing.T) {
	addrs := []string{"1.1.1.1", "1.1.1.2"}
	results := map[string]analysis.ToolResult{
		string(NameBGPLookup): {Data: map[string]map[string]any{
			"1.1.1.1": {"asn": "AS1"},
			"1.1.1.2": {"asn": "AS2"},
		}},
	}

	enrichment := Synthesize(results, addrs)
	assert.Equal(t, 0.0, enrichment["infrastructure_clustering"])
}

func TestSynthesize_MissingToolContributesZero(t *testing.T) {
	addrs := []string{"1.1.1.1"}
	results := map[string]analysis.ToolResult{}

	enrichment := Synthesize(results, addrs)
	assert.Equal(t, 0.0, enrichment["infrastructure_clustering"])
	assert.Equal(t, 0.0, enrichment["geographic_proximity"])
	assert.Equal(t, 0.0, enrichment["threat_correlation"])
}

func TestSynthesize_ThreatCorrelationIsArithmeticMean(t *testing.T) {
	addrs := []string{"1.1.1.1", "1.1.1.2"}
	results := map[string]analysis.ToolResult{
		string(NameThreatIntel): {Data: map[string]map[string]any{
			"1.1.1.1": {"threat_score": 0.8},
			"1.1.1.2": {"threat_score": 0.4},
		}},
	}

	enrichment := Synthesize(results, addrs)
	assert.InDelta(t, 0.6, enrichment["threat_correlation"], 0.0001)
}

func TestSynthesize_ErroredAddressExcludedFromMean(t *testing.T) {
	addrs := []string{"1.1.1.1", "1.1.1.2"}
	results := map[string]analysis.ToolResult{
		string(NameThreatIntel): {Data: map[string]map[string]any{
			"1.1.1.1": {"threat_score": 0.6},
			"1.1.1.2": {"error": "lookup failed"},
		}},
	}

	enrichment := Synthesize(results, addrs)
	assert.Equal(t, 0.6, enrichment["threat_correlation"])
}
