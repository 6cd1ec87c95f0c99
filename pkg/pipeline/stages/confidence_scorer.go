package stages

import (
	"fmt"
	"sort"
	"strings"

	"context"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/llm"
)

// evidenceWeights are the fixed weights from §4.6: T=0.25, B=0.25, I=0.20,
// G=0.15, P=0.15, with a default of 0.10 for any unrecognized extra
// dimension.
var evidenceWeights = map[string]float64{
	analysis.EvidTemporalCorrelation:      0.25,
	analysis.EvidBehavioralSimilarity:     0.25,
	analysis.EvidInfrastructureClustering: 0.20,
	analysis.EvidGeographicProximity:      0.15,
	analysis.EvidPayloadSimilarity:        0.15,
}

const defaultDimensionWeight = 0.10

// payloadSimilarityPlaceholder is the fixed 0.5 value documented as a known
// gap (§4.6, §9): no payload-similarity source is defined yet.
const payloadSimilarityPlaceholder = 0.5

// NewConfidenceScorer returns a stage that assembles the canonical
// five-dimension evidence vector, computes the weighted-mean confidence,
// optionally lets reasoner override it (clamped to [0,1], falling back to
// the weighted mean on any LLM error), and derives the assessment label and
// reasoning string (§4.6).
func NewConfidenceScorer(reasoner llm.Reasoner) func(context.Context, *analysis.State) (*analysis.State, error) {
	return func(ctx context.Context, st *analysis.State) (*analysis.State, error) {
		evidence := assembleEvidence(st)
		st.EvidenceBreakdown = evidence

		weighted := weightedMean(evidence)
		confidence := weighted

		if reasoner != nil {
			if override, ok := reasoner.ScoreConfidence(ctx, evidence); ok {
				confidence = clamp01(override)
			}
		}
		st.Confidence = confidence

		label := assessmentLabel(confidence)
		st.FinalAssessment = &analysis.FinalAssessment{
			Confidence:        confidence,
			EvidenceBreakdown: evidence,
			AssessmentLabel:   label,
			Reasoning:         reasoningString(evidence, label),
		}
		return st, nil
	}
}

func assembleEvidence(st *analysis.State) map[string]float64 {
	evidence := make(map[string]float64, 5)

	evidence[analysis.EvidTemporalCorrelation] = dimensionScore(st, analysis.DimTemporal)
	evidence[analysis.EvidBehavioralSimilarity] = dimensionScore(st, analysis.DimBehavioral)

	if v, ok := st.EnrichmentData["infrastructure_clustering"]; ok {
		evidence[analysis.EvidInfrastructureClustering] = v
	} else {
		evidence[analysis.EvidInfrastructureClustering] = dimensionScore(st, analysis.DimInfrastructure)
	}

	evidence[analysis.EvidGeographicProximity] = st.EnrichmentData["geographic_proximity"]
	evidence[analysis.EvidPayloadSimilarity] = payloadSimilarityPlaceholder

	return evidence
}

func dimensionScore(st *analysis.State, dim analysis.Dimension) float64 {
	if r, ok := st.CorrelationResults[dim]; ok {
		return r.Score
	}
	return 0.0
}

func weightedMean(evidence map[string]float64) float64 {
	var sumWeighted, sumWeights float64
	for k, v := range evidence {
		w, ok := evidenceWeights[k]
		if !ok {
			w = defaultDimensionWeight
		}
		sumWeighted += w * v
		sumWeights += w
	}
	if sumWeights == 0 {
		return 0.5
	}
	return sumWeighted / sumWeights
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func assessmentLabel(c float64) string {
	switch {
	case c >= 0.8:
		return "highly_coordinated"
	case c >= 0.6:
		return "likely_coordinated"
	case c >= 0.4:
		return "possibly_coordinated"
	case c >= 0.2:
		return "likely_coincidental"
	default:
		return "coincidental"
	}
}

func reasoningString(evidence map[string]float64, label string) string {
	keys := make([]string, 0, len(evidence))
	for k := range evidence {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var strong, weak []string
	for _, k := range keys {
		v := evidence[k]
		switch {
		case v > 0.7:
			strong = append(strong, k)
		case v < 0.3:
			weak = append(weak, k)
		}
	}

	var b strings.Builder
	if len(strong) > 0 {
		fmt.Fprintf(&b, "Strong evidence: %s. ", strings.Join(strong, ", "))
	}
	if len(weak) > 0 {
		fmt.Fprintf(&b, "Weak evidence: %s. ", strings.Join(weak, ", "))
	}
	fmt.Fprintf(&b, "Overall assessment: %s.", label)
	return b.String()
}
