package llm

import (
	"fmt"
	"strings"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
)

// buildCorrelationPrompt renders a type-specific prompt for one Pattern
// Analyzer sub-analysis (temporal/behavioral/infrastructure).
func buildCorrelationPrompt(dim analysis.Dimension, sessions []analysis.AttackSession, ctx map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are analyzing %d honeypot attack sessions for %s coordination.\n\n", len(sessions), dim)

	switch dim {
	case analysis.DimTemporal:
		b.WriteString("Assess whether the timing of these sessions suggests a coordinated campaign ")
		b.WriteString("rather than independent, unrelated scanning activity.\n")
	case analysis.DimBehavioral:
		b.WriteString("Assess whether the payloads and techniques observed across these sessions ")
		b.WriteString("suggest a shared actor or toolkit rather than unrelated opportunistic probes.\n")
	case analysis.DimInfrastructure:
		b.WriteString("Assess whether the source infrastructure of these sessions (addressing, hosting, ")
		b.WriteString("routing) suggests shared operator control.\n")
	default:
		b.WriteString("Assess the degree of coordination suggested by this evidence.\n")
	}

	b.WriteString("\nSessions:\n")
	for i, s := range sessions {
		proto := "unknown"
		if s.Protocol != nil {
			proto = *s.Protocol
		}
		fmt.Fprintf(&b, "%d. source=%s time=%s protocol=%s payload=%q\n",
			i+1, s.SourceIP, s.Timestamp.Format("2006-01-02T15:04:05Z07:00"), proto, truncate(s.Payload, 200))
	}

	if len(ctx) > 0 {
		b.WriteString("\nAdditional context:\n")
		for k, v := range ctx {
			fmt.Fprintf(&b, "- %s: %v\n", k, v)
		}
	}

	b.WriteString("\nRespond with a JSON object: {\"score\": <0 to 1>, \"reasoning\": \"<short explanation>\"}.\n")
	return b.String()
}

// buildConfidencePrompt renders the score_confidence prompt from the
// evidence vector assembled by the Confidence Scorer.
func buildConfidencePrompt(evidence map[string]float64) string {
	var b strings.Builder
	b.WriteString("Given the following coordination evidence scores (0 = no evidence, 1 = strong evidence):\n")
	for k, v := range evidence {
		fmt.Fprintf(&b, "- %s: %.2f\n", k, v)
	}
	b.WriteString("\nState your overall confidence that these sessions represent a coordinated campaign.\n")
	b.WriteString("Respond with a line containing the word \"confidence\" followed by a colon and a number between 0 and 1.\n")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
