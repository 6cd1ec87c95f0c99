package llm

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// correlationJSON is the schema analyze_coordination expects between the
// first '{' and last '}' of a generation (§4.8).
type correlationJSON struct {
	Score     *float64 `json:"score"`
	Reasoning string   `json:"reasoning"`
}

// extractJSONObject returns the substring between the first '{' and the
// last '}' in text, or ok=false if no such span exists.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// parseCorrelation attempts the schema-valid JSON path first; on any
// failure it falls back to a coarse keyword-cue estimate, clearly tagged in
// the returned rationale (§4.8: "this fallback must be clearly tagged").
func parseCorrelation(text string) (score float64, rationale string, usedFallback bool) {
	if obj, ok := extractJSONObject(text); ok {
		var parsed correlationJSON
		if err := json.Unmarshal([]byte(obj), &parsed); err == nil && parsed.Score != nil {
			s := *parsed.Score
			if s < 0 {
				s = 0
			}
			if s > 1 {
				s = 1
			}
			return s, parsed.Reasoning, false
		}
	}
	return keywordCueScore(text)
}

var keywordCues = []struct {
	cue   string
	score float64
}{
	{"highly", 0.9},
	{"likely", 0.7},
	{"possibly", 0.5},
	{"coincidental", 0.1},
}

// keywordCueScore derives a coarse score from the presence of known cue
// words when structured parsing fails (§4.8).
func keywordCueScore(text string) (score float64, rationale string, usedFallback bool) {
	lower := strings.ToLower(text)
	for _, c := range keywordCues {
		if strings.Contains(lower, c.cue) {
			return c.score, "fallback: keyword cue \"" + c.cue + "\" detected in unstructured response", true
		}
	}
	return 0.5, "fallback: no structured score and no recognized keyword cue; defaulted to neutral", true
}

var confidenceLineRe = regexp.MustCompile(`(?i)confidence[^:]*:\s*([01](?:\.\d+)?|\.\d+)`)

// parseConfidenceLine extracts a float from the first line containing
// "confidence" followed by a colon, clamped to [0,1] (§4.8 score_confidence).
func parseConfidenceLine(text string) (float64, bool) {
	m := confidenceLineRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v, true
}
