package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackNotifier_NilServiceIsNoop(t *testing.T) {
	n := NewSlackNotifier(nil)
	assert.Empty(t, n.NotifyStarted(t.Context(), "a1", 2, analysis.DepthStandard))
	assert.NotPanics(t, func() {
		n.NotifyTerminal(t.Context(), "a1", analysis.Result{Status: analysis.StatusCompleted}, "")
	})
}

func TestSlackNotifier_NilReceiverIsNoop(t *testing.T) {
	var n *SlackNotifier
	assert.Empty(t, n.NotifyStarted(t.Context(), "a1", 2, analysis.DepthStandard))
	assert.NotPanics(t, func() {
		n.NotifyTerminal(t.Context(), "a1", analysis.Result{Status: analysis.StatusFailed}, "")
	})
}

func TestSlackNotifier_StartedPostsAndTerminalThreadsOnSameFingerprint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "conversations.history"):
			_, _ = w.Write([]byte(`{"ok":true,"messages":[{"text":"analysis-123","ts":"1700000000.000001"}],"has_more":false}`))
		case strings.Contains(r.URL.Path, "chat.postMessage"):
			body, _ := json.Marshal(map[string]any{"ok": true, "ts": "1700000000.000002"})
			_, _ = w.Write(body)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := slack.NewClientWithAPIURL("xoxb-test", "C1", server.URL+"/")
	svc := slack.NewServiceWithClient(client, "https://dashboard.example.com")
	n := NewSlackNotifier(svc)

	threadTS := n.NotifyStarted(t.Context(), "analysis-123", 6, analysis.DepthDeep)
	require.Equal(t, "1700000000.000001", threadTS)

	confidence := 0.82
	assert.NotPanics(t, func() {
		n.NotifyTerminal(t.Context(), "analysis-123", analysis.Result{
			Status:          analysis.StatusCompleted,
			Confidence:      &confidence,
			AssessmentLabel: "likely_coordinated",
			Reasoning:       "strong temporal correlation",
		}, threadTS)
	})
}
