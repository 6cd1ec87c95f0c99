package notify

import (
	"context"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/slack"
)

// SlackNotifier posts operational start/terminal notifications for an
// analysis, reusing the teacher's fingerprint-based message-update idiom
// (pkg/slack) so a terminal notification threads onto its start
// notification instead of posting a second top-level message. The analysis
// id itself serves as the fingerprint, since this domain has no
// Slack-originated alert to thread from.
type SlackNotifier struct {
	svc *slack.Service
}

// NewSlackNotifier wraps svc. svc may be nil (Slack disabled); all methods
// are then no-ops.
func NewSlackNotifier(svc *slack.Service) *SlackNotifier {
	return &SlackNotifier{svc: svc}
}

// NotifyStarted posts a "processing started" message naming the batch size
// and analysis depth, and returns the resolved thread timestamp for reuse by
// NotifyTerminal.
func (n *SlackNotifier) NotifyStarted(ctx context.Context, analysisID string, sourceCount int, depth analysis.Depth) string {
	if n == nil || n.svc == nil {
		return ""
	}
	return n.svc.NotifyAnalysisStarted(ctx, slack.AnalysisStartedInput{
		AnalysisID:              analysisID,
		SourceCount:             sourceCount,
		Depth:                   string(depth),
		SlackMessageFingerprint: analysisID,
	})
}

// NotifyTerminal posts (or threads, given threadTS) a terminal status
// message for the completed or failed analysis, carrying the coordination
// confidence, assessment label, and key factors the Confidence Scorer stage
// produced (§4.6).
func (n *SlackNotifier) NotifyTerminal(ctx context.Context, analysisID string, result analysis.Result, threadTS string) {
	if n == nil || n.svc == nil {
		return
	}
	n.svc.NotifyAnalysisCompleted(ctx, slack.AnalysisCompletedInput{
		AnalysisID:              analysisID,
		Status:                  string(result.Status),
		Confidence:              result.Confidence,
		AssessmentLabel:         result.AssessmentLabel,
		KeyFactors:              result.KeyFactors,
		FinalAnalysis:           result.Reasoning,
		ErrorMessage:            result.Error,
		SlackMessageFingerprint: analysisID,
		ThreadTS:                threadTS,
	})
}
