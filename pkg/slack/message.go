package slack

import (
	"fmt"
	"strings"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

var statusEmoji = map[string]string{
	"completed": ":white_check_mark:",
	"failed":    ":x:",
}

var statusLabel = map[string]string{
	"completed": "Coordination Analysis Complete",
	"failed":    "Coordination Analysis Failed",
}

func analysisURL(analysisID, dashboardURL string) string {
	return fmt.Sprintf("%s/analyses/%s", dashboardURL, analysisID)
}

// BuildStartedMessage creates Block Kit blocks for a "processing started"
// notification, naming the batch size and analysis depth so an on-call
// reader knows roughly how long the run will take (§4.5: deep runs more
// tools and takes longer than standard).
func BuildStartedMessage(input AnalysisStartedInput, dashboardURL string) []goslack.Block {
	url := analysisURL(input.AnalysisID, dashboardURL)
	text := fmt.Sprintf(
		":arrows_counterclockwise: *Processing started* — %d session(s), %s depth. This may take a few minutes.\n<%s|View in Dashboard>",
		input.SourceCount, input.Depth, url,
	)

	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
}

// BuildTerminalMessage creates Block Kit blocks for a terminal analysis
// notification: confidence and assessment label on success, the persisted
// error on failure (§4.6, §7).
func BuildTerminalMessage(input AnalysisCompletedInput, dashboardURL string) []goslack.Block {
	emoji := statusEmoji[input.Status]
	if emoji == "" {
		emoji = ":question:"
	}
	label := statusLabel[input.Status]
	if label == "" {
		label = "Coordination Analysis " + input.Status
	}

	var blocks []goslack.Block
	headerText := fmt.Sprintf("%s *%s*", emoji, label)

	if input.Status == "completed" {
		if input.Confidence != nil {
			headerText += fmt.Sprintf("\n*Confidence:* %.0f%%", *input.Confidence*100)
		}
		if input.AssessmentLabel != "" {
			headerText += fmt.Sprintf("  (%s)", input.AssessmentLabel)
		}
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
			nil, nil,
		))

		content := input.ExecutiveSummary
		if content == "" {
			content = input.FinalAnalysis
		}
		if len(input.KeyFactors) > 0 {
			content = strings.TrimSpace(content + "\n\n*Key factors:* " + strings.Join(input.KeyFactors, ", "))
		}
		if content != "" {
			blocks = append(blocks, goslack.NewSectionBlock(
				goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(content), false, false),
				nil, nil,
			))
		}
	} else {
		if input.ErrorMessage != "" {
			headerText += fmt.Sprintf("\n\n*Error:*\n%s", truncateForSlack(input.ErrorMessage))
		}
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
			nil, nil,
		))
	}

	url := analysisURL(input.AnalysisID, dashboardURL)
	buttonText := "View Full Analysis"
	if input.Status != "completed" {
		buttonText = "View Details"
	}

	btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, buttonText, false, false))
	btn.URL = url
	blocks = append(blocks, goslack.NewActionBlock("", btn))

	return blocks
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "\n\n_... (truncated — view full analysis in dashboard)_"
}
