package store

import "time"

// AnalysisRow is the persisted projection of one analysis.State checkpoint.
type AnalysisRow struct {
	ID                string
	AlertData         string
	Depth             string
	CallbackURL       string
	SessionMetadata   []byte // JSON-serialized analysis.State snapshot
	Status            string
	CurrentStageID    string
	CurrentStageIndex *int
	FinalAnalysis     string
	ExecutiveSummary  string
	ErrorMessage      string
	CreatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
}

// StageRunRow is one DAG node visited for an analysis.
type StageRunRow struct {
	ID           string
	AnalysisID   string
	StageName    string
	StageIndex   int
	Status       string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	DurationMS   *int
	ErrorMessage string
}

// StageInvocationRow is the single logical invocation of a stage's function
// over state, recorded against its parent StageRunRow.
type StageInvocationRow struct {
	ID           string
	StageRunID   string
	AnalysisID   string
	AgentIndex   int
	Status       string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
}

// LLMInteractionRow is one LLM Reasoning Client call.
type LLMInteractionRow struct {
	ID                string
	AnalysisID        string
	StageInvocationID string
	Model             string
	Prompt            string
	Response          string
	TokenCount        *int
	DurationMS        *int
	ErrorMessage      string
	CreatedAt         time.Time
}

// MCPInteractionRow is one Tool Coordinator per-tool lookup batch.
type MCPInteractionRow struct {
	ID                string
	AnalysisID        string
	StageInvocationID string
	ToolName          string
	ToolArguments     []byte // JSON
	ToolResult        []byte // JSON
	DurationMS        *int
	ErrorMessage      string
	CreatedAt         time.Time
}

// TimelineEventRow is one append-only processing-step or error entry (I4).
type TimelineEventRow struct {
	ID             string
	AnalysisID     string
	SequenceNumber int
	EventType      string
	Content        string
	Metadata       []byte // JSON, optional
	CreatedAt      time.Time
}
