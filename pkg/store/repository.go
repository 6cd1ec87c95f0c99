package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

// UpsertAnalysis inserts a new analysis row or updates the checkpoint fields
// of an existing one, keyed by ID. This is the State Store's durable
// checkpoint primitive (§4.7/I5): every call overwrites session_metadata
// with the latest serialized state.
func (c *Client) UpsertAnalysis(ctx context.Context, row AnalysisRow) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO analyses (
			id, alert_data, depth, callback_url, session_metadata, status,
			current_stage_id, current_stage_index, final_analysis,
			executive_summary, error_message, created_at, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			session_metadata = EXCLUDED.session_metadata,
			status = EXCLUDED.status,
			current_stage_id = EXCLUDED.current_stage_id,
			current_stage_index = EXCLUDED.current_stage_index,
			final_analysis = EXCLUDED.final_analysis,
			executive_summary = EXCLUDED.executive_summary,
			error_message = EXCLUDED.error_message,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`,
		row.ID, row.AlertData, row.Depth, nullableString(row.CallbackURL), row.SessionMetadata,
		row.Status, nullableString(row.CurrentStageID), row.CurrentStageIndex,
		nullableString(row.FinalAnalysis), nullableString(row.ExecutiveSummary),
		nullableString(row.ErrorMessage), row.CreatedAt, row.StartedAt, row.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting analysis %s: %w", row.ID, err)
	}
	return nil
}

// GetAnalysis loads the latest checkpoint for an analysis by ID.
func (c *Client) GetAnalysis(ctx context.Context, id string) (*AnalysisRow, error) {
	var row AnalysisRow
	err := c.pool.QueryRow(ctx, `
		SELECT id, alert_data, depth, COALESCE(callback_url, ''), session_metadata, status,
			COALESCE(current_stage_id, ''), current_stage_index,
			COALESCE(final_analysis, ''), COALESCE(executive_summary, ''),
			COALESCE(error_message, ''), created_at, started_at, completed_at
		FROM analyses WHERE id = $1
	`, id).Scan(
		&row.ID, &row.AlertData, &row.Depth, &row.CallbackURL, &row.SessionMetadata, &row.Status,
		&row.CurrentStageID, &row.CurrentStageIndex,
		&row.FinalAnalysis, &row.ExecutiveSummary,
		&row.ErrorMessage, &row.CreatedAt, &row.StartedAt, &row.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading analysis %s: %w", id, err)
	}
	return &row, nil
}

// UpsertStageRun records or updates a DAG node visited for an analysis.
func (c *Client) UpsertStageRun(ctx context.Context, row StageRunRow) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO stage_runs (
			id, analysis_id, stage_name, stage_index, status,
			started_at, completed_at, duration_ms, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (analysis_id, stage_index) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			duration_ms = EXCLUDED.duration_ms,
			error_message = EXCLUDED.error_message
	`,
		row.ID, row.AnalysisID, row.StageName, row.StageIndex, row.Status,
		row.StartedAt, row.CompletedAt, row.DurationMS, nullableString(row.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("upserting stage run %s: %w", row.ID, err)
	}
	return nil
}

// InsertStageInvocation records the single logical invocation of a stage's
// function over state for a given StageRunRow.
func (c *Client) InsertStageInvocation(ctx context.Context, row StageInvocationRow) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO stage_invocations (
			id, stage_run_id, analysis_id, agent_index, status,
			started_at, completed_at, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		row.ID, row.StageRunID, row.AnalysisID, row.AgentIndex, row.Status,
		row.StartedAt, row.CompletedAt, nullableString(row.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("inserting stage invocation %s: %w", row.ID, err)
	}
	return nil
}

// InsertLLMInteraction records one LLM Reasoning Client call.
func (c *Client) InsertLLMInteraction(ctx context.Context, row LLMInteractionRow) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO llm_interactions (
			id, analysis_id, stage_invocation_id, model, prompt, response,
			token_count, duration_ms, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		row.ID, row.AnalysisID, row.StageInvocationID, row.Model, row.Prompt,
		nullableString(row.Response), row.TokenCount, row.DurationMS,
		nullableString(row.ErrorMessage), row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting LLM interaction %s: %w", row.ID, err)
	}
	return nil
}

// InsertMCPInteraction records one Tool Coordinator per-tool lookup batch.
func (c *Client) InsertMCPInteraction(ctx context.Context, row MCPInteractionRow) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO mcp_interactions (
			id, analysis_id, stage_invocation_id, tool_name, tool_arguments,
			tool_result, duration_ms, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9)
	`,
		row.ID, row.AnalysisID, row.StageInvocationID, row.ToolName,
		row.ToolArguments, row.ToolResult, row.DurationMS,
		nullableString(row.ErrorMessage), row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting MCP interaction %s: %w", row.ID, err)
	}
	return nil
}

// AppendTimelineEvent inserts one entry into the append-only timeline
// ledger (I4). Sequence numbers must be assigned by the caller in
// completion order; the unique (analysis_id, sequence_number) constraint
// rejects out-of-order or duplicate inserts.
func (c *Client) AppendTimelineEvent(ctx context.Context, row TimelineEventRow) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO timeline_events (
			id, analysis_id, sequence_number, event_type, content, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
	`,
		row.ID, row.AnalysisID, row.SequenceNumber, row.EventType, row.Content,
		row.Metadata, row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending timeline event %s: %w", row.ID, err)
	}
	return nil
}

// ListTimelineEvents returns an analysis's timeline entries in sequence order.
func (c *Client) ListTimelineEvents(ctx context.Context, analysisID string) ([]TimelineEventRow, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT id, analysis_id, sequence_number, event_type, content, metadata, created_at
		FROM timeline_events WHERE analysis_id = $1 ORDER BY sequence_number ASC
	`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("listing timeline events for %s: %w", analysisID, err)
	}
	defer rows.Close()

	var out []TimelineEventRow
	for rows.Next() {
		var r TimelineEventRow
		if err := rows.Scan(&r.ID, &r.AnalysisID, &r.SequenceNumber, &r.EventType, &r.Content, &r.Metadata, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning timeline event: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteAnalysesOlderThan removes completed/failed analysis rows (and their
// cascading stage/interaction/timeline rows) whose completed_at precedes the
// cutoff. Rows with no completed_at (still in flight) are never touched.
func (c *Client) DeleteAnalysesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := c.pool.Exec(ctx, `
		DELETE FROM analyses
		WHERE completed_at IS NOT NULL AND completed_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting analyses older than %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
