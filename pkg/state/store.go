// Package state implements the State Store (§4.7): save/load/update/
// checkpoint/cleanup primitives keyed by analysis id, with a durable
// checkpoint written to pkg/store. Each logical write publishes a new
// value atomically with respect to concurrent readers — a reader never
// observes a partially-updated analysis.State (I5).
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/store"
)

// Checkpointer is the durable-storage dependency of Store, narrowed to what
// the State Store needs so tests can substitute a fake instead of a live
// Postgres-backed *store.Client.
type Checkpointer interface {
	UpsertAnalysis(ctx context.Context, row store.AnalysisRow) error
	GetAnalysis(ctx context.Context, id string) (*store.AnalysisRow, error)
}

// entry holds one in-memory analysis plus its cancellation hook, mirroring
// the teacher's Session+cancelFunc pairing.
type entry struct {
	state      *analysis.State
	cancelFunc context.CancelFunc
	erroredAt  *time.Time // set when state.Status == StatusFailed, for 2x-TTL cleanup
}

// Store is the in-memory State Store backed by durable checkpoints.
// Single-writer-per-analysis-id is enforced by holding mu for the full
// duration of Update; readers take a read lock just long enough to Clone.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	db  Checkpointer
	ttl time.Duration
}

// New creates a State Store backed by db, using ttl as the base error-state
// retention window (error states persist at 2x this value per §4.7).
func New(db Checkpointer, ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]*entry),
		db:      db,
		ttl:     ttl,
	}
}

// Save registers a freshly admitted analysis and writes its first
// checkpoint.
func (s *Store) Save(ctx context.Context, st *analysis.State, cancel context.CancelFunc) error {
	s.mu.Lock()
	s.entries[st.AnalysisID] = &entry{state: st, cancelFunc: cancel}
	s.mu.Unlock()

	return s.Checkpoint(ctx, st.AnalysisID)
}

// Get returns a cloned snapshot of an analysis's state. The in-memory copy
// is checked first and, when present, is never staler than the durable
// checkpoint (Checkpoint always runs synchronously at the end of Save and
// Update, so the two are kept in lockstep for any analysis this process
// still holds). The checkpoint is consulted only once the in-memory copy is
// gone, which after a process restart is the only copy left. If neither
// exists, the analysis is lost.
func (s *Store) Get(ctx context.Context, analysisID string) (*analysis.State, error) {
	s.mu.RLock()
	e, ok := s.entries[analysisID]
	s.mu.RUnlock()
	if ok {
		return e.state.Clone(), nil
	}

	row, err := s.db.GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("analysis %s: %w", analysisID, analysis.ErrNotFound)
	}
	st, err := decodeState(row.SessionMetadata)
	if err != nil {
		return nil, fmt.Errorf("decoding checkpoint for %s: %w", analysisID, err)
	}
	return st, nil
}

// Update applies fn to the analysis's state under the store's single-writer
// lock, publishing the result in one step, then writes a checkpoint. fn
// must not retain the pointer it is given beyond the call.
func (s *Store) Update(ctx context.Context, analysisID string, fn func(*analysis.State)) error {
	s.mu.Lock()
	e, ok := s.entries[analysisID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("analysis %s: %w", analysisID, analysis.ErrNotFound)
	}
	fn(e.state)
	if e.state.Status == analysis.StatusFailed && e.erroredAt == nil {
		now := time.Now()
		e.erroredAt = &now
	}
	s.mu.Unlock()

	return s.Checkpoint(ctx, analysisID)
}

// Checkpoint persists the current in-memory state as the durable checkpoint
// for analysisID, replacing the previous one (§4.7: "checkpoints replace the
// previous checkpoint").
func (s *Store) Checkpoint(ctx context.Context, analysisID string) error {
	s.mu.RLock()
	e, ok := s.entries[analysisID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("analysis %s: %w", analysisID, analysis.ErrNotFound)
	}
	st := e.state.Clone()

	metadata, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("serializing checkpoint for %s: %w", analysisID, err)
	}

	row := store.AnalysisRow{
		ID:              st.AnalysisID,
		AlertData:       marshalOrEmpty(st.Input.Sessions),
		Depth:           string(st.Input.Depth),
		CallbackURL:     st.Input.CallbackURL,
		SessionMetadata: metadata,
		Status:          string(st.Status),
		CurrentStageID:  currentStageID(st),
		StartedAt:       st.StartTime,
		CompletedAt:     st.EndTime,
		CreatedAt:       time.Now(),
	}
	if st.FinalAssessment != nil {
		row.FinalAnalysis = st.FinalAssessment.Reasoning
	}
	if len(st.Errors) > 0 {
		row.ErrorMessage = st.Errors[len(st.Errors)-1].Message
	}

	return s.db.UpsertAnalysis(ctx, row)
}

// Cancel invokes the analysis's cancellation hook, if registered. Returns
// false if the analysis is unknown or was never given a cancel func.
func (s *Store) Cancel(analysisID string) bool {
	s.mu.RLock()
	e, ok := s.entries[analysisID]
	s.mu.RUnlock()
	if !ok || e.cancelFunc == nil {
		return false
	}
	e.cancelFunc()
	return true
}

// ActiveWorkflows returns the ids of all in-memory analyses, for cleanup and
// observability (§4.7).
func (s *Store) ActiveWorkflows() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// Cleanup removes completed/failed in-memory entries older than their
// retention window: normal TTL for terminal-non-error states, 2x TTL for
// error states (§4.7).
func (s *Store) Cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if !isTerminal(e.state.Status) {
			continue
		}
		deadline := s.ttl
		if e.erroredAt != nil {
			deadline = 2 * s.ttl
		}
		reference := e.state.EndTime
		if reference == nil {
			reference = e.erroredAt
		}
		if reference == nil {
			continue
		}
		if now.Sub(*reference) >= deadline {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func isTerminal(st analysis.Status) bool {
	return st == analysis.StatusCompleted || st == analysis.StatusFailed
}

func currentStageID(st *analysis.State) string {
	if len(st.ProcessingSteps) == 0 {
		return ""
	}
	return st.ProcessingSteps[len(st.ProcessingSteps)-1].Message
}

func marshalOrEmpty(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeState(metadata []byte) (*analysis.State, error) {
	var st analysis.State
	if err := json.Unmarshal(metadata, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
