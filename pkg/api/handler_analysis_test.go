package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshield-collective/coordination-pipeline/pkg/analysis"
	"github.com/dshield-collective/coordination-pipeline/pkg/config"
	"github.com/dshield-collective/coordination-pipeline/pkg/dispatch"
	"github.com/dshield-collective/coordination-pipeline/pkg/notify"
	"github.com/dshield-collective/coordination-pipeline/pkg/pipeline"
	"github.com/dshield-collective/coordination-pipeline/pkg/state"
	"github.com/dshield-collective/coordination-pipeline/pkg/store"
)

type fakeCheckpointer struct {
	mu   sync.Mutex
	rows map[string]store.AnalysisRow
}

func newFakeCheckpointer() *fakeCheckpointer {
	return &fakeCheckpointer{rows: make(map[string]store.AnalysisRow)}
}

func (f *fakeCheckpointer) UpsertAnalysis(_ context.Context, row store.AnalysisRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[row.ID] = row
	return nil
}

func (f *fakeCheckpointer) GetAnalysis(_ context.Context, id string) (*store.AnalysisRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &row, nil
}

func passThroughStages() map[analysis.StageName]pipeline.StageFunc {
	pass := func(_ context.Context, st *analysis.State) (*analysis.State, error) { return st, nil }
	return map[analysis.StageName]pipeline.StageFunc{
		analysis.StageOrchestrator:     pass,
		analysis.StagePatternAnalyzer:  pass,
		analysis.StageToolCoordinator:  pass,
		analysis.StageConfidenceScorer: pass,
		analysis.StageEnricher:         pass,
	}
}

func testServer(t *testing.T, debug bool) *Server {
	t.Helper()
	s := state.New(newFakeCheckpointer(), time.Hour)
	e := pipeline.New(s, passThroughStages())

	cfg := &config.Config{
		Server: config.Server{Debug: debug, APIKeyEnv: "TEST_API_KEY_UNSET"},
	}
	dcfg := config.Dispatcher{WorkerCount: 2, QueueCapacity: 8, GracefulShutdownTimeout: time.Second}
	pcfg := config.Pipeline{MaxSessions: 1000, AnalysisTimeoutSeconds: 5}

	d := dispatch.New(s, e, notify.NewCallbackClient(time.Second), notify.NewSlackNotifier(nil), dcfg, pcfg)
	d.Start()
	t.Cleanup(d.Stop)

	return NewServer(cfg, d, nil, nil, nil, nil)
}

func sampleBody() []byte {
	req := analysis.AnalysisRequest{
		Sessions: []analysis.AttackSession{
			{SourceIP: "1.1.1.1", Timestamp: time.Now(), Payload: "GET /"},
			{SourceIP: "1.1.1.2", Timestamp: time.Now(), Payload: "GET /"},
		},
		Depth: analysis.DepthStandard,
	}
	body, _ := json.Marshal(req)
	return body
}

func TestSubmitHandler_AcceptsValidRequest(t *testing.T) {
	s := testServer(t, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", bytes.NewReader(sampleBody()))
	req.Header.Set("Content-Type", "application/json")
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var result analysis.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.AnalysisID)
	assert.Equal(t, analysis.StatusQueued, result.Status)
	assert.Nil(t, result.Confidence)
	assert.False(t, result.EnrichmentApplied)
}

func TestSubmitHandler_RejectsInvalidRequest(t *testing.T) {
	s := testServer(t, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", bytes.NewReader([]byte(`{"attack_sessions":[]}`)))
	req.Header.Set("Content-Type", "application/json")
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Detail)
	assert.Equal(t, "validation_error", envelope.ErrorCode)
}

func TestSubmitHandler_RequiresAPIKeyOutsideDebug(t *testing.T) {
	s := testServer(t, false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", bytes.NewReader(sampleBody()))
	req.Header.Set("Content-Type", "application/json")
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetHandler_RoundTripsSubmittedAnalysis(t *testing.T) {
	s := testServer(t, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", bytes.NewReader(sampleBody()))
	req.Header.Set("Content-Type", "application/json")
	s.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitted analysis.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+submitted.AnalysisID, nil)
		s.echo.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return false
		}
		var got analysis.Result
		_ = json.Unmarshal(rec.Body.Bytes(), &got)
		return got.Status == analysis.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGetHandler_UnknownIDReturnsNotFound(t *testing.T) {
	s := testServer(t, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/does-not-exist", nil)
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulkSubmitHandler_ReturnsOneIDPerBatch(t *testing.T) {
	s := testServer(t, true)

	batch := []analysis.AttackSession{
		{SourceIP: "1.1.1.1", Timestamp: time.Now(), Payload: "GET /"},
		{SourceIP: "1.1.1.2", Timestamp: time.Now(), Payload: "GET /"},
	}
	bulkReq := BulkSubmitRequest{
		SessionBatches: [][]analysis.AttackSession{batch, batch},
		Depth:          analysis.DepthMinimal,
	}
	body, err := json.Marshal(bulkReq)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses/bulk", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp BulkSubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.AnalysisIDs, 2)
	assert.Equal(t, 2, resp.BatchCount)
}
