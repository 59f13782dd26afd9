package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberfall/regnum/internal/engine"
	"github.com/emberfall/regnum/internal/model"
	"github.com/emberfall/regnum/internal/narrative"
	"github.com/emberfall/regnum/internal/ratelimit"
	"github.com/emberfall/regnum/internal/server"
	"github.com/emberfall/regnum/internal/storage/memory"
)

func intPtr(v int) *int { return &v }

func newTestServer(t *testing.T) (*server.Server, *memory.Store) {
	t.Helper()
	store := memory.New()

	store.UpsertRole(model.Role{ID: "regent", Name: "Regent"})
	store.UpsertRole(model.Role{ID: "military", Name: "Lord Commander"})
	store.UpsertIssue(model.Issue{
		ID:          "northern_border",
		Title:       "Northern Border Dispute",
		Description: "Raiders have been crossing the northern border.",
		Category:    "military",
		Status:      model.IssueActive,
	})
	store.UpsertIssue(model.Issue{
		ID:     "trade_crisis",
		Title:  "Trade Route Crisis",
		Status: model.IssueArchived,
	})
	store.UpsertVariable(model.Variable{ID: "militarism_level", Name: "Militarism", Current: 30, Min: intPtr(0), Max: intPtr(100)})
	current := "northern_border"
	store.PutState(model.GameState{CurrentIssueID: &current, Round: 1, Status: model.GameActive})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	adapter := narrative.NewAdapter(narrative.NewStaticProvider(), time.Second, logger)
	eng := engine.New(store, adapter, nil, logger)

	return server.New(server.ServerConfig{
		Engine:              eng,
		Logger:              logger,
		Version:             "test",
		MaxRequestBodyBytes: 64 * 1024,
	}), store
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T                  `json:"data"`
		Meta model.ResponseMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Meta.RequestID)
	return envelope.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) model.ErrorDetail {
	t.Helper()
	var envelope model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error
}

func TestHandleResolve(t *testing.T) {
	srv, store := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/issues/northern_border/resolve", model.ResolveRequest{
		PlayerRole:       "regent",
		ResolutionChoice: "Option B: Assert Authority",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeData[model.ResolveResponse](t, rec)
	assert.NotEmpty(t, resp.Narrative)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Round)

	assert.Equal(t, 1, store.HistoryLen())
}

func TestHandleResolveErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name: "unknown issue", path: "/v1/issues/ghost_issue/resolve",
			body:       model.ResolveRequest{PlayerRole: "regent", ResolutionChoice: "x"},
			wantStatus: http.StatusNotFound, wantCode: model.ErrCodeNotFound,
		},
		{
			name: "inactive issue", path: "/v1/issues/trade_crisis/resolve",
			body:       model.ResolveRequest{PlayerRole: "regent", ResolutionChoice: "x"},
			wantStatus: http.StatusNotFound, wantCode: model.ErrCodeNotFound,
		},
		{
			name: "missing role", path: "/v1/issues/northern_border/resolve",
			body:       model.ResolveRequest{ResolutionChoice: "x"},
			wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeInvalidInput,
		},
		{
			name: "malformed body", path: "/v1/issues/northern_border/resolve",
			body:       map[string]any{"player_role": "regent", "unexpected": true},
			wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv.Handler(), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

// brokenStore fails variable snapshots to imitate a store outage.
type brokenStore struct {
	engine.Store
}

func (brokenStore) VariableValues(context.Context) (map[string]int, error) {
	return nil, errors.New("connection refused")
}

func TestHandleResolveStoreUnavailable(t *testing.T) {
	mem := memory.New()
	mem.UpsertIssue(model.Issue{
		ID:     "northern_border",
		Title:  "Northern Border Dispute",
		Status: model.IssueActive,
	})
	current := "northern_border"
	mem.PutState(model.GameState{CurrentIssueID: &current, Round: 1, Status: model.GameActive})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	adapter := narrative.NewAdapter(narrative.NewStaticProvider(), time.Second, logger)
	eng := engine.New(brokenStore{Store: mem}, adapter, nil, logger)
	srv := server.New(server.ServerConfig{
		Engine:              eng,
		Logger:              logger,
		Version:             "test",
		MaxRequestBodyBytes: 64 * 1024,
	})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/issues/northern_border/resolve", model.ResolveRequest{
		PlayerRole:       "regent",
		ResolutionChoice: "Hold the line",
	})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	detail := decodeError(t, rec)
	assert.Equal(t, model.ErrCodeUnavailable, detail.Code)

	// The attempt left no trace; a retry against a healthy store works.
	assert.Equal(t, 0, mem.HistoryLen())
}

func TestHandleCurrentIssue(t *testing.T) {
	srv, store := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/issues/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	iss := decodeData[model.IssueView](t, rec)
	assert.Equal(t, "northern_border", iss.ID)
	assert.Equal(t, "active", iss.Status)

	// No active issue between turns is a 200 with an explicit null, the
	// same shape the MCP resource renders.
	store.PutState(model.GameState{Round: 1, Status: model.GameActive})
	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/issues/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Contains(t, envelope, "data")
	assert.Equal(t, "null", string(envelope["data"]))
}

func TestHandleState(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeData[model.StateResponse](t, rec)
	require.NotNil(t, state.CurrentIssue)
	assert.Equal(t, "northern_border", state.CurrentIssue.ID)
	assert.Equal(t, 1, state.Round)
	assert.Equal(t, "active", state.Status)
	assert.Equal(t, 30, state.Variables["militarism_level"])
	assert.Empty(t, state.Summary)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/state?summary=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeData[model.StateResponse](t, rec)
	assert.NotEmpty(t, state.Summary)
}

func TestHandleConfig(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decodeData[model.ConfigResponse](t, rec)
	assert.Len(t, cfg.Roles, 2)
	assert.Len(t, cfg.Issues, 2)
	require.Len(t, cfg.Variables, 1)
	assert.Equal(t, "militarism_level", cfg.Variables[0].ID)
	require.NotNil(t, cfg.Variables[0].Max)
	assert.Equal(t, 100, *cfg.Variables[0].Max)
}

func TestHandleHistory(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/issues/northern_border/resolve", model.ResolveRequest{
		PlayerRole: "regent", ResolutionChoice: "Option A",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/history?round=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	views := decodeData[[]model.HistoryView](t, rec)
	require.Len(t, views, 1)
	assert.Equal(t, "northern_border", views[0].IssueID)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/history?round=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleNotes(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/notes", model.SendNoteRequest{
		SenderRole: "regent", RecipientRole: "military", Content: "March at dawn.",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	note := decodeData[model.NoteView](t, rec)
	assert.Equal(t, "regent", note.Sender)
	assert.False(t, note.Read)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/notes?recipient_role=military", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decodeData[[]model.NoteView](t, rec)
	require.Len(t, notes, 1)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/notes/"+note.ID.String()+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/notes?recipient_role=military", nil)
	notes = decodeData[[]model.NoteView](t, rec)
	assert.True(t, notes[0].Read)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/notes/not-a-uuid/read", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/notes", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decodeData[model.HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "caller-supplied", rec.Header().Get("X-Request-ID"))
}

func TestResolveRateLimited(t *testing.T) {
	store := memory.New()
	store.UpsertIssue(model.Issue{ID: "one", Title: "One", Status: model.IssueActive})
	current := "one"
	store.PutState(model.GameState{CurrentIssueID: &current, Round: 1, Status: model.GameActive})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	adapter := narrative.NewAdapter(narrative.NewStaticProvider(), time.Second, logger)
	eng := engine.New(store, adapter, nil, logger)

	limiter := ratelimit.NewMemoryLimiter(0.001, 1)
	defer limiter.Close()
	srv := server.New(server.ServerConfig{
		Engine:  eng,
		Logger:  logger,
		Limiter: limiter,
	})

	body := model.ResolveRequest{PlayerRole: "regent", ResolutionChoice: "x"}
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/issues/one/resolve", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/issues/one/resolve", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, model.ErrCodeRateLimited, decodeError(t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
