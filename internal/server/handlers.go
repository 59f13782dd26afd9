package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/emberfall/regnum/internal/engine"
	"github.com/emberfall/regnum/internal/model"
)

// Pinger reports backend connectivity for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	engine              *engine.Engine
	pinger              Pinger
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	openapiSpec         []byte
	// healthGroup deduplicates concurrent store pings so a probe storm
	// costs one round trip.
	healthGroup singleflight.Group
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Pinger, OpenAPISpec.
type HandlersDeps struct {
	Engine              *engine.Engine
	Pinger              Pinger
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		engine:              d.Engine,
		pinger:              d.Pinger,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		openapiSpec:         d.OpenAPISpec,
	}
}

// writeEngineError maps an engine error to the right HTTP status and code.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var engErr *engine.Error
	msg := "internal server error"
	if errors.As(err, &engErr) {
		msg = engErr.Error()
	}
	switch engine.KindOf(err) {
	case engine.KindValidation:
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, msg)
	case engine.KindNotFound:
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, msg)
	case engine.KindConflict:
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, msg)
	case engine.KindPersistence:
		// Store faults are transient from the client's perspective; the
		// resolution rolled back and a retry is safe.
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUnavailable, "store unavailable, retry later")
	default:
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
	}
}

// HandleResolve handles POST /v1/issues/{issue_id}/resolve.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	issueID := r.PathValue("issue_id")

	var req model.ResolveRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	res, err := h.engine.ResolveIssue(r.Context(), issueID, req.PlayerRole, req.ResolutionChoice)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, model.ResolveResponse{
		Narrative:    res.Narrative,
		StateChanges: res.StateChanges,
		Success:      res.Success,
		Round:        res.Round,
	})
}

// HandleCurrentIssue handles GET /v1/issues/current. Between turns no
// issue is active; that is a normal game state, not an error, so the
// response is a 200 with a null payload.
func (h *Handlers) HandleCurrentIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := h.engine.CurrentIssue(r.Context())
	if err != nil {
		if engine.KindOf(err) == engine.KindNotFound {
			// Typed nil so the envelope carries an explicit "data": null.
			writeJSON(w, r, http.StatusOK, (*model.IssueView)(nil))
			return
		}
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, issueView(issue))
}

// HandleState handles GET /v1/state. With ?summary=true the response
// includes a narrated situation summary.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.State(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	resp := model.StateResponse{
		Round:     view.Round,
		Status:    string(view.Status),
		Variables: view.Variables,
	}
	if view.CurrentIssue != nil {
		iv := issueView(*view.CurrentIssue)
		resp.CurrentIssue = &iv
	}
	if r.URL.Query().Get("summary") == "true" {
		resp.Summary = h.engine.Summary(r.Context())
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleConfig handles GET /v1/config: the static game catalog.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roles, err := h.engine.Roles(ctx)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	issues, err := h.engine.Issues(ctx)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	vars, err := h.engine.Variables(ctx)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	resp := model.ConfigResponse{
		Roles:     make([]model.RoleView, 0, len(roles)),
		Issues:    make([]model.IssueView, 0, len(issues)),
		Variables: make([]model.VariableView, 0, len(vars)),
	}
	for _, role := range roles {
		resp.Roles = append(resp.Roles, model.RoleView{
			ID: role.ID, Name: role.Name, Description: role.Description,
		})
	}
	for _, iss := range issues {
		resp.Issues = append(resp.Issues, issueView(iss))
	}
	for _, v := range vars {
		resp.Variables = append(resp.Variables, model.VariableView{
			ID: v.ID, Name: v.Name, Current: v.Current, Min: v.Min, Max: v.Max,
		})
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleHistory handles GET /v1/history with optional round, issue_id and
// limit query parameters.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	round := 0
	if s := q.Get("round"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "round must be a positive integer")
			return
		}
		round = v
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "limit must be a positive integer")
			return
		}
		limit = v
	}

	recs, err := h.engine.History(r.Context(), round, q.Get("issue_id"), limit)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	views := make([]model.HistoryView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, model.HistoryView{
			ID:               rec.ID,
			IssueID:          rec.IssueID,
			PlayerRole:       rec.PlayerRole,
			ResolutionChoice: rec.ResolutionChoice,
			Narrative:        rec.Narrative,
			StateChanges:     rec.StateChanges,
			Round:            rec.Round,
			CreatedAt:        rec.CreatedAt,
		})
	}
	writeJSON(w, r, http.StatusOK, views)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	store := "connected"
	httpStatus := http.StatusOK

	if h.pinger != nil {
		_, err, _ := h.healthGroup.Do("ping", func() (any, error) {
			return nil, h.pinger.Ping(r.Context())
		})
		if err != nil {
			status = "unhealthy"
			store = "disconnected"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, r, httpStatus, model.HealthResponse{
		Status:  status,
		Version: h.version,
		Store:   store,
		Uptime:  int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleOpenAPISpec handles GET /openapi.yaml.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "spec not available")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

func issueView(iss model.Issue) model.IssueView {
	return model.IssueView{
		ID:          iss.ID,
		Title:       iss.Title,
		Description: iss.Description,
		Category:    iss.Category,
		Status:      string(iss.Status),
	}
}
