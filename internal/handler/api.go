package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"who-is-live/internal/domain"
	"who-is-live/internal/logger"
	"who-is-live/internal/middleware"
	"who-is-live/internal/service"
)

// APIHandler serves the streamer status API and dashboard
type APIHandler struct {
	statusService domain.StatusService
	lookup        domain.StreamerLookup
	logger        *logger.Logger
	templates     *Templates
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(statusService domain.StatusService, lookup domain.StreamerLookup, log *logger.Logger) *APIHandler {
	if log == nil {
		log = logger.Default()
	}
	return &APIHandler{
		statusService: statusService,
		lookup:        lookup,
		logger:        log,
		templates:     LoadTemplates(),
	}
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status      string     `json:"status"`
	SnapshotID  string     `json:"snapshotId,omitempty"`
	Stale       bool       `json:"stale"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// HandleStreamers returns the filtered view of the latest snapshot
// GET /api/streamers?search=&filter=&showAll=&snapshot=
func (h *APIHandler) HandleStreamers(w http.ResponseWriter, r *http.Request) {
	q, err := parseViewQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, service.BuildView(h.statusService.Latest(), q))
}

// HandleStreamer checks one streamer on its platform right now, outside the
// refresh cycle
// GET /api/streamers/{platform}/{name}
func (h *APIHandler) HandleStreamer(w http.ResponseWriter, r *http.Request) {
	platform, err := domain.ParsePlatform(r.PathValue("platform"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status, err := h.lookup.Lookup(r.Context(), platform, r.PathValue("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleRefresh runs a refresh cycle, or joins the running one, and returns
// the unfiltered view of its result
// POST /api/refresh
func (h *APIHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	snap := h.statusService.Refresh(r.Context())
	writeJSON(w, http.StatusOK, service.BuildView(snap, domain.ViewQuery{}))
}

// HandleDashboardRefresh runs a refresh cycle for the dashboard form and
// sends the browser back to the dashboard
// POST /refresh
func (h *APIHandler) HandleDashboardRefresh(w http.ResponseWriter, r *http.Request) {
	h.statusService.Refresh(r.Context())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleHealth reports whether a snapshot is available
// GET /healthz
func (h *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.statusService.Latest()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "starting"})
		return
	}

	resp := HealthResponse{
		Status:      "ok",
		SnapshotID:  snap.ID,
		Stale:       snap.Stale,
		CompletedAt: &snap.CompletedAt,
	}
	if snap.Stale {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDashboard renders the HTML dashboard
// GET /
func (h *APIHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	q, err := parseViewQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view := service.BuildView(h.statusService.Latest(), q)
	if err := h.templates.RenderDashboard(w, DashboardData{View: view, Query: q}); err != nil {
		h.logger.Error("failed to render dashboard", map[string]interface{}{
			"error":      err.Error(),
			"request_id": middleware.GetRequestID(r.Context()),
		})
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

func parseViewQuery(r *http.Request) (domain.ViewQuery, error) {
	values := r.URL.Query()

	filter, err := domain.ParseStatusFilter(values.Get("filter"))
	if err != nil {
		return domain.ViewQuery{}, err
	}

	var showAll bool
	if raw := values.Get("showAll"); raw != "" {
		if showAll, err = strconv.ParseBool(raw); err != nil {
			return domain.ViewQuery{}, domain.NewUserFriendlyError(err, "showAll must be true or false", http.StatusBadRequest)
		}
	}

	return domain.ViewQuery{
		Search:         values.Get("search"),
		Filter:         filter,
		ShowAllOffline: showAll,
		SnapshotID:     values.Get("snapshot"),
	}, nil
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	var ufe *domain.UserFriendlyError
	switch {
	case errors.As(err, &ufe):
		status, msg = ufe.HTTPStatusCode, ufe.UserMessage
	case errors.Is(err, domain.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrPlatformUnavailable):
		status, msg = http.StatusServiceUnavailable, err.Error()
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", map[string]interface{}{
			"error":      err.Error(),
			"status":     status,
			"path":       r.URL.Path,
			"request_id": middleware.GetRequestID(r.Context()),
		})
	}
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
