// Package api exposes HTTP handlers for snapshots, reports and activities.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alainabartfeld/strava-activities/internal/auth"
	"github.com/alainabartfeld/strava-activities/internal/domain"
	"github.com/alainabartfeld/strava-activities/internal/persistence"
	"github.com/alainabartfeld/strava-activities/internal/report"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
)

// ReportService is the query surface backing the handlers.
type ReportService interface {
	Latest(ctx context.Context) (snapshot.Entry, error)
	Run(ctx context.Context, name string, year int) (report.Result, error)
	ListActivities(ctx context.Context, filter report.ActivityFilter) ([]domain.ActivitySummary, *domain.Cursor, error)
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger overrides the handler logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithClock overrides the clock used to pick the default report year.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// Handler coordinates HTTP requests with the report service.
type Handler struct {
	service ReportService
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(service ReportService, opts ...Option) *Handler {
	h := &Handler{service: service, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", healthz)
	mux.HandleFunc("/v1/snapshots/latest", h.latestSnapshot)
	mux.HandleFunc("/v1/reports", h.listReports)
	mux.HandleFunc("/v1/reports/", h.reportByName)
	mux.HandleFunc("/v1/activities", h.listActivities)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) latestSnapshot(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}
	entry, err := h.service.Latest(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotView(entry))
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}
	defs := report.Definitions()
	items := make([]ReportDefinitionView, 0, len(defs))
	for _, d := range defs {
		items = append(items, ReportDefinitionView{Name: d.Name, Title: d.Title})
	}
	writeJSON(w, http.StatusOK, ListReportsResponse{Items: items})
}

func (h *Handler) reportByName(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/reports/"), "/")
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing report name")
		return
	}

	year := h.now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1900 || parsed > 9999 {
			writeError(w, http.StatusBadRequest, "validation_failed", "year must be a four digit year")
			return
		}
		year = parsed
	}

	res, err := h.service.Run(r.Context(), name, year)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > report.MaxListLimit {
				parsed = report.MaxListLimit
			}
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	items, next, err := h.service.ListActivities(r.Context(), report.ActivityFilter{
		Type:   r.URL.Query().Get("type"),
		Limit:  limit,
		Cursor: cursor,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

// allow enforces GET and the reports:read scope.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return false
	}
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	if !claims.HasScope(auth.ScopeReportsRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope reports:read required")
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, snapshot.ErrNoSnapshot):
		writeError(w, http.StatusNotFound, "no_snapshot", "no snapshot found")
	case errors.Is(err, report.ErrUnknownReport):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// SnapshotView describes a resolved snapshot.
type SnapshotView struct {
	FileName string `json:"file_name"`
	Path     string `json:"path"`
	Date     string `json:"date"`
	Version  int    `json:"version"`
}

// ReportDefinitionView names one report of the battery.
type ReportDefinitionView struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// ListReportsResponse packages the report battery.
type ListReportsResponse struct {
	Items []ReportDefinitionView `json:"items"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []domain.ActivitySummary `json:"items"`
	NextCursor string                   `json:"next_cursor,omitempty"`
}

func toSnapshotView(entry snapshot.Entry) SnapshotView {
	return SnapshotView{
		FileName: filepath.Base(entry.Path),
		Path:     entry.Path,
		Date:     entry.Version.DateString(),
		Version:  entry.Version.Seq,
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
