// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/pulseboard/pulseboard/internal/domain/model"
)

// AnalyticsDependencies defines the interface for analytics queries.
type AnalyticsDependencies interface {
	GetMetrics(ctx context.Context, tenantID string, r model.DateRange) (*Snapshot, error)
}

// AnalyticsHandler handles analytics requests.
type AnalyticsHandler struct {
	deps AnalyticsDependencies
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(deps AnalyticsDependencies) *AnalyticsHandler {
	return &AnalyticsHandler{deps: deps}
}

// HandleGetAnalytics handles GET /analytics?tenant_id=X&start=...&end=... requests.
func (h *AnalyticsHandler) HandleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_analytics"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	tenantID := strings.TrimSpace(r.URL.Query().Get("tenant_id"))
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	dateRange, err := rangeFromParams(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	snapshot, err := h.deps.GetMetrics(r.Context(), tenantID, dateRange)
	if err != nil {
		writePlatformError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}
