// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	credentials "github.com/pulseboard/pulseboard/internal/adapters/credentials"
	crm "github.com/pulseboard/pulseboard/internal/adapters/crm"
	"github.com/pulseboard/pulseboard/internal/domain/model"
	"github.com/pulseboard/pulseboard/internal/domain/types"
)

// Default analytics window when the caller omits the date range.
const defaultRangeDays = 30

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	GetMetrics(ctx context.Context, tenantID string, r model.DateRange) (*Snapshot, error)
	ListTenants(ctx context.Context, agencyTenant string) ([]model.Tenant, error)
	ConnectWithCode(ctx context.Context, tenantID, code string) error
	SetCredential(ctx context.Context, tenantID string, cred model.Credential) error
	Disconnect(ctx context.Context, tenantID string) error
	ScheduleWarm(ctx context.Context, tenantID string, r model.DateRange) (bool, error)
}

// Snapshot mirrors the read shape returned by analytics queries.
type Snapshot = types.MetricsSnapshot

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	analyticsHandler   *AnalyticsHandler
	tenantsHandler     *TenantsHandler
	credentialsHandler *CredentialsHandler
	warmHandler        *WarmHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		analyticsHandler:   NewAnalyticsHandler(deps),
		tenantsHandler:     NewTenantsHandler(deps),
		credentialsHandler: NewCredentialsHandler(deps),
		warmHandler:        NewWarmHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metricsz", MetricsMiddleware(s.healthHandler.HandleHealth, "metricsz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/analytics", MetricsMiddleware(s.analyticsHandler.HandleGetAnalytics, "analytics"))
	mux.HandleFunc("/tenants", MetricsMiddleware(s.tenantsHandler.HandleGetTenants, "tenants"))
	mux.HandleFunc("/credentials", MetricsMiddleware(s.credentialsHandler.HandleCredentials, "credentials"))
	mux.HandleFunc("/warm", MetricsMiddleware(s.warmHandler.HandlePostWarm, "warm"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writePlatformError translates upstream platform failures to API statuses.
func writePlatformError(w http.ResponseWriter, err error) {
	var authErr *crm.AuthError
	var rateErr *crm.RateLimitedError

	switch {
	case errors.Is(err, credentials.ErrNotFound):
		writeError(w, http.StatusNotFound, "tenant_not_connected", err)
	case errors.As(err, &authErr):
		writeError(w, http.StatusUnauthorized, "auth_failed", err)
	case errors.As(err, &rateErr):
		writeError(w, http.StatusTooManyRequests, "rate_limited", err)
	case errors.Is(err, crm.ErrAgencyOnly):
		writeError(w, http.StatusForbidden, "agency_credential_required", err)
	default:
		writeError(w, http.StatusBadGateway, "upstream_error", err)
	}
}

// parseTime accepts RFC3339 timestamps and bare dates.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, errors.New("invalid time; must be RFC3339 or YYYY-MM-DD")
	}
	return t, nil
}

// rangeFromParams builds the analytics window, defaulting to the last
// thirty days when the caller omits bounds.
func rangeFromParams(startStr, endStr string) (model.DateRange, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -defaultRangeDays)

	if startStr != "" {
		t, err := parseTime(startStr)
		if err != nil {
			return model.DateRange{}, err
		}
		start = t
	}
	if endStr != "" {
		t, err := parseTime(endStr)
		if err != nil {
			return model.DateRange{}, err
		}
		end = t
	}
	if end.Before(start) {
		return model.DateRange{}, errors.New("end must not precede start")
	}

	return model.DateRange{Start: start, End: end}, nil
}
