// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/pulseboard/pulseboard/internal/domain/model"
)

// TenantsDependencies defines the interface for tenant listing.
type TenantsDependencies interface {
	ListTenants(ctx context.Context, agencyTenant string) ([]model.Tenant, error)
}

// TenantsHandler handles tenant listing requests.
type TenantsHandler struct {
	deps TenantsDependencies
}

// NewTenantsHandler creates a new tenants handler.
func NewTenantsHandler(deps TenantsDependencies) *TenantsHandler {
	return &TenantsHandler{deps: deps}
}

// HandleGetTenants handles GET /tenants?agency_id=X requests.
func (h *TenantsHandler) HandleGetTenants(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_tenants"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	agencyID := strings.TrimSpace(r.URL.Query().Get("agency_id"))
	if agencyID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	tenants, err := h.deps.ListTenants(r.Context(), agencyID)
	if err != nil {
		writePlatformError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tenants)
}
