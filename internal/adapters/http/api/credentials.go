// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pulseboard/pulseboard/internal/domain/model"
)

// CredentialsDependencies defines the interface for tenant onboarding.
type CredentialsDependencies interface {
	ConnectWithCode(ctx context.Context, tenantID, code string) error
	SetCredential(ctx context.Context, tenantID string, cred model.Credential) error
	Disconnect(ctx context.Context, tenantID string) error
}

// CredentialsHandler handles tenant connect and disconnect requests.
type CredentialsHandler struct {
	deps CredentialsDependencies
}

// NewCredentialsHandler creates a new credentials handler.
func NewCredentialsHandler(deps CredentialsDependencies) *CredentialsHandler {
	return &CredentialsHandler{deps: deps}
}

// credentialRequest mirrors the POST /credentials payload. A request
// carries either an OAuth authorization code or explicit token material.
type credentialRequest struct {
	TenantID     string `json:"tenant_id"`
	Code         string `json:"code"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
	AuthClass    string `json:"auth_class"`
}

func (c credentialRequest) validate() error {
	if strings.TrimSpace(c.Code) != "" {
		return nil
	}
	switch {
	case strings.TrimSpace(c.TenantID) == "":
		return errors.New("missing tenant_id")
	case strings.TrimSpace(c.AccessToken) == "":
		return errors.New("missing code or access_token")
	}
	if c.ExpiresAt != "" {
		if _, err := time.Parse(time.RFC3339, c.ExpiresAt); err != nil {
			return errors.New("invalid expires_at; must be RFC3339")
		}
	}
	return nil
}

func (c credentialRequest) toCredential() model.Credential {
	authClass := model.AuthClassLocation
	if model.AuthClass(c.AuthClass) == model.AuthClassAgency {
		authClass = model.AuthClassAgency
	}

	var expiresAt time.Time
	if c.ExpiresAt != "" {
		expiresAt, _ = time.Parse(time.RFC3339, c.ExpiresAt)
	}

	return model.Credential{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    expiresAt,
		AuthClass:    authClass,
	}
}

// HandleCredentials routes POST (connect) and DELETE (disconnect)
// requests on /credentials.
func (h *CredentialsHandler) HandleCredentials(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleConnect(w, r)
	case http.MethodDelete:
		h.handleDisconnect(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *CredentialsHandler) handleConnect(w http.ResponseWriter, r *http.Request) {
	const op = "api.connect_tenant"

	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	var err error
	if strings.TrimSpace(req.Code) != "" {
		err = h.deps.ConnectWithCode(r.Context(), req.TenantID, req.Code)
	} else {
		err = h.deps.SetCredential(r.Context(), req.TenantID, req.toCredential())
	}
	if err != nil {
		writePlatformError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ackResponse{Status: "connected"})
}

func (h *CredentialsHandler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	const op = "api.disconnect_tenant"

	tenantID := strings.TrimSpace(r.URL.Query().Get("tenant_id"))
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	if err := h.deps.Disconnect(r.Context(), tenantID); err != nil {
		writePlatformError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ackResponse{Status: "disconnected"})
}
