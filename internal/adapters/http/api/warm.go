// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pulseboard/pulseboard/internal/domain/model"
)

// WarmDependencies defines the interface for warm scheduling.
type WarmDependencies interface {
	ScheduleWarm(ctx context.Context, tenantID string, r model.DateRange) (bool, error)
}

// WarmHandler handles cache warm requests.
type WarmHandler struct {
	deps WarmDependencies
}

// NewWarmHandler creates a new warm handler.
func NewWarmHandler(deps WarmDependencies) *WarmHandler {
	return &WarmHandler{deps: deps}
}

// warmRequest mirrors the POST /warm payload.
type warmRequest struct {
	TenantID string `json:"tenant_id"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

func (wr warmRequest) validate() error {
	if strings.TrimSpace(wr.TenantID) == "" {
		return errors.New("missing tenant_id")
	}
	return nil
}

// HandlePostWarm handles POST /warm requests.
func (h *WarmHandler) HandlePostWarm(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_warm"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req warmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	dateRange, err := rangeFromParams(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	accepted, err := h.deps.ScheduleWarm(r.Context(), req.TenantID, dateRange)
	if err != nil {
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	if !accepted {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
