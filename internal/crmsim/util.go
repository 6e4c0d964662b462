package crmsim

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 500
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSimError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

// readBody drains the request body and puts a replayable copy back, so a
// later handler can decode it again.
func readBody(r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))

	return raw, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

func pageParamsFromQuery(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	return clampLimit(limit), offset
}

func pageParamsFromBody(r *http.Request) (limit, offset int) {
	var probe struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	raw, err := readBody(r)
	if err == nil {
		_ = json.Unmarshal(raw, &probe)
	}
	if probe.Offset < 0 {
		probe.Offset = 0
	}

	return clampLimit(probe.Limit), probe.Offset
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}

	end := offset + limit
	if end > len(items) {
		end = len(items)
	}

	return items[offset:end]
}
