package crmsim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pulseboard/pulseboard/pkg/logger"
)

const (
	defaultTokenTTL   = 3600 // seconds
	defaultRetryAfter = 1    // seconds
)

// Server simulates the platform's REST API. All state is in memory; one
// Server instance represents one simulated platform account.
type Server struct {
	mu      sync.Mutex
	tenants map[string]*tenantData

	// tokens maps issued access tokens to the tenant they belong to.
	// Agency tokens map to "" and may query any location.
	tokens        map[string]string
	refreshTokens map[string]string

	// Fault injection counters, decremented per matching request.
	reject401 atomic.Int32
	reject429 atomic.Int32

	retryAfterSeconds int
	requireVersion    bool

	logger logger.Logger
}

// SimOption applies a configuration option to the Server.
type SimOption func(*Server)

// WithRetryAfter sets the Retry-After value announced on injected 429s.
func WithRetryAfter(seconds int) SimOption {
	return func(s *Server) {
		if seconds >= 0 {
			s.retryAfterSeconds = seconds
		}
	}
}

// WithVersionCheck makes the server reject data requests missing the
// Version header, like the real platform does.
func WithVersionCheck(required bool) SimOption {
	return func(s *Server) {
		s.requireVersion = required
	}
}

// WithSimLogger sets the server's logger.
func WithSimLogger(l logger.Logger) SimOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a simulated platform server.
func New(opts ...SimOption) *Server {
	s := &Server{
		tenants:           make(map[string]*tenantData),
		tokens:            make(map[string]string),
		refreshTokens:     make(map[string]string),
		retryAfterSeconds: defaultRetryAfter,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SeedTenant creates a deterministic dataset for a tenant with default
// sizes.
func (s *Server) SeedTenant(tenantID string) {
	s.SeedTenantSized(tenantID, defaultContactCount, defaultOpportunityCount, defaultEventCount, defaultFunnelCount)
}

// SeedTenantSized creates a deterministic dataset with explicit sizes.
func (s *Server) SeedTenantSized(tenantID string, contacts, opportunities, events, funnels int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tenants[tenantID] = generateTenantData(tenantID, contacts, opportunities, events, funnels)
}

// IssueLocationToken mints a valid location-scoped credential pair for a
// tenant, as the OAuth connect flow would.
func (s *Server) IssueLocationToken(tenantID string) (accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accessToken = "sim-access-" + uuid.NewString()
	refreshToken = "sim-refresh-" + uuid.NewString()
	s.tokens[accessToken] = tenantID
	s.refreshTokens[refreshToken] = tenantID

	return accessToken, refreshToken
}

// IssueAgencyToken mints a valid agency-wide credential. Agency tokens may
// query any seeded location and list them all.
func (s *Server) IssueAgencyToken() (accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accessToken = "sim-agency-access-" + uuid.NewString()
	refreshToken = "sim-agency-refresh-" + uuid.NewString()
	s.tokens[accessToken] = ""
	s.refreshTokens[refreshToken] = ""

	return accessToken, refreshToken
}

// RevokeToken invalidates an access token, forcing the client through the
// refresh path.
func (s *Server) RevokeToken(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, accessToken)
}

// FailAuth makes the next n data requests answer 401 regardless of token.
func (s *Server) FailAuth(n int) {
	s.reject401.Store(int32(n))
}

// RateLimit makes the next n data requests answer 429.
func (s *Server) RateLimit(n int) {
	s.reject429.Store(int32(n))
}

// Handler returns the simulated API surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /oauth/token", s.handleToken)
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /contacts/search", s.authed(s.handleContactsSearch))
	mux.HandleFunc("POST /opportunities/search", s.authed(s.handleOpportunitiesSearch))
	mux.HandleFunc("GET /calendars/events", s.authed(s.handleCalendarEvents))
	mux.HandleFunc("GET /funnels/", s.authed(s.handleFunnels))
	mux.HandleFunc("GET /funnels/{funnelID}/pages", s.authed(s.handleFunnelPages))
	mux.HandleFunc("GET /locations/", s.authed(s.handleLocations))

	return mux
}

// ListenAndServe runs the simulator until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if s.logger == nil {
		s.logger = logger.Get().Named("crmsim")
	}
	s.logger.Info(ctx, "simulated platform listening",
		logger.String("addr", addr),
		logger.Int("tenants", len(s.tenants)),
	)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeSimError(w, http.StatusBadRequest, "bad_request", "malformed form body")
		return
	}

	grant := r.FormValue("grant_type")
	switch grant {
	case "refresh_token":
		s.mu.Lock()
		tenant, ok := s.refreshTokens[r.FormValue("refresh_token")]
		s.mu.Unlock()
		if !ok {
			writeSimError(w, http.StatusUnauthorized, "invalid_grant", "unknown refresh token")
			return
		}

		userType := "Location"
		issue := s.IssueLocationToken
		if tenant == "" {
			userType = "Company"
			issue = func(string) (string, string) { return s.IssueAgencyToken() }
		}
		access, refresh := issue(tenant)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  access,
			"refresh_token": refresh,
			"expires_in":    defaultTokenTTL,
			"userType":      userType,
			"locationId":    tenant,
		})

	case "authorization_code":
		// Codes look like "code:<tenantID>" so tests can mint them freely.
		code := r.FormValue("code")
		tenant, ok := strings.CutPrefix(code, "code:")
		if !ok {
			writeSimError(w, http.StatusUnauthorized, "invalid_grant", "unknown authorization code")
			return
		}
		access, refresh := s.IssueLocationToken(tenant)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  access,
			"refresh_token": refresh,
			"expires_in":    defaultTokenTTL,
			"scope":         "contacts.readonly opportunities.readonly calendars.readonly funnels.readonly",
			"userType":      "Location",
			"locationId":    tenant,
		})

	default:
		writeSimError(w, http.StatusBadRequest, "unsupported_grant_type", "grant_type must be authorization_code or refresh_token")
	}
}

// authed wraps a data handler with fault injection, token validation, and
// Version header checks.
func (s *Server) authed(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.reject429.Load() > 0 && s.reject429.Add(-1) >= 0 {
			w.Header().Set("Retry-After", strconv.Itoa(s.retryAfterSeconds))
			writeSimError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}

		if s.reject401.Load() > 0 && s.reject401.Add(-1) >= 0 {
			writeSimError(w, http.StatusUnauthorized, "unauthorized", "token expired")
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		tokenTenant, ok := s.tokens[token]
		s.mu.Unlock()
		if token == "" || !ok {
			writeSimError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		if s.requireVersion && r.Header.Get("Version") == "" {
			writeSimError(w, http.StatusBadRequest, "missing_version", "Version header is required")
			return
		}

		tenant := s.requestTenant(r)
		if tenant == "" {
			// Location tokens are bound to their own location.
			tenant = tokenTenant
		}

		next(w, r, tenant)
	}
}

// requestTenant pulls locationId from the query or a JSON body peeked
// non-destructively.
func (s *Server) requestTenant(r *http.Request) string {
	if loc := r.URL.Query().Get("locationId"); loc != "" {
		return loc
	}

	if r.Body == nil || r.Method != http.MethodPost {
		return ""
	}

	var probe struct {
		LocationID string `json:"locationId"`
		Limit      int    `json:"limit"`
		Offset     int    `json:"offset"`
	}
	raw, err := readBody(r)
	if err != nil {
		return ""
	}
	_ = json.Unmarshal(raw, &probe)

	return probe.LocationID
}

func (s *Server) dataFor(tenantID string) (*tenantData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.tenants[tenantID]
	return data, ok
}

func (s *Server) handleContactsSearch(w http.ResponseWriter, r *http.Request, tenant string) {
	data, ok := s.dataFor(tenant)
	if !ok {
		writeSimError(w, http.StatusBadRequest, "unknown_location", "location has no data")
		return
	}

	limit, offset := pageParamsFromBody(r)
	page := paginate(data.contacts, limit, offset)
	writeJSON(w, http.StatusOK, map[string]any{"contacts": page, "total": len(data.contacts)})
}

func (s *Server) handleOpportunitiesSearch(w http.ResponseWriter, r *http.Request, tenant string) {
	data, ok := s.dataFor(tenant)
	if !ok {
		writeSimError(w, http.StatusBadRequest, "unknown_location", "location has no data")
		return
	}

	limit, offset := pageParamsFromBody(r)
	page := paginate(data.opportunities, limit, offset)
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": page, "total": len(data.opportunities)})
}

func (s *Server) handleCalendarEvents(w http.ResponseWriter, r *http.Request, tenant string) {
	data, ok := s.dataFor(tenant)
	if !ok {
		writeSimError(w, http.StatusBadRequest, "unknown_location", "location has no data")
		return
	}

	limit, offset := pageParamsFromQuery(r)
	page := paginate(data.events, limit, offset)
	writeJSON(w, http.StatusOK, map[string]any{"events": page, "total": len(data.events)})
}

func (s *Server) handleFunnels(w http.ResponseWriter, r *http.Request, tenant string) {
	data, ok := s.dataFor(tenant)
	if !ok {
		writeSimError(w, http.StatusBadRequest, "unknown_location", "location has no data")
		return
	}

	limit, offset := pageParamsFromQuery(r)
	page := paginate(data.funnels, limit, offset)
	writeJSON(w, http.StatusOK, map[string]any{"funnels": page, "total": len(data.funnels)})
}

func (s *Server) handleFunnelPages(w http.ResponseWriter, r *http.Request, tenant string) {
	data, ok := s.dataFor(tenant)
	if !ok {
		writeSimError(w, http.StatusBadRequest, "unknown_location", "location has no data")
		return
	}

	funnelID := r.PathValue("funnelID")
	var pages []simFunnelPage
	for _, p := range data.pages {
		if p.FunnelID == funnelID {
			pages = append(pages, p)
		}
	}

	limit, offset := pageParamsFromQuery(r)
	page := paginate(pages, limit, offset)
	writeJSON(w, http.StatusOK, map[string]any{"pages": page, "total": len(pages)})
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request, tenant string) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.tenants))
	for id := range s.tenants {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	locations := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		locations = append(locations, map[string]any{
			"id":      id,
			"name":    "Location " + id,
			"email":   fmt.Sprintf("owner@%s.example", id),
			"country": "US",
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"locations": locations, "total": len(locations)})
}
