// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env.
// - Raw config expresses durations in milliseconds or seconds; call sites
//   convert to time.Duration.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// CRMBaseURL is the base URL of the upstream CRM platform API.
	CRMBaseURL string `koanf:"crm_base_url"`

	// CRMAPIVersion is sent as the Version header on every platform call.
	CRMAPIVersion string `koanf:"crm_api_version"`

	// OAuthClientID and OAuthClientSecret identify this app to the platform
	// token endpoint.
	OAuthClientID     string `koanf:"oauth_client_id"`
	OAuthClientSecret string `koanf:"oauth_client_secret"`

	// OAuthRedirectURI is echoed on authorization-code exchanges.
	OAuthRedirectURI string `koanf:"oauth_redirect_uri"`

	// RateLimit and RateWindowMS bound outbound throughput: at most RateLimit
	// requests per RateWindowMS milliseconds. The quota is platform-wide, so
	// one limiter is shared across all tenants.
	RateLimit    int `koanf:"rate_limit"`
	RateWindowMS int `koanf:"rate_window_ms"`

	// MinSpacingMS smooths bursts inside an open window.
	MinSpacingMS int `koanf:"min_spacing_ms"`

	// RequestTimeoutMS caps a single platform HTTP call.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// PageSize is the page size requested from paginated endpoints.
	PageSize int `koanf:"page_size"`

	// PageItemCap halts pagination after this many items as a safety bound.
	PageItemCap int `koanf:"page_item_cap"`

	// CacheTTLSeconds is the snapshot result cache TTL.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// CredentialFile is the JSON file credentials are persisted to.
	// Empty disables persistence (in-memory only).
	CredentialFile string `koanf:"credential_file"`

	// WarmQueueSize bounds the in-memory snapshot warm queue.
	WarmQueueSize int `koanf:"warm_queue_size"`

	// WarmWorkerCount sets the number of snapshot warm workers.
	WarmWorkerCount int `koanf:"warm_worker_count"`

	// PendingSize bounds the pending warm-job tracker.
	PendingSize int `koanf:"pending_size"`
}

// New creates a Config populated with defaults. The rate limit defaults
// mirror the quota the remote platform enforces.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		CRMBaseURL:       "https://rest.example-crm.com",
		CRMAPIVersion:    "2021-07-28",
		RateLimit:        100,
		RateWindowMS:     10_000,
		MinSpacingMS:     100,
		RequestTimeoutMS: 30_000,
		PageSize:         100,
		PageItemCap:      10_000,
		CacheTTLSeconds:  300,
		CredentialFile:   "credentials.json",
		WarmQueueSize:    1024,
		WarmWorkerCount:  runtime.NumCPU(),
		PendingSize:      4096,
	}
}
