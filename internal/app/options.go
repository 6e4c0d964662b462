package service

import (
	"time"

	cachestore "github.com/pulseboard/pulseboard/internal/adapters/cache"
	credentials "github.com/pulseboard/pulseboard/internal/adapters/credentials"
	crm "github.com/pulseboard/pulseboard/internal/adapters/crm"
	jobqueue "github.com/pulseboard/pulseboard/internal/adapters/mq/queue"
	"github.com/pulseboard/pulseboard/internal/domain/aggregate"
	"github.com/pulseboard/pulseboard/internal/domain/pending"
	"github.com/pulseboard/pulseboard/internal/domain/types"
	"github.com/pulseboard/pulseboard/pkg/logger"
)

// Option configures the service.
type Option func(*Service)

// WithBaseURL sets the platform API base URL.
func WithBaseURL(url string) Option {
	return func(s *Service) {
		s.baseURL = url
	}
}

// WithOAuthApp sets the OAuth application credentials used for code and
// refresh-token exchanges.
func WithOAuthApp(clientID, clientSecret, redirectURI string) Option {
	return func(s *Service) {
		s.clientID = clientID
		s.clientSecret = clientSecret
		s.redirectURI = redirectURI
	}
}

// WithAPIVersion sets the platform API version header value.
func WithAPIVersion(version string) Option {
	return func(s *Service) {
		if version != "" {
			s.apiVersion = version
		}
	}
}

// WithRateLimit overrides the outbound request budget.
func WithRateLimit(limit int, window, minSpacing time.Duration) Option {
	return func(s *Service) {
		if limit > 0 {
			s.rateLimit = limit
		}
		if window > 0 {
			s.rateWindow = window
		}
		if minSpacing >= 0 {
			s.minSpacing = minSpacing
		}
	}
}

// WithRequestTimeout sets the per-request HTTP timeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.requestTimeout = timeout
		}
	}
}

// WithPageSize sets the pagination page size for platform fetches.
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithPageItemCap bounds the total items fetched per paginated listing.
func WithPageItemCap(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageItemCap = n
		}
	}
}

// WithCacheTTL sets how long computed snapshots stay fresh.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithCredentialFile sets the path credentials are persisted to. Empty
// means in-memory only.
func WithCredentialFile(path string) Option {
	return func(s *Service) {
		s.credentialFile = path
	}
}

// WithQueueSize sets the warm queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of warm workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithPendingSize bounds the pending warm-job tracker.
func WithPendingSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pendingSize = size
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore injects a credential store, bypassing construction.
func WithStore(store credentials.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithClient injects a platform client, bypassing construction.
func WithClient(client *crm.Client) Option {
	return func(s *Service) {
		s.client = client
	}
}

// WithOAuthClient injects an OAuth client, bypassing construction.
func WithOAuthClient(oauth *crm.OAuthClient) Option {
	return func(s *Service) {
		s.oauth = oauth
	}
}

// WithCache injects a result cache, bypassing construction.
func WithCache(c *cachestore.ResultCache[*types.MetricsSnapshot]) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithAggregator injects an aggregator, bypassing construction.
func WithAggregator(agg aggregate.Aggregator) Option {
	return func(s *Service) {
		s.agg = agg
	}
}

// WithQueue injects a warm-job queue, bypassing construction.
func WithQueue(q jobqueue.Queue) Option {
	return func(s *Service) {
		s.queue = q
	}
}

// WithTracker injects a pending-job tracker, bypassing construction.
func WithTracker(t pending.Tracker) Option {
	return func(s *Service) {
		s.tracker = t
	}
}
