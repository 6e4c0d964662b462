package crm

import (
	"net/http"

	"github.com/pulseboard/pulseboard/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient overrides the transport, including its timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithVersion sets the Version header sent on every request.
func WithVersion(version string) Option {
	return func(c *Client) {
		if version != "" {
			c.version = version
		}
	}
}

// WithRateLimiter sets the shared limiter. All clients talking to the same
// platform should share one instance.
func WithRateLimiter(l *RateLimiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithPageSize sets the page size used by paginated fetches.
func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithPageItemCap sets the hard ceiling on items fetched per resource.
func WithPageItemCap(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageItemCap = n
		}
	}
}

// WithTransientRetries sets how many times transport failures are retried.
func WithTransientRetries(n uint64) Option {
	return func(c *Client) {
		c.transientRetries = n
	}
}

// WithLogger sets the client's logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
