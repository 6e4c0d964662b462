// Package crm is the integration client for the upstream marketing
// platform: rate-limited request execution, transparent token refresh,
// and safe pagination over its REST resources.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	credentials "github.com/pulseboard/pulseboard/internal/adapters/credentials"
	model "github.com/pulseboard/pulseboard/internal/domain/model"
	"github.com/pulseboard/pulseboard/pkg/logger"
	"github.com/pulseboard/pulseboard/pkg/metrics"
)

// PlatformName keys credentials for this integration.
const PlatformName = "crm"

const (
	defaultAPIVersion        = "2021-07-28"
	defaultPageSize          = 100
	defaultPageItemCap       = 10_000
	defaultTransientRetries  = 3
	defaultRetryAfterMissing = 2 * time.Second
)

// Client executes authenticated calls against the platform on behalf of
// many tenants. One Client is shared process-wide so the rate limiter can
// account for the platform-wide quota.
type Client struct {
	httpClient *http.Client
	baseURL    string
	version    string

	limiter *RateLimiter
	store   credentials.Store
	logger  logger.Logger

	pageSize         int
	pageItemCap      int
	transientRetries uint64
}

// New creates a platform client with configuration options.
func New(baseURL string, store credentials.Store, opts ...Option) *Client {
	c := &Client{
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		baseURL:          strings.TrimRight(baseURL, "/"),
		version:          defaultAPIVersion,
		store:            store,
		pageSize:         defaultPageSize,
		pageItemCap:      defaultPageItemCap,
		transientRetries: defaultTransientRetries,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.limiter == nil {
		c.limiter = NewRateLimiter(defaultRateLimit, defaultRateWindow, defaultMinSpacing)
	}
	if c.logger == nil {
		c.logger = logger.Get()
	}

	return c
}

// execute runs one logical request: rate-limit admission, auth headers,
// one 401-triggered refresh retry, one 429 retry, and backoff-driven
// retries for transport failures. The decoded body lands in out.
func (c *Client) execute(ctx context.Context, tenant, method, path string, query url.Values, body, out any) error {
	if tenant == "" {
		return ErrMissingTenant
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	op := func() error {
		return c.attempt(ctx, tenant, method, path, query, payload, out, attemptState{})
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.transientRetries), ctx)

	if err := backoff.Retry(op, bo); err != nil {
		metrics.RecordCRMError(errorKind(err))
		return err
	}

	return nil
}

// attemptState tracks the per-request one-shot retries so neither the
// refresh path nor the rate-limit path can loop.
type attemptState struct {
	refreshed   bool
	rateRetried bool
}

func (c *Client) attempt(ctx context.Context, tenant, method, path string, query url.Values, payload []byte, out any, state attemptState) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return backoff.Permanent(err)
	}

	key := credentials.Key{Platform: PlatformName, Tenant: tenant}
	cred, err := c.store.Get(ctx, key)
	if err != nil {
		return backoff.Permanent(&AuthError{StatusCode: 0, Message: err.Error()})
	}

	req, err := c.buildRequest(ctx, method, path, query, payload, cred.AccessToken, tenant, cred.AuthClass)
	if err != nil {
		return backoff.Permanent(err)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failure; the surrounding backoff loop retries it.
		metrics.RecordCRMRetry("network")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.RecordCRMRequest(path, method, strconv.Itoa(resp.StatusCode))
	metrics.RecordCRMRequestDuration(path, float64(time.Since(started).Milliseconds()))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordCRMRetry("network")
		return fmt.Errorf("read %s response: %w", path, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return backoff.Permanent(&ValidationError{Resource: path, Cause: err})
		}
		return nil

	case resp.StatusCode == http.StatusUnauthorized:
		if state.refreshed {
			return backoff.Permanent(&AuthError{StatusCode: resp.StatusCode, Message: "token rejected after refresh"})
		}
		if _, err := c.store.Refresh(ctx, key); err != nil {
			return backoff.Permanent(&AuthError{StatusCode: resp.StatusCode, Message: err.Error()})
		}
		metrics.RecordCRMRetry("auth")
		state.refreshed = true
		return c.attempt(ctx, tenant, method, path, query, payload, out, state)

	case resp.StatusCode == http.StatusTooManyRequests:
		wait := retryAfter(resp, defaultRetryAfterMissing)
		if state.rateRetried {
			return backoff.Permanent(&RateLimitedError{RetryAfter: wait})
		}
		c.logger.Warn(ctx, "platform rate limit hit, backing off",
			logger.String("path", path),
			logger.Duration("retry_after", wait),
		)
		if err := sleepCtx(ctx, wait); err != nil {
			return backoff.Permanent(err)
		}
		metrics.RecordCRMRetry("rate_limit")
		state.rateRetried = true
		return c.attempt(ctx, tenant, method, path, query, payload, out, state)

	default:
		var platformErr errorResponse
		_ = json.Unmarshal(raw, &platformErr)
		return backoff.Permanent(&APIError{
			StatusCode: resp.StatusCode,
			Code:       platformErr.Code,
			Message:    platformErr.Message,
		})
	}
}

func (c *Client) buildRequest(ctx context.Context, method, path string, query url.Values, payload []byte, token, tenant string, authClass model.AuthClass) (*http.Request, error) {
	u := c.baseURL + path

	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	// Agency credentials span locations; the target location rides along
	// on every request.
	if authClass == model.AuthClassAgency && q.Get("locationId") == "" {
		q.Set("locationId", tenant)
	}
	if encoded := q.Encode(); encoded != "" {
		u += "?" + encoded
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Version", c.version)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// retryAfter reads the Retry-After header, falling back when absent or
// unparseable.
func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return fallback
	}

	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}

	return fallback
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait aborted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func errorKind(err error) string {
	var authErr *AuthError
	var rateErr *RateLimitedError
	var apiErr *APIError
	var valErr *ValidationError

	switch {
	case err == nil:
		return "none"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &rateErr):
		return "rate_limited"
	case errors.As(err, &apiErr):
		return "api"
	case errors.As(err, &valErr):
		return "validation"
	default:
		return "transport"
	}
}
