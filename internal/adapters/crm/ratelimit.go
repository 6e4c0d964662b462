package crm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/pkg/metrics"
)

// Default limiter configuration, matching the platform-wide quota.
const (
	defaultRateLimit  = 100
	defaultRateWindow = 10 * time.Second
	defaultMinSpacing = 100 * time.Millisecond
)

// RateLimiter admits at most limit requests per fixed window, with a
// minimum spacing between consecutive admissions to smooth bursts. It is
// shared platform-wide across all tenants, because that is how the remote
// API accounts for quota.
type RateLimiter struct {
	mu sync.Mutex

	limit      int
	window     time.Duration
	minSpacing time.Duration

	windowStart time.Time
	count       int
	lastAdmit   time.Time

	now func() time.Time
}

// NewRateLimiter creates a limiter. Non-positive arguments fall back to the
// platform defaults.
func NewRateLimiter(limit int, window, minSpacing time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if window <= 0 {
		window = defaultRateWindow
	}
	if minSpacing < 0 {
		minSpacing = defaultMinSpacing
	}

	return &RateLimiter{
		limit:      limit,
		window:     window,
		minSpacing: minSpacing,
		now:        time.Now,
	}
}

// Acquire blocks until a request slot is available or ctx is done. A slot,
// once granted, is consumed even if the caller is later cancelled; quota
// accounting must not be bypassed by cancellation.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	for {
		wait, admitted := l.tryAdmit()
		if admitted {
			metrics.RecordRateLimitAdmitted()
			return nil
		}

		metrics.RecordRateLimitWait(float64(wait.Milliseconds()))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limiter wait aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// tryAdmit performs one check-then-increment pass. It returns either an
// admission or the duration to wait before trying again.
func (l *RateLimiter) tryAdmit() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}

	if l.count >= l.limit {
		metrics.RecordRateLimitExhausted()
		return l.window - now.Sub(l.windowStart), false
	}

	if !l.lastAdmit.IsZero() {
		if since := now.Sub(l.lastAdmit); since < l.minSpacing {
			return l.minSpacing - since, false
		}
	}

	l.count++
	l.lastAdmit = now

	return 0, true
}
