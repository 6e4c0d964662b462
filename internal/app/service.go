// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	cachestore "github.com/pulseboard/pulseboard/internal/adapters/cache"
	credentials "github.com/pulseboard/pulseboard/internal/adapters/credentials"
	crm "github.com/pulseboard/pulseboard/internal/adapters/crm"
	jobqueue "github.com/pulseboard/pulseboard/internal/adapters/mq/queue"
	workerpool "github.com/pulseboard/pulseboard/internal/adapters/mq/worker"
	"github.com/pulseboard/pulseboard/internal/domain/aggregate"
	"github.com/pulseboard/pulseboard/internal/domain/model"
	"github.com/pulseboard/pulseboard/internal/domain/pending"
	"github.com/pulseboard/pulseboard/internal/domain/types"
	"github.com/pulseboard/pulseboard/pkg/logger"
	"github.com/pulseboard/pulseboard/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	opMetrics          = "metrics"
	cacheSweepInterval = time.Minute
)

// Service orchestrates the platform client, aggregation, caching, and
// background warming behind the HTTP API.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   credentials.Store
	oauth   *crm.OAuthClient
	client  *crm.Client
	cache   *cachestore.ResultCache[*types.MetricsSnapshot]
	agg     aggregate.Aggregator
	queue   jobqueue.Queue
	tracker pending.Tracker
	pool    *workerpool.Pool

	// Configuration
	baseURL        string
	apiVersion     string
	clientID       string
	clientSecret   string
	redirectURI    string
	rateLimit      int
	rateWindow     time.Duration
	minSpacing     time.Duration
	requestTimeout time.Duration
	pageSize       int
	pageItemCap    int
	cacheTTL       time.Duration
	credentialFile string
	queueSize      int
	workerCount    int
	pendingSize    int

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		apiVersion:     "2021-07-28",
		rateLimit:      100,
		rateWindow:     10 * time.Second,
		minSpacing:     100 * time.Millisecond,
		requestTimeout: 30 * time.Second,
		pageSize:       100,
		pageItemCap:    10_000,
		cacheTTL:       5 * time.Minute,
		queueSize:      1024,
		workerCount:    runtime.NumCPU(),
		pendingSize:    4096,
		stopCh:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components. Components injected
// through options are kept; everything else is built here.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting analytics service...")

	if s.oauth == nil {
		s.oauth = crm.NewOAuthClient(s.baseURL, s.clientID, s.clientSecret, s.redirectURI)
	}

	if s.store == nil {
		store, err := credentials.NewFileStore(
			credentials.WithFile(s.credentialFile),
			credentials.WithExchanger(s.oauth),
		)
		if err != nil {
			return fmt.Errorf("init credential store: %w", err)
		}
		s.store = store
	}

	if s.client == nil {
		s.client = crm.New(s.baseURL, s.store,
			crm.WithVersion(s.apiVersion),
			crm.WithRateLimiter(crm.NewRateLimiter(s.rateLimit, s.rateWindow, s.minSpacing)),
			crm.WithPageSize(s.pageSize),
			crm.WithPageItemCap(s.pageItemCap),
			crm.WithHTTPClient(newHTTPClient(s.requestTimeout)),
		)
	}

	if s.cache == nil {
		s.cache = cachestore.New[*types.MetricsSnapshot](cachestore.WithTTL(s.cacheTTL))
	}
	if s.agg == nil {
		s.agg = aggregate.NewInMemoryAggregator()
	}
	if s.tracker == nil {
		s.tracker = pending.NewInMemoryTracker(pending.WithMaxSize(s.pendingSize))
	}
	if s.queue == nil {
		s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	}

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s, s.tracker)
	s.pool.Start(ctx)

	go s.sweepLoop()

	s.started = true
	s.logger.Info(ctx, "analytics service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("cacheTTL", s.cacheTTL),
		logger.Int("connectedTenants", s.store.Count(ctx)),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping analytics service...")

	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(ctx, "analytics service stopped")
}

// sweepLoop drops expired cache entries periodically.
func (s *Service) sweepLoop() {
	ticker := time.NewTicker(cacheSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.cache.Sweep()
		}
	}
}

// GetMetrics is the single entry point dashboards call. It serves from
// cache when fresh, otherwise fetches every resource and aggregates.
func (s *Service) GetMetrics(ctx context.Context, tenantID string, r model.DateRange) (*types.MetricsSnapshot, error) {
	key := cachestore.Key{Op: opMetrics, Tenant: tenantID, Start: r.Start, End: r.End}

	return s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*types.MetricsSnapshot, error) {
		return s.buildSnapshot(ctx, tenantID, r)
	})
}

// BuildSnapshot computes and caches a snapshot, discarding the value. The
// warm workers call it.
func (s *Service) BuildSnapshot(ctx context.Context, tenantID string, r model.DateRange) error {
	_, err := s.GetMetrics(ctx, tenantID, r)
	return err
}

// buildSnapshot fetches the raw entities for every resource concurrently
// and folds them into a snapshot. Fatal errors (auth, malformed requests)
// abort; transient failures degrade to a partial snapshot.
func (s *Service) buildSnapshot(ctx context.Context, tenantID string, r model.DateRange) (*types.MetricsSnapshot, error) {
	in := aggregate.Input{TenantID: tenantID, Range: r}

	var mu sync.Mutex
	markPartial := func(resource string, err error) {
		mu.Lock()
		in.Partial = true
		mu.Unlock()
		s.logger.Warn(ctx, "resource fetch failed, continuing with partial data",
			logger.String("tenantID", tenantID),
			logger.String("resource", resource),
			logger.Error(err),
		)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		contacts, err := s.client.SearchContacts(gctx, tenantID, r)
		if err != nil {
			if crm.IsFatal(err) {
				return err
			}
			markPartial("contacts", err)
			return nil
		}
		mu.Lock()
		in.Contacts = contacts
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		opps, err := s.client.SearchOpportunities(gctx, tenantID, r)
		if err != nil {
			if crm.IsFatal(err) {
				return err
			}
			markPartial("opportunities", err)
			return nil
		}
		mu.Lock()
		in.Opportunities = opps
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		events, err := s.client.ListCalendarEvents(gctx, tenantID, r)
		if err != nil {
			if crm.IsFatal(err) {
				return err
			}
			markPartial("calendar_events", err)
			return nil
		}
		mu.Lock()
		in.Events = events
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		funnels, err := s.client.ListFunnels(gctx, tenantID)
		if err != nil {
			if crm.IsFatal(err) {
				return err
			}
			markPartial("funnels", err)
			return nil
		}

		var pages []model.RawFunnelPage
		for _, funnel := range funnels {
			funnelPages, err := s.client.ListFunnelPages(gctx, tenantID, funnel.ID)
			if err != nil {
				if crm.IsFatal(err) {
					return err
				}
				markPartial("funnel_pages", err)
				continue
			}
			pages = append(pages, funnelPages...)
		}

		mu.Lock()
		in.Funnels = funnels
		in.Pages = pages
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.agg.Build(ctx, in)
}

// ListTenants lists every location visible to the agency credential.
func (s *Service) ListTenants(ctx context.Context, agencyTenant string) ([]model.Tenant, error) {
	return s.client.ListLocations(ctx, agencyTenant)
}

// ConnectWithCode finishes the OAuth flow for a tenant: exchanges the
// authorization code and stores the resulting credential.
func (s *Service) ConnectWithCode(ctx context.Context, tenantID, code string) error {
	cred, err := s.oauth.ExchangeAuthCode(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if cred.LocationID != "" {
		tenantID = cred.LocationID
	}

	return s.SetCredential(ctx, tenantID, cred)
}

// SetCredential stores a credential for a tenant.
func (s *Service) SetCredential(ctx context.Context, tenantID string, cred model.Credential) error {
	key := credentials.Key{Platform: crm.PlatformName, Tenant: tenantID}
	if err := s.store.Set(ctx, key, cred); err != nil {
		return err
	}

	s.logger.Info(ctx, "tenant connected",
		logger.String("tenantID", tenantID),
		logger.String("authClass", string(cred.AuthClass)),
	)

	return nil
}

// Disconnect removes a tenant's credential and its cached snapshots.
func (s *Service) Disconnect(ctx context.Context, tenantID string) error {
	key := credentials.Key{Platform: crm.PlatformName, Tenant: tenantID}
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}

	s.cache.InvalidateTenant(tenantID)
	s.logger.Info(ctx, "tenant disconnected", logger.String("tenantID", tenantID))

	return nil
}

// ScheduleWarm queues a background snapshot computation. Returns false
// with a nil error when an identical job is already pending, and
// ErrBackpressure when the queue is full.
func (s *Service) ScheduleWarm(ctx context.Context, tenantID string, r model.DateRange) (bool, error) {
	job := model.WarmJob{TenantID: tenantID, Range: r}

	if !s.tracker.Begin(ctx, job.Key()) {
		metrics.RecordWarmJobDuplicate()
		s.logger.Debug(ctx, "warm job already pending, skipping",
			logger.String("tenantID", tenantID),
		)
		return false, nil
	}

	if !s.queue.Enqueue(ctx, job) {
		// Release the slot so the job can be scheduled once there is room.
		s.tracker.Done(ctx, job.Key())
		s.logger.Warn(ctx, "warm queue full, job dropped",
			logger.String("tenantID", tenantID),
		)
		return false, ErrBackpressure
	}

	return true, nil
}

// ConnectedTenants returns the keys of every stored credential.
func (s *Service) ConnectedTenants(ctx context.Context) []credentials.Key {
	return s.store.Keys(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"cacheTTL":    s.cacheTTL.String(),
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["pendingWarmJobs"] = s.tracker.Size()
		stats["cachedSnapshots"] = s.cache.Len()
		stats["connectedTenants"] = s.store.Count(ctx)
	}

	return stats
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
