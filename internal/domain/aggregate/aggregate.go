// Package aggregate folds raw platform entities into a metrics snapshot.
package aggregate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	model "github.com/pulseboard/pulseboard/internal/domain/model"
	types "github.com/pulseboard/pulseboard/internal/domain/types"
	"github.com/pulseboard/pulseboard/pkg/logger"
	"github.com/pulseboard/pulseboard/pkg/metrics"
)

// Guest-count sanity bounds. Values outside [1, 500] are not treated as
// guest counts; single values above the hard cap and aggregate totals above
// the sum cap indicate malformed upstream data.
const (
	guestMin      = 1
	guestMax      = 500
	guestHardCap  = 1000
	guestSumCap   = 10_000
	wonStatus     = "won"
	percentageMax = 100
)

// Input carries one tenant's raw entities for a single aggregation pass.
type Input struct {
	TenantID      string
	Range         model.DateRange
	Contacts      []model.RawContact
	Opportunities []model.RawOpportunity
	Events        []model.RawCalendarEvent
	Funnels       []model.RawFunnel
	Pages         []model.RawFunnelPage

	// Partial marks the input as incomplete because some resource fetches
	// failed transiently. It is carried through to the snapshot unchanged.
	Partial bool
}

// Aggregator computes a snapshot from raw entities. Implementations must be
// pure with respect to the input: identical input yields an identical
// snapshot, modulo the generated id and timestamp.
type Aggregator interface {
	// Build computes a snapshot, honoring ctx for cancellation.
	Build(ctx context.Context, in Input) (*types.MetricsSnapshot, error)
}

// InMemoryAggregator implements Aggregator with in-process fold passes.
type InMemoryAggregator struct {
	now    func() time.Time
	newID  func() string
	logger logger.Logger
}

// NewInMemoryAggregator creates a new aggregator with configuration options.
func NewInMemoryAggregator(opts ...Option) *InMemoryAggregator {
	a := &InMemoryAggregator{
		now:   time.Now,
		newID: uuid.NewString,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = logger.Get()
	}

	return a
}

// Build folds the raw entities into a snapshot.
func (a *InMemoryAggregator) Build(ctx context.Context, in Input) (*types.MetricsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("aggregation cancelled: %w", err)
	}

	started := a.now()

	guests := a.guestStats(ctx, in.TenantID, in.Contacts)
	pipelineValue, wonRate := opportunityTotals(in.Opportunities)
	funnel := funnelStats(in.Pages)

	snap := &types.MetricsSnapshot{
		ID:       a.newID(),
		TenantID: in.TenantID,
		Start:    in.Range.Start,
		End:      in.Range.End,
		Summary: types.Summary{
			Contacts:        len(in.Contacts),
			Opportunities:   len(in.Opportunities),
			CalendarEvents:  len(in.Events),
			Funnels:         len(in.Funnels),
			FunnelPages:     len(in.Pages),
			PipelineValue:   pipelineValue,
			WonRate:         wonRate,
			ExcludedRecords: guests.Excluded,
		},
		BySource:    breakdown(in.Contacts, func(c model.RawContact) string { return c.Source }),
		ByStage:     breakdown(in.Opportunities, func(o model.RawOpportunity) string { return o.StageName }),
		ByEventType: breakdown(in.Events, func(e model.RawCalendarEvent) string { return e.EventType }),
		Guests:      guests,
		Funnel:      funnel,
		Partial:     in.Partial,
		GeneratedAt: a.now(),
	}

	metrics.RecordSnapshotBuilt()
	metrics.RecordSnapshotBuildDuration(float64(a.now().Sub(started).Milliseconds()))

	return snap, nil
}

// guestStats extracts guest counts from contact custom fields and buckets
// them into fixed ranges.
func (a *InMemoryAggregator) guestStats(ctx context.Context, tenantID string, contacts []model.RawContact) types.GuestStats {
	stats := types.GuestStats{Buckets: newGuestBuckets()}

	for _, c := range contacts {
		count, status := extractGuestCount(c.CustomFields)
		switch status {
		case guestValid:
			stats.SampleSize++
			stats.Total += count
			for i := range stats.Buckets {
				b := &stats.Buckets[i]
				if count >= b.Min && (b.Max == 0 || count <= b.Max) {
					b.Count++
					break
				}
			}
		case guestInvalid:
			stats.Excluded++
			metrics.RecordRecordExcluded("guest_count_out_of_range")
			if count > guestHardCap {
				a.logger.Warn(ctx, "discarding implausible guest count",
					logger.String("tenant_id", tenantID),
					logger.Int("value", count),
				)
			}
		case guestAbsent:
		}
	}

	if stats.Total > guestSumCap {
		a.logger.Warn(ctx, "guest count total exceeds sanity cap, resetting",
			logger.String("tenant_id", tenantID),
			logger.Int("total", stats.Total),
			logger.Int("cap", guestSumCap),
		)
		metrics.RecordGuestTotalReset()
		stats.Total = 0
	}

	if stats.SampleSize > 0 {
		stats.Average = round2(float64(stats.Total) / float64(stats.SampleSize))
		for i := range stats.Buckets {
			stats.Buckets[i].Percentage = percentage(stats.Buckets[i].Count, stats.SampleSize)
		}
	}

	return stats
}

type guestStatus int

const (
	guestAbsent guestStatus = iota
	guestValid
	guestInvalid
)

// extractGuestCount scans the ordered custom fields for the first value that
// parses as an integer in [guestMin, guestMax]. Parseable values outside the
// range mark the record invalid; non-numeric values are simply skipped. On
// an invalid record the offending value is returned for diagnostics.
func extractGuestCount(fields []model.CustomField) (int, guestStatus) {
	status := guestAbsent
	offending := 0
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f.Value))
		if err != nil {
			continue
		}
		if n >= guestMin && n <= guestMax {
			return n, guestValid
		}
		// A numeric field outside the plausible range taints the record,
		// but a later in-range field still wins.
		status = guestInvalid
		offending = n
	}

	return offending, status
}

func newGuestBuckets() []types.GuestBucket {
	return []types.GuestBucket{
		{Label: "1-25", Min: 1, Max: 25},
		{Label: "26-50", Min: 26, Max: 50},
		{Label: "51-100", Min: 51, Max: 100},
		{Label: "101-200", Min: 101, Max: 200},
		{Label: "200+", Min: 201, Max: 0},
	}
}

// breakdown counts occurrences per category and attaches percentages,
// ordered by descending count with name as the tiebreaker.
func breakdown[T any](items []T, key func(T) string) []types.CategoryCount {
	if len(items) == 0 {
		return nil
	}

	counts := make(map[string]int, len(items))
	total := 0
	for _, item := range items {
		name := key(item)
		if name == "" {
			name = "unknown"
		}
		counts[name]++
		total++
	}

	rows := make([]types.CategoryCount, 0, len(counts))
	for name, count := range counts {
		rows = append(rows, types.CategoryCount{
			Name:       name,
			Count:      count,
			Percentage: percentage(count, total),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Name < rows[j].Name
	})

	return rows
}

func opportunityTotals(opps []model.RawOpportunity) (pipelineValue, wonRate float64) {
	won := 0
	for _, o := range opps {
		pipelineValue += o.Value
		if strings.EqualFold(o.Status, wonStatus) {
			won++
		}
	}

	return pipelineValue, percentage(won, len(opps))
}

func funnelStats(pages []model.RawFunnelPage) types.FunnelStats {
	var fs types.FunnelStats
	for _, p := range pages {
		fs.TotalViews += p.Views
		fs.TotalClicks += p.Clicks
		fs.TotalConversions += p.Conversions
	}

	fs.ClickRate = percentage(fs.TotalClicks, fs.TotalViews)
	fs.ConversionRate = percentage(fs.TotalConversions, fs.TotalViews)

	return fs
}

// percentage is zero-safe: a non-positive denominator yields 0, never NaN.
func percentage(count, total int) float64 {
	if total <= 0 {
		return 0
	}

	return round2(float64(count) / float64(total) * percentageMax)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
