// Package types contains common types used across the application
package types

import "time"

// CategoryCount is one row of a category breakdown, ordered by descending
// count when returned in a slice.
type CategoryCount struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// GuestBucket is one range of the guest-count distribution.
type GuestBucket struct {
	Label      string  `json:"label"`
	Min        int     `json:"min"`
	Max        int     `json:"max"` // 0 means open-ended
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// GuestStats summarizes the guest-count custom field across contacts.
type GuestStats struct {
	SampleSize int           `json:"sample_size"`
	Total      int           `json:"total"`
	Average    float64       `json:"average"`
	Excluded   int           `json:"excluded"`
	Buckets    []GuestBucket `json:"buckets"`
}

// FunnelStats aggregates page traffic across all funnels.
type FunnelStats struct {
	TotalViews       int     `json:"total_views"`
	TotalClicks      int     `json:"total_clicks"`
	TotalConversions int     `json:"total_conversions"`
	ClickRate        float64 `json:"click_rate"`
	ConversionRate   float64 `json:"conversion_rate"`
}

// Summary carries the top-line counters of a snapshot.
type Summary struct {
	Contacts        int     `json:"contacts"`
	Opportunities   int     `json:"opportunities"`
	CalendarEvents  int     `json:"calendar_events"`
	Funnels         int     `json:"funnels"`
	FunnelPages     int     `json:"funnel_pages"`
	PipelineValue   float64 `json:"pipeline_value"`
	WonRate         float64 `json:"won_rate"`
	ExcludedRecords int     `json:"excluded_records"`
}

// MetricsSnapshot is the aggregation output for one tenant and date range.
// It is immutable once created and replaced wholesale on refresh.
type MetricsSnapshot struct {
	ID       string    `json:"id"`
	TenantID string    `json:"tenant_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`

	Summary     Summary         `json:"summary"`
	BySource    []CategoryCount `json:"by_source"`
	ByStage     []CategoryCount `json:"by_stage"`
	ByEventType []CategoryCount `json:"by_event_type"`
	Guests      GuestStats      `json:"guests"`
	Funnel      FunnelStats     `json:"funnel"`

	// Partial marks a best-effort snapshot built despite transient fetch
	// failures on some resources.
	Partial bool `json:"partial"`

	GeneratedAt time.Time `json:"generated_at"`
}
