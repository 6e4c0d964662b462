// Package model contains domain models passed between layers.
package model

import (
	"time"
)

// AuthClass distinguishes the two credential authorization classes the
// platform issues.
type AuthClass string

const (
	// AuthClassAgency grants agency-wide access; requests made with it must
	// carry an explicit location id.
	AuthClassAgency AuthClass = "agency"

	// AuthClassLocation is scoped to a single location by construction.
	AuthClassLocation AuthClass = "location"
)

// Credential holds the OAuth material for one (platform, tenant) pair.
// It is replaced atomically on refresh, never partially updated.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	AuthClass    AuthClass `json:"auth_class"`
	Scopes       []string  `json:"scopes,omitempty"`
	LocationID   string    `json:"location_id,omitempty"`
}

// Expired reports whether the access token is past its expiry.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Tenant is a single location of the upstream platform.
type Tenant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Country string `json:"country,omitempty"`
}

// DateRange bounds an analytics query. End is inclusive.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// CustomField is one entry of a contact's ordered custom field sequence.
type CustomField struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// RawContact is a contact as fetched from the platform. Raw entities are
// immutable and discarded after one aggregation pass.
type RawContact struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Phone        string        `json:"phone"`
	Source       string        `json:"source"`
	CustomFields []CustomField `json:"custom_fields"`
	CreatedAt    time.Time     `json:"created_at"`
}

// RawOpportunity is an opportunity as fetched from the platform.
type RawOpportunity struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Value     float64   `json:"value"`
	Status    string    `json:"status"`
	StageID   string    `json:"stage_id"`
	StageName string    `json:"stage_name"`
	ContactID string    `json:"contact_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RawCalendarEvent is a calendar event as fetched from the platform.
type RawCalendarEvent struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	EventType string    `json:"event_type"`
	Status    string    `json:"status"`
	StartAt   time.Time `json:"start_at"`
}

// RawFunnel is a funnel container; its pages carry the traffic counts.
type RawFunnel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RawFunnelPage is one page of a funnel with its traffic counts.
type RawFunnelPage struct {
	ID          string `json:"id"`
	FunnelID    string `json:"funnel_id"`
	Name        string `json:"name"`
	Views       int    `json:"views"`
	Clicks      int    `json:"clicks"`
	Conversions int    `json:"conversions"`
}

// WarmJob asks the warm workers to pre-compute one tenant snapshot.
type WarmJob struct {
	TenantID string
	Range    DateRange
}

// Key returns a stable identity for pending-job tracking.
func (j WarmJob) Key() string {
	return j.TenantID + "|" + j.Range.Start.UTC().Format(time.RFC3339) + "|" + j.Range.End.UTC().Format(time.RFC3339)
}
