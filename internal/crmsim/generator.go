// Package crmsim simulates the upstream CRM platform for local
// development and integration testing. It serves the same REST surface the
// real platform exposes, with deterministic per-tenant datasets and
// injectable auth and rate-limit faults.
package crmsim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"time"
)

// Dataset size defaults per tenant.
const (
	defaultContactCount     = 230
	defaultOpportunityCount = 40
	defaultEventCount       = 60
	defaultFunnelCount      = 3
	defaultPagesPerFunnel   = 4
)

// Guest-count generation: most contacts carry a plausible value, a few
// carry garbage to exercise the consumer's sanity filters.
const (
	guestFieldID      = "cf-guests"
	colorFieldID      = "cf-color"
	invalidGuestEvery = 40
	absentGuestEvery  = 7
)

var (
	contactSources = []string{"google", "facebook", "referral", "organic", "email"}
	stageNames     = []string{"New Lead", "Qualified", "Proposal", "Negotiation", "Closed"}
	oppStatuses    = []string{"open", "open", "won", "lost"}
	eventTypes     = []string{"consultation", "tasting", "site-visit", "follow-up"}
	eventStatuses  = []string{"confirmed", "showed", "cancelled"}
	colors         = []string{"blue", "gold", "ivory", "sage"}
)

type simContact struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Email        string           `json:"email"`
	Phone        string           `json:"phone"`
	Source       string           `json:"source"`
	CustomFields []simCustomField `json:"customFields"`
	DateAdded    time.Time        `json:"dateAdded"`
}

type simCustomField struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type simOpportunity struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	MonetaryValue float64   `json:"monetaryValue"`
	Status        string    `json:"status"`
	StageID       string    `json:"pipelineStageId"`
	StageName     string    `json:"pipelineStageName"`
	ContactID     string    `json:"contactId"`
	CreatedAt     time.Time `json:"createdAt"`
}

type simEvent struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	EventType string    `json:"appointmentType"`
	Status    string    `json:"appointmentStatus"`
	StartTime time.Time `json:"startTime"`
}

type simFunnel struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type simFunnelPage struct {
	ID          string `json:"_id"`
	FunnelID    string `json:"funnelId"`
	Name        string `json:"name"`
	Views       int    `json:"views"`
	Clicks      int    `json:"clicks"`
	Conversions int    `json:"conversions"`
}

type tenantData struct {
	contacts      []simContact
	opportunities []simOpportunity
	events        []simEvent
	funnels       []simFunnel
	pages         []simFunnelPage
}

// seedFor derives a stable per-tenant seed so the same tenant id always
// yields the same dataset.
func seedFor(tenantID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tenantID))
	return int64(h.Sum64())
}

func generateTenantData(tenantID string, contacts, opportunities, events, funnels int) *tenantData {
	rng := rand.New(rand.NewSource(seedFor(tenantID))) //nolint:gosec // deterministic fixture data
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	data := &tenantData{}

	for i := 0; i < contacts; i++ {
		fields := []simCustomField{{ID: colorFieldID, Value: colors[rng.Intn(len(colors))]}}
		switch {
		case i%invalidGuestEvery == invalidGuestEvery-1:
			fields = append(fields, simCustomField{ID: guestFieldID, Value: strconv.Itoa(1000 + rng.Intn(9000))})
		case i%absentGuestEvery == absentGuestEvery-1:
			// No guest field at all.
		default:
			fields = append(fields, simCustomField{ID: guestFieldID, Value: strconv.Itoa(1 + rng.Intn(200))})
		}

		data.contacts = append(data.contacts, simContact{
			ID:           fmt.Sprintf("%s-contact-%d", tenantID, i),
			Name:         fmt.Sprintf("Contact %d", i),
			Email:        fmt.Sprintf("contact%d@%s.example", i, tenantID),
			Phone:        fmt.Sprintf("+1555%07d", rng.Intn(10_000_000)),
			Source:       contactSources[rng.Intn(len(contactSources))],
			CustomFields: fields,
			DateAdded:    base.Add(time.Duration(rng.Intn(90*24)) * time.Hour),
		})
	}

	for i := 0; i < opportunities; i++ {
		stage := rng.Intn(len(stageNames))
		data.opportunities = append(data.opportunities, simOpportunity{
			ID:            fmt.Sprintf("%s-opp-%d", tenantID, i),
			Name:          fmt.Sprintf("Opportunity %d", i),
			MonetaryValue: float64(500+rng.Intn(20_000)) / 1.0,
			Status:        oppStatuses[rng.Intn(len(oppStatuses))],
			StageID:       "stage-" + strconv.Itoa(stage),
			StageName:     stageNames[stage],
			ContactID:     fmt.Sprintf("%s-contact-%d", tenantID, rng.Intn(maxInt(contacts, 1))),
			CreatedAt:     base.Add(time.Duration(rng.Intn(90*24)) * time.Hour),
		})
	}

	for i := 0; i < events; i++ {
		data.events = append(data.events, simEvent{
			ID:        fmt.Sprintf("%s-event-%d", tenantID, i),
			Title:     fmt.Sprintf("Appointment %d", i),
			EventType: eventTypes[rng.Intn(len(eventTypes))],
			Status:    eventStatuses[rng.Intn(len(eventStatuses))],
			StartTime: base.Add(time.Duration(rng.Intn(90*24)) * time.Hour),
		})
	}

	for i := 0; i < funnels; i++ {
		funnelID := fmt.Sprintf("%s-funnel-%d", tenantID, i)
		data.funnels = append(data.funnels, simFunnel{
			ID:   funnelID,
			Name: fmt.Sprintf("Funnel %d", i),
		})

		for p := 0; p < defaultPagesPerFunnel; p++ {
			views := 200 + rng.Intn(5000)
			clicks := rng.Intn(views / 2)
			data.pages = append(data.pages, simFunnelPage{
				ID:          fmt.Sprintf("%s-page-%d", funnelID, p),
				FunnelID:    funnelID,
				Name:        fmt.Sprintf("Page %d", p),
				Views:       views,
				Clicks:      clicks,
				Conversions: rng.Intn(maxInt(clicks, 1)),
			})
		}
	}

	return data
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
