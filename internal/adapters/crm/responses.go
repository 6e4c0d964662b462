package crm

import (
	"time"

	model "github.com/pulseboard/pulseboard/internal/domain/model"
)

// Wire envelopes for the platform's REST responses. Each list endpoint
// wraps its items in a named field; decoding into these tagged shapes is
// the validation boundary for untrusted upstream payloads.

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	UserType     string `json:"userType"`
	LocationID   string `json:"locationId"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wireCustomField struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type wireContact struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone"`
	Source       string            `json:"source"`
	CustomFields []wireCustomField `json:"customFields"`
	DateAdded    time.Time         `json:"dateAdded"`
}

type contactsEnvelope struct {
	Contacts []wireContact `json:"contacts"`
	Total    int           `json:"total"`
}

type wireOpportunity struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	MonetaryValue float64   `json:"monetaryValue"`
	Status        string    `json:"status"`
	StageID       string    `json:"pipelineStageId"`
	StageName     string    `json:"pipelineStageName"`
	ContactID     string    `json:"contactId"`
	CreatedAt     time.Time `json:"createdAt"`
}

type opportunitiesEnvelope struct {
	Opportunities []wireOpportunity `json:"opportunities"`
	Total         int               `json:"total"`
}

type wireCalendarEvent struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	EventType string    `json:"appointmentType"`
	Status    string    `json:"appointmentStatus"`
	StartTime time.Time `json:"startTime"`
}

type eventsEnvelope struct {
	Events []wireCalendarEvent `json:"events"`
	Total  int                 `json:"total"`
}

type wireFunnel struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type funnelsEnvelope struct {
	Funnels []wireFunnel `json:"funnels"`
	Total   int          `json:"total"`
}

type wireFunnelPage struct {
	ID          string `json:"_id"`
	FunnelID    string `json:"funnelId"`
	Name        string `json:"name"`
	Views       int    `json:"views"`
	Clicks      int    `json:"clicks"`
	Conversions int    `json:"conversions"`
}

type pagesEnvelope struct {
	Pages []wireFunnelPage `json:"pages"`
	Total int              `json:"total"`
}

type wireLocation struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Country string `json:"country"`
}

type locationsEnvelope struct {
	Locations []wireLocation `json:"locations"`
	Total     int            `json:"total"`
}

func (c wireContact) toModel() model.RawContact {
	fields := make([]model.CustomField, 0, len(c.CustomFields))
	for _, f := range c.CustomFields {
		fields = append(fields, model.CustomField{ID: f.ID, Value: f.Value})
	}

	return model.RawContact{
		ID:           c.ID,
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		Source:       c.Source,
		CustomFields: fields,
		CreatedAt:    c.DateAdded,
	}
}

func (o wireOpportunity) toModel() model.RawOpportunity {
	return model.RawOpportunity{
		ID:        o.ID,
		Title:     o.Name,
		Value:     o.MonetaryValue,
		Status:    o.Status,
		StageID:   o.StageID,
		StageName: o.StageName,
		ContactID: o.ContactID,
		CreatedAt: o.CreatedAt,
	}
}

func (e wireCalendarEvent) toModel() model.RawCalendarEvent {
	return model.RawCalendarEvent{
		ID:        e.ID,
		Title:     e.Title,
		EventType: e.EventType,
		Status:    e.Status,
		StartAt:   e.StartTime,
	}
}

func (f wireFunnel) toModel() model.RawFunnel {
	return model.RawFunnel{ID: f.ID, Name: f.Name}
}

func (p wireFunnelPage) toModel() model.RawFunnelPage {
	return model.RawFunnelPage{
		ID:          p.ID,
		FunnelID:    p.FunnelID,
		Name:        p.Name,
		Views:       p.Views,
		Clicks:      p.Clicks,
		Conversions: p.Conversions,
	}
}

func (l wireLocation) toModel() model.Tenant {
	return model.Tenant{ID: l.ID, Name: l.Name, Email: l.Email, Country: l.Country}
}
