package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	credentials "github.com/pulseboard/pulseboard/internal/adapters/credentials"
	model "github.com/pulseboard/pulseboard/internal/domain/model"
)

const dateFormat = "2006-01-02"

// searchRequest is the body shape of the POST search endpoints.
type searchRequest struct {
	LocationID string `json:"locationId"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
	StartDate  string `json:"startDate,omitempty"`
	EndDate    string `json:"endDate,omitempty"`
}

func (c *Client) searchBody(tenant string, r model.DateRange, limit, offset int) searchRequest {
	body := searchRequest{
		LocationID: tenant,
		Limit:      limit,
		Offset:     offset,
	}
	if !r.Start.IsZero() {
		body.StartDate = r.Start.Format(dateFormat)
	}
	if !r.End.IsZero() {
		body.EndDate = r.End.Format(dateFormat)
	}

	return body
}

// SearchContacts fetches every contact for the tenant in the date range.
func (c *Client) SearchContacts(ctx context.Context, tenant string, r model.DateRange) ([]model.RawContact, error) {
	wire, err := fetchAll(ctx, c, "contacts", func(ctx context.Context, limit, offset int) ([]wireContact, error) {
		var envelope contactsEnvelope
		if err := c.execute(ctx, tenant, http.MethodPost, "/contacts/search", nil, c.searchBody(tenant, r, limit, offset), &envelope); err != nil {
			return nil, err
		}
		return envelope.Contacts, nil
	})
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}

	contacts := make([]model.RawContact, 0, len(wire))
	for _, w := range wire {
		contacts = append(contacts, w.toModel())
	}

	return contacts, nil
}

// SearchOpportunities fetches every opportunity for the tenant in the date
// range.
func (c *Client) SearchOpportunities(ctx context.Context, tenant string, r model.DateRange) ([]model.RawOpportunity, error) {
	wire, err := fetchAll(ctx, c, "opportunities", func(ctx context.Context, limit, offset int) ([]wireOpportunity, error) {
		var envelope opportunitiesEnvelope
		if err := c.execute(ctx, tenant, http.MethodPost, "/opportunities/search", nil, c.searchBody(tenant, r, limit, offset), &envelope); err != nil {
			return nil, err
		}
		return envelope.Opportunities, nil
	})
	if err != nil {
		return nil, fmt.Errorf("search opportunities: %w", err)
	}

	opps := make([]model.RawOpportunity, 0, len(wire))
	for _, w := range wire {
		opps = append(opps, w.toModel())
	}

	return opps, nil
}

// ListCalendarEvents fetches every calendar event for the tenant in the
// date range.
func (c *Client) ListCalendarEvents(ctx context.Context, tenant string, r model.DateRange) ([]model.RawCalendarEvent, error) {
	wire, err := fetchAll(ctx, c, "calendar_events", func(ctx context.Context, limit, offset int) ([]wireCalendarEvent, error) {
		query := url.Values{
			"locationId": {tenant},
			"limit":      {strconv.Itoa(limit)},
			"offset":     {strconv.Itoa(offset)},
		}
		if !r.Start.IsZero() {
			query.Set("startDate", r.Start.Format(dateFormat))
		}
		if !r.End.IsZero() {
			query.Set("endDate", r.End.Format(dateFormat))
		}

		var envelope eventsEnvelope
		if err := c.execute(ctx, tenant, http.MethodGet, "/calendars/events", query, nil, &envelope); err != nil {
			return nil, err
		}
		return envelope.Events, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}

	events := make([]model.RawCalendarEvent, 0, len(wire))
	for _, w := range wire {
		events = append(events, w.toModel())
	}

	return events, nil
}

// ListFunnels fetches the tenant's funnels.
func (c *Client) ListFunnels(ctx context.Context, tenant string) ([]model.RawFunnel, error) {
	wire, err := fetchAll(ctx, c, "funnels", func(ctx context.Context, limit, offset int) ([]wireFunnel, error) {
		query := url.Values{
			"locationId": {tenant},
			"limit":      {strconv.Itoa(limit)},
			"offset":     {strconv.Itoa(offset)},
		}

		var envelope funnelsEnvelope
		if err := c.execute(ctx, tenant, http.MethodGet, "/funnels/", query, nil, &envelope); err != nil {
			return nil, err
		}
		return envelope.Funnels, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list funnels: %w", err)
	}

	funnels := make([]model.RawFunnel, 0, len(wire))
	for _, w := range wire {
		funnels = append(funnels, w.toModel())
	}

	return funnels, nil
}

// ListFunnelPages fetches the pages of one funnel with their traffic
// counts.
func (c *Client) ListFunnelPages(ctx context.Context, tenant, funnelID string) ([]model.RawFunnelPage, error) {
	path := "/funnels/" + url.PathEscape(funnelID) + "/pages"

	wire, err := fetchAll(ctx, c, "funnel_pages", func(ctx context.Context, limit, offset int) ([]wireFunnelPage, error) {
		query := url.Values{
			"locationId": {tenant},
			"limit":      {strconv.Itoa(limit)},
			"offset":     {strconv.Itoa(offset)},
		}

		var envelope pagesEnvelope
		if err := c.execute(ctx, tenant, http.MethodGet, path, query, nil, &envelope); err != nil {
			return nil, err
		}
		return envelope.Pages, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list funnel pages: %w", err)
	}

	pages := make([]model.RawFunnelPage, 0, len(wire))
	for _, w := range wire {
		pages = append(pages, w.toModel())
	}

	return pages, nil
}

// ListLocations lists every location visible to an agency credential. The
// tenant here is the agency's own id.
func (c *Client) ListLocations(ctx context.Context, agencyTenant string) ([]model.Tenant, error) {
	cred, err := c.store.Get(ctx, credentials.Key{Platform: PlatformName, Tenant: agencyTenant})
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	if cred.AuthClass != model.AuthClassAgency {
		return nil, ErrAgencyOnly
	}

	wire, err := fetchAll(ctx, c, "locations", func(ctx context.Context, limit, offset int) ([]wireLocation, error) {
		query := url.Values{
			"limit":  {strconv.Itoa(limit)},
			"offset": {strconv.Itoa(offset)},
		}

		var envelope locationsEnvelope
		if err := c.execute(ctx, agencyTenant, http.MethodGet, "/locations/", query, nil, &envelope); err != nil {
			return nil, err
		}
		return envelope.Locations, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}

	tenants := make([]model.Tenant, 0, len(wire))
	for _, w := range wire {
		tenants = append(tenants, w.toModel())
	}

	return tenants, nil
}

// PageSize exposes the configured page size for callers sizing prefetches.
func (c *Client) PageSize() int { return c.pageSize }

// Healthy pings the platform cheaply. Used by readiness checks.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ping", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode < 500
}
