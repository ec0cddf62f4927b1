package calendar

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Gateway is the calendar boundary the orchestrator depends on. Calls are
// synchronous; failures surface as errors and are never retried here.
type Gateway interface {
	ListEvents(ctx context.Context, start, end time.Time, maxResults int64) ([]Event, error)
	CreateEvent(ctx context.Context, input EventInput) (*Event, error)
	UpdateEvent(ctx context.Context, eventID string, patch EventPatch) (*Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// Client implements Gateway on the Google Calendar API for a single
// calendar.
type Client struct {
	svc        *calendar.Service
	calendarID string
	timezone   string
	loc        *time.Location
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// CalendarID is the calendar to operate on ("primary" for the
	// authenticated user's own calendar).
	CalendarID string

	// Timezone is the IANA name sent with event times.
	Timezone string

	// Location must match Timezone; event times are normalized into it.
	Location *time.Location

	// TokenSource authenticates API calls (OAuth user token or service
	// account).
	TokenSource oauth2.TokenSource
}

// NewClient creates a Calendar client for the configured calendar.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.TokenSource == nil {
		return nil, fmt.Errorf("token source cannot be nil")
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	svc, err := calendar.NewService(ctx, option.WithTokenSource(cfg.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{
		svc:        svc,
		calendarID: cfg.CalendarID,
		timezone:   cfg.Timezone,
		loc:        cfg.Location,
	}, nil
}

// ListEvents lists events within a time range, expanded to single events and
// ordered by start time.
func (c *Client) ListEvents(ctx context.Context, start, end time.Time, maxResults int64) ([]Event, error) {
	call := c.svc.Events.List(c.calendarID).
		Context(ctx).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	if maxResults > 0 {
		call = call.MaxResults(maxResults)
	}

	result, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var events []Event
	for _, item := range result.Items {
		events = append(events, toEvent(item, c.loc))
	}

	return events, nil
}

// CreateEvent creates a new event on the configured calendar.
func (c *Client) CreateEvent(ctx context.Context, input EventInput) (*Event, error) {
	tz := input.TimeZone
	if tz == "" {
		tz = c.timezone
	}

	event := &calendar.Event{
		Summary:     input.Title,
		Description: input.Description,
		Location:    input.Location,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.Format(time.RFC3339),
			TimeZone: tz,
		},
	}

	for _, email := range input.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	created, err := c.svc.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	result := toEvent(created, c.loc)
	return &result, nil
}

// UpdateEvent applies a patch to an existing event. The event is fetched
// first so unspecified fields keep their current values.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, patch EventPatch) (*Event, error) {
	existing, err := c.svc.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get existing event: %w", err)
	}

	tz := patch.TimeZone
	if tz == "" {
		tz = c.timezone
	}

	if patch.Title != "" {
		existing.Summary = patch.Title
	}
	if patch.Description != "" {
		existing.Description = patch.Description
	}
	if patch.Location != "" {
		existing.Location = patch.Location
	}
	if !patch.Start.IsZero() {
		existing.Start = &calendar.EventDateTime{
			DateTime: patch.Start.Format(time.RFC3339),
			TimeZone: tz,
		}
	}
	if !patch.End.IsZero() {
		existing.End = &calendar.EventDateTime{
			DateTime: patch.End.Format(time.RFC3339),
			TimeZone: tz,
		}
	}
	if len(patch.Attendees) > 0 {
		existing.Attendees = nil
		for _, email := range patch.Attendees {
			existing.Attendees = append(existing.Attendees, &calendar.EventAttendee{Email: email})
		}
	}

	updated, err := c.svc.Events.Update(c.calendarID, eventID, existing).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	result := toEvent(updated, c.loc)
	return &result, nil
}

// DeleteEvent deletes an event from the configured calendar.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}
