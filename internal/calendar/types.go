package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// Event is the agent's view of a calendar event.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Organizer   string
	Status      string
	Attendees   []string
}

// EventInput holds the fields for creating a new event.
type EventInput struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []string
}

// EventPatch holds the fields an update applies to an existing event.
// Zero values mean "leave unchanged".
type EventPatch struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []string
}

// toEvent converts a Google Calendar event, normalizing times into loc.
func toEvent(event *calendar.Event, loc *time.Location) Event {
	if event == nil {
		return Event{}
	}

	e := Event{
		ID:          event.Id,
		Title:       event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Status:      event.Status,
	}

	if event.Organizer != nil {
		e.Organizer = event.Organizer.Email
		if event.Organizer.DisplayName != "" {
			e.Organizer = event.Organizer.DisplayName
		}
	}

	for _, att := range event.Attendees {
		if att.Email != "" {
			e.Attendees = append(e.Attendees, att.Email)
		}
	}

	e.Start, e.AllDay = parseEventTime(event.Start, loc)
	e.End, _ = parseEventTime(event.End, loc)

	return e
}

// parseEventTime handles the two Google Calendar time encodings: DateTime
// for timed events and Date for all-day events.
func parseEventTime(edt *calendar.EventDateTime, loc *time.Location) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t.In(loc), false
		}
		return time.Time{}, false
	}
	if edt.Date != "" {
		if t, err := time.ParseInLocation("2006-01-02", edt.Date, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
