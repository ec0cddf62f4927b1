package calendar

import (
	"strings"
	"time"
)

// MatchEvents returns the events a free-text reference like "my 3pm meeting"
// or "the standup" plausibly points at. An event matches when its start
// time-of-day appears in the query ("3pm", "3:00pm") or its title is a
// substring of the query. All matches are returned so the caller can ask
// for clarification instead of guessing between candidates.
func MatchEvents(query string, events []Event) []Event {
	lower := strings.ToLower(query)

	var matches []Event
	for _, event := range events {
		if matchesByTime(lower, event) || matchesByTitle(lower, event) {
			matches = append(matches, event)
		}
	}
	return matches
}

func matchesByTime(query string, event Event) bool {
	if event.Start.IsZero() || event.AllDay {
		return false
	}
	hour := strings.ToLower(event.Start.Format("3PM"))
	hourMinute := strings.ToLower(event.Start.Format("3:04PM"))
	return strings.Contains(query, hourMinute) || strings.Contains(query, hour)
}

func matchesByTitle(query string, event Event) bool {
	title := strings.ToLower(strings.TrimSpace(event.Title))
	return title != "" && strings.Contains(query, title)
}

// DefaultMatchWindow returns the search window used when resolving an event
// reference: the rest of today through the given number of days ahead.
func DefaultMatchWindow(now time.Time, days int) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, days)
}
