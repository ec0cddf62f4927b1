package calendar

import (
	"fmt"
	"strings"
)

// FormatEvent renders an event for inclusion in an agent response.
func FormatEvent(event Event) string {
	title := event.Title
	if title == "" {
		title = "No Title"
	}

	var timeStr string
	if event.AllDay {
		timeStr = fmt.Sprintf("%s (All day)", event.Start.Format("Monday, January 2, 2006"))
	} else {
		timeStr = fmt.Sprintf("%s - %s",
			event.Start.Format("Monday, January 2, 2006, 3:04 PM"),
			event.End.Format("3:04 PM"))
	}

	organizer := event.Organizer
	if organizer == "" {
		organizer = "Unknown"
	}

	var details []string
	if event.Location != "" {
		details = append(details, "Location: "+event.Location)
	}
	if event.Description != "" {
		details = append(details, "Description: "+event.Description)
	}
	if len(event.Attendees) > 0 {
		details = append(details, "Attendees: "+strings.Join(event.Attendees, ", "))
	}
	detailsStr := "No additional details"
	if len(details) > 0 {
		detailsStr = strings.Join(details, ", ")
	}

	return fmt.Sprintf("Event: %s\nTime: %s\nOrganizer: %s\nDetails: %s", title, timeStr, organizer, detailsStr)
}

// FormatEventTime renders an event time for confirmation prompts, e.g.
// "Sunday, October 12 at 9:00 PM".
func FormatEventTime(event Event) string {
	if event.Start.IsZero() {
		return "unknown time"
	}
	return event.Start.Format("Monday, January 2 at 3:04 PM")
}
