package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/teemow/calagent/internal/calendar"
	"github.com/teemow/calagent/internal/intent"
)

// promptTime renders a start time for confirmation prompts, matching the
// style of calendar.FormatEventTime.
func promptTime(t time.Time) string {
	if t.IsZero() {
		return "unknown time"
	}
	return t.Format("Monday, January 2 at 3:04 PM")
}

func createPrompt(it intent.CreateIntent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I'll create '%s' on %s", displayTitle(it.Title), promptTime(it.Start))
	if it.Location != "" {
		fmt.Fprintf(&b, " at %s", it.Location)
	}
	if len(it.Attendees) > 0 {
		fmt.Fprintf(&b, " with %s", strings.Join(it.Attendees, ", "))
	}
	b.WriteString(". Should I proceed?")
	return b.String()
}

// updatePrompt describes the change set. The title shown is the new title if
// the update renames the event, otherwise the current one; the time shown is
// the new start time, or "unknown time" when only non-time fields change.
func updatePrompt(event calendar.Event, changes intent.EventChanges) string {
	title := changes.Title
	if title == "" {
		title = event.Title
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I'll update '%s' to %s", displayTitle(title), promptTime(changes.Start))
	if changes.Location != "" {
		fmt.Fprintf(&b, " at %s", changes.Location)
	}
	b.WriteString(". Should I proceed?")
	return b.String()
}

func deletePrompt(event calendar.Event) string {
	return fmt.Sprintf("I'll cancel '%s' scheduled for %s. Should I proceed?",
		displayTitle(event.Title), calendar.FormatEventTime(event))
}
