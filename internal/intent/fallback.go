package intent

import (
	"strings"
	"time"
)

// Keyword sets for the fallback classifier, checked in order. Confirm and
// cancel come first so a bare "yes"/"no" never reads as a calendar query.
var (
	confirmWords = []string{"yes", "confirm", "ok", "correct", "proceed", "do it", "go ahead"}
	cancelWords  = []string{"no", "cancel", "undo", "dont", "don't", "stop", "nevermind"}
	listWords    = []string{"list", "show", "what", "agenda", "schedule", "calendar"}
	createWords  = []string{"create", "book", "add", "make"}
	updateWords  = []string{"update", "change", "reschedule", "move"}
	deleteWords  = []string{"delete", "remove"}
)

// fallbackParse classifies an utterance by keywords when the language model
// is unreachable. Only intents that need no extracted parameters can be
// produced; anything requiring entity extraction becomes a clarification.
func fallbackParse(utterance string, now time.Time, loc *time.Location) (Intent, error) {
	lower := strings.ToLower(utterance)

	switch {
	case containsAny(lower, confirmWords):
		return ConfirmIntent{}, nil
	case containsAny(lower, cancelWords):
		return CancelIntent{}, nil
	case containsAny(lower, listWords):
		start := startOfDay(now.In(loc))
		return QueryIntent{Start: start, End: endOfDay(start)}, nil
	case containsAny(lower, createWords):
		return nil, NewResolutionError("I couldn't determine when you want to schedule this event. Please specify a time.")
	case containsAny(lower, updateWords):
		return nil, NewResolutionError("I need more information about which event to update.")
	case containsAny(lower, deleteWords):
		return nil, NewResolutionError("I need more information about which event to cancel.")
	default:
		return nil, NewResolutionError("I couldn't understand that request. Please try rephrasing.")
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
