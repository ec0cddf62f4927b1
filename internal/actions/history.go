package actions

import (
	"sync"
	"time"

	"github.com/teemow/calagent/internal/intent"
)

// DefaultHistorySize bounds the executed-action history.
const DefaultHistorySize = 50

// ExecutedAction records a mutation that already ran, so a follow-up
// "yes"/"no" on the voice endpoint can acknowledge or revert it.
type ExecutedAction struct {
	EventID    string
	Kind       intent.Kind
	Title      string
	ExecutedAt time.Time
}

// History is a bounded, newest-last record of executed actions.
type History struct {
	mu      sync.Mutex
	entries []ExecutedAction
	max     int

	now func() time.Time
}

// NewHistory creates a history that keeps at most max entries.
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max, now: time.Now}
}

// Add records an executed action, evicting the oldest entry when full.
func (h *History) Add(eventID string, kind intent.Kind, title string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, ExecutedAction{
		EventID:    eventID,
		Kind:       kind,
		Title:      title,
		ExecutedAt: h.now(),
	})
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
}

// Last returns the most recent action executed within maxAge, or nil.
func (h *History) Last(maxAge time.Duration) *ExecutedAction {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) == 0 {
		return nil
	}

	last := h.entries[len(h.entries)-1]
	if h.now().Sub(last.ExecutedAt) > maxAge {
		return nil
	}
	return &last
}
