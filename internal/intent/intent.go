package intent

import "time"

// Kind identifies the calendar operation an utterance requests.
type Kind string

const (
	// KindQuery lists events; it never requires confirmation.
	KindQuery Kind = "query"
	// KindCreate creates a new event.
	KindCreate Kind = "create"
	// KindUpdate modifies an existing event.
	KindUpdate Kind = "update"
	// KindDelete removes an existing event.
	KindDelete Kind = "delete"
	// KindConfirm is a bare affirmative ("yes", "go ahead"), used by the
	// voice-style root endpoint to confirm the most recent action.
	KindConfirm Kind = "confirm"
	// KindCancel is a bare negative ("no", "undo"), used by the voice-style
	// root endpoint to revert the most recent action.
	KindCancel Kind = "cancel"
)

// Intent is a fully-populated, typed calendar operation derived from free
// text. Each operation kind has its own variant with a fixed field set; the
// resolver either produces one of these or a ResolutionError, never a
// partially-filled intent.
type Intent interface {
	Kind() Kind
	// Mutating reports whether executing this intent changes the calendar.
	Mutating() bool
}

// QueryIntent lists events within a time range. Both bounds are
// timezone-aware in the configured location.
type QueryIntent struct {
	Start time.Time
	End   time.Time
}

func (QueryIntent) Kind() Kind     { return KindQuery }
func (QueryIntent) Mutating() bool { return false }

// CreateIntent creates a new event. End defaults to Start plus one hour when
// the utterance gives no duration.
type CreateIntent struct {
	Title       string
	Start       time.Time
	End         time.Time
	Location    string
	Description string
	Attendees   []string
}

func (CreateIntent) Kind() Kind     { return KindCreate }
func (CreateIntent) Mutating() bool { return true }

// EventChanges holds the fields an update applies. Zero values mean
// "unchanged".
type EventChanges struct {
	Title       string
	Start       time.Time
	End         time.Time
	Location    string
	Description string
	Attendees   []string
}

// Empty reports whether the change set would leave the event untouched.
func (c EventChanges) Empty() bool {
	return c.Title == "" && c.Start.IsZero() && c.End.IsZero() &&
		c.Location == "" && c.Description == "" && len(c.Attendees) == 0
}

// UpdateIntent modifies an existing event. TargetQuery is the free-text
// reference ("my 3pm meeting") the orchestrator resolves to exactly one
// event before registering the action.
type UpdateIntent struct {
	TargetQuery string
	Changes     EventChanges
}

func (UpdateIntent) Kind() Kind     { return KindUpdate }
func (UpdateIntent) Mutating() bool { return true }

// DeleteIntent removes an existing event identified by TargetQuery.
type DeleteIntent struct {
	TargetQuery string
}

func (DeleteIntent) Kind() Kind     { return KindDelete }
func (DeleteIntent) Mutating() bool { return true }

// ConfirmIntent is a bare affirmative with no parameters.
type ConfirmIntent struct{}

func (ConfirmIntent) Kind() Kind     { return KindConfirm }
func (ConfirmIntent) Mutating() bool { return false }

// CancelIntent is a bare negative with no parameters.
type CancelIntent struct{}

func (CancelIntent) Kind() Kind     { return KindCancel }
func (CancelIntent) Mutating() bool { return false }

// ResolutionError reports an utterance that could not be turned into a
// fully-populated intent. Message is user-facing clarification text, not a
// diagnostic.
type ResolutionError struct {
	Message string
}

func (e *ResolutionError) Error() string {
	return e.Message
}

// NewResolutionError builds a ResolutionError with the given clarification.
func NewResolutionError(message string) *ResolutionError {
	return &ResolutionError{Message: message}
}
