package actions

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/calagent/internal/intent"
	"github.com/teemow/calagent/internal/logging"
)

// Lookup errors. Expired is reported distinctly from NotFound so callers can
// tell the user "this request timed out" rather than "unknown action".
var (
	ErrNotFound = errors.New("pending action not found")
	ErrExpired  = errors.New("pending action expired")
)

// idLength is the number of UUID characters used for action ids. Short ids
// are easier to pass through voice transcription; they are opaque handles,
// not a security boundary.
const idLength = 8

// PendingAction is a registered, not-yet-executed mutating intent awaiting
// user confirmation. Fields are fixed at registration; in particular Prompt
// is frozen so the user confirms exactly the text they were shown.
type PendingAction struct {
	ID            string
	Intent        intent.Intent
	TargetEventID string
	TargetTitle   string
	Prompt        string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Store is the in-memory registry of pending actions. All operations hold
// one mutex, so two concurrent confirms of the same id can never both
// succeed: exactly one consumes the action, the other sees NotFound.
//
// Pending actions are ephemeral; a process restart drops them all.
type Store struct {
	mu      sync.Mutex
	pending map[string]*PendingAction
	timeout time.Duration
	logger  *slog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// NewStore creates a store whose actions expire after timeout.
func NewStore(timeout time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pending: make(map[string]*PendingAction),
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Register stores a new pending action and returns its id. The id is fresh:
// an existing entry is never overwritten, so a stale id can never resolve to
// a different action than the one it was issued for. Expired entries are
// swept opportunistically.
func (s *Store) Register(it intent.Intent, targetEventID, targetTitle, prompt string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	id := newID()
	for _, taken := s.pending[id]; taken; _, taken = s.pending[id] {
		id = newID()
	}

	action := &PendingAction{
		ID:            id,
		Intent:        it,
		TargetEventID: targetEventID,
		TargetTitle:   targetTitle,
		Prompt:        prompt,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.timeout),
	}
	s.pending[id] = action

	s.logger.Debug("registered pending action",
		logging.ActionID(id),
		logging.Intent(string(it.Kind())),
		slog.Time("expires_at", action.ExpiresAt),
	)

	return id
}

// Peek returns the pending action without consuming it. Used for building
// messages; never a mutation point.
func (s *Store) Peek(id string) (*PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.pending[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.now().Before(action.ExpiresAt) {
		return nil, ErrExpired
	}
	return action, nil
}

// Consume atomically removes and returns the action. An expired entry is
// removed and reported as ErrExpired; any later lookup of the same id,
// including a duplicate confirm, yields ErrNotFound. This is what
// guarantees at-most-once execution of the underlying calendar mutation.
func (s *Store) Consume(id string) (*PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.pending[id]
	if !ok {
		return nil, ErrNotFound
	}

	delete(s.pending, id)

	if !s.now().Before(action.ExpiresAt) {
		s.logger.Debug("pending action expired on consume", logging.ActionID(id))
		return nil, ErrExpired
	}

	s.logger.Debug("consumed pending action",
		logging.ActionID(id),
		logging.Intent(string(action.Intent.Kind())),
	)
	return action, nil
}

// Sweep removes all entries that have expired as of now.
func (s *Store) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
}

// Len returns the number of currently pending, unexpired actions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(s.now())
	return len(s.pending)
}

func (s *Store) sweepLocked(now time.Time) {
	for id, action := range s.pending {
		if !now.Before(action.ExpiresAt) {
			delete(s.pending, id)
			s.logger.Debug("swept expired pending action", logging.ActionID(id))
		}
	}
}

func newID() string {
	return uuid.NewString()[:idLength]
}
