package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teemow/calagent/internal/actions"
	"github.com/teemow/calagent/internal/calendar"
	"github.com/teemow/calagent/internal/instrumentation"
	"github.com/teemow/calagent/internal/intent"
	"github.com/teemow/calagent/internal/logging"
)

const (
	// listMaxResults caps plain listing queries.
	listMaxResults = 20
	// matchMaxResults caps the candidate set when resolving an update or
	// delete target.
	matchMaxResults = 50

	// updateMatchDays and deleteMatchDays are the search windows for
	// resolving a target event. Updates look at today only; deletes look a
	// week ahead so "cancel my Friday meeting" works mid-week.
	updateMatchDays = 1
	deleteMatchDays = 7
)

// QueryResponse is the payload returned for a natural language query. Type is
// "result" for completed queries, "confirmation" when a mutating action is
// pending, "action_completed" for voice-mode auto-executed mutations, and
// "error" for clarifications and failures.
type QueryResponse struct {
	Type                 string `json:"type,omitempty"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	Message              string `json:"message"`
	ActionID             string `json:"action_id,omitempty"`
}

// ActionResponse is the payload returned by confirm and cancel.
type ActionResponse struct {
	Success bool   `json:"success"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

// Agent is the confirmation orchestrator. It resolves utterances into typed
// intents, executes queries immediately, parks mutations in the action store
// until the user confirms, and runs confirmed actions against the calendar
// gateway.
//
// All methods are safe for concurrent use; the action store serializes the
// confirm/cancel races.
type Agent struct {
	resolver intent.Resolver
	gateway  calendar.Gateway
	store    *actions.Store
	history  *actions.History
	loc      *time.Location
	logger   *slog.Logger
	metrics  *instrumentation.Metrics

	// now is replaceable in tests.
	now func() time.Time
}

// Config collects the agent's collaborators.
type Config struct {
	Resolver intent.Resolver
	Gateway  calendar.Gateway
	Store    *actions.Store
	History  *actions.History
	Location *time.Location
	Logger   *slog.Logger
	Metrics  *instrumentation.Metrics
}

// New creates an Agent. Location defaults to UTC and History to a bounded
// default-size ring when nil.
func New(cfg Config) *Agent {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.History == nil {
		cfg.History = actions.NewHistory(actions.DefaultHistorySize)
	}
	return &Agent{
		resolver: cfg.Resolver,
		gateway:  cfg.Gateway,
		store:    cfg.Store,
		history:  cfg.History,
		loc:      cfg.Location,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      time.Now,
	}
}

// PendingCount returns the number of currently pending actions.
func (a *Agent) PendingCount() int {
	return a.store.Len()
}

// HandleQuery resolves an utterance and dispatches it. Queries execute
// immediately; mutating intents register a pending action and return a
// confirmation prompt without touching the calendar. The int return is the
// HTTP status the transport should use.
func (a *Agent) HandleQuery(ctx context.Context, utterance string) (*QueryResponse, int) {
	now := a.now().In(a.loc)

	it, err := a.resolver.Resolve(ctx, utterance, now)
	if err != nil {
		return a.resolutionFailure(ctx, err)
	}

	a.logger.Debug("resolved query", logging.Intent(string(it.Kind())))

	switch it := it.(type) {
	case intent.QueryIntent:
		return a.handleList(ctx, it, now)
	case intent.CreateIntent:
		return a.handleCreate(ctx, it)
	case intent.UpdateIntent:
		return a.handleUpdate(ctx, it, now)
	case intent.DeleteIntent:
		return a.handleDelete(ctx, it, now)
	default:
		// Bare confirm/cancel words make no sense on the query endpoint;
		// confirmation goes through the action id endpoints.
		a.metrics.RecordQuery(ctx, string(it.Kind()), instrumentation.ResultClarify)
		return &QueryResponse{
			Type:    "error",
			Message: "I couldn't understand that request. Please try rephrasing.",
		}, http.StatusBadRequest
	}
}

// HandleConfirm consumes the pending action and executes it against the
// gateway. The action is consumed before execution: a gateway failure is
// reported but never retried under the same id.
func (a *Agent) HandleConfirm(ctx context.Context, actionID string) (*ActionResponse, int) {
	action, err := a.store.Consume(actionID)
	switch {
	case errors.Is(err, actions.ErrExpired):
		a.metrics.RecordConfirmation(ctx, instrumentation.ResultExpired)
		a.metrics.PendingActionsAdd(ctx, -1)
		return &ActionResponse{
			Success: false,
			Message: "This request has timed out. Please make a new request.",
		}, http.StatusNotFound
	case errors.Is(err, actions.ErrNotFound):
		a.metrics.RecordConfirmation(ctx, instrumentation.ResultNotFound)
		return &ActionResponse{
			Success: false,
			Message: "Action not found or has expired. Please make a new request.",
		}, http.StatusNotFound
	case err != nil:
		a.metrics.RecordConfirmation(ctx, instrumentation.ResultError)
		return &ActionResponse{
			Success: false,
			Message: fmt.Sprintf("Error executing action: %v", err),
		}, http.StatusInternalServerError
	}

	a.metrics.PendingActionsAdd(ctx, -1)

	message, err := a.execute(ctx, action)
	if err != nil {
		a.logger.Error("confirmed action failed",
			logging.ActionID(actionID),
			logging.Intent(string(action.Intent.Kind())),
			logging.Err(err),
		)
		a.metrics.RecordConfirmation(ctx, instrumentation.ResultError)
		return &ActionResponse{
			Success: false,
			Message: fmt.Sprintf("Error executing action: %v", err),
		}, http.StatusInternalServerError
	}

	a.logger.Info("confirmed action executed",
		logging.ActionID(actionID),
		logging.Intent(string(action.Intent.Kind())),
		logging.Status(logging.StatusSuccess),
	)
	a.metrics.RecordConfirmation(ctx, instrumentation.ResultSuccess)

	return &ActionResponse{
		Success: true,
		Type:    "action_completed",
		Message: message,
	}, http.StatusOK
}

// HandleCancel consumes the pending action and discards it. Cancel never
// touches the calendar gateway.
func (a *Agent) HandleCancel(ctx context.Context, actionID string) (*ActionResponse, int) {
	_, err := a.store.Consume(actionID)
	if err != nil {
		result := instrumentation.ResultNotFound
		if errors.Is(err, actions.ErrExpired) {
			result = instrumentation.ResultExpired
			a.metrics.PendingActionsAdd(ctx, -1)
		}
		a.metrics.RecordCancellation(ctx, result)
		return &ActionResponse{
			Success: false,
			Message: "Action not found or already expired.",
		}, http.StatusNotFound
	}

	a.logger.Info("pending action cancelled", logging.ActionID(actionID))
	a.metrics.RecordCancellation(ctx, instrumentation.ResultSuccess)
	a.metrics.PendingActionsAdd(ctx, -1)

	return &ActionResponse{
		Success: true,
		Message: "Action cancelled. No changes were made to your calendar.",
	}, http.StatusOK
}

func (a *Agent) resolutionFailure(ctx context.Context, err error) (*QueryResponse, int) {
	var resErr *intent.ResolutionError
	if errors.As(err, &resErr) {
		a.logger.Debug("utterance needs clarification", logging.Err(err))
		a.metrics.RecordQuery(ctx, "unknown", instrumentation.ResultClarify)
		return &QueryResponse{
			Type:    "error",
			Message: resErr.Message,
		}, http.StatusBadRequest
	}

	a.logger.Error("intent resolution failed", logging.Err(err))
	a.metrics.RecordQuery(ctx, "unknown", instrumentation.ResultError)
	return &QueryResponse{
		Type:    "error",
		Message: fmt.Sprintf("An error occurred: %v", err),
	}, http.StatusInternalServerError
}

func (a *Agent) handleList(ctx context.Context, it intent.QueryIntent, now time.Time) (*QueryResponse, int) {
	start := time.Now()
	events, err := a.gateway.ListEvents(ctx, it.Start, it.End, listMaxResults)
	a.metrics.RecordGatewayOperation(ctx, "list", time.Since(start), err)
	if err != nil {
		a.logger.Error("listing events failed", logging.Err(err))
		a.metrics.RecordQuery(ctx, string(intent.KindQuery), instrumentation.ResultError)
		return &QueryResponse{
			Type:    "error",
			Message: fmt.Sprintf("An error occurred: %v", err),
		}, http.StatusInternalServerError
	}

	period := "today"
	if !sameDay(it.Start, now) {
		period = "on " + it.Start.Format("Monday, January 2")
	}

	var message string
	switch len(events) {
	case 0:
		message = fmt.Sprintf("You have no events scheduled %s.", period)
	case 1:
		message = fmt.Sprintf("You have 1 event %s:\n\n%s", period, calendar.FormatEvent(events[0]))
	default:
		formatted := make([]string, len(events))
		for i, event := range events {
			formatted[i] = calendar.FormatEvent(event)
		}
		message = fmt.Sprintf("You have %d events %s:\n\n%s",
			len(events), period, strings.Join(formatted, "\n\n"))
	}

	a.metrics.RecordQuery(ctx, string(intent.KindQuery), instrumentation.ResultSuccess)
	return &QueryResponse{
		Type:    "result",
		Message: message,
	}, http.StatusOK
}

func (a *Agent) handleCreate(ctx context.Context, it intent.CreateIntent) (*QueryResponse, int) {
	prompt := createPrompt(it)
	id := a.store.Register(it, "", it.Title, prompt)

	a.logger.Info("pending create registered",
		logging.ActionID(id),
		slog.String("title", it.Title),
	)
	a.metrics.RecordQuery(ctx, string(intent.KindCreate), instrumentation.ResultConfirmation)
	a.metrics.PendingActionsAdd(ctx, 1)

	return &QueryResponse{
		Type:                 "confirmation",
		RequiresConfirmation: true,
		ActionID:             id,
		Message:              prompt,
	}, http.StatusOK
}

func (a *Agent) handleUpdate(ctx context.Context, it intent.UpdateIntent, now time.Time) (*QueryResponse, int) {
	event, resp, status := a.resolveTarget(ctx, string(intent.KindUpdate), it.TargetQuery, now, updateMatchDays)
	if resp != nil {
		return resp, status
	}

	prompt := updatePrompt(*event, it.Changes)
	id := a.store.Register(it, event.ID, event.Title, prompt)

	a.logger.Info("pending update registered",
		logging.ActionID(id),
		slog.String("event_id", event.ID),
	)
	a.metrics.RecordQuery(ctx, string(intent.KindUpdate), instrumentation.ResultConfirmation)
	a.metrics.PendingActionsAdd(ctx, 1)

	return &QueryResponse{
		Type:                 "confirmation",
		RequiresConfirmation: true,
		ActionID:             id,
		Message:              prompt,
	}, http.StatusOK
}

func (a *Agent) handleDelete(ctx context.Context, it intent.DeleteIntent, now time.Time) (*QueryResponse, int) {
	event, resp, status := a.resolveTarget(ctx, string(intent.KindDelete), it.TargetQuery, now, deleteMatchDays)
	if resp != nil {
		return resp, status
	}

	prompt := deletePrompt(*event)
	id := a.store.Register(it, event.ID, displayTitle(event.Title), prompt)

	a.logger.Info("pending delete registered",
		logging.ActionID(id),
		slog.String("event_id", event.ID),
	)
	a.metrics.RecordQuery(ctx, string(intent.KindDelete), instrumentation.ResultConfirmation)
	a.metrics.PendingActionsAdd(ctx, 1)

	return &QueryResponse{
		Type:                 "confirmation",
		RequiresConfirmation: true,
		ActionID:             id,
		Message:              prompt,
	}, http.StatusOK
}

// resolveTarget finds the single event a free-text reference points at.
// Zero matches and multiple matches both come back as a clarification
// response; the agent never guesses a target.
func (a *Agent) resolveTarget(ctx context.Context, kind, query string, now time.Time, days int) (*calendar.Event, *QueryResponse, int) {
	start, end := calendar.DefaultMatchWindow(now, days)

	began := time.Now()
	events, err := a.gateway.ListEvents(ctx, start, end, matchMaxResults)
	a.metrics.RecordGatewayOperation(ctx, "list", time.Since(began), err)
	if err != nil {
		a.logger.Error("listing events for target match failed", logging.Err(err))
		a.metrics.RecordQuery(ctx, kind, instrumentation.ResultError)
		return nil, &QueryResponse{
			Type:    "error",
			Message: fmt.Sprintf("An error occurred: %v", err),
		}, http.StatusInternalServerError
	}

	matches := calendar.MatchEvents(query, events)
	switch len(matches) {
	case 1:
		return &matches[0], nil, 0
	case 0:
		a.metrics.RecordQuery(ctx, kind, instrumentation.ResultNotFound)
		return nil, &QueryResponse{
			Type:    "error",
			Message: fmt.Sprintf("I couldn't find an event matching '%s'. Can you be more specific?", query),
		}, http.StatusNotFound
	default:
		a.metrics.RecordQuery(ctx, kind, instrumentation.ResultClarify)
		lines := make([]string, len(matches))
		for i, match := range matches {
			lines[i] = fmt.Sprintf("- %s (%s)", displayTitle(match.Title), calendar.FormatEventTime(match))
		}
		return nil, &QueryResponse{
			Type: "error",
			Message: fmt.Sprintf("I found %d events matching '%s':\n\n%s\n\nWhich one did you mean?",
				len(matches), query, strings.Join(lines, "\n")),
		}, http.StatusBadRequest
	}
}

// execute runs a consumed pending action against the gateway and returns the
// user-facing completion message.
func (a *Agent) execute(ctx context.Context, action *actions.PendingAction) (string, error) {
	switch it := action.Intent.(type) {
	case intent.CreateIntent:
		event, err := a.createEvent(ctx, it)
		if err != nil {
			return "", err
		}
		return "Event created successfully!\n\n" + calendar.FormatEvent(*event), nil

	case intent.UpdateIntent:
		event, err := a.updateEvent(ctx, action.TargetEventID, it.Changes)
		if err != nil {
			return "", err
		}
		return "Event updated successfully!\n\n" + calendar.FormatEvent(*event), nil

	case intent.DeleteIntent:
		if err := a.deleteEvent(ctx, action.TargetEventID); err != nil {
			return "", err
		}
		return "Event cancelled successfully!\n\nDeleted: " + displayTitle(action.TargetTitle), nil

	default:
		return "", fmt.Errorf("unknown action type %q", action.Intent.Kind())
	}
}

func (a *Agent) createEvent(ctx context.Context, it intent.CreateIntent) (*calendar.Event, error) {
	input := calendar.EventInput{
		Title:       it.Title,
		Description: it.Description,
		Location:    it.Location,
		Start:       it.Start,
		End:         it.End,
		Attendees:   it.Attendees,
	}

	began := time.Now()
	event, err := a.gateway.CreateEvent(ctx, input)
	a.metrics.RecordGatewayOperation(ctx, "create", time.Since(began), err)
	return event, err
}

func (a *Agent) updateEvent(ctx context.Context, eventID string, changes intent.EventChanges) (*calendar.Event, error) {
	patch := calendar.EventPatch{
		Title:       changes.Title,
		Description: changes.Description,
		Location:    changes.Location,
		Start:       changes.Start,
		End:         changes.End,
		Attendees:   changes.Attendees,
	}

	began := time.Now()
	event, err := a.gateway.UpdateEvent(ctx, eventID, patch)
	a.metrics.RecordGatewayOperation(ctx, "update", time.Since(began), err)
	return event, err
}

func (a *Agent) deleteEvent(ctx context.Context, eventID string) error {
	began := time.Now()
	err := a.gateway.DeleteEvent(ctx, eventID)
	a.metrics.RecordGatewayOperation(ctx, "delete", time.Since(began), err)
	return err
}

func displayTitle(title string) string {
	if title == "" {
		return "Event"
	}
	return title
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
