package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/calagent/internal/calendar"
	"github.com/teemow/calagent/internal/instrumentation"
	"github.com/teemow/calagent/internal/intent"
	"github.com/teemow/calagent/internal/logging"
)

// voiceRevertWindow bounds how far back a spoken "yes"/"no" can reach. Older
// actions are considered settled and can no longer be acknowledged or
// reverted.
const voiceRevertWindow = 120 * time.Second

// HandleVoiceQuery is the single-channel variant of HandleQuery used by voice
// front ends that cannot hold an action id across turns. Mutating intents
// execute immediately and are recorded in the action history; a follow-up
// bare "yes" acknowledges the last action and a bare "no" reverts it where
// possible.
func (a *Agent) HandleVoiceQuery(ctx context.Context, utterance string) (*QueryResponse, int) {
	now := a.now().In(a.loc)

	it, err := a.resolver.Resolve(ctx, utterance, now)
	if err != nil {
		return a.resolutionFailure(ctx, err)
	}

	a.logger.Debug("resolved voice query", logging.Intent(string(it.Kind())))

	switch it := it.(type) {
	case intent.QueryIntent:
		return a.handleList(ctx, it, now)
	case intent.CreateIntent:
		return a.voiceCreate(ctx, it)
	case intent.UpdateIntent:
		return a.voiceUpdate(ctx, it, now)
	case intent.DeleteIntent:
		return a.voiceDelete(ctx, it, now)
	case intent.ConfirmIntent:
		return a.confirmLastAction(ctx)
	case intent.CancelIntent:
		return a.cancelLastAction(ctx)
	default:
		a.metrics.RecordQuery(ctx, string(it.Kind()), instrumentation.ResultClarify)
		return &QueryResponse{
			Type:    "error",
			Message: "I couldn't understand that request. Please try rephrasing.",
		}, http.StatusBadRequest
	}
}

func (a *Agent) voiceCreate(ctx context.Context, it intent.CreateIntent) (*QueryResponse, int) {
	event, err := a.createEvent(ctx, it)
	if err != nil {
		return a.voiceExecutionFailure(ctx, intent.KindCreate, err)
	}

	a.history.Add(event.ID, intent.KindCreate, event.Title)
	a.logger.Info("voice create executed", slog.String("event_id", event.ID))
	a.metrics.RecordQuery(ctx, string(intent.KindCreate), instrumentation.ResultSuccess)

	return &QueryResponse{
		Type:                 "action_completed",
		RequiresConfirmation: true,
		Message:              "Event created successfully!\n\n" + calendar.FormatEvent(*event),
	}, http.StatusOK
}

func (a *Agent) voiceUpdate(ctx context.Context, it intent.UpdateIntent, now time.Time) (*QueryResponse, int) {
	target, resp, status := a.resolveTarget(ctx, string(intent.KindUpdate), it.TargetQuery, now, updateMatchDays)
	if resp != nil {
		return resp, status
	}

	event, err := a.updateEvent(ctx, target.ID, it.Changes)
	if err != nil {
		return a.voiceExecutionFailure(ctx, intent.KindUpdate, err)
	}

	a.history.Add(event.ID, intent.KindUpdate, event.Title)
	a.logger.Info("voice update executed", slog.String("event_id", event.ID))
	a.metrics.RecordQuery(ctx, string(intent.KindUpdate), instrumentation.ResultSuccess)

	return &QueryResponse{
		Type:                 "action_completed",
		RequiresConfirmation: true,
		Message:              "Event updated successfully!\n\n" + calendar.FormatEvent(*event),
	}, http.StatusOK
}

func (a *Agent) voiceDelete(ctx context.Context, it intent.DeleteIntent, now time.Time) (*QueryResponse, int) {
	target, resp, status := a.resolveTarget(ctx, string(intent.KindDelete), it.TargetQuery, now, deleteMatchDays)
	if resp != nil {
		return resp, status
	}

	if err := a.deleteEvent(ctx, target.ID); err != nil {
		return a.voiceExecutionFailure(ctx, intent.KindDelete, err)
	}

	title := displayTitle(target.Title)
	a.history.Add(target.ID, intent.KindDelete, title)
	a.logger.Info("voice delete executed", slog.String("event_id", target.ID))
	a.metrics.RecordQuery(ctx, string(intent.KindDelete), instrumentation.ResultSuccess)

	return &QueryResponse{
		Type:                 "action_completed",
		RequiresConfirmation: true,
		Message:              "Event cancelled successfully!\n\nDeleted: " + title,
	}, http.StatusOK
}

func (a *Agent) voiceExecutionFailure(ctx context.Context, kind intent.Kind, err error) (*QueryResponse, int) {
	a.logger.Error("voice action failed", logging.Intent(string(kind)), logging.Err(err))
	a.metrics.RecordQuery(ctx, string(kind), instrumentation.ResultError)
	return &QueryResponse{
		Type:    "error",
		Message: fmt.Sprintf("An error occurred: %v", err),
	}, http.StatusInternalServerError
}

// confirmLastAction acknowledges the most recent executed action. The action
// already ran, so this is purely conversational.
func (a *Agent) confirmLastAction(ctx context.Context) (*QueryResponse, int) {
	last := a.history.Last(voiceRevertWindow)
	if last == nil {
		return &QueryResponse{
			Type:    "result",
			Message: "I don't have any recent actions to confirm. Everything is already done!",
		}, http.StatusOK
	}

	var message string
	switch last.Kind {
	case intent.KindCreate:
		message = fmt.Sprintf("Confirmed! I've already created '%s' in your calendar.", last.Title)
	case intent.KindUpdate:
		message = fmt.Sprintf("Confirmed! I've already updated '%s' in your calendar.", last.Title)
	case intent.KindDelete:
		message = fmt.Sprintf("Confirmed! I've already deleted '%s' from your calendar.", last.Title)
	default:
		message = "Confirmed! The action has been completed."
	}

	a.metrics.RecordQuery(ctx, string(intent.KindConfirm), instrumentation.ResultSuccess)
	return &QueryResponse{
		Type:    "result",
		Message: message,
	}, http.StatusOK
}

// cancelLastAction reverts the most recent executed action where that is
// possible. Only creates can be mechanically undone; deletes and updates get
// an honest "can't revert" answer.
func (a *Agent) cancelLastAction(ctx context.Context) (*QueryResponse, int) {
	last := a.history.Last(voiceRevertWindow)
	if last == nil {
		return &QueryResponse{
			Type:    "result",
			Message: "I don't have any recent actions to cancel.",
		}, http.StatusOK
	}

	var message string
	switch last.Kind {
	case intent.KindCreate:
		if err := a.deleteEvent(ctx, last.EventID); err != nil {
			a.logger.Error("reverting created event failed", logging.Err(err))
			a.metrics.RecordQuery(ctx, string(intent.KindCancel), instrumentation.ResultError)
			return &QueryResponse{
				Type:    "error",
				Message: fmt.Sprintf("I couldn't cancel that action: %v", err),
			}, http.StatusInternalServerError
		}
		message = fmt.Sprintf("Cancelled! I've removed '%s' from your calendar.", last.Title)
	case intent.KindDelete:
		message = fmt.Sprintf("I can't restore '%s' as it has already been deleted.", last.Title)
	case intent.KindUpdate:
		message = fmt.Sprintf("I can't automatically revert the changes to '%s'.", last.Title)
	default:
		message = "I couldn't cancel that action."
	}

	a.metrics.RecordQuery(ctx, string(intent.KindCancel), instrumentation.ResultSuccess)
	return &QueryResponse{
		Type:    "result",
		Message: message,
	}, http.StatusOK
}
