package agent

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calagent/internal/actions"
	"github.com/teemow/calagent/internal/calendar"
	"github.com/teemow/calagent/internal/intent"
)

type fakeResolver struct {
	it  intent.Intent
	err error
}

func (r *fakeResolver) Resolve(_ context.Context, _ string, _ time.Time) (intent.Intent, error) {
	return r.it, r.err
}

type fakeGateway struct {
	events  []calendar.Event
	listErr error

	created   []calendar.EventInput
	createErr error

	updatedIDs     []string
	updatedPatches []calendar.EventPatch

	deletedIDs []string
	deleteErr  error
}

func (g *fakeGateway) ListEvents(_ context.Context, _, _ time.Time, _ int64) ([]calendar.Event, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.events, nil
}

func (g *fakeGateway) CreateEvent(_ context.Context, input calendar.EventInput) (*calendar.Event, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, input)
	return &calendar.Event{
		ID:    "evt-new",
		Title: input.Title,
		Start: input.Start,
		End:   input.End,
	}, nil
}

func (g *fakeGateway) UpdateEvent(_ context.Context, eventID string, patch calendar.EventPatch) (*calendar.Event, error) {
	g.updatedIDs = append(g.updatedIDs, eventID)
	g.updatedPatches = append(g.updatedPatches, patch)
	return &calendar.Event{
		ID:    eventID,
		Title: patch.Title,
		Start: patch.Start,
		End:   patch.End,
	}, nil
}

func (g *fakeGateway) DeleteEvent(_ context.Context, eventID string) error {
	if g.deleteErr != nil {
		return g.deleteErr
	}
	g.deletedIDs = append(g.deletedIDs, eventID)
	return nil
}

func (g *fakeGateway) mutationCount() int {
	return len(g.created) + len(g.updatedIDs) + len(g.deletedIDs)
}

func newTestAgent(t *testing.T, resolver *fakeResolver, gateway *fakeGateway, timeout time.Duration) *Agent {
	t.Helper()
	return New(Config{
		Resolver: resolver,
		Gateway:  gateway,
		Store:    actions.NewStore(timeout, nil),
		History:  actions.NewHistory(actions.DefaultHistorySize),
		Location: time.UTC,
	})
}

func TestHandleQuery_ListEmpty(t *testing.T) {
	resolver := &fakeResolver{it: intent.QueryIntent{Start: time.Now().UTC(), End: time.Now().UTC().Add(time.Hour)}}
	gateway := &fakeGateway{}
	a := newTestAgent(t, resolver, gateway, 5*time.Minute)

	resp, status := a.HandleQuery(context.Background(), "what's on my calendar today?")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "result", resp.Type)
	assert.False(t, resp.RequiresConfirmation)
	assert.Empty(t, resp.ActionID)
	assert.Equal(t, "You have no events scheduled today.", resp.Message)
	assert.Zero(t, gateway.mutationCount())
	assert.Zero(t, a.PendingCount(), "queries must not register pending actions")
}

func TestHandleQuery_ListEvents(t *testing.T) {
	now := time.Now().UTC()
	resolver := &fakeResolver{it: intent.QueryIntent{Start: now, End: now.Add(12 * time.Hour)}}
	gateway := &fakeGateway{events: []calendar.Event{
		{ID: "e1", Title: "Standup", Start: now.Add(time.Hour), End: now.Add(90 * time.Minute), Organizer: "alice@example.com"},
		{ID: "e2", Title: "Review", Start: now.Add(3 * time.Hour), End: now.Add(4 * time.Hour), Organizer: "bob@example.com"},
	}}
	a := newTestAgent(t, resolver, gateway, 5*time.Minute)

	resp, status := a.HandleQuery(context.Background(), "what's today?")

	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.HasPrefix(resp.Message, "You have 2 events today:\n\n"))
	assert.Contains(t, resp.Message, "Event: Standup")
	assert.Contains(t, resp.Message, "Event: Review")
}

func TestHandleQuery_ListOtherDay(t *testing.T) {
	day := time.Now().UTC().AddDate(0, 0, 3)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	resolver := &fakeResolver{it: intent.QueryIntent{Start: start, End: start.Add(24 * time.Hour)}}
	a := newTestAgent(t, resolver, &fakeGateway{}, 5*time.Minute)

	resp, _ := a.HandleQuery(context.Background(), "what's on then?")

	want := "You have no events scheduled on " + start.Format("Monday, January 2") + "."
	assert.Equal(t, want, resp.Message)
}

func TestHandleQuery_CreateRegistersPendingWithoutMutating(t *testing.T) {
	start := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	resolver := &fakeResolver{it: intent.CreateIntent{
		Title: "Dinner with Sam",
		Start: start,
		End:   start.Add(time.Hour),
	}}
	gateway := &fakeGateway{}
	a := newTestAgent(t, resolver, gateway, 5*time.Minute)

	resp, status := a.HandleQuery(context.Background(), "schedule dinner with Sam at 7pm")

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "confirmation", resp.Type)
	assert.True(t, resp.RequiresConfirmation)
	assert.Len(t, resp.ActionID, 8)
	assert.Equal(t, "I'll create 'Dinner with Sam' on Tuesday, September 1 at 7:00 PM. Should I proceed?", resp.Message)

	assert.Zero(t, gateway.mutationCount(), "no mutation before confirmation")
	assert.Equal(t, 1, a.PendingCount())
}

func TestHandleQuery_CreatePromptIncludesLocationAndAttendees(t *testing.T) {
	start := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	resolver := &fakeResolver{it: intent.CreateIntent{
		Title:     "Dinner",
		Start:     start,
		End:       start.Add(time.Hour),
		Location:  "Luigi's",
		Attendees: []string{"sam@example.com", "alex@example.com"},
	}}
	a := newTestAgent(t, resolver, &fakeGateway{}, 5*time.Minute)

	resp, _ := a.HandleQuery(context.Background(), "dinner at Luigi's with Sam and Alex")

	assert.Equal(t,
		"I'll create 'Dinner' on Tuesday, September 1 at 7:00 PM at Luigi's with sam@example.com, alex@example.com. Should I proceed?",
		resp.Message)
}

func TestHandleConfirm_ExecutesExactlyOnce(t *testing.T) {
	start := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	resolver := &fakeResolver{it: intent.CreateIntent{Title: "Dinner", Start: start, End: start.Add(time.Hour)}}
	gateway := &fakeGateway{}
	a := newTestAgent(t, resolver, gateway, 5*time.Minute)

	pending, _ := a.HandleQuery(context.Background(), "schedule dinner")
	require.NotEmpty(t, pending.ActionID)

	resp, status := a.HandleConfirm(context.Background(), pending.ActionID)

	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.Equal(t, "action_completed", resp.Type)
	assert.True(t, strings.HasPrefix(resp.Message, "Event created successfully!\n\n"))
	assert.Contains(t, resp.Message, "Event: Dinner")
	require.Len(t, gateway.created, 1)
	assert.Equal(t, "Dinner", gateway.created[0].Title)

	// A duplicate confirm must not re-execute.
	resp, status = a.HandleConfirm(context.Background(), pending.ActionID)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, resp.Success)
	assert.Equal(t, "Action not found or has expired. Please make a new request.", resp.Message)
	assert.Len(t, gateway.created, 1)
}

func TestHandleConfirm_UnknownID(t *testing.T) {
	a := newTestAgent(t, &fakeResolver{}, &fakeGateway{}, 5*time.Minute)

	resp, status := a.HandleConfirm(context.Background(), "deadbeef")

	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, resp.Success)
	assert.Equal(t, "Action not found or has expired. Please make a new request.", resp.Message)
}

func TestHandleConfirm_Expired(t *testing.T) {
	start := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	resolver := &fakeResolver{it: intent.CreateIntent{Title: "Dinner", Start: start, End: start.Add(time.Hour)}}
	gateway := &fakeGateway{}
	a := newTestAgent(t, resolver, gateway, 30*time.Millisecond)

	pending, _ := a.HandleQuery(context.Background(), "schedule dinner")
	time.Sleep(50 * time.Millisecond)

	resp, status := a.HandleConfirm(context.Background(), pending.ActionID)

	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, resp.Success)
	assert.Equal(t, "This request has timed out. Please make a new request.", resp.Message)
	assert.Zero(t, gateway.mutationCount())

	// The expired entry was removed on first access.
	resp, _ = a.HandleConfirm(context.Background(), pending.ActionID)
	assert.Equal(t, "Action not found or has expired. Please make a new request.", resp.Message)
}

func TestHandleConfirm_GatewayFailureConsumesAction(t *testing.T) {
	start := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	resolver := &fakeResolver{it: intent.CreateIntent{Title: "Dinner", Start: start, End: start.Add(time.Hour)}}
	gateway := &fakeGateway{createErr: errors.New("calendar backend unavailable")}
	a := newTestAgent(t, resolver, gateway, 5*time.Minute)

	pending, _ := a.HandleQuery(context.Background(), "schedule dinner")

	resp, status := a.HandleConfirm(context.Background(), pending.ActionID)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "Error executing action:")

	// The id is spent; a retry must not reach the gateway again.
	gateway.createErr = nil
	resp, status = a.HandleConfirm(context.Background(), pending.ActionID)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Zero(t, gateway.mutationCount())
}

func TestHandleCancel_DiscardsWithoutGatewayCall(t *testing.T) {
	start := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	resolver := &fakeResolver{it: intent.CreateIntent{Title: "Dinner", Start: start, End: start.Add(time.Hour)}}
	gateway := &fakeGateway{}
	a := newTestAgent(t, resolver, gateway, 5*time.Minute)

	pending, _ := a.HandleQuery(context.Background(), "schedule dinner")

	resp, status := a.HandleCancel(context.Background(), pending.ActionID)

	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.Equal(t, "Action cancelled. No changes were made to your calendar.", resp.Message)
	assert.Zero(t, gateway.mutationCount(), "cancel must never touch the gateway")
	assert.Zero(t, a.PendingCount())

	// A confirm after cancel finds nothing.
	confirmResp, confirmStatus := a.HandleConfirm(context.Background(), pending.ActionID)
	assert.Equal(t, http.StatusNotFound, confirmStatus)
	assert.False(t, confirmResp.Success)
	assert.Zero(t, gateway.mutationCount())
}

func TestHandleCancel_UnknownID(t *testing.T) {
	a := newTestAgent(t, &fakeResolver{}, &fakeGateway{}, 5*time.Minute)

	resp, status := a.HandleCancel(context.Background(), "deadbeef")

	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, resp.Success)
	assert.Equal(t, "Action not found or already expired.", resp.Message)
}

func TestHandleQuery_UpdateResolvesTarget(t *testing.T) {
	now := time.Now().UTC()
	meeting := time.Date(now.Year(), now.Month(), now.Day(), 15, 0, 0, 0, time.UTC)
	newStart := meeting.Add(2 * time.Hour)

	resolver := &fakeResolver{it: intent.UpdateIntent{
		TargetQuery: "my 3pm meeting",
		Changes:     intent.EventChanges{Start: newStart, End: newStart.Add(time.Hour)},
	}}
	gateway := &fakeGateway{events: []calendar.Event{
		{ID: "evt-sync", Title: "Team Sync", Start: meeting, End: meeting.Add(time.Hour)},
	}}
	a := newTestAgent(t, resolver, gateway, 5*time.Minute)

	resp, status := a.HandleQuery(context.Background(), "move my 3pm meeting to 5pm")

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "confirmation", resp.Type)
	assert.Contains(t, resp.Message, "I'll update 'Team Sync' to ")
	assert.Zero(t, gateway.mutationCount())

	confirmResp, confirmStatus := a.HandleConfirm(context.Background(), resp.ActionID)
	require.Equal(t, http.StatusOK, confirmStatus)
	assert.True(t, strings.HasPrefix(confirmResp.Message, "Event updated successfully!\n\n"))
	require.Len(t, gateway.updatedIDs, 1)
	assert.Equal(t, "evt-sync", gateway.updatedIDs[0])
	assert.Equal(t, newStart, gateway.updatedPatches[0].Start)
}

func TestHandleQuery_DeleteResolvesTarget(t *testing.T) {
	now := time.Now().UTC()
	appt := now.Add(26 * time.Hour)

	resolver := &fakeResolver{it: intent.DeleteIntent{TargetQuery: "cancel my dentist appointment"}}
	gateway := &fakeGateway{events: []calendar.Event{
		{ID: "evt-dentist", Title: "Dentist", Start: appt, End: appt.Add(time.Hour)},
	}}
	a := newTestAgent(t, resolver, gateway, 5*time.Minute)

	resp, status := a.HandleQuery(context.Background(), "cancel my dentist appointment")

	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, resp.Message, "I'll cancel 'Dentist' scheduled for ")
	assert.Zero(t, gateway.mutationCount())

	confirmResp, confirmStatus := a.HandleConfirm(context.Background(), resp.ActionID)
	require.Equal(t, http.StatusOK, confirmStatus)
	assert.Equal(t, "Event cancelled successfully!\n\nDeleted: Dentist", confirmResp.Message)
	assert.Equal(t, []string{"evt-dentist"}, gateway.deletedIDs)
}

func TestHandleQuery_TargetNotFound(t *testing.T) {
	resolver := &fakeResolver{it: intent.DeleteIntent{TargetQuery: "dentist"}}
	gateway := &fakeGateway{}
	a := newTestAgent(t, resolver, gateway, 5*time.Minute)

	resp, status := a.HandleQuery(context.Background(), "cancel the dentist")

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "error", resp.Type)
	assert.Equal(t, "I couldn't find an event matching 'dentist'. Can you be more specific?", resp.Message)
	assert.Zero(t, a.PendingCount())
}

func TestHandleQuery_AmbiguousTargetAsksForClarification(t *testing.T) {
	now := time.Now().UTC()
	resolver := &fakeResolver{it: intent.DeleteIntent{TargetQuery: "standup"}}
	gateway := &fakeGateway{events: []calendar.Event{
		{ID: "e1", Title: "Standup", Start: now.Add(time.Hour), End: now.Add(90 * time.Minute)},
		{ID: "e2", Title: "Standup", Start: now.Add(25 * time.Hour), End: now.Add(26 * time.Hour)},
	}}
	a := newTestAgent(t, resolver, gateway, 5*time.Minute)

	resp, status := a.HandleQuery(context.Background(), "cancel the standup")

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "error", resp.Type)
	assert.Contains(t, resp.Message, "I found 2 events matching 'standup'")
	assert.Contains(t, resp.Message, "Which one did you mean?")
	assert.Zero(t, a.PendingCount(), "ambiguous targets must not register actions")
	assert.Zero(t, gateway.mutationCount())
}

func TestHandleQuery_ResolutionFailure(t *testing.T) {
	resolver := &fakeResolver{err: intent.NewResolutionError("I need more information about which event to update. Could you describe it?")}
	a := newTestAgent(t, resolver, &fakeGateway{}, 5*time.Minute)

	resp, status := a.HandleQuery(context.Background(), "change it")

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "error", resp.Type)
	assert.Equal(t, "I need more information about which event to update. Could you describe it?", resp.Message)
}

func TestHandleQuery_BareConfirmRejected(t *testing.T) {
	resolver := &fakeResolver{it: intent.ConfirmIntent{}}
	a := newTestAgent(t, resolver, &fakeGateway{}, 5*time.Minute)

	resp, status := a.HandleQuery(context.Background(), "yes")

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "I couldn't understand that request. Please try rephrasing.", resp.Message)
}

func TestHandleVoiceQuery_CreateExecutesImmediately(t *testing.T) {
	start := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	resolver := &fakeResolver{it: intent.CreateIntent{Title: "Dinner", Start: start, End: start.Add(time.Hour)}}
	gateway := &fakeGateway{}
	a := newTestAgent(t, resolver, gateway, 5*time.Minute)

	resp, status := a.HandleVoiceQuery(context.Background(), "schedule dinner at 7pm")

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "action_completed", resp.Type)
	assert.True(t, resp.RequiresConfirmation)
	assert.True(t, strings.HasPrefix(resp.Message, "Event created successfully!\n\n"))
	assert.Len(t, gateway.created, 1)
	assert.Zero(t, a.PendingCount(), "voice mode does not park actions")
}

func TestHandleVoiceQuery_ConfirmAcknowledgesLastAction(t *testing.T) {
	start := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	resolver := &fakeResolver{it: intent.CreateIntent{Title: "Dinner", Start: start, End: start.Add(time.Hour)}}
	gateway := &fakeGateway{}
	a := newTestAgent(t, resolver, gateway, 5*time.Minute)

	_, _ = a.HandleVoiceQuery(context.Background(), "schedule dinner")

	resolver.it = intent.ConfirmIntent{}
	resp, status := a.HandleVoiceQuery(context.Background(), "yes")

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "result", resp.Type)
	assert.Equal(t, "Confirmed! I've already created 'Dinner' in your calendar.", resp.Message)
	assert.Len(t, gateway.created, 1, "acknowledgement must not re-execute")
}

func TestHandleVoiceQuery_CancelRevertsCreate(t *testing.T) {
	start := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	resolver := &fakeResolver{it: intent.CreateIntent{Title: "Dinner", Start: start, End: start.Add(time.Hour)}}
	gateway := &fakeGateway{}
	a := newTestAgent(t, resolver, gateway, 5*time.Minute)

	_, _ = a.HandleVoiceQuery(context.Background(), "schedule dinner")

	resolver.it = intent.CancelIntent{}
	resp, status := a.HandleVoiceQuery(context.Background(), "no, cancel that")

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Cancelled! I've removed 'Dinner' from your calendar.", resp.Message)
	assert.Equal(t, []string{"evt-new"}, gateway.deletedIDs)
}

func TestHandleVoiceQuery_CancelWithNoRecentAction(t *testing.T) {
	resolver := &fakeResolver{it: intent.CancelIntent{}}
	gateway := &fakeGateway{}
	a := newTestAgent(t, resolver, gateway, 5*time.Minute)

	resp, status := a.HandleVoiceQuery(context.Background(), "no")

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "I don't have any recent actions to cancel.", resp.Message)
	assert.Zero(t, gateway.mutationCount())
}

func TestHandleVoiceQuery_CancelCannotRevertDelete(t *testing.T) {
	now := time.Now().UTC()
	resolver := &fakeResolver{it: intent.DeleteIntent{TargetQuery: "dentist"}}
	gateway := &fakeGateway{events: []calendar.Event{
		{ID: "evt-dentist", Title: "Dentist", Start: now.Add(time.Hour), End: now.Add(2 * time.Hour)},
	}}
	a := newTestAgent(t, resolver, gateway, 5*time.Minute)

	_, _ = a.HandleVoiceQuery(context.Background(), "cancel the dentist")
	require.Equal(t, []string{"evt-dentist"}, gateway.deletedIDs)

	resolver.it = intent.CancelIntent{}
	resp, _ := a.HandleVoiceQuery(context.Background(), "no wait")

	assert.Equal(t, "I can't restore 'Dentist' as it has already been deleted.", resp.Message)
	assert.Len(t, gateway.deletedIDs, 1)
}
