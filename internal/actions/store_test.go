package actions

import (
	"sync"
	"testing"
	"time"

	"github.com/teemow/calagent/internal/intent"
)

func testIntent() intent.Intent {
	return intent.CreateIntent{
		Title: "Test meeting",
		Start: time.Date(2025, 10, 12, 21, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 10, 12, 22, 0, 0, 0, time.UTC),
	}
}

func TestStore_RegisterAndConsume(t *testing.T) {
	store := NewStore(5*time.Minute, nil)

	id := store.Register(testIntent(), "", "", "Should I proceed?")
	if len(id) != idLength {
		t.Errorf("id length = %d, want %d", len(id), idLength)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}

	action, err := store.Consume(id)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if action.Prompt != "Should I proceed?" {
		t.Errorf("Prompt = %q", action.Prompt)
	}
	if action.Intent.Kind() != intent.KindCreate {
		t.Errorf("Intent kind = %s, want create", action.Intent.Kind())
	}

	// Second consume of the same id must be NotFound: this is the
	// at-most-once guarantee.
	if _, err := store.Consume(id); err != ErrNotFound {
		t.Errorf("second Consume() error = %v, want ErrNotFound", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
}

func TestStore_Peek_DoesNotConsume(t *testing.T) {
	store := NewStore(5*time.Minute, nil)
	id := store.Register(testIntent(), "evt-1", "Standup", "prompt")

	action, err := store.Peek(id)
	if err != nil {
		t.Fatalf("Peek() error = %v", err)
	}
	if action.TargetEventID != "evt-1" {
		t.Errorf("TargetEventID = %s", action.TargetEventID)
	}
	if action.TargetTitle != "Standup" {
		t.Errorf("TargetTitle = %s", action.TargetTitle)
	}

	if _, err := store.Peek(id); err != nil {
		t.Errorf("second Peek() error = %v, want nil", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1 after peeks", store.Len())
	}
}

func TestStore_Consume_Expired(t *testing.T) {
	store := NewStore(5*time.Minute, nil)

	current := time.Date(2025, 10, 12, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	id := store.Register(testIntent(), "", "", "prompt")

	// Advance past the timeout; the entry is still in the map (no sweep
	// ran) so the first consume must report Expired, not NotFound.
	current = current.Add(6 * time.Minute)

	if _, err := store.Consume(id); err != ErrExpired {
		t.Fatalf("Consume() error = %v, want ErrExpired", err)
	}
	if _, err := store.Consume(id); err != ErrNotFound {
		t.Errorf("Consume() after expiry error = %v, want ErrNotFound", err)
	}
}

func TestStore_Peek_Expired(t *testing.T) {
	store := NewStore(time.Minute, nil)

	current := time.Date(2025, 10, 12, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	id := store.Register(testIntent(), "", "", "prompt")
	current = current.Add(2 * time.Minute)

	if _, err := store.Peek(id); err != ErrExpired {
		t.Errorf("Peek() error = %v, want ErrExpired", err)
	}
}

func TestStore_Sweep(t *testing.T) {
	store := NewStore(time.Minute, nil)

	current := time.Date(2025, 10, 12, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	expired := store.Register(testIntent(), "", "", "old")
	current = current.Add(30 * time.Second)
	fresh := store.Register(testIntent(), "", "", "new")

	store.Sweep(current.Add(45 * time.Second))

	if _, err := store.Consume(expired); err != ErrNotFound {
		t.Errorf("swept action should be NotFound, got %v", err)
	}
	if _, err := store.Consume(fresh); err != nil {
		t.Errorf("fresh action should still consume, got %v", err)
	}
}

func TestStore_Register_NeverOverwrites(t *testing.T) {
	store := NewStore(5*time.Minute, nil)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := store.Register(testIntent(), "", "", "prompt")
		if seen[id] {
			t.Fatalf("duplicate id %s issued while previous still pending", id)
		}
		seen[id] = true
	}
	if store.Len() != 200 {
		t.Errorf("Len = %d, want 200", store.Len())
	}
}

func TestStore_ConcurrentConsume_ExactlyOneWinner(t *testing.T) {
	store := NewStore(5*time.Minute, nil)
	id := store.Register(testIntent(), "", "", "prompt")

	const workers = 32
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Consume(id)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, notFound int
	for err := range results {
		switch err {
		case nil:
			wins++
		case ErrNotFound:
			notFound++
		default:
			t.Errorf("unexpected error %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
	if notFound != workers-1 {
		t.Errorf("NotFound = %d, want %d", notFound, workers-1)
	}
}

func TestHistory_AddAndLast(t *testing.T) {
	history := NewHistory(3)

	current := time.Date(2025, 10, 12, 12, 0, 0, 0, time.UTC)
	history.now = func() time.Time { return current }

	history.Add("evt-1", intent.KindCreate, "Standup")

	last := history.Last(2 * time.Minute)
	if last == nil {
		t.Fatal("expected a recent action")
	}
	if last.EventID != "evt-1" || last.Kind != intent.KindCreate {
		t.Errorf("unexpected last action %+v", last)
	}

	// Outside the freshness window.
	current = current.Add(5 * time.Minute)
	if history.Last(2*time.Minute) != nil {
		t.Error("stale action should not be returned")
	}
}

func TestHistory_Bounded(t *testing.T) {
	history := NewHistory(2)
	history.Add("a", intent.KindCreate, "A")
	history.Add("b", intent.KindCreate, "B")
	history.Add("c", intent.KindCreate, "C")

	if len(history.entries) != 2 {
		t.Errorf("entries = %d, want 2", len(history.entries))
	}
	if history.entries[0].EventID != "b" {
		t.Errorf("oldest kept = %s, want b", history.entries[0].EventID)
	}
}

func TestHistory_Empty(t *testing.T) {
	if NewHistory(0).Last(time.Minute) != nil {
		t.Error("empty history should return nil")
	}
}
