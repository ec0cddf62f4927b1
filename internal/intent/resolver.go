package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/calagent/internal/logging"
)

// Resolver turns a free-text utterance into a typed Intent relative to a
// reference time. Implementations must be side-effect free: the same
// utterance and reference time yield the same intent.
type Resolver interface {
	Resolve(ctx context.Context, utterance string, now time.Time) (Intent, error)
}

// LLMResolver resolves intents with a chat-completions call and falls back
// to keyword classification when the model is unreachable. It works against
// any endpoint implementing the OpenAI chat completions wire format.
type LLMResolver struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	loc        *time.Location
	logger     *slog.Logger
}

// LLMResolverConfig configures an LLMResolver.
type LLMResolverConfig struct {
	BaseURL  string
	APIKey   string
	Model    string
	Location *time.Location
	Logger   *slog.Logger
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// NewLLMResolver creates a resolver backed by a chat completions endpoint.
func NewLLMResolver(cfg LLMResolverConfig) *LLMResolver {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &LLMResolver{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		loc:        loc,
		logger:     logger,
	}
}

// Chat completions wire format. Compatible with OpenAI, Azure OpenAI,
// OpenRouter, vLLM, Ollama and llama.cpp.
type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// wireIntent is the JSON shape the model is instructed to produce.
type wireIntent struct {
	Intent   string       `json:"intent"`
	Entities wireEntities `json:"entities"`
}

type wireEntities struct {
	StartTime   string       `json:"start_time,omitempty"`
	EndTime     string       `json:"end_time,omitempty"`
	Title       string       `json:"title,omitempty"`
	Location    string       `json:"location,omitempty"`
	Description string       `json:"description,omitempty"`
	Attendees   []string     `json:"attendees,omitempty"`
	Query       string       `json:"query,omitempty"`
	Changes     *wireChanges `json:"changes,omitempty"`
}

type wireChanges struct {
	Title       string   `json:"title,omitempty"`
	StartTime   string   `json:"start_time,omitempty"`
	EndTime     string   `json:"end_time,omitempty"`
	Location    string   `json:"location,omitempty"`
	Description string   `json:"description,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
}

// Resolve classifies the utterance and extracts a fully-populated intent.
// Model transport failures degrade to the keyword fallback; a reachable
// model that cannot make sense of the utterance is a ResolutionError.
func (r *LLMResolver) Resolve(ctx context.Context, utterance string, now time.Time) (Intent, error) {
	now = now.In(r.loc)

	wire, err := r.complete(ctx, utterance, now)
	if err != nil {
		r.logger.Warn("language model call failed, using keyword fallback", logging.Err(err))
		return fallbackParse(utterance, now, r.loc)
	}

	return r.intentFromWire(wire, now)
}

func (r *LLMResolver) complete(ctx context.Context, utterance string, now time.Time) (*wireIntent, error) {
	reqBody := chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(now, r.loc)},
			{Role: "user", Content: utterance},
		},
		Temperature:    0.3,
		ResponseFormat: &chatResponseFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completions request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read chat response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("chat completions error: %s: %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat completions returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("chat completions returned no choices")
	}

	var wire wireIntent
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &wire); err != nil {
		return nil, fmt.Errorf("model produced invalid intent JSON: %w", err)
	}

	return &wire, nil
}

// intentFromWire validates the model output and builds the typed intent,
// applying the defaulting rules (today for open list ranges, one hour for
// missing event duration).
func (r *LLMResolver) intentFromWire(wire *wireIntent, now time.Time) (Intent, error) {
	switch wire.Intent {
	case "list":
		start := startOfDay(now)
		if wire.Entities.StartTime != "" {
			t, err := parseWireTime(wire.Entities.StartTime, r.loc)
			if err != nil {
				return nil, NewResolutionError("I couldn't work out the date range for that. Please try rephrasing.")
			}
			start = t
		}
		end := endOfDay(start)
		if wire.Entities.EndTime != "" {
			t, err := parseWireTime(wire.Entities.EndTime, r.loc)
			if err != nil {
				return nil, NewResolutionError("I couldn't work out the date range for that. Please try rephrasing.")
			}
			end = t
		}
		return QueryIntent{Start: start, End: end}, nil

	case "create":
		if wire.Entities.StartTime == "" {
			return nil, NewResolutionError("I couldn't determine when you want to schedule this event. Please specify a time.")
		}
		start, err := parseWireTime(wire.Entities.StartTime, r.loc)
		if err != nil {
			return nil, NewResolutionError("I couldn't determine when you want to schedule this event. Please specify a time.")
		}
		end := start.Add(time.Hour)
		if wire.Entities.EndTime != "" {
			if t, err := parseWireTime(wire.Entities.EndTime, r.loc); err == nil {
				end = t
			}
		}
		title := wire.Entities.Title
		if title == "" {
			title = "New Event"
		}
		return CreateIntent{
			Title:       title,
			Start:       start,
			End:         end,
			Location:    wire.Entities.Location,
			Description: wire.Entities.Description,
			Attendees:   wire.Entities.Attendees,
		}, nil

	case "update":
		if wire.Entities.Query == "" {
			return nil, NewResolutionError("I need more information about which event to update.")
		}
		changes, err := changesFromWire(wire.Entities.Changes, r.loc)
		if err != nil {
			return nil, NewResolutionError("I couldn't work out the new time for that event. Please try rephrasing.")
		}
		return UpdateIntent{TargetQuery: wire.Entities.Query, Changes: changes}, nil

	case "delete":
		if wire.Entities.Query == "" {
			return nil, NewResolutionError("I need more information about which event to cancel.")
		}
		return DeleteIntent{TargetQuery: wire.Entities.Query}, nil

	case "confirm":
		return ConfirmIntent{}, nil

	case "cancel":
		return CancelIntent{}, nil

	default:
		return nil, NewResolutionError("I couldn't understand that request. Please try rephrasing.")
	}
}

func changesFromWire(wire *wireChanges, loc *time.Location) (EventChanges, error) {
	var changes EventChanges
	if wire == nil {
		return changes, nil
	}
	changes.Title = wire.Title
	changes.Location = wire.Location
	changes.Description = wire.Description
	changes.Attendees = wire.Attendees
	if wire.StartTime != "" {
		t, err := parseWireTime(wire.StartTime, loc)
		if err != nil {
			return changes, err
		}
		changes.Start = t
	}
	if wire.EndTime != "" {
		t, err := parseWireTime(wire.EndTime, loc)
		if err != nil {
			return changes, err
		}
		changes.End = t
	}
	return changes, nil
}

// parseWireTime parses an ISO timestamp from the model and normalizes it to
// the configured timezone.
func parseWireTime(value string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return t.In(loc), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// systemPrompt instructs the model to emit the wireIntent JSON shape. The
// examples pin down the relative-time rules ("tonight", bare times rolling
// to tomorrow, default one hour duration).
func systemPrompt(now time.Time, loc *time.Location) string {
	return fmt.Sprintf(`You are a calendar assistant that parses natural language queries into structured data.

Current date and time: %s
User's timezone: %s

Parse the user's query and respond with JSON containing:
1. "intent": one of "list", "create", "update", "delete", "confirm", "cancel"
2. "entities": object with relevant fields:
   - For "list": start_time, end_time (ISO format with timezone)
   - For "create": title, start_time, end_time, location (optional), attendees (optional, list of emails), description (optional)
   - For "update": query to find event, changes to make
   - For "delete": query to find event

Time parsing rules:
- "tonight" = 6pm to 11:59pm today
- "today" = rest of today
- "tomorrow" = tomorrow all day
- "9pm" without date = 9pm today (if future) or tomorrow (if past)
- Default event duration = 1 hour if not specified

Examples:
Query: "what's on my agenda tonight"
Response: {"intent": "list", "entities": {"start_time": "2025-10-12T18:00:00-04:00", "end_time": "2025-10-12T23:59:59-04:00"}}

Query: "book meeting with john@email.com at 9pm at my home"
Response: {"intent": "create", "entities": {"title": "Meeting with John", "start_time": "2025-10-12T21:00:00-04:00", "end_time": "2025-10-12T22:00:00-04:00", "location": "my home", "attendees": ["john@email.com"]}}

Query: "cancel my 3pm meeting"
Response: {"intent": "delete", "entities": {"query": "3pm meeting today"}}

Query: "reschedule my 3pm meeting to 5pm"
Response: {"intent": "update", "entities": {"query": "3pm meeting today", "changes": {"start_time": "2025-10-12T17:00:00-04:00", "end_time": "2025-10-12T18:00:00-04:00"}}}

Query: "yes" or "confirm" or "ok" or "correct" or "that's right"
Response: {"intent": "confirm", "entities": {}}

Query: "no" or "cancel" or "don't do that" or "undo" or "delete that"
Response: {"intent": "cancel", "entities": {}}

Only respond with valid JSON, no explanations.`,
		now.Format("Monday, January 2, 2006, 3:04 PM MST"), loc.String())
}
