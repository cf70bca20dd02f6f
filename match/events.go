package match

import (
	"encoding/json"
	"errors"
	"time"
)

// Kind is the canonical event category extracted from a webhook payload.
type Kind int

const (
	KindUnknown Kind = iota
	KindCreated
	KindConfiguring
	KindReady
	KindFinished
)

func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindConfiguring:
		return "configuring"
	case KindReady:
		return "ready"
	case KindFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Event is a normalized webhook notification.
type Event struct {
	Kind    Kind
	RawKind string // event type string as delivered
	MatchID string
	// FinishedAt carries an explicit finish time when the sender supplies one;
	// zero means "stamp at handling time".
	FinishedAt time.Time
}

// ErrNotRecognized marks a payload that parsed as JSON but carries no usable
// event kind or match id. The webhook handler answers such payloads with a
// non-error "ignored" acknowledgment so the sender never retries them.
var ErrNotRecognized = errors.New("payload not recognized")

// envelope covers the payload shapes observed from the event source. The
// event kind may appear under several keys; the match id always sits at
// payload.id.
type envelope struct {
	Event     string `json:"event"`
	Type      string `json:"type"`
	EventType string `json:"event_type"`
	Payload   struct {
		Event      string `json:"event"`
		ID         string `json:"id"`
		FinishedAt string `json:"finished_at"`
	} `json:"payload"`
}

// Normalize extracts a canonical event from an arbitrary JSON payload.
// A JSON syntax error is returned as-is (the transport layer answers 500);
// a structurally valid payload lacking an event kind or match id returns
// ErrNotRecognized.
func Normalize(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, err
	}

	kind := env.Event
	if kind == "" {
		kind = env.Type
	}
	if kind == "" {
		kind = env.EventType
	}
	if kind == "" {
		kind = env.Payload.Event
	}
	if kind == "" {
		return Event{}, ErrNotRecognized
	}
	if env.Payload.ID == "" {
		return Event{}, ErrNotRecognized
	}

	ev := Event{Kind: ParseEventKind(kind), RawKind: kind, MatchID: env.Payload.ID}
	if env.Payload.FinishedAt != "" {
		if t, err := time.Parse(time.RFC3339, env.Payload.FinishedAt); err == nil {
			ev.FinishedAt = t.UTC()
		}
	}
	return ev, nil
}

// ParseEventKind maps a raw event type string to its canonical kind.
func ParseEventKind(s string) Kind {
	switch s {
	case "match_object_created":
		return KindCreated
	case "match_status_configuring":
		return KindConfiguring
	case "match_status_ready":
		return KindReady
	case "match_status_finished", "match_status_aborted", "match_status_cancelled":
		return KindFinished
	default:
		return KindUnknown
	}
}
