// Package thread implements the append-only conversation log the agent loop
// reads and extends. Events are never removed or reordered.
package thread

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates the records a Thread can hold.
type EventKind string

const (
	KindUserInput      EventKind = "user_input"
	KindToolCall       EventKind = "tool_call"
	KindToolResponse   EventKind = "tool_response"
	KindSystemResponse EventKind = "system_response"
	KindError          EventKind = "error"
	KindHumanResponse  EventKind = "human_response"
)

// Event is one immutable record in a Thread. Data must be JSON-serializable.
type Event struct {
	Kind      EventKind `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// UserInput builds the seed event for a new conversation.
func UserInput(text string) Event {
	return Event{Kind: KindUserInput, Data: text, Timestamp: time.Now().UTC()}
}

// HumanResponse builds the event answering a clarification request.
func HumanResponse(text string) Event {
	return Event{Kind: KindHumanResponse, Data: text, Timestamp: time.Now().UTC()}
}

// Thread is an append-only ordered log of events. A Thread is driven by
// exactly one loop invocation at a time by contract, so it carries no
// internal locking.
type Thread struct {
	ID     string  `json:"id"`
	Events []Event `json:"events"`
}

// New creates a thread with a fresh identifier, optionally seeded with
// initial events.
func New(seed ...Event) *Thread {
	return &Thread{ID: uuid.NewString(), Events: append([]Event(nil), seed...)}
}

// Append adds an event to the log and returns the thread for chaining.
// It never fails for well-formed events.
func (t *Thread) Append(ev Event) *Thread {
	t.Events = append(t.Events, ev)
	return t
}

// LastEvent returns the most recent event, if any.
func (t *Thread) LastEvent() (Event, bool) {
	if len(t.Events) == 0 {
		return Event{}, false
	}
	return t.Events[len(t.Events)-1], true
}

// Len returns the number of events in the log.
func (t *Thread) Len() int { return len(t.Events) }

// serializedEvent is the provider-agnostic line format. Timestamps are
// excluded so the rendering is a pure function of the event sequence.
type serializedEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Serialize renders the event log as one JSON object per line for prompt
// embedding. Identical event sequences always serialize identically, and
// appending strictly extends the previous rendering.
func (t *Thread) Serialize() string {
	var sb strings.Builder
	for i := range t.Events {
		if i > 0 {
			sb.WriteByte('\n')
		}
		line, err := json.Marshal(serializedEvent{Type: string(t.Events[i].Kind), Data: t.Events[i].Data})
		if err != nil {
			line, _ = json.Marshal(serializedEvent{Type: string(t.Events[i].Kind), Data: "unserializable: " + err.Error()})
		}
		sb.Write(line)
	}
	return sb.String()
}
