// Package bus provides the event distribution layer between a reading
// session and its observers. The playback scheduler itself reports through
// synchronous callbacks; the session fans those out here so persistence,
// logging, and attached renderer clients can watch playback without touching
// the scheduler.
package bus

import (
	"time"

	"github.com/google/uuid"

	"github.com/LouPolish/Red-Read/internal/playback"
)

// EventType identifies the kind of playback event.
type EventType string

const (
	// EventToken fires when the token on screen changes.
	EventToken EventType = "token"
	// EventState fires on every scheduler state change.
	EventState EventType = "state"
	// EventProgress fires when percent complete changes.
	EventProgress EventType = "progress"
	// EventComplete fires when playback passes the last token.
	EventComplete EventType = "complete"

	// Session lifecycle events.
	EventSessionStart EventType = "session_start"
	EventSessionEnd   EventType = "session_end"
)

// Event is one playback event. Only the fields relevant to the event type
// are populated; the whole struct serializes to JSON for the observer wire.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	SessionID  string `json:"session_id,omitempty"`
	DocumentID string `json:"document_id,omitempty"`

	// Token payload (EventToken).
	Word          string `json:"word,omitempty"`
	FixationIndex int    `json:"fixation_index,omitempty"`

	// Position payload (EventToken, EventProgress, EventComplete).
	Position int     `json:"position,omitempty"`
	Percent  float64 `json:"percent,omitempty"`

	// State payload (EventState).
	State *playback.State `json:"state,omitempty"`
}

// NewEvent creates an event of the given type with a fresh ID and timestamp.
func NewEvent(eventType EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
	}
}
