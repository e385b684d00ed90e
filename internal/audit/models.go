package audit

import "time"

// Event is an immutable, append-only audit record of a lifecycle change.
//
// Invariants:
// - Events are never updated or deleted.
// - entity and entity_id are required.
// - Audit writes are best-effort; a failed append never blocks a transition.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	Entity   string `json:"entity" db:"entity"`
	EntityID string `json:"entity_id" db:"entity_id"`

	From string `json:"from,omitempty" db:"from_status"`
	To   string `json:"to,omitempty" db:"to_status"`

	// ActorUserID is the operator causing the event; empty for provider callbacks.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeTransition   EventType = "transition"
	EventTypeStaleIgnored EventType = "stale_event_ignored"
	EventTypeLinked       EventType = "linked"
	EventTypeCreated      EventType = "created"
)
