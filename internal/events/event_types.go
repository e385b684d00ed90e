package events

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Entity identifies which lifecycle an event belongs to.
type Entity string

const (
	EntityMessage  Entity = "message"
	EntityCall     Entity = "call"
	EntityTemplate Entity = "template"
)

// StatusChange is published after a status transition has been persisted.
type StatusChange struct {
	ID       string    `json:"id"`
	Entity   Entity    `json:"entity"`
	EntityID string    `json:"entity_id"`
	From     string    `json:"from,omitempty"`
	To       string    `json:"to"`
	Room     string    `json:"room,omitempty"`
	At       time.Time `json:"at"`

	// Links carries correlation updates (e.g. customer_id, ticket_id for calls).
	Links map[string]string `json:"links,omitempty"`
}

// NewStatusChange stamps an event with a sortable id.
func NewStatusChange(entity Entity, entityID, from, to string, at time.Time) StatusChange {
	return StatusChange{
		ID:       ulid.Make().String(),
		Entity:   entity,
		EntityID: entityID,
		From:     from,
		To:       to,
		At:       at.UTC(),
	}
}
