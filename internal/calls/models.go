package calls

import (
	"time"

	"crm-interactions/internal/lifecycle"
)

// Call is a phone call as reported by the telephony backend.
//
// Correlation invariants:
// - LinkedTicket can only be set while LinkedCustomer is set.
// - LinkedTicket is written once and never re-linked.
//
// Status is a reflection of external telephony events; nothing in this package
// advances it on a timer.
type Call struct {
	// ID is the telephony backend's call id.
	ID        string        `json:"id" db:"id"`
	Direction CallDirection `json:"direction" db:"direction"`

	CounterpartyNumber string `json:"counterparty_number" db:"counterparty_number"`
	OwnNumber          string `json:"own_number" db:"own_number"`

	Status CallStatus `json:"status" db:"status"`

	LinkedCustomer lifecycle.OptionalID `json:"linked_customer_id" db:"linked_customer_id"`
	LinkedTicket   lifecycle.OptionalID `json:"linked_ticket_id" db:"linked_ticket_id"`

	// AgentUserID is the CRM user who placed (or answered) the call, if known.
	AgentUserID string `json:"agent_user_id,omitempty" db:"agent_user_id"`
	// HangupCause is the raw PBX cause of the final status, kept for reporting.
	HangupCause string `json:"hangup_cause,omitempty" db:"hangup_cause"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CallState is the externally visible state of a call.
type CallState struct {
	Status           CallStatus           `json:"status"`
	LinkedCustomerID lifecycle.OptionalID `json:"linked_customer_id"`
	LinkedTicketID   lifecycle.OptionalID `json:"linked_ticket_id"`
}

func (c Call) State() CallState {
	return CallState{Status: c.Status, LinkedCustomerID: c.LinkedCustomer, LinkedTicketID: c.LinkedTicket}
}

type CallDirection string

const (
	CallDirectionInbound  CallDirection = "inbound"
	CallDirectionOutbound CallDirection = "outbound"
)

func (d CallDirection) Valid() bool {
	return d == CallDirectionInbound || d == CallDirectionOutbound
}

type CallStatus string

const (
	CallStatusQueued    CallStatus = "queued"
	CallStatusActive    CallStatus = "active"
	CallStatusCompleted CallStatus = "completed"
	CallStatusMissed    CallStatus = "missed"
)

// Terminal reports whether no further status events apply.
func (s CallStatus) Terminal() bool {
	return s == CallStatusCompleted || s == CallStatusMissed
}

// Customer is a read-only record from the customer directory.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Article is the first note of a ticket.
type Article struct {
	Body string `json:"body"`
}

// TicketRequest is what the ticketing API needs to open a ticket for a call.
type TicketRequest struct {
	CustomerID string  `json:"customer_id"`
	Title      string  `json:"title"`
	Article    Article `json:"article"`

	// CallID lets ticketing backends reference the originating call.
	CallID string `json:"call_id,omitempty"`
}

// Ticket is the ticketing API's answer.
type Ticket struct {
	ID     string `json:"id"`
	Number string `json:"number,omitempty"`
}

type PlaceCallRequest struct {
	From        string `json:"from"`
	To          string `json:"to"`
	AgentUserID string `json:"agent_user_id,omitempty"`
}

// PlacedCall is the telephony API's acknowledgment of an outbound call.
type PlacedCall struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusEvent is an asynchronous status change emitted by the telephony backend.
type StatusEvent struct {
	CallID string     `json:"call_id"`
	Status CallStatus `json:"status"`
	Cause  string     `json:"cause,omitempty"`
}

// RegisterRequest announces a call first seen through a telephony event.
type RegisterRequest struct {
	ID                 string
	Direction          CallDirection
	CounterpartyNumber string
	OwnNumber          string
	AgentUserID        string
	At                 time.Time
}
