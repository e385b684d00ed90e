package messages

import (
	"time"

	"crm-interactions/internal/lifecycle"
)

// Sender is the author role of a message.
type Sender string

const (
	SenderOperator     Sender = "operator"
	SenderCounterparty Sender = "counterparty"
)

// Status is the delivery status of an operator-authored message.
//
// sent → delivered → read is linear and never regresses. failed is terminal and
// only reachable from sent, when the transport rejects the send.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return true
	default:
		return false
	}
}

// Message is a unit of chat communication within a room.
type Message struct {
	ID        string `json:"id" db:"id"`
	Sender    Sender `json:"sender" db:"sender"`
	Text      string `json:"text" db:"body"`
	Room      string `json:"room" db:"room"`
	SubjectID string `json:"subject_id" db:"subject_id"`
	Status    Status `json:"status" db:"status"`

	// RetryOf points at the failed message this one re-sends.
	RetryOf lifecycle.OptionalID `json:"retry_of" db:"retry_of"`
	// TemplateID is set when the text was rendered from an approved template.
	TemplateID lifecycle.OptionalID `json:"template_id" db:"template_id"`

	FailureReason string `json:"failure_reason,omitempty" db:"failure_reason"`

	Timestamp time.Time `json:"timestamp" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ReceiptEvent is a transport acknowledgment emitted by the counterparty's client.
type ReceiptEvent string

const (
	ReceiptDelivered ReceiptEvent = "delivered"
	ReceiptRead      ReceiptEvent = "read"
)

// Receipt is a delivery/read confirmation for one message. EventID, when the
// transport provides one, is used to drop re-deliveries early.
type Receipt struct {
	EventID   string       `json:"event_id,omitempty"`
	Event     ReceiptEvent `json:"event"`
	MessageID string       `json:"message_id"`
}

// SendRequest is an operator-initiated outbound message.
type SendRequest struct {
	Room        string
	SubjectID   string
	Text        string
	ActorUserID string

	RetryOf    string
	TemplateID string
}

// InboundRequest records a counterparty-authored message.
type InboundRequest struct {
	Room      string
	SubjectID string
	Text      string
}
