package messages

import (
	"crm-interactions/internal/lifecycle"
)

func rank(s Status) int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

func target(ev ReceiptEvent) (Status, bool) {
	switch ev {
	case ReceiptDelivered:
		return StatusDelivered, true
	case ReceiptRead:
		return StatusRead, true
	default:
		return "", false
	}
}

// Apply computes the effect of a receipt on m without mutating it.
//
// Receipts only move operator messages forward. A receipt for a status the
// message already reached (or passed) is ignored, as is any receipt for a failed
// or counterparty-authored message.
func Apply(m Message, ev ReceiptEvent) (Status, lifecycle.Outcome, error) {
	to, ok := target(ev)
	if !ok {
		return m.Status, lifecycle.Outcome{}, lifecycle.Validation("messages.Apply", "unknown receipt event "+string(ev))
	}
	if m.Sender != SenderOperator {
		return m.Status, lifecycle.Ignored(string(m.Status), string(to), lifecycle.ReasonNotTracked), nil
	}
	if m.Status == StatusFailed {
		return m.Status, lifecycle.Ignored(string(m.Status), string(to), lifecycle.ReasonTerminal), nil
	}
	if rank(to) <= rank(m.Status) {
		return m.Status, lifecycle.Ignored(string(m.Status), string(to), lifecycle.ReasonStale), nil
	}
	return to, lifecycle.Applied(string(m.Status), string(to)), nil
}
