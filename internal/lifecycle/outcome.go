package lifecycle

// Outcome is the result of applying an external status event to an entity.
//
// A stale event (duplicate, reordered, or targeting a terminal entity) is not an
// error: Applied is false and Reason says why it was ignored.
type Outcome struct {
	Applied bool   `json:"applied"`
	From    string `json:"from"`
	To      string `json:"to"`
	Reason  string `json:"reason,omitempty"`
}

// Reasons recorded when an event is ignored.
const (
	ReasonStale      = "stale_event_ignored"
	ReasonTerminal   = "entity_terminal"
	ReasonNotTracked = "status_not_tracked"
	ReasonDuplicate  = "duplicate_delivery"
)

func Applied(from, to string) Outcome {
	return Outcome{Applied: true, From: from, To: to}
}

func Ignored(current, requested, reason string) Outcome {
	return Outcome{From: current, To: requested, Reason: reason}
}
