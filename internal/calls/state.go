package calls

import "crm-interactions/internal/lifecycle"

func rank(s CallStatus) int {
	switch s {
	case CallStatusQueued:
		return 0
	case CallStatusActive:
		return 1
	case CallStatusCompleted, CallStatusMissed:
		return 2
	default:
		return -1
	}
}

// Apply computes the effect of a telephony status event on c.
//
// Legal moves are queued → active → {completed, missed}, plus queued straight to
// a final status (unanswered or rejected calls). Anything else is reported as an
// ignored outcome, not an error.
func Apply(c Call, to CallStatus) (lifecycle.Outcome, error) {
	if rank(to) < 0 {
		return lifecycle.Outcome{}, lifecycle.Validation("calls.Apply", "unknown call status "+string(to))
	}
	if c.Status.Terminal() {
		return lifecycle.Ignored(string(c.Status), string(to), lifecycle.ReasonTerminal), nil
	}
	if rank(to) <= rank(c.Status) {
		return lifecycle.Ignored(string(c.Status), string(to), lifecycle.ReasonStale), nil
	}
	return lifecycle.Applied(string(c.Status), string(to)), nil
}
