package templates

import "crm-interactions/internal/lifecycle"

// Resolve computes the terminal status an approval callback moves t to.
// Only pending templates can be resolved.
func Resolve(t Template, approved bool) (Status, error) {
	if t.Status != StatusPending {
		return t.Status, lifecycle.AlreadyResolved("templates.Resolve", "template already "+string(t.Status))
	}
	if approved {
		return StatusApproved, nil
	}
	return StatusRejected, nil
}
