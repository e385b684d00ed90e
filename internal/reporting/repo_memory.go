package reporting

import (
	"context"
	"sync"
	"time"

	"crm-interactions/internal/calls"
	"crm-interactions/internal/messages"
	"crm-interactions/internal/templates"
)

// MemoryRepo is a simple in-memory reporting repository for tests.
type MemoryRepo struct {
	mu sync.Mutex

	Calls     []calls.Call
	Messages  []messages.Message
	Templates []templates.Template
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func inRange(at, from, to time.Time) bool {
	return !at.Before(from) && at.Before(to)
}

func (r *MemoryRepo) ListCalls(ctx context.Context, from, to time.Time) ([]calls.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Call, 0)
	for _, c := range r.Calls {
		if inRange(c.CreatedAt, from, to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListMessages(ctx context.Context, from, to time.Time) ([]messages.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]messages.Message, 0)
	for _, m := range r.Messages {
		if inRange(m.Timestamp, from, to) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListTemplates(ctx context.Context, from, to time.Time) ([]templates.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]templates.Template, 0)
	for _, t := range r.Templates {
		if inRange(t.CreatedAt, from, to) {
			out = append(out, t)
		}
	}
	return out, nil
}
