package templates

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrNotFound = errors.New("templates: not found")

// Repository is the persistence contract for templates. Resolve only writes
// while the stored status is still pending.
type Repository interface {
	Create(ctx context.Context, t Template) error
	Get(ctx context.Context, id string) (Template, error)
	Resolve(ctx context.Context, id string, to Status, reason string, at time.Time) (bool, error)
	List(ctx context.Context, status Status) ([]Template, error)
}

type MemoryRepo struct {
	mu   sync.Mutex
	byID map[string]Template
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{byID: map[string]Template{}} }

func (r *MemoryRepo) Create(ctx context.Context, t Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[t.ID]; ok {
		return errors.New("templates: duplicate id")
	}
	t.Variables = append([]string(nil), t.Variables...)
	r.byID[t.ID] = t
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return Template{}, ErrNotFound
	}
	t.Variables = append([]string(nil), t.Variables...)
	return t, nil
}

func (r *MemoryRepo) Resolve(ctx context.Context, id string, to Status, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if t.Status != StatusPending {
		return false, nil
	}
	t.Status = to
	t.RejectionReason = reason
	t.ResolvedAt = &at
	r.byID[id] = t
	return true, nil
}

// List returns templates with the given status, or all when status is empty.
func (r *MemoryRepo) List(ctx context.Context, status Status) ([]Template, error) {
	r.mu.Lock()
	out := make([]Template, 0, len(r.byID))
	for _, t := range r.byID {
		if status != "" && t.Status != status {
			continue
		}
		t.Variables = append([]string(nil), t.Variables...)
		out = append(out, t)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
