package calls

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"crm-interactions/internal/lifecycle"
)

var (
	ErrNotFound      = errors.New("calls: not found")
	ErrAlreadyExists = errors.New("calls: already exists")
)

// Repository is the persistence contract for calls.
//
// UpdateStatus, LinkCustomer and LinkTicket are conditional writes that report
// whether they changed the row. LinkTicket must also refuse calls without a
// linked customer.
type Repository interface {
	Create(ctx context.Context, c Call) error
	Get(ctx context.Context, id string) (Call, error)
	UpdateStatus(ctx context.Context, id string, from, to CallStatus, cause string, at time.Time) (bool, error)
	LinkCustomer(ctx context.Context, id, customerID string, at time.Time) (bool, error)
	LinkTicket(ctx context.Context, id, ticketID string, at time.Time) (bool, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]Call, error)
}

// MemoryRepo is an in-memory Repository for tests and mock mode.
type MemoryRepo struct {
	mu    sync.Mutex
	calls map[string]Call
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{calls: map[string]Call{}} }

func (r *MemoryRepo) Create(ctx context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calls[c.ID]; ok {
		return ErrAlreadyExists
	}
	r.calls[c.ID] = c
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, from, to CallStatus, cause string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return false, ErrNotFound
	}
	if c.Status != from {
		return false, nil
	}
	c.Status = to
	if cause != "" {
		c.HangupCause = cause
	}
	c.UpdatedAt = at
	r.calls[id] = c
	return true, nil
}

func (r *MemoryRepo) LinkCustomer(ctx context.Context, id, customerID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return false, ErrNotFound
	}
	if c.LinkedCustomer.IsSet() {
		return false, nil
	}
	c.LinkedCustomer = lifecycle.SomeID(customerID)
	c.UpdatedAt = at
	r.calls[id] = c
	return true, nil
}

func (r *MemoryRepo) LinkTicket(ctx context.Context, id, ticketID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return false, ErrNotFound
	}
	if !c.LinkedCustomer.IsSet() || c.LinkedTicket.IsSet() {
		return false, nil
	}
	c.LinkedTicket = lifecycle.SomeID(ticketID)
	c.UpdatedAt = at
	r.calls[id] = c
	return true, nil
}

func (r *MemoryRepo) ListBetween(ctx context.Context, from, to time.Time) ([]Call, error) {
	r.mu.Lock()
	out := make([]Call, 0)
	for _, c := range r.calls {
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
