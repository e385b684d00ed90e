package messages

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned by repositories when no message matches.
var ErrNotFound = errors.New("messages: not found")

// Repository is the persistence contract for messages.
//
// UpdateStatus is a conditional write: it only succeeds while the stored status
// still equals from, so two concurrent receipts cannot both move the same
// message off one status.
type Repository interface {
	Create(ctx context.Context, m Message) error
	Get(ctx context.Context, id string) (Message, error)
	UpdateStatus(ctx context.Context, id string, from, to Status, reason string, at time.Time) (bool, error)
	ListByRoom(ctx context.Context, room string, limit int) ([]Message, error)
	// ListUnread returns every operator message in room that is sent or
	// delivered, oldest first, without a page limit.
	ListUnread(ctx context.Context, room string) ([]Message, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]Message, error)
}

// MemoryRepo is an in-memory Repository for tests and mock mode.
type MemoryRepo struct {
	mu   sync.Mutex
	byID map[string]Message
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{byID: map[string]Message{}} }

func (r *MemoryRepo) Create(ctx context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[m.ID]; ok {
		return errors.New("messages: duplicate id")
	}
	r.byID[m.ID] = m
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return m, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, from, to Status, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if m.Status != from {
		return false, nil
	}
	m.Status = to
	if reason != "" {
		m.FailureReason = reason
	}
	m.UpdatedAt = at
	r.byID[id] = m
	return true, nil
}

func (r *MemoryRepo) ListByRoom(ctx context.Context, room string, limit int) ([]Message, error) {
	r.mu.Lock()
	out := make([]Message, 0)
	for _, m := range r.byID {
		if m.Room == room {
			out = append(out, m)
		}
	}
	r.mu.Unlock()

	sortChronological(out)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *MemoryRepo) ListUnread(ctx context.Context, room string) ([]Message, error) {
	r.mu.Lock()
	out := make([]Message, 0)
	for _, m := range r.byID {
		if m.Room != room || m.Sender != SenderOperator {
			continue
		}
		if m.Status == StatusSent || m.Status == StatusDelivered {
			out = append(out, m)
		}
	}
	r.mu.Unlock()

	sortChronological(out)
	return out, nil
}

func (r *MemoryRepo) ListBetween(ctx context.Context, from, to time.Time) ([]Message, error) {
	r.mu.Lock()
	out := make([]Message, 0)
	for _, m := range r.byID {
		if m.Timestamp.Before(from) || !m.Timestamp.Before(to) {
			continue
		}
		out = append(out, m)
	}
	r.mu.Unlock()

	sortChronological(out)
	return out, nil
}

// sortChronological orders by timestamp; ULIDs break ties in creation order.
func sortChronological(ms []Message) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Timestamp.Equal(ms[j].Timestamp) {
			return ms[i].ID < ms[j].ID
		}
		return ms[i].Timestamp.Before(ms[j].Timestamp)
	})
}
