package directory

import (
	"context"
	"sync"

	"crm-interactions/internal/calls"
)

// MemoryDirectory is an in-memory customer directory for tests and mock mode.
// Lookups return customers in insertion order.
type MemoryDirectory struct {
	mu        sync.RWMutex
	customers []calls.Customer
}

func NewMemoryDirectory(seed ...calls.Customer) *MemoryDirectory {
	return &MemoryDirectory{customers: append([]calls.Customer(nil), seed...)}
}

func (d *MemoryDirectory) Add(c calls.Customer) {
	d.mu.Lock()
	d.customers = append(d.customers, c)
	d.mu.Unlock()
}

func (d *MemoryDirectory) LookupByPhone(ctx context.Context, phone string) ([]calls.Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]calls.Customer, 0)
	for _, c := range d.customers {
		if c.Phone == phone {
			out = append(out, c)
		}
	}
	return out, nil
}
