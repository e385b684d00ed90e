package transport

import (
	"context"
	"sync"

	"crm-interactions/internal/messages"
)

// Sandbox accepts messages without a broker. Used in mock mode and tests.
type Sandbox struct {
	mu   sync.Mutex
	sent []messages.Message
	fail error
}

func NewSandbox() *Sandbox { return &Sandbox{} }

func (s *Sandbox) Send(ctx context.Context, m messages.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, m)
	return nil
}

// FailWith makes subsequent sends fail with err; nil restores success.
func (s *Sandbox) FailWith(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func (s *Sandbox) Sent() []messages.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]messages.Message(nil), s.sent...)
}
