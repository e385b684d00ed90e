package transport

import (
	"context"
	"fmt"

	"crm-interactions/internal/messages"

	"golang.org/x/time/rate"
)

// Throttled limits the outbound send rate of another transport. Send waits
// for a token and gives up when ctx ends.
type Throttled struct {
	next    messages.Transport
	limiter *rate.Limiter
}

func NewThrottled(next messages.Transport, perSecond float64, burst int) *Throttled {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (t *Throttled) Send(ctx context.Context, m messages.Message) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("transport: rate limit: %w", err)
	}
	return t.next.Send(ctx, m)
}
