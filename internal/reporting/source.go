package reporting

import (
	"context"
	"time"

	"crm-interactions/internal/calls"
	"crm-interactions/internal/messages"
	"crm-interactions/internal/templates"
)

// ServiceSource reads straight from the lifecycle services, so reports work
// with whichever storage those services were built on.
type ServiceSource struct {
	Calls     *calls.Service
	Messages  *messages.Service
	Templates *templates.Service
}

func (s ServiceSource) ListCalls(ctx context.Context, from, to time.Time) ([]calls.Call, error) {
	return s.Calls.ListBetween(ctx, from, to)
}

func (s ServiceSource) ListMessages(ctx context.Context, from, to time.Time) ([]messages.Message, error) {
	return s.Messages.ListBetween(ctx, from, to)
}

func (s ServiceSource) ListTemplates(ctx context.Context, from, to time.Time) ([]templates.Template, error) {
	all, err := s.Templates.List(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]templates.Template, 0, len(all))
	for _, t := range all {
		if !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}
