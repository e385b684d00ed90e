package reporting

import (
	"context"
	"errors"
	"time"

	"crm-interactions/internal/calls"
	"crm-interactions/internal/messages"
	"crm-interactions/internal/templates"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts read access for reporting. Ranges are [from, to).
type Repository interface {
	ListCalls(ctx context.Context, from, to time.Time) ([]calls.Call, error)
	ListMessages(ctx context.Context, from, to time.Time) ([]messages.Message, error)
	ListTemplates(ctx context.Context, from, to time.Time) ([]templates.Template, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, r TimeRange) (CallsSummary, error) {
	if !r.valid() {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}
	rows, err := s.repo.ListCalls(ctx, r.From, r.To)
	if err != nil {
		return CallsSummary{}, err
	}

	var out CallsSummary
	for _, c := range rows {
		out.TotalCalls++
		if c.Direction == calls.CallDirectionInbound {
			out.InboundCalls++
		} else {
			out.OutboundCalls++
		}
		switch c.Status {
		case calls.CallStatusQueued:
			out.QueuedCalls++
		case calls.CallStatusActive:
			out.ActiveCalls++
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusMissed:
			out.MissedCalls++
		}
		if c.LinkedCustomer.IsSet() {
			out.CallsWithCustomer++
		}
		if c.LinkedTicket.IsSet() {
			out.CallsWithTicket++
		}
	}
	if out.TotalCalls > 0 {
		out.ResolutionRate = float64(out.CallsWithCustomer) / float64(out.TotalCalls)
		out.TicketRate = float64(out.CallsWithTicket) / float64(out.TotalCalls)
	}
	return out, nil
}

func (s *Service) MessagesSummary(ctx context.Context, r TimeRange) (MessagesSummary, error) {
	if !r.valid() {
		return MessagesSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return MessagesSummary{}, errors.New("reporting: repository not configured")
	}
	rows, err := s.repo.ListMessages(ctx, r.From, r.To)
	if err != nil {
		return MessagesSummary{}, err
	}

	var out MessagesSummary
	for _, m := range rows {
		out.TotalMessages++
		if m.Sender == messages.SenderCounterparty {
			out.CounterpartyMessages++
			continue
		}
		out.OperatorMessages++
		if m.RetryOf.IsSet() {
			out.Retries++
		}
		switch m.Status {
		case messages.StatusSent:
			out.Sent++
		case messages.StatusDelivered:
			out.Delivered++
		case messages.StatusRead:
			out.Read++
		case messages.StatusFailed:
			out.Failed++
		}
	}
	if out.OperatorMessages > 0 {
		out.ReadRate = float64(out.Read) / float64(out.OperatorMessages)
		out.FailureRate = float64(out.Failed) / float64(out.OperatorMessages)
	}
	return out, nil
}

func (s *Service) TemplatesSummary(ctx context.Context, r TimeRange) (TemplatesSummary, error) {
	if !r.valid() {
		return TemplatesSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return TemplatesSummary{}, errors.New("reporting: repository not configured")
	}
	rows, err := s.repo.ListTemplates(ctx, r.From, r.To)
	if err != nil {
		return TemplatesSummary{}, err
	}

	out := TemplatesSummary{ByCategory: map[string]int{}}
	for _, t := range rows {
		out.TotalTemplates++
		out.ByCategory[string(t.Category)]++
		switch t.Status {
		case templates.StatusPending:
			out.Pending++
		case templates.StatusApproved:
			out.Approved++
		case templates.StatusRejected:
			out.Rejected++
		}
	}
	return out, nil
}

// Summary combines the three summaries for one range.
func (s *Service) Summary(ctx context.Context, r TimeRange) (Summary, error) {
	c, err := s.CallsSummary(ctx, r)
	if err != nil {
		return Summary{}, err
	}
	m, err := s.MessagesSummary(ctx, r)
	if err != nil {
		return Summary{}, err
	}
	t, err := s.TemplatesSummary(ctx, r)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Range: r, Calls: c, Messages: m, Templates: t}, nil
}
