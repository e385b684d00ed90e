package templates

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"crm-interactions/internal/audit"
	"crm-interactions/internal/events"
	"crm-interactions/internal/lifecycle"
	"crm-interactions/internal/messages"
	"crm-interactions/pkg/metrics"

	"github.com/google/uuid"
)

// MessageSender delivers rendered template text; *messages.Service satisfies it.
type MessageSender interface {
	Send(ctx context.Context, req messages.SendRequest) (messages.Message, error)
}

type Dependencies struct {
	Repo   Repository
	Sender MessageSender
	Events events.Publisher
	Audit  *audit.Service
	Log    *slog.Logger
}

// Service runs the template approval lifecycle and gates sends on approval.
type Service struct {
	repo   Repository
	sender MessageSender
	events events.Publisher
	audit  *audit.Service
	log    *slog.Logger

	clock func() time.Time
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		repo:   deps.Repo,
		sender: deps.Sender,
		events: deps.Events,
		audit:  deps.Audit,
		log:    deps.Log,
		clock:  time.Now,
	}
	if s.events == nil {
		s.events = events.Discard
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

var errNotConfigured = errors.New("templates: service not configured")

// Submit validates and stores a template as pending. Placeholders with no
// matching variable are accepted and only logged.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (Template, error) {
	const op = "templates.Submit"
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Template{}, lifecycle.Validation(op, "name is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return Template{}, lifecycle.Validation(op, "content is required")
	}
	if !req.Category.Valid() {
		return Template{}, lifecycle.Validation(op, "category must be utility, marketing or customer_service")
	}
	if s.repo == nil {
		return Template{}, errNotConfigured
	}

	t := Template{
		ID:          uuid.NewString(),
		Name:        name,
		Content:     req.Content,
		Variables:   append([]string{}, req.Variables...),
		Category:    req.Category,
		Language:    strings.TrimSpace(req.Language),
		Status:      StatusPending,
		SubmittedBy: req.SubmittedBy,
		CreatedAt:   s.clock().UTC(),
	}
	if unbound := Unbound(t.Content, t.Variables); len(unbound) > 0 {
		s.log.Info("template has unbound placeholders", "template_id", t.ID, "positions", unbound)
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return Template{}, err
	}

	s.audit.Record(ctx, audit.Event{
		Type:        audit.EventTypeCreated,
		Entity:      string(events.EntityTemplate),
		EntityID:    t.ID,
		To:          string(StatusPending),
		ActorUserID: req.SubmittedBy,
	})
	s.events.Publish(ctx, events.NewStatusChange(events.EntityTemplate, t.ID, "", string(StatusPending), t.CreatedAt))
	return t, nil
}

// ResolveApproval applies the approval callback. A template leaves pending
// exactly once; later callbacks fail with an already-resolved error and leave
// the stored status untouched.
func (s *Service) ResolveApproval(ctx context.Context, a Approval) (Template, error) {
	const op = "templates.ResolveApproval"
	t, err := s.get(ctx, op, a.TemplateID)
	if err != nil {
		return Template{}, err
	}
	to, err := Resolve(t, a.Approved)
	if err != nil {
		s.log.Warn("approval for resolved template", "template_id", t.ID, "status", t.Status, "approved", a.Approved)
		return Template{}, err
	}

	reason := ""
	if to == StatusRejected {
		reason = a.Reason
	}
	now := s.clock().UTC()
	ok, err := s.repo.Resolve(ctx, t.ID, to, reason, now)
	if err != nil {
		return Template{}, err
	}
	if !ok {
		return Template{}, lifecycle.AlreadyResolved(op, "template resolved concurrently")
	}

	t.Status = to
	t.RejectionReason = reason
	t.ResolvedAt = &now
	metrics.Transition(string(events.EntityTemplate), string(StatusPending), string(to))
	s.audit.Record(ctx, audit.Event{
		Type:     audit.EventTypeTransition,
		Entity:   string(events.EntityTemplate),
		EntityID: t.ID,
		From:     string(StatusPending),
		To:       string(to),
		Message:  reason,
	})
	s.events.Publish(ctx, events.NewStatusChange(events.EntityTemplate, t.ID, string(StatusPending), string(to), now))
	return t, nil
}

// Send renders an approved template and sends it as an operator message.
// Pending and rejected templates never reach the transport.
func (s *Service) Send(ctx context.Context, id string, req SendRequest) (messages.Message, error) {
	const op = "templates.Send"
	t, err := s.get(ctx, op, id)
	if err != nil {
		return messages.Message{}, err
	}
	if t.Status != StatusApproved {
		return messages.Message{}, lifecycle.UnapprovedTemplate(op, "template is "+string(t.Status))
	}
	if s.sender == nil {
		return messages.Message{}, errNotConfigured
	}
	return s.sender.Send(ctx, messages.SendRequest{
		Room:        req.Room,
		SubjectID:   req.SubjectID,
		Text:        Render(t.Content, req.Values),
		ActorUserID: req.ActorUserID,
		TemplateID:  t.ID,
	})
}

// Preview renders a template of any status without sending it.
func (s *Service) Preview(ctx context.Context, id string, values []string) (string, error) {
	t, err := s.get(ctx, "templates.Preview", id)
	if err != nil {
		return "", err
	}
	return Render(t.Content, values), nil
}

func (s *Service) Status(ctx context.Context, id string) (Status, error) {
	t, err := s.get(ctx, "templates.Status", id)
	if err != nil {
		return "", err
	}
	return t.Status, nil
}

func (s *Service) Get(ctx context.Context, id string) (Template, error) {
	return s.get(ctx, "templates.Get", id)
}

// List returns templates, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status) ([]Template, error) {
	if status != "" && !status.Valid() {
		return nil, lifecycle.Validation("templates.List", "unknown status "+string(status))
	}
	if s.repo == nil {
		return nil, errNotConfigured
	}
	return s.repo.List(ctx, status)
}

func (s *Service) get(ctx context.Context, op, id string) (Template, error) {
	if id == "" {
		return Template{}, lifecycle.Validation(op, "template id is required")
	}
	if s.repo == nil {
		return Template{}, errNotConfigured
	}
	t, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Template{}, lifecycle.NotFound(op, "template", id)
	}
	return t, err
}
