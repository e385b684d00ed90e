package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. Append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListByEntity(ctx context.Context, entity, entityID string) ([]Event, error)
}

// Service records the lifecycle history of messages, calls and templates.
type Service struct {
	repo  Repository
	clock func() time.Time
	log   *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, clock: time.Now, log: log}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Entity == "" || e.EntityID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record appends e and only logs failures. Safe on a nil *Service.
func (s *Service) Record(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, e); err != nil {
		s.log.Warn("audit append failed", "entity", e.Entity, "entity_id", e.EntityID, "type", e.Type, "err", err)
	}
}

func (s *Service) Transition(ctx context.Context, entity, entityID, from, to, actor string) {
	s.Record(ctx, Event{Type: EventTypeTransition, Entity: entity, EntityID: entityID, From: from, To: to, ActorUserID: actor})
}

func (s *Service) StaleIgnored(ctx context.Context, entity, entityID, current, requested, reason string) {
	s.Record(ctx, Event{Type: EventTypeStaleIgnored, Entity: entity, EntityID: entityID, From: current, To: requested, Message: reason})
}

func (s *Service) History(ctx context.Context, entity, entityID string) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	return s.repo.ListByEntity(ctx, entity, entityID)
}
