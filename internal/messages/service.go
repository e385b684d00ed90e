package messages

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"crm-interactions/internal/audit"
	"crm-interactions/internal/events"
	"crm-interactions/internal/lifecycle"
	"crm-interactions/pkg/metrics"

	"github.com/oklog/ulid/v2"
)

// Transport hands an outbound message to the chat network. A nil error means
// the network accepted it; delivery and read are confirmed later by receipts.
type Transport interface {
	Send(ctx context.Context, m Message) error
}

// Deduper reports whether a receipt event id is seen for the first time.
// Forget releases a marker so a receipt that failed to apply can be
// redelivered.
type Deduper interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Dependencies wires the message service. Only Repo and Transport are required.
type Dependencies struct {
	Repo      Repository
	Transport Transport
	Events    events.Publisher
	Audit     *audit.Service
	Deduper   Deduper
	Log       *slog.Logger
}

// Service owns the delivery-status lifecycle of chat messages.
type Service struct {
	repo      Repository
	transport Transport
	events    events.Publisher
	audit     *audit.Service
	dedupe    Deduper
	log       *slog.Logger

	// clock and newID are injectable for deterministic tests.
	clock func() time.Time
	newID func() string
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		repo:      deps.Repo,
		transport: deps.Transport,
		events:    deps.Events,
		audit:     deps.Audit,
		dedupe:    deps.Deduper,
		log:       deps.Log,
		clock:     time.Now,
		newID:     func() string { return ulid.Make().String() },
	}
	if s.events == nil {
		s.events = events.Discard
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

const (
	// retryAttempts bounds how often a receipt is re-applied after losing a
	// conditional write to a concurrent receipt.
	retryAttempts = 3

	defaultRoomLimit = 200
	maxTextLength    = 4096
)

// Send persists an operator message as sent and hands it to the transport.
//
// When the transport rejects the message it is kept with status failed and the
// returned error is an external-service error; the failed message is returned
// alongside it so callers can offer a retry.
func (s *Service) Send(ctx context.Context, req SendRequest) (Message, error) {
	const op = "messages.Send"
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Message{}, lifecycle.Validation(op, "text is required")
	}
	if len(text) > maxTextLength {
		return Message{}, lifecycle.Validation(op, "text too long")
	}
	if strings.TrimSpace(req.Room) == "" {
		return Message{}, lifecycle.Validation(op, "room is required")
	}
	if s.repo == nil || s.transport == nil {
		return Message{}, errors.New("messages: service not configured")
	}

	now := s.clock().UTC()
	m := Message{
		ID:         s.newID(),
		Sender:     SenderOperator,
		Text:       text,
		Room:       req.Room,
		SubjectID:  req.SubjectID,
		Status:     StatusSent,
		RetryOf:    lifecycle.SomeID(req.RetryOf),
		TemplateID: lifecycle.SomeID(req.TemplateID),
		Timestamp:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return Message{}, err
	}
	s.audit.Record(ctx, audit.Event{
		Type:        audit.EventTypeCreated,
		Entity:      string(events.EntityMessage),
		EntityID:    m.ID,
		To:          string(StatusSent),
		ActorUserID: req.ActorUserID,
	})

	stop := metrics.ExternalTimer("transport")
	sendErr := s.transport.Send(ctx, m)
	stop()
	if sendErr == nil {
		s.publish(ctx, m, "", StatusSent)
		return m, nil
	}

	metrics.ExternalError("transport")
	s.log.Warn("message send failed", "message_id", m.ID, "room", m.Room, "err", sendErr)

	failedAt := s.clock().UTC()
	ok, err := s.repo.UpdateStatus(ctx, m.ID, StatusSent, StatusFailed, sendErr.Error(), failedAt)
	if err != nil {
		return Message{}, errors.Join(lifecycle.External(op, "transport", sendErr), err)
	}
	if ok {
		m.Status = StatusFailed
		m.FailureReason = sendErr.Error()
		m.UpdatedAt = failedAt
		metrics.Transition(string(events.EntityMessage), string(StatusSent), string(StatusFailed))
		s.audit.Transition(ctx, string(events.EntityMessage), m.ID, string(StatusSent), string(StatusFailed), req.ActorUserID)
		s.publish(ctx, m, StatusSent, StatusFailed)
	}
	return m, lifecycle.External(op, "transport", sendErr)
}

// Retry re-sends the text of a failed message as a new message linked to it.
func (s *Service) Retry(ctx context.Context, id, actorUserID string) (Message, error) {
	const op = "messages.Retry"
	orig, err := s.get(ctx, op, id)
	if err != nil {
		return Message{}, err
	}
	if orig.Sender != SenderOperator || orig.Status != StatusFailed {
		return Message{}, lifecycle.Precondition(op, "only failed operator messages can be retried")
	}
	templateID, _ := orig.TemplateID.Get()
	return s.Send(ctx, SendRequest{
		Room:        orig.Room,
		SubjectID:   orig.SubjectID,
		Text:        orig.Text,
		ActorUserID: actorUserID,
		RetryOf:     orig.ID,
		TemplateID:  templateID,
	})
}

// RecordInbound stores a counterparty-authored message. Its status is fixed at
// delivered; receipts never apply to it.
func (s *Service) RecordInbound(ctx context.Context, req InboundRequest) (Message, error) {
	const op = "messages.RecordInbound"
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Message{}, lifecycle.Validation(op, "text is required")
	}
	if strings.TrimSpace(req.Room) == "" {
		return Message{}, lifecycle.Validation(op, "room is required")
	}
	if s.repo == nil {
		return Message{}, errors.New("messages: repository not configured")
	}

	now := s.clock().UTC()
	m := Message{
		ID:        s.newID(),
		Sender:    SenderCounterparty,
		Text:      text,
		Room:      req.Room,
		SubjectID: req.SubjectID,
		Status:    StatusDelivered,
		Timestamp: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return Message{}, err
	}
	s.publish(ctx, m, "", StatusDelivered)
	return m, nil
}

// ApplyReceipt applies a delivery or read receipt. Duplicate, reordered and
// late receipts are ignored without error; the Outcome reports what happened.
func (s *Service) ApplyReceipt(ctx context.Context, r Receipt) (lifecycle.Outcome, error) {
	const op = "messages.ApplyReceipt"
	if r.MessageID == "" {
		return lifecycle.Outcome{}, lifecycle.Validation(op, "message_id is required")
	}
	if _, ok := target(r.Event); !ok {
		return lifecycle.Outcome{}, lifecycle.Validation(op, "unknown receipt event "+string(r.Event))
	}
	if s.repo == nil {
		return lifecycle.Outcome{}, errors.New("messages: repository not configured")
	}

	marked := false
	if r.EventID != "" && s.dedupe != nil {
		first, err := s.dedupe.FirstSeen(ctx, r.EventID)
		switch {
		case err != nil:
			// The status check below still rejects repeats.
			s.log.Warn("receipt dedupe unavailable", "event_id", r.EventID, "err", err)
		case !first:
			out := lifecycle.Ignored("", string(r.Event), lifecycle.ReasonDuplicate)
			metrics.StaleEvent(string(events.EntityMessage), out.Reason)
			return out, nil
		default:
			marked = true
		}
	}

	out, err := s.applyReceipt(ctx, op, r)
	if err != nil && marked {
		if ferr := s.dedupe.Forget(context.WithoutCancel(ctx), r.EventID); ferr != nil {
			s.log.Warn("receipt dedupe marker not released", "event_id", r.EventID, "err", ferr)
		}
	}
	return out, err
}

// applyReceipt moves the message with a conditional write, re-reading it when a
// concurrent receipt won.
func (s *Service) applyReceipt(ctx context.Context, op string, r Receipt) (lifecycle.Outcome, error) {
	for attempt := 0; ; attempt++ {
		m, err := s.get(ctx, op, r.MessageID)
		if err != nil {
			return lifecycle.Outcome{}, err
		}
		to, out, err := Apply(m, r.Event)
		if err != nil {
			return lifecycle.Outcome{}, err
		}
		if !out.Applied {
			s.ignored(ctx, m.ID, out)
			return out, nil
		}

		now := s.clock().UTC()
		ok, err := s.repo.UpdateStatus(ctx, m.ID, m.Status, to, "", now)
		if err != nil {
			return lifecycle.Outcome{}, err
		}
		if !ok {
			if attempt+1 < retryAttempts {
				continue
			}
			return lifecycle.Outcome{}, errors.New("messages: receipt lost too many concurrent updates")
		}

		m.UpdatedAt = now
		metrics.Transition(string(events.EntityMessage), out.From, out.To)
		s.audit.Transition(ctx, string(events.EntityMessage), m.ID, out.From, out.To, "")
		s.publish(ctx, m, m.Status, to)
		s.log.Debug("message status applied", "message_id", m.ID, "from", out.From, "to", out.To)
		return out, nil
	}
}

// MarkRoomRead applies a read receipt to every operator message in room that
// has not been read yet and returns how many changed.
func (s *Service) MarkRoomRead(ctx context.Context, room string) (int, error) {
	if strings.TrimSpace(room) == "" {
		return 0, lifecycle.Validation("messages.MarkRoomRead", "room is required")
	}
	if s.repo == nil {
		return 0, errors.New("messages: repository not configured")
	}
	ms, err := s.repo.ListUnread(ctx, room)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range ms {
		out, err := s.ApplyReceipt(ctx, Receipt{Event: ReceiptRead, MessageID: m.ID})
		if err != nil {
			return n, err
		}
		if out.Applied {
			n++
		}
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, id string) (Message, error) {
	return s.get(ctx, "messages.Get", id)
}

// Status returns the current delivery status of a message.
func (s *Service) Status(ctx context.Context, id string) (Status, error) {
	m, err := s.get(ctx, "messages.Status", id)
	if err != nil {
		return "", err
	}
	return m.Status, nil
}

// Room returns the history of a room, oldest first. limit <= 0 uses a default.
func (s *Service) Room(ctx context.Context, room string, limit int) ([]Message, error) {
	if s.repo == nil {
		return nil, errors.New("messages: repository not configured")
	}
	if limit <= 0 {
		limit = defaultRoomLimit
	}
	return s.repo.ListByRoom(ctx, room, limit)
}

// ListBetween returns messages created in [from, to).
func (s *Service) ListBetween(ctx context.Context, from, to time.Time) ([]Message, error) {
	if s.repo == nil {
		return nil, errors.New("messages: repository not configured")
	}
	return s.repo.ListBetween(ctx, from, to)
}

func (s *Service) get(ctx context.Context, op, id string) (Message, error) {
	if id == "" {
		return Message{}, lifecycle.Validation(op, "message id is required")
	}
	if s.repo == nil {
		return Message{}, errors.New("messages: repository not configured")
	}
	m, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Message{}, lifecycle.NotFound(op, "message", id)
	}
	return m, err
}

func (s *Service) ignored(ctx context.Context, id string, out lifecycle.Outcome) {
	metrics.StaleEvent(string(events.EntityMessage), out.Reason)
	s.log.Info("receipt ignored", "message_id", id, "current", out.From, "requested", out.To, "reason", out.Reason)
	if out.Reason != lifecycle.ReasonNotTracked {
		s.audit.StaleIgnored(ctx, string(events.EntityMessage), id, out.From, out.To, out.Reason)
	}
}

func (s *Service) publish(ctx context.Context, m Message, from, to Status) {
	ev := events.NewStatusChange(events.EntityMessage, m.ID, string(from), string(to), m.UpdatedAt)
	ev.Room = m.Room
	s.events.Publish(ctx, ev)
}
