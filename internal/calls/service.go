package calls

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
)

// Directory looks customers up by phone number. The number is passed through
// unvalidated; the directory decides what matches.
type Directory interface {
	LookupByPhone(ctx context.Context, phone string) ([]Customer, error)
}

// Ticketing opens support tickets.
type Ticketing interface {
	CreateTicket(ctx context.Context, req TicketRequest) (Ticket, error)
}

// Telephony places outbound calls. Status changes come back asynchronously as
// StatusEvents.
type Telephony interface {
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlacedCall, error)
}

type Dependencies struct {
	Repo      Repository
	Directory Directory
	Ticketing Ticketing
	Telephony Telephony
	Events    events.Publisher
	Audit     *audit.Service
	Log       *slog.Logger
}

// Service correlates calls with customers and tickets and reflects telephony
// status events.
//
// External side effects (placing a call, opening a ticket) are at-most-once:
// they are guarded by preconditions and never retried or compensated here.
type Service struct {
	repo      Repository
	directory Directory
	ticketing Ticketing
	telephony Telephony
	events    events.Publisher
	audit     *audit.Service
	log       *slog.Logger

	ticketLocks *keyedMutex

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		repo:        deps.Repo,
		directory:   deps.Directory,
		ticketing:   deps.Ticketing,
		telephony:   deps.Telephony,
		events:      deps.Events,
		audit:       deps.Audit,
		log:         deps.Log,
		ticketLocks: newKeyedMutex(),
		clock:       time.Now,
	}
	if s.events == nil {
		s.events = events.Discard
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

var errNotConfigured = errors.New("calls: service not configured")

const statusRetryAttempts = 3

// InitiateCall places an outbound call and records it as active. If the
// telephony API fails, nothing is stored.
func (s *Service) InitiateCall(ctx context.Context, req PlaceCallRequest) (Call, error) {
	const op = "calls.InitiateCall"
	req.From = strings.TrimSpace(req.From)
	req.To = strings.TrimSpace(req.To)
	if req.From == "" || req.To == "" {
		return Call{}, lifecycle.Validation(op, "from and to are required")
	}
	if s.repo == nil || s.telephony == nil {
		return Call{}, errNotConfigured
	}

	stop := metrics.ExternalTimer("telephony")
	placed, err := s.telephony.PlaceCall(ctx, req)
	stop()
	if err == nil && placed.ID == "" {
		err = errors.New("telephony returned an empty call id")
	}
	if err != nil {
		metrics.ExternalError("telephony")
		return Call{}, lifecycle.External(op, "telephony", err)
	}

	now := s.clock().UTC()
	createdAt := placed.CreatedAt.UTC()
	if placed.CreatedAt.IsZero() {
		createdAt = now
	}
	c := Call{
		ID:                 placed.ID,
		Direction:          CallDirectionOutbound,
		CounterpartyNumber: req.To,
		OwnNumber:          req.From,
		Status:             CallStatusActive,
		AgentUserID:        req.AgentUserID,
		CreatedAt:          createdAt,
		UpdatedAt:          now,
	}
	err = s.repo.Create(ctx, c)
	if errors.Is(err, ErrAlreadyExists) {
		// A PBX event for this call beat us; bring it up to active.
		if _, err := s.ApplyStatusEvent(ctx, StatusEvent{CallID: c.ID, Status: CallStatusActive}); err != nil {
			return Call{}, err
		}
		return s.Get(ctx, c.ID)
	}
	if err != nil {
		return Call{}, err
	}

	s.audit.Record(ctx, audit.Event{
		Type:        audit.EventTypeCreated,
		Entity:      string(events.EntityCall),
		EntityID:    c.ID,
		To:          string(c.Status),
		ActorUserID: req.AgentUserID,
	})
	s.publish(ctx, c, "", c.Status, nil)
	return c, nil
}

// RegisterCall records a call first seen through a telephony event, in queued
// status. Registering an id twice returns the stored call and created=false.
func (s *Service) RegisterCall(ctx context.Context, req RegisterRequest) (Call, bool, error) {
	const op = "calls.RegisterCall"
	if req.ID == "" {
		return Call{}, false, lifecycle.Validation(op, "call id is required")
	}
	if !req.Direction.Valid() {
		return Call{}, false, lifecycle.Validation(op, "direction must be inbound or outbound")
	}
	if s.repo == nil {
		return Call{}, false, errNotConfigured
	}

	now := s.clock().UTC()
	at := req.At.UTC()
	if req.At.IsZero() {
		at = now
	}
	c := Call{
		ID:                 req.ID,
		Direction:          req.Direction,
		CounterpartyNumber: req.CounterpartyNumber,
		OwnNumber:          req.OwnNumber,
		Status:             CallStatusQueued,
		AgentUserID:        req.AgentUserID,
		CreatedAt:          at,
		UpdatedAt:          now,
	}
	err := s.repo.Create(ctx, c)
	if errors.Is(err, ErrAlreadyExists) {
		existing, err := s.Get(ctx, req.ID)
		return existing, false, err
	}
	if err != nil {
		return Call{}, false, err
	}

	s.audit.Record(ctx, audit.Event{Type: audit.EventTypeCreated, Entity: string(events.EntityCall), EntityID: c.ID, To: string(c.Status)})
	s.publish(ctx, c, "", c.Status, nil)
	return c, true, nil
}

// ResolveCustomerForCall looks the counterparty number up in the customer
// directory and links the first match. A call that already has a customer is
// returned unchanged; no match leaves the customer unset.
func (s *Service) ResolveCustomerForCall(ctx context.Context, callID string) (Call, error) {
	const op = "calls.ResolveCustomerForCall"
	c, err := s.get(ctx, op, callID)
	if err != nil {
		return Call{}, err
	}
	if c.LinkedCustomer.IsSet() {
		return c, nil
	}
	if s.directory == nil {
		return Call{}, errNotConfigured
	}

	stop := metrics.ExternalTimer("directory")
	customers, err := s.directory.LookupByPhone(ctx, c.CounterpartyNumber)
	stop()
	if err != nil {
		metrics.ExternalError("directory")
		return Call{}, lifecycle.External(op, "directory", err)
	}
	if len(customers) == 0 {
		s.log.Info("no customer matches call", "call_id", c.ID)
		return c, nil
	}
	if len(customers) > 1 {
		// Ambiguous numbers resolve to the first match.
		s.log.Info("multiple customers match call, using first", "call_id", c.ID, "matches", len(customers))
	}
	customer := customers[0]

	now := s.clock().UTC()
	ok, err := s.repo.LinkCustomer(ctx, c.ID, customer.ID, now)
	if err != nil {
		return Call{}, err
	}
	if !ok {
		return s.get(ctx, op, c.ID)
	}

	c.LinkedCustomer = lifecycle.SomeID(customer.ID)
	c.UpdatedAt = now
	s.audit.Record(ctx, audit.Event{
		Type:     audit.EventTypeLinked,
		Entity:   string(events.EntityCall),
		EntityID: c.ID,
		Message:  "customer " + customer.ID,
	})
	s.publish(ctx, c, c.Status, c.Status, map[string]string{"customer_id": customer.ID})
	return c, nil
}

// CreateTicketForCall opens a ticket for the call's customer and links it.
//
// The call must have a customer and no ticket yet. Concurrent requests for the
// same call are serialised so the ticketing API is reached at most once.
func (s *Service) CreateTicketForCall(ctx context.Context, callID, title, note, actorUserID string) (Call, Ticket, error) {
	const op = "calls.CreateTicketForCall"
	title = strings.TrimSpace(title)
	if title == "" {
		return Call{}, Ticket{}, lifecycle.Validation(op, "title is required")
	}

	unlock := s.ticketLocks.Lock(callID)
	defer unlock()

	c, err := s.get(ctx, op, callID)
	if err != nil {
		return Call{}, Ticket{}, err
	}
	customerID, ok := c.LinkedCustomer.Get()
	if !ok {
		return Call{}, Ticket{}, lifecycle.Precondition(op, "call has no linked customer")
	}
	if existing, ok := c.LinkedTicket.Get(); ok {
		return Call{}, Ticket{}, lifecycle.AlreadyLinked(op, "call already linked to ticket "+existing)
	}
	if s.ticketing == nil {
		return Call{}, Ticket{}, errNotConfigured
	}

	stop := metrics.ExternalTimer("ticketing")
	ticket, err := s.ticketing.CreateTicket(ctx, TicketRequest{
		CustomerID: customerID,
		Title:      title,
		Article:    Article{Body: note},
		CallID:     c.ID,
	})
	stop()
	if err == nil && ticket.ID == "" {
		err = errors.New("ticketing returned an empty ticket id")
	}
	if err != nil {
		metrics.ExternalError("ticketing")
		return Call{}, Ticket{}, lifecycle.External(op, "ticketing", err)
	}

	now := s.clock().UTC()
	linked, err := s.repo.LinkTicket(ctx, c.ID, ticket.ID, now)
	if err != nil {
		return Call{}, Ticket{}, err
	}
	if !linked {
		// Another instance linked first; the ticket just created is orphaned.
		s.log.Warn("ticket created but call already linked", "call_id", c.ID, "ticket_id", ticket.ID)
		return Call{}, Ticket{}, lifecycle.AlreadyLinked(op, "call was linked concurrently")
	}

	c.LinkedTicket = lifecycle.SomeID(ticket.ID)
	c.UpdatedAt = now
	s.audit.Record(ctx, audit.Event{
		Type:        audit.EventTypeLinked,
		Entity:      string(events.EntityCall),
		EntityID:    c.ID,
		ActorUserID: actorUserID,
		Message:     "ticket " + ticket.ID,
	})
	s.publish(ctx, c, c.Status, c.Status, map[string]string{"ticket_id": ticket.ID})
	return c, ticket, nil
}

// ApplyStatusEvent reflects a telephony status change. Reordered, duplicate and
// post-terminal events are ignored and reported in the Outcome.
func (s *Service) ApplyStatusEvent(ctx context.Context, ev StatusEvent) (lifecycle.Outcome, error) {
	const op = "calls.ApplyStatusEvent"
	if ev.CallID == "" {
		return lifecycle.Outcome{}, lifecycle.Validation(op, "call id is required")
	}
	if rank(ev.Status) < 0 {
		return lifecycle.Outcome{}, lifecycle.Validation(op, "unknown call status "+string(ev.Status))
	}
	if s.repo == nil {
		return lifecycle.Outcome{}, errNotConfigured
	}

	for attempt := 0; ; attempt++ {
		c, err := s.get(ctx, op, ev.CallID)
		if err != nil {
			return lifecycle.Outcome{}, err
		}
		out, err := Apply(c, ev.Status)
		if err != nil {
			return lifecycle.Outcome{}, err
		}
		if !out.Applied {
			metrics.StaleEvent(string(events.EntityCall), out.Reason)
			s.log.Info("call event ignored", "call_id", c.ID, "current", out.From, "requested", out.To, "reason", out.Reason)
			s.audit.StaleIgnored(ctx, string(events.EntityCall), c.ID, out.From, out.To, out.Reason)
			return out, nil
		}

		now := s.clock().UTC()
		ok, err := s.repo.UpdateStatus(ctx, c.ID, c.Status, ev.Status, ev.Cause, now)
		if err != nil {
			return lifecycle.Outcome{}, err
		}
		if !ok {
			if attempt+1 < statusRetryAttempts {
				continue
			}
			return lifecycle.Outcome{}, errors.New("calls: status event lost too many concurrent updates")
		}

		from := c.Status
		c.Status = ev.Status
		c.UpdatedAt = now
		metrics.Transition(string(events.EntityCall), out.From, out.To)
		s.audit.Transition(ctx, string(events.EntityCall), c.ID, out.From, out.To, "")
		s.publish(ctx, c, from, c.Status, nil)
		return out, nil
	}
}

// State returns {status, linked customer, linked ticket} for a call.
func (s *Service) State(ctx context.Context, callID string) (CallState, error) {
	c, err := s.get(ctx, "calls.State", callID)
	if err != nil {
		return CallState{}, err
	}
	return c.State(), nil
}

func (s *Service) Get(ctx context.Context, callID string) (Call, error) {
	return s.get(ctx, "calls.Get", callID)
}

// ListBetween returns calls created in [from, to).
func (s *Service) ListBetween(ctx context.Context, from, to time.Time) ([]Call, error) {
	if s.repo == nil {
		return nil, errNotConfigured
	}
	return s.repo.ListBetween(ctx, from, to)
}

func (s *Service) get(ctx context.Context, op, id string) (Call, error) {
	if id == "" {
		return Call{}, lifecycle.Validation(op, "call id is required")
	}
	if s.repo == nil {
		return Call{}, errNotConfigured
	}
	c, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Call{}, lifecycle.NotFound(op, "call", id)
	}
	return c, err
}

func (s *Service) publish(ctx context.Context, c Call, from, to CallStatus, links map[string]string) {
	ev := events.NewStatusChange(events.EntityCall, c.ID, string(from), string(to), c.UpdatedAt)
	ev.Links = links
	s.events.Publish(ctx, ev)
}
