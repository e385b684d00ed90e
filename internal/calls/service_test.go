package calls

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crm-interactions/internal/lifecycle"
)

type fakeDirectory struct {
	byPhone map[string][]Customer
	err     error
	calls   int
}

func (d *fakeDirectory) LookupByPhone(ctx context.Context, phone string) ([]Customer, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.byPhone[phone], nil
}

type fakeTicketing struct {
	n   atomic.Int32
	err error
}

func (f *fakeTicketing) CreateTicket(ctx context.Context, req TicketRequest) (Ticket, error) {
	n := f.n.Add(1)
	if f.err != nil {
		return Ticket{}, f.err
	}
	// Give concurrent callers a chance to interleave.
	time.Sleep(5 * time.Millisecond)
	return Ticket{ID: fmt.Sprintf("T%d", n)}, nil
}

type fakeTelephony struct {
	id  string
	err error
}

func (f *fakeTelephony) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlacedCall, error) {
	if f.err != nil {
		return PlacedCall{}, f.err
	}
	return PlacedCall{ID: f.id}, nil
}

type testDeps struct {
	repo      *MemoryRepo
	directory *fakeDirectory
	ticketing *fakeTicketing
	telephony *fakeTelephony
}

func newTestService(t *testing.T) (*Service, *testDeps) {
	t.Helper()
	d := &testDeps{
		repo: NewMemoryRepo(),
		directory: &fakeDirectory{byPhone: map[string][]Customer{
			"+33612345678": {{ID: "C1", Name: "Alice"}},
			"+33600000000": {{ID: "C7"}, {ID: "C8"}},
		}},
		ticketing: &fakeTicketing{},
		telephony: &fakeTelephony{id: "pbx-1"},
	}
	s := NewService(Dependencies{
		Repo:      d.repo,
		Directory: d.directory,
		Ticketing: d.ticketing,
		Telephony: d.telephony,
	})
	s.clock = func() time.Time { return time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC) }
	return s, d
}

func registerInbound(t *testing.T, s *Service, id, from string) Call {
	t.Helper()
	c, created, err := s.RegisterCall(context.Background(), RegisterRequest{
		ID:                 id,
		Direction:          CallDirectionInbound,
		CounterpartyNumber: from,
		OwnNumber:          "+33100000000",
	})
	if err != nil || !created {
		t.Fatalf("register: created=%v err=%v", created, err)
	}
	return c
}

func TestApply_Transitions(t *testing.T) {
	cases := []struct {
		from    CallStatus
		to      CallStatus
		applied bool
		reason  string
	}{
		{CallStatusQueued, CallStatusActive, true, ""},
		{CallStatusQueued, CallStatusMissed, true, ""},
		{CallStatusActive, CallStatusCompleted, true, ""},
		{CallStatusActive, CallStatusQueued, false, lifecycle.ReasonStale},
		{CallStatusActive, CallStatusActive, false, lifecycle.ReasonStale},
		{CallStatusCompleted, CallStatusMissed, false, lifecycle.ReasonTerminal},
		{CallStatusMissed, CallStatusActive, false, lifecycle.ReasonTerminal},
	}
	for _, tc := range cases {
		out, err := Apply(Call{Status: tc.from}, tc.to)
		if err != nil {
			t.Fatalf("%s->%s: %v", tc.from, tc.to, err)
		}
		if out.Applied != tc.applied || out.Reason != tc.reason {
			t.Fatalf("%s->%s: unexpected outcome %+v", tc.from, tc.to, out)
		}
	}
	if _, err := Apply(Call{Status: CallStatusQueued}, "ringing"); !errors.Is(err, lifecycle.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEndToEnd_InboundCallCustomerTicket(t *testing.T) {
	s, d := newTestService(t)
	ctx := context.Background()
	call := registerInbound(t, s, "call-1", "+33612345678")

	call, err := s.ResolveCustomerForCall(ctx, call.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id, ok := call.LinkedCustomer.Get(); !ok || id != "C1" {
		t.Fatalf("expected customer C1, got %v", call.LinkedCustomer)
	}

	call, ticket, err := s.CreateTicketForCall(ctx, call.ID, "Support request", "Client called about billing", "u1")
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if ticket.ID != "T1" {
		t.Fatalf("expected T1, got %s", ticket.ID)
	}

	_, _, err = s.CreateTicketForCall(ctx, call.ID, "Support request", "again", "u1")
	if !errors.Is(err, lifecycle.ErrAlreadyLinked) {
		t.Fatalf("expected AlreadyLinked, got %v", err)
	}
	st, err := s.State(ctx, call.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if id, _ := st.LinkedTicketID.Get(); id != "T1" {
		t.Fatalf("ticket link changed to %q", id)
	}
	if d.ticketing.n.Load() != 1 {
		t.Fatalf("expected one ticketing call, got %d", d.ticketing.n.Load())
	}
}

func TestCreateTicket_RequiresCustomer(t *testing.T) {
	s, d := newTestService(t)
	call := registerInbound(t, s, "call-2", "+33999999999")

	call, err := s.ResolveCustomerForCall(context.Background(), call.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if call.LinkedCustomer.IsSet() {
		t.Fatalf("expected no customer")
	}
	_, _, err = s.CreateTicketForCall(context.Background(), call.ID, "title", "note", "u1")
	if !errors.Is(err, lifecycle.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if d.ticketing.n.Load() != 0 {
		t.Fatalf("ticketing must not be called")
	}
}

func TestCreateTicket_ValidatesTitle(t *testing.T) {
	s, _ := newTestService(t)
	if _, _, err := s.CreateTicketForCall(context.Background(), "call-x", "  ", "note", ""); !errors.Is(err, lifecycle.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateTicket_ExternalFailureLeavesCallUnlinked(t *testing.T) {
	s, d := newTestService(t)
	ctx := context.Background()
	call := registerInbound(t, s, "call-3", "+33612345678")
	if _, err := s.ResolveCustomerForCall(ctx, call.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	d.ticketing.err = errors.New("503")
	_, _, err := s.CreateTicketForCall(ctx, call.ID, "title", "note", "")
	if !errors.Is(err, lifecycle.ErrExternalService) {
		t.Fatalf("expected external error, got %v", err)
	}
	st, _ := s.State(ctx, call.ID)
	if st.LinkedTicketID.IsSet() {
		t.Fatalf("ticket must stay unset")
	}

	d.ticketing.err = nil
	if _, _, err := s.CreateTicketForCall(ctx, call.ID, "title", "note", ""); err != nil {
		t.Fatalf("operator retry should succeed: %v", err)
	}
}

func TestCreateTicket_ConcurrentRequestsLinkOnce(t *testing.T) {
	s, d := newTestService(t)
	ctx := context.Background()
	call := registerInbound(t, s, "call-4", "+33612345678")
	if _, err := s.ResolveCustomerForCall(ctx, call.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var wg sync.WaitGroup
	var okCount, linkedErr atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.CreateTicketForCall(ctx, call.ID, "title", "note", "")
			switch {
			case err == nil:
				okCount.Add(1)
			case errors.Is(err, lifecycle.ErrAlreadyLinked):
				linkedErr.Add(1)
			}
		}()
	}
	wg.Wait()

	if okCount.Load() != 1 || linkedErr.Load() != 7 {
		t.Fatalf("ok=%d alreadyLinked=%d", okCount.Load(), linkedErr.Load())
	}
	if d.ticketing.n.Load() != 1 {
		t.Fatalf("ticketing called %d times", d.ticketing.n.Load())
	}
}

func TestResolveCustomer_FirstMatchAndNoRelookup(t *testing.T) {
	s, d := newTestService(t)
	ctx := context.Background()
	call := registerInbound(t, s, "call-5", "+33600000000")

	call, err := s.ResolveCustomerForCall(ctx, call.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id, _ := call.LinkedCustomer.Get(); id != "C7" {
		t.Fatalf("expected first match C7, got %q", id)
	}
	if _, err := s.ResolveCustomerForCall(ctx, call.ID); err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if d.directory.calls != 1 {
		t.Fatalf("linked call must not be looked up again, lookups=%d", d.directory.calls)
	}
}

func TestResolveCustomer_DirectoryFailure(t *testing.T) {
	s, d := newTestService(t)
	call := registerInbound(t, s, "call-6", "+33612345678")
	d.directory.err = errors.New("timeout")
	if _, err := s.ResolveCustomerForCall(context.Background(), call.ID); !errors.Is(err, lifecycle.ErrExternalService) {
		t.Fatalf("expected external error, got %v", err)
	}
}

func TestInitiateCall(t *testing.T) {
	s, d := newTestService(t)
	ctx := context.Background()

	c, err := s.InitiateCall(ctx, PlaceCallRequest{From: "+33100000000", To: "+33612345678"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if c.ID != "pbx-1" || c.Status != CallStatusActive || c.Direction != CallDirectionOutbound || c.CounterpartyNumber != "+33612345678" {
		t.Fatalf("unexpected call %+v", c)
	}

	d.telephony.err = errors.New("pbx unreachable")
	d.telephony.id = "pbx-2"
	if _, err := s.InitiateCall(ctx, PlaceCallRequest{From: "a", To: "b"}); !errors.Is(err, lifecycle.ErrExternalService) {
		t.Fatalf("expected external error, got %v", err)
	}
	if _, err := s.Get(ctx, "pbx-2"); !errors.Is(err, lifecycle.ErrNotFound) {
		t.Fatalf("failed initiate must not store a call, got %v", err)
	}

	if _, err := s.InitiateCall(ctx, PlaceCallRequest{From: "a"}); !errors.Is(err, lifecycle.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStatusEvents_ReorderedAndTerminal(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	call := registerInbound(t, s, "call-7", "+33612345678")

	steps := []struct {
		status  CallStatus
		applied bool
	}{
		{CallStatusActive, true},
		{CallStatusQueued, false},
		{CallStatusCompleted, true},
		{CallStatusMissed, false},
		{CallStatusActive, false},
	}
	for _, st := range steps {
		out, err := s.ApplyStatusEvent(ctx, StatusEvent{CallID: call.ID, Status: st.status})
		if err != nil {
			t.Fatalf("%s: %v", st.status, err)
		}
		if out.Applied != st.applied {
			t.Fatalf("%s: applied=%v want %v", st.status, out.Applied, st.applied)
		}
	}
	state, _ := s.State(ctx, call.ID)
	if state.Status != CallStatusCompleted {
		t.Fatalf("final status = %s", state.Status)
	}
}

func TestRegisterCall_Idempotent(t *testing.T) {
	s, _ := newTestService(t)
	registerInbound(t, s, "call-8", "+33612345678")
	_, created, err := s.RegisterCall(context.Background(), RegisterRequest{ID: "call-8", Direction: CallDirectionInbound})
	if err != nil || created {
		t.Fatalf("expected existing call, created=%v err=%v", created, err)
	}
}
