package reporting

import (
	"context"
	"testing"
	"time"

	"crm-interactions/internal/calls"
	"crm-interactions/internal/lifecycle"
	"crm-interactions/internal/messages"
	"crm-interactions/internal/templates"
)

func TestReporting_CallsSummaryCountsCorrelation(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{ID: "c1", Direction: calls.CallDirectionInbound, Status: calls.CallStatusCompleted, LinkedCustomer: lifecycle.SomeID("C1"), LinkedTicket: lifecycle.SomeID("T1"), CreatedAt: now},
		{ID: "c2", Direction: calls.CallDirectionInbound, Status: calls.CallStatusMissed, LinkedCustomer: lifecycle.SomeID("C2"), CreatedAt: now},
		{ID: "c3", Direction: calls.CallDirectionOutbound, Status: calls.CallStatusActive, CreatedAt: now},
		{ID: "c4", Direction: calls.CallDirectionOutbound, Status: calls.CallStatusCompleted, CreatedAt: now.Add(-48 * time.Hour)},
	}
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 3 || out.InboundCalls != 2 || out.OutboundCalls != 1 {
		t.Fatalf("unexpected totals: %+v", out)
	}
	if out.CompletedCalls != 1 || out.MissedCalls != 1 || out.ActiveCalls != 1 {
		t.Fatalf("unexpected statuses: %+v", out)
	}
	if out.CallsWithCustomer != 2 || out.CallsWithTicket != 1 {
		t.Fatalf("unexpected correlation: %+v", out)
	}
}

func TestReporting_MessagesSummary(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Messages = []messages.Message{
		{ID: "m1", Sender: messages.SenderOperator, Status: messages.StatusRead, Timestamp: now},
		{ID: "m2", Sender: messages.SenderOperator, Status: messages.StatusFailed, Timestamp: now},
		{ID: "m3", Sender: messages.SenderOperator, Status: messages.StatusSent, RetryOf: lifecycle.SomeID("m2"), Timestamp: now},
		{ID: "m4", Sender: messages.SenderCounterparty, Status: messages.StatusDelivered, Timestamp: now},
	}
	out, err := NewService(repo).MessagesSummary(context.Background(), TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.OperatorMessages != 3 || out.CounterpartyMessages != 1 || out.Read != 1 || out.Failed != 1 || out.Retries != 1 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.ReadRate == 0 || out.FailureRate == 0 {
		t.Fatalf("expected non-zero rates")
	}
}

func TestReporting_SummaryAndValidation(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Templates = []templates.Template{
		{ID: "t1", Category: templates.CategoryUtility, Status: templates.StatusApproved, CreatedAt: now},
		{ID: "t2", Category: templates.CategoryMarketing, Status: templates.StatusPending, CreatedAt: now},
	}
	svc := NewService(repo)

	if _, err := svc.Summary(context.Background(), TimeRange{From: now, To: now}); err != ErrInvalidRequest {
		t.Fatalf("expected invalid request, got %v", err)
	}
	out, err := svc.Summary(context.Background(), TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Templates.Approved != 1 || out.Templates.Pending != 1 || out.Templates.ByCategory["marketing"] != 1 {
		t.Fatalf("unexpected templates summary: %+v", out.Templates)
	}
}

func TestServiceSource_ReadsFromServices(t *testing.T) {
	ctx := context.Background()
	callSvc := calls.NewService(calls.Dependencies{Repo: calls.NewMemoryRepo()})
	msgSvc := messages.NewService(messages.Dependencies{Repo: messages.NewMemoryRepo(), Transport: nopTransport{}})
	tplSvc := templates.NewService(templates.Dependencies{Repo: templates.NewMemoryRepo()})

	if _, _, err := callSvc.RegisterCall(ctx, calls.RegisterRequest{ID: "c1", Direction: calls.CallDirectionInbound}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := msgSvc.Send(ctx, messages.SendRequest{Room: "r", Text: "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := tplSvc.Submit(ctx, templates.SubmitRequest{Name: "n", Content: "c", Category: templates.CategoryUtility}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	now := time.Now().UTC()
	out, err := NewService(ServiceSource{Calls: callSvc, Messages: msgSvc, Templates: tplSvc}).
		Summary(ctx, TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if out.Calls.TotalCalls != 1 || out.Messages.TotalMessages != 1 || out.Templates.TotalTemplates != 1 {
		t.Fatalf("unexpected summary %+v", out)
	}
}

type nopTransport struct{}

func (nopTransport) Send(context.Context, messages.Message) error { return nil }
