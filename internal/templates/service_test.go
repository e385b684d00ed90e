package templates

import (
	"context"
	"errors"
	"testing"

	"crm-interactions/internal/lifecycle"
	"crm-interactions/internal/messages"
)

type fakeTransport struct {
	sent []messages.Message
}

func (f *fakeTransport) Send(ctx context.Context, m messages.Message) error {
	f.sent = append(f.sent, m)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	msgs := messages.NewService(messages.Dependencies{Repo: messages.NewMemoryRepo(), Transport: tr})
	return NewService(Dependencies{Repo: NewMemoryRepo(), Sender: msgs}), tr
}

func submit(t *testing.T, s *Service) Template {
	t.Helper()
	tpl, err := s.Submit(context.Background(), SubmitRequest{
		Name:      "order_update",
		Content:   "Bonjour {{1}}, commande {{2}}",
		Variables: []string{"name", "order"},
		Category:  CategoryUtility,
		Language:  "fr",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return tpl
}

func TestSubmit_Validation(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	bad := []SubmitRequest{
		{Content: "x", Category: CategoryUtility},
		{Name: "n", Content: "  ", Category: CategoryUtility},
		{Name: "n", Content: "x", Category: "spam"},
	}
	for _, req := range bad {
		if _, err := s.Submit(ctx, req); !errors.Is(err, lifecycle.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}

	tpl, err := s.Submit(ctx, SubmitRequest{Name: "n", Content: "Hi {{3}}", Category: CategoryMarketing})
	if err != nil {
		t.Fatalf("unbound placeholders must be accepted: %v", err)
	}
	if tpl.Status != StatusPending || tpl.ID == "" {
		t.Fatalf("unexpected template %+v", tpl)
	}
}

func TestResolveApproval_IsTerminal(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	tpl := submit(t, s)

	got, err := s.ResolveApproval(ctx, Approval{TemplateID: tpl.ID, Approved: true})
	if err != nil || got.Status != StatusApproved || got.ResolvedAt == nil {
		t.Fatalf("approve: %+v err=%v", got, err)
	}
	if _, err := s.ResolveApproval(ctx, Approval{TemplateID: tpl.ID, Approved: false}); !errors.Is(err, lifecycle.ErrAlreadyResolved) {
		t.Fatalf("expected AlreadyResolved, got %v", err)
	}
	if st, _ := s.Status(ctx, tpl.ID); st != StatusApproved {
		t.Fatalf("status changed to %s", st)
	}
}

func TestResolveApproval_RejectKeepsReason(t *testing.T) {
	s, _ := newTestService(t)
	tpl := submit(t, s)
	got, err := s.ResolveApproval(context.Background(), Approval{TemplateID: tpl.ID, Reason: "policy"})
	if err != nil || got.Status != StatusRejected || got.RejectionReason != "policy" {
		t.Fatalf("reject: %+v err=%v", got, err)
	}
}

func TestSend_RequiresApproval(t *testing.T) {
	s, tr := newTestService(t)
	ctx := context.Background()
	tpl := submit(t, s)

	_, err := s.Send(ctx, tpl.ID, SendRequest{Room: "room-1", Values: []string{"Alice"}})
	if !errors.Is(err, lifecycle.ErrUnapprovedTemplate) {
		t.Fatalf("expected UnapprovedTemplate, got %v", err)
	}
	if len(tr.sent) != 0 {
		t.Fatalf("transport must not be called")
	}

	if _, err := s.ResolveApproval(ctx, Approval{TemplateID: tpl.ID, Approved: true}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	m, err := s.Send(ctx, tpl.ID, SendRequest{Room: "room-1", Values: []string{"Alice"}})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.Text != "Bonjour Alice, commande {{2}}" {
		t.Fatalf("unexpected text %q", m.Text)
	}
	if id, _ := m.TemplateID.Get(); id != tpl.ID {
		t.Fatalf("expected template id on message")
	}
	if len(tr.sent) != 1 {
		t.Fatalf("expected one transport send")
	}
}

func TestSend_RejectedBlocked(t *testing.T) {
	s, tr := newTestService(t)
	ctx := context.Background()
	tpl := submit(t, s)
	if _, err := s.ResolveApproval(ctx, Approval{TemplateID: tpl.ID}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := s.Send(ctx, tpl.ID, SendRequest{Room: "r"}); !errors.Is(err, lifecycle.ErrUnapprovedTemplate) {
		t.Fatalf("expected UnapprovedTemplate, got %v", err)
	}
	if len(tr.sent) != 0 {
		t.Fatalf("transport must not be called")
	}
}

func TestListAndPreview(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	a := submit(t, s)
	submit(t, s)
	if _, err := s.ResolveApproval(ctx, Approval{TemplateID: a.ID, Approved: true}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	approved, err := s.List(ctx, StatusApproved)
	if err != nil || len(approved) != 1 || approved[0].ID != a.ID {
		t.Fatalf("approved list: %+v err=%v", approved, err)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(all))
	}
	if _, err := s.List(ctx, "bogus"); !errors.Is(err, lifecycle.ErrValidation) {
		t.Fatalf("expected validation error")
	}

	text, err := s.Preview(ctx, a.ID, []string{"Bob", "7"})
	if err != nil || text != "Bonjour Bob, commande 7" {
		t.Fatalf("preview: %q err=%v", text, err)
	}
}
