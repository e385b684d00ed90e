package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crm-interactions/internal/calls"
)

func TestParseCTIForm(t *testing.T) {
	body := strings.NewReader("event=newCall&callId=c-1&direction=in&from=%2B33612345678&to=%2B33100000000&user=agent-1")
	r := httptest.NewRequest(http.MethodPost, "/webhooks/pbx/cti", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	ev, err := ParseCTIForm(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	req := ev.RegisterRequest()
	if req.ID != "c-1" || req.Direction != calls.CallDirectionInbound {
		t.Fatalf("unexpected register request %+v", req)
	}
	if req.CounterpartyNumber != "+33612345678" || req.OwnNumber != "+33100000000" || req.AgentUserID != "agent-1" {
		t.Fatalf("unexpected numbers %+v", req)
	}
}

func TestCTIEvent_OutboundSwapsNumbers(t *testing.T) {
	ev := CTIEvent{Event: CTIEventNewCall, CallID: "c-2", Direction: "out", From: "+331", To: "+336"}
	req := ev.RegisterRequest()
	if req.CounterpartyNumber != "+336" || req.OwnNumber != "+331" {
		t.Fatalf("unexpected numbers %+v", req)
	}
}

func TestCTIEvent_Validate(t *testing.T) {
	bad := []CTIEvent{
		{Event: CTIEventNewCall, Direction: "in"},
		{Event: CTIEventNewCall, CallID: "c", Direction: "sideways"},
		{Event: "transfer", CallID: "c"},
	}
	for _, ev := range bad {
		if err := ev.Validate(); err != ErrInvalidCTIEvent {
			t.Fatalf("expected invalid for %+v, got %v", ev, err)
		}
	}
}

func TestHangupStatus(t *testing.T) {
	cases := map[string]calls.CallStatus{
		"normalClearing": calls.CallStatusCompleted,
		"forwarded":      calls.CallStatusCompleted,
		"cancel":         calls.CallStatusMissed,
		"noAnswer":       calls.CallStatusMissed,
		"busy":           calls.CallStatusMissed,
		"":               calls.CallStatusMissed,
	}
	for cause, want := range cases {
		if got := HangupStatus(cause); got != want {
			t.Fatalf("HangupStatus(%q) = %s, want %s", cause, got, want)
		}
	}

	se, ok := CTIEvent{Event: CTIEventAnswer, CallID: "c"}.StatusEvent()
	if !ok || se.Status != calls.CallStatusActive {
		t.Fatalf("answer must map to active, got %+v", se)
	}
}
