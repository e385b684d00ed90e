package telephony

import (
	"errors"
	"net/http"
	"strings"

	"crm-interactions/internal/calls"
)

// CTI event names, following the generic CTI webhook most PBXs can emit
// (the same shape Zammad consumes).
const (
	CTIEventNewCall = "newCall"
	CTIEventAnswer  = "answer"
	CTIEventHangup  = "hangup"
)

// CTIEvent is a parsed PBX call-state webhook.
// The PBX posts application/x-www-form-urlencoded (JSON is accepted too).
type CTIEvent struct {
	Event     string `json:"event" form:"event"`
	CallID    string `json:"callId" form:"callId"`
	Direction string `json:"direction" form:"direction"`
	From      string `json:"from" form:"from"`
	To        string `json:"to" form:"to"`
	User      string `json:"user" form:"user"`
	Cause     string `json:"cause" form:"cause"`
}

var ErrInvalidCTIEvent = errors.New("telephony: invalid cti event")

// ParseCTIForm reads a form-encoded CTI event.
func ParseCTIForm(r *http.Request) (CTIEvent, error) {
	if err := r.ParseForm(); err != nil {
		return CTIEvent{}, err
	}
	ev := CTIEvent{
		Event:     strings.TrimSpace(r.PostFormValue("event")),
		CallID:    strings.TrimSpace(r.PostFormValue("callId")),
		Direction: strings.TrimSpace(r.PostFormValue("direction")),
		From:      strings.TrimSpace(r.PostFormValue("from")),
		To:        strings.TrimSpace(r.PostFormValue("to")),
		User:      strings.TrimSpace(r.PostFormValue("user")),
		Cause:     strings.TrimSpace(r.PostFormValue("cause")),
	}
	return ev, ev.Validate()
}

func (e CTIEvent) Validate() error {
	if e.CallID == "" {
		return ErrInvalidCTIEvent
	}
	switch e.Event {
	case CTIEventNewCall:
		if _, ok := e.CallDirection(); !ok {
			return ErrInvalidCTIEvent
		}
		return nil
	case CTIEventAnswer, CTIEventHangup:
		return nil
	default:
		return ErrInvalidCTIEvent
	}
}

// CallDirection maps the PBX direction ("in"/"out") to a call direction.
func (e CTIEvent) CallDirection() (calls.CallDirection, bool) {
	switch strings.ToLower(e.Direction) {
	case "in", "inbound":
		return calls.CallDirectionInbound, true
	case "out", "outbound":
		return calls.CallDirectionOutbound, true
	default:
		return "", false
	}
}

// RegisterRequest builds the call registration for a newCall event. The
// counterparty is the caller on inbound calls and the callee on outbound ones.
func (e CTIEvent) RegisterRequest() calls.RegisterRequest {
	dir, _ := e.CallDirection()
	req := calls.RegisterRequest{ID: e.CallID, Direction: dir, AgentUserID: e.User}
	if dir == calls.CallDirectionOutbound {
		req.CounterpartyNumber, req.OwnNumber = e.To, e.From
	} else {
		req.CounterpartyNumber, req.OwnNumber = e.From, e.To
	}
	return req
}

// StatusEvent maps answer/hangup to a call status event.
func (e CTIEvent) StatusEvent() (calls.StatusEvent, bool) {
	switch e.Event {
	case CTIEventAnswer:
		return calls.StatusEvent{CallID: e.CallID, Status: calls.CallStatusActive}, true
	case CTIEventHangup:
		return calls.StatusEvent{CallID: e.CallID, Status: HangupStatus(e.Cause), Cause: e.Cause}, true
	default:
		return calls.StatusEvent{}, false
	}
}

// HangupStatus maps a PBX hangup cause to the final call status. A call that
// was connected and hung up normally is completed; anything else is missed.
func HangupStatus(cause string) calls.CallStatus {
	switch cause {
	case "normalClearing", "answeredElsewhere", "forwarded":
		return calls.CallStatusCompleted
	default:
		return calls.CallStatusMissed
	}
}
