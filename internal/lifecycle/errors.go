package lifecycle

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies lifecycle errors. Callers match kinds with errors.Is against
// the Err* sentinels below.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindPrecondition       Kind = "precondition"
	KindNotFound           Kind = "not_found"
	KindAlreadyLinked      Kind = "already_linked"
	KindAlreadyResolved    Kind = "already_resolved"
	KindUnapprovedTemplate Kind = "unapproved_template"
	KindExternalService    Kind = "external_service"
)

// Sentinels for errors.Is. They carry no context; use the constructors to build
// errors that are returned to callers.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrPrecondition       = &Error{Kind: KindPrecondition}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrAlreadyLinked      = &Error{Kind: KindAlreadyLinked}
	ErrAlreadyResolved    = &Error{Kind: KindAlreadyResolved}
	ErrUnapprovedTemplate = &Error{Kind: KindUnapprovedTemplate}
	ErrExternalService    = &Error{Kind: KindExternalService}
)

// Error is the typed error surfaced by the message, call and template services.
//
// Op names the failing operation (e.g. "calls.CreateTicketForCall"). Err keeps the
// underlying cause for external service failures.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so that errors.Is(err, ErrAlreadyLinked) works for
// any *Error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Validation(op, message string) error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

func Precondition(op, message string) error {
	return &Error{Kind: KindPrecondition, Op: op, Message: message}
}

func NotFound(op, resource, id string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

func AlreadyLinked(op, message string) error {
	return &Error{Kind: KindAlreadyLinked, Op: op, Message: message}
}

func AlreadyResolved(op, message string) error {
	return &Error{Kind: KindAlreadyResolved, Op: op, Message: message}
}

func UnapprovedTemplate(op, message string) error {
	return &Error{Kind: KindUnapprovedTemplate, Op: op, Message: message}
}

// External wraps a collaborator failure. service names the collaborator
// ("directory", "ticketing", "telephony", "transport", "approval").
func External(op, service string, err error) error {
	return &Error{Kind: KindExternalService, Op: op, Message: service + " unavailable", Err: err}
}

// KindOf returns the kind of err, or "" when err is not a lifecycle error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an error to the status code the HTTP layer answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPrecondition:
		return http.StatusPreconditionFailed
	case KindAlreadyLinked, KindAlreadyResolved:
		return http.StatusConflict
	case KindUnapprovedTemplate:
		return http.StatusUnprocessableEntity
	case KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
