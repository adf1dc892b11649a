package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the service can report. Callers use
// it to tell a resumable failure apart from one that cannot succeed.
type ErrorKind string

const (
	KindInvalidPayer         ErrorKind = "invalid_payer"
	KindUnsupportedOperation ErrorKind = "unsupported_operation"
	KindInvalidState         ErrorKind = "invalid_state"
	KindMalformedInput       ErrorKind = "malformed_input"
	KindNotFound             ErrorKind = "not_found"
	KindAlreadyInProgress    ErrorKind = "already_in_progress"
	KindSessionAlreadyOpen   ErrorKind = "session_already_open"
	KindInvalidSignature     ErrorKind = "invalid_signature"
	KindUnreachable          ErrorKind = "unreachable"
	KindTimeout              ErrorKind = "timeout"
	KindRejected             ErrorKind = "rejected"
	KindCancelled            ErrorKind = "cancelled"
	KindInternal             ErrorKind = "internal"
)

// Sentinels for errors.Is. A *Error matches the sentinel of its kind.
var (
	ErrInvalidPayer         = &Error{Kind: KindInvalidPayer}
	ErrUnsupportedOperation = &Error{Kind: KindUnsupportedOperation}
	ErrInvalidState         = &Error{Kind: KindInvalidState}
	ErrMalformedInput       = &Error{Kind: KindMalformedInput}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrAlreadyInProgress    = &Error{Kind: KindAlreadyInProgress}
	ErrSessionAlreadyOpen   = &Error{Kind: KindSessionAlreadyOpen}
	ErrInvalidSignature     = &Error{Kind: KindInvalidSignature}
	ErrUnreachable          = &Error{Kind: KindUnreachable}
	ErrTimeout              = &Error{Kind: KindTimeout}
	ErrRejected             = &Error{Kind: KindRejected}
	ErrCancelled            = &Error{Kind: KindCancelled}
)

type Error struct {
	Kind   ErrorKind
	Step   Step
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Step != "" {
		msg = fmt.Sprintf("%s (step %s)", msg, e.Step)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Step == "" || t.Step == e.Step)
}

func NewError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func WrapError(kind ErrorKind, err error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// AtStep returns a copy of err attributed to step, keeping its kind.
func AtStep(step Step, err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		c := *de
		c.Step = step
		return &c
	}
	return &Error{Kind: KindInternal, Step: step, Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// StepOf returns the step err is attributed to, if any.
func StepOf(err error) Step {
	var de *Error
	if errors.As(err, &de) {
		return de.Step
	}
	return ""
}

// Retryable reports whether an operation that failed with kind may be
// retried or resumed without a fresh request from the user.
func Retryable(kind ErrorKind) bool {
	switch kind {
	case KindUnreachable, KindTimeout, KindAlreadyInProgress:
		return true
	default:
		return false
	}
}
