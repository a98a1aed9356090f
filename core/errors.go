package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a fatal run failure.
type ErrorKind string

const (
	// KindDecisionParseFailure: the model response matched no Decision shape.
	KindDecisionParseFailure ErrorKind = "decision_parse_failure"
	// KindUnauthorizedToolCall: the active agent called a tool it does not own.
	KindUnauthorizedToolCall ErrorKind = "unauthorized_tool_call"
	// KindUnknownHandoffTarget: the active agent handed off outside its handoff set.
	KindUnknownHandoffTarget ErrorKind = "unknown_handoff_target"
	// KindTurnLimitExceeded: the run did not converge within the turn limit.
	KindTurnLimitExceeded ErrorKind = "turn_limit_exceeded"
	// KindTransport: the model endpoint could not be reached after retries.
	KindTransport ErrorKind = "transport_failure"
	// KindTimeout: a model call exceeded its deadline.
	KindTimeout ErrorKind = "timeout"
	// KindCancelled: the caller cancelled the run.
	KindCancelled ErrorKind = "cancelled"
	// KindCallbackRejected: a lifecycle callback vetoed the next step.
	KindCallbackRejected ErrorKind = "callback_rejected"
	// KindUnknownAgent: the requested root agent is not registered.
	KindUnknownAgent ErrorKind = "unknown_agent"
	// KindInvalidInput: the run input is empty.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindRunNotComplete: a result was requested for a run that did not complete.
	KindRunNotComplete ErrorKind = "run_not_complete"
	// KindInternal: an unexpected engine failure.
	KindInternal ErrorKind = "internal"
)

// Sentinel values for errors.Is matching by kind.
var (
	ErrDecisionParseFailure = &EngineError{Kind: KindDecisionParseFailure}
	ErrUnauthorizedToolCall = &EngineError{Kind: KindUnauthorizedToolCall}
	ErrUnknownHandoffTarget = &EngineError{Kind: KindUnknownHandoffTarget}
	ErrTurnLimitExceeded    = &EngineError{Kind: KindTurnLimitExceeded}
	ErrTransport            = &EngineError{Kind: KindTransport}
	ErrTimeout              = &EngineError{Kind: KindTimeout}
	ErrCancelled            = &EngineError{Kind: KindCancelled}
	ErrCallbackRejected     = &EngineError{Kind: KindCallbackRejected}
	ErrUnknownAgent         = &EngineError{Kind: KindUnknownAgent}
	ErrInvalidInput         = &EngineError{Kind: KindInvalidInput}
	ErrRunNotComplete       = &EngineError{Kind: KindRunNotComplete}
)

// EngineError is the structured failure of a run: a kind, a message and the
// partial transcript at the point of failure. Err holds the underlying
// cause (for example the last transport error) when there is one.
type EngineError struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	RunID      string    `json:"run_id,omitempty"`
	Agent      string    `json:"agent,omitempty"`
	Turn       int       `json:"turn,omitempty"`
	Transcript []Message `json:"transcript,omitempty"`
	Err        error     `json:"-"`
}

// NewEngineError creates an EngineError of the given kind.
func NewEngineError(kind ErrorKind, msg string) *EngineError {
	return &EngineError{Kind: kind, Message: msg}
}

// WrapEngineError creates an EngineError of the given kind carrying err.
func WrapEngineError(kind ErrorKind, msg string, err error) *EngineError {
	return &EngineError{Kind: kind, Message: msg, Err: err}
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	var b strings.Builder

	b.WriteString(string(e.Kind))

	if e.Agent != "" {
		fmt.Fprintf(&b, " (agent %q, turn %d)", e.Agent, e.Turn)
	}

	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

// Unwrap exposes the underlying cause.
func (e *EngineError) Unwrap() error { return e.Err }

// Is matches any EngineError of the same kind, so the exported sentinels
// work with errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}

	return t.Kind == e.Kind
}

// KindOf returns the kind of the first EngineError in err's chain, or the
// empty kind.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}

	return ""
}

// AsEngineError returns a copy of the EngineError found in err's chain, or
// classifies err: context cancellation and deadline errors map to
// KindCancelled and KindTimeout, everything else to KindInternal.
func AsEngineError(err error) *EngineError {
	var ee *EngineError
	if errors.As(err, &ee) {
		c := *ee
		return &c
	}

	switch {
	case errors.Is(err, context.Canceled):
		return WrapEngineError(KindCancelled, "run cancelled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return WrapEngineError(KindTimeout, "deadline exceeded", err)
	default:
		return WrapEngineError(KindInternal, "", err)
	}
}
