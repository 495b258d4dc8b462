package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

type ErrorKind string

const (
	ErrKindNetwork     ErrorKind = "network"
	ErrKindAuth        ErrorKind = "auth"
	ErrKindUnavailable ErrorKind = "unavailable"
	ErrKindTimeout     ErrorKind = "timeout"
	ErrKindUnknown     ErrorKind = "unknown"
)

// Error is the classified form of a transport failure. The orchestrator only
// branches on succeeded/failed; Kind and Retryable exist for callers that care
// (logging, the diagnostics queue).
type Error struct {
	Kind      ErrorKind
	Status    int
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("coach transport: %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("coach transport: %s: %s", e.Kind, e.Message)
}

// ClassifyStatus maps a non-2xx response to a typed error.
func ClassifyStatus(status int, msg string) *Error {
	e := &Error{Status: status, Message: msg}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = ErrKindAuth
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Kind = ErrKindTimeout
		e.Retryable = true
	case status == http.StatusTooManyRequests || status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		e.Kind = ErrKindUnavailable
		e.Retryable = true
	case status >= 500:
		e.Kind = ErrKindUnavailable
	default:
		e.Kind = ErrKindUnknown
	}
	return e
}

// ClassifyErr maps a request-level error (dial failure, timeout) to a typed error.
func ClassifyErr(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: ErrKindTimeout, Message: err.Error(), Retryable: true}
	default:
		var netErr net.Error
		if errors.As(err, &netErr) {
			kind := ErrKindNetwork
			if netErr.Timeout() {
				kind = ErrKindTimeout
			}
			return &Error{Kind: kind, Message: err.Error(), Retryable: true}
		}
		return &Error{Kind: ErrKindUnknown, Message: err.Error()}
	}
}

// IsAuth reports whether err classifies as an authentication failure.
func IsAuth(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == ErrKindAuth
}
