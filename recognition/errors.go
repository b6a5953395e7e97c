package recognition

import (
	"fmt"
	"net/http"
)

// Kind classifies why an identification attempt failed.
type Kind string

const (
	KindUnsupportedInput   Kind = "unsupported_model_input"
	KindAuth               Kind = "auth_error"
	KindRateLimited        Kind = "rate_limited"
	KindServiceUnavailable Kind = "service_unavailable"
	KindUnexpectedStatus   Kind = "unexpected_status"
	KindTimeout            Kind = "timeout"
	KindNetwork            Kind = "network_error"
	KindMalformedResponse  Kind = "malformed_response"
	KindOther              Kind = "other"
)

// Error is the single error type returned by Client.Identify.
type Error struct {
	Kind       Kind
	StatusCode int // set for status-derived kinds
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "recognition error"
	}
	if e.Err != nil {
		return fmt.Sprintf("recognition %s: %v", e.Kind, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("recognition %s (HTTP %d)", e.Kind, e.StatusCode)
	}
	return "recognition " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the user-displayable text for the failure.
func (e *Error) Message() string {
	switch e.Kind {
	case KindUnsupportedInput:
		return "model does not support image input"
	case KindAuth:
		return "invalid or expired credentials"
	case KindRateLimited:
		return "rate limited, retry later"
	case KindServiceUnavailable:
		return "service temporarily unavailable"
	case KindUnexpectedStatus:
		return fmt.Sprintf("unexpected response %d", e.StatusCode)
	case KindTimeout:
		return "request timed out"
	case KindNetwork:
		return "network error, check your connection"
	case KindMalformedResponse:
		return "could not read the recognition response"
	default:
		if e.Err != nil {
			return "error: " + e.Err.Error()
		}
		return "unknown error"
	}
}

// errorForStatus maps a non-200 status to its error kind. the checks run in
// a fixed priority order.
func errorForStatus(code int) *Error {
	switch {
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return &Error{Kind: KindUnsupportedInput, StatusCode: code}
	case code == http.StatusUnauthorized:
		return &Error{Kind: KindAuth, StatusCode: code}
	case code == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, StatusCode: code}
	case code >= 500:
		return &Error{Kind: KindServiceUnavailable, StatusCode: code}
	default:
		return &Error{Kind: KindUnexpectedStatus, StatusCode: code}
	}
}
