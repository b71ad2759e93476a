package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies provider failures so callers can map them to HTTP statuses.
type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication"
	KindRateLimit      ErrorKind = "rate_limit"
	KindQuotaExceeded  ErrorKind = "quota_exceeded"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindServer         ErrorKind = "server"
	KindUnknown        ErrorKind = "unknown"
)

// Sentinels for errors.Is; every *Error matches the one for its Kind.
var (
	ErrAuthentication = errors.New("llm authentication failed")
	ErrRateLimit      = errors.New("llm rate limit exceeded")
	ErrQuotaExceeded  = errors.New("llm quota exceeded")
	ErrInvalidRequest = errors.New("llm invalid request")
	ErrServer         = errors.New("llm provider server error")
	ErrUnknown        = errors.New("llm unknown error")

	// ErrMissingAPIKey is returned by provider constructors when no key is configured.
	ErrMissingAPIKey = errors.New("llm api key is not configured")
	// ErrNoProviders is returned by NewClient when nothing is configured.
	ErrNoProviders = errors.New("no llm providers configured")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindAuthentication:
		return ErrAuthentication
	case KindRateLimit:
		return ErrRateLimit
	case KindQuotaExceeded:
		return ErrQuotaExceeded
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindServer:
		return ErrServer
	default:
		return ErrUnknown
	}
}

// Error is a classified LLM failure. Details carries diagnostics such as the raw
// model output that failed to parse.
type Error struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Message    string
	Details    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ClassifyStatus maps a provider HTTP status (and its body, for quota hints) to an ErrorKind.
func ClassifyStatus(status int, body string) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthentication
	case status == http.StatusTooManyRequests:
		lower := strings.ToLower(body)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "credit") {
			return KindQuotaExceeded
		}
		return KindRateLimit
	case status == http.StatusPaymentRequired:
		return KindQuotaExceeded
	case status == http.StatusBadRequest, status == http.StatusNotFound,
		status == http.StatusRequestEntityTooLarge, status == http.StatusUnprocessableEntity:
		return KindInvalidRequest
	case status >= 500 && status <= 599:
		// 529 is Anthropic's "overloaded"
		return KindServer
	default:
		return KindUnknown
	}
}

func newStatusError(provider string, status int, message, body string) *Error {
	return &Error{
		Kind:       ClassifyStatus(status, message+" "+body),
		Provider:   provider,
		StatusCode: status,
		Message:    message,
		Details:    body,
	}
}

func invalidRequest(provider, message string) *Error {
	return &Error{Kind: KindInvalidRequest, Provider: provider, Message: message}
}
