package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionCompleted   = errors.New("session already completed")
	ErrSessionFaulted     = errors.New("session is in error state")
	ErrRequestInFlight    = errors.New("previous request still in flight")
	ErrEmptyInput         = errors.New("message is empty")
	ErrInvalidTransition  = errors.New("invalid session transition")
	ErrTranscriptNotFound = errors.New("transcript not found")
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrMissingAPIKey      = errors.New("API key is not configured")
	ErrEmptyResponse      = errors.New("empty response from provider")
)

// Kind is the error taxonomy shared by every layer.
type Kind string

const (
	KindValidation     Kind = "VALIDATION"
	KindProviderAuth   Kind = "PROVIDER_AUTH"
	KindProviderQuota  Kind = "PROVIDER_QUOTA"
	KindProviderSafety Kind = "PROVIDER_SAFETY"
	KindProvider       Kind = "PROVIDER"
	KindTimeout        Kind = "TIMEOUT"
	KindParse          Kind = "PARSE"
	KindInternal       Kind = "INTERNAL"
)

// Client-visible error codes.
const (
	CodeInvalidAPIKey = "INVALID_API_KEY"
	CodeQuotaExceeded = "QUOTA_EXCEEDED"
	CodeSafetyBlocked = "SAFETY_BLOCKED"
	CodeTimeout       = "TIMEOUT"
	CodeBadRequest    = "BAD_REQUEST"
	CodeValidation    = "VALIDATION_ERROR"
	CodeParse         = "PARSE_ERROR"
	CodeInternal      = "INTERNAL_ERROR"
)

// ProviderErrorCode returns the catch-all code for a provider, e.g. GEMINI_ERROR.
func ProviderErrorCode(p Provider) string {
	return strings.ToUpper(string(p)) + "_ERROR"
}

// Error is a classified failure. Message is safe to show to the user,
// Details carries diagnostics for non-production builds.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details []string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// CanRetry reports whether repeating the same request may succeed.
func (e *Error) CanRetry() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindProviderQuota, KindTimeout, KindProvider, KindInternal:
		return e.Code != CodeBadRequest
	default:
		return false
	}
}

func NewError(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// NewValidation builds a VALIDATION error listing every problem found. A
// single problem doubles as the message.
func NewValidation(details ...string) *Error {
	msg := "Validation failed"
	if len(details) == 1 {
		msg = details[0]
	}
	return &Error{
		Kind:    KindValidation,
		Code:    CodeValidation,
		Message: msg,
		Details: details,
	}
}

func NewInternal(cause error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    CodeInternal,
		Message: "Internal server error",
		Cause:   cause,
	}
}

// AsError extracts a classified error from the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the taxonomy kind of err, INTERNAL when unclassified.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindInternal
}

func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}
