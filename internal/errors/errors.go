package errors

import (
	"errors"
	"fmt"
)

// Domain-specific error types
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicateEntry indicates a unique constraint violation
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrTeamNotActive indicates the team exists but does not accept mail
	ErrTeamNotActive = errors.New("team is not active")

	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates forbidden access
	ErrForbidden = errors.New("forbidden")

	// Ingestion errors
	ErrParse          = errors.New("malformed inbound email")
	ErrRouting        = errors.New("no team for recipient domain")
	ErrClassification = errors.New("classification failed")
	ErrDeliveryStatus = errors.New("delivery status update failed")
)

// Error codes for API responses
const (
	CodeNotFound            = "NOT_FOUND"
	CodeDuplicateEntry      = "DUPLICATE_ENTRY"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeTeamNotActive       = "TEAM_NOT_ACTIVE"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeInternalError       = "INTERNAL_ERROR"
	CodeParseError          = "PARSE_ERROR"
	CodeRoutingError        = "ROUTING_ERROR"
	CodeClassificationError = "CLASSIFICATION_ERROR"
	CodeDeliveryStatusError = "DELIVERY_STATUS_ERROR"
)

// ParseError reports an inbound payload that cannot be turned into an email
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// NewParseError creates a ParseError for the given payload field
func NewParseError(field, reason string) *ParseError {
	return &ParseError{Field: field, Reason: reason}
}

// RoutingError reports a recipient domain that no team owns
type RoutingError struct {
	Domain string
}

func (e *RoutingError) Error() string {
	return "No team configured for domain: " + e.Domain
}

func (e *RoutingError) Unwrap() error { return ErrRouting }

// DuplicateError reports a Message-ID already stored for the team.
// ThreadID and MessageID identify the existing row when known.
type DuplicateError struct {
	TeamID    uint
	RFCID     string
	ThreadID  uint
	MessageID uint
}

func (e *DuplicateError) Error() string {
	return "duplicate message_id: " + e.RFCID
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateEntry }

// ClassificationError is a failed call to the classification service
type ClassificationError struct {
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ClassificationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("classification failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("classification failed: %v", e.Err)
}

// Unwrap exposes both the sentinel and the cause
func (e *ClassificationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrClassification}
	}
	return []error{ErrClassification, e.Err}
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateEntry checks if the error is a duplicate entry error
func IsDuplicateEntry(err error) bool {
	return errors.Is(err, ErrDuplicateEntry)
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsParseError checks if the error came from parsing an inbound payload
func IsParseError(err error) bool {
	return errors.Is(err, ErrParse)
}

// IsRoutingError checks if the error is an unroutable recipient domain
func IsRoutingError(err error) bool {
	return errors.Is(err, ErrRouting)
}

// IsRetryable reports whether a classification failure may succeed on retry
func IsRetryable(err error) bool {
	var ce *ClassificationError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// GetErrorCode returns the appropriate error code for an error
func GetErrorCode(err error) string {
	switch {
	case IsParseError(err):
		return CodeParseError
	case IsRoutingError(err):
		return CodeRoutingError
	case IsNotFound(err):
		return CodeNotFound
	case IsDuplicateEntry(err):
		return CodeDuplicateEntry
	case IsInvalidInput(err):
		return CodeInvalidInput
	case errors.Is(err, ErrTeamNotActive):
		return CodeTeamNotActive
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrClassification):
		return CodeClassificationError
	case errors.Is(err, ErrDeliveryStatus):
		return CodeDeliveryStatusError
	default:
		return CodeInternalError
	}
}
