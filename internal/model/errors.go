package model

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors raised by the config store client.
type ErrorCode string

const (
	// ErrCodeOrderingViolation indicates an input sequence that is not strictly ascending.
	ErrCodeOrderingViolation ErrorCode = "ORDERING_VIOLATION"

	// ErrCodeVersionChain indicates an illegal link between entity versions.
	ErrCodeVersionChain ErrorCode = "VERSION_CHAIN"

	// ErrCodePatternConfig indicates an entity pattern missing required capture groups.
	ErrCodePatternConfig ErrorCode = "PATTERN_CONFIG"

	// ErrCodeMalformedNamespace indicates an entity id that does not fit its location.
	ErrCodeMalformedNamespace ErrorCode = "MALFORMED_NAMESPACE"

	// ErrCodeBusiness indicates unusable entity content (bad manifest, unknown status).
	ErrCodeBusiness ErrorCode = "BUSINESS"

	// ErrCodeTagMismatch indicates stored content no longer matches the requested tag.
	ErrCodeTagMismatch ErrorCode = "TAG_MISMATCH"

	// ErrCodeUnexpectedGroup indicates a diff group that well-formed input cannot produce.
	ErrCodeUnexpectedGroup ErrorCode = "UNEXPECTED_GROUP"

	// ErrCodeBlockingNotAllowed indicates a blocking step run on a non-blocking context.
	ErrCodeBlockingNotAllowed ErrorCode = "BLOCKING_NOT_ALLOWED"

	// ErrCodeNoScanConfiguration indicates a polling configuration with missing values.
	ErrCodeNoScanConfiguration ErrorCode = "NO_SCAN_CONFIGURATION"

	// ErrCodeInvalidPolling indicates a polling interval that does not divide a day.
	ErrCodeInvalidPolling ErrorCode = "INVALID_POLLING"
)

// Error is the structured error type of the client.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error carrying an underlying cause.
func WrapError(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code of the first Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsContractViolation reports whether err is a caller or configuration bug.
// Uses errors.As to handle wrapped errors.
func IsContractViolation(err error) bool {
	switch CodeOf(err) {
	case ErrCodeOrderingViolation, ErrCodeVersionChain, ErrCodePatternConfig,
		ErrCodeMalformedNamespace, ErrCodeUnexpectedGroup, ErrCodeBlockingNotAllowed:
		return true
	}
	return false
}

// IsBusinessError reports whether err is scoped to the content of one entity.
func IsBusinessError(err error) bool {
	return CodeOf(err) == ErrCodeBusiness
}

// IsTagMismatch reports whether err signals a stale item tag.
func IsTagMismatch(err error) bool {
	return CodeOf(err) == ErrCodeTagMismatch
}
