package core

import (
	"errors"
	"fmt"
)

// Error represents a structured gateway error.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
//
// The taxonomy mirrors how failures are handled on a live call: transient
// upstream failures degrade to a spoken fallback, validation failures reject
// the single offending call, defects are surfaced distinctly because they
// indicate a bug on our side rather than bad caller input.
type ErrorType string

const (
	// ErrInvalidRequest covers malformed caller input: bad tool arguments,
	// unknown tool names, missing required fields.
	ErrInvalidRequest ErrorType = "invalid_request_error"
	// ErrValidation is a schema validation failure on tool input.
	ErrValidation ErrorType = "validation_error"
	// ErrDefect is a schema validation failure on an internally generated
	// result. The caller did nothing wrong; this signals a bug.
	ErrDefect ErrorType = "defect_error"
	// ErrTransient is a reachability or timeout failure on an external
	// collaborator (STT, TTS, extractor, tool backend).
	ErrTransient ErrorType = "transient_error"
	// ErrAuthentication covers missing or invalid API keys.
	ErrAuthentication ErrorType = "authentication_error"
	// ErrNotFound covers unknown resources (tool names, sessions).
	ErrNotFound ErrorType = "not_found_error"
	// ErrOverloaded signals the gateway is shedding load or draining.
	ErrOverloaded ErrorType = "overloaded_error"
	// ErrAPI is an internal gateway error.
	ErrAPI ErrorType = "api_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// NewInvalidRequestErrorWithParam creates an invalid request error with a parameter.
func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message, Param: param}
}

// NewValidationError creates a schema validation error for a parameter.
func NewValidationError(message, param string) *Error {
	return &Error{Type: ErrValidation, Message: message, Param: param, Code: "schema_validation_failed"}
}

// NewDefectError creates an internal-result validation error.
func NewDefectError(message string) *Error {
	return &Error{Type: ErrDefect, Message: message, Code: "output_validation_failed"}
}

// NewTransientError wraps an external-call failure.
func NewTransientError(message string) *Error {
	return &Error{Type: ErrTransient, Message: message}
}

// NewOverloadedError creates an overloaded error.
func NewOverloadedError(message string) *Error {
	return &Error{Type: ErrOverloaded, Message: message}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrNotFound, Message: message}
}

// NewAPIError creates an internal error.
func NewAPIError(message string) *Error {
	return &Error{Type: ErrAPI, Message: message}
}

// IsTransient reports whether err is (or wraps) a transient external failure.
func IsTransient(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Type == ErrTransient || ce.Type == ErrOverloaded
	}
	return false
}

// IsDefect reports whether err is (or wraps) an internal defect.
func IsDefect(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Type == ErrDefect
	}
	return false
}
