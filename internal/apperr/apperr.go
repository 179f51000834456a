// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindValidation
	KindUnauthorized
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is a classified failure carrying a user-facing message and a stable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Details holds per-field messages for validation failures.
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Unauthorized(code, message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: message}
}

// Validation builds a VALIDATION_ERROR with optional field details.
func Validation(message string, details map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: message, Details: details}
}

// Upstream wraps a failure of an external dependency such as the LLM.
func Upstream(code, message string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: code, Message: message, Err: err}
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeUserExists          = "USER_EXISTS"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeInvalidCredentials  = "AUTH_INVALID_CREDENTIALS"
	CodeAccountDeactivated  = "AUTH_ACCOUNT_DEACTIVATED"
	CodeTokenMissing        = "AUTH_TOKEN_MISSING"
	CodeTokenInvalid        = "AUTH_TOKEN_INVALID"
	CodeInsufficientRole    = "AUTH_INSUFFICIENT_PERMISSIONS"
	CodeLeadNotFound        = "LEAD_NOT_FOUND"
	CodeLeadConverted       = "LEAD_ALREADY_CONVERTED"
	CodeClientNotFound      = "CLIENT_NOT_FOUND"
	CodeTransactionNotFound = "TRANSACTION_NOT_FOUND"
	CodeMilestoneNotFound   = "MILESTONE_NOT_FOUND"
	CodeDocumentNotFound    = "DOCUMENT_NOT_FOUND"
	CodeDocumentForbidden   = "DOCUMENT_FORBIDDEN"
	CodeShowingNotFound     = "SHOWING_NOT_FOUND"
	CodeAI                  = "AI_ERROR"
)
