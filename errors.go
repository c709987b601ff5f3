package orakle

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an Error.
type ErrorCode string

const (
	ErrCodeValidation ErrorCode = "validation"
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeRouting    ErrorCode = "routing"
	ErrCodeTimeout    ErrorCode = "timeout"
	ErrCodeUpstream   ErrorCode = "upstream"
	ErrCodeInternal   ErrorCode = "internal"
)

// Error is a structured error carrying a Code. The façade, dispatcher, and
// matcher do not construct it: they report failures as plain wrapped errors
// and the sentinels below, and the façade picks HTTP statuses directly.
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

// NewError builds an Error of the given code.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// AsError unwraps err into an *Error, if it is one (directly or wrapped).
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Sentinel errors for conditions that do not need a message attached at the
// call site.
var (
	ErrNoSuitableSkill       = errors.New("no suitable skill for directive")
	ErrSkillResolutionFailed = errors.New("skill resolution failed after retry")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrEmptyCandidateSet     = errors.New("empty candidate set")
	ErrServiceUnavailable    = errors.New("required service unavailable")
	ErrIncompleteDirective   = errors.New("directive unterminated at stream close")
)
