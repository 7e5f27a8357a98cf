// Package apperr defines the error taxonomy shared by the exam engine and its callers.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Code classifies a terminal request failure.
type Code string

const (
	CodeConfigInvalid       Code = "ConfigInvalid"
	CodeInsufficientPool    Code = "InsufficientPool"
	CodeInsufficientAnswers Code = "InsufficientAnswers"
	CodeUnknownReference    Code = "UnknownReference"
	CodeRetakeTooSoon       Code = "RetakeTooSoon"
	CodeTemplateNotApproved Code = "TemplateNotApproved"
	CodeExpired             Code = "Expired"
	CodeTransitionRejected  Code = "TransitionRejected"
	CodeTemplateDeprecated  Code = "TemplateDeprecated"
	CodeDuplicateAttempt    Code = "DuplicateAttempt"
	CodeNotFound            Code = "NotFound"
	CodeMaintenance         Code = "Maintenance"
	CodeInvalidRequest      Code = "InvalidRequest"
)

// Error is a classified failure. Two Errors match under errors.Is when their codes match.
type Error struct {
	Code    Code
	Message string
	// EarliestEligible is set for CodeRetakeTooSoon.
	EarliestEligible time.Time
	Err              error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrConfigInvalid       = &Error{Code: CodeConfigInvalid}
	ErrInsufficientPool    = &Error{Code: CodeInsufficientPool}
	ErrInsufficientAnswers = &Error{Code: CodeInsufficientAnswers}
	ErrUnknownReference    = &Error{Code: CodeUnknownReference}
	ErrRetakeTooSoon       = &Error{Code: CodeRetakeTooSoon}
	ErrTemplateNotApproved = &Error{Code: CodeTemplateNotApproved}
	ErrExpired             = &Error{Code: CodeExpired}
	ErrTransitionRejected  = &Error{Code: CodeTransitionRejected}
	ErrTemplateDeprecated  = &Error{Code: CodeTemplateDeprecated}
	ErrDuplicateAttempt    = &Error{Code: CodeDuplicateAttempt}
	ErrNotFound            = &Error{Code: CodeNotFound}
	ErrMaintenance         = &Error{Code: CodeMaintenance}
	ErrInvalidRequest      = &Error{Code: CodeInvalidRequest}
)

// New returns an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under code.
func Wrap(code Code, err error, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// RetakeTooSoon reports the earliest time a new attempt becomes eligible.
func RetakeTooSoon(earliest time.Time) *Error {
	return &Error{
		Code:             CodeRetakeTooSoon,
		Message:          "retake cooldown not elapsed, eligible at " + earliest.UTC().Format(time.RFC3339),
		EarliestEligible: earliest,
	}
}

// CodeOf returns the code of the first Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// EarliestEligible extracts the retake time from a RetakeTooSoon error.
func EarliestEligible(err error) (time.Time, bool) {
	var e *Error
	if errors.As(err, &e) && e.Code == CodeRetakeTooSoon {
		return e.EarliestEligible, true
	}
	return time.Time{}, false
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsRetakeTooSoon(err error) bool { return errors.Is(err, ErrRetakeTooSoon) }
