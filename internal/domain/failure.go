package domain

import (
	"errors"
	"fmt"
)

// Reason names an expected, caller-facing refusal
type Reason string

const (
	ReasonInvalidInput        Reason = "INVALID_INPUT"
	ReasonUnauthorized        Reason = "UNAUTHORIZED"
	ReasonInvalidCredentials  Reason = "INVALID_CREDENTIALS"
	ReasonForbidden           Reason = "FORBIDDEN"
	ReasonUserNotFound        Reason = "USER_NOT_FOUND"
	ReasonBookNotFound        Reason = "BOOK_NOT_FOUND"
	ReasonTransactionNotFound Reason = "TRANSACTION_NOT_FOUND"
	ReasonBookUnavailable     Reason = "BOOK_UNAVAILABLE"
	ReasonDuplicateRequest    Reason = "DUPLICATE_REQUEST"
	ReasonDuplicateBook       Reason = "DUPLICATE_BOOK"
	ReasonEmailTaken          Reason = "EMAIL_TAKEN"
	ReasonNotPending          Reason = "NOT_PENDING"
	ReasonNotActive           Reason = "NOT_ACTIVE"
	ReasonInUse               Reason = "IN_USE"
	ReasonSelfDelete          Reason = "SELF_DELETE"
	ReasonBusy                Reason = "BUSY"
)

// Kind groups reasons the way callers react to them
type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
)

// Kind classifies r
func (r Reason) Kind() Kind {
	switch r {
	case ReasonInvalidInput:
		return KindValidation
	case ReasonUnauthorized, ReasonInvalidCredentials:
		return KindUnauthorized
	case ReasonForbidden, ReasonSelfDelete:
		return KindForbidden
	case ReasonUserNotFound, ReasonBookNotFound, ReasonTransactionNotFound:
		return KindNotFound
	default:
		return KindConflict
	}
}

// Failure is an expected refusal with a human-readable message. Infrastructure
// errors are never wrapped in a Failure.
type Failure struct {
	Reason  Reason
	Message string
}

func (f *Failure) Error() string { return f.Message }

// Fail builds a Failure
func Fail(reason Reason, format string, args ...any) *Failure {
	return &Failure{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// AsFailure extracts a Failure from err's chain
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// ReasonOf returns the Failure reason in err, or "" for other errors
func ReasonOf(err error) Reason {
	if f, ok := AsFailure(err); ok {
		return f.Reason
	}
	return ""
}
