// Package apperr classifies failures of the purchase and settlement core so
// that transport layers can map them without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInternal            Kind = "internal"
	KindValidation          Kind = "validation"
	KindAuthorization       Kind = "authorization"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindSoldOut             Kind = "sold_out"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindBlockchain          Kind = "blockchain"
	KindEventNotFound       Kind = "event_not_found"
	KindUnknownOutcome      Kind = "unknown_outcome"
)

// Error is a classified error. Err, when set, is the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind lets other packages' error types take part in classification.
func (e *Error) ErrorKind() Kind { return e.Kind }

type kinded interface {
	ErrorKind() Kind
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func Authorization(format string, args ...interface{}) *Error {
	return New(KindAuthorization, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

func SoldOut(format string, args ...interface{}) *Error {
	return New(KindSoldOut, format, args...)
}

func InsufficientBalance(format string, args ...interface{}) *Error {
	return New(KindInsufficientBalance, format, args...)
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindSoldOut:
		return http.StatusConflict
	case KindInsufficientBalance:
		return http.StatusPaymentRequired
	case KindBlockchain, KindEventNotFound:
		return http.StatusBadGateway
	case KindUnknownOutcome:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
