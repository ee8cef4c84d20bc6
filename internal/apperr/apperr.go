// Package apperr is the error taxonomy shared by the core packages and the
// HTTP layer. Every failure leaving a core operation is an *Error or wraps one.
package apperr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindPricing
	KindGateway
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindPricing:
		return "pricing"
	case KindGateway:
		return "gateway"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string // set for validation failures
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, and the same code when the
// target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// Sentinels for errors.Is
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrPricing         = &Error{Kind: KindPricing}
	ErrGateway         = &Error{Kind: KindGateway}
	ErrConflict        = &Error{Kind: KindConflict}
)

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Code: "INVALID_FIELD", Field: field, Message: message}
}

func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Code: "UNAUTHENTICATED", Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Code: "FORBIDDEN", Message: message}
}

// NotFound reports that an identity of the named resource does not resolve.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: resource + " not found"}
}

func Pricing(message string) *Error {
	return &Error{Kind: KindPricing, Code: "PRICING_ERROR", Field: "size", Message: message}
}

// Gateway carries the payment provider's message verbatim.
func Gateway(message string, err error) *Error {
	return &Error{Kind: KindGateway, Code: "PAYMENT_FAILED", Message: message, Err: err}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: message, Err: err}
}

// FromStore maps a missing row to NotFound and wraps any other storage error.
func FromStore(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(resource)
	}
	return errors.Wrapf(err, "%s storage", resource)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to the status code a client should see.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindPricing, KindGateway:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
