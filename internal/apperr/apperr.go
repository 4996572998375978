// Package apperr classifies failures so callers can tell bad input from
// missing resources, misconfiguration, storage faults and flaky upstreams.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConfiguration
	KindStorage
	KindTransient
)

var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
	ErrStorage       = errors.New("storage error")
	ErrTransient     = errors.New("transient error")
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConfiguration:
		return "configuration"
	case KindStorage:
		return "storage"
	case KindTransient:
		return "transient"
	}
	return "unknown"
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindConfiguration:
		return ErrConfiguration
	case KindStorage:
		return ErrStorage
	case KindTransient:
		return ErrTransient
	}
	return nil
}

// Error carries the failing operation alongside its kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorage) match any *Error of that kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// E wraps err with a kind. A nil err still yields an error so that callers
// can signal a kind without an underlying cause.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op, msg string) error {
	return E(KindValidation, op, errors.New(msg))
}

func NotFound(op, msg string) error {
	return E(KindNotFound, op, errors.New(msg))
}

func Configuration(op string, err error) error { return E(KindConfiguration, op, err) }

func Storage(op string, err error) error { return E(KindStorage, op, err) }

func Transient(op string, err error) error { return E(KindTransient, op, err) }

// KindOf reports the kind of err. Deadlines count as transient.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindUnknown
}

func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// HTTPStatus maps an error to the status the HTTP boundary should answer with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindTransient:
		return http.StatusBadGateway
	case KindStorage:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Code is the machine readable error code used in JSON error bodies.
func Code(err error) string {
	switch KindOf(err) {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConfiguration:
		return "CONFIGURATION_ERROR"
	case KindStorage:
		return "STORAGE_ERROR"
	case KindTransient:
		return "UPSTREAM_ERROR"
	}
	return "INTERNAL_ERROR"
}
