package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the transport layer can map them to status codes
type ErrorKind int

// error kinds
const (
	KindInternal ErrorKind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindBadRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindBadRequest:
		return "bad_request"
	}
	return "internal"
}

// Error tagged domain error
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is two domain errors match when kind and message are equal
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// NewError create a tagged error
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Unauthenticated no identity attached to the request
func Unauthenticated(format string, args ...interface{}) *Error {
	return NewError(KindUnauthenticated, format, args...)
}

// Forbidden identity present but lacks rights
func Forbidden(format string, args ...interface{}) *Error {
	return NewError(KindForbidden, format, args...)
}

// NotFound referenced entity absent
func NotFound(format string, args ...interface{}) *Error {
	return NewError(KindNotFound, format, args...)
}

// Conflict duplicate operation or concurrent modification
func Conflict(format string, args ...interface{}) *Error {
	return NewError(KindConflict, format, args...)
}

// BadRequest malformed or inconsistent input
func BadRequest(format string, args ...interface{}) *Error {
	return NewError(KindBadRequest, format, args...)
}

// KindOf returns the kind of the first domain error in err's chain,
// KindInternal if there is none
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
