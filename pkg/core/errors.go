package core

import (
	"errors"
	"net/http"
)

// ErrorKind is the machine-readable code of a protocol failure.
type ErrorKind string

const (
	ErrInvalidRequest          ErrorKind = "invalid_request"
	ErrInvalidClient           ErrorKind = "invalid_client"
	ErrInvalidGrant            ErrorKind = "invalid_grant"
	ErrInvalidTarget           ErrorKind = "invalid_target"
	ErrUnsupportedGrantType    ErrorKind = "unsupported_grant_type"
	ErrUnsupportedResponseType ErrorKind = "unsupported_response_type"
	ErrMissingToken            ErrorKind = "missing_token"
	ErrInvalidToken            ErrorKind = "invalid_or_expired_token"
	ErrNoSubject               ErrorKind = "no_subject"
	ErrServerError             ErrorKind = "server_error"
)

// HTTPStatus maps the kind to the status code returned to the caller.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case ErrInvalidClient, ErrMissingToken, ErrInvalidToken, ErrNoSubject:
		return http.StatusUnauthorized
	case ErrServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Error is a protocol failure tagged with its kind.
type Error struct {
	Kind        ErrorKind
	Description string
	Err         error
}

// NewError returns an Error of the given kind.
func NewError(kind ErrorKind, description string) *Error {
	return &Error{Kind: kind, Description: description}
}

// WrapError returns an Error of the given kind that keeps err as its cause.
func WrapError(kind ErrorKind, description string, err error) *Error {
	return &Error{Kind: kind, Description: description, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, NewError(kind, "")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or ErrServerError for untagged errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrServerError
}
