package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failed operation for user-facing handling.
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindValidation ErrorKind = "validation"
	KindAuth       ErrorKind = "auth"
	KindNetwork    ErrorKind = "network"
	KindAPI        ErrorKind = "api"
	KindCanceled   ErrorKind = "canceled"
	KindUnknown    ErrorKind = "unknown"
)

// AuthError reports that the server rejected the credentials or token (401,
// or any non-2xx from the login endpoint).
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unauthorized (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("unauthorized (%d)", e.Status)
}

// NetworkError reports that a request was sent but no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: no response from server: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError reports any other non-2xx response. Message carries the
// server-provided text when present, otherwise the status text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Classify maps err onto the error taxonomy.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var (
		validationErr *ValidationError
		authErr       *AuthError
		networkErr    *NetworkError
		apiErr        *APIError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &networkErr):
		return KindNetwork
	case errors.As(err, &apiErr):
		return KindAPI
	default:
		return KindUnknown
	}
}
