package utils

import (
	"errors"
	"fmt"
)

// capture stage errors - they block one action and leave prior state intact
var (
	// ErrPermissionDenied indicates the user or OS refused access to a device
	ErrPermissionDenied = errors.New("permission denied")
	// ErrDeviceUnavailable indicates the requested device can't be opened
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrInvalidMediaType indicates a non-video file was selected for analysis
	ErrInvalidMediaType = errors.New("invalid media type")
	// ErrDurationExceeded indicates media longer than the recording cap
	ErrDurationExceeded = errors.New("duration exceeded")
)

// ErrSessionLimit indicates the chat turn cap was reached
var ErrSessionLimit = errors.New("session limit reached")

// backend error kinds
var (
	// ErrNetwork - the request never produced an HTTP response
	ErrNetwork = errors.New("network error")
	// ErrServer - non 2xx response
	ErrServer = errors.New("server error")
	// ErrParse - malformed response body
	ErrParse = errors.New("parse error")
)

// ErrBackend wraps a failed backend call with its kind and response leftovers
type ErrBackend struct {
	Kind       error
	HTTPStatus int
	RawBody    string
	err        error
}

// NewErrBackend creates new error
func NewErrBackend(kind error, status int, body string, err error) *ErrBackend {
	return &ErrBackend{Kind: kind, HTTPStatus: status, RawBody: body, err: err}
}

func (e *ErrBackend) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%v (HTTP %d): %v", e.Kind, e.HTTPStatus, e.err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.err)
}

func (e *ErrBackend) Unwrap() error {
	return e.err
}

// Is lets errors.Is match the kind sentinel
func (e *ErrBackend) Is(target error) bool {
	return target == e.Kind
}
