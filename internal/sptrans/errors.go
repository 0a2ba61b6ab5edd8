package sptrans

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthFailed is returned by data operations when the login step failed.
// No data request is issued in that case.
var ErrAuthFailed = errors.New("sptrans: authentication failed")

var (
	errNilClient = errors.New("sptrans: client is nil")
	errNotArray  = errors.New("body is not a JSON array")
	errNotObject = errors.New("body is not a JSON object")
)

// TransportError reports a network failure or a non-2xx response.
// Status is zero when no response was received.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Unauthorized reports whether upstream rejected the session.
func (e *TransportError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// ShapeError reports a response body that does not match the documented
// shape. Payload holds the (possibly truncated) body.
type ShapeError struct {
	Op      string
	Payload string
	Err     error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: unexpected response shape: %v", e.Op, e.Err)
}

func (e *ShapeError) Unwrap() error { return e.Err }

// Kind classifies the error returned by a data operation.
type Kind int

const (
	KindOK Kind = iota
	KindAuth
	KindTransport
	KindShape
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindAuth:
		return "auth"
	case KindTransport:
		return "transport"
	case KindShape:
		return "shape"
	default:
		return "unknown"
	}
}

// KindOf maps an error returned by the client to its Kind. Errors that did
// not come from the client count as transport failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	if errors.Is(err, ErrAuthFailed) {
		return KindAuth
	}
	var shape *ShapeError
	if errors.As(err, &shape) {
		return KindShape
	}
	return KindTransport
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}
