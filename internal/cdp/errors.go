// File: internal/cdp/errors.go
package cdp

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoTarget is returned by the Directory when no open page satisfies the
// caller's predicate. Callers typically react by creating a fresh target.
var ErrNoTarget = errors.New("no debug target matches the predicate")

// TransportError covers the connection itself: dial failures, read/write
// failures, and calls issued or pending while the socket goes away. It is
// fatal for the current attempt sequence; the caller must re-discover the
// target and reconnect before trying again.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("cdp transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports that a single call saw no response within its
// window. The pending entry has already been removed; a late response is
// dropped silently.
type TimeoutError struct {
	Method  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("cdp call %s timed out after %s", e.Method, e.Timeout)
}

// ProtocolError is an explicit rejection from the remote endpoint (the
// response carried an error field). Resolution strategies treat it as a
// strategy failure and advance, not as a reason to abort.
type ProtocolError struct {
	Method  string
	Code    int64
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("cdp %s rejected: %s (code %d)", e.Method, e.Message, e.Code)
}

// DiscoveryError wraps failures of the HTTP discovery endpoints
// (/json/list, /json/new, /json/version): unreachable endpoint, non-2xx
// status, or a malformed body.
type DiscoveryError struct {
	URL    string
	Status int
	Err    error
}

func (e *DiscoveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("cdp discovery %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("cdp discovery %s: %v", e.URL, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsProtocol reports whether err is (or wraps) a ProtocolError.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
