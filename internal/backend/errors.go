package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// NetworkErrorKind classifies recoverable transport failures.
type NetworkErrorKind string

const (
	NetworkTransient       NetworkErrorKind = "transient"
	NetworkTimeout         NetworkErrorKind = "timeout"
	NetworkHostUnreachable NetworkErrorKind = "host-unreachable"
)

// AuthError means the backend rejected the account's credentials. It is
// surfaced for credential re-entry, never retried automatically.
type AuthError struct {
	Backend string
	Reason  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %s", e.Backend, e.Reason)
}

// NetworkError wraps a transport failure; the scheduler retries it at the
// next normal tick.
type NetworkError struct {
	Kind NetworkErrorKind
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error (%s): %v", e.Kind, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError means the remote response was malformed or unexpected.
type ProtocolError struct {
	Backend string
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: protocol error: %v", e.Backend, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// ClassifyNetworkError maps a transport error onto the taxonomy, keeping
// timeouts distinguishable because the scheduler logs them differently.
func ClassifyNetworkError(err error) *NetworkError {
	kind := NetworkTransient
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = NetworkTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = NetworkTimeout
	default:
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			kind = NetworkHostUnreachable
		}
	}
	return &NetworkError{Kind: kind, Err: err}
}
