package libsession

import (
	"fmt"
	"net/url"

	"github.com/pkg/errors"
)

var (
	ErrConnectionClosed   = errors.New("connection has been closed")
	ErrCannotConnect      = errors.New("connection cannot be established")
	ErrTerminated         = errors.New("program exit")
	ErrRateLimit          = errors.New("rate limit exceeded")
	ErrConnectTimeout     = errors.New("connect attempt timed out")
	ErrInterrupted        = errors.New("connect attempt interrupted")
	ErrNoToken            = errors.New("no authentication token found")
	ErrTokenMalformed     = errors.New("invalid token format")
	ErrTokenExpired       = errors.New("token has expired")
	ErrUnauthorized       = errors.New("server rejected credentials")
	ErrNotConnected       = errors.New("not connected")
	ErrNotBound           = errors.New("not joined to a session")
	ErrSendBufferFull     = errors.New("send buffer full")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrUnsupported        = errors.New("operation not supported by vocabulary")
)

// AuthError reports a missing, malformed or expired credential. It is fatal for the
// attempt that produced it and never retried automatically.
type AuthError struct {
	err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.err)
}

func (e *AuthError) Unwrap() error { return e.err }

func NewAuthError(err error) *AuthError {
	return &AuthError{err: err}
}

// TransportError reports a refused, timed out or dropped connection. These feed the
// reconnection policy.
type TransportError struct {
	err error
	url url.URL
}

func (e *TransportError) Error() string {
	if e.url.Host == "" {
		return fmt.Sprintf("transport error: %s", e.err)
	}
	return fmt.Sprintf("transport error: %s to %s", e.err, redactedURL(e.url))
}

func (e *TransportError) Unwrap() error { return e.err }

func NewTransportError(err error, u url.URL) *TransportError {
	return &TransportError{err: err, url: u}
}

// ProtocolError is a rejection sent by the server over a healthy connection. It is
// surfaced to subscribers and leaves the connection up.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("protocol error: %s", e.Message)
	}
	return fmt.Sprintf("protocol error %s: %s", e.Code, e.Message)
}

// ExhaustionError is terminal: the manager gave up after Attempts retries.
type ExhaustionError struct {
	Attempts int
	last     error
}

func (e *ExhaustionError) Error() string {
	if e.last == nil {
		return fmt.Sprintf("%s after %d attempts", ErrReconnectExhausted, e.Attempts)
	}
	return fmt.Sprintf("%s after %d attempts: %s", ErrReconnectExhausted, e.Attempts, e.last)
}

func (e *ExhaustionError) Unwrap() error { return ErrReconnectExhausted }

// Last returns the failure that ended the final attempt.
func (e *ExhaustionError) Last() error { return e.last }

func redactedURL(u url.URL) string {
	q := u.Query()
	if q.Has(tokenQueryParam) {
		q.Set(tokenQueryParam, "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
