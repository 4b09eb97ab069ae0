package voxform

import (
	"fmt"
	"net/url"

	"github.com/voxform/voxform/pkg/core"
)

// SDK-level error type that wraps core errors
type Error = core.Error

// Error types
const (
	ErrInvalidRequest    = core.ErrInvalidRequest
	ErrPermissionDenied  = core.ErrPermissionDenied
	ErrDeviceUnavailable = core.ErrDeviceUnavailable
	ErrConnectionFailed  = core.ErrConnectionFailed
	ErrMalformedEvent    = core.ErrMalformedEvent
	ErrAPI               = core.ErrAPI
	ErrApplication       = core.ErrApplication
)

// Error constructors
var (
	NewInvalidRequestError   = core.NewInvalidRequestError
	NewConnectionFailedError = core.NewConnectionFailedError
	NewAPIError              = core.NewAPIError
)

// TransportError represents transport-level failures (DNS, timeouts,
// connection reset, TLS handshake, websocket dial) while talking to the
// model endpoint.
//
// Use errors.As(err, &TransportError{}) to distinguish transport failures
// from canonical API errors (*core.Error).
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, redactURLQuery(e.URL), e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// redactURLQuery strips the query string, which carries the API key on the
// live endpoint.
func redactURLQuery(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}
	parsed.RawQuery = ""
	parsed.User = nil
	return parsed.String()
}
