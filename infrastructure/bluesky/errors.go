package bluesky

import (
	"errors"
	"fmt"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

var (
	// ErrInvalidPostURL is returned for URLs that are not bsky.app post links.
	ErrInvalidPostURL = errors.New("not a bsky.app post URL")

	// ErrMissingCredentials is returned when no identifier or password is configured.
	ErrMissingCredentials = errors.New("set BLUESKY_EMAIL and BLUESKY_PASSWORD in .env or the environment")

	// ErrUnknownThreadType is returned for thread unions this client cannot decode.
	ErrUnknownThreadType = errors.New("unknown thread type")
)

// APIError is a non-2xx XRPC response. It unwraps to the ports sentinel for
// its status code, so errors.Is(err, ports.ErrNotFound) works.
type APIError struct {
	Operation  string
	StatusCode int
	// Code is the XRPC error name, for example "InvalidRequest" or "AuthenticationRequired".
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: HTTP %d: [%s] %s", e.Operation, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Operation, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return ports.StatusError(e.StatusCode) }

// HasStatusCode reports whether err is an APIError with the given HTTP status.
func HasStatusCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
