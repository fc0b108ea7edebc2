// Package transport defines the REST contract the cache layer needs from the
// backing resource store. The concrete HTTP client lives in infra/rest.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// Client issues JSON requests against the resource store. Responses are
// decoded into out when it is non-nil.
type Client interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
}

// StatusError reports a request that reached the server but returned a
// non-2xx status.
type StatusError struct {
	Method string
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Status)
}

// IsNetwork reports whether err represents a failed request, either a
// transport failure or a non-2xx response.
func IsNetwork(err error) bool {
	var se *StatusError
	return errors.As(err, &se) || errors.Is(err, ErrRequestFailed)
}

// ErrRequestFailed wraps transport-level failures where no response was
// received at all.
var ErrRequestFailed = errors.New("request failed")
