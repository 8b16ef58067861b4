package atlassian

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrUnauthorized is returned for HTTP 401; polling with these credentials is pointless.
	ErrUnauthorized = errors.New("bitbucket: unauthorized")
	// ErrForbidden is returned for HTTP 403.
	ErrForbidden = errors.New("bitbucket: forbidden")
	// ErrTransport marks connection level failures (DNS, refused, timeout, broken body).
	ErrTransport = errors.New("bitbucket: transport failure")
)

// RequestError is any other non-2xx answer.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: expected 2xx but got %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }
