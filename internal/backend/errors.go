package backend

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrAuth is an authentication or authorization failure. Not retried.
	ErrAuth = errors.New("backend auth error")
	// ErrTransport covers connection failures, timeouts and non-2xx statuses.
	ErrTransport = errors.New("backend transport error")
	// ErrMalformedResponse marks a response that could not be decoded. It is
	// recorded on Result.Malformed and never returned from Transform.
	ErrMalformedResponse = errors.New("malformed backend response")
	// ErrToolLoopExceeded is returned when an agent does not finish its turn
	// within the configured number of round trips.
	ErrToolLoopExceeded = errors.New("tool loop exceeded")
)

// statusError maps a non-2xx response to ErrAuth or ErrTransport.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: API returned status %d: %s", ErrAuth, resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: API returned status %d: %s", ErrTransport, resp.StatusCode, msg)
}

func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
