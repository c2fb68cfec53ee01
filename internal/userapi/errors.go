package userapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matched by StatusError through errors.Is.
var (
	// ErrNotFound indicates the remote service answered 404.
	ErrNotFound = errors.New("userapi: not found")
	// ErrConflict indicates a username or email uniqueness violation (409).
	ErrConflict = errors.New("userapi: conflict")
	// ErrValidation indicates any other 4xx rejection.
	ErrValidation = errors.New("userapi: validation failed")
	// ErrServer indicates a 5xx answer.
	ErrServer = errors.New("userapi: server error")
	// ErrDecode indicates a response body that could not be decoded.
	ErrDecode = errors.New("userapi: decode response")
)

// StatusError reports a non-2xx answer from the remote service.
type StatusError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("userapi: %s: status %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("userapi: %s: status %d", e.Op, e.StatusCode)
}

// Is maps the status code onto the sentinel taxonomy.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrValidation:
		return e.StatusCode >= 400 && e.StatusCode < 500 &&
			e.StatusCode != http.StatusNotFound && e.StatusCode != http.StatusConflict
	case ErrServer:
		return e.StatusCode >= 500
	}
	return false
}

// NetworkError wraps transport failures (refused connection, DNS, cancelled context).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("userapi: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the HTTP status of err, or 0 when err carries none.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
