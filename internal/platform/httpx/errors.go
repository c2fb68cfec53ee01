package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors mapped onto problem responses.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
)

// Error attaches a client-facing detail to one of the sentinels.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Detail
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NotFound returns an ErrNotFound carrying detail.
func NotFound(detail string) error {
	return &Error{Kind: ErrNotFound, Detail: detail}
}

// Duplicate returns an ErrDuplicate carrying detail.
func Duplicate(detail string) error {
	return &Error{Kind: ErrDuplicate, Detail: detail}
}

// Invalid returns an ErrValidation carrying detail.
func Invalid(detail string) error {
	return &Error{Kind: ErrValidation, Detail: detail}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	detail := err.Error()
	var he *Error
	if errors.As(err, &he) {
		detail = he.Detail
	}
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", detail)
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", detail)
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", detail)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
