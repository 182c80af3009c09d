package runs

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/gather/internal/pipeline"
)

// Domain errors for run requests.
var (
	ErrEmptyTarget    = errors.New("target is required")
	ErrInvalidTimeout = errors.New("invalid run_timeout")
	ErrInvalidBody    = errors.New("invalid request body")
	ErrNoCache        = errors.New("result cache disabled")
)

// MapHTTPStatus maps run domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrEmptyTarget),
		errors.Is(err, ErrInvalidTimeout),
		errors.Is(err, ErrInvalidBody),
		errors.Is(err, pipeline.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoCache):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
