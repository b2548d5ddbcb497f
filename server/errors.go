package server

import (
	"errors"
	"net/http"

	"github.com/jonwraymond/regrid/cache"
	"github.com/jonwraymond/regrid/config"
	"github.com/jonwraymond/regrid/gridspec"
	"github.com/jonwraymond/regrid/matrix"
	"github.com/jonwraymond/regrid/regrid"
	"github.com/jonwraymond/regrid/resilience"
)

var (
	// ErrBadRequest indicates a request body that cannot be decoded.
	ErrBadRequest = errors.New("server: bad request")

	// ErrNoDownloads indicates that the matrix source is not a URL.
	ErrNoDownloads = errors.New("server: matrix source keeps no downloads")
)

// statusCode maps an error to the HTTP status reported for it.
func statusCode(err error) int {
	switch {
	case errors.Is(err, regrid.ErrNotFound), errors.Is(err, ErrNoDownloads):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, regrid.ErrShapeMismatch),
		errors.Is(err, regrid.ErrNilValues),
		errors.Is(err, matrix.ErrDimensionMismatch),
		errors.Is(err, gridspec.ErrInvalidGaussianResolution),
		errors.Is(err, config.ErrInvalid),
		errors.Is(err, config.ErrInvalidSize),
		errors.Is(err, config.ErrUnknownKey):
		return http.StatusBadRequest
	case errors.Is(err, resilience.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, cache.ErrCapacityExceeded),
		errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
