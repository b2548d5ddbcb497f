package gridspec

import "errors"

// Sentinel errors for grid descriptions.
var (
	// ErrInvalidGaussianResolution is returned when a Gaussian resolution
	// token cannot be parsed or N is outside [MinN, MaxN].
	ErrInvalidGaussianResolution = errors.New("gridspec: invalid Gaussian resolution")

	// ErrNotGaussian is returned by Derive on non-Gaussian grids.
	ErrNotGaussian = errors.New("gridspec: not a Gaussian grid")
)
