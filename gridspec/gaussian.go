package gridspec

import (
	"fmt"
	"strconv"
)

// Bounds on the Gaussian resolution number.
const (
	MinN = 1
	MaxN = 1_000_000
)

// Gaussian is the validated resolution of a reduced Gaussian grid.
type Gaussian struct {
	N          int
	Octahedral bool
}

// Dx returns the longitudinal spacing of the densest latitude row.
func (g Gaussian) Dx() float64 {
	if g.Octahedral {
		return FullGlobe / float64(4*g.N+16)
	}
	return FullGlobe / float64(4*g.N)
}

// String returns the resolution token, e.g. "O1280".
func (g Gaussian) String() string {
	if g.Octahedral {
		return "O" + strconv.Itoa(g.N)
	}
	return "N" + strconv.Itoa(g.N)
}

// Derive returns the resolution of a reduced Gaussian grid. The token is
// validated here rather than in FromMap, so an invalid token only fails the
// callers that need N.
func (g *GridSpec) Derive() (Gaussian, error) {
	if g.kind != ReducedGaussian {
		return Gaussian{}, fmt.Errorf("%w: %s", ErrNotGaussian, g)
	}
	return g.gaussian, g.gaussianErr
}

// parseGaussian decodes "N320", "O1280", a numeric string or an integer.
// For the last two forms the octahedral flag is taken from the description.
func parseGaussian(grid, octahedral any) (Gaussian, error) {
	var res Gaussian
	switch v := grid.(type) {
	case string:
		n, prefix, err := parseToken(v)
		if err != nil {
			return Gaussian{}, err
		}
		res.N = n
		switch prefix {
		case 'N':
		case 'O':
			res.Octahedral = true
		default:
			res.Octahedral = asFlag(octahedral) != 0
		}
	default:
		n, ok := asInt(v)
		if !ok {
			return Gaussian{}, fmt.Errorf("%w: N=%v", ErrInvalidGaussianResolution, grid)
		}
		res.N = n
		res.Octahedral = asFlag(octahedral) != 0
	}

	if res.N < MinN || res.N > MaxN {
		return Gaussian{}, fmt.Errorf("%w: N=%d out of range [%d, %d]", ErrInvalidGaussianResolution, res.N, MinN, MaxN)
	}
	return res, nil
}

func parseToken(token string) (n int, prefix byte, err error) {
	digits := token
	if token != "" && (token[0] == 'N' || token[0] == 'O') {
		prefix, digits = token[0], token[1:]
	}
	n, convErr := strconv.Atoi(digits)
	if convErr != nil {
		return 0, 0, fmt.Errorf("%w: N=%q", ErrInvalidGaussianResolution, token)
	}
	return n, prefix, nil
}
