package gridspec

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

const (
	// FullGlobe is the longitudinal extent of the sphere in degrees.
	FullGlobe = 360.0

	// Epsilon is the tolerance, in degrees, for coordinate comparisons.
	Epsilon = 1e-8
)

// SameCoord reports whether two coordinates differ by less than Epsilon.
func SameCoord(x, y float64) bool {
	return math.Abs(x-y) < Epsilon
}

// SameArea compares two [north, west, south, east] areas coordinate-wise.
func SameArea(a, b [4]float64) bool {
	for i := range a {
		if !SameCoord(a[i], b[i]) {
			return false
		}
	}
	return true
}

// NormaliseLongitude shifts lon by whole turns into [minimum, minimum+360).
func NormaliseLongitude(lon, minimum float64) float64 {
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return lon
	}
	for lon < minimum {
		lon += FullGlobe
	}
	for lon >= minimum+FullGlobe {
		lon -= FullGlobe
	}
	return lon
}

// IsGlobalEW reports whether the grid wraps around the globe east-west.
// The error is non-nil only for reduced Gaussian grids with an invalid
// resolution token and a non-default area.
func (g *GridSpec) IsGlobalEW() (bool, error) {
	return g.globalEW, g.globalErr
}

// IsGlobalNS reports whether the grid spans pole to pole.
func (g *GridSpec) IsGlobalNS() (bool, error) {
	return g.globalNS, g.globalErr
}

// IsGlobal reports whether the grid covers the whole sphere.
func (g *GridSpec) IsGlobal() (bool, error) {
	return g.globalEW && g.globalNS, g.globalErr
}

func (g *GridSpec) computeGlobal() (ew, ns bool, err error) {
	if g.global || g.HasDefaultArea() {
		return true, true, nil
	}

	switch g.kind {
	case RegularLatLon:
		ns = scalar.EqualWithinAbs(g.North(), 90, Epsilon) && scalar.EqualWithinAbs(g.South(), -90, Epsilon)
		return spansGlobe(g.West(), g.East(), 0, false) || (g.shortSpan && g.shapeWraps()), ns, nil

	case ReducedGaussian:
		gauss, err := g.Derive()
		if err != nil {
			return false, false, err
		}
		return spansGlobe(g.West(), g.East(), gauss.Dx(), true), true, nil
	}
	return false, false, nil
}

// shapeWraps reports whether the number of points along a latitude row
// times the increment covers the full circle.
func (g *GridSpec) shapeWraps() bool {
	n := len(g.shape)
	if g.kind != RegularLatLon || n == 0 {
		return false
	}
	return scalar.EqualWithinAbs(float64(g.shape[n-1])*math.Abs(g.grid.list[0]), FullGlobe, Epsilon)
}

func spansGlobe(west, east, dx float64, allowLastIncrement bool) bool {
	west = NormaliseLongitude(west, 0)
	east = NormaliseLongitude(east, 0)
	if east < west {
		east += FullGlobe
	}
	span := east - west
	switch {
	case math.Abs(span) < Epsilon:
		return true
	case math.Abs(span-FullGlobe) < Epsilon:
		return true
	case allowLastIncrement && math.Abs(FullGlobe-span-dx) < Epsilon:
		return true
	}
	return false
}
