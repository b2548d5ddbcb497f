package gridspec

import "slices"

// Match reports whether g and o describe the same grid.
//
// Both sides must share the type, the grid value, the scanning flags and,
// when both carry one, the shape. The areas must then be equivalent: equal
// within Epsilon, or both grids global east-west (and, for lat-lon grids,
// equal north and south edges) with coinciding normalised western edges.
// A lat-lon span one increment short of 360 degrees counts as global only
// when a shape on either side shows the row covers the full circle.
//
// The error is non-nil when a reduced Gaussian side has an invalid
// resolution and the comparison needed it.
func (g *GridSpec) Match(o *GridSpec) (bool, error) {
	if g == nil || o == nil {
		return false, nil
	}
	if g.kind == Unsupported || o.kind == Unsupported {
		return false, nil
	}
	if g.typeName != o.typeName || g.kind != o.kind {
		return false, nil
	}
	if !g.grid.equal(o.grid) || g.scan != o.scan {
		return false, nil
	}
	if g.shape != nil && o.shape != nil && !slices.Equal(g.shape, o.shape) {
		return false, nil
	}

	if SameArea(g.area, o.area) {
		return true, nil
	}

	switch g.kind {
	case RegularLatLon:
		if !SameCoord(g.North(), o.North()) || !SameCoord(g.South(), o.South()) {
			return false, nil
		}
		// A span one increment short of 360 degrees wraps when either
		// side's shape confirms it; shapes already matched if both exist.
		wraps := g.shapeWraps() || o.shapeWraps()
		ewG := g.globalEW || (g.shortSpan && wraps)
		ewO := o.globalEW || (o.shortSpan && wraps)
		if ewG && ewO {
			return sameWest(g, o), nil
		}

	case ReducedGaussian:
		a, err := g.IsGlobal()
		if err != nil {
			return false, err
		}
		b, err := o.IsGlobal()
		if err != nil {
			return false, err
		}
		if a && b {
			return sameWest(g, o), nil
		}
	}
	return false, nil
}

// Equal is Match with errors treated as a mismatch.
func (g *GridSpec) Equal(o *GridSpec) bool {
	ok, err := g.Match(o)
	return ok && err == nil
}

func sameWest(a, b *GridSpec) bool {
	return SameCoord(NormaliseLongitude(a.West(), 0), NormaliseLongitude(b.West(), 0))
}
