// Package gridspec models grid descriptions and decides when two of them
// describe the same set of points.
//
// A grid description arrives as a loosely typed map (usually decoded from
// JSON). FromMap merges the defaults, infers the grid type and returns an
// immutable GridSpec tagged with a Kind:
//
//   - RegularLatLon: "grid" is a [dx, dy] increment pair.
//   - ReducedGaussian: "grid" is a resolution token such as "N320" or "O1280".
//   - Unsupported: anything else, including regular Gaussian ("F") grids.
//
// Equality is computed, not structural: an omitted area equals the default
// global area, and two east-west global grids match when their western edges
// coincide after longitude normalisation. Unsupported grids never match.
//
// Reduced Gaussian tokens are parsed at construction but never rejected
// there; Derive reports ErrInvalidGaussianResolution on first use.
package gridspec
