package gridspec

import (
	"fmt"
	"maps"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Kind identifies the variant of a GridSpec.
type Kind int

const (
	// Unsupported grids are kept but never match anything.
	Unsupported Kind = iota
	// RegularLatLon grids carry a [dx, dy] increment pair.
	RegularLatLon
	// ReducedGaussian grids carry an N or O resolution token.
	ReducedGaussian
)

// String returns the canonical type name of the kind.
func (k Kind) String() string {
	switch k {
	case RegularLatLon:
		return TypeRegularLL
	case ReducedGaussian:
		return TypeReducedGG
	default:
		return "unsupported"
	}
}

// Grid type names as they appear in the "type" key.
const (
	TypeRegularLL = "regular_ll"
	TypeRegularGG = "regular_gg"
	TypeReducedGG = "reduced_gg"
)

// Keys with a fixed meaning in a grid description.
const (
	KeyType               = "type"
	KeyGrid               = "grid"
	KeyArea               = "area"
	KeyShape              = "shape"
	KeyGlobal             = "global"
	KeyOctahedral         = "octahedral"
	KeyIScansNegatively   = "i_scans_negatively"
	KeyJPointsConsecutive = "j_points_consecutive"
	KeyJScansPositively   = "j_scans_positively"
)

// DefaultArea is the [north, west, south, east] area assumed when a grid
// description omits one.
var DefaultArea = [4]float64{90, 0, -90, 360}

var scanKeys = [3]string{KeyIScansNegatively, KeyJPointsConsecutive, KeyJScansPositively}

// GridSpec is an immutable, normalised grid description.
//
// A GridSpec is safe for concurrent use; nothing is computed lazily after
// FromMap returns.
type GridSpec struct {
	kind     Kind
	typeName string
	grid     gridValue
	area     [4]float64
	scan     [3]int
	shape    []int
	global   bool
	source   map[string]any

	gaussian    Gaussian
	gaussianErr error

	globalEW  bool
	globalNS  bool
	globalErr error

	// shortSpan is set for lat-lon grids whose east-west span is one
	// increment short of the full circle.
	shortSpan bool
}

// gridValue is the comparable form of the "grid" key.
type gridValue struct {
	list    []float64
	isList  bool
	token   string
	isToken bool
	number  float64
	isNum   bool
	other   any
}

func (g gridValue) equal(o gridValue) bool {
	switch {
	case g.isList || o.isList:
		if !g.isList || !o.isList || len(g.list) != len(o.list) {
			return false
		}
		for i := range g.list {
			if g.list[i] != o.list[i] {
				return false
			}
		}
		return true
	case g.isToken || o.isToken:
		return g.isToken && o.isToken && g.token == o.token
	case g.isNum || o.isNum:
		return g.isNum && o.isNum && g.number == o.number
	default:
		return reflect.DeepEqual(g.other, o.other)
	}
}

// FromMap normalises a grid description. It never fails: descriptions that
// match no supported variant produce an Unsupported GridSpec. A nil map
// yields nil.
func FromMap(m map[string]any) *GridSpec {
	if m == nil {
		return nil
	}

	src := map[string]any{
		KeyIScansNegatively:   0,
		KeyJPointsConsecutive: 0,
		KeyJScansPositively:   0,
	}
	maps.Copy(src, m)

	g := &GridSpec{
		typeName: inferType(src),
		grid:     newGridValue(src[KeyGrid]),
		area:     DefaultArea,
		source:   src,
	}
	src[KeyType] = g.typeName

	for i, k := range scanKeys {
		g.scan[i] = asFlag(src[k])
	}
	if shape, ok := asInts(src[KeyShape]); ok {
		g.shape = shape
	} else if n, ok := asInt(src[KeyShape]); ok {
		g.shape = []int{n}
	}
	g.global = asFlag(src[KeyGlobal]) != 0

	switch g.typeName {
	case TypeRegularLL:
		g.kind = RegularLatLon
	case TypeReducedGG:
		g.kind = ReducedGaussian
	default:
		g.kind = Unsupported
		return g
	}

	if v, ok := src[KeyArea]; ok {
		area, ok := asFloats(v)
		if !ok || len(area) != 4 {
			g.kind = Unsupported
			return g
		}
		copy(g.area[:], area)
	} else {
		src[KeyArea] = append([]float64(nil), DefaultArea[:]...)
	}

	if g.kind == RegularLatLon && len(g.grid.list) != 2 {
		g.kind = Unsupported
		return g
	}

	if g.kind == ReducedGaussian {
		g.gaussian, g.gaussianErr = parseGaussian(src[KeyGrid], src[KeyOctahedral])
	} else {
		g.shortSpan = spansGlobe(g.West(), g.East(), math.Abs(g.grid.list[0]), true) &&
			!spansGlobe(g.West(), g.East(), 0, false)
	}
	g.globalEW, g.globalNS, g.globalErr = g.computeGlobal()
	return g
}

// inferType returns the explicit "type" or infers it from "grid".
func inferType(src map[string]any) string {
	if t, ok := src[KeyType].(string); ok && t != "" {
		return t
	}

	grid, ok := src[KeyGrid]
	if !ok || grid == nil {
		return ""
	}
	if list, ok := asFloats(grid); ok {
		if len(list) == 2 {
			return TypeRegularLL
		}
		return ""
	}
	switch v := grid.(type) {
	case string:
		return inferGaussianType(v)
	default:
		if _, ok := asInt(v); ok {
			return TypeRegularGG
		}
	}
	return ""
}

func inferGaussianType(token string) string {
	if token == "" {
		return ""
	}
	switch token[0] {
	case 'F':
		return TypeRegularGG
	case 'N', 'O':
		return TypeReducedGG
	}
	if _, err := strconv.Atoi(token); err != nil {
		return ""
	}
	return TypeRegularGG
}

func newGridValue(v any) gridValue {
	if list, ok := asFloats(v); ok {
		return gridValue{list: list, isList: true}
	}
	if s, ok := v.(string); ok {
		return gridValue{token: s, isToken: true}
	}
	if f, ok := asFloat(v); ok {
		return gridValue{number: f, isNum: true}
	}
	return gridValue{other: v}
}

// Kind returns the grid variant.
func (g *GridSpec) Kind() Kind { return g.kind }

// Type returns the (possibly inferred) type name, which may be empty.
func (g *GridSpec) Type() string { return g.typeName }

// Area returns [north, west, south, east].
func (g *GridSpec) Area() [4]float64 { return g.area }

// North returns the northern edge of the area.
func (g *GridSpec) North() float64 { return g.area[0] }

// West returns the western edge of the area.
func (g *GridSpec) West() float64 { return g.area[1] }

// South returns the southern edge of the area.
func (g *GridSpec) South() float64 { return g.area[2] }

// East returns the eastern edge of the area.
func (g *GridSpec) East() float64 { return g.area[3] }

// Shape returns the number of points per dimension, or nil if unknown.
func (g *GridSpec) Shape() []int {
	if g.shape == nil {
		return nil
	}
	return append([]int(nil), g.shape...)
}

// Increments returns the [dx, dy] pair of a regular lat-lon grid.
func (g *GridSpec) Increments() ([2]float64, bool) {
	if g.kind != RegularLatLon {
		return [2]float64{}, false
	}
	return [2]float64{g.grid.list[0], g.grid.list[1]}, true
}

// HasDefaultArea reports whether the area equals DefaultArea.
func (g *GridSpec) HasDefaultArea() bool {
	return SameArea(g.area, DefaultArea)
}

// Map returns a copy of the normalised description, with defaults merged
// and the inferred type set.
func (g *GridSpec) Map() map[string]any {
	return maps.Clone(g.source)
}

// String implements fmt.Stringer.
func (g *GridSpec) String() string {
	if g == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s(grid=%v", g.kind, g.source[KeyGrid])
	if g.kind != Unsupported && !g.HasDefaultArea() {
		fmt.Fprintf(&b, " area=%v", g.area)
	}
	if g.shape != nil {
		fmt.Fprintf(&b, " shape=%v", g.shape)
	}
	b.WriteByte(')')
	return b.String()
}
