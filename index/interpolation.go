package index

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/jonwraymond/regrid/internal/canon"
)

// Canonical interpolation method names.
const (
	MethodLinear           = "linear"
	MethodNearestNeighbour = "nearest-neighbour"
	MethodGridBoxAverage   = "grid-box-average"
)

var methodAliases = map[string]string{
	"nn":               MethodNearestNeighbour,
	"nearest-neighbor": MethodNearestNeighbour,
}

// CanonicalMethod resolves method aliases such as "nn".
func CanonicalMethod(method string) string {
	if m, ok := methodAliases[method]; ok {
		return m
	}
	return method
}

// gridBoxDefault is the descriptor MIR writes for a plain grid-box-average.
var gridBoxDefault = map[string]any{
	"type":                MethodGridBoxAverage,
	"nonLinear":           []any{map[string]any{"type": "missing-if-heaviest-missing"}},
	"solver":              map[string]any{"type": "multiply"},
	"cropping":            false,
	"lsmWeightAdjustment": 0.2,
	"pruneEpsilon":        1e-10,
	"poleDisplacement":    0,
}

var gridBoxDefaultJSON = func() []byte {
	b, err := canon.Marshal(gridBoxDefault)
	if err != nil {
		panic(err)
	}
	return b
}()

// Interpolation describes how a matrix was computed.
type Interpolation struct {
	Engine  string
	Version string

	// Method is a method name or a descriptor object with a "type" key.
	Method any

	name string
	raw  map[string]any
}

func parseInterpolation(v any) (Interpolation, error) {
	raw, ok := v.(map[string]any)
	if !ok {
		return Interpolation{}, fmt.Errorf("%w: interpolation is %T", ErrInvalidMethod, v)
	}
	in := Interpolation{
		Engine:  scalarString(raw["engine"]),
		Version: scalarString(raw["version"]),
		Method:  raw["method"],
		raw:     raw,
	}
	switch m := in.Method.(type) {
	case string:
		in.name = m
	case map[string]any:
		in.name, _ = m["type"].(string)
	}
	if in.name == "" {
		return Interpolation{}, fmt.Errorf("%w: %v", ErrInvalidMethod, in.Method)
	}
	return in, nil
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

// MethodName returns the method name, or the "type" of a descriptor object.
func (in Interpolation) MethodName() string { return in.name }

// IsGridBoxDefault reports whether the method is a grid-box-average with
// default options.
func (in Interpolation) IsGridBoxDefault() bool {
	switch m := in.Method.(type) {
	case string:
		return m == MethodGridBoxAverage
	case map[string]any:
		b, err := canon.Marshal(m)
		return err == nil && bytes.Equal(b, gridBoxDefaultJSON)
	}
	return false
}

// UID identifies the interpolation options. Plain descriptors use the method
// name; anything carrying extra options uses a digest of the descriptor.
func (in Interpolation) UID() string {
	if in.name == MethodGridBoxAverage && in.IsGridBoxDefault() {
		return in.name
	}
	if _, ok := in.Method.(map[string]any); !ok {
		keys := slices.Sorted(maps.Keys(in.raw))
		if slices.Equal(keys, []string{"engine", "method", "version"}) {
			return in.name
		}
	}
	sum, err := canon.Sum(in.raw)
	if err != nil {
		return in.name
	}
	return sum
}

// DirName returns the directory holding matrices computed this way.
func (in Interpolation) DirName() string {
	return in.Engine + "_" + in.Version + "_" + in.name
}

// Map returns the descriptor as it appears in the index document.
func (in Interpolation) Map() map[string]any {
	return maps.Clone(in.raw)
}
