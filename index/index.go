package index

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"path"
	"slices"

	"github.com/goccy/go-json"
	"github.com/natefinch/atomic"

	"github.com/jonwraymond/regrid/gridspec"
	"github.com/jonwraymond/regrid/matrix"
	"github.com/jonwraymond/regrid/observe"
)

// Version is the supported index schema version.
const Version = 1

// Well-known file names of a matrix repository.
const (
	FileName       = "index.json"
	GzipFileName   = "index.json.gz"
	ChecksumSuffix = ".sha256"
)

// Entry is one precomputed matrix. Entries are immutable after Load.
type Entry struct {
	Name          string
	Input         *gridspec.GridSpec
	Output        *gridspec.GridSpec
	Interpolation Interpolation

	// Memory is the estimated decoded size in bytes, valid when HasMemory
	// is set.
	Memory    int64
	HasMemory bool

	// Raw is the entry as it appears in the index document.
	Raw map[string]any
}

// MethodName returns the interpolation method name.
func (e *Entry) MethodName() string { return e.Interpolation.MethodName() }

// MatrixPath returns the matrix location relative to the repository root.
func (e *Entry) MatrixPath() string {
	return path.Join(e.Interpolation.DirName(), e.Name+matrix.Extension)
}

// OutputShape returns the shape of the output grid, or nil if unknown.
func (e *Entry) OutputShape() []int { return e.Output.Shape() }

func (e *Entry) matches(in, out *gridspec.GridSpec, method string) (bool, error) {
	if e.MethodName() != method {
		return false, nil
	}
	ok, err := e.Input.Match(in)
	if err != nil || !ok {
		return false, err
	}
	return e.Output.Match(out)
}

// Result is the outcome of parsing one index entry.
type Result struct {
	Name  string
	Entry *Entry
	Err   error
}

// Filter selects entries in Subset.
type Filter struct {
	Input  map[string]any `json:"input"`
	Output map[string]any `json:"output"`

	// Method defaults to "linear".
	Method string `json:"method,omitempty"`
}

// Option configures Load.
type Option func(*Index)

// WithLogger sets the logger used for dropped entries and missing size
// estimates.
func WithLogger(l observe.Logger) Option {
	return func(ix *Index) {
		if l != nil {
			ix.logger = l
		}
	}
}

// Index is a loaded matrix index. It is safe for concurrent reads.
type Index struct {
	entries []*Entry // sorted by name
	byName  map[string]*Entry
	dropped []Result
	logger  observe.Logger
}

type document struct {
	Version any                        `json:"version"`
	Matrix  map[string]json.RawMessage `json:"matrix"`
}

// LoadFile loads the index document at path.
func LoadFile(path string, opts ...Option) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ix, err := Load(bufio.NewReader(f), opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ix, nil
}

// Load parses an index document. Entries that fail to parse are dropped and
// reported by Dropped.
func Load(r io.Reader, opts ...Option) (*Index, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("index: decode: %w", err)
	}
	if v, ok := doc.Version.(float64); !ok || v != Version {
		return nil, fmt.Errorf("%w: expected %d, got %v", ErrVersionMismatch, Version, doc.Version)
	}

	ix := newIndex(opts...)
	ctx := context.Background()
	for _, name := range slices.Sorted(maps.Keys(doc.Matrix)) {
		res := parseEntry(name, doc.Matrix[name])
		if res.Err != nil {
			ix.dropped = append(ix.dropped, res)
			ix.logger.Debug(ctx, "index entry dropped", observe.F("entry", name), observe.F("error", res.Err))
			continue
		}
		ix.add(res.Entry)
	}
	return ix, nil
}

func newIndex(opts ...Option) *Index {
	ix := &Index{
		byName: make(map[string]*Entry),
		logger: observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// add must be called in name order.
func (ix *Index) add(e *Entry) {
	ix.entries = append(ix.entries, e)
	ix.byName[e.Name] = e
}

func parseEntry(name string, data json.RawMessage) Result {
	fail := func(format string, args ...any) Result {
		return Result{Name: name, Err: fmt.Errorf("%w: %s: %s", ErrMalformedEntry, name, fmt.Sprintf(format, args...))}
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fail("%v", err)
	}

	grids := [2]*gridspec.GridSpec{}
	for i, key := range []string{"input", "output"} {
		m, ok := raw[key].(map[string]any)
		if !ok {
			return fail("%s is %T", key, raw[key])
		}
		g := gridspec.FromMap(m)
		if g.Kind() == gridspec.Unsupported {
			return fail("unsupported %s grid %v", key, g)
		}
		grids[i] = g
	}

	interp, err := parseInterpolation(raw["interpolation"])
	if err != nil {
		return fail("%v", err)
	}

	e := &Entry{
		Name:          name,
		Input:         grids[0],
		Output:        grids[1],
		Interpolation: interp,
		Raw:           raw,
	}
	if v, ok := raw["memory"]; ok {
		n, ok := v.(float64)
		if !ok || n < 0 || n != math.Trunc(n) {
			return fail("memory is %v", v)
		}
		e.Memory, e.HasMemory = int64(n), true
	}
	return Result{Name: name, Entry: e}
}

// Len returns the number of entries.
func (ix *Index) Len() int { return len(ix.entries) }

// Entries returns the entries in name order.
func (ix *Index) Entries() []*Entry { return slices.Clone(ix.entries) }

// Get returns the entry with the given name.
func (ix *Index) Get(name string) (*Entry, bool) {
	e, ok := ix.byName[name]
	return e, ok
}

// Dropped returns the entries rejected by Load.
func (ix *Index) Dropped() []Result { return slices.Clone(ix.dropped) }

// Find returns the first entry converting in to out with method. Grid
// descriptions are normalised with gridspec.FromMap; a nil description
// finds nothing.
func (ix *Index) Find(in, out map[string]any, method string) (*Entry, error) {
	return ix.FindSpec(gridspec.FromMap(in), gridspec.FromMap(out), method)
}

// FindSpec is Find for normalised grids. It returns (nil, nil) when nothing
// matches, and an error when a queried Gaussian grid has an invalid
// resolution.
func (ix *Index) FindSpec(in, out *gridspec.GridSpec, method string) (*Entry, error) {
	if in == nil || out == nil {
		return nil, nil
	}
	method = CanonicalMethod(method)

	for _, e := range ix.entries {
		ok, err := e.matches(in, out, method)
		if err != nil {
			if qerr := queryError(in, out); qerr != nil {
				return nil, qerr
			}
			continue
		}
		if ok {
			return e, nil
		}
	}
	return nil, nil
}

// queryError returns the resolution error of a queried grid, if any.
func queryError(grids ...*gridspec.GridSpec) error {
	for _, g := range grids {
		if g.Kind() != gridspec.ReducedGaussian {
			continue
		}
		if _, err := g.Derive(); err != nil {
			return err
		}
	}
	return nil
}

// EstimateMemory returns the decoded size recorded for e, or 0 when the
// index carries no estimate.
func (ix *Index) EstimateMemory(e *Entry) int64 {
	if e.HasMemory {
		return e.Memory
	}
	ix.logger.Warn(context.Background(), "index entry has no memory estimate", observe.F("entry", e.Name))
	return 0
}

// Subset returns the entries selected by filters, in name order. Filters
// without a match are returned as missing; with failOnMissing the first one
// fails the call instead.
func (ix *Index) Subset(filters []Filter, failOnMissing bool) (*Index, []Filter, error) {
	ctx := context.Background()
	picked := make(map[string]*Entry)
	var missing []Filter

	for i, f := range filters {
		method := f.Method
		if method == "" {
			method = MethodLinear
		}
		e, err := ix.Find(f.Input, f.Output, method)
		if err != nil {
			return nil, nil, err
		}
		if e == nil {
			if failOnMissing {
				return nil, nil, fmt.Errorf("%w: filter %d: input=%v output=%v method=%s", ErrMissingEntry, i, f.Input, f.Output, method)
			}
			ix.logger.Warn(ctx, "no index entry for filter", observe.F("filter", i), observe.F("method", method))
			missing = append(missing, f)
			continue
		}
		ix.logger.Info(ctx, "index entry selected", observe.F("filter", i), observe.F("entry", e.Name))
		picked[e.Name] = e
	}

	sub := &Index{byName: make(map[string]*Entry, len(picked)), logger: ix.logger}
	for _, name := range slices.Sorted(maps.Keys(picked)) {
		sub.add(picked[name])
	}
	return sub, missing, nil
}

// ToRaw returns the index as an index document.
func (ix *Index) ToRaw() map[string]any {
	entries := make(map[string]any, len(ix.entries))
	for _, e := range ix.entries {
		entries[e.Name] = e.Raw
	}
	return map[string]any{"version": Version, "matrix": entries}
}

// WriteFile atomically writes the index document to path.
func (ix *Index) WriteFile(path string) error {
	b, err := json.MarshalIndent(ix.ToRaw(), "", "  ")
	if err != nil {
		return fmt.Errorf("index: encode: %w", err)
	}
	return atomic.WriteFile(path, bytes.NewReader(b))
}
