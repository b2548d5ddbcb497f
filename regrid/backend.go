package regrid

import (
	"context"
	"errors"
	"fmt"

	"github.com/ctessum/sparse"

	"github.com/jonwraymond/regrid/gridspec"
	"github.com/jonwraymond/regrid/index"
	"github.com/jonwraymond/regrid/observe"
)

// Request is one regrid call.
type Request struct {
	// Values holds one value per input grid point, in any shape.
	Values *sparse.DenseArray

	// Input and Output describe the grids.
	Input  map[string]any
	Output map[string]any

	// Method is the interpolation method. Default: "linear".
	Method string
}

func (r Request) method() string {
	if r.Method == "" {
		return index.MethodLinear
	}
	return index.CanonicalMethod(r.Method)
}

func (r Request) operation(backend string) observe.Operation {
	return observe.Operation{
		Backend: backend,
		Method:  r.method(),
		Input:   gridspec.FromMap(r.Input).String(),
		Output:  gridspec.FromMap(r.Output).String(),
	}
}

// Result is the regridded field.
type Result struct {
	// Values has the shape of the output grid.
	Values *sparse.DenseArray

	// Output is the output grid description as requested.
	Output map[string]any
}

// Backend regrids values.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: ErrNotFound when the backend cannot convert between the grids.
type Backend interface {
	Name() string
	Regrid(ctx context.Context, req Request) (Result, error)
}

// Precomputed applies matrices from a DB.
type Precomputed struct {
	db *DB
}

// NewPrecomputed returns a backend reading matrices from db.
func NewPrecomputed(db *DB) *Precomputed { return &Precomputed{db: db} }

// Name implements Backend.
func (*Precomputed) Name() string { return "precomputed" }

// DB returns the matrix database.
func (p *Precomputed) DB() *DB { return p.db }

// Regrid implements Backend. The values are flattened to a column, multiplied
// by the matrix and reshaped to the output grid.
func (p *Precomputed) Regrid(ctx context.Context, req Request) (Result, error) {
	if req.Values == nil {
		return Result{}, ErrNilValues
	}
	m, err := p.db.Find(ctx, req.Input, req.Output, req.method())
	if err != nil {
		return Result{}, err
	}
	return apply(m, req)
}

func apply(m *Loaded, req Request) (Result, error) {
	if n := len(req.Values.Elements); n != m.Matrix.Cols() {
		return Result{}, fmt.Errorf("%w: %d values for %d input points", ErrShapeMismatch, n, m.Matrix.Cols())
	}
	out, err := m.Matrix.MulVec(req.Values.Elements)
	if err != nil {
		return Result{}, err
	}

	shape := m.Shape
	if product(shape) != len(out) {
		return Result{}, fmt.Errorf("%w: %d output values for shape %v", ErrShapeMismatch, len(out), shape)
	}
	values := sparse.ZerosDense(shape...)
	copy(values.Elements, out)
	return Result{Values: values, Output: req.Output}, nil
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Engine computes interpolations on demand.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: ErrNotFound for unsupported grids or methods.
type Engine interface {
	Interpolate(ctx context.Context, values []float64, in, out map[string]any, method string) ([]float64, []int, error)
}

// EngineBackend adapts an Engine to Backend.
type EngineBackend struct {
	name   string
	engine Engine
}

// NewEngineBackend returns a backend named name calling engine.
func NewEngineBackend(name string, engine Engine) *EngineBackend {
	return &EngineBackend{name: name, engine: engine}
}

// Name implements Backend.
func (b *EngineBackend) Name() string { return b.name }

// Regrid implements Backend.
func (b *EngineBackend) Regrid(ctx context.Context, req Request) (Result, error) {
	if req.Values == nil {
		return Result{}, ErrNilValues
	}
	out, shape, err := b.engine.Interpolate(ctx, req.Values.Elements, req.Input, req.Output, req.method())
	if err != nil {
		return Result{}, err
	}
	if len(shape) == 0 {
		shape = []int{len(out)}
	}
	if product(shape) != len(out) {
		return Result{}, fmt.Errorf("%w: %d output values for shape %v", ErrShapeMismatch, len(out), shape)
	}
	values := sparse.ZerosDense(shape...)
	copy(values.Elements, out)
	return Result{Values: values, Output: req.Output}, nil
}

// Chain tries backends in order. A backend failing with ErrNotFound passes
// the request to the next one; any other error is returned.
type Chain struct {
	backends []Backend
	logger   observe.Logger
}

// NewChain returns a Chain over backends.
func NewChain(logger observe.Logger, backends ...Backend) *Chain {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Chain{backends: backends, logger: logger}
}

// Name implements Backend.
func (*Chain) Name() string { return "chain" }

// Backends returns the backends in order.
func (c *Chain) Backends() []Backend { return append([]Backend(nil), c.backends...) }

// Regrid implements Backend.
func (c *Chain) Regrid(ctx context.Context, req Request) (Result, error) {
	var errs []error
	for _, b := range c.backends {
		res, err := b.Regrid(ctx, req)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Result{}, err
		}
		c.logger.Debug(ctx, "backend cannot regrid", observe.F("backend", b.Name()), observe.F("error", err))
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Result{}, fmt.Errorf("%w: no backends configured", ErrNotFound)
	}
	return Result{}, errors.Join(errs...)
}

var (
	_ Backend = (*Precomputed)(nil)
	_ Backend = (*EngineBackend)(nil)
	_ Backend = (*Chain)(nil)
)
