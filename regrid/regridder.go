package regrid

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonwraymond/regrid/accessor"
	"github.com/jonwraymond/regrid/config"
	"github.com/jonwraymond/regrid/observe"
)

// Regridder is the instrumented entry point of regrid calls.
type Regridder struct {
	backend Backend
	call    observe.Func[Request, Result]
}

// NewRegridder wraps backend with m. A nil m records nothing.
func NewRegridder(backend Backend, m *observe.Middleware) *Regridder {
	if m == nil {
		m = observe.NewMiddleware(nil, nil, nil)
	}
	inner := func(ctx context.Context, _ observe.Operation, req Request) (Result, error) {
		return backend.Regrid(ctx, req)
	}
	return &Regridder{backend: backend, call: observe.Instrument(m, inner)}
}

// Backend returns the wrapped backend.
func (r *Regridder) Backend() Backend { return r.backend }

// Regrid interpolates req.Values from the input grid to the output grid.
func (r *Regridder) Regrid(ctx context.Context, req Request) (Result, error) {
	return r.call(ctx, req.operation(r.backend.Name()), req)
}

// ServiceOption configures NewService.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	observer    observe.Observer
	engine      Engine
	accessorOpt []accessor.URLOption
}

// WithObserver reports logs, traces and metrics to obs.
func WithObserver(obs observe.Observer) ServiceOption {
	return func(o *serviceOptions) { o.observer = obs }
}

// WithEngine provides the backend used for the "engine" entry of
// backend-order.
func WithEngine(e Engine) ServiceOption {
	return func(o *serviceOptions) { o.engine = e }
}

// WithAccessorOptions configures the remote accessor.
func WithAccessorOptions(opts ...accessor.URLOption) ServiceOption {
	return func(o *serviceOptions) { o.accessorOpt = append(o.accessorOpt, opts...) }
}

// Service owns a DB and the Regridder serving it, configured by a Store.
type Service struct {
	*Regridder

	DB    *DB
	Store *config.Store

	stopWatch func()
}

// NewService builds the DB and backends described by store. The memory
// cache follows later changes to store.
func NewService(store *config.Store, opts ...ServiceOption) (*Service, error) {
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := observe.NopLogger()
	var middleware *observe.Middleware
	var dbOpts []DBOption
	if o.observer != nil {
		logger = o.observer.Logger()
		m, err := observe.MiddlewareFromObserver(o.observer)
		if err != nil {
			return nil, err
		}
		middleware = m
		rec, err := observe.NewCacheMetrics(o.observer.Meter())
		if err != nil {
			return nil, err
		}
		dbOpts = append(dbOpts, WithCacheRecorder(rec))
	}

	cfg := store.Get()
	cc, err := cfg.CacheConfig()
	if err != nil {
		return nil, err
	}
	acc, err := accessor.New(cfg.MatrixSource, cfg.URLConfig(),
		append([]accessor.URLOption{accessor.WithLogger(logger)}, o.accessorOpt...)...)
	if err != nil {
		return nil, err
	}
	db, err := NewDB(acc, append(dbOpts, WithCacheConfig(cc), WithLogger(logger))...)
	if err != nil {
		return nil, errors.Join(err, acc.Close())
	}

	backends := make([]Backend, 0, len(cfg.BackendOrder))
	for _, name := range cfg.BackendOrder {
		switch {
		case name == config.BackendPrecomputed:
			backends = append(backends, NewPrecomputed(db))
		case name == config.BackendEngine && o.engine != nil:
			backends = append(backends, NewEngineBackend(name, o.engine))
		default:
			return nil, errors.Join(fmt.Errorf("%w: %q", ErrUnknownBackend, name), db.Close())
		}
	}
	var backend Backend = NewChain(logger, backends...)
	if len(backends) == 1 {
		backend = backends[0]
	}

	stop, err := db.Watch(store)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return &Service{
		Regridder: NewRegridder(backend, middleware),
		DB:        db,
		Store:     store,
		stopWatch: stop,
	}, nil
}

// Close stops following configuration changes and releases the DB.
func (s *Service) Close() error {
	s.stopWatch()
	return s.DB.Close()
}

var (
	defaultOnce    sync.Once
	defaultService *Service
	defaultErr     error
)

// Default returns the process-wide Service, built on first use from
// config.LoadStore.
func Default() (*Service, error) {
	defaultOnce.Do(func() {
		store, err := config.LoadStore("")
		if err != nil {
			defaultErr = err
			return
		}
		defaultService, defaultErr = NewService(store)
	})
	return defaultService, defaultErr
}

// Regrid runs req through the Default service.
func Regrid(ctx context.Context, req Request) (Result, error) {
	s, err := Default()
	if err != nil {
		return Result{}, err
	}
	return s.Regrid(ctx, req)
}
