package regrid

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	natomic "github.com/natefinch/atomic"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/regrid/accessor"
	"github.com/jonwraymond/regrid/cache"
	"github.com/jonwraymond/regrid/config"
	"github.com/jonwraymond/regrid/gridspec"
	"github.com/jonwraymond/regrid/index"
	"github.com/jonwraymond/regrid/matrix"
	"github.com/jonwraymond/regrid/observe"
)

// DefaultCacheConfig is the memory cache used when NewDB is given none.
var DefaultCacheConfig = cache.Config{Policy: cache.PolicyLargest, MaxMemory: 500_000_000}

// Loaded is a decoded matrix with the shape of its output grid.
type Loaded struct {
	Matrix *matrix.Matrix
	Shape  []int
	Entry  *index.Entry
}

// SizeBytes returns the memory held by the decoded matrix.
func (l *Loaded) SizeBytes() int64 { return l.Matrix.SizeBytes() }

// DBOption configures a DB.
type DBOption func(*dbOptions)

type dbOptions struct {
	cacheConfig cache.Config
	cache       *cache.MemoryCache[*Loaded]
	logger      observe.Logger
	recorder    cache.Recorder
}

// WithCacheConfig sets the memory cache settings.
func WithCacheConfig(cfg cache.Config) DBOption {
	return func(o *dbOptions) { o.cacheConfig = cfg }
}

// WithCache shares an existing memory cache.
func WithCache(c *cache.MemoryCache[*Loaded]) DBOption {
	return func(o *dbOptions) { o.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) DBOption {
	return func(o *dbOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCacheRecorder reports memory cache activity to r.
func WithCacheRecorder(r cache.Recorder) DBOption {
	return func(o *dbOptions) { o.recorder = r }
}

// DB finds and loads matrices from a repository.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Index: loaded on first use; a reload swaps in a complete new index.
//   - Errors: ErrNotFound when no entry matches; accessor and decode errors
//     are returned unchanged.
type DB struct {
	acc    accessor.Accessor
	cache  *cache.MemoryCache[*Loaded]
	logger observe.Logger

	index  atomic.Pointer[index.Index]
	group  singleflight.Group
	reload sync.Mutex
}

// NewDB returns a DB reading from acc.
func NewDB(acc accessor.Accessor, opts ...DBOption) (*DB, error) {
	o := dbOptions{cacheConfig: DefaultCacheConfig, logger: observe.NopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	db := &DB{acc: acc, cache: o.cache, logger: o.logger.With(observe.F("source", acc.Path()))}
	if db.cache == nil {
		copts := []cache.Option{cache.WithLogger(db.logger)}
		if o.recorder != nil {
			copts = append(copts, cache.WithRecorder(o.recorder))
		}
		c, err := cache.New[*Loaded](o.cacheConfig, (*Loaded).SizeBytes, copts...)
		if err != nil {
			return nil, err
		}
		db.cache = c
	}
	return db, nil
}

// Accessor returns the repository accessor.
func (db *DB) Accessor() accessor.Accessor { return db.acc }

// Cache returns the memory cache of decoded matrices.
func (db *DB) Cache() *cache.MemoryCache[*Loaded] { return db.cache }

// Index returns the matrix index, loading it on first use.
func (db *DB) Index(ctx context.Context) (*index.Index, error) {
	if ix := db.index.Load(); ix != nil {
		return ix, nil
	}
	v, err, _ := db.group.Do("index", func() (any, error) {
		if ix := db.index.Load(); ix != nil {
			return ix, nil
		}
		ix, err := db.loadIndex(ctx)
		if err != nil {
			return nil, err
		}
		db.index.Store(ix)
		return ix, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*index.Index), nil
}

func (db *DB) loadIndex(ctx context.Context) (*index.Index, error) {
	path, err := db.acc.IndexPath(ctx)
	if err != nil {
		return nil, err
	}
	ix, err := index.LoadFile(path, index.WithLogger(db.logger))
	if err != nil {
		return nil, err
	}
	db.logger.Info(ctx, "matrix index loaded",
		observe.F("entries", ix.Len()),
		observe.F("dropped", len(ix.Dropped())),
	)
	return ix, nil
}

// Reload refreshes the index from the repository. Without force a remote
// index is downloaded only when it changed.
func (db *DB) Reload(ctx context.Context, force bool) error {
	db.reload.Lock()
	defer db.reload.Unlock()
	return db.reloadLocked(ctx, force)
}

func (db *DB) reloadLocked(ctx context.Context, force bool) error {
	if err := db.acc.Reload(ctx, force); err != nil {
		return err
	}
	ix, err := db.loadIndex(ctx)
	if err != nil {
		return err
	}
	db.index.Store(ix)
	return nil
}

// FindEntry returns the index entry converting in to out with method, or
// nil when there is none. On a miss against a remote repository that has
// not been checked yet, the index is reloaded and searched again.
func (db *DB) FindEntry(ctx context.Context, in, out *gridspec.GridSpec, method string) (*index.Entry, error) {
	if in == nil || out == nil {
		return nil, nil
	}
	method = index.CanonicalMethod(method)
	ix, err := db.Index(ctx)
	if err != nil {
		return nil, err
	}
	e, err := ix.FindSpec(in, out, method)
	if err != nil || e != nil {
		return e, err
	}
	if db.acc.IsLocal() || db.acc.CheckedRemote() {
		return nil, nil
	}

	db.reload.Lock()
	defer db.reload.Unlock()
	if !db.acc.CheckedRemote() {
		db.logger.Info(ctx, "no matching matrix, checking remote index",
			observe.F("input", in.String()),
			observe.F("output", out.String()),
			observe.F("method", method),
		)
		if err := db.reloadLocked(ctx, false); err != nil {
			return nil, err
		}
	}
	return db.index.Load().FindSpec(in, out, method)
}

// Find returns the decoded matrix converting in to out with method. The
// result is shared through the memory cache, keyed on the normalised grid
// descriptions so every spelling of the same grids hits one entry.
func (db *DB) Find(ctx context.Context, in, out map[string]any, method string) (*Loaded, error) {
	q := query{in: gridspec.FromMap(in), out: gridspec.FromMap(out), method: index.CanonicalMethod(method)}
	if q.in == nil || q.out == nil {
		return nil, q.notFound()
	}
	args := []any{q.in.Map(), q.out.Map(), q.method}
	return db.cache.Get(ctx, args,
		func(ctx context.Context, _ []any) (*Loaded, error) { return db.create(ctx, q) },
		func(ctx context.Context, _ []any) (cache.Prepared[*Loaded], error) { return db.prepare(ctx, q) },
	)
}

// query is one normalised Find call.
type query struct {
	in, out *gridspec.GridSpec
	method  string
}

func (q query) notFound() error {
	return fmt.Errorf("%w: input=%v output=%v method=%s", ErrNotFound, q.in, q.out, q.method)
}

func (db *DB) lookup(ctx context.Context, q query) (*index.Entry, *index.Index, error) {
	e, err := db.FindEntry(ctx, q.in, q.out, q.method)
	if err != nil {
		return nil, nil, err
	}
	if e == nil {
		return nil, nil, q.notFound()
	}
	return e, db.index.Load(), nil
}

func (db *DB) create(ctx context.Context, q query) (*Loaded, error) {
	e, _, err := db.lookup(ctx, q)
	if err != nil {
		return nil, err
	}
	return db.Load(ctx, e)
}

func (db *DB) prepare(ctx context.Context, q query) (cache.Prepared[*Loaded], error) {
	e, ix, err := db.lookup(ctx, q)
	if err != nil {
		return cache.Prepared[*Loaded]{}, err
	}
	return cache.Prepared[*Loaded]{
		Estimate: ix.EstimateMemory(e),
		Create:   func(ctx context.Context) (*Loaded, error) { return db.Load(ctx, e) },
	}, nil
}

// Load decodes the matrix of e, bypassing the memory cache.
func (db *DB) Load(ctx context.Context, e *index.Entry) (*Loaded, error) {
	path, err := db.acc.MatrixPath(ctx, e.MatrixPath())
	if err != nil {
		return nil, err
	}
	m, err := matrix.Load(path)
	if err != nil {
		return nil, err
	}
	shape := e.OutputShape()
	if len(shape) == 0 {
		shape = []int{m.Rows()}
	}
	db.logger.Debug(ctx, "matrix loaded",
		observe.F("entry", e.Name),
		observe.F("size", m.SizeBytes()),
	)
	return &Loaded{Matrix: m, Shape: shape, Entry: e}, nil
}

// CopyMatrixFile copies the matrix file of e into outDir, keeping its
// repository-relative path, and returns the target path. An existing target
// is an error unless existOK is set; with dryRun nothing is written and an
// existing target is only logged.
func (db *DB) CopyMatrixFile(ctx context.Context, e *index.Entry, outDir string, existOK, dryRun bool) (string, error) {
	target := filepath.Join(outDir, filepath.FromSlash(e.MatrixPath()))

	if _, err := os.Stat(target); err == nil && !existOK {
		if !dryRun {
			return "", fmt.Errorf("%w: %s", ErrExists, target)
		}
		db.logger.Warn(ctx, "target file already exists", observe.F("path", target))
	}
	if dryRun {
		return target, nil
	}

	src, err := db.acc.MatrixPath(ctx, e.MatrixPath())
	if err != nil {
		return "", err
	}
	f, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	if err := natomic.WriteFile(target, f); err != nil {
		return "", fmt.Errorf("regrid: copy %s: %w", e.Name, err)
	}
	return target, nil
}

// Watch applies the memory cache settings of store now and on every change.
// The returned function stops watching.
func (db *DB) Watch(store *config.Store) (cancel func(), err error) {
	cfg := store.Get()
	if err := db.applyConfig(cfg); err != nil {
		return nil, err
	}
	return store.OnChange(func(cfg config.Config) {
		if err := db.applyConfig(cfg); err != nil {
			db.logger.Error(context.Background(), "memory cache settings rejected", observe.F("error", err))
		}
	}), nil
}

func (db *DB) applyConfig(cfg config.Config) error {
	cc, err := cfg.CacheConfig()
	if err != nil {
		return err
	}
	_, err = db.cache.Update(cc)
	return err
}

// Close releases the accessor.
func (db *DB) Close() error {
	return db.acc.Close()
}
