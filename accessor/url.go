package accessor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/natefinch/atomic"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/regrid/index"
	"github.com/jonwraymond/regrid/observe"
	"github.com/jonwraymond/regrid/resilience"
	"github.com/jonwraymond/regrid/secret"
)

// URLConfig configures a URL accessor.
type URLConfig struct {
	// URL is the repository root.
	URL string

	// CacheDir holds downloaded files. Default: the user cache directory
	// joined with "regrid".
	CacheDir string

	// Timeout bounds each download attempt.
	// Default: 30 seconds
	Timeout time.Duration

	// MaxAttempts is the number of tries per download.
	// Default: 3
	MaxAttempts int

	// MaxConcurrent bounds parallel downloads.
	// Default: 4
	MaxConcurrent int

	// RequestsPerSecond limits the request rate. Zero means no limit.
	RequestsPerSecond float64

	// Headers are sent with every request. Values may hold environment
	// variables and secret references.
	Headers map[string]string
}

// URLOption configures a URL accessor.
type URLOption func(*URL)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) URLOption {
	return func(u *URL) { u.client = c }
}

// WithLogger sets the logger used for downloads and remote checks.
func WithLogger(l observe.Logger) URLOption {
	return func(u *URL) { u.logger = l }
}

// WithExecutor replaces the executor built from URLConfig.
func WithExecutor(e *resilience.Executor) URLOption {
	return func(u *URL) { u.exec = e }
}

// WithResolver sets the resolver for header values. Default:
// secret.NewDefaultResolver.
func WithResolver(r *secret.Resolver) URLOption {
	return func(u *URL) { u.resolver = r }
}

type refresh int

const (
	refreshNone refresh = iota
	refreshCompare
	refreshForce
)

// URL serves a repository over HTTP(S) through a local download cache.
type URL struct {
	base     string
	dir      string
	client   *http.Client
	exec     *resilience.Executor
	resolver *secret.Resolver
	headers  map[string]string
	logger   observe.Logger
	meta     *store
	group    singleflight.Group

	headerOnce sync.Once
	header     http.Header
	headerErr  error

	// mu serialises index refreshes.
	mu            sync.Mutex
	indexPath     string
	checkedRemote bool
}

// NewURL creates a URL accessor and opens its cache directory.
func NewURL(cfg URLConfig, opts ...URLOption) (*URL, error) {
	parsed, err := url.Parse(cfg.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("accessor: invalid repository URL %q", cfg.URL)
	}
	base := cfg.URL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	if cfg.CacheDir == "" {
		root, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("accessor: cache directory: %w", err)
		}
		cfg.CacheDir = filepath.Join(root, "regrid")
	}
	sum := sha256.Sum256([]byte(base))
	dir := filepath.Join(cfg.CacheDir, "url-"+hex.EncodeToString(sum[:8]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("accessor: create cache directory: %w", err)
	}

	u := &URL{
		base:    base,
		dir:     dir,
		headers: cfg.Headers,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.logger == nil {
		u.logger = observe.NopLogger()
	}
	u.logger = u.logger.With(observe.F("repository", base))
	if u.client == nil {
		u.client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if u.resolver == nil {
		u.resolver = secret.NewDefaultResolver()
	}
	if u.exec == nil {
		u.exec = newExecutor(cfg, parsed.Host, u.logger)
	}

	meta, err := openStore(filepath.Join(dir, "meta"))
	if err != nil {
		return nil, err
	}
	u.meta = meta
	return u, nil
}

func permanent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
}

func newExecutor(cfg URLConfig, host string, logger observe.Logger) *resilience.Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}

	opts := []resilience.ExecutorOption{
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:      host,
			IsFailure: func(err error) bool { return err != nil && !permanent(err) },
			OnStateChange: func(from, to resilience.State) {
				logger.Warn(context.Background(), "repository circuit breaker changed state",
					observe.F("from", from.String()), observe.F("to", to.String()))
			},
		})),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Jitter:       true,
			RetryIf:      func(err error) bool { return !permanent(err) },
			OnRetry: func(attempt int, err error, delay time.Duration) {
				logger.Warn(context.Background(), "retrying download",
					observe.F("attempt", attempt), observe.F("delay", delay.String()), observe.F("error", err))
			},
		})),
		resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       5 * time.Minute,
		})),
		resilience.WithTimeout(cfg.Timeout),
	}
	if cfg.RequestsPerSecond > 0 {
		opts = append(opts, resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:        cfg.RequestsPerSecond,
			Burst:       max(1, int(cfg.RequestsPerSecond)),
			WaitOnLimit: true,
			MaxWait:     cfg.Timeout,
		})))
	}
	return resilience.NewExecutor(opts...)
}

// Path returns the repository base URL.
func (u *URL) Path() string { return u.base }

// IsLocal always reports false.
func (u *URL) IsLocal() bool { return false }

// Dir returns the local cache directory of the repository.
func (u *URL) Dir() string { return u.dir }

// CheckedRemote reports whether the remote checksum was fetched since the
// last Reset.
func (u *URL) CheckedRemote() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.checkedRemote
}

// Reset forgets the resolved index path and the remote check.
func (u *URL) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.indexPath = ""
	u.checkedRemote = false
}

// Close closes the download metadata store.
func (u *URL) Close() error { return u.meta.close() }

// IndexPath returns the unpacked local index, downloading it when no copy
// exists in the cache directory.
func (u *URL) IndexPath(ctx context.Context) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.indexPath != "" && fileExists(u.indexPath) {
		return u.indexPath, nil
	}
	path, err := u.getIndex(ctx, refreshNone)
	if err != nil {
		return "", err
	}
	u.indexPath = path
	return path, nil
}

// Reload refreshes the local index. Without force it downloads only when
// the remote checksum differs from the recorded one.
func (u *URL) Reload(ctx context.Context, force bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	mode := refreshCompare
	if force {
		mode = refreshForce
	}
	path, err := u.getIndex(ctx, mode)
	if err != nil {
		return err
	}
	u.indexPath = path
	return nil
}

// getIndex must be called with u.mu held.
func (u *URL) getIndex(ctx context.Context, mode refresh) (string, error) {
	rec, ok, err := u.meta.get(indexKeyPrefix + u.base)
	if err != nil {
		return "", err
	}
	cached := ok && fileExists(rec.Path)
	download := !cached

	switch mode {
	case refreshForce:
		u.logger.Info(ctx, "forcing index download")
		if _, err := u.remoteSHA(ctx); err != nil {
			return "", err
		}
		u.checkedRemote = true
		download = true

	case refreshCompare:
		if !cached || rec.SHA256 == "" {
			download = true
			break
		}
		remote, err := u.remoteSHA(ctx)
		if err != nil {
			return "", err
		}
		u.checkedRemote = true
		download = remote != rec.SHA256
		u.logger.Info(ctx, "compared index checksums",
			observe.F("local_sha256", rec.SHA256),
			observe.F("remote_sha256", remote),
			observe.F("download", download),
		)
	}

	if !download {
		return rec.Path, nil
	}
	rec, err = u.downloadIndex(ctx)
	if err != nil {
		return "", err
	}
	return rec.Path, nil
}

func (u *URL) remoteSHA(ctx context.Context) (string, error) {
	var sha string
	err := u.fetch(ctx, index.FileName+index.ChecksumSuffix, func(r io.Reader) error {
		b, err := io.ReadAll(io.LimitReader(r, 4096))
		if err != nil {
			return err
		}
		fields := strings.Fields(string(b))
		if len(fields) == 0 {
			return fmt.Errorf("%w: empty checksum file", ErrChecksum)
		}
		sha = strings.ToLower(fields[0])
		return nil
	})
	if err != nil {
		u.logger.Error(ctx, "could not download index checksum", observe.F("error", err))
		return "", err
	}
	return sha, nil
}

func (u *URL) downloadIndex(ctx context.Context) (Download, error) {
	var data []byte
	err := u.fetch(ctx, index.GzipFileName, func(r io.Reader) error {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return err
		}
		defer zr.Close()
		data, err = io.ReadAll(zr)
		return err
	})
	if err != nil {
		u.logger.Error(ctx, "could not download index", observe.F("error", err))
		return Download{}, err
	}

	sum := sha256.Sum256(data)
	rec := Download{
		URL:        u.base + index.GzipFileName,
		Path:       filepath.Join(u.dir, index.FileName),
		SHA256:     hex.EncodeToString(sum[:]),
		Size:       int64(len(data)),
		Downloaded: time.Now().UTC(),
	}
	if err := atomic.WriteFile(rec.Path, bytes.NewReader(data)); err != nil {
		return Download{}, fmt.Errorf("accessor: write index: %w", err)
	}
	if err := u.meta.put(indexKeyPrefix+u.base, rec); err != nil {
		return Download{}, err
	}
	u.logger.Info(ctx, "index downloaded", observe.F("sha256", rec.SHA256), observe.F("size", rec.Size))
	return rec, nil
}

// MatrixPath returns the local copy of the named matrix, downloading it
// once.
func (u *URL) MatrixPath(ctx context.Context, name string) (string, error) {
	local, err := cleanName(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, name)
	}
	target := filepath.Join(u.dir, "matrices", local)
	if u.cachedMatrix(name, target) {
		return target, nil
	}

	_, err, _ = u.group.Do(name, func() (any, error) {
		if u.cachedMatrix(name, target) {
			return nil, nil
		}
		return nil, u.downloadMatrix(ctx, name, target)
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

func (u *URL) cachedMatrix(name, target string) bool {
	rec, ok, err := u.meta.get(matrixKeyPrefix + name)
	if err != nil || !ok {
		return false
	}
	if fi, err := os.Stat(target); err == nil && fi.Size() == rec.Size {
		return true
	}
	u.logger.Warn(context.Background(), "cached matrix is missing or truncated", observe.F("matrix", name))
	_ = u.meta.delete(matrixKeyPrefix + name)
	return false
}

func (u *URL) downloadMatrix(ctx context.Context, name, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("accessor: create matrix directory: %w", err)
	}

	var rec Download
	err := u.fetch(ctx, name, func(r io.Reader) error {
		h := sha256.New()
		cr := &countingReader{r: io.TeeReader(r, h)}
		if err := atomic.WriteFile(target, cr); err != nil {
			return err
		}
		rec = Download{
			URL:        u.base + name,
			Path:       target,
			SHA256:     hex.EncodeToString(h.Sum(nil)),
			Size:       cr.n,
			Downloaded: time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		u.logger.Error(ctx, "could not download matrix", observe.F("matrix", name), observe.F("error", err))
		return err
	}
	if err := u.meta.put(matrixKeyPrefix+name, rec); err != nil {
		return err
	}
	u.logger.Info(ctx, "matrix downloaded", observe.F("matrix", name), observe.F("size", rec.Size))
	return nil
}

// Downloads lists the matrices fetched into the cache directory.
func (u *URL) Downloads() ([]Download, error) {
	return u.meta.list(matrixKeyPrefix)
}

// fetch GETs name relative to the repository root and passes the body to
// consume. consume runs once per attempt.
func (u *URL) fetch(ctx context.Context, name string, consume func(io.Reader) error) error {
	header, err := u.requestHeader(ctx)
	if err != nil {
		return err
	}
	target := u.base + name

	return u.exec.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		req.Header = header.Clone()

		resp, err := u.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			return fmt.Errorf("%w: %s", ErrNotFound, target)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return fmt.Errorf("%w: %s: %s", ErrStatus, target, resp.Status)
		}
		return consume(resp.Body)
	})
}

func (u *URL) requestHeader(ctx context.Context) (http.Header, error) {
	u.headerOnce.Do(func() {
		u.header, u.headerErr = u.resolver.ResolveHeaders(ctx, u.headers)
		if u.headerErr == nil && u.header.Get("User-Agent") == "" {
			u.header.Set("User-Agent", "regrid")
		}
	})
	return u.header, u.headerErr
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var _ Accessor = (*URL)(nil)
