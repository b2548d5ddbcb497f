package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jonwraymond/regrid/auth"
	"github.com/jonwraymond/regrid/health"
	"github.com/jonwraymond/regrid/observe"
	"github.com/jonwraymond/regrid/regrid"
	"github.com/jonwraymond/regrid/resilience"
)

// Config configures a Server.
type Config struct {
	// Addr is the listen address.
	// Default: ":8080"
	Addr string

	// RateLimit bounds regrid calls per second across all clients. Zero
	// disables the limit.
	RateLimit float64

	// ClientRequests bounds the /v1 requests of one client IP per
	// ClientWindow. Zero disables the limit.
	ClientRequests int

	// ClientWindow is the per-client rate limit window.
	// Default: 1 minute
	ClientWindow time.Duration

	// MaxBodyBytes bounds request bodies.
	// Default: 64 MiB
	MaxBodyBytes int64

	// ShutdownTimeout bounds the graceful shutdown in ListenAndServe.
	// Default: 15 seconds
	ShutdownTimeout time.Duration

	// Gatherer is served on /metrics.
	// Default: prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer

	// Admin guards cache clearing, index reloads and setting changes.
	// Nil leaves them open.
	Admin auth.Authenticator

	// Logger receives request logs.
	Logger observe.Logger

	// Telemetry supplies the providers of the HTTP instrumentation. Nil
	// uses the otel globals.
	Telemetry observe.Observer
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ClientWindow <= 0 {
		c.ClientWindow = time.Minute
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 64 << 20
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
	if c.Gatherer == nil {
		c.Gatherer = prometheus.DefaultGatherer
	}
	if c.Logger == nil {
		c.Logger = observe.NopLogger()
	}
}

// Server serves a regrid.Service.
type Server struct {
	config  Config
	svc     *regrid.Service
	health  *health.Aggregator
	limiter *resilience.RateLimiter
	handler http.Handler
}

// New creates a Server for svc.
func New(svc *regrid.Service, config Config) *Server {
	config.applyDefaults()

	agg := health.NewAggregator()
	agg.Register(health.NewIndexChecker(svc.DB))
	agg.Register(health.NewCacheChecker(svc.DB.Cache(), health.CacheCheckerConfig{}))

	s := &Server{config: config, svc: svc, health: agg}
	if config.RateLimit > 0 {
		s.limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: max(int(config.RateLimit), 1),
		})
	}
	var otelOpts []otelhttp.Option
	if t := config.Telemetry; t != nil {
		otelOpts = append(otelOpts,
			otelhttp.WithTracerProvider(t.TracerProvider()),
			otelhttp.WithMeterProvider(t.MeterProvider()),
		)
	}
	s.handler = otelhttp.NewHandler(s.routes(), "regridd", otelOpts...)
	return s
}

// Health returns the aggregator behind the probe endpoints.
func (s *Server) Health() *health.Aggregator { return s.health }

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.config.Logger))

	health.Mount(r, s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		if s.config.ClientRequests > 0 {
			r.Use(httprate.Limit(s.config.ClientRequests, s.config.ClientWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, resilience.ErrRateLimitExceeded)
				}),
			))
		}
		r.Post("/regrid", s.handleRegrid)
		r.Get("/cache", s.handleCacheInfo)
		r.Get("/index", s.handleIndex)
		r.Get("/downloads", s.handleDownloads)

		r.Group(func(r chi.Router) {
			if s.config.Admin != nil {
				r.Use(auth.RequireRole(s.config.Admin, auth.RoleAdmin, func(w http.ResponseWriter, r *http.Request, err error) {
					s.config.Logger.Warn(r.Context(), "admin request rejected",
						observe.F("path", r.URL.Path), observe.F("error", err))
					writeJSON(w, auth.StatusCode(err), map[string]string{"error": err.Error()})
				}))
			}
			r.Delete("/cache", s.handleCacheClear)
			r.Post("/index/reload", s.handleReload)
			r.Patch("/config", s.handleConfig)
		})
	})
	return r
}

// ListenAndServe serves on config.Addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.config.Logger.Info(ctx, "server listening", observe.F("addr", s.config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.config.Logger.Info(ctx, "server shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
