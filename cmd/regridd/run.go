package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	flag "github.com/spf13/pflag"

	"github.com/jonwraymond/regrid/config"
	"github.com/jonwraymond/regrid/index"
	"github.com/jonwraymond/regrid/observe"
	"github.com/jonwraymond/regrid/regrid"
	"github.com/jonwraymond/regrid/server"
)

// version is set at build time.
var version = "dev"

const usage = `usage: regridd [serve] [flags]
       regridd subset --filters FILE --out DIR [flags]
`

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := "serve"
	if len(args) > 0 && (args[0] == "serve" || args[0] == "subset") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "subset":
		err = runSubset(ctx, args, stdout, stderr)
	default:
		err = runServe(ctx, args, stderr)
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "regridd %s: %v\n", cmd, err)
		return 1
	}
	return 0
}

// commonFlags are the settings shared by every command. Flags left unset
// keep the value from the configuration file and environment.
type commonFlags struct {
	configFile   string
	matrixSource string
	logLevel     string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVarP(&c.configFile, "config", "c", "", "configuration file (default $"+config.FileEnvVar+" or "+config.DefaultFile()+")")
	fs.StringVar(&c.matrixSource, "matrix-source", "", "matrix repository URL or directory")
	fs.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")
}

// store loads the layered configuration and applies the flags set on the
// command line. extra maps further flag names to configuration keys.
func (c *commonFlags) store(fs *flag.FlagSet, extra map[string]string) (*config.Store, error) {
	store, err := config.LoadStore(c.configFile)
	if err != nil {
		return nil, err
	}
	keys := map[string]string{
		"matrix-source": config.KeyMatrixSource,
		"log-level":     config.KeyLogLevel,
	}
	for name, key := range extra {
		keys[name] = key
	}
	overrides := make(map[string]any)
	fs.Visit(func(f *flag.Flag) {
		if key, ok := keys[f.Name]; ok {
			overrides[key] = f.Value.String()
		}
	})
	if len(overrides) > 0 {
		if err := store.SetMany(overrides); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func newObserver(ctx context.Context, cfg config.Config, out io.Writer) (observe.Observer, error) {
	return observe.NewObserver(ctx, observe.Config{
		ServiceName: "regridd",
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   cfg.TracingExporter != "none",
			Exporter:  cfg.TracingExporter,
			SamplePct: 1,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  cfg.MetricsExporter != "none",
			Exporter: cfg.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  out,
		},
	})
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var common commonFlags
	common.register(fs)
	fs.String("addr", "", "listen address")
	fs.String("metrics-exporter", "", "metrics exporter: otlp, prometheus, stdout or none")
	clientLimit := fs.Int("client-limit", 0, "requests per minute allowed to one client IP, 0 for no limit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := common.store(fs, map[string]string{
		"addr":             config.KeyServerAddress,
		"metrics-exporter": config.KeyMetricsExporter,
	})
	if err != nil {
		return err
	}
	cfg := store.Get()

	obs, err := newObserver(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()
	logger := obs.Logger()

	svc, err := regrid.NewService(store, regrid.WithObserver(obs))
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn(context.Background(), "close service", observe.F("error", err))
		}
	}()

	logger.Info(ctx, "regridd starting",
		observe.F("version", version),
		observe.F("matrix_source", cfg.MatrixSource),
		observe.F("cache_policy", cfg.CachePolicy),
		observe.F("cache_size", cfg.CacheSize),
	)
	admin := cfg.AdminAuthenticator()
	if admin == nil {
		logger.Warn(ctx, "admin endpoints are not protected", observe.F("hint", "set "+config.KeyAdminAPIKeys+" or "+config.KeyAdminJWTSecret))
	}
	srv := server.New(svc, server.Config{
		Addr:           cfg.ServerAddress,
		RateLimit:      cfg.RateLimit,
		ClientRequests: *clientLimit,
		Admin:          admin,
		Logger:         logger,
		Telemetry:      obs,
	})
	return srv.ListenAndServe(ctx)
}

func runSubset(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("subset", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var common commonFlags
	common.register(fs)
	filtersFile := fs.String("filters", "", "JSON file holding a list of {input, output, method} filters")
	outDir := fs.String("out", "", "target repository directory")
	failOnMissing := fs.Bool("fail-on-missing", false, "fail when a filter matches no matrix")
	existOK := fs.Bool("exist-ok", false, "overwrite matrix files already in the target")
	dryRun := fs.Bool("dry-run", false, "print the files that would be written")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *filtersFile == "" || *outDir == "" {
		fs.Usage()
		return errors.New("--filters and --out are required")
	}

	filters, err := readFilters(*filtersFile)
	if err != nil {
		return err
	}
	store, err := common.store(fs, nil)
	if err != nil {
		return err
	}
	cfg := store.Get()
	cfg.MetricsExporter, cfg.TracingExporter = "none", "none"
	obs, err := newObserver(ctx, cfg, stderr)
	if err != nil {
		return err
	}

	svc, err := regrid.NewService(store, regrid.WithObserver(obs))
	if err != nil {
		return err
	}
	defer svc.Close()

	ix, err := svc.DB.Index(ctx)
	if err != nil {
		return err
	}
	sub, missing, err := ix.Subset(filters, *failOnMissing)
	if err != nil {
		return err
	}

	for _, e := range sub.Entries() {
		path, err := svc.DB.CopyMatrixFile(ctx, e, *outDir, *existOK, *dryRun)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, path)
	}
	target := filepath.Join(*outDir, index.FileName)
	if !*dryRun {
		if err := sub.WriteFile(target); err != nil {
			return err
		}
	}
	fmt.Fprintln(stdout, target)
	if len(missing) > 0 {
		fmt.Fprintf(stderr, "%d of %d filters matched no matrix\n", len(missing), len(filters))
	}
	return nil
}

func readFilters(path string) ([]index.Filter, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var filters []index.Filter
	if err := json.Unmarshal(b, &filters); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return filters, nil
}
