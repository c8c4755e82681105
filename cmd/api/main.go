package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yevheniidehtiar/locust-love-django/internal/api"
	"github.com/yevheniidehtiar/locust-love-django/internal/cache"
	"github.com/yevheniidehtiar/locust-love-django/internal/config"
	"github.com/yevheniidehtiar/locust-love-django/internal/profiling"
	"github.com/yevheniidehtiar/locust-love-django/internal/reports"
	"github.com/yevheniidehtiar/locust-love-django/internal/seed"
	"github.com/yevheniidehtiar/locust-love-django/internal/server"
	"github.com/yevheniidehtiar/locust-love-django/internal/settings"
	"github.com/yevheniidehtiar/locust-love-django/internal/smells"
	"github.com/yevheniidehtiar/locust-love-django/internal/store"
)

type options struct {
	addr     string
	verbose  bool
	seed     bool
	fixtures string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	root := &cobra.Command{
		Use:          "smells-api",
		Short:        "Serve the query-smell demo API with SQL profiling headers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if opts.addr != "" {
				cfg.HTTPAddr = opts.addr
			}
			cfg.SeedOnStart = cfg.SeedOnStart || opts.seed
			logger, err := newLogger(cfg.LogLevel, opts.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, opts, logger)
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	root.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	root.Flags().BoolVar(&opts.seed, "seed", false, "generate demo data before serving")
	root.PersistentFlags().StringVar(&opts.fixtures, "fixtures", "", "directory of YAML fixtures to load")
	root.AddCommand(newSeedCmd(&opts))
	return root
}

func newSeedCmd(opts *options) *cobra.Command {
	var truncate bool
	var rngSeed int64
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with demo data and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			logger, err := newLogger(cfg.LogLevel, opts.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			if truncate {
				if err := st.Truncate(cmd.Context()); err != nil {
					return err
				}
			}
			return populate(cmd.Context(), st, opts.fixtures, rngSeed, logger)
		},
	}
	cmd.Flags().BoolVar(&truncate, "truncate", false, "delete existing rows first")
	cmd.Flags().Int64Var(&rngSeed, "rand-seed", 42, "seed for generated values")
	return cmd
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	dialect, err := store.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	dsn := cfg.SQLitePath
	if dialect == store.Postgres {
		dsn = cfg.PostgresDSN
	}
	st, err := store.Open(dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := st.Ping(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	if !cfg.SkipMigrate {
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
	}
	return st, nil
}

func populate(ctx context.Context, st *store.Store, fixtures string, rngSeed int64, logger *zap.Logger) error {
	sum, err := seed.Generate(ctx, st, seed.Options{Counts: seed.DefaultCounts, Seed: rngSeed})
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	logger.Info("demo data generated", zap.Any("summary", sum))
	if fixtures == "" {
		return nil
	}
	res, err := seed.LoadFixturesDir(ctx, st, fixtures)
	if err != nil {
		return fmt.Errorf("fixtures: %w", err)
	}
	logger.Info("fixtures loaded",
		zap.Int("files", res.Files),
		zap.Int("loaded", res.Loaded),
		zap.Int("skipped", res.Skipped),
		zap.Strings("errors", res.Errors))
	return nil
}

func serve(ctx context.Context, cfg config.Config, opts options, logger *zap.Logger) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	if cfg.SeedOnStart {
		n, err := st.CountAuthors(ctx)
		if err != nil {
			return err
		}
		// an already populated database is left alone
		if n == 0 {
			if err := populate(ctx, st, opts.fixtures, 0, logger); err != nil {
				return err
			}
		}
	}

	c, err := cache.FromURL(cfg.RedisURL, cfg.CachePrefix, logger.Named("cache"))
	if err != nil {
		return err
	}
	backend, err := reports.FromConfig(cfg)
	if err != nil {
		return err
	}
	if closer, ok := backend.(io.Closer); ok {
		defer closer.Close()
	}
	hub := reports.NewHub(backend)
	settingsStore := settings.NewStore(cfg.SettingsPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var profiler *profiling.Middleware
	if cfg.ProfileEnabled {
		profiler = profiling.New(profiling.Options{
			Prefix:    cfg.ProfileHeaderPrefix,
			Settings:  settingsStore,
			Sink:      hub,
			Logger:    logger.Named("profiling"),
			Metrics:   profiling.NewMetrics(reg),
			SkipPaths: server.ProfilerSkipPaths,
		})
	}

	h := &api.Handler{
		Store:    st,
		Smells:   smells.New(st, c, cfg.CacheTTL),
		Reports:  hub,
		Hub:      hub,
		Settings: settingsStore,
		Logger:   logger.Named("api"),
	}
	logger.Info("starting api",
		zap.String("db", string(st.Dialect())),
		zap.String("reports", cfg.ReportBackend),
		zap.Bool("profiling", cfg.ProfileEnabled))
	return server.New(cfg, server.Handler(cfg, h, profiler, reg), logger).Run(ctx)
}
