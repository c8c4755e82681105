package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yevheniidehtiar/locust-love-django/internal/loadtest"
	"github.com/yevheniidehtiar/locust-love-django/internal/objectstore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		scenarioPath string
		baseURL      string
		rate         int
		duration     time.Duration
		workers      int
		resolve      int
		verbose      bool
		printJSON    bool
		store        objectstore.Config
	)
	cmd := &cobra.Command{
		Use:          "smells-loadtest",
		Short:        "Generate weighted traffic against the demo API and aggregate SQL profile headers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			zc := zap.NewProductionConfig()
			if verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := zc.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			sc := loadtest.DefaultScenario()
			if scenarioPath != "" {
				if sc, err = loadtest.LoadScenario(scenarioPath); err != nil {
					return err
				}
			}
			flags := cmd.Flags()
			if flags.Changed("base-url") {
				sc.BaseURL = baseURL
			}
			if flags.Changed("rate") {
				sc.Rate = rate
			}
			if flags.Changed("duration") {
				sc.Duration = duration
			}
			if flags.Changed("workers") {
				sc.Workers = workers
			}
			if flags.Changed("resolve") {
				sc.ResolveLimit = resolve
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			runner := &loadtest.Runner{Scenario: sc, Logger: logger}
			if store.Endpoint != "" {
				if runner.Store, err = objectstore.New(ctx, store); err != nil {
					return err
				}
			}
			summary, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			if printJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&scenarioPath, "scenario", "f", "", "YAML scenario file")
	f.StringVar(&baseURL, "base-url", "http://localhost:8000", "API base URL")
	f.IntVar(&rate, "rate", 10, "requests per second")
	f.DurationVar(&duration, "duration", 30*time.Second, "attack duration")
	f.IntVar(&workers, "workers", 10, "initial attack workers")
	f.IntVar(&resolve, "resolve", 0, "look up this many finding UUIDs through /api/profiles")
	f.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	f.BoolVar(&printJSON, "json", false, "print the final summary as JSON")
	f.StringVar(&store.Endpoint, "minio-endpoint", os.Getenv("MINIO_ENDPOINT"), "upload the summary to this MinIO/S3 endpoint")
	f.StringVar(&store.AccessKey, "minio-access-key", os.Getenv("MINIO_ACCESS_KEY"), "object store access key")
	f.StringVar(&store.SecretKey, "minio-secret-key", os.Getenv("MINIO_SECRET_KEY"), "object store secret key")
	f.StringVar(&store.Bucket, "minio-bucket", envOr("MINIO_BUCKET", "loadtest-reports"), "object store bucket")
	f.StringVar(&store.Prefix, "minio-prefix", os.Getenv("MINIO_PREFIX"), "key prefix inside the bucket")
	f.BoolVar(&store.UseSSL, "minio-ssl", false, "use TLS for the object store")
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
