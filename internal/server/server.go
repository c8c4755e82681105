package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yevheniidehtiar/locust-love-django/internal/api"
	"github.com/yevheniidehtiar/locust-love-django/internal/config"
	"github.com/yevheniidehtiar/locust-love-django/internal/profiling"
)

const shutdownTimeout = 10 * time.Second

// ProfilerSkipPaths are never profiled; they serve the profiler itself.
var ProfilerSkipPaths = []string{"/metrics", "/api/profiles", "/api/settings"}

// Handler assembles the routes and middleware: CORS outermost, then gzip,
// then the SQL profiler closest to the handlers.
func Handler(cfg config.Config, h *api.Handler, profiler *profiling.Middleware, reg *prometheus.Registry) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})).Methods(http.MethodGet)
	h.Routes(r)

	var next http.Handler = r
	// per-finding headers are appended to this list by the profiler on each
	// response
	var exposed []string
	if profiler != nil {
		next = profiler.Handler(next)
		exposed = []string{profiler.Prefix() + "-Query-Count", profiler.Prefix() + "-Query-Time-Ms"}
	}
	return withCORS(cfg, exposed, withGzip(next))
}

// Service is a thin wrapper around the HTTP server.
type Service struct {
	srv    *http.Server
	logger *zap.Logger
}

// New constructs the service listening on cfg.HTTPAddr.
func New(cfg config.Config, handler http.Handler, logger *zap.Logger) *Service {
	return &Service{
		srv: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Service) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
