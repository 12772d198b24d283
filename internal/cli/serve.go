package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/flow"
	flowhttp "github.com/aretw0/flow/pkg/adapters/http"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
const ShutdownTimeout = 5 * time.Second

// NewRouter mounts the engine behind the HTTP stage adapter, plus
// /healthz and /metrics. Health fails only while no snapshot is loaded.
func NewRouter(engine *flow.Engine, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if engine.Snapshot() == nil {
			msg := "no assembly loaded"
			if err := engine.Err(); err != nil {
				msg = err.Error()
			}
			http.Error(w, msg, http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Mount("/", flowhttp.NewHandler(engine, flowhttp.WithLogger(logger)))

	return r
}

// Serve runs the HTTP server and the assembly watcher until ctx ends.
func Serve(ctx context.Context, addr string, handler http.Handler, engine *flow.Engine, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := engine.Watch(gctx)
		switch {
		case errors.Is(err, flow.ErrNotWatchable):
			logger.Info("assembly source does not support hot reload")
			return nil
		case errors.Is(err, context.Canceled):
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "error", err)
			return srv.Close()
		}
		logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}
