package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wikibridge/internal/api"
	"wikibridge/pkg/probe"
)

func (a *app) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := probe.AnalyzeResults(probe.Run(ctx, a.probes(ctx), 0), nil); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	go a.scheduler.Start(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(a.tracker, collectors.NewGoCollector())

	srv := api.NewServer(a.cfg.Server.Address,
		api.NewStatsHandler(a.tracker, a.retrackQ, a.indexQ),
		api.NewEntityHandler(a.store, a.registry, a.types),
		api.NewIndexHandler(a.store),
		api.NewLogHandler(a.cfg.Log.Server.Path),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)
	srv.Handler = loggingMiddleware(slog.Default(), srv.Handler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	return runServerLifecycle(ctx, srv, quit)
}

// probes checks every configured entity type. Remote outages do not block startup.
func (a *app) probes(ctx context.Context) []probe.Probe {
	types, err := a.store.ListEntityTypes(ctx)
	if err != nil {
		return []probe.Probe{{
			Name:     "Entity types",
			Critical: true,
			Check:    func(context.Context) error { return err },
		}}
	}
	var probes []probe.Probe
	for _, et := range types {
		c, err := a.registry.Client(ctx, et.ID)
		if err != nil {
			slog.Warn("Entity type has no usable client", "entity_type", et.ID, "error", err)
			continue
		}
		probes = append(probes, probe.ClientProbe(et.ID, c, false))
	}
	return probes
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loggingMiddleware logs inbound API calls to the server log. The request
// log only holds outbound calls made by the request client.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
