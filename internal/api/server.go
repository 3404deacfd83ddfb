package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"wikibridge/pkg/version"
)

// NewServer creates and configures the HTTP server.
// metrics and logs may be nil.
func NewServer(addr string, stats *StatsHandler, entities *EntityHandler, indexes *IndexHandler, logs *LogHandler, metrics http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewRouter(stats, entities, indexes, logs, metrics),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewRouter wires every endpoint.
func NewRouter(stats *StatsHandler, entities *EntityHandler, indexes *IndexHandler, logs *LogHandler, metrics http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Get("/api/version", handleVersion)
	r.Get("/api/stats", stats.ServeHTTP)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	if logs != nil {
		r.Get("/api/log/latest", logs.HandleLatest)
	}

	r.Route("/api/entity-types", func(r chi.Router) {
		r.Get("/", entities.HandleList)
		r.Route("/{type}", func(r chi.Router) {
			r.Get("/items", entities.HandleQuery)
			r.Get("/items/{id}", entities.HandleLoad)
			r.Get("/count", entities.HandleCount)
			r.Get("/storage", entities.HandleGetStorage)
			r.Put("/storage", entities.HandlePutStorage)
		})
	})

	r.Get("/api/indexes", indexes.HandleList)
	r.Get("/api/indexes/{id}/tracker", indexes.HandleTracker)

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
