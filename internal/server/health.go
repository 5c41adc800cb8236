package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// Pinger is a dependency that can report whether it is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober checks that the hotel backend answers.
type Prober interface {
	Probe(ctx context.Context) error
}

// HealthChecker reports storage, backend and cache status as JSON.
// The response cache is optional and never fails the overall status.
type HealthChecker struct {
	storage Pinger
	backend Prober
	cache   Pinger
	log     *slog.Logger
}

func NewHealthChecker(log *slog.Logger, storage Pinger, backend Prober, cache Pinger) *HealthChecker {
	return &HealthChecker{
		storage: storage,
		backend: backend,
		cache:   cache,
		log:     log,
	}
}

func (h *HealthChecker) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	h.log.DebugContext(req.Context(), "Performing health checks...")

	var err error
	status := make(map[string]string)
	overallStatus := http.StatusOK

	if err = h.storage.Ping(req.Context()); err != nil {
		status["storage"] = "unavailable"
		overallStatus = http.StatusServiceUnavailable
		h.log.WarnContext(req.Context(), "Health check failed: storage ping", "error", err)
	} else {
		status["storage"] = "ok"
	}

	if err = h.backend.Probe(req.Context()); err != nil {
		status["backend"] = "unreachable"
		overallStatus = http.StatusServiceUnavailable
		h.log.WarnContext(req.Context(), "Health check failed: backend unreachable", "error", err)
	} else {
		status["backend"] = "ok"
	}

	if h.cache != nil {
		if err = h.cache.Ping(req.Context()); err != nil {
			status["cache"] = "unavailable"
			h.log.WarnContext(req.Context(), "Health check degraded: response cache", "error", err)
		} else {
			status["cache"] = "ok"
		}
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(overallStatus)
	if err = json.NewEncoder(writer).Encode(status); err != nil {
		h.log.ErrorContext(req.Context(), "Failed to write health check response", "error", err)
	}

	h.log.DebugContext(req.Context(), "Health checks completed", "status", overallStatus)
}
