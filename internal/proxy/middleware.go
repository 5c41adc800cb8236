package proxy

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/hotelgate/internal/session"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
)

type contextKey string

const (
	sessionKey   contextKey = "session"
	requestIDKey contextKey = "request_id"
)

func sessionFrom(ctx context.Context) session.Session {
	sess, _ := ctx.Value(sessionKey).(session.Session)
	return sess
}

// RequestID returns the id assigned to the request, empty outside the proxy.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowed := h.allowedOrigin(r.Header.Get("Origin")); allowed != "" {
			header := w.Header()
			header.Set("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				header.Add("Vary", "Origin")
			}
			header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			header.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept-Language, "+requestIDHeader)
			header.Set("Access-Control-Expose-Headers", requestIDHeader+", Content-Disposition")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) allowedOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return origin
		}
	}
	return ""
}

// requestID keeps a caller supplied X-Request-ID or generates one.
func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// observe logs every request and records the proxy metrics under the matched route pattern.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		h.metrics.ProxyRequests.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
		h.metrics.ProxyDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		h.log.DebugContext(r.Context(), "Request served",
			"request_id", RequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration", elapsed,
		)
	})
}

func (h *Handler) requireSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.sessions.Get(r.Context(), bearerToken(r.Header.Get("Authorization")))
		switch {
		case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSchemaVersion):
			h.fail(w, r, http.StatusUnauthorized, "auth.required", nil)
			return
		case err != nil:
			h.log.ErrorContext(r.Context(), "Failed to load session", "request_id", RequestID(r.Context()), "error", err)
			h.fail(w, r, http.StatusInternalServerError, "error.internal", nil)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}

func (h *Handler) requireRole(roles ...string) func(next http.HandlerFunc) http.Handler {
	return func(next http.HandlerFunc) http.Handler {
		return h.requireSession(func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFrom(r.Context())
			if !sess.HasRole(roles...) {
				h.log.InfoContext(r.Context(), "Access denied", "username", sess.Username, "role", sess.Role)
				h.fail(w, r, http.StatusForbidden, "auth.forbidden", nil)
				return
			}
			next(w, r)
		})
	}
}
