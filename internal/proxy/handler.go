// Package proxy is the local HTTP surface of the gateway. It forwards resource calls to the
// hotel backend and serves sessions, notifications, paginated views and exports.
package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/UnknownOlympus/hotelgate/internal/envelope"
	"github.com/UnknownOlympus/hotelgate/internal/hotel"
	"github.com/UnknownOlympus/hotelgate/internal/i18n"
	"github.com/UnknownOlympus/hotelgate/internal/listing"
	"github.com/UnknownOlympus/hotelgate/internal/metrics"
	"github.com/UnknownOlympus/hotelgate/internal/notification"
	"github.com/UnknownOlympus/hotelgate/internal/session"
	"github.com/UnknownOlympus/hotelgate/internal/upstream"
)

// Roles allowed to open list screens and exports.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// Backend is the part of the upstream client the proxy forwards to.
type Backend interface {
	Do(ctx context.Context, req upstream.Request) envelope.Envelope
}

// ResponseCache keeps the last successful GET answers for offline mode.
type ResponseCache interface {
	Get(ctx context.Context, key string) (envelope.Envelope, bool)
	Set(ctx context.Context, key string, env envelope.Envelope)
}

// Options tunes the proxy surface.
type Options struct {
	AllowedOrigins []string       // AllowedOrigins may contain "*".
	OfflineMode    bool           // OfflineMode answers from cache or accepts mutations when the backend is down.
	Catalog        *hotel.Catalog // Catalog defaults to hotel.DefaultCatalog.
	PageSize       int
	RetryAttempts  int
	RetryBackoff   time.Duration
}

// Handler serves the /api routes.
type Handler struct {
	log           *slog.Logger
	metrics       *metrics.Metrics
	backend       Backend
	cache         ResponseCache
	sessions      *session.Repository
	notifications *notification.Store
	localizer     *i18n.Localizer
	catalog       *hotel.Catalog
	views         *listing.Manager
	opts          Options
}

// NewHandler wires the proxy. cache may be nil when no response cache is configured.
func NewHandler(
	log *slog.Logger,
	appMetrics *metrics.Metrics,
	backend Backend,
	cache ResponseCache,
	sessions *session.Repository,
	notifications *notification.Store,
	localizer *i18n.Localizer,
	opts Options,
) *Handler {
	if opts.Catalog == nil {
		opts.Catalog = hotel.DefaultCatalog()
	}
	h := &Handler{
		log:           log,
		metrics:       appMetrics,
		backend:       backend,
		cache:         cache,
		sessions:      sessions,
		notifications: notifications,
		localizer:     localizer,
		catalog:       opts.Catalog,
		opts:          opts,
	}
	h.views = listing.NewManager(h.newController)
	return h
}

// Routes returns the proxy mux wrapped in CORS, request id and observability middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.Handle("POST /api/auth/logout", h.requireSession(h.handleLogout))
	mux.Handle("GET /api/auth/me", h.requireSession(h.handleMe))

	mux.Handle("GET /api/notifications", h.requireSession(h.handleNotifications))
	mux.Handle("GET /api/notifications/unread-count", h.requireSession(h.handleUnreadCount))
	mux.Handle("POST /api/notifications/{id}/read", h.requireSession(h.handleMarkRead))
	mux.Handle("POST /api/notifications/read-all", h.requireSession(h.handleMarkAllRead))
	mux.Handle("DELETE /api/notifications", h.requireSession(h.handleClearNotifications))

	staff := h.requireRole(RoleAdmin, RoleManager, RoleStaff)
	mux.Handle("GET /api/views/{resource}", staff(h.handleView))
	mux.Handle("POST /api/views/{resource}/refresh", staff(h.handleRefresh))
	mux.Handle("GET /api/views/{resource}/items/{id}", staff(h.handleViewItem))
	mux.Handle("PUT /api/views/{resource}/items/{id}", staff(h.handleSaveItem))
	mux.Handle("DELETE /api/views/{resource}/items/{id}", staff(h.handleDeleteItem))
	mux.Handle("POST /api/views/{resource}/items/{id}/toggle", staff(h.handleToggleItem))
	mux.Handle("GET /api/export/bookings", staff(h.handleExportBookings))

	mux.HandleFunc("/api/{resource}/{action}", h.handleForward)

	return h.cors(h.requestID(h.observe(mux)))
}
