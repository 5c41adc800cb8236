package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/UnknownOlympus/hotelgate/internal/envelope"
	"github.com/UnknownOlympus/hotelgate/internal/listing"
	"github.com/UnknownOlympus/hotelgate/internal/metrics"
	"github.com/UnknownOlympus/hotelgate/internal/models"
	"github.com/UnknownOlympus/hotelgate/internal/upstream"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultInterval is the time between two polls.
	DefaultInterval = 30 * time.Second
	watchPageSize   = 50
)

// ErrWatchFailed is returned by Poll when at least one watched list could not be fetched.
var ErrWatchFailed = errors.New("notification watch failed")

// Backend is the part of the upstream client the poller needs.
type Backend interface {
	Do(ctx context.Context, req upstream.Request) envelope.Envelope
}

// Sink receives high priority notifications.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// Watch describes one backend list the poller diffs against the last check.
type Watch struct {
	Type  Type
	Path  string
	Match func(rec listing.Record, since, now time.Time) bool
	Build func(rec listing.Record, now time.Time) Notification
}

// Poller periodically turns new backend records into notifications.
type Poller struct {
	log      *slog.Logger
	metrics  *metrics.Metrics
	backend  Backend
	store    *Store
	watches  []Watch
	sinks    []Sink
	interval time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewPoller builds a poller over the given watches, DefaultWatches when none are passed.
func NewPoller(
	log *slog.Logger,
	appMetrics *metrics.Metrics,
	backend Backend,
	store *Store,
	interval time.Duration,
	sinks []Sink,
	watches ...Watch,
) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if len(watches) == 0 {
		watches = DefaultWatches()
	}
	return &Poller{
		log:      log,
		metrics:  appMetrics,
		backend:  backend,
		store:    store,
		watches:  watches,
		sinks:    sinks,
		interval: interval,
		now:      time.Now,
	}
}

// Run polls on every tick until ctx is canceled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.InfoContext(ctx, "Notification poller started", "interval", p.interval)
	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.log.WarnContext(ctx, "Notification poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			p.log.InfoContext(ctx, "Notification poller stopped")
			return
		case <-ticker.C:
		}
	}
}

// Poll runs one cycle and returns the notifications it added. The first cycle only records the
// baseline time. The last check only advances when every watch succeeded, so a failed list is
// diffed again on the next cycle.
func (p *Poller) Poll(ctx context.Context) ([]Notification, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now().UTC()
	since, ok, err := p.store.LastCheck(ctx)
	if err != nil {
		p.metrics.PollerRuns.WithLabelValues("failure").Inc()
		return nil, err
	}
	if !ok {
		p.metrics.PollerRuns.WithLabelValues("baseline").Inc()
		return nil, p.store.SetLastCheck(ctx, now)
	}

	results := make([][]Notification, len(p.watches))
	failures := make([]error, len(p.watches))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, watch := range p.watches {
		group.Go(func() error {
			found, watchErr := p.collect(groupCtx, watch, since, now)
			results[i] = found
			failures[i] = watchErr
			return nil
		})
	}
	_ = group.Wait()

	var created []Notification
	for _, found := range results {
		created = append(created, found...)
	}

	added, err := p.store.Add(ctx, created...)
	if err != nil {
		p.metrics.PollerRuns.WithLabelValues("failure").Inc()
		return nil, err
	}
	for _, n := range added {
		p.metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
		if n.Priority == PriorityHigh {
			p.dispatch(ctx, n)
		}
	}

	if err = errors.Join(failures...); err != nil {
		p.metrics.PollerRuns.WithLabelValues("failure").Inc()
		return added, fmt.Errorf("%w: %w", ErrWatchFailed, err)
	}
	if err = p.store.SetLastCheck(ctx, now); err != nil {
		p.metrics.PollerRuns.WithLabelValues("failure").Inc()
		return added, err
	}
	p.metrics.PollerRuns.WithLabelValues("success").Inc()
	return added, nil
}

func (p *Poller) collect(ctx context.Context, watch Watch, since, now time.Time) ([]Notification, error) {
	env := p.backend.Do(ctx, upstream.Request{
		Path: watch.Path,
		Query: url.Values{
			"PageNumber": {"1"},
			"PageSize":   {strconv.Itoa(watchPageSize)},
		},
	})
	if err := env.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", watch.Path, err)
	}
	page, err := listing.ParsePage(env.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", watch.Path, err)
	}

	var found []Notification
	for _, rec := range page.Items {
		if watch.Match(rec, since, now) {
			found = append(found, watch.Build(rec, now))
		}
	}
	return found, nil
}

func (p *Poller) dispatch(ctx context.Context, n Notification) {
	for _, sink := range p.sinks {
		if err := sink.Notify(ctx, n); err != nil {
			p.log.WarnContext(ctx, "Failed to push notification", "id", n.ID, "error", err)
		}
	}
}

// DefaultWatches returns the new booking, new customer and check-in due today watches.
func DefaultWatches() []Watch {
	return []Watch{NewBookingsWatch(), NewCustomersWatch(), CheckInsDueWatch()}
}

// NewBookingsWatch reports bookings created since the last check.
func NewBookingsWatch() Watch {
	return Watch{
		Type:  TypeBooking,
		Path:  "Booking/GetAll",
		Match: createdBetween,
		Build: func(rec listing.Record, now time.Time) Notification {
			return Notification{
				ID:        string(TypeBooking) + ":" + rec.String("id"),
				Type:      TypeBooking,
				Title:     "New booking",
				Message:   fmt.Sprintf("%s booked room %s", orUnknown(rec.String("customerName")), orUnknown(rec.String("roomNumber"))),
				Timestamp: createdAt(rec, now),
				Priority:  PriorityMedium,
				Data:      map[string]any{"bookingId": rec.String("id")},
			}
		},
	}
}

// NewCustomersWatch reports customers registered since the last check.
func NewCustomersWatch() Watch {
	return Watch{
		Type:  TypeCustomer,
		Path:  "Customer/GetAll",
		Match: createdBetween,
		Build: func(rec listing.Record, now time.Time) Notification {
			return Notification{
				ID:        string(TypeCustomer) + ":" + rec.String("id"),
				Type:      TypeCustomer,
				Title:     "New customer",
				Message:   orUnknown(rec.String("fullName")) + " registered",
				Timestamp: createdAt(rec, now),
				Priority:  PriorityLow,
				Data:      map[string]any{"customerId": rec.String("id")},
			}
		},
	}
}

// CheckInsDueWatch reports confirmed bookings whose check-in date is today.
// One notification per booking and day.
func CheckInsDueWatch() Watch {
	return Watch{
		Type: TypeCheckIn,
		Path: "Booking/GetAll",
		Match: func(rec listing.Record, _, now time.Time) bool {
			status, ok := rec.Int("status")
			if !ok || models.BookingStatus(status) != models.BookingConfirmed {
				return false
			}
			checkIn, ok := rec.Time("checkInDate")
			return ok && sameDay(checkIn, now)
		},
		Build: func(rec listing.Record, now time.Time) Notification {
			return Notification{
				ID:        string(TypeCheckIn) + ":" + rec.String("id") + ":" + now.Format(time.DateOnly),
				Type:      TypeCheckIn,
				Title:     "Check-in due today",
				Message:   fmt.Sprintf("%s is due to check in to room %s", orUnknown(rec.String("customerName")), orUnknown(rec.String("roomNumber"))),
				Timestamp: now,
				Priority:  PriorityHigh,
				Data:      map[string]any{"bookingId": rec.String("id")},
			}
		},
	}
}

func createdBetween(rec listing.Record, since, now time.Time) bool {
	created, ok := rec.Time("createdAt")
	return ok && created.After(since) && !created.After(now)
}

func createdAt(rec listing.Record, fallback time.Time) time.Time {
	if created, ok := rec.Time("createdAt"); ok {
		return created
	}
	return fallback
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
