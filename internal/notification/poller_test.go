package notification_test

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/UnknownOlympus/hotelgate/internal/envelope"
	"github.com/UnknownOlympus/hotelgate/internal/metrics"
	"github.com/UnknownOlympus/hotelgate/internal/notification"
	"github.com/UnknownOlympus/hotelgate/internal/upstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu    sync.Mutex
	pages map[string]envelope.Envelope
	seen  []upstream.Request
}

func (b *fakeBackend) Do(_ context.Context, req upstream.Request) envelope.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seen = append(b.seen, req)
	if env, ok := b.pages[req.Path]; ok {
		return env
	}
	return envelope.Fail(http.StatusNotFound, "not found")
}

func (b *fakeBackend) set(path string, env envelope.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[path] = env
}

type recordingSink struct {
	mu   sync.Mutex
	sent []notification.Notification
}

func (s *recordingSink) Notify(_ context.Context, n notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func rfc(t time.Time) string { return t.Format(time.RFC3339) }

func TestPoller(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
	backend := &fakeBackend{pages: map[string]envelope.Envelope{
		"Booking/GetAll": envelope.Ok(map[string]any{
			"items": []map[string]any{
				{
					"id": 1, "customerName": "Nguyen Van An", "roomNumber": "204", "status": 2,
					"checkInDate": rfc(base.Add(6 * time.Hour)), "createdAt": rfc(base.Add(time.Minute)),
				},
				{
					"id": 2, "customerName": "Tran Binh", "status": 1,
					"checkInDate": "2026-11-02", "createdAt": rfc(base.Add(-time.Hour)),
				},
			},
			"totalItems": 2,
		}, http.StatusOK),
		"Customer/GetAll": envelope.Ok([]map[string]any{
			{"id": 9, "fullName": "Le Hoa", "createdAt": rfc(base.Add(2 * time.Minute))},
		}, http.StatusOK),
	}}
	sink := &recordingSink{}
	feed := notification.NewStore(openStore(t), 0)
	poller := notification.NewPoller(logger, appMetrics, backend, feed, time.Minute, []notification.Sink{sink})

	clock := base
	notification.SetNow(poller, func() time.Time { return clock })

	// first cycle only records the baseline
	added, err := poller.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, added)
	last, ok, err := feed.LastCheck(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, base.Equal(last))

	clock = base.Add(5 * time.Minute)
	added, err = poller.Poll(ctx)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, n := range added {
		ids[n.ID] = true
	}
	assert.Equal(t, map[string]bool{"booking:1": true, "customer:9": true, "checkin:1:2026-10-17": true}, ids)
	require.Len(t, sink.sent, 1)
	assert.Equal(t, "checkin:1:2026-10-17", sink.sent[0].ID)
	assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.NotificationsCreated.WithLabelValues("checkin")), 0)

	// nothing new on the next cycle
	clock = base.Add(10 * time.Minute)
	added, err = poller.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Len(t, sink.sent, 1)

	// a failing watch keeps the last check so its records are diffed again
	backend.set("Customer/GetAll", envelope.Fail(http.StatusServiceUnavailable, "down"))
	clock = base.Add(15 * time.Minute)
	_, err = poller.Poll(ctx)
	require.ErrorIs(t, err, notification.ErrWatchFailed)
	last, _, err = feed.LastCheck(ctx)
	require.NoError(t, err)
	assert.True(t, base.Add(10*time.Minute).Equal(last))

	count, err := feed.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.PollerRuns.WithLabelValues("failure")), 0)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, "50", backend.seen[0].Query.Get("PageSize"))
}

func TestPoller_SendsServiceToken(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	backend := &fakeBackend{pages: map[string]envelope.Envelope{}}
	feed := notification.NewStore(openStore(t), 0)
	require.NoError(t, feed.SetLastCheck(t.Context(), base))
	poller := notification.NewPoller(logger, metrics.NewMetrics(prometheus.NewRegistry()),
		upstream.Authorized{Backend: backend, Token: "service-token"}, feed, time.Minute, nil)

	_, err := poller.Poll(t.Context())
	require.ErrorIs(t, err, notification.ErrWatchFailed)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.NotEmpty(t, backend.seen)
	for _, req := range backend.seen {
		assert.Equal(t, "Bearer service-token", req.Header.Get("Authorization"), req.Path)
	}
}

func TestPoller_RunStopsWithContext(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	backend := &fakeBackend{pages: map[string]envelope.Envelope{}}
	feed := notification.NewStore(openStore(t), 0)
	poller := notification.NewPoller(logger, metrics.NewMetrics(prometheus.NewRegistry()), backend, feed,
		10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok, err := feed.LastCheck(t.Context())
		return err == nil && ok
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
