package listing_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/UnknownOlympus/hotelgate/internal/envelope"
	"github.com/UnknownOlympus/hotelgate/internal/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingSchema = listing.Schema{ //nolint:gochecknoglobals // shared test fixture
	IDField:      "id",
	SearchFields: []string{"customerName", "phone", "roomNumber"},
	StatusField:  "status",
	StartField:   "checkInDate",
	EndField:     "checkOutDate",
}

type call struct {
	page int
	size int
}

// fakeBackend serves a fixed number of bookings page by page and records every call.
type fakeBackend struct {
	mu    sync.Mutex
	total int
	calls []call
	fail  []envelope.Envelope
	clamp int
}

func (b *fakeBackend) LoadPage(_ context.Context, page, size int) envelope.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call{page: page, size: size})
	if len(b.fail) > 0 {
		env := b.fail[0]
		b.fail = b.fail[1:]
		return env
	}
	if b.clamp > 0 && size > b.clamp {
		size = b.clamp
	}

	items := []map[string]any{}
	for i := (page-1)*size + 1; i <= page*size && i <= b.total; i++ {
		name := fmt.Sprintf("Guest %d", i)
		if i%3 == 0 {
			name = fmt.Sprintf("Nguyen Van %d", i)
		}
		if i%5 == 0 {
			name = fmt.Sprintf("tran thi nguyen %d", i)
		}
		items = append(items, map[string]any{
			"id":           i,
			"customerName": name,
			"phone":        fmt.Sprintf("090%07d", i),
			"roomNumber":   fmt.Sprintf("%d0%d", 1+i%4, i%10),
			"status":       1 + i%6,
			"checkInDate":  time.Date(2026, 10, i%28+1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
			"checkOutDate": time.Date(2026, 10, i%28+3, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
			"isActive":     i%2 == 0,
		})
	}

	return envelope.Ok(map[string]any{
		"items":      items,
		"totalItems": b.total,
		"pageNumber": page,
		"pageSize":   size,
	}, http.StatusOK)
}

func (b *fakeBackend) Calls() []call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]call(nil), b.calls...)
}

func newController(t *testing.T, loader listing.Loader, opts listing.Options) (*listing.Controller, *[]time.Duration) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if opts.Schema.IDField == "" {
		opts.Schema = bookingSchema
	}
	ctrl := listing.NewController(logger, loader, opts)
	var delays []time.Duration
	listing.SetSleep(ctrl, func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})
	t.Cleanup(ctrl.Close)
	return ctrl, &delays
}

func TestController_SearchFiltersLoadedPageOnly(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{total: 47}
	ctrl, _ := newController(t, backend, listing.Options{})

	require.NoError(t, ctrl.Load(t.Context()))
	view := ctrl.View()
	require.Equal(t, listing.Loaded, view.State)
	require.Len(t, view.Items, 10)
	require.Equal(t, 47, view.TotalItems)

	ctrl.SetFilter(listing.Filter{Search: "NGUYEN"})
	view = ctrl.View()

	// ids 3, 5, 6, 9 and 10 carry the name on page one.
	require.Len(t, view.Items, 5)
	for _, rec := range view.Items {
		assert.Contains(t, strings.ToLower(rec.String("customerName")), "nguyen")
	}
	assert.Equal(t, 47, view.TotalItems)
	assert.Len(t, backend.Calls(), 1, "filtering must not fetch")

	ctrl.SetFilter(listing.Filter{})
	assert.Len(t, ctrl.View().Items, 10)
}

func TestController_Paging(t *testing.T) {
	t.Parallel()

	t.Run("page size change resets to page one with one fetch", func(t *testing.T) {
		t.Parallel()
		backend := &fakeBackend{total: 47}
		ctrl, _ := newController(t, backend, listing.Options{})

		require.NoError(t, ctrl.Load(t.Context()))
		require.NoError(t, ctrl.SetPage(t.Context(), 3))
		require.Equal(t, 3, ctrl.View().PageNumber)

		require.NoError(t, ctrl.SetPageSize(t.Context(), 25))

		calls := backend.Calls()
		require.Len(t, calls, 3)
		assert.Equal(t, call{page: 1, size: 25}, calls[2])
		view := ctrl.View()
		assert.Equal(t, 1, view.PageNumber)
		assert.Equal(t, 25, view.PageSize)
		assert.Len(t, view.Items, 25)
	})

	t.Run("same page is a no-op", func(t *testing.T) {
		t.Parallel()
		backend := &fakeBackend{total: 47}
		ctrl, _ := newController(t, backend, listing.Options{})

		require.NoError(t, ctrl.Load(t.Context()))
		require.NoError(t, ctrl.Load(t.Context()))
		require.NoError(t, ctrl.SetPage(t.Context(), 1))
		assert.Len(t, backend.Calls(), 1)
	})

	t.Run("server corrected page size is echoed", func(t *testing.T) {
		t.Parallel()
		backend := &fakeBackend{total: 47, clamp: 20}
		ctrl, _ := newController(t, backend, listing.Options{PageSize: 100})

		require.NoError(t, ctrl.Load(t.Context()))
		view := ctrl.View()
		assert.Equal(t, 20, view.PageSize)
		assert.Len(t, view.Items, 20)
	})

	t.Run("asking again for a clamped size keeps the page", func(t *testing.T) {
		t.Parallel()
		backend := &fakeBackend{total: 200, clamp: 50}
		ctrl, _ := newController(t, backend, listing.Options{})

		require.NoError(t, ctrl.SetPageSize(t.Context(), 100))
		require.NoError(t, ctrl.SetPageSize(t.Context(), 100))
		require.NoError(t, ctrl.SetPage(t.Context(), 3))

		calls := backend.Calls()
		require.Len(t, calls, 2)
		assert.Equal(t, call{page: 3, size: 50}, calls[1])
		view := ctrl.View()
		assert.Equal(t, 3, view.PageNumber)
		assert.Equal(t, 50, view.PageSize)
		assert.Equal(t, 100, ctrl.RequestedPageSize())
	})

	t.Run("error - invalid page", func(t *testing.T) {
		t.Parallel()
		ctrl, _ := newController(t, &fakeBackend{total: 5}, listing.Options{})
		require.ErrorIs(t, ctrl.SetPage(t.Context(), 0), listing.ErrInvalidPage)
		require.ErrorIs(t, ctrl.SetPageSize(t.Context(), -1), listing.ErrInvalidPage)
	})
}

func TestController_Retries(t *testing.T) {
	t.Parallel()

	t.Run("server errors are retried with growing backoff", func(t *testing.T) {
		t.Parallel()
		backend := &fakeBackend{total: 12, fail: []envelope.Envelope{
			envelope.Fail(http.StatusInternalServerError, "boom"),
			envelope.Fail(http.StatusBadGateway, "boom"),
		}}
		ctrl, delays := newController(t, backend, listing.Options{RetryAttempts: 3})

		require.NoError(t, ctrl.Load(t.Context()))
		assert.Len(t, backend.Calls(), 3)
		assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *delays)
		assert.Equal(t, listing.Loaded, ctrl.View().State)
	})

	t.Run("error - retries are bounded", func(t *testing.T) {
		t.Parallel()
		failures := make([]envelope.Envelope, 10)
		for i := range failures {
			failures[i] = envelope.Fail(http.StatusServiceUnavailable, "maintenance")
		}
		backend := &fakeBackend{total: 12, fail: failures}
		ctrl, _ := newController(t, backend, listing.Options{RetryAttempts: 3})

		err := ctrl.Load(t.Context())
		require.Error(t, err)
		assert.Len(t, backend.Calls(), 4)
		view := ctrl.View()
		assert.Equal(t, listing.Error, view.State)
		assert.Equal(t, "maintenance", view.Message)
	})

	t.Run("error - client errors are final and keep previous rows", func(t *testing.T) {
		t.Parallel()
		backend := &fakeBackend{total: 12}
		ctrl, _ := newController(t, backend, listing.Options{RetryAttempts: 3})
		require.NoError(t, ctrl.Load(t.Context()))

		backend.mu.Lock()
		backend.fail = []envelope.Envelope{envelope.Fail(http.StatusBadRequest, "bad page")}
		backend.mu.Unlock()

		var target *envelope.Error
		require.ErrorAs(t, ctrl.Refresh(t.Context()), &target)
		assert.Equal(t, http.StatusBadRequest, target.StatusCode)
		assert.Len(t, backend.Calls(), 2)

		view := ctrl.View()
		assert.Equal(t, listing.Error, view.State)
		assert.True(t, view.Stale)
		assert.Len(t, view.Items, 10)
	})
}

// blockingLoader holds the first call until released, answering later calls immediately.
type blockingLoader struct {
	fakeBackend
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingLoader) LoadPage(ctx context.Context, page, size int) envelope.Envelope {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.started)
		<-b.release
	}
	return b.fakeBackend.LoadPage(ctx, page, size)
}

func TestController_DiscardsSupersededResponse(t *testing.T) {
	t.Parallel()

	loader := &blockingLoader{
		fakeBackend: fakeBackend{total: 47},
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	ctrl, _ := newController(t, loader, listing.Options{})

	firstDone := make(chan error, 1)
	go func() { firstDone <- ctrl.Load(context.Background()) }()
	<-loader.started

	require.NoError(t, ctrl.SetPage(t.Context(), 2))
	close(loader.release)

	require.ErrorIs(t, <-firstDone, listing.ErrStale)

	view := ctrl.View()
	assert.Equal(t, 2, view.PageNumber)
	assert.Equal(t, "11", view.Items[0].String("id"))
}

func TestController_Delete(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{total: 47}
	ctrl, _ := newController(t, backend, listing.Options{})
	require.NoError(t, ctrl.Load(t.Context()))

	deleted := map[string]bool{}
	remove := func(_ context.Context, id string) envelope.Envelope {
		if deleted[id] {
			return envelope.Fail(http.StatusNotFound, "Booking not found")
		}
		deleted[id] = true
		return envelope.Ok(nil, http.StatusOK)
	}

	env := ctrl.Delete(t.Context(), "4", remove)
	require.True(t, env.Success)
	view := ctrl.View()
	assert.Len(t, view.Items, 9)
	assert.Equal(t, 46, view.TotalItems)

	env = ctrl.Delete(t.Context(), "4", remove)
	require.False(t, env.Success)
	assert.Equal(t, http.StatusNotFound, env.StatusCode)

	view = ctrl.View()
	assert.Len(t, view.Items, 9)
	assert.Equal(t, 46, view.TotalItems)
	assert.Equal(t, "Booking not found", view.Message)
	_, found := ctrl.Record("4")
	assert.False(t, found)
}

func TestController_Toggle(t *testing.T) {
	t.Parallel()

	t.Run("failed save reverts the flip", func(t *testing.T) {
		t.Parallel()
		ctrl, _ := newController(t, &fakeBackend{total: 10}, listing.Options{})
		require.NoError(t, ctrl.Load(t.Context()))

		var sent listing.Record
		env := ctrl.Toggle(t.Context(), "2", "isActive", func(_ context.Context, rec listing.Record) envelope.Envelope {
			sent = rec
			return envelope.Fail(http.StatusInternalServerError, "update failed")
		})

		require.False(t, env.Success)
		assert.Equal(t, false, sent["isActive"])
		rec, ok := ctrl.Record("2")
		require.True(t, ok)
		assert.Equal(t, true, rec["isActive"])
		assert.Equal(t, "update failed", ctrl.View().Message)
	})

	t.Run("successful save keeps the flip", func(t *testing.T) {
		t.Parallel()
		ctrl, _ := newController(t, &fakeBackend{total: 10}, listing.Options{})
		require.NoError(t, ctrl.Load(t.Context()))

		env := ctrl.Toggle(t.Context(), "3", "isActive", func(_ context.Context, _ listing.Record) envelope.Envelope {
			return envelope.Ok(nil, http.StatusOK)
		})

		require.True(t, env.Success)
		rec, _ := ctrl.Record("3")
		assert.Equal(t, true, rec["isActive"])
	})

	t.Run("error - unknown row or field", func(t *testing.T) {
		t.Parallel()
		ctrl, _ := newController(t, &fakeBackend{total: 10}, listing.Options{})
		require.NoError(t, ctrl.Load(t.Context()))
		noop := func(_ context.Context, _ listing.Record) envelope.Envelope { return envelope.Ok(nil, http.StatusOK) }

		assert.Equal(t, http.StatusNotFound, ctrl.Toggle(t.Context(), "99", "isActive", noop).StatusCode)
		assert.Equal(t, http.StatusBadRequest, ctrl.Toggle(t.Context(), "1", "customerName", noop).StatusCode)
	})
}

func TestController_SaveRoundTrip(t *testing.T) {
	t.Parallel()

	ctrl, _ := newController(t, &fakeBackend{total: 10}, listing.Options{})
	require.NoError(t, ctrl.Load(t.Context()))

	changes := listing.Record{
		"customerName": "Le Thi Hoa",
		"note":         "late arrival",
		"checkOutDate": "2026-10-20T12:00:00Z",
	}
	env := ctrl.Save(t.Context(), "7", changes, func(_ context.Context, rec listing.Record) envelope.Envelope {
		return envelope.Ok(rec, http.StatusOK)
	})
	require.True(t, env.Success)

	rec, ok := ctrl.Record("7")
	require.True(t, ok)
	for field, value := range changes {
		assert.Equal(t, value, rec[field], field)
	}
	assert.Equal(t, "7", rec.String("id"))
}

func TestController_SaveAcknowledgement(t *testing.T) {
	t.Parallel()

	t.Run("plain acknowledgement keeps the merged row", func(t *testing.T) {
		t.Parallel()
		ctrl, _ := newController(t, &fakeBackend{total: 10}, listing.Options{})
		require.NoError(t, ctrl.Load(t.Context()))

		env := ctrl.Save(t.Context(), "3", listing.Record{"note": "late arrival"},
			func(context.Context, listing.Record) envelope.Envelope {
				return envelope.Ok(map[string]any{"message": "Updated successfully"}, http.StatusOK)
			})
		require.True(t, env.Success)

		rec, ok := ctrl.Record("3")
		require.True(t, ok)
		assert.Equal(t, "late arrival", rec.String("note"))
		assert.Equal(t, "Nguyen Van 3", rec.String("customerName"))
		assert.NotContains(t, rec, "message")
		assert.Len(t, ctrl.View().Items, 10)
	})

	t.Run("partial echo of the same row is merged", func(t *testing.T) {
		t.Parallel()
		ctrl, _ := newController(t, &fakeBackend{total: 10}, listing.Options{})
		require.NoError(t, ctrl.Load(t.Context()))

		env := ctrl.Save(t.Context(), "4", listing.Record{"note": "vip"},
			func(context.Context, listing.Record) envelope.Envelope {
				return envelope.Ok(map[string]any{"id": 4, "status": 2}, http.StatusOK)
			})
		require.True(t, env.Success)

		rec, ok := ctrl.Record("4")
		require.True(t, ok)
		assert.Equal(t, "vip", rec.String("note"))
		assert.Equal(t, "2", rec.String("status"))
		assert.Equal(t, "Guest 4", rec.String("customerName"))
	})
}

func TestFilter_StatusAndDates(t *testing.T) {
	t.Parallel()

	rows := []listing.Record{
		{"id": 1, "status": 1, "checkInDate": "2026-10-01", "checkOutDate": "2026-10-03"},
		{"id": 2, "status": 2, "checkInDate": "2026-10-05", "checkOutDate": "2026-10-08"},
		{"id": 3, "status": 2, "checkInDate": "2026-10-10T14:00:00", "checkOutDate": "2026-10-12T12:00:00"},
		{"id": 4, "status": 2},
	}
	status := 2

	testCases := []struct {
		name   string
		filter listing.Filter
		want   []string
	}{
		{name: "zero filter", filter: listing.Filter{}, want: []string{"1", "2", "3", "4"}},
		{name: "status", filter: listing.Filter{Status: &status}, want: []string{"2", "3", "4"}},
		{
			name:   "overlapping range",
			filter: listing.Filter{From: date(2026, 10, 7), To: date(2026, 10, 11)},
			want:   []string{"2", "3"},
		},
		{name: "open end", filter: listing.Filter{From: date(2026, 10, 9)}, want: []string{"3"}},
		{name: "open start", filter: listing.Filter{To: date(2026, 10, 2)}, want: []string{"1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var got []string
			for _, rec := range tc.filter.Apply(bookingSchema, rows) {
				got = append(got, rec.String("id"))
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParsePage(t *testing.T) {
	t.Parallel()

	t.Run("raw array counts as its own total", func(t *testing.T) {
		t.Parallel()
		page, err := listing.ParsePage([]byte(`[{"id":1},{"id":2}]`))
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, 2, page.TotalItems)
	})

	t.Run("pascal case page object", func(t *testing.T) {
		t.Parallel()
		page, err := listing.ParsePage([]byte(`{"Data":[{"Id":1}],"TotalCount":31,"CurrentPage":4,"PageSize":1}`))
		require.NoError(t, err)
		assert.Equal(t, 31, page.TotalItems)
		assert.Equal(t, 4, page.PageNumber)
		assert.Equal(t, "1", page.Items[0].String("id"))
	})

	t.Run("error - unknown shape", func(t *testing.T) {
		t.Parallel()
		_, err := listing.ParsePage([]byte(`{"foo":1}`))
		require.ErrorIs(t, err, listing.ErrUnknownPageShape)
	})
}

func TestManager(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	created := 0
	manager := listing.NewManager(func(_, _ string) (*listing.Controller, error) {
		created++
		return listing.NewController(logger, &fakeBackend{}, listing.Options{Schema: bookingSchema}), nil
	})

	first, err := manager.Get("token-a", "bookings")
	require.NoError(t, err)
	again, err := manager.Get("token-a", "bookings")
	require.NoError(t, err)
	assert.Same(t, first, again)

	_, err = manager.Get("token-b", "bookings")
	require.NoError(t, err)
	_, err = manager.Get("token-a", "rooms")
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	manager.Drop("token-a")
	assert.Equal(t, 1, manager.Len())
}
