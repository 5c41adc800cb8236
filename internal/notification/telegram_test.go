package notification_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/UnknownOlympus/hotelgate/internal/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSink(t *testing.T) {
	t.Parallel()

	type sent struct {
		path string
		form url.Values
	}
	requests := make(chan sent, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form := url.Values{}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			form.Set("json", string(body))
		}
		requests <- sent{path: r.URL.Path, form: form}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"group"}}}`))
	}))
	t.Cleanup(srv.Close)

	sink, err := notification.NewTelegramSink("123:abc", 42, srv.URL)
	require.NoError(t, err)

	err = sink.Notify(t.Context(), notification.Notification{
		ID:      "checkin:1:2026-10-17",
		Type:    notification.TypeCheckIn,
		Title:   "Check-in due today",
		Message: "Nguyen Van An is due to check in to room 204",
	})
	require.NoError(t, err)

	got := <-requests
	assert.Equal(t, "/bot123:abc/sendMessage", got.path)
	assert.Contains(t, got.form.Get("json"), "Nguyen Van An")
	assert.Contains(t, got.form.Get("json"), `"chat_id":"42"`)
}

func TestTelegramSink_Error(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	t.Cleanup(srv.Close)

	sink, err := notification.NewTelegramSink("123:abc", 7, srv.URL)
	require.NoError(t, err)

	err = sink.Notify(t.Context(), notification.Notification{ID: "x", Title: "t", Message: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send notification x")
}

func TestFormatMessage(t *testing.T) {
	t.Parallel()

	msg := notification.FormatMessage(notification.Notification{
		Type:      notification.TypeBooking,
		Title:     "New booking",
		Message:   "Le Hoa booked room 101",
		Timestamp: time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC),
	})

	assert.Equal(t, "📅 *New booking*\n\nLe Hoa booked room 101\n\n_17.10.2026 09:30_", msg)

	msg = notification.FormatMessage(notification.Notification{
		Type:    notification.TypeCustomer,
		Title:   "New customer [vip]",
		Message: "tran_thi *hoa* booked room B_12",
	})

	assert.Equal(t, "👤 *New customer \\[vip]*\n\ntran\\_thi \\*hoa\\* booked room B\\_12", msg)
}
