package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/UnknownOlympus/hotelgate/internal/hotel"
	"github.com/UnknownOlympus/hotelgate/internal/listing"
	"github.com/UnknownOlympus/hotelgate/internal/models"
	"github.com/UnknownOlympus/hotelgate/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleExportBookings writes the caller's current bookings screen, filters applied, as xlsx.
func (h *Handler) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctrl, err := h.views.Get(sessionFrom(ctx).Token, "bookings")
	if err != nil {
		h.internalError(w, r, "Failed to open bookings view", err)
		return
	}
	if err = ctrl.Load(ctx); err != nil && !errors.Is(err, listing.ErrStale) {
		h.log.WarnContext(ctx, "Exporting bookings without a fresh page", "error", err)
	}

	view := ctrl.View()
	bookings := make([]models.Booking, 0, len(view.Items))
	for _, rec := range view.Items {
		bookings = append(bookings, hotel.BookingFromRecord(rec))
	}

	lang := language(r)
	start := time.Now()
	buffer, err := report.GenerateBookingReport(bookings, func(key string) string {
		return h.localizer.Get(lang, key)
	})
	h.metrics.ReportGeneration.Observe(time.Since(start).Seconds())
	if errors.Is(err, report.ErrNoBookings) {
		h.fail(w, r, http.StatusNotFound, "export.empty", nil)
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to generate bookings report", "request_id", RequestID(ctx), "error", err)
		h.fail(w, r, http.StatusInternalServerError, "export.failed", nil)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="bookings-%s.xlsx"`, time.Now().Format("20060102")))
	w.WriteHeader(http.StatusOK)
	if _, err = buffer.WriteTo(w); err != nil {
		h.log.ErrorContext(ctx, "Failed to write bookings report", "error", err)
	}
}
