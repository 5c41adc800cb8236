package hotel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/UnknownOlympus/hotelgate/internal/envelope"
	"github.com/UnknownOlympus/hotelgate/internal/listing"
	"github.com/UnknownOlympus/hotelgate/internal/models"
	"github.com/UnknownOlympus/hotelgate/internal/upstream"
	"golang.org/x/sync/errgroup"
)

const enrichLimit = 8

// ErrNoRoomNumber is returned by a lookup when the room carries no number.
var ErrNoRoomNumber = errors.New("room has no number")

// Backend is the part of the upstream client used by the hotel helpers.
type Backend interface {
	Do(ctx context.Context, req upstream.Request) envelope.Envelope
}

// RoomLookup resolves a room id to its display number.
type RoomLookup func(ctx context.Context, roomID string) (string, error)

// NewRoomLookup resolves room numbers through the backend Room/GetById endpoint.
func NewRoomLookup(backend Backend) RoomLookup {
	return func(ctx context.Context, roomID string) (string, error) {
		env := backend.Do(ctx, upstream.Request{
			Path:  "Room/GetById",
			Query: url.Values{"id": {roomID}},
		})
		var room listing.Record
		if err := env.Into(&room); err != nil {
			return "", fmt.Errorf("failed to get room %s: %w", roomID, err)
		}
		number := room.String("roomNumber")
		if number == "" {
			return "", ErrNoRoomNumber
		}
		return number, nil
	}
}

// EnrichRoomNumbers fills "roomNumber" on rows that only carry a "roomId". Lookups run
// concurrently and finish in any order; results are placed by row index and written to the
// rows only after every lookup settled. A failed lookup leaves its row without a number.
// It returns the number of rows that were enriched.
func EnrichRoomNumbers(ctx context.Context, log *slog.Logger, rows []listing.Record, lookup RoomLookup) int {
	numbers := make([]string, len(rows))

	var group errgroup.Group
	group.SetLimit(enrichLimit)
	for i, row := range rows {
		roomID := row.String("roomId")
		if roomID == "" || row.String("roomNumber") != "" {
			continue
		}
		group.Go(func() error {
			number, err := lookup(ctx, roomID)
			if err != nil {
				log.WarnContext(ctx, "Failed to resolve room number", "room_id", roomID, "error", err)
				return nil
			}
			numbers[i] = number
			return nil
		})
	}
	_ = group.Wait()

	enriched := 0
	for i, number := range numbers {
		if number == "" {
			continue
		}
		rows[i]["roomNumber"] = number
		enriched++
	}
	return enriched
}

// DecorateBookings adds the "statusLabel" field derived from the numeric status code.
func DecorateBookings(rows []listing.Record) {
	for _, row := range rows {
		code, ok := row.Int("status")
		if !ok {
			row["statusLabel"] = models.StatusUnknown
			continue
		}
		row["statusLabel"] = models.BookingStatus(code).Label()
	}
}

// BookingFromRecord converts a loaded booking row into the typed view model.
// Missing or malformed fields stay at their zero value.
func BookingFromRecord(rec listing.Record) models.Booking {
	booking := models.Booking{
		CustomerName: rec.String("customerName"),
		Phone:        rec.String("phone"),
		RoomNumber:   rec.String("roomNumber"),
		Note:         rec.String("note"),
	}
	booking.ID, _ = rec.Int("id")
	booking.CustomerID, _ = rec.Int("customerId")
	booking.RoomID, _ = rec.Int("roomId")
	booking.TotalAmount, _ = rec.Float("totalAmount")
	booking.CheckInDate, _ = rec.Time("checkInDate")
	booking.CheckOutDate, _ = rec.Time("checkOutDate")
	booking.CreatedAt, _ = rec.Time("createdAt")
	if code, ok := rec.Int("status"); ok {
		booking.Status = models.BookingStatus(code)
	}
	return booking
}
