package models

import "time"

// BookingStatus is the small integer status code the backend uses for bookings.
type BookingStatus int

// Booking status codes as sent by the backend.
const (
	BookingPending    BookingStatus = 1
	BookingConfirmed  BookingStatus = 2
	BookingCheckedIn  BookingStatus = 3
	BookingCheckedOut BookingStatus = 4
	BookingCancelled  BookingStatus = 5
	BookingNoShow     BookingStatus = 6
)

// StatusUnknown is the label of codes outside the known range.
const StatusUnknown = "unknown"

var bookingStatusLabels = map[BookingStatus]string{ //nolint:gochecknoglobals // lookup table
	BookingPending:    "pending",
	BookingConfirmed:  "confirmed",
	BookingCheckedIn:  "checked_in",
	BookingCheckedOut: "checked_out",
	BookingCancelled:  "cancelled",
	BookingNoShow:     "no_show",
}

// Label returns the machine label of the status, e.g. "checked_in".
func (s BookingStatus) Label() string {
	if label, ok := bookingStatusLabels[s]; ok {
		return label
	}
	return StatusUnknown
}

// ParseBookingStatus maps a label back to its code.
func ParseBookingStatus(label string) (BookingStatus, bool) {
	for code, known := range bookingStatusLabels {
		if known == label {
			return code, true
		}
	}
	return 0, false
}

// Booking is the view model of a room reservation.
type Booking struct {
	ID           int           `json:"id"`
	CustomerID   int           `json:"customerId"`
	CustomerName string        `json:"customerName"`
	Phone        string        `json:"phone,omitempty"`
	RoomID       int           `json:"roomId"`
	RoomNumber   string        `json:"roomNumber,omitempty"`
	CheckInDate  time.Time     `json:"checkInDate"`
	CheckOutDate time.Time     `json:"checkOutDate"`
	Status       BookingStatus `json:"status"`
	TotalAmount  float64       `json:"totalAmount"`
	Note         string        `json:"note,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}
