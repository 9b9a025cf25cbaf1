// Package queue defines message payloads exchanged over the message broker.
package queue

// Routing keys published on the booking events exchange.
const (
	KeyBookingReserved  = "booking.reserved"
	KeyBookingConfirmed = "booking.confirmed"
	KeyBookingFailed    = "booking.failed"
	KeyBookingExpired   = "booking.expired"
)

// BookingEvent is published after every booking state change so that the
// notification service and analytics can react without querying the
// primary database.  Amount is in the currency's minor unit.
type BookingEvent struct {
	Event         string   `json:"event"`
	BookingID     uint64   `json:"booking_id"`
	UserID        uint64   `json:"user_id"`
	VenueID       uint64   `json:"venue_id"`
	FacilityID    uint64   `json:"facility_id"`
	SlotIDs       []uint64 `json:"slot_ids"`
	BookedDate    string   `json:"booked_date"`
	StartTime     string   `json:"start_time"`
	EndTime       string   `json:"end_time"`
	Amount        int64    `json:"amount"`
	BookingStatus string   `json:"booking_status"`
	PaymentStatus string   `json:"payment_status"`
	Reason        string   `json:"reason,omitempty"`
	OccurredAt    string   `json:"occurred_at"`
}
