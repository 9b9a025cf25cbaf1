package model

import "time"

// BookingStatus tracks the lifecycle of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingRefunded  BookingStatus = "refunded"
	BookingFailed    BookingStatus = "failed"
)

// PaymentStatus tracks the payment side of a booking.
type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Failure reasons stored on failed bookings.
const (
	FailureExpired       = "expired"
	FailurePaymentFailed = "payment_failed"
)

// CustomerDetails are contact details captured at checkout.
type CustomerDetails struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// PaymentDetails are recorded once a payment has been verified.
type PaymentDetails struct {
	PaymentID  string    `json:"paymentId"`
	OrderID    string    `json:"orderId"`
	Signature  string    `json:"signature"`
	VerifiedAt time.Time `json:"verifiedAt"`
}

// Booking is a customer's claim over one or more slots of a single
// facility.  While it is pending or confirmed it owns SlotIDs exclusively.
//
// Fields:
//
//	Amount        – sum of slot amounts plus tax, computed by the server.
//	StartTime     – earliest slot start on BookedDate (HH:MM).
//	EndTime       – latest slot end on BookedDate (HH:MM).
//	ExpiresAt     – deadline for payment verification of a pending booking.
//	FailureReason – why a failed booking failed (expired, payment_failed, …).
type Booking struct {
	ID              uint64           `json:"id"`
	UserID          uint64           `json:"userId"`
	PartnerID       uint64           `json:"partnerId"`
	VenueID         uint64           `json:"venueId"`
	FacilityID      uint64           `json:"facilityId"`
	ActivityID      uint64           `json:"activityId"`
	SlotIDs         []uint64         `json:"slotIds"`
	Amount          int64            `json:"amount"`
	StartTime       string           `json:"startTime"`
	EndTime         string           `json:"endTime"`
	BookedDate      string           `json:"bookedDate"`
	BookingStatus   BookingStatus    `json:"bookingStatus"`
	PaymentStatus   PaymentStatus    `json:"paymentStatus"`
	FailureReason   string           `json:"failureReason,omitempty"`
	CustomerDetails *CustomerDetails `json:"customerDetails,omitempty"`
	PaymentDetails  *PaymentDetails  `json:"paymentDetails,omitempty"`
	ExpiresAt       time.Time        `json:"expiresAt"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Settled reports whether the payment outcome has already been applied.
func (b *Booking) Settled() bool {
	return b.PaymentStatus == PaymentPaid || b.PaymentStatus == PaymentFailed
}

// Expired reports whether the booking was expired, or is a pending hold
// whose deadline has passed at now.
func (b *Booking) Expired(now time.Time) bool {
	if b.BookingStatus == BookingFailed && b.FailureReason == FailureExpired {
		return true
	}
	return b.AwaitingPayment() && !now.Before(b.ExpiresAt)
}

// AwaitingPayment reports whether the booking is an open pending hold.
func (b *Booking) AwaitingPayment() bool {
	return b.BookingStatus == BookingPending && b.PaymentStatus == PaymentInitiated
}
