package model

import "time"

// PaymentOrder is the gateway order issued for a pending booking.  There
// is at most one order per booking.
type PaymentOrder struct {
	ID        string    `json:"orderId"`  // gateway order reference
	BookingID uint64    `json:"bookingId"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Receipt   string    `json:"receipt"`
	CreatedAt time.Time `json:"createdAt"`
}

// PaymentCallback is the outcome reported for a booking's payment.  It is
// either CallbackSuccess or CallbackFailure.
type PaymentCallback interface {
	callback()
}

// CallbackSuccess carries the gateway's proof of payment.
type CallbackSuccess struct {
	PaymentID string
	OrderID   string
	Signature string
}

// CallbackFailure reports that the customer's payment attempt failed.
type CallbackFailure struct {
	OrderID string
	Reason  string
}

func (CallbackSuccess) callback() {}
func (CallbackFailure) callback() {}
