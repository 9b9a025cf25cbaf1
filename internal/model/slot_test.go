package model

import (
	"testing"
	"time"
)

func TestTransition(t *testing.T) {
	cases := []struct {
		from, to Availability
		actor    Actor
		ok       bool
	}{
		{Available, Booked, ActorReservation, true},
		{FillingFast, Booked, ActorReservation, true},
		{Booked, Booked, ActorReservation, false},
		{NotAvailable, Booked, ActorReservation, false},
		{Available, FillingFast, ActorReservation, false},

		{Booked, Available, ActorSettlement, true},
		{Booked, Booked, ActorSettlement, true},
		{Available, Booked, ActorSettlement, false},
		{Booked, NotAvailable, ActorSettlement, false},

		{Available, NotAvailable, ActorOperator, true},
		{NotAvailable, FillingFast, ActorOperator, true},
		{FillingFast, Available, ActorOperator, true},
		{Booked, NotAvailable, ActorOperator, false},
		{Available, Booked, ActorOperator, false},

		{Availability("sold"), Booked, ActorReservation, false},
	}
	for _, tc := range cases {
		err := Transition(tc.from, tc.to, tc.actor)
		if (err == nil) != tc.ok {
			t.Fatalf("Transition(%s, %s, %d) = %v, want ok=%v", tc.from, tc.to, tc.actor, err, tc.ok)
		}
	}
}

func TestSlotOverlaps(t *testing.T) {
	a := Slot{FacilityID: 1, Date: "2025-01-01", StartTime: "09:00", EndTime: "09:30"}
	cases := []struct {
		name string
		b    Slot
		want bool
	}{
		{"same", a, true},
		{"back to back", Slot{FacilityID: 1, Date: "2025-01-01", StartTime: "09:30", EndTime: "10:00"}, false},
		{"inside", Slot{FacilityID: 1, Date: "2025-01-01", StartTime: "09:10", EndTime: "09:20"}, true},
		{"other date", Slot{FacilityID: 1, Date: "2025-01-02", StartTime: "09:00", EndTime: "09:30"}, false},
		{"other facility", Slot{FacilityID: 2, Date: "2025-01-01", StartTime: "09:00", EndTime: "09:30"}, false},
	}
	for _, tc := range cases {
		if got := a.Overlaps(tc.b); got != tc.want {
			t.Fatalf("%s: Overlaps = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBookingExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &Booking{BookingStatus: BookingPending, PaymentStatus: PaymentInitiated, ExpiresAt: now.Add(time.Minute)}
	if b.Expired(now) {
		t.Fatal("hold inside its window reported expired")
	}
	if !b.Expired(now.Add(time.Minute)) {
		t.Fatal("hold at its deadline not reported expired")
	}
	b.BookingStatus, b.PaymentStatus, b.FailureReason = BookingFailed, PaymentFailed, FailureExpired
	if !b.Expired(now) || !b.Settled() {
		t.Fatal("reaped booking should be expired and settled")
	}
	b.FailureReason = FailurePaymentFailed
	if b.Expired(now.Add(time.Hour)) {
		t.Fatal("payment failure reported as expiry")
	}
}
