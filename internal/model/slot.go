package model

import (
	"errors"
	"time"
)

// Availability is the bookability state of a slot.
type Availability string

const (
	Available    Availability = "available"     // bookable, plenty of capacity
	FillingFast  Availability = "filling_fast"  // bookable, flagged low capacity
	Booked       Availability = "booked"        // held by a pending or confirmed booking
	NotAvailable Availability = "not_available" // disabled by the operator
)

// Valid reports whether a is one of the known states.
func (a Availability) Valid() bool {
	switch a {
	case Available, FillingFast, Booked, NotAvailable:
		return true
	}
	return false
}

// Bookable reports whether a client may select a slot in this state.
func (a Availability) Bookable() bool {
	return a == Available || a == FillingFast
}

// Actor identifies who is asking for an availability change.  The same
// from/to pair can be legal for one actor and illegal for another.
type Actor int

const (
	ActorReservation Actor = iota // claiming slots for a new booking
	ActorSettlement               // verification, failure callback or expiry
	ActorOperator                 // venue partner or admin
)

// ErrIllegalTransition is returned by Transition when the requested move is
// not part of the availability state machine for the given actor.
var ErrIllegalTransition = errors.New("illegal availability transition")

// Transition validates a move of a single slot from one state to another.
//
//	reservation: available|filling_fast -> booked
//	settlement:  booked -> available (release), booked -> booked (finalise)
//	operator:    any of available, filling_fast, not_available among themselves
//
// A booked slot can only leave the booked state through settlement.
func Transition(from, to Availability, actor Actor) error {
	if !from.Valid() || !to.Valid() {
		return ErrIllegalTransition
	}
	switch actor {
	case ActorReservation:
		if from.Bookable() && to == Booked {
			return nil
		}
	case ActorSettlement:
		if from == Booked && (to == Available || to == Booked) {
			return nil
		}
	case ActorOperator:
		if from != Booked && to != Booked {
			return nil
		}
	}
	return ErrIllegalTransition
}

// Slot is a fixed time window on one facility and date.  Date is
// YYYY-MM-DD and StartTime/EndTime are HH:MM on a 24h clock, with "24:00"
// allowed as an end time.  Amount is in the currency's minor unit.
type Slot struct {
	ID           uint64       `json:"id"`           // slots.id
	FacilityID   uint64       `json:"facilityId"`   // slots.facility_id
	Date         string       `json:"date"`         // slots.slot_date
	StartTime    string       `json:"startTime"`    // slots.start_time
	EndTime      string       `json:"endTime"`      // slots.end_time
	Amount       int64        `json:"amount"`       // slots.amount
	Availability Availability `json:"availability"` // slots.availability
	CreatedAt    time.Time    `json:"createdAt"`    // slots.created_at
	UpdatedAt    time.Time    `json:"updatedAt"`    // slots.updated_at
}

// Overlaps reports whether s and o share any instant on the same facility
// and date.  Windows are half-open, so back-to-back slots do not overlap.
func (s Slot) Overlaps(o Slot) bool {
	if s.FacilityID != o.FacilityID || s.Date != o.Date {
		return false
	}
	return s.StartTime < o.EndTime && o.StartTime < s.EndTime
}

// Facility is the read-only directory entry that ties a bookable resource
// to its venue, partner and activity.
type Facility struct {
	ID         uint64 `json:"id"`
	VenueID    uint64 `json:"venueId"`
	PartnerID  uint64 `json:"partnerId"`
	ActivityID uint64 `json:"activityId"`
	Name       string `json:"name"`
}
