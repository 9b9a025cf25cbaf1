package service

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so transports can decide between retry
// and abandon without matching individual codes.
type Kind int

const (
	KindInternal     Kind = iota
	KindValidation        // malformed input, rejected before any store access
	KindConflict          // recoverable by re-polling availability and retrying
	KindNotFound          // stale or wrong reference
	KindState             // idempotency/ordering guard; safe to treat as a no-op
	KindAuthenticity      // callback failed authentication; never retried
	KindForbidden         // caller does not own the resource
)

// Error is a classified engine error.  Sentinels below are compared with
// errors.Is; the code is what clients see.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrValidation          = newError(KindValidation, "validation_failed", "request is invalid")
	ErrInvalidInterval     = newError(KindValidation, "invalid_interval", "time window is not a valid 30 minute interval")
	ErrInvalidAvailability = newError(KindValidation, "invalid_availability", "availability is not allowed here")

	ErrSlotUnavailable = newError(KindConflict, "slot_unavailable", "one or more slots are not available")
	ErrAmountMismatch  = newError(KindConflict, "amount_mismatch", "amount does not match the server total")
	ErrSlotOverlap     = newError(KindConflict, "slot_overlap", "slots overlap existing slots")

	ErrBookingNotFound  = newError(KindNotFound, "booking_not_found", "booking not found")
	ErrFacilityNotFound = newError(KindNotFound, "facility_not_found", "facility not found")
	ErrSlotNotFound     = newError(KindNotFound, "slot_not_found", "slot not found")

	ErrBookingNotPending  = newError(KindState, "booking_not_pending", "booking is not awaiting payment")
	ErrAlreadySettled     = newError(KindState, "already_settled", "payment for this booking was already settled")
	ErrBookingExpired     = newError(KindState, "booking_expired", "booking hold has expired")
	ErrIllegalTransition  = newError(KindState, "illegal_transition", "availability change is not allowed")
	ErrInconsistentState  = newError(KindState, "inconsistent_state", "booking slots are no longer held")
	ErrInvalidSignature   = newError(KindAuthenticity, "invalid_signature", "payment signature is invalid")
	ErrForbidden          = newError(KindForbidden, "forbidden", "caller may not manage this facility")
)

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// SlotUnavailableError names the slots that could not be claimed.  It
// matches ErrSlotUnavailable under errors.Is.
type SlotUnavailableError struct {
	SlotIDs []uint64
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("%s: slots %v", ErrSlotUnavailable.Code, e.SlotIDs)
}

func (e *SlotUnavailableError) Unwrap() error { return ErrSlotUnavailable }

// invalid wraps ErrValidation with a field-specific message.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
