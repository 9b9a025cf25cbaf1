package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-slot-booking/internal/model"
	"github.com/iliyamo/venue-slot-booking/internal/queue"
	"github.com/iliyamo/venue-slot-booking/internal/repository"
)

// releaseSlots moves a settled booking's slots from booked back to
// available.  A booked slot can only be held by one booking, so every slot
// is expected to move.
func releaseSlots(ctx context.Context, tx repository.Tx, b *model.Booking) error {
	if err := model.Transition(model.Booked, model.Available, model.ActorSettlement); err != nil {
		return err
	}
	n, err := tx.UpdateAvailability(ctx, b.SlotIDs, []model.Availability{model.Booked}, model.Available)
	if err != nil {
		return err
	}
	if n != int64(len(b.SlotIDs)) {
		return fmt.Errorf("%w: released %d of %d slots of booking %d", ErrInconsistentState, n, len(b.SlotIDs), b.ID)
	}
	return nil
}

// expireLocked fails a pending booking whose hold ran out and frees its
// slots.  b must have been loaded with LockBooking in tx.
func expireLocked(ctx context.Context, tx repository.Tx, b *model.Booking) error {
	if err := releaseSlots(ctx, tx, b); err != nil {
		return err
	}
	b.BookingStatus = model.BookingFailed
	b.PaymentStatus = model.PaymentFailed
	b.FailureReason = model.FailureExpired
	return tx.UpdateBookingStatus(ctx, b)
}

// expireBooking expires a single booking in its own transaction.  It
// reports false when the booking was settled concurrently or its deadline
// has not passed yet.
func expireBooking(ctx context.Context, store repository.Store, id uint64, now time.Time) (*model.Booking, bool, error) {
	var expired *model.Booking
	err := store.InTx(ctx, func(tx repository.Tx) error {
		b, err := tx.LockBooking(ctx, id)
		if err != nil {
			return err
		}
		if !b.AwaitingPayment() || now.Before(b.ExpiresAt) {
			return nil
		}
		if err := expireLocked(ctx, tx, b); err != nil {
			return err
		}
		expired = b
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, ErrBookingNotFound
	}
	if err != nil {
		return nil, false, err
	}
	return expired, expired != nil, nil
}

// expireInline expires b if its hold ran out while it was still pending,
// and returns ErrBookingExpired for any expired booking.  It returns nil
// for a booking that is not expired.
func expireInline(ctx context.Context, store repository.Store, events *Events, log *zap.Logger, b *model.Booking, now time.Time) error {
	if !b.Expired(now) {
		return nil
	}
	if b.AwaitingPayment() {
		expired, ok, err := expireBooking(ctx, store, b.ID, now)
		if err != nil {
			return err
		}
		if ok {
			log.Info("booking expired on access", zap.Uint64("booking_id", b.ID))
			events.emit(queue.KeyBookingExpired, expired, model.FailureExpired)
		}
	}
	return ErrBookingExpired
}
