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

// SignatureVerifier checks a gateway payment signature.
type SignatureVerifier interface {
	Verify(orderID, paymentID, signature string) bool
}

// VerificationService settles pending bookings from payment callbacks.
type VerificationService struct {
	store  repository.Store
	signer SignatureVerifier
	events *Events
	log    *zap.Logger
	now    func() time.Time
}

func NewVerificationService(store repository.Store, signer SignatureVerifier, events *Events, log *zap.Logger, now func() time.Time) *VerificationService {
	if now == nil {
		now = time.Now
	}
	return &VerificationService{store: store, signer: signer, events: events, log: log, now: now}
}

// settleable returns the guard error for a booking that can no longer be
// settled.  Expiry is checked first because an expired booking also reads
// as failed.
func settleable(b *model.Booking, now time.Time) error {
	switch {
	case b.Expired(now):
		return ErrBookingExpired
	case b.Settled():
		return ErrAlreadySettled
	case !b.AwaitingPayment():
		return ErrBookingNotPending
	}
	return nil
}

// Verify applies a payment outcome to a booking exactly once.  A success
// must carry a valid gateway signature; on success the booking is
// confirmed and keeps its slots, on failure the booking fails and its slots
// are released.  Calls after the first return ErrAlreadySettled and change
// nothing.
func (s *VerificationService) Verify(ctx context.Context, bookingID uint64, cb model.PaymentCallback) (*model.Booking, error) {
	var orderID string
	switch c := cb.(type) {
	case model.CallbackSuccess:
		if c.PaymentID == "" || c.OrderID == "" || c.Signature == "" {
			return nil, invalid("paymentId, orderId and signature are required")
		}
		orderID = c.OrderID
	case model.CallbackFailure:
		if c.OrderID == "" {
			return nil, invalid("orderId is required")
		}
		orderID = c.OrderID
	default:
		return nil, invalid("unknown payment callback %T", cb)
	}

	now := s.now()
	b, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := expireInline(ctx, s.store, s.events, s.log, b, now); err != nil {
		return nil, err
	}
	if err := settleable(b, now); err != nil {
		return nil, err
	}

	order, err := s.store.GetPaymentOrder(ctx, bookingID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if order == nil || order.ID != orderID {
		s.log.Warn("VerificationService.Verify order mismatch",
			zap.Uint64("booking_id", bookingID), zap.String("order_id", orderID))
		return nil, fmt.Errorf("%w: order %s does not belong to booking %d", ErrInvalidSignature, orderID, bookingID)
	}

	switch c := cb.(type) {
	case model.CallbackSuccess:
		if !s.signer.Verify(c.OrderID, c.PaymentID, c.Signature) {
			s.log.Warn("VerificationService.Verify signature mismatch, possible tampering",
				zap.Uint64("booking_id", bookingID), zap.String("order_id", c.OrderID), zap.String("payment_id", c.PaymentID))
			return nil, ErrInvalidSignature
		}
		return s.confirm(ctx, bookingID, c, now)
	case model.CallbackFailure:
		return s.fail(ctx, bookingID, c, now)
	}
	return nil, invalid("unknown payment callback %T", cb)
}

// settle locks the booking, re-checks the guards and runs apply.  A hold
// that ran out between the first read and the lock is expired in the same
// transaction and ErrBookingExpired is returned.
func (s *VerificationService) settle(ctx context.Context, bookingID uint64, now time.Time, apply func(tx repository.Tx, b *model.Booking) error) (*model.Booking, error) {
	var (
		settled *model.Booking
		expired bool
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		settled, expired = nil, false
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.AwaitingPayment() && b.Expired(now) {
			if err := expireLocked(ctx, tx, b); err != nil {
				return err
			}
			settled, expired = b, true
			return nil
		}
		if err := settleable(b, now); err != nil {
			return err
		}
		if err := apply(tx, b); err != nil {
			return err
		}
		settled = b
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if expired {
		s.events.emit(queue.KeyBookingExpired, settled, model.FailureExpired)
		return nil, ErrBookingExpired
	}
	return settled, nil
}

func (s *VerificationService) confirm(ctx context.Context, bookingID uint64, c model.CallbackSuccess, now time.Time) (*model.Booking, error) {
	b, err := s.settle(ctx, bookingID, now, func(tx repository.Tx, b *model.Booking) error {
		slots, err := tx.LockSlots(ctx, b.SlotIDs)
		if err != nil {
			return err
		}
		if len(slots) != len(b.SlotIDs) {
			return fmt.Errorf("%w: %d of %d slots found", ErrInconsistentState, len(slots), len(b.SlotIDs))
		}
		for _, sl := range slots {
			if model.Transition(sl.Availability, model.Booked, model.ActorSettlement) != nil {
				return fmt.Errorf("%w: slot %d is %s", ErrInconsistentState, sl.ID, sl.Availability)
			}
		}
		b.BookingStatus = model.BookingConfirmed
		b.PaymentStatus = model.PaymentPaid
		b.FailureReason = ""
		b.PaymentDetails = &model.PaymentDetails{
			PaymentID:  c.PaymentID,
			OrderID:    c.OrderID,
			Signature:  c.Signature,
			VerifiedAt: now.UTC(),
		}
		err = tx.UpdateBookingStatus(ctx, b)
		if errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("%w: payment %s was already applied to another booking", ErrInvalidSignature, c.PaymentID)
		}
		return err
	})
	if err != nil {
		s.logSettleError("VerificationService.Verify confirm failed", bookingID, err)
		return nil, err
	}
	s.log.Info("VerificationService.Verify booking confirmed",
		zap.Uint64("booking_id", b.ID), zap.String("payment_id", c.PaymentID))
	s.events.emit(queue.KeyBookingConfirmed, b, "")
	return b, nil
}

func (s *VerificationService) fail(ctx context.Context, bookingID uint64, c model.CallbackFailure, now time.Time) (*model.Booking, error) {
	reason := c.Reason
	if reason == "" || reason == model.FailureExpired {
		reason = model.FailurePaymentFailed
	}
	b, err := s.settle(ctx, bookingID, now, func(tx repository.Tx, b *model.Booking) error {
		if err := releaseSlots(ctx, tx, b); err != nil {
			return err
		}
		b.BookingStatus = model.BookingFailed
		b.PaymentStatus = model.PaymentFailed
		b.FailureReason = reason
		return tx.UpdateBookingStatus(ctx, b)
	})
	if err != nil {
		s.logSettleError("VerificationService.Verify fail failed", bookingID, err)
		return nil, err
	}
	s.log.Info("VerificationService.Verify payment failed, slots released",
		zap.Uint64("booking_id", b.ID), zap.String("reason", reason))
	s.events.emit(queue.KeyBookingFailed, b, reason)
	return b, nil
}

func (s *VerificationService) logSettleError(msg string, bookingID uint64, err error) {
	if KindOf(err) == KindInternal {
		s.log.Error(msg, zap.Uint64("booking_id", bookingID), zap.Error(err))
		return
	}
	s.log.Info(msg, zap.Uint64("booking_id", bookingID), zap.Error(err))
}
