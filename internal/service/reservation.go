package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-slot-booking/internal/model"
	"github.com/iliyamo/venue-slot-booking/internal/queue"
	"github.com/iliyamo/venue-slot-booking/internal/repository"
)

// DefaultHoldTTL is how long a pending booking keeps its slots while the
// customer pays.
const DefaultHoldTTL = 15 * time.Minute

// ReserveRequest is a customer's request to claim slots.  StartTime,
// EndTime and BookedDate are optional; when present they must match what
// the server derives from the slots.
type ReserveRequest struct {
	UserID          uint64
	PartnerID       uint64
	VenueID         uint64
	FacilityID      uint64
	ActivityID      uint64
	SlotIDs         []uint64
	Amount          int64
	StartTime       string
	EndTime         string
	BookedDate      string
	CustomerDetails *model.CustomerDetails
}

// ReservationConfig tunes ReservationService.
type ReservationConfig struct {
	HoldTTL        time.Duration
	TaxBasisPoints int64
	Now            func() time.Time
}

// ReservationService claims slots for pending bookings.
type ReservationService struct {
	store  repository.Store
	events *Events
	log    *zap.Logger
	cfg    ReservationConfig
}

func NewReservationService(store repository.Store, events *Events, log *zap.Logger, cfg ReservationConfig) *ReservationService {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = DefaultHoldTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ReservationService{store: store, events: events, log: log, cfg: cfg}
}

func (r ReserveRequest) validate() error {
	switch {
	case r.UserID == 0:
		return invalid("userId is required")
	case r.PartnerID == 0 || r.VenueID == 0 || r.FacilityID == 0 || r.ActivityID == 0:
		return invalid("partnerId, venueId, facilityId and activityId are required")
	case len(r.SlotIDs) == 0:
		return invalid("slotIds must not be empty")
	case r.Amount < 0:
		return invalid("amount must not be negative")
	}
	for _, id := range r.SlotIDs {
		if id == 0 {
			return invalid("slot id 0 is not valid")
		}
	}
	if r.BookedDate != "" {
		if _, err := time.Parse(dateLayout, r.BookedDate); err != nil {
			return invalid("bookedDate %q is not YYYY-MM-DD", r.BookedDate)
		}
	}
	if r.StartTime != "" {
		if _, err := parseClock(r.StartTime, false); err != nil {
			return invalid("startTime: %v", err)
		}
	}
	if r.EndTime != "" {
		if _, err := parseClock(r.EndTime, true); err != nil {
			return invalid("endTime: %v", err)
		}
	}
	return nil
}

// dedupe returns the distinct ids in ascending order.
func dedupe(ids []uint64) []uint64 {
	out := append([]uint64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}

// Reserve claims every requested slot and creates a pending booking, or
// changes nothing.  On success the slots are booked and the booking holds
// them until it is verified, failed or expired.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*model.Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	ids := dedupe(req.SlotIDs)

	fac, err := s.store.GetFacility(ctx, req.FacilityID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrFacilityNotFound
	}
	if err != nil {
		return nil, err
	}
	if fac.VenueID != req.VenueID || fac.PartnerID != req.PartnerID || fac.ActivityID != req.ActivityID {
		return nil, invalid("facility %d does not belong to venue %d, partner %d and activity %d",
			req.FacilityID, req.VenueID, req.PartnerID, req.ActivityID)
	}

	var booking *model.Booking
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		slots, err := tx.LockSlots(ctx, ids)
		if err != nil {
			return err
		}
		if err := claimable(req.FacilityID, ids, slots); err != nil {
			return err
		}

		total := TotalAmount(slots, s.cfg.TaxBasisPoints)
		if total != req.Amount {
			return fmt.Errorf("%w: expected %d, got %d", ErrAmountMismatch, total, req.Amount)
		}
		date, start, end, err := bookingWindow(slots)
		if err != nil {
			return err
		}
		if (req.BookedDate != "" && req.BookedDate != date) ||
			(req.StartTime != "" && req.StartTime != start) ||
			(req.EndTime != "" && req.EndTime != end) {
			return invalid("booking window %s %s-%s does not match the selected slots (%s %s-%s)",
				req.BookedDate, req.StartTime, req.EndTime, date, start, end)
		}

		n, err := tx.UpdateAvailability(ctx, ids, []model.Availability{model.Available, model.FillingFast}, model.Booked)
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return &SlotUnavailableError{SlotIDs: ids}
		}

		b := &model.Booking{
			UserID:          req.UserID,
			PartnerID:       req.PartnerID,
			VenueID:         req.VenueID,
			FacilityID:      req.FacilityID,
			ActivityID:      req.ActivityID,
			SlotIDs:         ids,
			Amount:          total,
			StartTime:       start,
			EndTime:         end,
			BookedDate:      date,
			BookingStatus:   model.BookingPending,
			PaymentStatus:   model.PaymentInitiated,
			CustomerDetails: req.CustomerDetails,
			ExpiresAt:       s.cfg.Now().UTC().Add(s.cfg.HoldTTL),
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		if KindOf(err) == KindInternal {
			s.log.Error("ReservationService.Reserve failed", zap.Uint64("user_id", req.UserID), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("ReservationService.Reserve booking created",
		zap.Uint64("booking_id", booking.ID), zap.Uint64("user_id", booking.UserID),
		zap.Int("slots", len(booking.SlotIDs)), zap.Int64("amount", booking.Amount))
	s.events.emit(queue.KeyBookingReserved, booking, "")
	return booking, nil
}

// claimable reports every requested id that is missing, belongs to another
// facility or is not bookable.
func claimable(facilityID uint64, ids []uint64, slots []model.Slot) error {
	found := make(map[uint64]model.Slot, len(slots))
	for _, sl := range slots {
		found[sl.ID] = sl
	}
	var bad []uint64
	for _, id := range ids {
		sl, ok := found[id]
		if !ok || sl.FacilityID != facilityID || model.Transition(sl.Availability, model.Booked, model.ActorReservation) != nil {
			bad = append(bad, id)
		}
	}
	if len(bad) > 0 {
		return &SlotUnavailableError{SlotIDs: bad}
	}
	return nil
}

// bookingWindow derives the booked date and the earliest start and latest
// end over slots.  The slots of one booking must share a date.
func bookingWindow(slots []model.Slot) (date, start, end string, err error) {
	for i, sl := range slots {
		if i == 0 {
			date, start, end = sl.Date, sl.StartTime, sl.EndTime
			continue
		}
		if sl.Date != date {
			return "", "", "", invalid("slots span more than one date (%s, %s)", date, sl.Date)
		}
		if sl.StartTime < start {
			start = sl.StartTime
		}
		if sl.EndTime > end {
			end = sl.EndTime
		}
	}
	return date, start, end, nil
}

// GetBooking returns a booking by id.
func (s *ReservationService) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	return b, err
}
