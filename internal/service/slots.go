package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-slot-booking/internal/model"
	"github.com/iliyamo/venue-slot-booking/internal/repository"
)

// Operator is the authenticated caller of an operator action.
type Operator struct {
	UserID uint64
	Admin  bool
}

// SlotService manages the slot inventory of facilities.
type SlotService struct {
	store repository.Store
	log   *zap.Logger
}

func NewSlotService(store repository.Store, log *zap.Logger) *SlotService {
	return &SlotService{store: store, log: log}
}

// facilityFor loads a facility and checks that op may manage it.
func (s *SlotService) facilityFor(ctx context.Context, op Operator, facilityID uint64) (*model.Facility, error) {
	fac, err := s.store.GetFacility(ctx, facilityID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrFacilityNotFound
	}
	if err != nil {
		return nil, err
	}
	if !op.Admin && fac.PartnerID != op.UserID {
		return nil, ErrForbidden
	}
	return fac, nil
}

// ListSlots returns a facility's slots between two dates, inclusive,
// ordered by date then start time.  With bookableOnly only available and
// filling_fast slots are returned.
func (s *SlotService) ListSlots(ctx context.Context, facilityID uint64, from, to string, bookableOnly bool) ([]model.Slot, error) {
	fromDate, err := time.Parse(dateLayout, from)
	if err != nil {
		return nil, invalid("from %q is not YYYY-MM-DD", from)
	}
	toDate, err := time.Parse(dateLayout, to)
	if err != nil {
		return nil, invalid("to %q is not YYYY-MM-DD", to)
	}
	if fromDate.After(toDate) {
		return nil, invalid("from %s is after to %s", from, to)
	}
	if _, err := s.store.GetFacility(ctx, facilityID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFacilityNotFound
		}
		return nil, err
	}
	slots, err := s.store.ListSlots(ctx, facilityID, from, to)
	if err != nil {
		return nil, err
	}
	if !bookableOnly {
		return slots, nil
	}
	out := slots[:0]
	for _, sl := range slots {
		if sl.Availability.Bookable() {
			out = append(out, sl)
		}
	}
	return out, nil
}

// BulkGenerate creates every slot described by req, or none of them when
// any would overlap an existing slot.
func (s *SlotService) BulkGenerate(ctx context.Context, op Operator, req BulkSlotRequest) (int64, error) {
	slots, err := GenerateSlots(req)
	if err != nil {
		return 0, err
	}
	if _, err := s.facilityFor(ctx, op, req.FacilityID); err != nil {
		return 0, err
	}

	// generated slots carry canonical HH:MM, which the store compares as strings
	start, end := slots[0].StartTime, slots[len(slots)-1].EndTime

	var count int64
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		clash, err := tx.OverlappingSlots(ctx, req.FacilityID, req.StartDate, req.EndDate, start, end)
		if err != nil {
			return err
		}
		if len(clash) > 0 {
			return fmt.Errorf("%w: %d existing slots between %s and %s, first on %s at %s",
				ErrSlotOverlap, len(clash), req.StartDate, req.EndDate, clash[0].Date, clash[0].StartTime)
		}
		n, err := tx.InsertSlots(ctx, slots)
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrSlotOverlap
		}
		count = n
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("SlotService.BulkGenerate slots created",
		zap.Uint64("facility_id", req.FacilityID), zap.Int64("count", count),
		zap.String("from", req.StartDate), zap.String("to", req.EndDate))
	return count, nil
}

// CreateSlot adds a single SlotInterval slot to a facility.
func (s *SlotService) CreateSlot(ctx context.Context, op Operator, slot model.Slot) (*model.Slot, error) {
	from, to, err := parseWindow(slot.StartTime, slot.EndTime)
	if err != nil {
		return nil, err
	}
	if from%SlotInterval != 0 || to-from != SlotInterval {
		return nil, fmt.Errorf("%w: a slot spans exactly one aligned %d minute interval", ErrInvalidInterval, SlotInterval)
	}
	if _, err := time.Parse(dateLayout, slot.Date); err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrInvalidInterval, slot.Date)
	}
	if slot.Amount < 0 {
		return nil, invalid("amount must not be negative")
	}
	if slot.Availability, err = creatableAvailability(slot.Availability); err != nil {
		return nil, err
	}
	if _, err := s.facilityFor(ctx, op, slot.FacilityID); err != nil {
		return nil, err
	}

	slot.ID = 0
	slot.StartTime, slot.EndTime = formatClock(from), formatClock(to)
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		clash, err := tx.OverlappingSlots(ctx, slot.FacilityID, slot.Date, slot.Date, slot.StartTime, slot.EndTime)
		if err != nil {
			return err
		}
		if len(clash) > 0 {
			return ErrSlotOverlap
		}
		err = tx.InsertSlot(ctx, &slot)
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrSlotOverlap
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// SetAvailability applies an operator availability change.  Booked slots
// are owned by their booking and cannot be changed here.
func (s *SlotService) SetAvailability(ctx context.Context, op Operator, slotID uint64, to model.Availability) (*model.Slot, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAvailability, to)
	}
	current, err := s.store.GetSlot(ctx, slotID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.facilityFor(ctx, op, current.FacilityID); err != nil {
		return nil, err
	}

	var updated model.Slot
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		locked, err := tx.LockSlots(ctx, []uint64{slotID})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return ErrSlotNotFound
		}
		sl := locked[0]
		if sl.Availability == to {
			updated = sl
			return nil
		}
		if err := model.Transition(sl.Availability, to, model.ActorOperator); err != nil {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, sl.Availability, to)
		}
		if _, err := tx.UpdateAvailability(ctx, []uint64{slotID}, []model.Availability{sl.Availability}, to); err != nil {
			return err
		}
		sl.Availability = to
		sl.UpdatedAt = time.Now().UTC()
		updated = sl
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("SlotService.SetAvailability updated",
		zap.Uint64("slot_id", slotID), zap.String("availability", string(to)), zap.Uint64("operator", op.UserID))
	return &updated, nil
}
