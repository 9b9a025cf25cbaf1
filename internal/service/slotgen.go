package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/venue-slot-booking/internal/model"
)

// SlotInterval is the fixed slot granularity in minutes.
const SlotInterval = 30

// maxBulkDays caps a single generation batch.
const maxBulkDays = 366

const dateLayout = "2006-01-02"

// BulkSlotRequest describes a batch of slots to generate for a facility:
// one slot per SlotInterval in [StartTime, EndTime) on every day from
// StartDate to EndDate inclusive.
type BulkSlotRequest struct {
	FacilityID   uint64
	StartDate    string
	EndDate      string
	StartTime    string
	EndTime      string
	Amount       int64
	Availability model.Availability
}

// parseClock converts HH:MM into minutes after midnight.  Both parts are
// exactly two ASCII digits.  "24:00" is accepted only when allowMidnight is
// set (window ends).
func parseClock(s string, allowMidnight bool) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || !twoDigits(hh) || !twoDigits(mm) {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	if m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	total := h*60 + m
	if total > 24*60 || (total == 24*60 && !allowMidnight) || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return total, nil
}

func twoDigits(s string) bool {
	return len(s) == 2 && s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9'
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// parseWindow validates a single time window [start, end).
func parseWindow(start, end string) (int, int, error) {
	from, err := parseClock(start, false)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}
	to, err := parseClock(end, true)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}
	if from >= to {
		return 0, 0, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidInterval, start, end)
	}
	return from, to, nil
}

func creatableAvailability(a model.Availability) (model.Availability, error) {
	if a == "" {
		return model.Available, nil
	}
	if !a.Valid() || a == model.Booked {
		return "", fmt.Errorf("%w: %q", ErrInvalidAvailability, a)
	}
	return a, nil
}

// GenerateSlots expands req into slot records without touching the store.
// The result is ordered by date then start time.  It fails with
// ErrInvalidInterval when a time is off the 30 minute grid, when
// StartDate is after EndDate or when StartTime is not before EndTime.
func GenerateSlots(req BulkSlotRequest) ([]model.Slot, error) {
	from, to, err := parseWindow(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if from%SlotInterval != 0 || to%SlotInterval != 0 {
		return nil, fmt.Errorf("%w: %s-%s is not aligned to %d minutes", ErrInvalidInterval, req.StartTime, req.EndTime, SlotInterval)
	}
	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid start date %q", ErrInvalidInterval, req.StartDate)
	}
	endDate, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid end date %q", ErrInvalidInterval, req.EndDate)
	}
	if startDate.After(endDate) {
		return nil, fmt.Errorf("%w: start date %s is after end date %s", ErrInvalidInterval, req.StartDate, req.EndDate)
	}
	days := int(endDate.Sub(startDate).Hours()/24) + 1
	if days > maxBulkDays {
		return nil, invalid("date range spans %d days, at most %d allowed", days, maxBulkDays)
	}
	if req.Amount < 0 {
		return nil, invalid("amount must not be negative")
	}
	availability, err := creatableAvailability(req.Availability)
	if err != nil {
		return nil, err
	}

	perDay := (to - from) / SlotInterval
	slots := make([]model.Slot, 0, days*perDay)
	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		date := d.Format(dateLayout)
		// a trailing partial interval is dropped, never truncated
		for t := from; t+SlotInterval <= to; t += SlotInterval {
			slots = append(slots, model.Slot{
				FacilityID:   req.FacilityID,
				Date:         date,
				StartTime:    formatClock(t),
				EndTime:      formatClock(t + SlotInterval),
				Amount:       req.Amount,
				Availability: availability,
			})
		}
	}
	return slots, nil
}
