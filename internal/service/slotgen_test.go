package service

import (
	"errors"
	"testing"

	"github.com/iliyamo/venue-slot-booking/internal/model"
)

func TestGenerateSlots(t *testing.T) {
	req := BulkSlotRequest{FacilityID: 1, StartDate: "2026-03-01", EndDate: "2026-03-02", StartTime: "09:00", EndTime: "11:00", Amount: 400}
	slots, err := GenerateSlots(req)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 8 {
		t.Fatalf("got %d slots, want 8", len(slots))
	}
	first, last := slots[0], slots[7]
	if first.Date != "2026-03-01" || first.StartTime != "09:00" || first.EndTime != "09:30" {
		t.Fatalf("first slot = %+v", first)
	}
	if last.Date != "2026-03-02" || last.StartTime != "10:30" || last.EndTime != "11:00" {
		t.Fatalf("last slot = %+v", last)
	}
	for i, s := range slots {
		if s.Availability != model.Available || s.Amount != 400 || s.FacilityID != 1 {
			t.Fatalf("slot %d = %+v", i, s)
		}
		if i > 0 && slots[i-1].Overlaps(s) {
			t.Fatalf("slots %d and %d overlap", i-1, i)
		}
	}

	again, _ := GenerateSlots(req)
	for i := range slots {
		if slots[i] != again[i] {
			t.Fatalf("generation is not deterministic at %d", i)
		}
	}
}

func TestGenerateSlotsMidnight(t *testing.T) {
	slots, err := GenerateSlots(BulkSlotRequest{FacilityID: 1, StartDate: "2026-03-01", EndDate: "2026-03-01", StartTime: "23:00", EndTime: "24:00", Availability: model.FillingFast})
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 2 || slots[1].EndTime != "24:00" || slots[1].Availability != model.FillingFast {
		t.Fatalf("slots = %+v", slots)
	}
}

func TestGenerateSlotsRejects(t *testing.T) {
	base := BulkSlotRequest{FacilityID: 1, StartDate: "2026-03-01", EndDate: "2026-03-02", StartTime: "09:00", EndTime: "11:00"}
	cases := []struct {
		name string
		mod  func(r *BulkSlotRequest)
		want error
	}{
		{"off grid start", func(r *BulkSlotRequest) { r.StartTime = "09:15" }, ErrInvalidInterval},
		{"off grid end", func(r *BulkSlotRequest) { r.EndTime = "10:45" }, ErrInvalidInterval},
		{"start equals end", func(r *BulkSlotRequest) { r.EndTime = "09:00" }, ErrInvalidInterval},
		{"start after end", func(r *BulkSlotRequest) { r.StartTime = "12:00" }, ErrInvalidInterval},
		{"reversed dates", func(r *BulkSlotRequest) { r.StartDate = "2026-03-03" }, ErrInvalidInterval},
		{"bad date", func(r *BulkSlotRequest) { r.EndDate = "2026-13-01" }, ErrInvalidInterval},
		{"midnight start", func(r *BulkSlotRequest) { r.StartTime = "24:00"; r.EndTime = "24:00" }, ErrInvalidInterval},
		{"bad clock", func(r *BulkSlotRequest) { r.StartTime = "9:00" }, ErrInvalidInterval},
		{"signed clock", func(r *BulkSlotRequest) { r.EndTime = "+9:30" }, ErrInvalidInterval},
		{"too many days", func(r *BulkSlotRequest) { r.EndDate = "2027-03-02" }, ErrValidation},
		{"negative amount", func(r *BulkSlotRequest) { r.Amount = -1 }, ErrValidation},
		{"booked", func(r *BulkSlotRequest) { r.Availability = model.Booked }, ErrInvalidAvailability},
		{"unknown availability", func(r *BulkSlotRequest) { r.Availability = "open" }, ErrInvalidAvailability},
	}
	for _, tc := range cases {
		req := base
		tc.mod(&req)
		if _, err := GenerateSlots(req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
		if KindOf(tc.want) != KindValidation {
			t.Fatalf("%s: kind = %v", tc.name, KindOf(tc.want))
		}
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in       string
		midnight bool
		want     int
		ok       bool
	}{
		{"00:00", false, 0, true},
		{"09:30", false, 570, true},
		{"23:59", false, 1439, true},
		{"24:00", true, 1440, true},
		{"24:00", false, 0, false},
		{"24:30", true, 0, false},
		{"12:60", false, 0, false},
		{"1200", false, 0, false},
		{"ab:cd", false, 0, false},
		{"+9:30", false, 0, false},
		{"-1:00", false, 0, false},
		{"09:+5", false, 0, false},
		{" 09:00", false, 0, false},
	}
	for _, tc := range cases {
		got, err := parseClock(tc.in, tc.midnight)
		if (err == nil) != tc.ok || (tc.ok && got != tc.want) {
			t.Fatalf("parseClock(%q, %v) = %d, %v", tc.in, tc.midnight, got, err)
		}
	}
}
