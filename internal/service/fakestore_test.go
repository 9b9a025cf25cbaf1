package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-slot-booking/internal/model"
	"github.com/iliyamo/venue-slot-booking/internal/repository"
)

// fakeStore is an in-memory repository.Store.  A transaction holds the
// store mutex for its whole duration, so transactions are serial, and a
// failed transaction restores the state it started from.
type fakeStore struct {
	mu         sync.Mutex
	facilities map[uint64]model.Facility
	slots      map[uint64]model.Slot
	bookings   map[uint64]model.Booking
	orders     map[uint64]model.PaymentOrder
	nextSlot   uint64
	nextBook   uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		facilities: map[uint64]model.Facility{},
		slots:      map[uint64]model.Slot{},
		bookings:   map[uint64]model.Booking{},
		orders:     map[uint64]model.PaymentOrder{},
	}
}

type fakeSnapshot struct {
	slots    map[uint64]model.Slot
	bookings map[uint64]model.Booking
	orders   map[uint64]model.PaymentOrder
	nextSlot uint64
	nextBook uint64
}

func (f *fakeStore) snapshot() fakeSnapshot {
	s := fakeSnapshot{
		slots:    make(map[uint64]model.Slot, len(f.slots)),
		bookings: make(map[uint64]model.Booking, len(f.bookings)),
		orders:   make(map[uint64]model.PaymentOrder, len(f.orders)),
		nextSlot: f.nextSlot,
		nextBook: f.nextBook,
	}
	for k, v := range f.slots {
		s.slots[k] = v
	}
	for k, v := range f.bookings {
		s.bookings[k] = copyBooking(v)
	}
	for k, v := range f.orders {
		s.orders[k] = v
	}
	return s
}

func (f *fakeStore) restore(s fakeSnapshot) {
	f.slots, f.bookings, f.orders = s.slots, s.bookings, s.orders
	f.nextSlot, f.nextBook = s.nextSlot, s.nextBook
}

func copyBooking(b model.Booking) model.Booking {
	b.SlotIDs = append([]uint64(nil), b.SlotIDs...)
	if b.CustomerDetails != nil {
		cd := *b.CustomerDetails
		b.CustomerDetails = &cd
	}
	if b.PaymentDetails != nil {
		pd := *b.PaymentDetails
		b.PaymentDetails = &pd
	}
	return b
}

func (f *fakeStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snapshot()
	if err := fn(fakeTx{f}); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeStore) sortedSlots(keep func(model.Slot) bool) []model.Slot {
	out := []model.Slot{}
	for _, s := range f.slots {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (f *fakeStore) ListSlots(ctx context.Context, facilityID uint64, fromDate, toDate string) ([]model.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedSlots(func(s model.Slot) bool {
		return s.FacilityID == facilityID && s.Date >= fromDate && s.Date <= toDate
	}), nil
}

func (f *fakeStore) GetSlot(ctx context.Context, id uint64) (*model.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (f *fakeStore) GetFacility(ctx context.Context, id uint64) (*model.Facility, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fac, ok := f.facilities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &fac, nil
}

func (f *fakeStore) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	b = copyBooking(b)
	return &b, nil
}

func (f *fakeStore) ExpiredBookingIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []uint64{}
	for id, b := range f.bookings {
		if b.AwaitingPayment() && !b.ExpiresAt.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeStore) GetPaymentOrder(ctx context.Context, bookingID uint64) (*model.PaymentOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[bookingID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (f *fakeStore) CreatePaymentOrder(ctx context.Context, o *model.PaymentOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[o.BookingID]; ok {
		return repository.ErrDuplicate
	}
	f.orders[o.BookingID] = *o
	return nil
}

type fakeTx struct{ f *fakeStore }

func (t fakeTx) LockSlots(ctx context.Context, ids []uint64) ([]model.Slot, error) {
	sorted := append([]uint64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := []model.Slot{}
	for _, id := range sorted {
		if s, ok := t.f.slots[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (t fakeTx) UpdateAvailability(ctx context.Context, ids []uint64, from []model.Availability, to model.Availability) (int64, error) {
	var n int64
	for _, id := range ids {
		s, ok := t.f.slots[id]
		if !ok {
			continue
		}
		for _, a := range from {
			if s.Availability == a {
				s.Availability = to
				t.f.slots[id] = s
				n++
				break
			}
		}
	}
	return n, nil
}

func (t fakeTx) OverlappingSlots(ctx context.Context, facilityID uint64, fromDate, toDate, start, end string) ([]model.Slot, error) {
	return t.f.sortedSlots(func(s model.Slot) bool {
		return s.FacilityID == facilityID && s.Date >= fromDate && s.Date <= toDate &&
			s.StartTime < end && s.EndTime > start
	}), nil
}

func (t fakeTx) insert(s *model.Slot) error {
	for _, e := range t.f.slots {
		if e.FacilityID == s.FacilityID && e.Date == s.Date && e.StartTime == s.StartTime {
			return repository.ErrDuplicate
		}
	}
	t.f.nextSlot++
	s.ID = t.f.nextSlot
	t.f.slots[s.ID] = *s
	return nil
}

func (t fakeTx) InsertSlot(ctx context.Context, s *model.Slot) error { return t.insert(s) }

func (t fakeTx) InsertSlots(ctx context.Context, slots []model.Slot) (int64, error) {
	for i := range slots {
		if err := t.insert(&slots[i]); err != nil {
			return int64(i), err
		}
	}
	return int64(len(slots)), nil
}

func (t fakeTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	t.f.nextBook++
	b.ID = t.f.nextBook
	t.f.bookings[b.ID] = copyBooking(*b)
	return nil
}

func (t fakeTx) LockBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, ok := t.f.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	b = copyBooking(b)
	return &b, nil
}

func (t fakeTx) UpdateBookingStatus(ctx context.Context, b *model.Booking) error {
	if _, ok := t.f.bookings[b.ID]; !ok {
		return repository.ErrNotFound
	}
	if b.PaymentDetails != nil {
		for id, other := range t.f.bookings {
			if id != b.ID && other.PaymentDetails != nil && other.PaymentDetails.PaymentID == b.PaymentDetails.PaymentID {
				return repository.ErrDuplicate
			}
		}
	}
	t.f.bookings[b.ID] = copyBooking(*b)
	return nil
}

// helpers shared by the service tests

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingNotifier) Publish(ctx context.Context, key string, v any) error {
	r.mu.Lock()
	r.keys = append(r.keys, key)
	r.mu.Unlock()
	return nil
}

func (r *recordingNotifier) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

const (
	testFacility = 1
	testVenue    = 10
	testPartner  = 20
	testActivity = 30
	testUser     = 100
)

// seed adds the test facility and count 30 minute slots from 09:00 on
// 2026-03-02 at 500 each.
func seed(t *testing.T, f *fakeStore, count int) []uint64 {
	t.Helper()
	f.facilities[testFacility] = model.Facility{ID: testFacility, VenueID: testVenue, PartnerID: testPartner, ActivityID: testActivity, Name: "Court 1"}
	ids := make([]uint64, 0, count)
	for i := 0; i < count; i++ {
		start := 9*60 + i*SlotInterval
		s := model.Slot{
			FacilityID:   testFacility,
			Date:         "2026-03-02",
			StartTime:    formatClock(start),
			EndTime:      formatClock(start + SlotInterval),
			Amount:       500,
			Availability: model.Available,
		}
		if err := (fakeTx{f}).insert(&s); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, s.ID)
	}
	return ids
}

func reserveRequest(ids []uint64, amount int64) ReserveRequest {
	return ReserveRequest{
		UserID: testUser, PartnerID: testPartner, VenueID: testVenue, FacilityID: testFacility, ActivityID: testActivity,
		SlotIDs: ids, Amount: amount,
	}
}

func testLogger() *zap.Logger { return zap.NewNop() }
