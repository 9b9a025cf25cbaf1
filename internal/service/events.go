package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-slot-booking/internal/model"
	"github.com/iliyamo/venue-slot-booking/internal/queue"
)

// Notifier delivers booking events to the notification service.
// queue.Publisher satisfies it.
type Notifier interface {
	Publish(ctx context.Context, routingKey string, v any) error
}

const publishTimeout = 5 * time.Second

// Events publishes booking events after a transaction has committed.
// Delivery is fire-and-forget: a broker failure is logged and never fails
// the operation that produced the event.
type Events struct {
	n   Notifier
	log *zap.Logger
	now func() time.Time
	wg  sync.WaitGroup
}

// NewEvents returns an emitter on n.  A nil n discards events.
func NewEvents(n Notifier, log *zap.Logger) *Events {
	return &Events{n: n, log: log, now: time.Now}
}

func (e *Events) emit(key string, b *model.Booking, reason string) {
	if e == nil || e.n == nil {
		return
	}
	ev := queue.BookingEvent{
		Event:         key,
		BookingID:     b.ID,
		UserID:        b.UserID,
		VenueID:       b.VenueID,
		FacilityID:    b.FacilityID,
		SlotIDs:       append([]uint64(nil), b.SlotIDs...),
		BookedDate:    b.BookedDate,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Amount:        b.Amount,
		BookingStatus: string(b.BookingStatus),
		PaymentStatus: string(b.PaymentStatus),
		Reason:        reason,
		OccurredAt:    e.now().UTC().Format(time.RFC3339),
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := e.n.Publish(ctx, key, ev); err != nil {
			e.log.Warn("Events.emit publish failed",
				zap.String("routing_key", key), zap.Uint64("booking_id", ev.BookingID), zap.Error(err))
		}
	}()
}

// Wait blocks until every in-flight publish has returned.
func (e *Events) Wait() {
	if e != nil {
		e.wg.Wait()
	}
}
