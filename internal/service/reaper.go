package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-slot-booking/internal/model"
	"github.com/iliyamo/venue-slot-booking/internal/queue"
	"github.com/iliyamo/venue-slot-booking/internal/repository"
)

// Locker grants a short-lived lease so only one replica sweeps per tick.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

const reaperLockKey = "lock:booking-reaper"

// ReaperConfig tunes Reaper.
type ReaperConfig struct {
	Interval  time.Duration
	BatchSize int
	Now       func() time.Time
}

// Reaper expires pending bookings whose hold deadline has passed and
// returns their slots to the pool.
type Reaper struct {
	store  repository.Store
	locker Locker
	events *Events
	log    *zap.Logger
	cfg    ReaperConfig
}

// NewReaper returns a reaper.  locker may be nil, in which case every
// replica sweeps; the per-booking transaction keeps that safe.
func NewReaper(store repository.Store, locker Locker, events *Events, log *zap.Logger, cfg ReaperConfig) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reaper{store: store, locker: locker, events: events, log: log, cfg: cfg}
}

// Run sweeps every Interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	r.log.Info("Reaper.Run started", zap.Duration("interval", r.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("Reaper.Run stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("Reaper.Sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep expires one batch of overdue bookings and returns how many it
// expired.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	if r.locker != nil {
		ok, err := r.locker.TryLock(ctx, reaperLockKey, r.cfg.Interval)
		if err != nil {
			// lock store down: sweep anyway
			r.log.Warn("Reaper.Sweep lock unavailable", zap.Error(err))
		} else if !ok {
			return 0, nil
		}
	}

	now := r.cfg.Now()
	ids, err := r.store.ExpiredBookingIDs(ctx, now, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, id := range ids {
		b, ok, err := expireBooking(ctx, r.store, id, now)
		if err != nil {
			r.log.Error("Reaper.Sweep expire failed", zap.Uint64("booking_id", id), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		count++
		r.events.emit(queue.KeyBookingExpired, b, model.FailureExpired)
	}
	if count > 0 {
		r.log.Info("Reaper.Sweep expired bookings", zap.Int("count", count))
	}
	return count, nil
}
