package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-slot-booking/internal/model"
	"github.com/iliyamo/venue-slot-booking/internal/repository"
)

// OrderGateway creates payment orders at the payment provider.
type OrderGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*model.PaymentOrder, error)
}

// DefaultCurrency is used when OrderConfig.Currency is empty.
const DefaultCurrency = "INR"

// OrderConfig tunes OrderService.
type OrderConfig struct {
	Currency string
	Now      func() time.Time
}

// OrderService issues one gateway order per pending booking.
type OrderService struct {
	store   repository.Store
	gateway OrderGateway
	events  *Events
	log     *zap.Logger
	cfg     OrderConfig
}

func NewOrderService(store repository.Store, gw OrderGateway, events *Events, log *zap.Logger, cfg OrderConfig) *OrderService {
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &OrderService{store: store, gateway: gw, events: events, log: log, cfg: cfg}
}

// Receipt is the merchant reference sent with a booking's order.
func Receipt(bookingID uint64) string {
	return "booking_" + strconv.FormatUint(bookingID, 10)
}

// CreateOrder returns the payment order of a pending booking, creating it
// at the gateway on first use.  Repeated calls return the same order.
func (s *OrderService) CreateOrder(ctx context.Context, bookingID uint64) (*model.PaymentOrder, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := expireInline(ctx, s.store, s.events, s.log, b, s.cfg.Now()); err != nil {
		return nil, err
	}
	if !b.AwaitingPayment() {
		return nil, ErrBookingNotPending
	}

	existing, err := s.store.GetPaymentOrder(ctx, bookingID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// No transaction is open here: the gateway call may be slow.
	order, err := s.gateway.CreateOrder(ctx, b.Amount, s.cfg.Currency, Receipt(bookingID))
	if err != nil {
		s.log.Error("OrderService.CreateOrder gateway failed", zap.Uint64("booking_id", bookingID), zap.Error(err))
		return nil, fmt.Errorf("create gateway order: %w", err)
	}
	order.BookingID = bookingID
	if err := s.store.CreatePaymentOrder(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// a concurrent call stored its order first; that one wins
			s.log.Info("OrderService.CreateOrder lost race, reusing stored order", zap.Uint64("booking_id", bookingID))
			return s.store.GetPaymentOrder(ctx, bookingID)
		}
		return nil, err
	}
	s.log.Info("OrderService.CreateOrder order created",
		zap.Uint64("booking_id", bookingID), zap.String("order_id", order.ID), zap.Int64("amount", order.Amount))
	return order, nil
}
