package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/venue-slot-booking/internal/model"
)

// GetPaymentOrder returns the order issued for a booking, or ErrNotFound.
func (s *MySQLStore) GetPaymentOrder(ctx context.Context, bookingID uint64) (*model.PaymentOrder, error) {
	var o model.PaymentOrder
	err := s.db.QueryRowContext(ctx,
		`SELECT id, booking_id, amount, currency, receipt, created_at FROM payment_orders WHERE booking_id = ?`,
		bookingID,
	).Scan(&o.ID, &o.BookingID, &o.Amount, &o.Currency, &o.Receipt, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreatePaymentOrder stores a gateway order.  booking_id is unique, so a
// concurrent retry that already stored an order makes this return
// ErrDuplicate.
func (s *MySQLStore) CreatePaymentOrder(ctx context.Context, o *model.PaymentOrder) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_orders (id, booking_id, amount, currency, receipt, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.BookingID, o.Amount, o.Currency, o.Receipt, o.CreatedAt.UTC(),
	)
	return translate(err)
}
