package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/venue-slot-booking/internal/model"
)

const bookingColumns = `id, user_id, partner_id, venue_id, facility_id, activity_id, amount,
	start_time, end_time, booked_date, booking_status, payment_status, failure_reason,
	customer_details, payment_details, expires_at, created_at, updated_at`

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	var bookedDate time.Time
	var bookingStatus, paymentStatus string
	var failure sql.NullString
	var customer, payment []byte
	err := row.Scan(
		&b.ID, &b.UserID, &b.PartnerID, &b.VenueID, &b.FacilityID, &b.ActivityID, &b.Amount,
		&b.StartTime, &b.EndTime, &bookedDate, &bookingStatus, &paymentStatus, &failure,
		&customer, &payment, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.BookedDate = bookedDate.Format(dateLayout)
	b.BookingStatus = model.BookingStatus(bookingStatus)
	b.PaymentStatus = model.PaymentStatus(paymentStatus)
	b.FailureReason = failure.String
	if len(customer) > 0 {
		var cd model.CustomerDetails
		if err := json.Unmarshal(customer, &cd); err != nil {
			return nil, err
		}
		b.CustomerDetails = &cd
	}
	if len(payment) > 0 {
		var pd model.PaymentDetails
		if err := json.Unmarshal(payment, &pd); err != nil {
			return nil, err
		}
		b.PaymentDetails = &pd
	}
	return &b, nil
}

// loadBooking reads a booking and its slot ids.  suffix is appended to the
// booking SELECT, e.g. " FOR UPDATE".
func loadBooking(ctx context.Context, q queryer, id uint64, suffix string) (*model.Booking, error) {
	b, err := scanBooking(q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`+suffix, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT slot_id FROM booking_slots WHERE booking_id = ? ORDER BY slot_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	b.SlotIDs = []uint64{}
	for rows.Next() {
		var sid uint64
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		b.SlotIDs = append(b.SlotIDs, sid)
	}
	return b, rows.Err()
}

func nullableJSON(v any, present bool) (any, error) {
	if !present {
		return nil, nil
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(bs), nil
}

// GetBooking loads a booking without locking it.
func (s *MySQLStore) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return loadBooking(ctx, s.db, id, "")
}

// ExpiredBookingIDs lists pending bookings whose hold deadline is at or
// before now, oldest first.
func (s *MySQLStore) ExpiredBookingIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM bookings
		 WHERE booking_status = ? AND payment_status = ? AND expires_at <= ?
		 ORDER BY expires_at LIMIT ?`,
		string(model.BookingPending), string(model.PaymentInitiated), now.UTC(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertBooking creates the booking row and one booking_slots row per
// slot.  The generated id and timestamps are written back to b.
func (t *sqlTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	customer, err := nullableJSON(b.CustomerDetails, b.CustomerDetails != nil)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, partner_id, venue_id, facility_id, activity_id, amount,
			start_time, end_time, booked_date, booking_status, payment_status, customer_details, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.PartnerID, b.VenueID, b.FacilityID, b.ActivityID, b.Amount,
		b.StartTime, b.EndTime, b.BookedDate, string(b.BookingStatus), string(b.PaymentStatus), customer, b.ExpiresAt.UTC(),
	)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)

	query := `INSERT INTO booking_slots (booking_id, slot_id) VALUES `
	args := make([]any, 0, len(b.SlotIDs)*2)
	for i, sid := range b.SlotIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, b.ID, sid)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return translate(err)
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	return nil
}

// LockBooking loads a booking with FOR UPDATE.
func (t *sqlTx) LockBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return loadBooking(ctx, t.tx, id, " FOR UPDATE")
}

// UpdateBookingStatus persists the status fields, failure reason and
// payment details of b.  payment_id carries a unique index, so a payment
// that was already applied to another booking yields ErrDuplicate.
func (t *sqlTx) UpdateBookingStatus(ctx context.Context, b *model.Booking) error {
	payment, err := nullableJSON(b.PaymentDetails, b.PaymentDetails != nil)
	if err != nil {
		return err
	}
	var paymentID, failure any
	if b.PaymentDetails != nil {
		paymentID = b.PaymentDetails.PaymentID
	}
	if b.FailureReason != "" {
		failure = b.FailureReason
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE bookings SET booking_status = ?, payment_status = ?, failure_reason = ?,
			payment_id = ?, payment_details = ?, updated_at = UTC_TIMESTAMP()
		 WHERE id = ?`,
		string(b.BookingStatus), string(b.PaymentStatus), failure, paymentID, payment, b.ID,
	)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	b.UpdatedAt = time.Now().UTC()
	return nil
}
