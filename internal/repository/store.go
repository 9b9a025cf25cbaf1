package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/venue-slot-booking/internal/model"
)

// Store is the persistent slot and booking store.  Reads that do not need
// isolation are methods on Store; everything that mutates slot or booking
// state runs inside InTx.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	ListSlots(ctx context.Context, facilityID uint64, fromDate, toDate string) ([]model.Slot, error)
	GetSlot(ctx context.Context, id uint64) (*model.Slot, error)
	GetFacility(ctx context.Context, id uint64) (*model.Facility, error)
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	ExpiredBookingIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error)
	GetPaymentOrder(ctx context.Context, bookingID uint64) (*model.PaymentOrder, error)
	CreatePaymentOrder(ctx context.Context, o *model.PaymentOrder) error
}

// Tx is the unit of work handed to InTx callbacks.  Lock* methods take
// row locks that are held until the transaction ends.
type Tx interface {
	LockSlots(ctx context.Context, ids []uint64) ([]model.Slot, error)
	UpdateAvailability(ctx context.Context, ids []uint64, from []model.Availability, to model.Availability) (int64, error)
	OverlappingSlots(ctx context.Context, facilityID uint64, fromDate, toDate, start, end string) ([]model.Slot, error)
	InsertSlot(ctx context.Context, s *model.Slot) error
	InsertSlots(ctx context.Context, slots []model.Slot) (int64, error)

	InsertBooking(ctx context.Context, b *model.Booking) error
	LockBooking(ctx context.Context, id uint64) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, b *model.Booking) error
}

// queryer is satisfied by both *sql.DB and *sql.Tx so read helpers can be
// shared between plain reads and locked reads.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQLStore implements Store on top of a MySQL (InnoDB) database.
type MySQLStore struct {
	db         *sql.DB
	maxRetries int
}

// NewMySQLStore returns a store bound to db.  Transactions aborted by a
// deadlock are retried up to three times before ErrLockConflict is
// returned.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db, maxRetries: 3}
}

// DB exposes the underlying handle for health checks.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// InTx runs fn inside a transaction.  The transaction is committed when fn
// returns nil and rolled back otherwise.  Deadlocks abort the whole unit of
// work, so fn is re-run from the start on a fresh transaction.
func (s *MySQLStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err = s.runTx(ctx, fn)
		if !errors.Is(err, ErrLockConflict) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

func (s *MySQLStore) runTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{tx: tx}); err != nil {
		return translate(err)
	}
	if err := tx.Commit(); err != nil {
		return translate(err)
	}
	committed = true
	return nil
}

// sqlTx adapts *sql.Tx to the Tx interface.
type sqlTx struct {
	tx *sql.Tx
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func uintArgs(ids []uint64) []any {
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

const dateLayout = "2006-01-02"
