package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/venue-slot-booking/internal/model"
)

const slotColumns = `id, facility_id, slot_date, start_time, end_time, amount, availability, created_at, updated_at`

// insertBatchSize bounds the number of rows per multi-row INSERT so that
// a year of half-hour slots stays well under max_allowed_packet.
const insertBatchSize = 500

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (model.Slot, error) {
	var s model.Slot
	var date time.Time
	var availability string
	if err := row.Scan(&s.ID, &s.FacilityID, &date, &s.StartTime, &s.EndTime, &s.Amount, &availability, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return model.Slot{}, err
	}
	s.Date = date.Format(dateLayout)
	s.Availability = model.Availability(availability)
	return s, nil
}

func collectSlots(rows *sql.Rows) ([]model.Slot, error) {
	defer rows.Close()
	out := []model.Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListSlots returns the slots of a facility with a date in
// [fromDate, toDate], ordered by date then start time.
func (s *MySQLStore) ListSlots(ctx context.Context, facilityID uint64, fromDate, toDate string) ([]model.Slot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM slots
		 WHERE facility_id = ? AND slot_date BETWEEN ? AND ?
		 ORDER BY slot_date, start_time`,
		facilityID, fromDate, toDate,
	)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// GetSlot loads a single slot.  ErrNotFound is returned when it does not exist.
func (s *MySQLStore) GetSlot(ctx context.Context, id uint64) (*model.Slot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id)
	slot, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// GetFacility reads the facility directory.  The directory is owned by the
// venue catalogue; this store only reads it.
func (s *MySQLStore) GetFacility(ctx context.Context, id uint64) (*model.Facility, error) {
	var f model.Facility
	err := s.db.QueryRowContext(ctx,
		`SELECT id, venue_id, partner_id, activity_id, name FROM facilities WHERE id = ?`, id,
	).Scan(&f.ID, &f.VenueID, &f.PartnerID, &f.ActivityID, &f.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// LockSlots reads the given slots with FOR UPDATE.  Rows are locked in id
// order so that two claims over overlapping sets acquire locks in the same
// order.  Missing ids are simply absent from the result.
func (t *sqlTx) LockSlots(ctx context.Context, ids []uint64) ([]model.Slot, error) {
	if len(ids) == 0 {
		return []model.Slot{}, nil
	}
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id FOR UPDATE`,
		uintArgs(ids)...,
	)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// UpdateAvailability moves the listed slots to `to`, but only those whose
// current availability is one of `from`.  The number of rows changed is
// returned so callers can detect a lost compare-and-swap.
func (t *sqlTx) UpdateAvailability(ctx context.Context, ids []uint64, from []model.Availability, to model.Availability) (int64, error) {
	if len(ids) == 0 || len(from) == 0 {
		return 0, nil
	}
	args := make([]any, 0, 1+len(ids)+len(from))
	args = append(args, string(to))
	args = append(args, uintArgs(ids)...)
	for _, a := range from {
		args = append(args, string(a))
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE slots SET availability = ?, updated_at = UTC_TIMESTAMP()
		 WHERE id IN (`+placeholders(len(ids))+`) AND availability IN (`+placeholders(len(from))+`)`,
		args...,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// OverlappingSlots returns existing slots of the facility between fromDate
// and toDate whose time window intersects [start, end).  The locking read
// also takes gap locks on the (facility_id, slot_date, start_time) index,
// which keeps a concurrent batch from inserting into the same range.
func (t *sqlTx) OverlappingSlots(ctx context.Context, facilityID uint64, fromDate, toDate, start, end string) ([]model.Slot, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM slots
		 WHERE facility_id = ? AND slot_date BETWEEN ? AND ?
		   AND start_time < ? AND end_time > ?
		 ORDER BY slot_date, start_time
		 FOR UPDATE`,
		facilityID, fromDate, toDate, end, start,
	)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// InsertSlot creates one slot and fills in its generated id.
func (t *sqlTx) InsertSlot(ctx context.Context, s *model.Slot) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO slots (facility_id, slot_date, start_time, end_time, amount, availability) VALUES (?, ?, ?, ?, ?, ?)`,
		s.FacilityID, s.Date, s.StartTime, s.EndTime, s.Amount, string(s.Availability),
	)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

// InsertSlots creates slots with multi-row INSERTs of at most
// insertBatchSize rows each and returns the number of rows written.
func (t *sqlTx) InsertSlots(ctx context.Context, slots []model.Slot) (int64, error) {
	var total int64
	for start := 0; start < len(slots); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(slots) {
			end = len(slots)
		}
		batch := slots[start:end]
		query := `INSERT INTO slots (facility_id, slot_date, start_time, end_time, amount, availability) VALUES `
		args := make([]any, 0, len(batch)*6)
		for i, s := range batch {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?)"
			args = append(args, s.FacilityID, s.Date, s.StartTime, s.EndTime, s.Amount, string(s.Availability))
		}
		res, err := t.tx.ExecContext(ctx, query, args...)
		if err != nil {
			return total, translate(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
