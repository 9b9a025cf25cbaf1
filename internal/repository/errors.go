// Package repository defines error types that are reused across the
// stores.  These sentinel values allow the service layer to distinguish
// between missing rows, uniqueness violations and lock contention without
// knowing about MySQL error numbers.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by primary key matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key, e.g. a
// second payment order for the same booking or a second slot starting at
// the same time on the same facility and date.
var ErrDuplicate = errors.New("duplicate")

// ErrLockConflict is returned when MySQL aborted the transaction because
// of a deadlock or a lock wait timeout and retries were exhausted.
var ErrLockConflict = errors.New("lock conflict")

const (
	mysqlErrDuplicateEntry = 1062
	mysqlErrLockWaitTimout = 1205
	mysqlErrDeadlock       = 1213
)

// translate maps driver errors onto the sentinels above.  Errors that are
// not recognised are returned unchanged.
func translate(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case mysqlErrDuplicateEntry:
		return ErrDuplicate
	case mysqlErrDeadlock, mysqlErrLockWaitTimout:
		return ErrLockConflict
	}
	return err
}
