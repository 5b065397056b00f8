// Package repository implements persistence on MySQL through
// database/sql.  Repositories expose plain methods for single statements
// and ...Tx methods that run inside a caller-owned transaction; Store
// ties the latter together for the allocation engine.
//
// Driver errors are translated into the allocation package's error kinds
// so that handlers can classify them with errors.Is: duplicate keys
// become conflicts, lock wait timeouts and deadlocks become
// allocation.ErrContention.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/hostel-management/internal/allocation"
)

// MySQL server error numbers handled by this package.
const (
	errDupEntry         = 1062
	errLockWaitTimeout  = 1205
	errDeadlock         = 1213
	errRowIsReferenced2 = 1451
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate it into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// Sentinels for directory records outside the allocation engine.
var (
	ErrEmailExists          = fmt.Errorf("%w: email already exists", allocation.ErrConflict)
	ErrRegisterNumberExists = fmt.Errorf("%w: register number already exists", allocation.ErrConflict)
	ErrFeeConfigExists      = fmt.Errorf("%w: fee already exists for this date", allocation.ErrConflict)
	ErrComplaintNotFound    = fmt.Errorf("%w: complaint not found", allocation.ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("%w: user not found", allocation.ErrNotFound)
	ErrTokenInvalid         = errors.New("invalid or expired refresh token")
)

// mysqlCode returns the server error number of err, or 0.
func mysqlCode(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// driverError reports a classified driver error under a fixed message.
// The driver's own text, which names tables and keys, is reachable
// through Unwrap and through %+v for logs only.
type driverError struct {
	kind  error
	msg   string
	cause error
}

func (e *driverError) Error() string   { return e.msg }
func (e *driverError) Unwrap() []error { return []error{e.kind, e.cause} }

func (e *driverError) Format(f fmt.State, verb rune) {
	if verb == 'v' && f.Flag('+') {
		fmt.Fprintf(f, "%s: %v", e.msg, e.cause)
		return
	}
	fmt.Fprint(f, e.msg)
}

// mapErr classifies driver errors.  dup replaces a duplicate-key error
// and referenced replaces a foreign key violation on delete; either may
// be nil to fall back to a generic allocation.ErrConflict.
func mapErr(err, dup, referenced error) error {
	if err == nil {
		return nil
	}
	switch mysqlCode(err) {
	case errDupEntry:
		if dup != nil {
			return dup
		}
		return &driverError{kind: allocation.ErrConflict, msg: "conflict: record already exists", cause: err}
	case errRowIsReferenced2:
		if referenced != nil {
			return referenced
		}
		return &driverError{kind: allocation.ErrConflict, msg: "conflict: record is still referenced", cause: err}
	case errLockWaitTimeout, errDeadlock:
		return &driverError{kind: allocation.ErrContention, msg: "contention: lock not acquired", cause: err}
	}
	return err
}

// notFound turns sql.ErrNoRows into nf.
func notFound(err, nf error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nf
	}
	return mapErr(err, nil, nil)
}
