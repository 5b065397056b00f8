package allocation

import "errors"

// Error kinds.  Every error returned by the engine matches exactly one of
// these through errors.Is, which is how the HTTP layer maps them to
// status codes.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	// ErrContention reports a lock wait timeout or deadlock.  The
	// transaction has been rolled back and the call may be retried.
	ErrContention = errors.New("contention")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error { return &kindError{kind: kind, msg: msg} }

var (
	ErrStudentNotFound    = newError(ErrNotFound, "student not found")
	ErrRoomNotFound       = newError(ErrNotFound, "room not found")
	ErrAllocationNotFound = newError(ErrNotFound, "allocation not found")

	ErrStudentInactive  = newError(ErrConflict, "student is inactive")
	ErrAlreadyAssigned  = newError(ErrConflict, "student already has a room")
	ErrSameRoom         = newError(ErrAlreadyAssigned, "student is already in this room")
	ErrRoomFull         = newError(ErrConflict, "room is already full")
	ErrNoRoomAvailable  = newError(ErrConflict, "no rooms available")
	ErrDuplicateRoom    = newError(ErrConflict, "room with this block and number already exists")
	ErrRoomOccupied     = newError(ErrConflict, "room has active allocations")
	ErrRoomHasHistory   = newError(ErrConflict, "room has allocation history")
	ErrCapacityBelowUse = newError(ErrConflict, "capacity cannot be lower than current occupancy")

	ErrInvalidCapacity = newError(ErrInvalidInput, "capacity must be at least 1")
	ErrInvalidRoom     = newError(ErrInvalidInput, "block and room number are required")
	ErrInvalidRange    = newError(ErrInvalidInput, "invalid room number range")
)

// Retryable reports whether err is a contention failure.
func Retryable(err error) bool { return errors.Is(err, ErrContention) }
