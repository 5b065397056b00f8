package allocation

import (
	"context"
	"time"

	"github.com/iliyamo/hostel-management/internal/model"
)

// Store opens transactions over the room inventory and the allocation
// ledger.  InTx commits when fn returns nil and rolls back otherwise;
// a cancelled context also rolls back.  Implementations map lock wait
// timeouts and deadlocks to ErrContention.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Candidate is an available room annotated with whether it currently
// hosts, through an active allocation, a student of the same year or
// course as the student being placed.
type Candidate struct {
	Room       model.Room
	SameYear   bool
	SameCourse bool
}

// Tx is the set of reads and writes the engine performs inside one
// transaction.  The ...ForUpdate methods take row locks that are held
// until the transaction ends; callers acquire them in the order
// student, allocation, rooms by ascending id.
type Tx interface {
	Student(ctx context.Context, id uint64) (model.Student, error)
	StudentForUpdate(ctx context.Context, id uint64) (model.Student, error)
	SetStudentRoom(ctx context.Context, studentID uint64, room *model.Room) error
	DeactivateStudent(ctx context.Context, studentID uint64) error
	// UnassignedStudents lists active students without a room, by id.
	UnassignedStudents(ctx context.Context) ([]model.Student, error)

	Allocation(ctx context.Context, id uint64) (model.Allocation, error)
	AllocationForUpdate(ctx context.Context, id uint64) (model.Allocation, error)
	// ActiveAllocationForUpdate returns nil when the student has no
	// active allocation.
	ActiveAllocationForUpdate(ctx context.Context, studentID uint64) (*model.Allocation, error)
	InsertAllocation(ctx context.Context, a *model.Allocation) error
	CloseAllocation(ctx context.Context, id uint64, at time.Time) error

	RoomForUpdate(ctx context.Context, id uint64) (model.Room, error)
	// CandidateRooms lists rooms with free capacity.
	CandidateRooms(ctx context.Context, year int, course string) ([]Candidate, error)
	SetOccupancy(ctx context.Context, roomID uint64, occupied int) error
	InsertRoom(ctx context.Context, r *model.Room) error
	// InsertRooms skips rooms whose block and number already exist and
	// returns how many were created.
	InsertRooms(ctx context.Context, rooms []model.Room) (int, error)
	// UpdateRoom also rewrites the current-room fields of the students
	// placed in the room.
	UpdateRoom(ctx context.Context, r model.Room) error
	DeleteRoom(ctx context.Context, id uint64) error

	// EffectiveFee returns nil when no config applies on the given date.
	EffectiveFee(ctx context.Context, on time.Time) (*model.FeeConfig, error)
	InsertFeeLedger(ctx context.Context, l *model.FeeLedger) error
}
