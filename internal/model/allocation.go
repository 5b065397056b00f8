package model

import "time"

// Allocation is one entry of the allocation ledger: a student assigned
// to a room from AllocatedAt until VacatedAt.  An allocation is created
// active and is closed exactly once; closed rows are never reopened, a
// returning student receives a new row.
//
// Fields:
//
//	ID          – primary key identifier.
//	StudentID   – student holding the bed.
//	RoomID      – room the bed belongs to.
//	AllocatedAt – when the student moved in.
//	VacatedAt   – when the student left (nil while active).
//	IsActive    – true until the allocation is vacated.
type Allocation struct {
	ID          uint64     `json:"id"`           // room_allocations.id
	StudentID   uint64     `json:"student_id"`   // room_allocations.student_id
	RoomID      uint64     `json:"room_id"`      // room_allocations.room_id
	AllocatedAt time.Time  `json:"allocated_at"` // room_allocations.allocated_at
	VacatedAt   *time.Time `json:"vacated_at"`   // room_allocations.vacated_at (nullable)
	IsActive    bool       `json:"is_active"`    // room_allocations.is_active
}

// Close marks the allocation vacated at the given instant.
func (a *Allocation) Close(at time.Time) {
	a.IsActive = false
	a.VacatedAt = &at
}
