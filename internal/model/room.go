package model

import (
	"fmt"
	"time"
)

// Room is a physical hostel room.  Rooms are uniquely identified by
// their block and room number.  Occupied is a denormalized count of the
// active allocations that reference the room; it is only ever changed
// inside the same transaction as the allocation rows it mirrors.
//
// Fields:
//
//	ID         – primary key identifier.
//	Block      – hostel block the room belongs to.
//	RoomNumber – number of the room within the block.
//	Capacity   – number of beds, always at least one.
//	Occupied   – active allocations referencing the room.
//	CreatedAt  – creation timestamp.
type Room struct {
	ID         uint64    `json:"id"`          // rooms.id
	Block      string    `json:"block"`       // rooms.block
	RoomNumber string    `json:"room_number"` // rooms.room_number
	Capacity   int       `json:"capacity"`    // rooms.capacity
	Occupied   int       `json:"occupied"`    // rooms.occupied
	CreatedAt  time.Time `json:"created_at"`  // rooms.created_at
}

// CapacityRemaining returns the number of free beds.
func (r Room) CapacityRemaining() int {
	if r.Occupied >= r.Capacity {
		return 0
	}
	return r.Capacity - r.Occupied
}

// IsAvailable reports whether at least one bed is free.
func (r Room) IsAvailable() bool { return r.Occupied < r.Capacity }

// Label renders the room as "BLOCK-NUMBER".
func (r Room) Label() string { return fmt.Sprintf("%s-%s", r.Block, r.RoomNumber) }
