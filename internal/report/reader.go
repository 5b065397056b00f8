// Package report builds read-only projections over the allocation ledger
// and the room inventory: stay histories, occupancy timelines, fleet
// occupancy and fee views.
package report

import (
	"context"

	"github.com/iliyamo/hostel-management/internal/model"
)

// StudentFilter narrows ListStudents.
type StudentFilter struct {
	ActiveOnly  bool
	WithoutRoom bool
}

// RoomFilter narrows ListRooms.  Zero values match everything.
type RoomFilter struct {
	Block         string
	RoomID        uint64
	AvailableOnly bool
}

// AllocationFilter narrows ListAllocations.  Zero values match
// everything; Limit 0 means no limit.
type AllocationFilter struct {
	StudentID  uint64
	RoomID     uint64
	ActiveOnly bool
	Limit      int
}

// Reader is the read side of the store.  Lists are returned in a stable
// order: students by id, rooms by block then number, allocations newest
// first, fee configs by effective date descending.
type Reader interface {
	GetStudent(ctx context.Context, id uint64) (model.Student, error)
	ListStudents(ctx context.Context, f StudentFilter) ([]model.Student, error)
	GetRoom(ctx context.Context, id uint64) (model.Room, error)
	ListRooms(ctx context.Context, f RoomFilter) ([]model.Room, error)
	ListAllocations(ctx context.Context, f AllocationFilter) ([]model.Allocation, error)
	ListFeeConfigs(ctx context.Context) ([]model.FeeConfig, error)
	ListLedger(ctx context.Context, studentID uint64) ([]model.FeeLedger, error)
	ListPayments(ctx context.Context, studentID uint64) ([]model.FeePayment, error)
}
