package allocation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/report"
	"github.com/iliyamo/hostel-management/internal/repository/memstore"
)

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	e := newEngine(s)

	r, err := e.CreateRoom(ctx, allocation.RoomInput{Block: " A ", RoomNumber: "101", Capacity: 3})
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
	assert.Equal(t, "A", r.Block)
	assert.Equal(t, 0, r.Occupied)

	_, err = e.CreateRoom(ctx, allocation.RoomInput{Block: "A", RoomNumber: "101", Capacity: 2})
	assert.ErrorIs(t, err, allocation.ErrDuplicateRoom)

	_, err = e.CreateRoom(ctx, allocation.RoomInput{Block: "A", RoomNumber: "102", Capacity: 0})
	assert.ErrorIs(t, err, allocation.ErrInvalidCapacity)
	assert.ErrorIs(t, err, allocation.ErrInvalidInput)

	_, err = e.CreateRoom(ctx, allocation.RoomInput{Block: "", RoomNumber: "102", Capacity: 1})
	assert.ErrorIs(t, err, allocation.ErrInvalidRoom)
}

func TestCreateRoomRange(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	s.AddRoom("B", "3", 2)
	e := newEngine(s)

	res, err := e.CreateRoomRange(ctx, "B", 1, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, allocation.RangeResult{Created: 4, Skipped: 1}, res)

	rooms, err := s.ListRooms(ctx, report.RoomFilter{Block: "B"})
	require.NoError(t, err)
	assert.Len(t, rooms, 5)

	for _, tc := range []struct{ start, end, capacity int }{
		{5, 1, 2},
		{-1, 3, 2},
		{1, 1000, 2},
	} {
		_, err := e.CreateRoomRange(ctx, "B", tc.start, tc.end, tc.capacity)
		assert.ErrorIs(t, err, allocation.ErrInvalidRange, "%+v", tc)
	}
	_, err = e.CreateRoomRange(ctx, "B", 1, 2, 0)
	assert.ErrorIs(t, err, allocation.ErrInvalidCapacity)
}

func TestUpdateRoom(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	r := s.AddRoom("A", "1", 3)
	s.AddRoom("A", "2", 3)
	st := student(s, "s1", 1, "CSE")
	place(s, st, r, jan5)
	place(s, student(s, "s2", 1, "CSE"), r, jan5)
	e := newEngine(s)

	_, err := e.UpdateRoom(ctx, r.ID, allocation.RoomInput{Block: "A", RoomNumber: "1", Capacity: 1})
	assert.ErrorIs(t, err, allocation.ErrCapacityBelowUse)

	_, err = e.UpdateRoom(ctx, r.ID, allocation.RoomInput{Block: "A", RoomNumber: "2", Capacity: 3})
	assert.ErrorIs(t, err, allocation.ErrDuplicateRoom)

	_, err = e.UpdateRoom(ctx, 999, allocation.RoomInput{Block: "A", RoomNumber: "9", Capacity: 3})
	assert.ErrorIs(t, err, allocation.ErrRoomNotFound)

	got, err := e.UpdateRoom(ctx, r.ID, allocation.RoomInput{Block: "B", RoomNumber: "7", Capacity: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Occupied)
	assert.Equal(t, "B-7", got.Label())

	moved, err := s.GetStudent(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", *moved.HostelBlock)
	assert.Equal(t, "7", *moved.RoomNumber)
	assertConsistent(t, s)
}

func TestDeleteRoom(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	occupied := s.AddRoom("A", "1", 2)
	empty := s.AddRoom("A", "2", 2)
	place(s, student(s, "s1", 1, "CSE"), occupied, jan5)
	e := newEngine(s)

	assert.ErrorIs(t, e.DeleteRoom(ctx, occupied.ID), allocation.ErrRoomOccupied)
	assert.ErrorIs(t, e.DeleteRoom(ctx, 999), allocation.ErrRoomNotFound)
	require.NoError(t, e.DeleteRoom(ctx, empty.ID))

	_, err := s.GetRoom(ctx, empty.ID)
	assert.ErrorIs(t, err, allocation.ErrRoomNotFound)
}
