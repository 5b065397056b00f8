package allocation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/queue"
	"github.com/iliyamo/hostel-management/internal/report"
	"github.com/iliyamo/hostel-management/internal/repository/memstore"
)

var jan5 = time.Date(2026, 1, 5, 15, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []queue.AllocationEvent
	fail   bool
}

func (r *recorder) PublishAllocationEvent(_ context.Context, ev queue.AllocationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("broker down")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func newEngine(s *memstore.Store, opts ...allocation.Option) *allocation.Engine {
	opts = append([]allocation.Option{allocation.WithClock(func() time.Time { return jan5 })}, opts...)
	return allocation.NewEngine(s, zap.NewNop(), opts...)
}

func student(s *memstore.Store, name string, year int, course string) model.Student {
	return s.AddStudent(model.Student{Name: name, RegisterNumber: "REG-" + name, Year: year, Course: course, IsActive: true})
}

func place(s *memstore.Store, st model.Student, room model.Room, at time.Time) model.Allocation {
	return s.AddAllocation(model.Allocation{StudentID: st.ID, RoomID: room.ID, AllocatedAt: at, IsActive: true})
}

func room(t *testing.T, s *memstore.Store, id uint64) model.Room {
	t.Helper()
	r, err := s.GetRoom(context.Background(), id)
	require.NoError(t, err)
	return r
}

// assertConsistent checks that counters, ledger and student projections
// agree with each other.
func assertConsistent(t *testing.T, s *memstore.Store) {
	t.Helper()
	ctx := context.Background()
	rooms, err := s.ListRooms(ctx, report.RoomFilter{})
	require.NoError(t, err)
	active, err := s.ListAllocations(ctx, report.AllocationFilter{ActiveOnly: true})
	require.NoError(t, err)
	students, err := s.ListStudents(ctx, report.StudentFilter{})
	require.NoError(t, err)

	perRoom := map[uint64]int{}
	byStudent := map[uint64]model.Allocation{}
	for _, a := range active {
		perRoom[a.RoomID]++
		_, dup := byStudent[a.StudentID]
		assert.False(t, dup, "student %d has two active allocations", a.StudentID)
		byStudent[a.StudentID] = a
	}
	for _, r := range rooms {
		assert.GreaterOrEqual(t, r.Occupied, 0, r.Label())
		assert.LessOrEqual(t, r.Occupied, r.Capacity, r.Label())
		assert.Equal(t, perRoom[r.ID], r.Occupied, r.Label())
	}
	for _, st := range students {
		a, ok := byStudent[st.ID]
		if !ok {
			assert.Nil(t, st.RoomID, "student %d", st.ID)
			continue
		}
		require.NotNil(t, st.RoomID, "student %d", st.ID)
		assert.Equal(t, a.RoomID, *st.RoomID)
	}
}

func TestAutoAssignSkipsFullRoom(t *testing.T) {
	s := memstore.New()
	roomA := s.AddRoom("A", "101", 2)
	roomB := s.AddRoom("B", "101", 2)
	for _, name := range []string{"b1", "b2"} {
		place(s, student(s, name, 1, "CSE"), roomB, jan5.AddDate(0, 0, -3))
	}
	e := newEngine(s)

	res, err := e.AutoAssign(context.Background(), student(s, "new", 1, "CSE").ID)
	require.NoError(t, err)
	assert.Equal(t, roomA.ID, res.Room.ID)
	assert.Equal(t, 2, room(t, s, roomB.ID).Occupied)
	assertConsistent(t, s)
}

// lockTracker records the order in which a transaction locks rooms.
type lockTracker struct {
	*memstore.Store
	mu    sync.Mutex
	rooms []uint64
}

func (l *lockTracker) InTx(ctx context.Context, fn func(tx allocation.Tx) error) error {
	return l.Store.InTx(ctx, func(tx allocation.Tx) error { return fn(trackedTx{Tx: tx, l: l}) })
}

type trackedTx struct {
	allocation.Tx
	l *lockTracker
}

func (t trackedTx) RoomForUpdate(ctx context.Context, id uint64) (model.Room, error) {
	t.l.mu.Lock()
	t.l.rooms = append(t.l.rooms, id)
	t.l.mu.Unlock()
	return t.Tx.RoomForUpdate(ctx, id)
}

func TestAutoAssignLocksRoomsByAscendingID(t *testing.T) {
	s := memstore.New()
	empty := s.AddRoom("A", "101", 3)
	shared := s.AddRoom("A", "102", 3)
	place(s, student(s, "peer", 1, "CSE"), shared, jan5.AddDate(0, 0, -3))
	lt := &lockTracker{Store: s}
	e := allocation.NewEngine(lt, zap.NewNop(), allocation.WithClock(func() time.Time { return jan5 }))

	res, err := e.AutoAssign(context.Background(), student(s, "new", 1, "MECH").ID)
	require.NoError(t, err)
	assert.Equal(t, shared.ID, res.Room.ID, "same-year room ranks first")
	assert.Equal(t, []uint64{empty.ID, shared.ID}, lt.rooms)
	assertConsistent(t, s)
}

func TestAutoAssignPickAttemptsBoundsShortlist(t *testing.T) {
	s := memstore.New()
	for i := 1; i <= 4; i++ {
		s.AddRoom("A", fmt.Sprint(i), 2)
	}
	lt := &lockTracker{Store: s}
	e := allocation.NewEngine(lt, zap.NewNop(), allocation.WithPickAttempts(2))

	_, err := e.AutoAssign(context.Background(), student(s, "new", 1, "CSE").ID)
	require.NoError(t, err)
	assert.Len(t, lt.rooms, 2)
}

func TestFindCandidateRoomSameYearBeatsEmptyRoom(t *testing.T) {
	s := memstore.New()
	roomA := s.AddRoom("A", "101", 2)
	roomB := s.AddRoom("B", "101", 2)
	roomC := s.AddRoom("C", "101", 2)
	for _, name := range []string{"b1", "b2"} {
		place(s, student(s, name, 1, "CSE"), roomB, jan5)
	}
	place(s, student(s, "c1", 1, "CSE"), roomC, jan5)
	e := newEngine(s)

	st := student(s, "new", 1, "MECH")
	got, err := e.FindCandidateRoom(context.Background(), st.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, roomC.ID, got.ID)
	assert.NotEqual(t, roomA.ID, got.ID)

	for i := 0; i < 5; i++ {
		again, err := e.FindCandidateRoom(context.Background(), st.ID)
		require.NoError(t, err)
		assert.Equal(t, got.ID, again.ID)
	}
}

func TestFindCandidateRoomIgnoresVacatedOccupants(t *testing.T) {
	s := memstore.New()
	roomA := s.AddRoom("A", "101", 3)
	roomB := s.AddRoom("B", "101", 3)
	past := s.AddStudent(model.Student{Name: "old", Year: 2, Course: "MECH"})
	vacated := jan5.AddDate(0, 0, -10)
	s.AddAllocation(model.Allocation{StudentID: past.ID, RoomID: roomA.ID, AllocatedAt: vacated.AddDate(0, -1, 0), VacatedAt: &vacated})
	place(s, student(s, "cur", 3, "ECE"), roomA, jan5)
	e := newEngine(s)

	got, err := e.FindCandidateRoom(context.Background(), student(s, "new", 2, "MECH").ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	// Room A only matched through a vacated allocation, so the emptier
	// room B wins.
	assert.Equal(t, roomB.ID, got.ID)
}

func TestFindCandidateRoomSameCourseTier(t *testing.T) {
	s := memstore.New()
	s.AddRoom("A", "101", 3)
	roomB := s.AddRoom("B", "101", 3)
	place(s, student(s, "b1", 4, "MECH"), roomB, jan5)
	e := newEngine(s)

	st := student(s, "new", 1, "MECH")
	got, err := e.FindCandidateRoom(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, roomB.ID, got.ID)
}

func TestFindCandidateRoomNone(t *testing.T) {
	s := memstore.New()
	r := s.AddRoom("A", "101", 1)
	place(s, student(s, "a1", 1, "CSE"), r, jan5)
	e := newEngine(s)

	got, err := e.FindCandidateRoom(context.Background(), student(s, "new", 1, "CSE").ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAutoAssignErrors(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	r := s.AddRoom("A", "101", 1)
	e := newEngine(s)

	_, err := e.AutoAssign(ctx, 999)
	assert.ErrorIs(t, err, allocation.ErrStudentNotFound)
	assert.ErrorIs(t, err, allocation.ErrNotFound)

	inactive := s.AddStudent(model.Student{Name: "gone", Year: 1})
	_, err = e.AutoAssign(ctx, inactive.ID)
	assert.ErrorIs(t, err, allocation.ErrStudentInactive)

	placed := student(s, "placed", 1, "CSE")
	place(s, placed, r, jan5)
	_, err = e.AutoAssign(ctx, placed.ID)
	assert.ErrorIs(t, err, allocation.ErrAlreadyAssigned)

	_, err = e.AutoAssign(ctx, student(s, "late", 1, "CSE").ID)
	assert.ErrorIs(t, err, allocation.ErrNoRoomAvailable)
	assert.ErrorIs(t, err, allocation.ErrConflict)

	assertConsistent(t, s)
}

func TestAllocate(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	r := s.AddRoom("A", "101", 1)
	st := student(s, "s1", 1, "CSE")
	rec := &recorder{}
	e := newEngine(s, allocation.WithPublisher(rec))

	res, err := e.Allocate(ctx, st.ID, r.ID)
	require.NoError(t, err)
	assert.True(t, res.Allocation.IsActive)
	assert.Equal(t, 1, res.Room.Occupied)
	assert.Equal(t, []string{queue.EventAllocated}, rec.types())

	got, err := s.GetStudent(ctx, st.ID)
	require.NoError(t, err)
	require.NotNil(t, got.HostelBlock)
	assert.Equal(t, "A", *got.HostelBlock)
	assert.Equal(t, "101", *got.RoomNumber)

	assertConsistent(t, s)
}

func TestAllocateErrors(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	full := s.AddRoom("A", "101", 1)
	free := s.AddRoom("A", "102", 2)
	place(s, student(s, "a1", 1, "CSE"), full, jan5)
	e := newEngine(s)

	inactive := s.AddStudent(model.Student{Name: "gone"})
	_, err := e.Allocate(ctx, inactive.ID, 12345)
	assert.ErrorIs(t, err, allocation.ErrStudentInactive)

	st := student(s, "s", 1, "CSE")
	_, err = e.Allocate(ctx, st.ID, 12345)
	assert.ErrorIs(t, err, allocation.ErrRoomNotFound)

	_, err = e.Allocate(ctx, st.ID, full.ID)
	assert.ErrorIs(t, err, allocation.ErrRoomFull)

	_, err = e.Allocate(ctx, st.ID, free.ID)
	require.NoError(t, err)
	_, err = e.Allocate(ctx, st.ID, free.ID)
	assert.ErrorIs(t, err, allocation.ErrAlreadyAssigned)

	assert.Equal(t, 1, room(t, s, free.ID).Occupied)
	assertConsistent(t, s)
}

func TestVacateIsIdempotentAndBills(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	s.AddFeeConfig(model.FeeConfig{DailyFee: decimal.NewFromInt(300), EffectiveFrom: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)})
	r := s.AddRoom("A", "101", 2)
	st := student(s, "s1", 1, "CSE")
	a := place(s, st, r, time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	rec := &recorder{}
	e := newEngine(s, allocation.WithPublisher(rec))

	res, err := e.Vacate(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, res.AlreadyVacated)
	assert.False(t, res.Allocation.IsActive)
	require.NotNil(t, res.Allocation.VacatedAt)
	assert.Equal(t, 0, res.PreviousRoom.Occupied)
	require.NotNil(t, res.Ledger)
	assert.Equal(t, 5, res.Ledger.Days)
	assert.Equal(t, "1500", res.Ledger.Amount.String())

	again, err := e.Vacate(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyVacated)
	assert.Nil(t, again.Ledger)

	assert.Equal(t, 0, room(t, s, r.ID).Occupied)
	ledger, err := s.ListLedger(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)
	assert.Equal(t, []string{queue.EventVacated}, rec.types())
	assertConsistent(t, s)
}

func TestVacateSameDayBillsOneDay(t *testing.T) {
	s := memstore.New()
	s.AddFeeConfig(model.FeeConfig{DailyFee: decimal.NewFromInt(300), EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	r := s.AddRoom("A", "101", 2)
	a := place(s, student(s, "s1", 1, "CSE"), r, jan5.Add(-time.Hour))
	e := newEngine(s)

	res, err := e.Vacate(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Ledger)
	assert.Equal(t, 1, res.Ledger.Days)
	assert.Equal(t, "300", res.Ledger.Amount.String())
}

func TestVacateWithoutFeeConfigSkipsLedger(t *testing.T) {
	s := memstore.New()
	r := s.AddRoom("A", "101", 2)
	a := place(s, student(s, "s1", 1, "CSE"), r, jan5)
	e := newEngine(s)

	res, err := e.Vacate(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Ledger)
}

func TestVacateNotFound(t *testing.T) {
	e := newEngine(memstore.New())
	_, err := e.Vacate(context.Background(), 42)
	assert.ErrorIs(t, err, allocation.ErrAllocationNotFound)
}

func TestVacateClampsDriftedCounter(t *testing.T) {
	s := memstore.New()
	r := s.AddRoom("A", "101", 2)
	a := place(s, student(s, "s1", 1, "CSE"), r, jan5)
	s.SetOccupancy(r.ID, 0)
	e := newEngine(s)

	_, err := e.Vacate(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, room(t, s, r.ID).Occupied)
}

func TestTransferIntoFullRoomChangesNothing(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	x := s.AddRoom("X", "1", 3)
	y := s.AddRoom("Y", "1", 2)
	mover := student(s, "mover", 1, "CSE")
	before := place(s, mover, x, jan5.AddDate(0, 0, -7))
	place(s, student(s, "x2", 1, "CSE"), x, jan5)
	place(s, student(s, "x3", 1, "CSE"), x, jan5)
	place(s, student(s, "y1", 1, "CSE"), y, jan5)
	place(s, student(s, "y2", 1, "CSE"), y, jan5)
	e := newEngine(s)

	_, err := e.Transfer(ctx, mover.ID, y.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, allocation.ErrRoomFull)
	assert.ErrorIs(t, err, allocation.ErrConflict)

	assert.Equal(t, 3, room(t, s, x.ID).Occupied)
	assert.Equal(t, 2, room(t, s, y.ID).Occupied)
	active, err := s.ListAllocations(ctx, report.AllocationFilter{StudentID: mover.ID, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, before, active[0])
	assertConsistent(t, s)
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	s.AddFeeConfig(model.FeeConfig{DailyFee: decimal.NewFromInt(100), EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	// Created in this order so the destination has the lower id.
	to := s.AddRoom("B", "2", 2)
	from := s.AddRoom("A", "1", 2)
	st := student(s, "s1", 1, "CSE")
	old := place(s, st, from, time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC))
	rec := &recorder{}
	e := newEngine(s, allocation.WithPublisher(rec))

	res, err := e.Transfer(ctx, st.ID, to.ID)
	require.NoError(t, err)
	assert.Equal(t, to.ID, res.Room.ID)
	assert.Equal(t, 1, res.Room.Occupied)
	require.NotNil(t, res.PreviousRoom)
	assert.Equal(t, from.ID, res.PreviousRoom.ID)
	assert.Equal(t, 0, res.PreviousRoom.Occupied)
	require.NotNil(t, res.Ledger)
	assert.Equal(t, old.ID, res.Ledger.AllocationID)
	assert.Equal(t, 3, res.Ledger.Days)

	history, err := s.ListAllocations(ctx, report.AllocationFilter{StudentID: st.ID})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].IsActive)
	assert.False(t, history[1].IsActive)

	require.Len(t, rec.events, 1)
	assert.Equal(t, queue.EventTransferred, rec.events[0].Type)
	assert.Equal(t, "A-1", rec.events[0].FromRoom)
	assert.Equal(t, "B-2", rec.events[0].RoomLabel)
	assertConsistent(t, s)
}

func TestTransferWithoutActiveAllocationAllocates(t *testing.T) {
	s := memstore.New()
	r := s.AddRoom("A", "1", 2)
	st := student(s, "s1", 1, "CSE")
	e := newEngine(s)

	res, err := e.Transfer(context.Background(), st.ID, r.ID)
	require.NoError(t, err)
	assert.Nil(t, res.PreviousRoom)
	assert.Equal(t, 1, res.Room.Occupied)
	assertConsistent(t, s)
}

func TestTransferErrors(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	r := s.AddRoom("A", "1", 2)
	st := student(s, "s1", 1, "CSE")
	place(s, st, r, jan5)
	e := newEngine(s)

	_, err := e.Transfer(ctx, 999, r.ID)
	assert.ErrorIs(t, err, allocation.ErrStudentNotFound)

	_, err = e.Transfer(ctx, st.ID, 999)
	assert.ErrorIs(t, err, allocation.ErrRoomNotFound)

	_, err = e.Transfer(ctx, st.ID, r.ID)
	assert.ErrorIs(t, err, allocation.ErrSameRoom)
	assert.ErrorIs(t, err, allocation.ErrAlreadyAssigned)
	assert.ErrorIs(t, err, allocation.ErrConflict)

	assert.Equal(t, 1, room(t, s, r.ID).Occupied)
	assertConsistent(t, s)
}

func TestConcurrentAutoAssignNeverOverfills(t *testing.T) {
	s := memstore.New()
	for i := 1; i <= 3; i++ {
		s.AddRoom("A", fmt.Sprint(i), 2)
	}
	var ids []uint64
	for i := 0; i < 20; i++ {
		ids = append(ids, student(s, fmt.Sprint("s", i), i%4+1, "CSE").ID)
	}
	e := newEngine(s)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		assigned int
		noRoom   int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			_, err := e.AutoAssign(context.Background(), id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				assigned++
			case errors.Is(err, allocation.ErrNoRoomAvailable):
				noRoom++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 6, assigned)
	assert.Equal(t, 14, noRoom)
	assertConsistent(t, s)
}

func TestCancelledContextLeavesNoTrace(t *testing.T) {
	s := memstore.New()
	r := s.AddRoom("A", "1", 2)
	st := student(s, "s1", 1, "CSE")
	e := newEngine(s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Allocate(ctx, st.ID, r.ID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, room(t, s, r.ID).Occupied)
	assertConsistent(t, s)
}

func TestRemoveStudentVacatesFirst(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	r := s.AddRoom("A", "1", 2)
	st := student(s, "s1", 1, "CSE")
	place(s, st, r, jan5)
	e := newEngine(s)

	res, err := e.RemoveStudent(ctx, st.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Allocation)
	assert.False(t, res.Allocation.IsActive)

	got, err := s.GetStudent(ctx, st.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, 0, room(t, s, r.ID).Occupied)
	assertConsistent(t, s)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	s := memstore.New()
	r := s.AddRoom("A", "1", 2)
	e := newEngine(s, allocation.WithPublisher(&recorder{fail: true}))

	_, err := e.Allocate(context.Background(), student(s, "s1", 1, "CSE").ID, r.ID)
	assert.NoError(t, err)
}
