// Package memstore implements the allocation store and the report reader
// in process memory.  Intended for tests.  Transactions are serialized by
// a mutex and run against a copy of the state that replaces the live
// state only on commit, so a failed or cancelled transaction leaves no
// trace.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/fee"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/report"
)

type state struct {
	students    map[uint64]model.Student
	rooms       map[uint64]model.Room
	allocations map[uint64]model.Allocation
	feeConfigs  []model.FeeConfig
	ledger      []model.FeeLedger
	payments    []model.FeePayment
	seq         uint64
}

func (s *state) clone() *state {
	c := &state{
		students:    make(map[uint64]model.Student, len(s.students)),
		rooms:       make(map[uint64]model.Room, len(s.rooms)),
		allocations: make(map[uint64]model.Allocation, len(s.allocations)),
		feeConfigs:  append([]model.FeeConfig(nil), s.feeConfigs...),
		ledger:      append([]model.FeeLedger(nil), s.ledger...),
		payments:    append([]model.FeePayment(nil), s.payments...),
		seq:         s.seq,
	}
	for k, v := range s.students {
		c.students[k] = v
	}
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	for k, v := range s.allocations {
		c.allocations[k] = v
	}
	return c
}

func (s *state) nextID() uint64 {
	s.seq++
	return s.seq
}

// Store is an in-memory allocation.Store and report.Reader.
type Store struct {
	mu    sync.RWMutex
	state *state
}

// New returns an empty store.
func New() *Store {
	return &Store{state: &state{
		students:    map[uint64]model.Student{},
		rooms:       map[uint64]model.Room{},
		allocations: map[uint64]model.Allocation{},
	}}
}

// InTx runs fn against a private copy of the state and publishes the copy
// when fn succeeds and ctx is still live.
func (s *Store) InTx(ctx context.Context, fn func(tx allocation.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

// AddStudent seeds a student and returns it with its id set.  A student
// added with IsActive false is stored as inactive.
func (s *Store) AddStudent(st model.Student) model.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.ID = s.state.nextID()
	st.AssignRoom(nil)
	s.state.students[st.ID] = st
	return st
}

// UpdateStudent applies p to an active student.
func (s *Store) UpdateStudent(id uint64, p model.StudentPatch) (model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state.students[id]
	if !ok {
		return model.Student{}, allocation.ErrStudentNotFound
	}
	if !st.IsActive {
		return model.Student{}, allocation.ErrStudentInactive
	}
	p.Apply(&st)
	s.state.students[id] = st
	return st, nil
}

// AddRoom seeds an empty room and returns it with its id set.
func (s *Store) AddRoom(block, number string, capacity int) model.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := model.Room{ID: s.state.nextID(), Block: block, RoomNumber: number, Capacity: capacity}
	s.state.rooms[r.ID] = r
	return r
}

// AddFeeConfig seeds a fee config.
func (s *Store) AddFeeConfig(c model.FeeConfig) model.FeeConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.state.nextID()
	s.state.feeConfigs = append(s.state.feeConfigs, c)
	return c
}

// AddPayment seeds a fee payment.
func (s *Store) AddPayment(p model.FeePayment) model.FeePayment {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.state.nextID()
	s.state.payments = append(s.state.payments, p)
	return p
}

// AddAllocation seeds a ledger row.  An active row also bumps the room
// counter and the student's current-room fields, as the engine would.
func (s *Store) AddAllocation(a model.Allocation) model.Allocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.state.nextID()
	s.state.allocations[a.ID] = a
	if a.IsActive {
		r := s.state.rooms[a.RoomID]
		r.Occupied++
		s.state.rooms[a.RoomID] = r
		st := s.state.students[a.StudentID]
		st.AssignRoom(&r)
		s.state.students[a.StudentID] = st
	}
	return a
}

// SetOccupancy overwrites a room counter without touching allocations.
// Tests use it to simulate drifted or externally seeded state.
func (s *Store) SetOccupancy(roomID uint64, occupied int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.state.rooms[roomID]
	r.Occupied = occupied
	s.state.rooms[roomID] = r
}

type tx struct {
	st *state
}

func (t *tx) Student(_ context.Context, id uint64) (model.Student, error) {
	st, ok := t.st.students[id]
	if !ok {
		return model.Student{}, allocation.ErrStudentNotFound
	}
	return st, nil
}

func (t *tx) StudentForUpdate(ctx context.Context, id uint64) (model.Student, error) {
	return t.Student(ctx, id)
}

func (t *tx) SetStudentRoom(_ context.Context, studentID uint64, room *model.Room) error {
	st, ok := t.st.students[studentID]
	if !ok {
		return allocation.ErrStudentNotFound
	}
	st.AssignRoom(room)
	t.st.students[studentID] = st
	return nil
}

func (t *tx) DeactivateStudent(_ context.Context, studentID uint64) error {
	st, ok := t.st.students[studentID]
	if !ok {
		return allocation.ErrStudentNotFound
	}
	st.IsActive = false
	t.st.students[studentID] = st
	return nil
}

func (t *tx) UnassignedStudents(_ context.Context) ([]model.Student, error) {
	var out []model.Student
	for _, st := range sortedStudents(t.st) {
		if st.IsActive && !st.HasRoom() && activeFor(t.st, st.ID) == nil {
			out = append(out, st)
		}
	}
	return out, nil
}

func (t *tx) Allocation(_ context.Context, id uint64) (model.Allocation, error) {
	a, ok := t.st.allocations[id]
	if !ok {
		return model.Allocation{}, allocation.ErrAllocationNotFound
	}
	return a, nil
}

func (t *tx) AllocationForUpdate(ctx context.Context, id uint64) (model.Allocation, error) {
	return t.Allocation(ctx, id)
}

func (t *tx) ActiveAllocationForUpdate(_ context.Context, studentID uint64) (*model.Allocation, error) {
	return activeFor(t.st, studentID), nil
}

func (t *tx) InsertAllocation(_ context.Context, a *model.Allocation) error {
	if a.IsActive && activeFor(t.st, a.StudentID) != nil {
		return allocation.ErrAlreadyAssigned
	}
	a.ID = t.st.nextID()
	t.st.allocations[a.ID] = *a
	return nil
}

func (t *tx) CloseAllocation(_ context.Context, id uint64, at time.Time) error {
	a, ok := t.st.allocations[id]
	if !ok {
		return allocation.ErrAllocationNotFound
	}
	a.Close(at)
	t.st.allocations[id] = a
	return nil
}

func (t *tx) RoomForUpdate(_ context.Context, id uint64) (model.Room, error) {
	r, ok := t.st.rooms[id]
	if !ok {
		return model.Room{}, allocation.ErrRoomNotFound
	}
	return r, nil
}

func (t *tx) CandidateRooms(_ context.Context, year int, course string) ([]allocation.Candidate, error) {
	years := map[uint64]bool{}
	courses := map[uint64]bool{}
	for _, a := range t.st.allocations {
		if !a.IsActive {
			continue
		}
		st := t.st.students[a.StudentID]
		if st.Year == year {
			years[a.RoomID] = true
		}
		if strings.EqualFold(st.Course, course) {
			courses[a.RoomID] = true
		}
	}
	var out []allocation.Candidate
	for _, r := range sortedRooms(t.st) {
		if !r.IsAvailable() {
			continue
		}
		out = append(out, allocation.Candidate{Room: r, SameYear: years[r.ID], SameCourse: courses[r.ID]})
	}
	return out, nil
}

func (t *tx) SetOccupancy(_ context.Context, roomID uint64, occupied int) error {
	r, ok := t.st.rooms[roomID]
	if !ok {
		return allocation.ErrRoomNotFound
	}
	r.Occupied = occupied
	t.st.rooms[roomID] = r
	return nil
}

func (t *tx) InsertRoom(_ context.Context, r *model.Room) error {
	if t.roomExists(r.Block, r.RoomNumber, 0) {
		return allocation.ErrDuplicateRoom
	}
	r.ID = t.st.nextID()
	t.st.rooms[r.ID] = *r
	return nil
}

func (t *tx) InsertRooms(ctx context.Context, rooms []model.Room) (int, error) {
	created := 0
	for i := range rooms {
		if t.roomExists(rooms[i].Block, rooms[i].RoomNumber, 0) {
			continue
		}
		if err := t.InsertRoom(ctx, &rooms[i]); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (t *tx) UpdateRoom(_ context.Context, r model.Room) error {
	if _, ok := t.st.rooms[r.ID]; !ok {
		return allocation.ErrRoomNotFound
	}
	if t.roomExists(r.Block, r.RoomNumber, r.ID) {
		return allocation.ErrDuplicateRoom
	}
	t.st.rooms[r.ID] = r
	for id, st := range t.st.students {
		if st.RoomID != nil && *st.RoomID == r.ID {
			st.AssignRoom(&r)
			t.st.students[id] = st
		}
	}
	return nil
}

func (t *tx) DeleteRoom(_ context.Context, id uint64) error {
	if _, ok := t.st.rooms[id]; !ok {
		return allocation.ErrRoomNotFound
	}
	for _, a := range t.st.allocations {
		if a.RoomID == id {
			return allocation.ErrRoomHasHistory
		}
	}
	delete(t.st.rooms, id)
	return nil
}

func (t *tx) EffectiveFee(_ context.Context, on time.Time) (*model.FeeConfig, error) {
	cfg := fee.EffectiveConfig(t.st.feeConfigs, on)
	if cfg == nil {
		return nil, nil
	}
	c := *cfg
	return &c, nil
}

func (t *tx) InsertFeeLedger(_ context.Context, l *model.FeeLedger) error {
	l.ID = t.st.nextID()
	t.st.ledger = append(t.st.ledger, *l)
	return nil
}

func (t *tx) roomExists(block, number string, except uint64) bool {
	for _, r := range t.st.rooms {
		if r.ID != except && r.Block == block && r.RoomNumber == number {
			return true
		}
	}
	return false
}

func activeFor(s *state, studentID uint64) *model.Allocation {
	for _, a := range s.allocations {
		if a.IsActive && a.StudentID == studentID {
			a := a
			return &a
		}
	}
	return nil
}

func sortedStudents(s *state) []model.Student {
	out := make([]model.Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedRooms(s *state) []model.Room {
	out := make([]model.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Block != out[j].Block {
			return out[i].Block < out[j].Block
		}
		return out[i].RoomNumber < out[j].RoomNumber
	})
	return out
}

var (
	_ allocation.Store = (*Store)(nil)
	_ report.Reader    = (*Store)(nil)
)
