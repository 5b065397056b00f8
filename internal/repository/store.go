package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/report"
)

// Store runs allocation engine transactions on MySQL and serves the
// report reader.  Row locks are taken with SELECT ... FOR UPDATE; how
// long a statement waits for one is bounded by the session's
// innodb_lock_wait_timeout, set on the DSN.
type Store struct {
	DB          *sql.DB
	Rooms       *RoomRepo
	Students    *StudentRepo
	Allocations *AllocationRepo
	Fees        *FeeRepo
}

// NewStore wires the repositories the engine needs.
func NewStore(db *sql.DB) *Store {
	return &Store{
		DB:          db,
		Rooms:       NewRoomRepo(db),
		Students:    NewStudentRepo(db),
		Allocations: NewAllocationRepo(db),
		Fees:        NewFeeRepo(db),
	}
}

// InTx begins a transaction, runs fn and commits when fn succeeds.  Any
// error, including a cancelled context, rolls the transaction back.
func (s *Store) InTx(ctx context.Context, fn func(tx allocation.Tx) error) error {
	sqlTx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err, nil, nil)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&tx{s: s, tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapErr(err, nil, nil)
	}
	committed = true
	return nil
}

type tx struct {
	s  *Store
	tx *sql.Tx
}

func (t *tx) Student(ctx context.Context, id uint64) (model.Student, error) {
	return t.s.Students.GetTx(ctx, t.tx, id, false)
}

func (t *tx) StudentForUpdate(ctx context.Context, id uint64) (model.Student, error) {
	return t.s.Students.GetTx(ctx, t.tx, id, true)
}

func (t *tx) SetStudentRoom(ctx context.Context, studentID uint64, room *model.Room) error {
	return t.s.Students.SetRoomTx(ctx, t.tx, studentID, room)
}

func (t *tx) DeactivateStudent(ctx context.Context, studentID uint64) error {
	return t.s.Students.DeactivateTx(ctx, t.tx, studentID)
}

func (t *tx) UnassignedStudents(ctx context.Context) ([]model.Student, error) {
	return t.s.Students.UnassignedTx(ctx, t.tx)
}

func (t *tx) Allocation(ctx context.Context, id uint64) (model.Allocation, error) {
	return t.s.Allocations.GetTx(ctx, t.tx, id, false)
}

func (t *tx) AllocationForUpdate(ctx context.Context, id uint64) (model.Allocation, error) {
	return t.s.Allocations.GetTx(ctx, t.tx, id, true)
}

func (t *tx) ActiveAllocationForUpdate(ctx context.Context, studentID uint64) (*model.Allocation, error) {
	return t.s.Allocations.ActiveForStudentTx(ctx, t.tx, studentID)
}

func (t *tx) InsertAllocation(ctx context.Context, a *model.Allocation) error {
	return t.s.Allocations.InsertTx(ctx, t.tx, a)
}

func (t *tx) CloseAllocation(ctx context.Context, id uint64, at time.Time) error {
	return t.s.Allocations.CloseTx(ctx, t.tx, id, at)
}

func (t *tx) RoomForUpdate(ctx context.Context, id uint64) (model.Room, error) {
	return t.s.Rooms.GetForUpdateTx(ctx, t.tx, id)
}

func (t *tx) CandidateRooms(ctx context.Context, year int, course string) ([]allocation.Candidate, error) {
	return t.s.Rooms.CandidatesTx(ctx, t.tx, year, course)
}

func (t *tx) SetOccupancy(ctx context.Context, roomID uint64, occupied int) error {
	return t.s.Rooms.SetOccupancyTx(ctx, t.tx, roomID, occupied)
}

func (t *tx) InsertRoom(ctx context.Context, r *model.Room) error {
	return t.s.Rooms.InsertTx(ctx, t.tx, r)
}

func (t *tx) InsertRooms(ctx context.Context, rooms []model.Room) (int, error) {
	return t.s.Rooms.InsertManyTx(ctx, t.tx, rooms)
}

func (t *tx) UpdateRoom(ctx context.Context, r model.Room) error {
	return t.s.Rooms.UpdateTx(ctx, t.tx, r)
}

func (t *tx) DeleteRoom(ctx context.Context, id uint64) error {
	return t.s.Rooms.DeleteTx(ctx, t.tx, id)
}

func (t *tx) EffectiveFee(ctx context.Context, on time.Time) (*model.FeeConfig, error) {
	return t.s.Fees.EffectiveTx(ctx, t.tx, on)
}

func (t *tx) InsertFeeLedger(ctx context.Context, l *model.FeeLedger) error {
	return t.s.Fees.InsertLedgerTx(ctx, t.tx, l)
}

// Read side.

func (s *Store) GetStudent(ctx context.Context, id uint64) (model.Student, error) {
	return s.Students.Get(ctx, id)
}

func (s *Store) ListStudents(ctx context.Context, f report.StudentFilter) ([]model.Student, error) {
	return s.Students.List(ctx, f)
}

func (s *Store) GetRoom(ctx context.Context, id uint64) (model.Room, error) {
	return s.Rooms.Get(ctx, id)
}

func (s *Store) ListRooms(ctx context.Context, f report.RoomFilter) ([]model.Room, error) {
	return s.Rooms.List(ctx, f)
}

func (s *Store) ListAllocations(ctx context.Context, f report.AllocationFilter) ([]model.Allocation, error) {
	return s.Allocations.List(ctx, f)
}

func (s *Store) ListFeeConfigs(ctx context.Context) ([]model.FeeConfig, error) {
	return s.Fees.ListConfigs(ctx)
}

func (s *Store) ListLedger(ctx context.Context, studentID uint64) ([]model.FeeLedger, error) {
	return s.Fees.ListLedger(ctx, studentID)
}

func (s *Store) ListPayments(ctx context.Context, studentID uint64) ([]model.FeePayment, error) {
	return s.Fees.ListPayments(ctx, studentID)
}

var (
	_ allocation.Store = (*Store)(nil)
	_ report.Reader    = (*Store)(nil)
)
