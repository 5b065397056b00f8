package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/report"
)

const allocationColumns = "id, student_id, room_id, allocated_at, vacated_at, is_active"

// AllocationRepo provides data access to the room_allocations ledger.
// Rows are inserted active and closed exactly once; nothing here reopens
// or deletes them.
type AllocationRepo struct{ db *sql.DB }

// NewAllocationRepo returns an AllocationRepo bound to db.
func NewAllocationRepo(db *sql.DB) *AllocationRepo { return &AllocationRepo{db: db} }

func scanAllocation(s rowScanner) (model.Allocation, error) {
	var (
		a       model.Allocation
		vacated sql.NullTime
	)
	if err := s.Scan(&a.ID, &a.StudentID, &a.RoomID, &a.AllocatedAt, &vacated, &a.IsActive); err != nil {
		return a, err
	}
	if vacated.Valid {
		t := vacated.Time
		a.VacatedAt = &t
	}
	return a, nil
}

// GetTx loads an allocation inside tx, locking the row when lock is set.
func (r *AllocationRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64, lock bool) (model.Allocation, error) {
	q := "SELECT " + allocationColumns + " FROM room_allocations WHERE id = ?"
	if lock {
		q += " FOR UPDATE"
	}
	a, err := scanAllocation(tx.QueryRowContext(ctx, q, id))
	return a, notFound(err, allocation.ErrAllocationNotFound)
}

// ActiveForStudentTx locks and returns the student's active allocation,
// or nil when there is none.
func (r *AllocationRepo) ActiveForStudentTx(ctx context.Context, tx *sql.Tx, studentID uint64) (*model.Allocation, error) {
	a, err := scanAllocation(tx.QueryRowContext(ctx,
		"SELECT "+allocationColumns+" FROM room_allocations WHERE student_id = ? AND is_active = 1 FOR UPDATE",
		studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(err, nil, nil)
	}
	return &a, nil
}

// InsertTx appends an allocation and sets its ID.  A second active row
// for the same student violates uq_room_allocations_active_student.
func (r *AllocationRepo) InsertTx(ctx context.Context, tx *sql.Tx, a *model.Allocation) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO room_allocations (student_id, room_id, allocated_at, is_active) VALUES (?,?,?,?)",
		a.StudentID, a.RoomID, a.AllocatedAt, a.IsActive)
	if err != nil {
		return mapErr(err, allocation.ErrAlreadyAssigned, nil)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// CloseTx marks an active allocation vacated.
func (r *AllocationRepo) CloseTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE room_allocations SET is_active = 0, vacated_at = ? WHERE id = ? AND is_active = 1",
		at, id)
	return mapErr(err, nil, nil)
}

// List returns allocations matching f, newest first.
func (r *AllocationRepo) List(ctx context.Context, f report.AllocationFilter) ([]model.Allocation, error) {
	q := "SELECT " + allocationColumns + " FROM room_allocations WHERE 1=1"
	var args []any
	if f.StudentID != 0 {
		q += " AND student_id = ?"
		args = append(args, f.StudentID)
	}
	if f.RoomID != 0 {
		q += " AND room_id = ?"
		args = append(args, f.RoomID)
	}
	if f.ActiveOnly {
		q += " AND is_active = 1"
	}
	q += " ORDER BY allocated_at DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT " + strconv.Itoa(f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Allocation{}
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
