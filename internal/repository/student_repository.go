package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/report"
	"github.com/iliyamo/hostel-management/internal/utils"
)

const studentColumns = `id, user_id, name, email, register_number, mobile_number, course, year,
	parent_name, parent_mobile, room_id, hostel_block, room_number, is_active, created_at`

// StudentRepo provides data access to the students table.
type StudentRepo struct{ db *sql.DB }

// NewStudentRepo returns a StudentRepo bound to db.
func NewStudentRepo(db *sql.DB) *StudentRepo { return &StudentRepo{db: db} }

func scanStudent(s rowScanner) (model.Student, error) {
	var (
		st          model.Student
		userID      sql.NullInt64
		roomID      sql.NullInt64
		block, room sql.NullString
	)
	err := s.Scan(&st.ID, &userID, &st.Name, &st.Email, &st.RegisterNumber, &st.MobileNumber,
		&st.Course, &st.Year, &st.ParentName, &st.ParentMobile, &roomID, &block, &room,
		&st.IsActive, &st.CreatedAt)
	if err != nil {
		return st, err
	}
	if userID.Valid {
		id := uint64(userID.Int64)
		st.UserID = &id
	}
	if roomID.Valid {
		id := uint64(roomID.Int64)
		st.RoomID = &id
	}
	if block.Valid {
		st.HostelBlock = &block.String
	}
	if room.Valid {
		st.RoomNumber = &room.String
	}
	return st, nil
}

// Enroll inserts a student and sets its ID.  When password is set, a
// STUDENT login with the student's email is created and linked in the
// same transaction, so a rejected student leaves no account behind.
func (r *StudentRepo) Enroll(ctx context.Context, st *model.Student, password string, cost int) error {
	var hash string
	if password != "" {
		h, err := utils.HashPassword(password, cost)
		if err != nil {
			return err
		}
		hash = h
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err, nil, nil)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var userID *uint64
	if hash != "" {
		id, err := insertUser(ctx, tx, st.Email, st.Name, hash, model.RoleStudent)
		if err != nil {
			return err
		}
		userID = &id
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO students (user_id, name, email, register_number, mobile_number, course, year,
		                      parent_name, parent_mobile, is_active)
		VALUES (?,?,?,?,?,?,?,?,?,1)`,
		userID, st.Name, normalizeEmail(st.Email), st.RegisterNumber,
		st.MobileNumber, st.Course, st.Year, st.ParentName, st.ParentMobile)
	if err != nil {
		return mapErr(err, ErrRegisterNumberExists, nil)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapErr(err, nil, nil)
	}
	committed = true
	st.ID = uint64(id)
	st.UserID = userID
	st.Email = normalizeEmail(st.Email)
	st.IsActive = true
	return nil
}

// Update applies p to an active student.  Name and email changes are
// mirrored onto the linked login in the same transaction.
func (r *StudentRepo) Update(ctx context.Context, id uint64, p model.StudentPatch) (model.Student, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Student{}, mapErr(err, nil, nil)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	st, err := r.GetTx(ctx, tx, id, true)
	if err != nil {
		return model.Student{}, err
	}
	if !st.IsActive {
		return model.Student{}, allocation.ErrStudentInactive
	}
	p.Apply(&st)
	st.Email = normalizeEmail(st.Email)
	_, err = tx.ExecContext(ctx, `
		UPDATE students SET name = ?, email = ?, mobile_number = ?, course = ?, year = ?,
		                    parent_name = ?, parent_mobile = ?
		WHERE id = ?`,
		st.Name, st.Email, st.MobileNumber, st.Course, st.Year, st.ParentName, st.ParentMobile, id)
	if err != nil {
		return model.Student{}, mapErr(err, nil, nil)
	}
	if st.UserID != nil && p.TouchesLogin() {
		_, err = tx.ExecContext(ctx, "UPDATE users SET name = ?, email = ? WHERE id = ?",
			st.Name, st.Email, *st.UserID)
		if err != nil {
			return model.Student{}, mapErr(err, ErrEmailExists, nil)
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Student{}, mapErr(err, nil, nil)
	}
	committed = true
	return st, nil
}

// GetTx loads a student inside tx, locking the row when lock is set.
func (r *StudentRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64, lock bool) (model.Student, error) {
	q := "SELECT " + studentColumns + " FROM students WHERE id = ?"
	if lock {
		q += " FOR UPDATE"
	}
	st, err := scanStudent(tx.QueryRowContext(ctx, q, id))
	return st, notFound(err, allocation.ErrStudentNotFound)
}

// SetRoomTx points the current-room fields at room, or clears them when
// room is nil.
func (r *StudentRepo) SetRoomTx(ctx context.Context, tx *sql.Tx, studentID uint64, room *model.Room) error {
	var (
		roomID        any
		block, number any
	)
	if room != nil {
		roomID, block, number = room.ID, room.Block, room.RoomNumber
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE students SET room_id = ?, hostel_block = ?, room_number = ? WHERE id = ?",
		roomID, block, number, studentID)
	return mapErr(err, nil, nil)
}

// DeactivateTx soft-deletes a student.
func (r *StudentRepo) DeactivateTx(ctx context.Context, tx *sql.Tx, studentID uint64) error {
	_, err := tx.ExecContext(ctx, "UPDATE students SET is_active = 0 WHERE id = ?", studentID)
	return mapErr(err, nil, nil)
}

// UnassignedTx lists active students with no room and no active
// allocation, by id.
func (r *StudentRepo) UnassignedTx(ctx context.Context, tx *sql.Tx) ([]model.Student, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+studentColumns+` FROM students s
		WHERE s.is_active = 1 AND s.room_id IS NULL
		  AND NOT EXISTS (SELECT 1 FROM room_allocations a WHERE a.student_id = s.id AND a.is_active = 1)
		ORDER BY s.id`)
	if err != nil {
		return nil, mapErr(err, nil, nil)
	}
	return collectStudents(rows)
}

// Get loads a student without locking.
func (r *StudentRepo) Get(ctx context.Context, id uint64) (model.Student, error) {
	st, err := scanStudent(r.db.QueryRowContext(ctx, "SELECT "+studentColumns+" FROM students WHERE id = ?", id))
	return st, notFound(err, allocation.ErrStudentNotFound)
}

// GetByUserID loads the student profile linked to a login account.
func (r *StudentRepo) GetByUserID(ctx context.Context, userID uint64) (model.Student, error) {
	st, err := scanStudent(r.db.QueryRowContext(ctx, "SELECT "+studentColumns+" FROM students WHERE user_id = ?", userID))
	return st, notFound(err, allocation.ErrStudentNotFound)
}

// List returns students matching f by id.
func (r *StudentRepo) List(ctx context.Context, f report.StudentFilter) ([]model.Student, error) {
	q := "SELECT " + studentColumns + " FROM students WHERE 1=1"
	if f.ActiveOnly {
		q += " AND is_active = 1"
	}
	if f.WithoutRoom {
		q += " AND room_id IS NULL"
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	return collectStudents(rows)
}

func collectStudents(rows *sql.Rows) ([]model.Student, error) {
	defer rows.Close()
	out := []model.Student{}
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
