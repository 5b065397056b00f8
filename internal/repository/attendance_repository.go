package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/hostel-management/internal/model"
)

// AttendanceRecord is an attendance row joined with the student it
// belongs to.
type AttendanceRecord struct {
	model.Attendance
	StudentName    string  `json:"student_name"`
	RegisterNumber string  `json:"register_number"`
	HostelBlock    *string `json:"hostel_block"`
	RoomNumber     *string `json:"room_number"`
}

// AttendanceRepo provides data access to the attendance table.
type AttendanceRepo struct{ db *sql.DB }

// NewAttendanceRepo returns an AttendanceRepo bound to db.
func NewAttendanceRepo(db *sql.DB) *AttendanceRepo { return &AttendanceRepo{db: db} }

// Mark records one status per student for date, replacing any status
// already recorded that day.  All rows are written in one transaction.
func (r *AttendanceRepo) Mark(ctx context.Context, date time.Time, marks map[uint64]string) error {
	if len(marks) == 0 {
		return nil
	}
	day := date.Format(time.DateOnly)

	var sb strings.Builder
	sb.WriteString("INSERT INTO attendance (student_id, date, status) VALUES ")
	args := make([]any, 0, len(marks)*3)
	for i, id := range sortedKeys(marks) {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?,?,?)")
		args = append(args, id, day, marks[id])
	}
	sb.WriteString(" ON DUPLICATE KEY UPDATE status = VALUES(status)")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return mapErr(err, nil, nil)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ListByDate returns the attendance recorded for date, by student name.
func (r *AttendanceRepo) ListByDate(ctx context.Context, date time.Time) ([]AttendanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.student_id, a.date, a.status, a.created_at,
		       s.name, s.register_number, s.hostel_block, s.room_number
		FROM attendance a JOIN students s ON s.id = a.student_id
		WHERE a.date = ?
		ORDER BY s.name, a.student_id`, date.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []AttendanceRecord{}
	for rows.Next() {
		var (
			rec         AttendanceRecord
			block, room sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Date, &rec.Status, &rec.CreatedAt,
			&rec.StudentName, &rec.RegisterNumber, &block, &room); err != nil {
			return nil, err
		}
		if block.Valid {
			rec.HostelBlock = &block.String
		}
		if room.Valid {
			rec.RoomNumber = &room.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func sortedKeys(m map[uint64]string) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
