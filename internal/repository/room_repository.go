package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/report"
)

const roomColumns = "id, block, room_number, capacity, occupied, created_at"

// RoomRepo provides data access to the rooms table.
type RoomRepo struct{ db *sql.DB }

// NewRoomRepo returns a RoomRepo bound to db.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(s rowScanner) (model.Room, error) {
	var r model.Room
	err := s.Scan(&r.ID, &r.Block, &r.RoomNumber, &r.Capacity, &r.Occupied, &r.CreatedAt)
	return r, err
}

// GetForUpdateTx loads a room and locks its row until the transaction
// ends.
func (r *RoomRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Room, error) {
	room, err := scanRoom(tx.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms WHERE id = ? FOR UPDATE", id))
	return room, notFound(err, allocation.ErrRoomNotFound)
}

// CandidatesTx lists rooms with free capacity, flagging rooms that host an
// active student of the given year or course.  Only active allocations
// count; vacated occupants do not make a room a preferred match.
func (r *RoomRepo) CandidatesTx(ctx context.Context, tx *sql.Tx, year int, course string) ([]allocation.Candidate, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT r.id, r.block, r.room_number, r.capacity, r.occupied, r.created_at,
		       EXISTS (SELECT 1 FROM room_allocations a JOIN students s ON s.id = a.student_id
		                WHERE a.room_id = r.id AND a.is_active = 1 AND s.year = ?) AS same_year,
		       EXISTS (SELECT 1 FROM room_allocations a JOIN students s ON s.id = a.student_id
		                WHERE a.room_id = r.id AND a.is_active = 1 AND s.course = ?) AS same_course
		FROM rooms r
		WHERE r.occupied < r.capacity
		ORDER BY r.occupied, r.block, r.room_number, r.id`,
		year, course)
	if err != nil {
		return nil, mapErr(err, nil, nil)
	}
	defer rows.Close()

	var out []allocation.Candidate
	for rows.Next() {
		var c allocation.Candidate
		if err := rows.Scan(&c.Room.ID, &c.Room.Block, &c.Room.RoomNumber, &c.Room.Capacity,
			&c.Room.Occupied, &c.Room.CreatedAt, &c.SameYear, &c.SameCourse); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetOccupancyTx writes a room's occupancy counter.  The caller holds the
// row lock.
func (r *RoomRepo) SetOccupancyTx(ctx context.Context, tx *sql.Tx, id uint64, occupied int) error {
	_, err := tx.ExecContext(ctx, "UPDATE rooms SET occupied = ? WHERE id = ?", occupied, id)
	return mapErr(err, nil, nil)
}

// InsertTx creates a room and sets its ID.
func (r *RoomRepo) InsertTx(ctx context.Context, tx *sql.Tx, room *model.Room) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO rooms (block, room_number, capacity, occupied, created_at) VALUES (?,?,?,0,?)",
		room.Block, room.RoomNumber, room.Capacity, room.CreatedAt)
	if err != nil {
		return mapErr(err, allocation.ErrDuplicateRoom, nil)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	room.ID = uint64(id)
	return nil
}

// InsertManyTx creates rooms in one statement, skipping block and number
// pairs that already exist, and returns how many rows were inserted.
func (r *RoomRepo) InsertManyTx(ctx context.Context, tx *sql.Tx, rooms []model.Room) (int, error) {
	if len(rooms) == 0 {
		return 0, nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT IGNORE INTO rooms (block, room_number, capacity, occupied, created_at) VALUES ")
	args := make([]any, 0, len(rooms)*4)
	for i, room := range rooms {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?,?,?,0,?)")
		args = append(args, room.Block, room.RoomNumber, room.Capacity, room.CreatedAt)
	}
	res, err := tx.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, mapErr(err, nil, nil)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// UpdateTx rewrites a room's block, number and capacity, and refreshes
// the current-room fields of the students placed in it.
func (r *RoomRepo) UpdateTx(ctx context.Context, tx *sql.Tx, room model.Room) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE rooms SET block = ?, room_number = ?, capacity = ? WHERE id = ?",
		room.Block, room.RoomNumber, room.Capacity, room.ID)
	if err != nil {
		return mapErr(err, allocation.ErrDuplicateRoom, nil)
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE students SET hostel_block = ?, room_number = ? WHERE room_id = ?",
		room.Block, room.RoomNumber, room.ID)
	return mapErr(err, nil, nil)
}

// DeleteTx removes a room.  Rooms referenced by any allocation, active or
// not, are kept by the foreign key.
func (r *RoomRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", id)
	return mapErr(err, nil, allocation.ErrRoomHasHistory)
}

// Get loads a room without locking.
func (r *RoomRepo) Get(ctx context.Context, id uint64) (model.Room, error) {
	room, err := scanRoom(r.db.QueryRowContext(ctx, "SELECT "+roomColumns+" FROM rooms WHERE id = ?", id))
	return room, notFound(err, allocation.ErrRoomNotFound)
}

// List returns rooms matching f ordered by block then room number.
func (r *RoomRepo) List(ctx context.Context, f report.RoomFilter) ([]model.Room, error) {
	q := "SELECT " + roomColumns + " FROM rooms WHERE 1=1"
	var args []any
	if f.Block != "" {
		q += " AND block = ?"
		args = append(args, f.Block)
	}
	if f.RoomID != 0 {
		q += " AND id = ?"
		args = append(args, f.RoomID)
	}
	if f.AvailableOnly {
		q += " AND occupied < capacity"
	}
	q += " ORDER BY block, room_number"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}
