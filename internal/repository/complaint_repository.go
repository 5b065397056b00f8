package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/hostel-management/internal/model"
)

// ComplaintFilter narrows ComplaintRepo.List.  Zero values match all.
type ComplaintFilter struct {
	StudentID uint64
	Status    string
	Category  string
}

// ComplaintRepo provides data access to the complaints table.
type ComplaintRepo struct{ db *sql.DB }

// NewComplaintRepo returns a ComplaintRepo bound to db.
func NewComplaintRepo(db *sql.DB) *ComplaintRepo { return &ComplaintRepo{db: db} }

const complaintColumns = "id, student_id, category, description, status, assigned_to, created_at"

func scanComplaint(s rowScanner) (model.Complaint, error) {
	var (
		c        model.Complaint
		assigned sql.NullInt64
	)
	if err := s.Scan(&c.ID, &c.StudentID, &c.Category, &c.Description, &c.Status, &assigned, &c.CreatedAt); err != nil {
		return c, err
	}
	if assigned.Valid {
		id := uint64(assigned.Int64)
		c.AssignedTo = &id
	}
	return c, nil
}

// Create files a new complaint in OPEN state and sets its ID.
func (r *ComplaintRepo) Create(ctx context.Context, c *model.Complaint) error {
	c.Status = model.ComplaintOpen
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO complaints (student_id, category, description, status) VALUES (?,?,?,?)",
		c.StudentID, c.Category, c.Description, c.Status)
	if err != nil {
		return mapErr(err, nil, nil)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// Get loads one complaint.
func (r *ComplaintRepo) Get(ctx context.Context, id uint64) (model.Complaint, error) {
	c, err := scanComplaint(r.db.QueryRowContext(ctx,
		"SELECT "+complaintColumns+" FROM complaints WHERE id = ?", id))
	return c, notFound(err, ErrComplaintNotFound)
}

// List returns complaints matching f, newest first.
func (r *ComplaintRepo) List(ctx context.Context, f ComplaintFilter) ([]model.Complaint, error) {
	q := "SELECT " + complaintColumns + " FROM complaints WHERE 1=1"
	var args []any
	if f.StudentID != 0 {
		q += " AND student_id = ?"
		args = append(args, f.StudentID)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.Category != "" {
		q += " AND category = ?"
		args = append(args, f.Category)
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY created_at DESC, id DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateStatus moves a complaint to status and optionally assigns it.  A
// nil assignee keeps the current one.
func (r *ComplaintRepo) UpdateStatus(ctx context.Context, id uint64, status string, assignee *uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE complaints SET status = ?, assigned_to = COALESCE(?, assigned_to) WHERE id = ?",
		status, assignee, id)
	if err != nil {
		return mapErr(err, nil, nil)
	}
	return requireRow(res, ErrComplaintNotFound)
}

// Delete removes a complaint.
func (r *ComplaintRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM complaints WHERE id = ?", id)
	if err != nil {
		return mapErr(err, nil, nil)
	}
	return requireRow(res, ErrComplaintNotFound)
}

// requireRow returns nf when the statement matched no row.
func requireRow(res sql.Result, nf error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return nf
	}
	return nil
}
