package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/hostel-management/internal/model"
)

// FeeRepo provides data access to fee configs, ledger rows and payments.
type FeeRepo struct{ db *sql.DB }

// NewFeeRepo returns a FeeRepo bound to db.
func NewFeeRepo(db *sql.DB) *FeeRepo { return &FeeRepo{db: db} }

// CreateConfig inserts a fee config version.  Only one version may take
// effect on a given date.
func (r *FeeRepo) CreateConfig(ctx context.Context, c *model.FeeConfig) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO hostel_fee_configs (daily_fee, effective_from) VALUES (?, ?)",
		c.DailyFee, c.EffectiveFrom.Format(time.DateOnly))
	if err != nil {
		return mapErr(err, ErrFeeConfigExists, nil)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// ListConfigs returns every config version, latest effective date first.
func (r *FeeRepo) ListConfigs(ctx context.Context) ([]model.FeeConfig, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, daily_fee, effective_from, created_at FROM hostel_fee_configs ORDER BY effective_from DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.FeeConfig{}
	for rows.Next() {
		var c model.FeeConfig
		if err := rows.Scan(&c.ID, &c.DailyFee, &c.EffectiveFrom, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// EffectiveTx returns the config in force on the given calendar date, or
// nil when none is.
func (r *FeeRepo) EffectiveTx(ctx context.Context, tx *sql.Tx, on time.Time) (*model.FeeConfig, error) {
	var c model.FeeConfig
	err := tx.QueryRowContext(ctx,
		`SELECT id, daily_fee, effective_from, created_at FROM hostel_fee_configs
		 WHERE effective_from <= ? ORDER BY effective_from DESC LIMIT 1`,
		on.Format(time.DateOnly)).Scan(&c.ID, &c.DailyFee, &c.EffectiveFrom, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(err, nil, nil)
	}
	return &c, nil
}

// InsertLedgerTx writes the bill of a closed allocation and sets its ID.
func (r *FeeRepo) InsertLedgerTx(ctx context.Context, tx *sql.Tx, l *model.FeeLedger) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO fee_ledgers (student_id, allocation_id, from_date, to_date, days, amount, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		l.StudentID, l.AllocationID, l.FromDate.Format(time.DateOnly), l.ToDate.Format(time.DateOnly),
		l.Days, l.Amount, l.CreatedAt)
	if err != nil {
		return mapErr(err, nil, nil)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// ListLedger returns a student's bills, oldest first.
func (r *FeeRepo) ListLedger(ctx context.Context, studentID uint64) ([]model.FeeLedger, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, student_id, allocation_id, from_date, to_date, days, amount, created_at
		 FROM fee_ledgers WHERE student_id = ? ORDER BY from_date, id`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.FeeLedger{}
	for rows.Next() {
		var l model.FeeLedger
		if err := rows.Scan(&l.ID, &l.StudentID, &l.AllocationID, &l.FromDate, &l.ToDate,
			&l.Days, &l.Amount, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CreatePayment records a payment and sets its ID.
func (r *FeeRepo) CreatePayment(ctx context.Context, p *model.FeePayment) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO fee_payments (student_id, ledger_id, amount_paid, payment_mode, reference_id, payment_date)
		 VALUES (?,?,?,?,?,?)`,
		p.StudentID, p.LedgerID, p.AmountPaid, p.PaymentMode, p.ReferenceID, p.PaymentDate)
	if err != nil {
		return mapErr(err, nil, nil)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// ListPayments returns a student's payments, oldest first.
func (r *FeeRepo) ListPayments(ctx context.Context, studentID uint64) ([]model.FeePayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, student_id, ledger_id, amount_paid, payment_mode, reference_id, payment_date
		 FROM fee_payments WHERE student_id = ? ORDER BY payment_date, id`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.FeePayment{}
	for rows.Next() {
		var (
			p        model.FeePayment
			ledgerID sql.NullInt64
			ref      sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.StudentID, &ledgerID, &p.AmountPaid, &p.PaymentMode, &ref, &p.PaymentDate); err != nil {
			return nil, err
		}
		if ledgerID.Valid {
			id := uint64(ledgerID.Int64)
			p.LedgerID = &id
		}
		if ref.Valid {
			p.ReferenceID = &ref.String
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
