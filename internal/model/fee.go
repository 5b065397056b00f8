package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeConfig is one version of the daily hostel fee.  The version with
// the latest EffectiveFrom on or before a given date is authoritative
// for that date.
type FeeConfig struct {
	ID            uint64          `json:"id"`             // hostel_fee_configs.id
	DailyFee      decimal.Decimal `json:"daily_fee"`      // hostel_fee_configs.daily_fee
	EffectiveFrom time.Time       `json:"effective_from"` // hostel_fee_configs.effective_from (DATE)
	CreatedAt     time.Time       `json:"created_at"`     // hostel_fee_configs.created_at
}

// FeeLedger is the bill produced when an allocation closes.
type FeeLedger struct {
	ID           uint64          `json:"id"`            // fee_ledgers.id
	StudentID    uint64          `json:"student_id"`    // fee_ledgers.student_id
	AllocationID uint64          `json:"allocation_id"` // fee_ledgers.allocation_id
	FromDate     time.Time       `json:"from_date"`     // fee_ledgers.from_date
	ToDate       time.Time       `json:"to_date"`       // fee_ledgers.to_date
	Days         int             `json:"days"`          // fee_ledgers.days
	Amount       decimal.Decimal `json:"amount"`        // fee_ledgers.amount
	CreatedAt    time.Time       `json:"created_at"`    // fee_ledgers.created_at
}

// Payment modes accepted for fee payments.
const (
	PaymentCash = "cash"
	PaymentUPI  = "upi"
	PaymentBank = "bank"
)

// FeePayment records money received from a student.
type FeePayment struct {
	ID          uint64          `json:"id"`           // fee_payments.id
	StudentID   uint64          `json:"student_id"`   // fee_payments.student_id
	LedgerID    *uint64         `json:"ledger_id"`    // fee_payments.ledger_id (nullable)
	AmountPaid  decimal.Decimal `json:"amount_paid"`  // fee_payments.amount_paid
	PaymentMode string          `json:"payment_mode"` // fee_payments.payment_mode
	ReferenceID *string         `json:"reference_id"` // fee_payments.reference_id (nullable)
	PaymentDate time.Time       `json:"payment_date"` // fee_payments.payment_date
}
