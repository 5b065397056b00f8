package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/fee"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/report"
)

// FeeStore persists fee configs and payments.
type FeeStore interface {
	CreateConfig(ctx context.Context, c *model.FeeConfig) error
	CreatePayment(ctx context.Context, p *model.FeePayment) error
}

// FeeHandler serves fee configuration, billing and payments.
type FeeHandler struct {
	Fees     FeeStore
	Reader   report.Reader
	Reports  *report.Service
	Students StudentLookup
	Location *time.Location
	Log      *zap.Logger
	Timeout  time.Duration
}

type feeConfigReq struct {
	DailyFee      decimal.Decimal `json:"daily_fee"`
	EffectiveFrom string          `json:"effective_from" validate:"required,datetime=2006-01-02"`
}

type paymentReq struct {
	StudentID   uint64          `json:"student_id" validate:"required"`
	LedgerID    *uint64         `json:"ledger_id"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	PaymentMode string          `json:"payment_mode" validate:"required,payment_mode"`
	ReferenceID string          `json:"reference_id" validate:"max=100"`
	PaymentDate *time.Time      `json:"payment_date"`
}

func (h *FeeHandler) loc() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// CreateConfig handles POST /v1/fees/config.
func (h *FeeHandler) CreateConfig(c echo.Context) error {
	var req feeConfigReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	if !req.DailyFee.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "daily_fee must be greater than zero"})
	}
	from, err := time.ParseInLocation(time.DateOnly, req.EffectiveFrom, h.loc())
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "effective_from must be YYYY-MM-DD"})
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	cfg := model.FeeConfig{DailyFee: req.DailyFee.Round(2), EffectiveFrom: from, CreatedAt: time.Now().UTC()}
	if err := h.Fees.CreateConfig(ctx, &cfg); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, cfg)
}

// ListConfigs handles GET /v1/fees/config.
func (h *FeeHandler) ListConfigs(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	list, err := h.Reader.ListFeeConfigs(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// CurrentConfig handles GET /v1/fees/config/current.
func (h *FeeHandler) CurrentConfig(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	cfg, err := h.Reports.CurrentFeeConfig(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if cfg == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "fee configuration not set"})
	}
	return c.JSON(http.StatusOK, cfg)
}

// Current handles GET /v1/students/:id/fees/current.
func (h *FeeHandler) Current(c echo.Context) error {
	return h.details(c, "")
}

// Details handles GET /v1/students/:id/fees/details?duration_type=.
func (h *FeeHandler) Details(c echo.Context) error {
	p, err := fee.ParsePeriod(c.QueryParam("duration_type"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return h.details(c, p)
}

func (h *FeeHandler) details(c echo.Context, p fee.Period) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := canSeeStudent(ctx, c, h.Students, id); err != nil {
		return writeError(c, h.Log, err)
	}
	d, err := h.Reports.CurrentFee(ctx, id, p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Balance handles GET /v1/students/:id/fees/balance.
func (h *FeeHandler) Balance(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := canSeeStudent(ctx, c, h.Students, id); err != nil {
		return writeError(c, h.Log, err)
	}
	b, err := h.Reports.Balance(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// CreatePayment handles POST /v1/fees/payments.
func (h *FeeHandler) CreatePayment(c echo.Context) error {
	var req paymentReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	if !req.AmountPaid.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount_paid must be greater than zero"})
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if _, err := h.Reader.GetStudent(ctx, req.StudentID); err != nil {
		return writeError(c, h.Log, err)
	}
	p := model.FeePayment{
		StudentID:   req.StudentID,
		LedgerID:    req.LedgerID,
		AmountPaid:  req.AmountPaid.Round(2),
		PaymentMode: strings.ToLower(req.PaymentMode),
		PaymentDate: time.Now().UTC(),
	}
	if ref := strings.TrimSpace(req.ReferenceID); ref != "" {
		p.ReferenceID = &ref
	}
	if req.PaymentDate != nil {
		p.PaymentDate = req.PaymentDate.UTC()
	}
	if err := h.Fees.CreatePayment(ctx, &p); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// ListPayments handles GET /v1/students/:id/fees/payments.
func (h *FeeHandler) ListPayments(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := canSeeStudent(ctx, c, h.Students, id); err != nil {
		return writeError(c, h.Log, err)
	}
	list, err := h.Reader.ListPayments(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}
