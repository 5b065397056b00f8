package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/report"
)

// ReportHandler serves staff dashboards.
type ReportHandler struct {
	Reports *report.Service
	Log     *zap.Logger
	Timeout time.Duration
}

func NewReportHandler(s *report.Service, log *zap.Logger, timeout time.Duration) *ReportHandler {
	return &ReportHandler{Reports: s, Log: log, Timeout: timeout}
}

// Dashboard handles GET /v1/reports/dashboard.
func (h *ReportHandler) Dashboard(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	d, err := h.Reports.Dashboard(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Occupancy handles GET /v1/reports/occupancy.
func (h *ReportHandler) Occupancy(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	o, err := h.Reports.Occupancy(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, o)
}

// StaySummary handles GET /v1/reports/stay-summary.
func (h *ReportHandler) StaySummary(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	s, err := h.Reports.StaySummary(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}

// FeeSummary handles GET /v1/reports/fee-summary.
func (h *ReportHandler) FeeSummary(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	rev, err := h.Reports.FeeSummary(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rev)
}
