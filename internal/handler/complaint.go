package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/middleware"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/repository"
)

// ComplaintStore persists complaints.
type ComplaintStore interface {
	Create(ctx context.Context, c *model.Complaint) error
	Get(ctx context.Context, id uint64) (model.Complaint, error)
	List(ctx context.Context, f repository.ComplaintFilter) ([]model.Complaint, error)
	UpdateStatus(ctx context.Context, id uint64, status string, assignee *uint64) error
	Delete(ctx context.Context, id uint64) error
}

// ComplaintHandler serves the complaint desk.  Students file and read
// their own complaints; staff triage all of them.
type ComplaintHandler struct {
	Complaints ComplaintStore
	Students   StudentLookup
	Log        *zap.Logger
	Timeout    time.Duration
}

type createComplaintReq struct {
	Category    string `json:"category" validate:"required,complaint_category"`
	Description string `json:"description" validate:"notblank,min=10,max=2000"`
}

type complaintStatusReq struct {
	Status     string  `json:"status" validate:"required,oneof=OPEN IN_PROGRESS CLOSED"`
	AssignedTo *uint64 `json:"assigned_to"`
}

// ownStudent returns the caller's student profile id.
func (h *ComplaintHandler) ownStudent(ctx context.Context, c echo.Context) (uint64, error) {
	uid, ok := middleware.UserID(c)
	if !ok {
		return 0, repository.ErrForbidden
	}
	st, err := h.Students.GetByUserID(ctx, uid)
	if err != nil {
		if errors.Is(err, allocation.ErrNotFound) {
			return 0, repository.ErrForbidden
		}
		return 0, err
	}
	if !st.IsActive {
		return 0, repository.ErrForbidden
	}
	return st.ID, nil
}

// Create handles POST /v1/complaints.
func (h *ComplaintHandler) Create(c echo.Context) error {
	var req createComplaintReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	sid, err := h.ownStudent(ctx, c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	cmp := model.Complaint{
		StudentID:   sid,
		Category:    strings.ToLower(req.Category),
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Complaints.Create(ctx, &cmp); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, cmp)
}

// List handles GET /v1/complaints?status=&category=.
func (h *ComplaintHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	f := repository.ComplaintFilter{
		Status:   strings.ToUpper(c.QueryParam("status")),
		Category: strings.ToLower(c.QueryParam("category")),
	}
	if !isStaff(c) {
		sid, err := h.ownStudent(ctx, c)
		if err != nil {
			return writeError(c, h.Log, err)
		}
		f.StudentID = sid
	}
	list, err := h.Complaints.List(ctx, f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Get handles GET /v1/complaints/:id.
func (h *ComplaintHandler) Get(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	cmp, err := h.Complaints.Get(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if err := canSeeStudent(ctx, c, h.Students, cmp.StudentID); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, cmp)
}

// UpdateStatus handles PUT /v1/complaints/:id/status.
func (h *ComplaintHandler) UpdateStatus(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	var req complaintStatusReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := h.Complaints.UpdateStatus(ctx, id, req.Status, req.AssignedTo); err != nil {
		return writeError(c, h.Log, err)
	}
	cmp, err := h.Complaints.Get(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, cmp)
}

// Delete handles DELETE /v1/complaints/:id.
func (h *ComplaintHandler) Delete(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := h.Complaints.Delete(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
