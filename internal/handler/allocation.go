package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/report"
)

// AllocationHandler exposes the allocation engine.
type AllocationHandler struct {
	Engine  *allocation.Engine
	Reader  report.Reader
	Log     *zap.Logger
	Timeout time.Duration
}

func NewAllocationHandler(e *allocation.Engine, r report.Reader, log *zap.Logger, timeout time.Duration) *AllocationHandler {
	return &AllocationHandler{Engine: e, Reader: r, Log: log, Timeout: timeout}
}

type autoAssignReq struct {
	StudentID uint64 `json:"student_id" validate:"required"`
}

type allocateReq struct {
	StudentID uint64 `json:"student_id" validate:"required"`
	RoomID    uint64 `json:"room_id" validate:"required"`
}

type transferReq struct {
	StudentID uint64 `json:"student_id" validate:"required"`
	NewRoomID uint64 `json:"new_room_id" validate:"required"`
}

// AutoAssign handles POST /v1/allocations/auto.
func (h *AllocationHandler) AutoAssign(c echo.Context) error {
	var req autoAssignReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	res, err := h.Engine.AutoAssign(ctx, req.StudentID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Allocate handles POST /v1/allocations.
func (h *AllocationHandler) Allocate(c echo.Context) error {
	var req allocateReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	res, err := h.Engine.Allocate(ctx, req.StudentID, req.RoomID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Vacate handles POST /v1/allocations/:id/vacate.
func (h *AllocationHandler) Vacate(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	res, err := h.Engine.Vacate(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if res.AlreadyVacated {
		return c.JSON(http.StatusOK, echo.Map{"message": "allocation already vacated", "allocation": res.Allocation})
	}
	return c.JSON(http.StatusOK, res)
}

// Transfer handles POST /v1/allocations/transfer.
func (h *AllocationHandler) Transfer(c echo.Context) error {
	var req transferReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	res, err := h.Engine.Transfer(ctx, req.StudentID, req.NewRoomID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// AssignAll handles POST /v1/allocations/assign-all?dry_run=true.  The
// sweep places students one transaction at a time, so it runs under the
// request context without the per-transaction timeout.
func (h *AllocationHandler) AssignAll(c echo.Context) error {
	rep, err := h.Engine.AssignAll(c.Request().Context(), c.QueryParam("dry_run") == "true")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rep)
}

// List handles GET /v1/allocations?student_id=&room_id=&active=true.
func (h *AllocationHandler) List(c echo.Context) error {
	studentID, err := queryID(c, "student_id")
	if err != nil {
		return badID(c)
	}
	roomID, err := queryID(c, "room_id")
	if err != nil {
		return badID(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	list, err := h.Reader.ListAllocations(ctx, report.AllocationFilter{
		StudentID:  studentID,
		RoomID:     roomID,
		ActiveOnly: c.QueryParam("active") == "true",
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}
