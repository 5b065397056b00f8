package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/report"
)

// RoomHandler serves room inventory endpoints.
type RoomHandler struct {
	Engine  *allocation.Engine
	Reader  report.Reader
	Reports *report.Service
	Log     *zap.Logger
	Timeout time.Duration
}

func NewRoomHandler(e *allocation.Engine, r report.Reader, s *report.Service, log *zap.Logger, timeout time.Duration) *RoomHandler {
	return &RoomHandler{Engine: e, Reader: r, Reports: s, Log: log, Timeout: timeout}
}

type roomReq struct {
	Block      string `json:"hostel_block" validate:"notblank,max=50"`
	RoomNumber string `json:"room_number" validate:"notblank,max=20"`
	Capacity   int    `json:"capacity" validate:"min=1"`
}

type roomRangeReq struct {
	Block    string `json:"hostel_block" validate:"notblank,max=50"`
	Start    int    `json:"start" validate:"min=0"`
	End      int    `json:"end" validate:"gtefield=Start"`
	Capacity int    `json:"capacity" validate:"min=1"`
}

// List handles GET /v1/rooms?block=&available=true.
func (h *RoomHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	f := report.RoomFilter{
		Block:         strings.TrimSpace(c.QueryParam("block")),
		AvailableOnly: c.QueryParam("available") == "true",
	}
	rooms, err := h.Reader.ListRooms(ctx, f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rooms)
}

// Available handles GET /v1/rooms/available.
func (h *RoomHandler) Available(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	rooms, err := h.Reader.ListRooms(ctx, report.RoomFilter{AvailableOnly: true})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rooms)
}

// Create handles POST /v1/rooms.
func (h *RoomHandler) Create(c echo.Context) error {
	var req roomReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	room, err := h.Engine.CreateRoom(ctx, allocation.RoomInput{Block: req.Block, RoomNumber: req.RoomNumber, Capacity: req.Capacity})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, room)
}

// CreateRange handles POST /v1/rooms/bulk.
func (h *RoomHandler) CreateRange(c echo.Context) error {
	var req roomRangeReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	res, err := h.Engine.CreateRoomRange(ctx, req.Block, req.Start, req.End, req.Capacity)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Update handles PUT /v1/rooms/:id.
func (h *RoomHandler) Update(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	var req roomReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	room, err := h.Engine.UpdateRoom(ctx, id, allocation.RoomInput{Block: req.Block, RoomNumber: req.RoomNumber, Capacity: req.Capacity})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, room)
}

// Delete handles DELETE /v1/rooms/:id.
func (h *RoomHandler) Delete(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := h.Engine.DeleteRoom(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Timeline handles GET /v1/rooms/occupancy-timeline?block=&room_id=.
func (h *RoomHandler) Timeline(c echo.Context) error {
	roomID, err := queryID(c, "room_id")
	if err != nil {
		return badID(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	tl, err := h.Reports.OccupancyTimeline(ctx, strings.TrimSpace(c.QueryParam("block")), roomID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, tl)
}
