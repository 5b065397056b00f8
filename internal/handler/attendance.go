package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/report"
	"github.com/iliyamo/hostel-management/internal/repository"
)

// AttendanceStore records daily roll calls.
type AttendanceStore interface {
	Mark(ctx context.Context, date time.Time, marks map[uint64]string) error
	ListByDate(ctx context.Context, date time.Time) ([]repository.AttendanceRecord, error)
}

// AttendanceHandler serves the warden's roll call.
type AttendanceHandler struct {
	Attendance AttendanceStore
	Reader     report.Reader
	Location   *time.Location
	Log        *zap.Logger
	Timeout    time.Duration
}

type attendanceMark struct {
	StudentID uint64 `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absent"`
}

type markAttendanceReq struct {
	Date    string           `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Records []attendanceMark `json:"records" validate:"required,min=1,dive"`
}

// day parses s as a calendar date, defaulting to today.
func (h *AttendanceHandler) day(s string) (time.Time, error) {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	if s == "" {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
	}
	return time.ParseInLocation(time.DateOnly, s, loc)
}

// Mark handles POST /v1/attendance.  A later mark for the same student
// and day replaces the earlier one.
func (h *AttendanceHandler) Mark(c echo.Context) error {
	var req markAttendanceReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	d, err := h.day(req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	marks := make(map[uint64]string, len(req.Records))
	for _, r := range req.Records {
		marks[r.StudentID] = r.Status
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := h.Attendance.Mark(ctx, d, marks); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": d.Format(time.DateOnly), "marked": len(marks)})
}

// ListByDate handles GET /v1/attendance?date=YYYY-MM-DD.
func (h *AttendanceHandler) ListByDate(c echo.Context) error {
	d, err := h.day(c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	list, err := h.Attendance.ListByDate(ctx, d)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": d.Format(time.DateOnly), "records": list})
}

type rosterEntry struct {
	model.Student
	AttendanceStatus string `json:"attendance_status"`
}

type rosterSummary struct {
	Present   int `json:"present"`
	Absent    int `json:"absent"`
	NotMarked int `json:"not_marked"`
}

// RoomRoster handles GET /v1/attendance/rooms/:id/students?date=YYYY-MM-DD:
// the active students placed in a room with their mark for the day.
func (h *AttendanceHandler) RoomRoster(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	d, err := h.day(c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	room, err := h.Reader.GetRoom(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	students, err := h.Reader.ListStudents(ctx, report.StudentFilter{ActiveOnly: true})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	records, err := h.Attendance.ListByDate(ctx, d)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	marks := make(map[uint64]string, len(records))
	for _, r := range records {
		marks[r.StudentID] = r.Status
	}

	var sum rosterSummary
	out := []rosterEntry{}
	for _, st := range students {
		if st.RoomID == nil || *st.RoomID != id {
			continue
		}
		status, ok := marks[st.ID]
		switch {
		case !ok:
			status = model.AttendanceNotMarked
			sum.NotMarked++
		case status == model.AttendancePresent:
			sum.Present++
		default:
			sum.Absent++
		}
		out = append(out, rosterEntry{Student: st, AttendanceStatus: status})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"room":               room,
		"date":               d.Format(time.DateOnly),
		"total_students":     len(out),
		"attendance_summary": sum,
		"students":           out,
	})
}
