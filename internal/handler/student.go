package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/report"
)

// StudentDirectory stores student profiles.
type StudentDirectory interface {
	StudentLookup
	Enroll(ctx context.Context, st *model.Student, password string, cost int) error
	Update(ctx context.Context, id uint64, p model.StudentPatch) (model.Student, error)
}

// Accounts disables login accounts.
type Accounts interface {
	SetActive(ctx context.Context, id uint64, active bool) error
}

// SessionRevoker ends every session of a user.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// StudentHandler serves the student directory and per-student reports.
type StudentHandler struct {
	Engine     *allocation.Engine
	Reader     report.Reader
	Reports    *report.Service
	Students   StudentDirectory
	Users      Accounts
	Tokens     SessionRevoker
	BcryptCost int
	Log        *zap.Logger
	Timeout    time.Duration
}

type createStudentReq struct {
	Name           string `json:"name" validate:"notblank,max=100"`
	Email          string `json:"email" validate:"required,email"`
	RegisterNumber string `json:"register_number" validate:"notblank,max=50"`
	MobileNumber   string `json:"mobile_number" validate:"required,max=15"`
	Course         string `json:"course" validate:"notblank,max=100"`
	Year           int    `json:"year" validate:"min=1,max=10"`
	ParentName     string `json:"parent_name" validate:"max=100"`
	ParentMobile   string `json:"parent_mobile" validate:"max=15"`
	// Password, when set, creates a STUDENT login with the same email.
	Password string `json:"password" validate:"omitempty,min=8,max=72"`
}

// Create handles POST /v1/students.
func (h *StudentHandler) Create(c echo.Context) error {
	var req createStudentReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	st := model.Student{
		Name:           strings.TrimSpace(req.Name),
		Email:          req.Email,
		RegisterNumber: strings.TrimSpace(req.RegisterNumber),
		MobileNumber:   strings.TrimSpace(req.MobileNumber),
		Course:         strings.TrimSpace(req.Course),
		Year:           req.Year,
		ParentName:     strings.TrimSpace(req.ParentName),
		ParentMobile:   strings.TrimSpace(req.ParentMobile),
	}
	if err := h.Students.Enroll(ctx, &st, req.Password, h.BcryptCost); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, st)
}

type updateStudentReq struct {
	Name         *string `json:"name" validate:"omitempty,notblank,max=100"`
	Email        *string `json:"email" validate:"omitempty,email"`
	MobileNumber *string `json:"mobile_number" validate:"omitempty,max=15"`
	Course       *string `json:"course" validate:"omitempty,notblank,max=100"`
	Year         *int    `json:"year" validate:"omitempty,min=1,max=10"`
	ParentName   *string `json:"parent_name" validate:"omitempty,max=100"`
	ParentMobile *string `json:"parent_mobile" validate:"omitempty,max=15"`
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// Update handles PUT /v1/students/:id.  Only the fields present in the
// body change.
func (h *StudentHandler) Update(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	var req updateStudentReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	p := model.StudentPatch{
		Name:         trimmed(req.Name),
		Email:        trimmed(req.Email),
		MobileNumber: trimmed(req.MobileNumber),
		Course:       trimmed(req.Course),
		Year:         req.Year,
		ParentName:   trimmed(req.ParentName),
		ParentMobile: trimmed(req.ParentMobile),
	}
	if p.Empty() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no fields to update"})
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	st, err := h.Students.Update(ctx, id, p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}

// List handles GET /v1/students?active=true.
func (h *StudentHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	list, err := h.Reader.ListStudents(ctx, report.StudentFilter{ActiveOnly: c.QueryParam("active") == "true"})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// WithoutRoom handles GET /v1/students/without-room.
func (h *StudentHandler) WithoutRoom(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	list, err := h.Reader.ListStudents(ctx, report.StudentFilter{ActiveOnly: true, WithoutRoom: true})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(list), "students": list})
}

// Get handles GET /v1/students/:id.
func (h *StudentHandler) Get(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := canSeeStudent(ctx, c, h.Students, id); err != nil {
		return writeError(c, h.Log, err)
	}
	st, err := h.Reader.GetStudent(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Delete handles DELETE /v1/students/:id.  The student is deactivated,
// their active allocation, if any, is vacated and their login is
// disabled.
func (h *StudentHandler) Delete(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	res, err := h.Engine.RemoveStudent(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	st, err := h.Reader.GetStudent(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if st.UserID != nil {
		// RemoveStudent is repeatable; the request may be retried.
		if err := h.Users.SetActive(ctx, *st.UserID, false); err != nil {
			return writeError(c, h.Log, err)
		}
		if err := h.Tokens.RevokeAllForUser(ctx, *st.UserID); err != nil {
			return writeError(c, h.Log, err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "student deactivated", "vacated": res.Allocation})
}

// StayHistory handles GET /v1/students/:id/stay-history.
func (h *StudentHandler) StayHistory(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := canSeeStudent(ctx, c, h.Students, id); err != nil {
		return writeError(c, h.Log, err)
	}
	hist, err := h.Reports.StayHistory(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, hist)
}
