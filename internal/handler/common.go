package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-management/internal/allocation"
	"github.com/iliyamo/hostel-management/internal/fee"
	"github.com/iliyamo/hostel-management/internal/middleware"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/repository"
	"github.com/iliyamo/hostel-management/internal/validation"
)

const defaultTimeout = 5 * time.Second

// StudentLookup resolves the student profile linked to a login account.
type StudentLookup interface {
	GetByUserID(ctx context.Context, userID uint64) (model.Student, error)
}

// writeError maps an error kind to a status code.  Unclassified errors
// are logged and answered with a generic 500.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, allocation.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, allocation.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, allocation.ErrInvalidInput), errors.Is(err, fee.ErrInvalidPeriod):
		status = http.StatusBadRequest
	case errors.Is(err, allocation.ErrContention), errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "resource busy, retry the request"})
	case errors.Is(err, repository.ErrForbidden):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err))
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

// bind decodes the body into dst and runs struct validation.  A non-nil
// return means the response has been written.
func bind(c echo.Context, dst any) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(dst); err != nil {
		if v, ok := c.Echo().Validator.(*validation.Validator); ok {
			if fields := v.Fields(err); fields != nil {
				return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fields})
			}
		}
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return true, nil
}

func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func queryID(c echo.Context, name string) (uint64, error) {
	s := c.QueryParam(name)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

func badID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
}

func withTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// isStaff reports whether the caller is an admin or a warden.
func isStaff(c echo.Context) bool {
	r := middleware.Role(c)
	return r == model.RoleAdmin || r == model.RoleWarden
}

// canSeeStudent lets staff read any student and an active student read
// only their own profile.
func canSeeStudent(ctx context.Context, c echo.Context, students StudentLookup, studentID uint64) error {
	if isStaff(c) {
		return nil
	}
	uid, ok := middleware.UserID(c)
	if !ok || middleware.Role(c) != model.RoleStudent {
		return repository.ErrForbidden
	}
	own, err := students.GetByUserID(ctx, uid)
	if err != nil {
		if errors.Is(err, allocation.ErrNotFound) {
			return repository.ErrForbidden
		}
		return err
	}
	if own.ID != studentID || !own.IsActive {
		return repository.ErrForbidden
	}
	return nil
}
