package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const ctxRequestID = "request_id"

// RequestID reuses an incoming X-Request-ID or assigns a new UUID, and
// echoes it on the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			c.Set(ctxRequestID, id)
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

// GetRequestID returns the ID assigned by RequestID.
func GetRequestID(c echo.Context) string {
	id, _ := c.Get(ctxRequestID).(string)
	return id
}
