// Package router registers the HTTP API on an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-management/internal/handler"
	"github.com/iliyamo/hostel-management/internal/middleware"
	"github.com/iliyamo/hostel-management/internal/model"
)

// Handlers bundles every endpoint implementation.
type Handlers struct {
	Health      echo.HandlerFunc
	Auth        *handler.AuthHandler
	Rooms       *handler.RoomHandler
	Allocations *handler.AllocationHandler
	Students    *handler.StudentHandler
	Fees        *handler.FeeHandler
	Reports     *handler.ReportHandler
	Complaints  *handler.ComplaintHandler
	Attendance  *handler.AttendanceHandler
}

// Middlewares are shared by the authenticated groups.  RateLimit and
// Cache may be nil.
type Middlewares struct {
	JWTSecret string
	RateLimit echo.MiddlewareFunc
	Cache     *middleware.ResponseCache
}

// group returns a /v1 group that authenticates the caller, enforces roles
// when given, and drops cached reports after successful writes.
func (m Middlewares) group(e *echo.Echo, roles ...string) *echo.Group {
	mws := []echo.MiddlewareFunc{middleware.JWTAuth(m.JWTSecret)}
	if len(roles) > 0 {
		mws = append(mws, middleware.RequireRole(roles...))
	}
	if m.RateLimit != nil {
		mws = append(mws, m.RateLimit)
	}
	mws = append(mws, m.Cache.InvalidateOnWrite())
	return e.Group("/v1", mws...)
}

// cached wraps report reads with the response cache.
func (m Middlewares) cached() echo.MiddlewareFunc {
	return m.Cache.Middleware()
}

// Register wires all routes.
func Register(e *echo.Echo, h Handlers, m Middlewares) {
	RegisterRoutes(e, h.Health)
	RegisterAuth(e, h.Auth, m)
	RegisterStaff(e, h, m)
	RegisterAdmin(e, h, m)
	RegisterMember(e, h, m)
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
}

// RegisterAuth registers login and session routes.  Staff accounts are
// created by admins only.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, m Middlewares) {
	g := e.Group("/v1/auth")
	if m.RateLimit != nil {
		g.Use(m.RateLimit)
	}
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	auth := m.group(e)
	auth.POST("/auth/logout", a.Logout)
	auth.GET("/me", a.Me)

	admin := m.group(e, model.RoleAdmin)
	admin.POST("/auth/register", a.Register)
}
