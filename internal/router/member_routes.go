package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-management/internal/middleware"
	"github.com/iliyamo/hostel-management/internal/model"
)

// RegisterMember registers endpoints any signed-in role may call.  A
// student is limited to their own records by the handlers.
func RegisterMember(e *echo.Echo, h Handlers, m Middlewares) {
	g := m.group(e, model.RoleAdmin, model.RoleWarden, model.RoleStudent)

	g.GET("/students/:id", h.Students.Get)
	g.GET("/students/:id/stay-history", h.Students.StayHistory)
	g.GET("/students/:id/fees/current", h.Fees.Current)
	g.GET("/students/:id/fees/details", h.Fees.Details)
	g.GET("/students/:id/fees/balance", h.Fees.Balance)
	g.GET("/students/:id/fees/payments", h.Fees.ListPayments)
	g.GET("/fees/config/current", h.Fees.CurrentConfig)

	g.POST("/complaints", h.Complaints.Create, middleware.RequireRole(model.RoleStudent))
	g.GET("/complaints", h.Complaints.List)
	g.GET("/complaints/:id", h.Complaints.Get)
}
