package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-management/internal/model"
)

// RegisterStaff registers endpoints open to admins and wardens.
func RegisterStaff(e *echo.Echo, h Handlers, m Middlewares) {
	g := m.group(e, model.RoleAdmin, model.RoleWarden)

	// rooms
	g.GET("/rooms", h.Rooms.List)
	g.GET("/rooms/available", h.Rooms.Available)
	g.GET("/rooms/occupancy-timeline", h.Rooms.Timeline, m.cached())
	g.PUT("/rooms/:id", h.Rooms.Update)
	g.DELETE("/rooms/:id", h.Rooms.Delete)

	// allocations
	g.GET("/allocations", h.Allocations.List)
	g.POST("/allocations", h.Allocations.Allocate)
	g.POST("/allocations/auto", h.Allocations.AutoAssign)
	g.POST("/allocations/transfer", h.Allocations.Transfer)
	g.POST("/allocations/:id/vacate", h.Allocations.Vacate)

	// students
	g.POST("/students", h.Students.Create)
	g.GET("/students", h.Students.List)
	g.GET("/students/without-room", h.Students.WithoutRoom)
	g.PUT("/students/:id", h.Students.Update)
	g.DELETE("/students/:id", h.Students.Delete)

	// reports
	g.GET("/reports/occupancy", h.Reports.Occupancy, m.cached())
	g.GET("/reports/stay-summary", h.Reports.StaySummary, m.cached())
	g.GET("/reports/fee-summary", h.Reports.FeeSummary, m.cached())

	// fees
	g.GET("/fees/config", h.Fees.ListConfigs)
	g.POST("/fees/payments", h.Fees.CreatePayment)

	// complaints
	g.PUT("/complaints/:id/status", h.Complaints.UpdateStatus)

	// attendance
	g.POST("/attendance", h.Attendance.Mark)
	g.GET("/attendance", h.Attendance.ListByDate)
	g.GET("/attendance/rooms/:id/students", h.Attendance.RoomRoster)
}

// RegisterAdmin registers endpoints restricted to admins.
func RegisterAdmin(e *echo.Echo, h Handlers, m Middlewares) {
	g := m.group(e, model.RoleAdmin)

	g.POST("/rooms", h.Rooms.Create)
	g.POST("/rooms/bulk", h.Rooms.CreateRange)
	g.POST("/allocations/assign-all", h.Allocations.AssignAll)
	g.GET("/reports/dashboard", h.Reports.Dashboard, m.cached())
	g.POST("/fees/config", h.Fees.CreateConfig)
	g.DELETE("/complaints/:id", h.Complaints.Delete)
}
