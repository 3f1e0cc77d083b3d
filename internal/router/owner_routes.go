package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-hall-booking/internal/handler"
	"github.com/iliyamo/study-hall-booking/internal/middleware"
	"github.com/iliyamo/study-hall-booking/internal/model"
)

// RegisterOwner registers OWNER-scoped endpoints under /v1.  All routes
// require a valid JWT and the OWNER role; handlers additionally check
// ownership of the hall involved.
func RegisterOwner(e *echo.Echo, s *handler.SeatHandler, h *handler.HallHandler, jwtSecret string) {
	mw := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOwner),
	}
	g := e.Group("/v1")

	// ---- Halls ----
	g.POST("/halls", h.CreateHall, mw...)
	g.PATCH("/halls/:id/status", h.SetStatus, mw...)
	g.GET("/halls/:id/report", h.Report, mw...)

	// ---- Seats ----
	g.POST("/halls/:id/seats", s.AddSeat, mw...)
	g.PUT("/seats/:id/maintenance", s.SetMaintenance, mw...)
	g.DELETE("/seats/:id/maintenance", s.ClearMaintenance, mw...)
	g.DELETE("/seats/:id", s.DeleteSeat, mw...)
}
