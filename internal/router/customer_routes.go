package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-hall-booking/internal/handler"
	"github.com/iliyamo/study-hall-booking/internal/middleware"
	"github.com/iliyamo/study-hall-booking/internal/model"
)

// RegisterCustomer registers the booking endpoints under /v1.  Any
// signed-in user may book; handlers check that a booking belongs to the
// requester or to a hall the requester owns.
func RegisterCustomer(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	mw := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleOwner),
	}
	g := e.Group("/v1")
	g.POST("/bookings", b.CreateBooking, mw...)
	g.GET("/bookings/:id", b.GetBooking, mw...)
	g.DELETE("/bookings/:id", b.CancelBooking, mw...)
	g.GET("/my-bookings", b.ListMyBookings, mw...)
}
