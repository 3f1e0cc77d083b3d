package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/study-hall-booking/internal/middleware"
	"github.com/iliyamo/study-hall-booking/internal/model"
	"github.com/iliyamo/study-hall-booking/internal/service"
)

// BookingHandler serves the customer booking endpoints.  JWTAuth must run
// first; the requester is always the authenticated user.
type BookingHandler struct {
	bookings *service.BookingService
	log      *zap.Logger
}

func NewBookingHandler(bookings *service.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, log: log}
}

type createBookingReq struct {
	SeatID uint64    `json:"seat_id" validate:"required"`
	Start  time.Time `json:"start" validate:"required"`
	End    time.Time `json:"end" validate:"required"`
}

// CreateBooking handles POST /v1/bookings.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	b, err := h.bookings.CreateBooking(c.Request().Context(), req.SeatID, userID, req.Start.UTC(), req.End.UTC())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// CancelBooking handles DELETE /v1/bookings/:id.  The booking's user or
// the hall owner may cancel; repeating a cancel returns the booking as is.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	b, err := h.bookings.CancelBooking(c.Request().Context(), id, userID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// GetBooking handles GET /v1/bookings/:id.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	b, err := h.bookings.GetBooking(c.Request().Context(), id, userID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ListMyBookings handles GET /v1/my-bookings, newest first.
func (h *BookingHandler) ListMyBookings(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.bookings.ListMyBookings(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if list == nil {
		list = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list, "count": len(list)})
}
