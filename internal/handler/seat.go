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

// SeatHandler serves the public seat views and the owner seat endpoints.
type SeatHandler struct {
	registry *service.Registry
	resolver *service.Resolver
	log      *zap.Logger
	Now      func() time.Time
}

func NewSeatHandler(registry *service.Registry, resolver *service.Resolver, log *zap.Logger) *SeatHandler {
	return &SeatHandler{
		registry: registry,
		resolver: resolver,
		log:      log,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

type maintenanceResp struct {
	Reason    model.MaintenanceReason `json:"reason"`
	StartedAt time.Time               `json:"started_at"`
	Until     *time.Time              `json:"until,omitempty"`
}

type seatResp struct {
	ID               uint64           `json:"id"`
	HallID           uint64           `json:"hall_id"`
	SeatNumber       uint32           `json:"seat_number"`
	Position         *model.Position  `json:"coordinates,omitempty"`
	CustomPriceCents *int64           `json:"custom_price_cents,omitempty"`
	LadiesOnly       bool             `json:"ladies_only"`
	Maintenance      *maintenanceResp `json:"maintenance,omitempty"`
}

func toSeatResp(s *model.Seat) seatResp {
	out := seatResp{
		ID:               s.ID,
		HallID:           s.HallID,
		SeatNumber:       s.SeatNumber,
		Position:         s.Position,
		CustomPriceCents: s.CustomPriceCents,
		LadiesOnly:       s.LadiesOnly,
	}
	if m := s.Maintenance; m != nil {
		out.Maintenance = &maintenanceResp{Reason: m.Reason, StartedAt: m.StartedAt, Until: m.Until}
	}
	return out
}

// SeatMap handles GET /v1/halls/:id/seats?at=.  at defaults to now.
func (h *SeatHandler) SeatMap(c echo.Context) error {
	hallID, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid hall id")
	}
	at, err := timeQuery(c, "at", h.Now())
	if err != nil {
		return badRequest(c, err.Error())
	}
	seats, err := h.resolver.SeatMap(c.Request().Context(), hallID, at)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"hall_id": hallID, "at": at, "seats": seats})
}

// Availability handles GET /v1/seats/:id/availability?start=&end=.
func (h *SeatHandler) Availability(c echo.Context) error {
	seatID, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid seat id")
	}
	start, err := timeQuery(c, "start", time.Time{})
	if err != nil {
		return badRequest(c, err.Error())
	}
	end, err := timeQuery(c, "end", time.Time{})
	if err != nil {
		return badRequest(c, err.Error())
	}
	ok, err = h.resolver.IsAvailable(c.Request().Context(), seatID, start, end)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"seat_id": seatID, "start": start, "end": end, "available": ok})
}

type addSeatReq struct {
	SeatNumber       uint32 `json:"seat_number" validate:"required"`
	Row              *int   `json:"row" validate:"omitempty,min=0"`
	Col              *int   `json:"col" validate:"omitempty,min=0"`
	CustomPriceCents *int64 `json:"custom_price_cents" validate:"omitempty,min=0"`
	LadiesOnly       bool   `json:"ladies_only"`
}

// AddSeat handles POST /v1/halls/:id/seats (owner).
func (h *SeatHandler) AddSeat(c echo.Context) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	hallID, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid hall id")
	}
	var req addSeatReq
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if (req.Row == nil) != (req.Col == nil) {
		return badRequest(c, "row and col must be given together")
	}
	seat := model.Seat{
		HallID:           hallID,
		SeatNumber:       req.SeatNumber,
		CustomPriceCents: req.CustomPriceCents,
		LadiesOnly:       req.LadiesOnly,
	}
	if req.Row != nil {
		seat.Position = &model.Position{Row: *req.Row, Col: *req.Col}
	}
	created, err := h.registry.AddSeat(c.Request().Context(), ownerID, seat)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, toSeatResp(created))
}

type maintenanceReq struct {
	Reason model.MaintenanceReason `json:"reason" validate:"required"`
	Until  *time.Time              `json:"until"`
}

// SetMaintenance handles PUT /v1/seats/:id/maintenance (owner).
func (h *SeatHandler) SetMaintenance(c echo.Context) error {
	seatID, ok, err := h.ownedSeat(c)
	if !ok {
		return err
	}
	var req maintenanceReq
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	seat, err := h.registry.SetMaintenance(c.Request().Context(), seatID, req.Reason, req.Until)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toSeatResp(seat))
}

// ClearMaintenance handles DELETE /v1/seats/:id/maintenance (owner).
func (h *SeatHandler) ClearMaintenance(c echo.Context) error {
	seatID, ok, err := h.ownedSeat(c)
	if !ok {
		return err
	}
	seat, err := h.registry.ClearMaintenance(c.Request().Context(), seatID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toSeatResp(seat))
}

// DeleteSeat handles DELETE /v1/seats/:id (owner).
func (h *SeatHandler) DeleteSeat(c echo.Context) error {
	seatID, ok, err := h.ownedSeat(c)
	if !ok {
		return err
	}
	if err := h.registry.DeleteSeat(c.Request().Context(), seatID); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ownedSeat resolves the :id seat and checks that the requester owns its
// hall.  When ok is false the response has been written and err is the
// write error, if any.
func (h *SeatHandler) ownedSeat(c echo.Context) (seatID uint64, ok bool, err error) {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return 0, false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	seatID, ok = idParam(c, "id")
	if !ok {
		return 0, false, badRequest(c, "invalid seat id")
	}
	owns, err := h.registry.OwnsSeat(c.Request().Context(), seatID, ownerID)
	if err != nil {
		return 0, false, writeError(c, h.log, err)
	}
	if !owns {
		return 0, false, writeError(c, h.log, model.ErrForbidden)
	}
	return seatID, true, nil
}
