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

// HallHandler serves the owner hall endpoints: creation, lifecycle and
// reports.
type HallHandler struct {
	registry *service.Registry
	reporter *service.Reporter
	log      *zap.Logger
}

func NewHallHandler(registry *service.Registry, reporter *service.Reporter, log *zap.Logger) *HallHandler {
	return &HallHandler{registry: registry, reporter: reporter, log: log}
}

const maxReportPeriod = 366 * 24 * time.Hour

type hallResp struct {
	ID                uint64           `json:"id"`
	OwnerID           uint64           `json:"owner_id"`
	Name              string           `json:"name"`
	SeatCount         int              `json:"seat_count"`
	DefaultPriceCents int64            `json:"default_price_cents"`
	Status            model.HallStatus `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func toHallResp(h *model.Hall) hallResp {
	return hallResp{
		ID:                h.ID,
		OwnerID:           h.OwnerID,
		Name:              h.Name,
		SeatCount:         h.SeatCount,
		DefaultPriceCents: h.DefaultPriceCents,
		Status:            h.Status,
		CreatedAt:         h.CreatedAt,
		UpdatedAt:         h.UpdatedAt,
	}
}

type createHallReq struct {
	Name              string `json:"name" validate:"required,max=255"`
	SeatCount         int    `json:"seat_count" validate:"required,min=1,max=10000"`
	DefaultPriceCents int64  `json:"default_price_cents" validate:"min=0"`
}

// CreateHall handles POST /v1/halls.  New halls start in DRAFT.
func (h *HallHandler) CreateHall(c echo.Context) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createHallReq
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	hall, err := h.registry.CreateHall(c.Request().Context(), ownerID, req.Name, req.SeatCount, req.DefaultPriceCents)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, toHallResp(hall))
}

type hallStatusReq struct {
	Status string `json:"status" validate:"required,oneof=DRAFT ACTIVE INACTIVE"`
}

// SetStatus handles PATCH /v1/halls/:id/status.
func (h *HallHandler) SetStatus(c echo.Context) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	hallID, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid hall id")
	}
	var req hallStatusReq
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	to, _ := model.ParseHallStatus(req.Status) // validated above
	hall, err := h.registry.SetHallStatus(c.Request().Context(), hallID, ownerID, to)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toHallResp(hall))
}

// Report handles GET /v1/halls/:id/report?start=&end=.  Only the hall's
// owner may read it.
func (h *HallHandler) Report(c echo.Context) error {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	hallID, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid hall id")
	}
	start, err := timeQuery(c, "start", time.Time{})
	if err != nil {
		return badRequest(c, err.Error())
	}
	end, err := timeQuery(c, "end", time.Time{})
	if err != nil {
		return badRequest(c, err.Error())
	}
	if end.Sub(start) > maxReportPeriod {
		return badRequest(c, "report period must not exceed 366 days")
	}

	ctx := c.Request().Context()
	hall, err := h.registry.GetHall(ctx, hallID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if hall.OwnerID != ownerID {
		return writeError(c, h.log, model.ErrForbidden)
	}
	rep, err := h.reporter.HallReport(ctx, hallID, start, end)
	if err != nil {
		return writeError(c, h.log, err)
	}
	top := service.TopHours(rep.BusiestHours, 3)
	return c.JSON(http.StatusOK, echo.Map{"report": rep, "top_hours": top})
}
