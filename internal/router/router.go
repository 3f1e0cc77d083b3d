package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/study-hall-booking/internal/handler"
	"github.com/iliyamo/study-hall-booking/internal/middleware"
)

// New builds the Echo instance with the global middleware chain.  Recover
// sits inside the request logger so panics are logged as 500s.
func New(log *zap.Logger, rateLimit echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(
		middleware.RequestID(),
		middleware.RequestLogger(log),
		echomw.Recover(),
		rateLimit,
	)
	return e
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
}

// RegisterAuth registers the session endpoints under /v1/auth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
}

// RegisterPublic registers the unauthenticated seat views.  The seat map
// goes through the response cache; availability is always computed.
func RegisterPublic(e *echo.Echo, s *handler.SeatHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/halls/:id/seats", s.SeatMap, cache)
	e.GET("/v1/seats/:id/availability", s.Availability)
}
