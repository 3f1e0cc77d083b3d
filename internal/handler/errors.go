package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/study-hall-booking/internal/model"
	"github.com/iliyamo/study-hall-booking/internal/repository"
)

// statusFor maps an error kind from the core to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrForbidden),
		errors.Is(err, model.ErrForbiddenCancellation),
		errors.Is(err, model.ErrPolicyViolation):
		return http.StatusForbidden
	case model.IsConflictError(err), errors.Is(err, repository.ErrEmailExists):
		return http.StatusConflict
	case model.IsValidationError(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError is the one place core errors become HTTP responses.  Client
// errors echo the error kind; anything else is logged and hidden.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.Error(err),
		)
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

// badRequest reports malformed input caught before the core is called.
func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
