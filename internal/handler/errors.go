package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-slot-booking/internal/repository"
	"github.com/iliyamo/venue-slot-booking/internal/service"
)

var kindStatus = map[service.Kind]int{
	service.KindValidation:   http.StatusBadRequest,
	service.KindConflict:     http.StatusConflict,
	service.KindNotFound:     http.StatusNotFound,
	service.KindState:        http.StatusConflict,
	service.KindAuthenticity: http.StatusUnauthorized,
	service.KindForbidden:    http.StatusForbidden,
}

// respondError writes err as {"error": code, "message": ...}.  Errors the
// engine does not classify are logged and reported as 500.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	var se *service.Error
	if errors.As(err, &se) {
		body := echo.Map{"error": se.Code, "message": err.Error()}
		var su *service.SlotUnavailableError
		if errors.As(err, &su) {
			body["unavailable"] = su.SlotIDs
		}
		return c.JSON(kindStatus[se.Kind], body)
	}
	if errors.Is(err, repository.ErrLockConflict) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "contention", "message": "please retry"})
	}
	log.Error("handler: unexpected error",
		zap.String("method", c.Request().Method), zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
