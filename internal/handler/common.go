package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-slot-booking/internal/middleware"
	"github.com/iliyamo/venue-slot-booking/internal/service"
)

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id != 0
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": service.ErrValidation.Code, "message": msg})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
}

func isAdmin(c echo.Context) bool {
	return middleware.Role(c) == middleware.RoleAdmin
}

// operator builds the caller of an operator action from the token.
func operator(c echo.Context) (service.Operator, bool) {
	uid, ok := middleware.UserID(c)
	return service.Operator{UserID: uid, Admin: isAdmin(c)}, ok
}
