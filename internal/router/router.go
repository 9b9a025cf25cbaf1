// Package router registers the HTTP routes.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-slot-booking/internal/handler"
	"github.com/iliyamo/venue-slot-booking/internal/middleware"
)

// Deps bundles what the routes need.
type Deps struct {
	JWTSecret string
	Health    echo.HandlerFunc
	Bookings  *handler.BookingHandler
	Slots     *handler.SlotHandler
	RateLimit echo.MiddlewareFunc // applied to every /v1 route
	Cache     echo.MiddlewareFunc // applied to the public slot listing
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// Register mounts every route on e.
func Register(e *echo.Echo, d Deps) {
	if d.RateLimit == nil {
		d.RateLimit = passThrough
	}
	if d.Cache == nil {
		d.Cache = passThrough
	}
	e.GET("/healthz", d.Health)

	v1 := e.Group("/v1", d.RateLimit)

	// public availability browsing
	v1.GET("/facilities/:id/slots", d.Slots.List, d.Cache)

	auth := middleware.JWTAuth(d.JWTSecret)

	customer := v1.Group("/bookings", auth, middleware.RequireRole(middleware.RoleCustomer, middleware.RoleAdmin))
	customer.POST("/reserve", d.Bookings.Reserve)
	customer.GET("/:id", d.Bookings.Get)
	customer.POST("/:id/order", d.Bookings.CreateOrder)
	customer.POST("/:id/verify", d.Bookings.Verify)

	partner := []echo.MiddlewareFunc{auth, middleware.RequireRole(middleware.RolePartner, middleware.RoleAdmin)}
	v1.POST("/facilities/:id/slots", d.Slots.Create, partner...)
	v1.POST("/facilities/:id/slots/bulk", d.Slots.BulkGenerate, partner...)
	v1.PATCH("/slots/:id/availability", d.Slots.SetAvailability, partner...)
}
