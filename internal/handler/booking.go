package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-slot-booking/internal/middleware"
	"github.com/iliyamo/venue-slot-booking/internal/model"
	"github.com/iliyamo/venue-slot-booking/internal/service"
)

// Reserver claims slots and reads bookings.
type Reserver interface {
	Reserve(ctx context.Context, req service.ReserveRequest) (*model.Booking, error)
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
}

// OrderCreator issues payment orders for bookings.
type OrderCreator interface {
	CreateOrder(ctx context.Context, bookingID uint64) (*model.PaymentOrder, error)
}

// PaymentVerifier applies payment callbacks.
type PaymentVerifier interface {
	Verify(ctx context.Context, bookingID uint64, cb model.PaymentCallback) (*model.Booking, error)
}

// BookingHandler serves the customer booking flow: reserve, order, verify.
type BookingHandler struct {
	reservations Reserver
	orders       OrderCreator
	verifier     PaymentVerifier
	log          *zap.Logger
}

func NewBookingHandler(r Reserver, o OrderCreator, v PaymentVerifier, log *zap.Logger) *BookingHandler {
	return &BookingHandler{reservations: r, orders: o, verifier: v, log: log}
}

type reserveBody struct {
	UserID          uint64                 `json:"userId"`
	PartnerID       uint64                 `json:"partnerId"`
	VenueID         uint64                 `json:"venueId"`
	FacilityID      uint64                 `json:"facilityId"`
	ActivityID      uint64                 `json:"activityId"`
	SlotIDs         []uint64               `json:"slotIds"`
	Amount          int64                  `json:"amount"`
	StartTime       string                 `json:"startTime"`
	EndTime         string                 `json:"endTime"`
	BookedDate      string                 `json:"bookedDate"`
	CustomerDetails *model.CustomerDetails `json:"customerDetails"`
}

// Reserve handles POST /v1/bookings/reserve.
func (h *BookingHandler) Reserve(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	var body reserveBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.UserID == 0 {
		body.UserID = uid
	}
	if body.UserID != uid && !isAdmin(c) {
		return forbidden(c)
	}
	b, err := h.reservations.Reserve(c.Request().Context(), service.ReserveRequest{
		UserID:          body.UserID,
		PartnerID:       body.PartnerID,
		VenueID:         body.VenueID,
		FacilityID:      body.FacilityID,
		ActivityID:      body.ActivityID,
		SlotIDs:         body.SlotIDs,
		Amount:          body.Amount,
		StartTime:       body.StartTime,
		EndTime:         body.EndTime,
		BookedDate:      body.BookedDate,
		CustomerDetails: body.CustomerDetails,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"bookingId": b.ID, "expiresAt": b.ExpiresAt.UTC().Format(time.RFC3339)})
}

// owned loads the booking in the :id path parameter and checks that the
// caller owns it.  On failure the response has been written and ok is
// false.
func (h *BookingHandler) owned(c echo.Context) (b *model.Booking, ok bool, err error) {
	id, valid := pathID(c, "id")
	if !valid {
		return nil, false, badRequest(c, "invalid booking id")
	}
	uid, authed := middleware.UserID(c)
	if !authed {
		return nil, false, unauthorized(c)
	}
	b, err = h.reservations.GetBooking(c.Request().Context(), id)
	if err != nil {
		return nil, false, respondError(c, h.log, err)
	}
	if b.UserID != uid && !isAdmin(c) {
		// hide other customers' bookings
		return nil, false, respondError(c, h.log, service.ErrBookingNotFound)
	}
	return b, true, nil
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	b, ok, err := h.owned(c)
	if !ok {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

// CreateOrder handles POST /v1/bookings/:id/order.
func (h *BookingHandler) CreateOrder(c echo.Context) error {
	b, ok, err := h.owned(c)
	if !ok {
		return err
	}
	o, err := h.orders.CreateOrder(c.Request().Context(), b.ID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"orderId": o.ID, "amount": o.Amount, "currency": o.Currency})
}

type verifyBody struct {
	Status    string `json:"status"`
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Signature string `json:"signature"`
	Reason    string `json:"reason"`
}

func (v verifyBody) callback() (model.PaymentCallback, error) {
	switch strings.ToLower(v.Status) {
	case "", "success", "paid":
		return model.CallbackSuccess{PaymentID: v.PaymentID, OrderID: v.OrderID, Signature: v.Signature}, nil
	case "failed", "failure":
		return model.CallbackFailure{OrderID: v.OrderID, Reason: v.Reason}, nil
	}
	return nil, errors.New("status must be success or failed")
}

// Verify handles POST /v1/bookings/:id/verify.
func (h *BookingHandler) Verify(c echo.Context) error {
	b, ok, err := h.owned(c)
	if !ok {
		return err
	}
	var body verifyBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	cb, err := body.callback()
	if err != nil {
		return badRequest(c, err.Error())
	}
	settled, err := h.verifier.Verify(c.Request().Context(), b.ID, cb)
	if err != nil {
		return respondError(c, h.log, err)
	}
	status := "verified"
	if settled.BookingStatus == model.BookingFailed {
		status = "failed"
	}
	return c.JSON(http.StatusOK, echo.Map{"status": status, "bookingId": settled.ID})
}
