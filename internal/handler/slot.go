package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-slot-booking/internal/model"
	"github.com/iliyamo/venue-slot-booking/internal/service"
)

// SlotManager lists and maintains facility slots.
type SlotManager interface {
	ListSlots(ctx context.Context, facilityID uint64, from, to string, bookableOnly bool) ([]model.Slot, error)
	BulkGenerate(ctx context.Context, op service.Operator, req service.BulkSlotRequest) (int64, error)
	CreateSlot(ctx context.Context, op service.Operator, slot model.Slot) (*model.Slot, error)
	SetAvailability(ctx context.Context, op service.Operator, slotID uint64, to model.Availability) (*model.Slot, error)
}

// SlotHandler serves slot listing and the partner slot endpoints.
type SlotHandler struct {
	slots SlotManager
	log   *zap.Logger
}

func NewSlotHandler(s SlotManager, log *zap.Logger) *SlotHandler {
	return &SlotHandler{slots: s, log: log}
}

// List handles GET /v1/facilities/:id/slots?from=&to=&bookable=.
// Without to, a single day is listed.
func (h *SlotHandler) List(c echo.Context) error {
	fid, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid facility id")
	}
	from := c.QueryParam("from")
	if from == "" {
		return badRequest(c, "from is required")
	}
	to := c.QueryParam("to")
	if to == "" {
		to = from
	}
	bookable := false
	if v := c.QueryParam("bookable"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest(c, "bookable must be true or false")
		}
		bookable = b
	}
	slots, err := h.slots.ListSlots(c.Request().Context(), fid, from, to, bookable)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": slots})
}

type bulkBody struct {
	StartDate    string             `json:"startDate"`
	EndDate      string             `json:"endDate"`
	StartTime    string             `json:"startTime"`
	EndTime      string             `json:"endTime"`
	Amount       int64              `json:"amount"`
	Availability model.Availability `json:"availability"`
}

// BulkGenerate handles POST /v1/facilities/:id/slots/bulk.
func (h *SlotHandler) BulkGenerate(c echo.Context) error {
	fid, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid facility id")
	}
	op, ok := operator(c)
	if !ok {
		return unauthorized(c)
	}
	var body bulkBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	n, err := h.slots.BulkGenerate(c.Request().Context(), op, service.BulkSlotRequest{
		FacilityID:   fid,
		StartDate:    body.StartDate,
		EndDate:      body.EndDate,
		StartTime:    body.StartTime,
		EndTime:      body.EndTime,
		Amount:       body.Amount,
		Availability: body.Availability,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"count": n})
}

type slotBody struct {
	Date         string             `json:"date"`
	StartTime    string             `json:"startTime"`
	EndTime      string             `json:"endTime"`
	Amount       int64              `json:"amount"`
	Availability model.Availability `json:"availability"`
}

// Create handles POST /v1/facilities/:id/slots.
func (h *SlotHandler) Create(c echo.Context) error {
	fid, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid facility id")
	}
	op, ok := operator(c)
	if !ok {
		return unauthorized(c)
	}
	var body slotBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	slot, err := h.slots.CreateSlot(c.Request().Context(), op, model.Slot{
		FacilityID:   fid,
		Date:         body.Date,
		StartTime:    body.StartTime,
		EndTime:      body.EndTime,
		Amount:       body.Amount,
		Availability: body.Availability,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, slot)
}

// SetAvailability handles PATCH /v1/slots/:id/availability.
func (h *SlotHandler) SetAvailability(c echo.Context) error {
	sid, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid slot id")
	}
	op, ok := operator(c)
	if !ok {
		return unauthorized(c)
	}
	var body struct {
		Availability model.Availability `json:"availability"`
	}
	if err := c.Bind(&body); err != nil || body.Availability == "" {
		return badRequest(c, "availability is required")
	}
	slot, err := h.slots.SetAvailability(c.Request().Context(), op, sid, body.Availability)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, slot)
}
