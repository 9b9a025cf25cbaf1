package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-slot-booking/internal/middleware"
	"github.com/iliyamo/venue-slot-booking/internal/model"
	"github.com/iliyamo/venue-slot-booking/internal/service"
)

type stubBookings struct {
	booking *model.Booking
	err     error
	gotReq  service.ReserveRequest
	gotCB   model.PaymentCallback
}

func (s *stubBookings) Reserve(ctx context.Context, req service.ReserveRequest) (*model.Booking, error) {
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.booking, nil
}

func (s *stubBookings) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	if s.booking == nil || s.booking.ID != id {
		return nil, service.ErrBookingNotFound
	}
	return s.booking, nil
}

func (s *stubBookings) CreateOrder(ctx context.Context, id uint64) (*model.PaymentOrder, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.PaymentOrder{ID: "order_1", BookingID: id, Amount: s.booking.Amount, Currency: "INR"}, nil
}

func (s *stubBookings) Verify(ctx context.Context, id uint64, cb model.PaymentCallback) (*model.Booking, error) {
	s.gotCB = cb
	if s.err != nil {
		return nil, s.err
	}
	b := *s.booking
	if _, failed := cb.(model.CallbackFailure); failed {
		b.BookingStatus = model.BookingFailed
	} else {
		b.BookingStatus = model.BookingConfirmed
	}
	return &b, nil
}

// as stands in for JWTAuth.
func as(uid uint64, role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.CtxUserID, uid)
			c.Set(middleware.CtxRole, role)
			return next(c)
		}
	}
}

func bookingServer(stub *stubBookings, uid uint64, role string) *echo.Echo {
	e := echo.New()
	h := NewBookingHandler(stub, stub, stub, zap.NewNop())
	g := e.Group("/v1/bookings", as(uid, role))
	g.POST("/reserve", h.Reserve)
	g.GET("/:id", h.Get)
	g.POST("/:id/order", h.CreateOrder)
	g.POST("/:id/verify", h.Verify)
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body, err)
	}
	return m
}

func TestReserveHandler(t *testing.T) {
	exp := time.Date(2026, 3, 1, 8, 15, 0, 0, time.UTC)
	stub := &stubBookings{booking: &model.Booking{ID: 9, UserID: 5, ExpiresAt: exp}}
	e := bookingServer(stub, 5, middleware.RoleCustomer)

	rec := do(e, http.MethodPost, "/v1/bookings/reserve", `{"facilityId":1,"venueId":2,"partnerId":3,"activityId":4,"slotIds":[7,8],"amount":1000}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	got := decode(t, rec)
	if got["bookingId"] != float64(9) || got["expiresAt"] != "2026-03-01T08:15:00Z" {
		t.Fatalf("body = %v", got)
	}
	if stub.gotReq.UserID != 5 || len(stub.gotReq.SlotIDs) != 2 || stub.gotReq.Amount != 1000 {
		t.Fatalf("request = %+v", stub.gotReq)
	}

	if rec := do(e, http.MethodPost, "/v1/bookings/reserve", `{"userId":6,"slotIds":[7]}`); rec.Code != http.StatusForbidden {
		t.Fatalf("booking for another user: status %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/v1/bookings/reserve", `{"slotIds":`); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: status %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrValidation, http.StatusBadRequest, "validation_failed"},
		{fmt.Errorf("%w: 09:15", service.ErrInvalidInterval), http.StatusBadRequest, "invalid_interval"},
		{&service.SlotUnavailableError{SlotIDs: []uint64{8}}, http.StatusConflict, "slot_unavailable"},
		{service.ErrAmountMismatch, http.StatusConflict, "amount_mismatch"},
		{service.ErrFacilityNotFound, http.StatusNotFound, "facility_not_found"},
		{service.ErrBookingExpired, http.StatusConflict, "booking_expired"},
		{service.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature"},
		{errors.New("db down"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		stub := &stubBookings{booking: &model.Booking{ID: 9, UserID: 5}, err: tc.err}
		rec := do(bookingServer(stub, 5, middleware.RoleCustomer), http.MethodPost, "/v1/bookings/reserve", `{"slotIds":[8]}`)
		if rec.Code != tc.status {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.status)
		}
		body := decode(t, rec)
		if body["error"] != tc.code {
			t.Fatalf("%v: error = %v, want %s", tc.err, body["error"], tc.code)
		}
		if tc.code == "slot_unavailable" {
			if ids, _ := body["unavailable"].([]any); len(ids) != 1 || ids[0] != float64(8) {
				t.Fatalf("unavailable = %v", body["unavailable"])
			}
		}
	}
}

func TestBookingOwnership(t *testing.T) {
	stub := &stubBookings{booking: &model.Booking{ID: 9, UserID: 5, Amount: 1000}}

	if rec := do(bookingServer(stub, 6, middleware.RoleCustomer), http.MethodGet, "/v1/bookings/9", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign booking: status %d", rec.Code)
	}
	if rec := do(bookingServer(stub, 1, middleware.RoleAdmin), http.MethodGet, "/v1/bookings/9", ""); rec.Code != http.StatusOK {
		t.Fatalf("admin read: status %d", rec.Code)
	}
	if rec := do(bookingServer(stub, 5, middleware.RoleCustomer), http.MethodGet, "/v1/bookings/abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d", rec.Code)
	}
}

func TestOrderAndVerifyHandlers(t *testing.T) {
	stub := &stubBookings{booking: &model.Booking{ID: 9, UserID: 5, Amount: 1000}}
	e := bookingServer(stub, 5, middleware.RoleCustomer)

	rec := do(e, http.MethodPost, "/v1/bookings/9/order", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("order status = %d: %s", rec.Code, rec.Body)
	}
	if got := decode(t, rec); got["orderId"] != "order_1" || got["amount"] != float64(1000) || got["currency"] != "INR" {
		t.Fatalf("order body = %v", got)
	}

	rec = do(e, http.MethodPost, "/v1/bookings/9/verify", `{"paymentId":"pay_1","orderId":"order_1","signature":"ab"}`)
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "verified" {
		t.Fatalf("verify = %d %s", rec.Code, rec.Body)
	}
	if cb, ok := stub.gotCB.(model.CallbackSuccess); !ok || cb.PaymentID != "pay_1" || cb.Signature != "ab" {
		t.Fatalf("callback = %#v", stub.gotCB)
	}

	rec = do(e, http.MethodPost, "/v1/bookings/9/verify", `{"status":"failed","orderId":"order_1","reason":"card_declined"}`)
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "failed" {
		t.Fatalf("verify failure = %d %s", rec.Code, rec.Body)
	}
	if cb, ok := stub.gotCB.(model.CallbackFailure); !ok || cb.Reason != "card_declined" {
		t.Fatalf("callback = %#v", stub.gotCB)
	}

	if rec := do(e, http.MethodPost, "/v1/bookings/9/verify", `{"status":"maybe"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: %d", rec.Code)
	}
}

type stubSlots struct {
	gotBookable bool
	gotFrom     string
	gotTo       string
	gotOp       service.Operator
	gotBulk     service.BulkSlotRequest
	err         error
}

func (s *stubSlots) ListSlots(ctx context.Context, fid uint64, from, to string, bookable bool) ([]model.Slot, error) {
	s.gotFrom, s.gotTo, s.gotBookable = from, to, bookable
	return []model.Slot{{ID: 1, FacilityID: fid, Date: from, StartTime: "09:00", EndTime: "09:30", Availability: model.Available}}, s.err
}

func (s *stubSlots) BulkGenerate(ctx context.Context, op service.Operator, req service.BulkSlotRequest) (int64, error) {
	s.gotOp, s.gotBulk = op, req
	if s.err != nil {
		return 0, s.err
	}
	return 8, nil
}

func (s *stubSlots) CreateSlot(ctx context.Context, op service.Operator, slot model.Slot) (*model.Slot, error) {
	slot.ID = 3
	return &slot, s.err
}

func (s *stubSlots) SetAvailability(ctx context.Context, op service.Operator, id uint64, to model.Availability) (*model.Slot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Slot{ID: id, Availability: to}, nil
}

func slotServer(stub *stubSlots) *echo.Echo {
	e := echo.New()
	h := NewSlotHandler(stub, zap.NewNop())
	e.GET("/v1/facilities/:id/slots", h.List)
	p := e.Group("/v1", as(20, middleware.RolePartner))
	p.POST("/facilities/:id/slots/bulk", h.BulkGenerate)
	p.POST("/facilities/:id/slots", h.Create)
	p.PATCH("/slots/:id/availability", h.SetAvailability)
	return e
}

func TestSlotHandlers(t *testing.T) {
	stub := &stubSlots{}
	e := slotServer(stub)

	rec := do(e, http.MethodGet, "/v1/facilities/1/slots?from=2026-03-02&bookable=true", "")
	if rec.Code != http.StatusOK || !stub.gotBookable || stub.gotTo != "2026-03-02" {
		t.Fatalf("list = %d %s, stub %+v", rec.Code, rec.Body, stub)
	}
	if rec := do(e, http.MethodGet, "/v1/facilities/1/slots", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("list without from: %d", rec.Code)
	}

	rec = do(e, http.MethodPost, "/v1/facilities/1/slots/bulk", `{"startDate":"2026-03-01","endDate":"2026-03-02","startTime":"09:00","endTime":"11:00","amount":400}`)
	if rec.Code != http.StatusCreated || decode(t, rec)["count"] != float64(8) {
		t.Fatalf("bulk = %d %s", rec.Code, rec.Body)
	}
	if stub.gotOp.UserID != 20 || stub.gotOp.Admin || stub.gotBulk.FacilityID != 1 || stub.gotBulk.EndTime != "11:00" {
		t.Fatalf("bulk args = %+v %+v", stub.gotOp, stub.gotBulk)
	}

	rec = do(e, http.MethodPatch, "/v1/slots/4/availability", `{"availability":"filling_fast"}`)
	if rec.Code != http.StatusOK || decode(t, rec)["availability"] != "filling_fast" {
		t.Fatalf("patch = %d %s", rec.Code, rec.Body)
	}

	stub.err = service.ErrSlotOverlap
	if rec := do(e, http.MethodPost, "/v1/facilities/1/slots/bulk", `{}`); rec.Code != http.StatusConflict {
		t.Fatalf("overlap: %d", rec.Code)
	}
	stub.err = service.ErrForbidden
	if rec := do(e, http.MethodPatch, "/v1/slots/4/availability", `{"availability":"available"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("forbidden: %d", rec.Code)
	}
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	for _, tc := range []struct {
		db   Pinger
		want int
	}{
		{nil, http.StatusOK},
		{pinger{}, http.StatusOK},
		{pinger{errors.New("down")}, http.StatusServiceUnavailable},
	} {
		e := echo.New()
		e.GET("/healthz", Health(tc.db))
		if rec := do(e, http.MethodGet, "/healthz", ""); rec.Code != tc.want {
			t.Fatalf("health = %d, want %d", rec.Code, tc.want)
		}
	}
}
