package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	razorpay "github.com/razorpay/razorpay-go"

	"github.com/iliyamo/venue-slot-booking/internal/model"
)

// orderCreator is the slice of the Razorpay client used here.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Razorpay creates orders through the Razorpay orders API.
type Razorpay struct {
	orders orderCreator
}

func NewRazorpay(keyID, keySecret string) *Razorpay {
	client := razorpay.NewClient(keyID, keySecret)
	return &Razorpay{orders: client.Order}
}

type createResult struct {
	body map[string]interface{}
	err  error
}

// CreateOrder creates an order for amount in currency's minor unit.  The
// client does not take a context, so a cancelled ctx abandons the call
// without waiting for it.
func (r *Razorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*model.PaymentOrder, error) {
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
		"notes":    map[string]interface{}{"request_id": uuid.NewString()},
	}
	done := make(chan createResult, 1)
	go func() {
		body, err := r.orders.Create(data, nil)
		done <- createResult{body: body, err: err}
	}()

	var res createResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", res.err)
	}
	return parseOrder(res.body, receipt)
}

func parseOrder(body map[string]interface{}, receipt string) (*model.PaymentOrder, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: missing id", ErrBadResponse)
	}
	o := &model.PaymentOrder{ID: id, Receipt: receipt, CreatedAt: time.Now().UTC()}
	switch v := body["amount"].(type) {
	case float64:
		o.Amount = int64(v)
	case int64:
		o.Amount = v
	case int:
		o.Amount = int64(v)
	default:
		return nil, fmt.Errorf("%w: missing amount", ErrBadResponse)
	}
	o.Currency, _ = body["currency"].(string)
	if r, ok := body["receipt"].(string); ok && r != "" {
		o.Receipt = r
	}
	if ts, ok := body["created_at"].(float64); ok && ts > 0 {
		o.CreatedAt = time.Unix(int64(ts), 0).UTC()
	}
	return o, nil
}
