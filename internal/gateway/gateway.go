// Package gateway adapts the payment provider: order creation and
// callback signature checks.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/venue-slot-booking/internal/model"
)

// Gateway creates payment orders.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*model.PaymentOrder, error)
}

// ErrBadResponse is returned when the provider answers without the fields
// an order needs.
var ErrBadResponse = errors.New("gateway: malformed order response")

// Signer computes and checks callback signatures:
// hex(HMAC-SHA256(secret, orderId + "|" + paymentId)).
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the signature the provider sends for a payment.
func (s *Signer) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is valid for the order and payment.
// The comparison runs in constant time.
func (s *Signer) Verify(orderID, paymentID, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hmac.Equal(got, mac.Sum(nil))
}

// Offline issues orders locally.  It stands in for the provider in
// development when no API keys are configured.
type Offline struct {
	Now func() time.Time
}

func (o Offline) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*model.PaymentOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, fmt.Errorf("gateway: negative amount %d", amount)
	}
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	return &model.PaymentOrder{
		ID:        "order_" + uuid.NewString(),
		Amount:    amount,
		Currency:  currency,
		Receipt:   receipt,
		CreatedAt: now().UTC(),
	}, nil
}
