// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package payment brokers the payment intents and refunds of AgroMarket
// purchases. The payment processor is the authority on every payment; the
// bridge only validates requests and shapes replies.
package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultCurrency is the currency of every payment intent.
	DefaultCurrency = "mxn"

	// Intent statuses.
	StatusSucceeded = "succeeded"

	// Refund types.
	RefundPartial  = "parcial"
	RefundComplete = "completa"

	// ReasonRequestedByCustomer is the refund reason that is sent when the
	// buyer provided a motive.
	ReasonRequestedByCustomer = "requested_by_customer"

	// unknownUser tags payments whose user is unknown.
	unknownUser = "unknown"
)

var (
	// ErrNotConfigured is returned when no payment processor has been
	// configured.
	ErrNotConfigured = errors.New("payment processor is not configured")
)

// ValidationError is returned when a request is rejected before reaching
// the processor or because of the state of the payment. Message is safe to
// show to the user.
type ValidationError struct {
	Message string
}

// Error satisfies the error interface.
func (e ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...interface{}) error {
	return ValidationError{Message: fmt.Sprintf(format, args...)}
}

// UpstreamError is returned when the processor fails a request.
type UpstreamError struct {
	Op  string
	Err error
}

// Error satisfies the error interface.
func (e UpstreamError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the processor error.
func (e UpstreamError) Unwrap() error {
	return e.Err
}

// Card is the card that paid an intent.
type Card struct {
	Brand    string
	Last4    string
	ExpMonth int64
	ExpYear  int64
	Funding  string
}

// Intent is a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64 // In cents
	Currency     string
	Status       string
	Created      int64

	// ChargeID is the charge that captured the intent, if any.
	ChargeID string

	// Card is the card of the payment method, or of the charge when the
	// payment method could not be retrieved.
	Card *Card
}

// RefundRequest is a refund request sent to the processor.
type RefundRequest struct {
	ChargeID string
	Amount   int64 // In cents
	Reason   string
	Metadata map[string]string
}

// Refund is a refund.
type Refund struct {
	ID       string
	Status   string
	Amount   int64 // In cents
	Currency string
	Reason   string
	Created  int64
}

// Processor is the payment processor.
type Processor interface {
	// CreateIntent creates a payment intent.
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error)

	// Intent returns a payment intent with its charge and card.
	Intent(ctx context.Context, id string) (*Intent, error)

	// CreateRefund refunds a charge.
	CreateRefund(ctx context.Context, r RefundRequest) (*Refund, error)

	// Refund returns a refund.
	Refund(ctx context.Context, id string) (*Refund, error)
}

var brands = map[string]string{
	"visa":       "Visa",
	"mastercard": "Mastercard",
	"amex":       "American Express",
	"discover":   "Discover",
	"diners":     "Diners Club",
	"jcb":        "JCB",
	"unionpay":   "UnionPay",
}

// BrandLabel returns the display name of a card brand. Unknown brands are
// upper cased.
func BrandLabel(brand string) string {
	if l, ok := brands[strings.ToLower(brand)]; ok {
		return l
	}
	return strings.ToUpper(brand)
}

// Bridge validates payment requests and forwards them to the processor.
type Bridge struct {
	p        Processor
	currency string
}

// New returns a new Bridge. A nil processor yields a bridge that fails
// every call with ErrNotConfigured.
func New(p Processor) *Bridge {
	return &Bridge{
		p:        p,
		currency: DefaultCurrency,
	}
}

// Enabled returns whether a processor is configured.
func (b *Bridge) Enabled() bool {
	return b.p != nil
}

// CreateIntent creates a payment intent for the amount in cents and tags it
// with the user ID.
func (b *Bridge) CreateIntent(ctx context.Context, amount int64, userID string) (*Intent, error) {
	if amount <= 0 {
		return nil, validationErrorf("El monto debe ser mayor a cero")
	}
	if !b.Enabled() {
		return nil, ErrNotConfigured
	}
	if userID == "" {
		userID = unknownUser
	}

	pi, err := b.p.CreateIntent(ctx, amount, b.currency,
		map[string]string{"user_id": userID})
	if err != nil {
		return nil, UpstreamError{Op: "create payment intent", Err: err}
	}
	log.Infof("Payment intent %v created: %v %v for %v", pi.ID, amount,
		b.currency, userID)

	return pi, nil
}

// RefundParams contains the fields of a refund request.
type RefundParams struct {
	PurchaseID      string
	PaymentIntentID string

	// Amount is the refunded amount in cents. Zero refunds the whole
	// charge.
	Amount int64

	Reason string
	UserID string
}

// RefundResult is a processed refund.
type RefundResult struct {
	Refund

	PurchaseID      string
	PaymentIntentID string
	ChargeID        string
	OriginalAmount  int64 // In cents
	Type            string
	Reason          string
	UserID          string
}

// ProcessRefund refunds a purchase in full or in part. The refund must not
// exceed the original charge.
func (b *Bridge) ProcessRefund(ctx context.Context, rp RefundParams) (*RefundResult, error) {
	if rp.PurchaseID == "" {
		return nil, validationErrorf("ID de compra no proporcionado")
	}
	if rp.PaymentIntentID == "" {
		return nil, validationErrorf("ID de payment intent no " +
			"proporcionado. Solo se pueden procesar devoluciones de " +
			"pagos con tarjeta.")
	}
	if rp.Amount < 0 {
		return nil, validationErrorf("El monto de devolución debe ser " +
			"mayor a cero")
	}
	if !b.Enabled() {
		return nil, ErrNotConfigured
	}

	pi, err := b.p.Intent(ctx, rp.PaymentIntentID)
	if err != nil {
		return nil, UpstreamError{Op: "retrieve payment intent", Err: err}
	}
	if pi.Status != StatusSucceeded {
		return nil, validationErrorf("El pago no está completo. Estado "+
			"actual: %v", pi.Status)
	}
	if pi.ChargeID == "" {
		return nil, validationErrorf("No se encontró información de " +
			"cargo para este pago")
	}

	amount := pi.Amount
	if rp.Amount > 0 {
		if rp.Amount > pi.Amount {
			return nil, validationErrorf("El monto de devolución no " +
				"puede exceder el monto original")
		}
		amount = rp.Amount
	}
	refundType := RefundComplete
	if amount < pi.Amount {
		refundType = RefundPartial
	}
	userID := rp.UserID
	if userID == "" {
		userID = unknownUser
	}

	req := RefundRequest{
		ChargeID: pi.ChargeID,
		Amount:   amount,
		Metadata: map[string]string{
			"compra_id": rp.PurchaseID,
			"motivo":    rp.Reason,
			"user_id":   userID,
			"tipo":      refundType,
		},
	}
	if strings.TrimSpace(rp.Reason) != "" {
		req.Reason = ReasonRequestedByCustomer
	}
	r, err := b.p.CreateRefund(ctx, req)
	if err != nil {
		return nil, UpstreamError{Op: "create refund", Err: err}
	}
	log.Infof("Refund %v of purchase %v: %v %v (%v)", r.ID, rp.PurchaseID,
		amount, pi.Currency, refundType)

	return &RefundResult{
		Refund:          *r,
		PurchaseID:      rp.PurchaseID,
		PaymentIntentID: pi.ID,
		ChargeID:        pi.ChargeID,
		OriginalAmount:  pi.Amount,
		Type:            refundType,
		Reason:          rp.Reason,
		UserID:          userID,
	}, nil
}

// Details returns a payment intent and the card that paid it, for display
// on a receipt. The card brand is returned as its display name.
func (b *Bridge) Details(ctx context.Context, id string) (*Intent, error) {
	if id == "" {
		return nil, validationErrorf("ID de payment intent no proporcionado")
	}
	if !b.Enabled() {
		return nil, ErrNotConfigured
	}
	pi, err := b.p.Intent(ctx, id)
	if err != nil {
		return nil, UpstreamError{Op: "retrieve payment intent", Err: err}
	}
	if pi.Card != nil {
		c := *pi.Card
		c.Brand = BrandLabel(c.Brand)
		pi.Card = &c
	}
	return pi, nil
}

// RefundStatus returns the current state of a refund.
func (b *Bridge) RefundStatus(ctx context.Context, id string) (*Refund, error) {
	if id == "" {
		return nil, validationErrorf("ID de devolución no proporcionado")
	}
	if !b.Enabled() {
		return nil, ErrNotConfigured
	}
	r, err := b.p.Refund(ctx, id)
	if err != nil {
		return nil, UpstreamError{Op: "retrieve refund", Err: err}
	}
	return r, nil
}
