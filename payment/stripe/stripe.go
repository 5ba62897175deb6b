// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package stripe implements the payment processor on top of the Stripe API.
package stripe

import (
	"context"

	"github.com/agromarket/agromarket/payment"
	"github.com/pkg/errors"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

var (
	_ payment.Processor = (*processor)(nil)
)

type intentClient interface {
	New(params *stripego.PaymentIntentParams) (*stripego.PaymentIntent, error)
	Get(id string, params *stripego.PaymentIntentParams) (*stripego.PaymentIntent, error)
}

type refundClient interface {
	New(params *stripego.RefundParams) (*stripego.Refund, error)
	Get(id string, params *stripego.RefundParams) (*stripego.Refund, error)
}

// processor is the Stripe payment processor.
//
// processor implements the payment.Processor interface.
type processor struct {
	intents intentClient
	refunds refundClient
}

// New returns the Stripe payment processor that uses the provided secret
// key.
func New(secretKey string) (*processor, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key not provided")
	}
	sc := &client.API{}
	sc.Init(secretKey, nil)

	log.Infof("Stripe: enabled")

	return &processor{
		intents: sc.PaymentIntents,
		refunds: sc.Refunds,
	}, nil
}

// convertError returns the message of Stripe errors without the request
// details.
func convertError(err error) error {
	var se *stripego.Error
	if errors.As(err, &se) && se.Msg != "" {
		return errors.Errorf("stripe %v: %v", se.HTTPStatusCode, se.Msg)
	}
	return err
}

func convertCard(brand, last4 string, expMonth, expYear int64, funding string) *payment.Card {
	return &payment.Card{
		Brand:    brand,
		Last4:    last4,
		ExpMonth: expMonth,
		ExpYear:  expYear,
		Funding:  funding,
	}
}

func convertIntent(pi *stripego.PaymentIntent) *payment.Intent {
	i := &payment.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Created:      pi.Created,
	}

	// The card of the payment method is preferred over the card of the
	// charge.
	if pm := pi.PaymentMethod; pm != nil && pm.Card != nil {
		i.Card = convertCard(string(pm.Card.Brand), pm.Card.Last4,
			pm.Card.ExpMonth, pm.Card.ExpYear, string(pm.Card.Funding))
	}
	if ch := pi.LatestCharge; ch != nil {
		i.ChargeID = ch.ID
		d := ch.PaymentMethodDetails
		if i.Card == nil && d != nil && d.Card != nil {
			i.Card = convertCard(string(d.Card.Brand), d.Card.Last4,
				d.Card.ExpMonth, d.Card.ExpYear, string(d.Card.Funding))
		}
	}

	return i
}

func convertRefund(r *stripego.Refund) *payment.Refund {
	return &payment.Refund{
		ID:       r.ID,
		Status:   string(r.Status),
		Amount:   r.Amount,
		Currency: string(r.Currency),
		Reason:   string(r.Reason),
		Created:  r.Created,
	}
}

// CreateIntent creates a payment intent.
//
// This function satisfies the payment.Processor interface.
func (p *processor) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*payment.Intent, error) {
	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(amount),
		Currency: stripego.String(currency),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.intents.New(params)
	if err != nil {
		return nil, convertError(err)
	}
	return convertIntent(pi), nil
}

// Intent returns a payment intent with its latest charge and payment method
// expanded.
//
// This function satisfies the payment.Processor interface.
func (p *processor) Intent(ctx context.Context, id string) (*payment.Intent, error) {
	params := &stripego.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")
	params.AddExpand("payment_method")

	pi, err := p.intents.Get(id, params)
	if err != nil {
		return nil, convertError(err)
	}
	return convertIntent(pi), nil
}

// CreateRefund refunds a charge.
//
// This function satisfies the payment.Processor interface.
func (p *processor) CreateRefund(ctx context.Context, r payment.RefundRequest) (*payment.Refund, error) {
	params := &stripego.RefundParams{
		Charge: stripego.String(r.ChargeID),
		Amount: stripego.Int64(r.Amount),
	}
	params.Context = ctx
	if r.Reason != "" {
		params.Reason = stripego.String(r.Reason)
	}
	for k, v := range r.Metadata {
		params.AddMetadata(k, v)
	}

	ref, err := p.refunds.New(params)
	if err != nil {
		return nil, convertError(err)
	}
	return convertRefund(ref), nil
}

// Refund returns a refund.
//
// This function satisfies the payment.Processor interface.
func (p *processor) Refund(ctx context.Context, id string) (*payment.Refund, error) {
	params := &stripego.RefundParams{}
	params.Context = ctx

	ref, err := p.refunds.Get(id, params)
	if err != nil {
		return nil, convertError(err)
	}
	return convertRefund(ref), nil
}
