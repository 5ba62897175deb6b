// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stripe

import (
	"context"
	"testing"

	"github.com/agromarket/agromarket/payment"
	"github.com/go-test/deep"
	"github.com/google/go-cmp/cmp"
	stripego "github.com/stripe/stripe-go/v76"
)

type testIntents struct {
	newParams *stripego.PaymentIntentParams
	getParams *stripego.PaymentIntentParams
	pi        *stripego.PaymentIntent
	err       error
}

func (c *testIntents) New(params *stripego.PaymentIntentParams) (*stripego.PaymentIntent, error) {
	c.newParams = params
	return c.pi, c.err
}

func (c *testIntents) Get(id string, params *stripego.PaymentIntentParams) (*stripego.PaymentIntent, error) {
	c.getParams = params
	return c.pi, c.err
}

type testRefunds struct {
	params *stripego.RefundParams
	r      *stripego.Refund
	err    error
}

func (c *testRefunds) New(params *stripego.RefundParams) (*stripego.Refund, error) {
	c.params = params
	return c.r, c.err
}

func (c *testRefunds) Get(id string, params *stripego.RefundParams) (*stripego.Refund, error) {
	c.params = params
	return c.r, c.err
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateIntent(t *testing.T) {
	intents := &testIntents{
		pi: &stripego.PaymentIntent{
			ID:           "pi_1",
			ClientSecret: "pi_1_secret",
			Amount:       1500,
			Currency:     "mxn",
			Status:       "requires_payment_method",
		},
	}
	p := &processor{intents: intents}

	got, err := p.CreateIntent(context.Background(), 1500, "mxn",
		map[string]string{"user_id": "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if *intents.newParams.Amount != 1500 || *intents.newParams.Currency != "mxn" {
		t.Fatalf("params: %v %v", *intents.newParams.Amount,
			*intents.newParams.Currency)
	}
	if diff := deep.Equal(intents.newParams.Metadata,
		map[string]string{"user_id": "u1"}); diff != nil {
		t.Fatal(diff)
	}
	want := &payment.Intent{
		ID:           "pi_1",
		ClientSecret: "pi_1_secret",
		Amount:       1500,
		Currency:     "mxn",
		Status:       "requires_payment_method",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatal(diff)
	}
}

func TestIntentCard(t *testing.T) {
	charge := &stripego.Charge{
		ID: "ch_1",
		PaymentMethodDetails: &stripego.ChargePaymentMethodDetails{
			Card: &stripego.ChargePaymentMethodDetailsCard{
				Last4:    "4242",
				ExpMonth: 12,
				ExpYear:  2030,
			},
		},
	}
	charge.PaymentMethodDetails.Card.Brand = "visa"

	intents := &testIntents{
		pi: &stripego.PaymentIntent{
			ID:           "pi_1",
			Amount:       2000,
			Currency:     "mxn",
			Status:       "succeeded",
			LatestCharge: charge,
		},
	}
	p := &processor{intents: intents}

	got, err := p.Intent(context.Background(), "pi_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(intents.getParams.Expand) != 2 {
		t.Fatalf("expand: %v", len(intents.getParams.Expand))
	}
	if got.ChargeID != "ch_1" {
		t.Fatalf("charge %q", got.ChargeID)
	}
	want := &payment.Card{
		Brand:    "visa",
		Last4:    "4242",
		ExpMonth: 12,
		ExpYear:  2030,
	}
	if diff := cmp.Diff(want, got.Card); diff != "" {
		t.Fatal(diff)
	}

	// The payment method card wins over the charge card.
	pm := &stripego.PaymentMethod{
		Card: &stripego.PaymentMethodCard{
			Last4:    "0005",
			ExpMonth: 1,
			ExpYear:  2031,
		},
	}
	pm.Card.Brand = "amex"
	pm.Card.Funding = "credit"
	intents.pi.PaymentMethod = pm
	got, err = p.Intent(context.Background(), "pi_1")
	if err != nil {
		t.Fatal(err)
	}
	want = &payment.Card{
		Brand:    "amex",
		Last4:    "0005",
		ExpMonth: 1,
		ExpYear:  2031,
		Funding:  "credit",
	}
	if diff := cmp.Diff(want, got.Card); diff != "" {
		t.Fatal(diff)
	}
}

func TestCreateRefund(t *testing.T) {
	refunds := &testRefunds{
		r: &stripego.Refund{
			ID:       "re_1",
			Status:   "succeeded",
			Amount:   500,
			Currency: "mxn",
			Reason:   "requested_by_customer",
		},
	}
	p := &processor{refunds: refunds}

	got, err := p.CreateRefund(context.Background(), payment.RefundRequest{
		ChargeID: "ch_1",
		Amount:   500,
		Reason:   payment.ReasonRequestedByCustomer,
		Metadata: map[string]string{"tipo": "parcial"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if *refunds.params.Charge != "ch_1" || *refunds.params.Amount != 500 {
		t.Fatal("unexpected refund params")
	}
	if *refunds.params.Reason != "requested_by_customer" {
		t.Fatalf("reason %v", *refunds.params.Reason)
	}
	if refunds.params.Metadata["tipo"] != "parcial" {
		t.Fatal("metadata not sent")
	}
	want := &payment.Refund{
		ID:       "re_1",
		Status:   "succeeded",
		Amount:   500,
		Currency: "mxn",
		Reason:   "requested_by_customer",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatal(diff)
	}
}

func TestConvertError(t *testing.T) {
	p := &processor{
		refunds: &testRefunds{
			err: &stripego.Error{
				HTTPStatusCode: 404,
				Msg:            "No such refund: 're_x'",
			},
		},
	}
	_, err := p.Refund(context.Background(), "re_x")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "stripe 404: No such refund: 're_x'" {
		t.Fatalf("got %v", err)
	}
}
