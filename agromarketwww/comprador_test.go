// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	v1 "github.com/agromarket/agromarket/agromarketwww/api/v1"
	"github.com/agromarket/agromarket/notify"
	"github.com/agromarket/agromarket/payment"
	"github.com/agromarket/agromarket/sessions"
	"github.com/go-test/deep"
	"github.com/google/go-cmp/cmp"
)

// wantError checks that the response is an error reply with the code.
func wantError(t *testing.T, w *httptest.ResponseRecorder, status int, code v1.ErrorCodeT) v1.ErrorReply {
	t.Helper()

	if w.Code != status {
		t.Fatalf("got status %v, want %v: %v", w.Code, status,
			w.Body.String())
	}
	var er v1.ErrorReply
	decodeReply(t, w, &er)
	if v1.ErrorCodeT(er.ErrorCode) != code {
		t.Errorf("got error code %v, want %v", er.ErrorCode, code)
	}
	return er
}

func TestHandleCreatePaymentIntent(t *testing.T) {
	route := v1.RouteBuyerPrefix + v1.RouteCreatePaymentIntent

	t.Run("success", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(newJSONRequest(t, http.MethodPost, route,
			v1.CreatePaymentIntent{Amount: 15050}, ts.login(t, buyer)))
		if w.Code != http.StatusOK {
			t.Fatalf("got %v: %v", w.Code, w.Body.String())
		}
		var reply v1.CreatePaymentIntentReply
		decodeReply(t, w, &reply)
		want := v1.CreatePaymentIntentReply{
			ClientSecret:    "pi_new_secret",
			PaymentIntentID: "pi_new",
		}
		if diff := deep.Equal(reply, want); diff != nil {
			t.Error(diff)
		}
		pi := ts.processor.intents["pi_new"]
		if pi.Amount != 15050 || pi.Currency != payment.DefaultCurrency {
			t.Errorf("got intent %+v", pi)
		}
	})

	t.Run("zero amount", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(newJSONRequest(t, http.MethodPost, route,
			v1.CreatePaymentIntent{}, ts.login(t, buyer)))
		wantError(t, w, http.StatusBadRequest, v1.ErrorCodeInvalidAmount)
	})

	t.Run("malformed body", func(t *testing.T) {
		ts := newTestServer(t)
		r := httptest.NewRequest(http.MethodPost, route,
			strings.NewReader("{"))
		r.Header.Set("Content-Type", "application/json")
		for _, c := range ts.login(t, buyer) {
			r.AddCookie(c)
		}
		wantError(t, ts.do(r), http.StatusBadRequest,
			v1.ErrorCodeMalformedJSON)
	})

	t.Run("processor failure", func(t *testing.T) {
		ts := newTestServer(t)
		ts.processor.err = errors.New("card declined")
		w := ts.do(newJSONRequest(t, http.MethodPost, route,
			v1.CreatePaymentIntent{Amount: 100}, ts.login(t, buyer)))
		wantError(t, w, http.StatusBadGateway, v1.ErrorCodeUpstream)
	})

	t.Run("not configured", func(t *testing.T) {
		ts := newTestServer(t)
		ts.payments = payment.New(nil)
		w := ts.do(newJSONRequest(t, http.MethodPost, route,
			v1.CreatePaymentIntent{Amount: 100}, ts.login(t, buyer)))
		wantError(t, w, http.StatusServiceUnavailable,
			v1.ErrorCodeServiceUnavailable)
	})
}

func TestHandleProcessRefund(t *testing.T) {
	route := v1.RouteBuyerPrefix + v1.RouteProcessRefund

	var tests = []struct {
		name       string
		body       v1.ProcessRefund
		wantCode   int
		wantError  v1.ErrorCodeT
		wantType   string
		wantAmount float64
	}{
		{
			"full refund",
			v1.ProcessRefund{
				PurchaseID:      "c1",
				PaymentIntentID: "pi_ok",
				Reason:          "Producto dañado",
			},
			http.StatusOK, 0, payment.RefundComplete, 250,
		},
		{
			"partial refund",
			v1.ProcessRefund{
				PurchaseID:      "c1",
				PaymentIntentID: "pi_ok",
				Amount:          5000,
				Partial:         true,
			},
			http.StatusOK, 0, payment.RefundPartial, 50,
		},
		{
			"partial refund without amount",
			v1.ProcessRefund{
				PurchaseID:      "c1",
				PaymentIntentID: "pi_ok",
				Partial:         true,
			},
			http.StatusBadRequest, v1.ErrorCodeInvalidAmount, "", 0,
		},
		{
			"refund over the original amount",
			v1.ProcessRefund{
				PurchaseID:      "c1",
				PaymentIntentID: "pi_ok",
				Amount:          30000,
				Partial:         true,
			},
			http.StatusBadRequest, v1.ErrorCodeValidation, "", 0,
		},
		{
			"missing payment intent",
			v1.ProcessRefund{
				PurchaseID: "c1",
			},
			http.StatusBadRequest, v1.ErrorCodeValidation, "", 0,
		},
		{
			"unknown payment intent",
			v1.ProcessRefund{
				PurchaseID:      "c1",
				PaymentIntentID: "pi_missing",
			},
			http.StatusBadGateway, v1.ErrorCodeUpstream, "", 0,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ts := newTestServer(t)
			w := ts.do(newJSONRequest(t, http.MethodPost, route,
				test.body, ts.login(t, buyer)))
			if test.wantCode != http.StatusOK {
				wantError(t, w, test.wantCode, test.wantError)
				return
			}
			if w.Code != http.StatusOK {
				t.Fatalf("got %v: %v", w.Code, w.Body.String())
			}

			var reply v1.ProcessRefundReply
			decodeReply(t, w, &reply)
			if !reply.Success || reply.RefundID != "re_1" {
				t.Errorf("unexpected reply %+v", reply)
			}
			if reply.Refund.Type != test.wantType {
				t.Errorf("got type %v, want %v", reply.Refund.Type,
					test.wantType)
			}
			if reply.RefundAmount != test.wantAmount {
				t.Errorf("got amount %v, want %v", reply.RefundAmount,
					test.wantAmount)
			}
			if reply.Currency != "MXN" {
				t.Errorf("got currency %v", reply.Currency)
			}
			if reply.Refund.OriginalAmount != 250 {
				t.Errorf("got original amount %v",
					reply.Refund.OriginalAmount)
			}
			if reply.Refund.UserID != buyer.UserID {
				t.Errorf("got user %v", reply.Refund.UserID)
			}
		})
	}
}

func TestHandlePaymentDetails(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.login(t, buyer)

	r := newJSONRequest(t, http.MethodGet,
		v1.RouteBuyerPrefix+"/obtener-detalles-pago/pi_ok", nil, cookies)
	w := ts.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("got %v: %v", w.Code, w.Body.String())
	}
	var reply v1.PaymentDetailsReply
	decodeReply(t, w, &reply)
	want := v1.PaymentDetailsReply{
		Success: true,
		PaymentIntent: v1.PaymentIntent{
			ID:       "pi_ok",
			Amount:   250,
			Currency: "MXN",
			Status:   payment.StatusSucceeded,
			Created:  1700000000,
		},
		Card: &v1.Card{
			Last4:    "4242",
			Brand:    "Visa",
			ExpMonth: 12,
			ExpYear:  2030,
		},
	}
	if diff := deep.Equal(reply, want); diff != nil {
		t.Error(diff)
	}

	// Unknown intent
	r = newJSONRequest(t, http.MethodGet,
		v1.RouteBuyerPrefix+"/obtener-detalles-pago/pi_missing", nil, cookies)
	wantError(t, ts.do(r), http.StatusBadGateway, v1.ErrorCodeUpstream)
}

func TestHandleRefundStatus(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.login(t, buyer)
	ts.processor.refunds["re_9"] = &payment.Refund{
		ID:       "re_9",
		Status:   "succeeded",
		Amount:   1250,
		Currency: "mxn",
		Reason:   payment.ReasonRequestedByCustomer,
		Created:  1700000100,
	}

	r := newJSONRequest(t, http.MethodGet,
		v1.RouteBuyerPrefix+"/verificar-devolucion/re_9", nil, cookies)
	w := ts.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("got %v: %v", w.Code, w.Body.String())
	}
	var reply v1.RefundStatusReply
	decodeReply(t, w, &reply)
	want := v1.RefundStatusReply{
		Success: true,
		Refund: v1.RefundStatus{
			ID:       "re_9",
			Status:   "succeeded",
			Amount:   12.5,
			Currency: "MXN",
			Reason:   payment.ReasonRequestedByCustomer,
			Created:  1700000100,
		},
	}
	if diff := deep.Equal(reply, want); diff != nil {
		t.Error(diff)
	}
}

func TestHandleSendReceipt(t *testing.T) {
	route := v1.RouteBuyerPrefix + v1.RouteSendReceipt
	receipt := v1.SendReceipt{
		PurchaseID:  "compra123abc",
		Email:       "Cliente@Example.com",
		PurchasedAt: "01/02/2025",
		Products: []v1.Product{{
			Name:       "Tomate",
			Quantity:   2,
			Unit:       "kg",
			UnitPrice:  30,
			TotalPrice: 60,
		}},
		Subtotal:      60,
		Total:         64.5,
		PaymentMethod: "tarjeta",
	}

	t.Run("missing purchase", func(t *testing.T) {
		ts := newTestServer(t)
		r := receipt
		r.PurchaseID = ""
		w := ts.do(newJSONRequest(t, http.MethodPost, route, r,
			ts.login(t, buyer)))
		er := wantError(t, w, http.StatusBadRequest,
			v1.ErrorCodeMissingField)
		if diff := deep.Equal(er.ErrorContext, []string{"compra_id"}); diff != nil {
			t.Error(diff)
		}
	})

	t.Run("bad email", func(t *testing.T) {
		ts := newTestServer(t)
		r := receipt
		r.Email = "cliente"
		w := ts.do(newJSONRequest(t, http.MethodPost, route, r,
			ts.login(t, buyer)))
		wantError(t, w, http.StatusBadRequest, v1.ErrorCodeMalformedEmail)
	})

	t.Run("success", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(newJSONRequest(t, http.MethodPost, route, receipt,
			ts.login(t, buyer)))
		if w.Code != http.StatusOK {
			t.Fatalf("got %v: %v", w.Code, w.Body.String())
		}
		var nr v1.NotificationReply
		decodeReply(t, w, &nr)
		if nr.Message != "Ticket de compra enviado correctamente" ||
			!nr.Delivered {
			t.Errorf("got reply %+v", nr)
		}

		n := ts.strategy.last()
		if n == nil || n.Kind != notify.KindReceipt {
			t.Fatalf("got notification %+v", n)
		}
		if diff := deep.Equal(n.To, []string{"cliente@example.com"}); diff != nil {
			t.Error(diff)
		}
		data, ok := n.Data.(notify.Receipt)
		if !ok {
			t.Fatalf("got data %T", n.Data)
		}
		if data.Shipping != notify.DefaultShipping {
			t.Errorf("got shipping %v", data.Shipping)
		}
		if data.Name != defaultBuyerName {
			t.Errorf("got name %v", data.Name)
		}
	})
}

func TestHandleSendOrderStatus(t *testing.T) {
	route := v1.RouteBuyerPrefix + v1.RouteSendOrderStatus

	t.Run("missing fields", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(newJSONRequest(t, http.MethodPost, route,
			map[string]string{"nombre": "Ana"}, ts.login(t, seller)))
		er := wantError(t, w, http.StatusBadRequest,
			v1.ErrorCodeMissingField)
		want := []string{"email", "compraId", "nuevoEstado"}
		if diff := deep.Equal(er.ErrorContext, want); diff != nil {
			t.Error(diff)
		}
	})

	t.Run("snake case fields", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(newJSONRequest(t, http.MethodPost, route,
			map[string]string{
				"email":           "ana@example.com",
				"compra_id":       "compra987",
				"nuevo_estado":    "enviado",
				"estado_anterior": "preparando",
			}, ts.login(t, seller)))
		if w.Code != http.StatusOK {
			t.Fatalf("got %v: %v", w.Code, w.Body.String())
		}
		n := ts.strategy.last()
		if n == nil || n.Kind != notify.KindOrderStatus {
			t.Fatalf("got notification %+v", n)
		}
		data := n.Data.(notify.OrderStatus)
		if data.PurchaseID != "compra987" || data.NewStatus != "enviado" ||
			data.PrevStatus != "preparando" {
			t.Errorf("got data %+v", data)
		}
		if data.SellerName != defaultSellerName || data.UpdatedAt == "" {
			t.Errorf("defaults not applied: %+v", data)
		}
	})
}

func TestHandleSendRefundNotice(t *testing.T) {
	ts := newTestServer(t)
	route := v1.RouteBuyerPrefix + v1.RouteSendRefundNotice

	w := ts.do(newJSONRequest(t, http.MethodPost, route,
		v1.SendRefundNotice{
			PurchaseID: "c1",
			Email:      "ana@example.com",
			RefundID:   "re_1",
			Amount:     50,
		}, ts.login(t, buyer)))
	if w.Code != http.StatusOK {
		t.Fatalf("got %v: %v", w.Code, w.Body.String())
	}
	n := ts.strategy.last()
	if n == nil || n.Kind != notify.KindRefund {
		t.Fatalf("got notification %+v", n)
	}
	data := n.Data.(notify.Refund)
	if data.Currency != "MXN" || data.Type != payment.RefundComplete {
		t.Errorf("defaults not applied: %+v", data)
	}
}

func TestNotificationDeliveryFailure(t *testing.T) {
	var tests = []struct {
		name     string
		route    string
		identity sessions.Identity
		body     interface{}
	}{
		{"receipt", v1.RouteBuyerPrefix + v1.RouteSendReceipt, buyer,
			v1.SendReceipt{
				PurchaseID: "compra123abc",
				Email:      "ana@example.com",
				Total:      64.5,
			}},
		{"order status", v1.RouteBuyerPrefix + v1.RouteSendOrderStatus,
			seller, map[string]string{
				"email":       "ana@example.com",
				"compraId":    "compra987",
				"nuevoEstado": "enviado",
			}},
		{"refund notice", v1.RouteBuyerPrefix + v1.RouteSendRefundNotice,
			buyer, v1.SendRefundNotice{
				PurchaseID: "c1",
				Email:      "ana@example.com",
				RefundID:   "re_1",
				Amount:     50,
			}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.strategy.err = errors.New("function timeout; smtp down")

			w := ts.do(newJSONRequest(t, http.MethodPost, tc.route, tc.body,
				ts.login(t, tc.identity)))
			if w.Code != http.StatusOK {
				t.Fatalf("got %v: %v", w.Code, w.Body.String())
			}
			var nr v1.NotificationReply
			decodeReply(t, w, &nr)
			want := v1.NotificationReply{
				Success:   true,
				Message:   notDeliveredMessage,
				Delivered: false,
			}
			if diff := cmp.Diff(want, nr); diff != "" {
				t.Errorf("reply mismatch (-want +got):\n%v", diff)
			}
		})
	}
}

func TestCheckoutPages(t *testing.T) {
	ts := newTestServer(t)
	cookies := ts.login(t, buyer)

	get := func(route string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, route, nil)
		for _, c := range cookies {
			r.AddCookie(c)
		}
		return ts.do(r)
	}

	w := get(v1.RouteBuyerPrefix + v1.RouteBuyerCart)
	if w.Code != http.StatusOK {
		t.Fatalf("cart: got %v", w.Code)
	}
	if !strings.Contains(w.Body.String(), "pagos_habilitados") {
		t.Errorf("cart: payments flag missing: %v", w.Body.String())
	}

	w = get(v1.RouteBuyerPrefix + "/buscar_productos?q=" +
		"%3Cb%3Etomate%3C%2Fb%3E")
	if w.Code != http.StatusOK {
		t.Fatalf("search: got %v", w.Code)
	}
	if strings.Contains(w.Body.String(), "<b>tomate</b>") {
		t.Error("search: query was not escaped")
	}
}
