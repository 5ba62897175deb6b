// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	v1 "github.com/agromarket/agromarket/agromarketwww/api/v1"
	"github.com/agromarket/agromarket/notify"
	"github.com/agromarket/agromarket/payment"
	"github.com/agromarket/agromarket/sanitize"
	"github.com/agromarket/agromarket/util"
	"github.com/gorilla/mux"
)

const (
	defaultBuyerName  = "Cliente"
	defaultSellerName = "Vendedor"

	// searchMaxLength is the maximum length of a product search query.
	searchMaxLength = 100

	// updatedAtLayout is the layout of the order status change date.
	updatedAtLayout = "02/01/2006 15:04"
)

// fromCents converts an amount in cents to the decimal amount shown to
// users.
func fromCents(c int64) float64 {
	return float64(c) / 100
}

// firstNonEmpty returns the first argument that is not blank.
func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// sessionUserID returns the ID of the signed in user, if any.
func (p *agromarketwww) sessionUserID(r *http.Request) string {
	if id, ok := p.session(r).Identity(); ok {
		return id.UserID
	}
	return ""
}

// decodeJSON decodes the JSON body of a request. A malformed body is
// returned as a user error.
func decodeJSON(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		return v1.UserError{
			ErrorCode:    v1.ErrorCodeMalformedJSON,
			ErrorContext: []string{err.Error()},
		}
	}
	return nil
}

func convertProductsToNotify(ps []v1.Product) []notify.Product {
	np := make([]notify.Product, 0, len(ps))
	for _, v := range ps {
		np = append(np, notify.Product{
			Name:       v.Name,
			Quantity:   v.Quantity,
			Unit:       v.Unit,
			UnitPrice:  v.UnitPrice,
			TotalPrice: v.TotalPrice,
		})
	}
	return np
}

func convertRefundToV1(r payment.RefundResult) v1.Refund {
	created := time.Now()
	if r.Created != 0 {
		created = time.Unix(r.Created, 0)
	}
	return v1.Refund{
		PurchaseID:      r.PurchaseID,
		PaymentIntentID: r.PaymentIntentID,
		ChargeID:        r.ChargeID,
		RefundID:        r.ID,
		OriginalAmount:  fromCents(r.OriginalAmount),
		RefundAmount:    fromCents(r.Amount),
		Currency:        strings.ToUpper(r.Currency),
		Type:            r.Type,
		Status:          r.Status,
		Reason:          r.Reason,
		UserID:          r.UserID,
		RequestedAt:     created.UTC().Format(time.RFC3339),
	}
}

// handleCheckoutPage returns the handler of a page that may start a
// payment. The page is told whether payments are available.
func (p *agromarketwww) handleCheckoutPage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Tracef("handleCheckoutPage: %v", name)

		data := map[string]interface{}{
			"pagos_habilitados": p.payments.Enabled(),
		}
		for k, v := range mux.Vars(r) {
			data[k] = v
		}
		p.render(w, r, http.StatusOK, name, data)
	}
}

// handleSearch renders the product list filtered by the search query.
func (p *agromarketwww) handleSearch(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleSearch")

	var s v1.Search
	err := util.ParseGetParams(r, &s)
	if err != nil {
		log.Debugf("handleSearch: ParseGetParams: %v", err)
	}
	p.render(w, r, http.StatusOK, pageBuyerProducts, map[string]interface{}{
		"q":         sanitize.String(s.Query, searchMaxLength),
		"categoria": sanitize.String(s.Category, searchMaxLength),
	})
}

// handleCreatePaymentIntent creates a payment intent for the checkout.
func (p *agromarketwww) handleCreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleCreatePaymentIntent")

	var cpi v1.CreatePaymentIntent
	err := decodeJSON(r, &cpi)
	if err != nil {
		respondWithError(w, r, "handleCreatePaymentIntent: %v", err)
		return
	}
	if cpi.Amount <= 0 {
		respondWithError(w, r, "handleCreatePaymentIntent",
			v1.UserError{
				ErrorCode: v1.ErrorCodeInvalidAmount,
			})
		return
	}
	uid := firstNonEmpty(cpi.UserID, p.sessionUserID(r))

	pi, err := p.payments.CreateIntent(r.Context(), cpi.Amount, uid)
	if err != nil {
		respondWithError(w, r, "handleCreatePaymentIntent: CreateIntent: %v",
			convertPaymentError(err))
		return
	}

	util.RespondWithJSON(w, http.StatusOK, v1.CreatePaymentIntentReply{
		ClientSecret:    pi.ClientSecret,
		PaymentIntentID: pi.ID,
	})
}

// handleProcessRefund refunds a card payment in full or in part.
func (p *agromarketwww) handleProcessRefund(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleProcessRefund")

	var pr v1.ProcessRefund
	err := decodeJSON(r, &pr)
	if err != nil {
		respondWithError(w, r, "handleProcessRefund: %v", err)
		return
	}
	var amount int64
	if pr.Partial {
		if pr.Amount <= 0 {
			respondWithError(w, r, "handleProcessRefund",
				v1.UserError{
					ErrorCode: v1.ErrorCodeInvalidAmount,
				})
			return
		}
		amount = pr.Amount
	}

	res, err := p.payments.ProcessRefund(r.Context(), payment.RefundParams{
		PurchaseID:      pr.PurchaseID,
		PaymentIntentID: pr.PaymentIntentID,
		Amount:          amount,
		Reason:          sanitize.TextArea(pr.Reason, 500),
		UserID:          p.sessionUserID(r),
	})
	if err != nil {
		respondWithError(w, r, "handleProcessRefund: ProcessRefund: %v",
			convertPaymentError(err))
		return
	}

	refund := convertRefundToV1(*res)
	util.RespondWithJSON(w, http.StatusOK, v1.ProcessRefundReply{
		Success:      true,
		Message:      "Devolución procesada exitosamente",
		Refund:       refund,
		RefundID:     refund.RefundID,
		Status:       refund.Status,
		RefundAmount: refund.RefundAmount,
		Currency:     refund.Currency,
	})
}

// handlePaymentDetails returns the payment intent and card of a purchase for
// its receipt.
func (p *agromarketwww) handlePaymentDetails(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handlePaymentDetails")

	pi, err := p.payments.Details(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, r, "handlePaymentDetails: Details: %v",
			convertPaymentError(err))
		return
	}

	reply := v1.PaymentDetailsReply{
		Success: true,
		PaymentIntent: v1.PaymentIntent{
			ID:       pi.ID,
			Amount:   fromCents(pi.Amount),
			Currency: strings.ToUpper(pi.Currency),
			Status:   pi.Status,
			Created:  pi.Created,
		},
	}
	if c := pi.Card; c != nil {
		reply.Card = &v1.Card{
			Last4:    c.Last4,
			Brand:    c.Brand,
			ExpMonth: c.ExpMonth,
			ExpYear:  c.ExpYear,
			Funding:  c.Funding,
		}
	}

	util.RespondWithJSON(w, http.StatusOK, reply)
}

// handleRefundStatus returns the current state of a refund.
func (p *agromarketwww) handleRefundStatus(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleRefundStatus")

	rf, err := p.payments.RefundStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, r, "handleRefundStatus: RefundStatus: %v",
			convertPaymentError(err))
		return
	}

	util.RespondWithJSON(w, http.StatusOK, v1.RefundStatusReply{
		Success: true,
		Refund: v1.RefundStatus{
			ID:       rf.ID,
			Status:   rf.Status,
			Amount:   fromCents(rf.Amount),
			Currency: strings.ToUpper(rf.Currency),
			Reason:   rf.Reason,
			Created:  rf.Created,
		},
	})
}

// validRecipient checks the email of a notification recipient.
func validRecipient(email string) (string, error) {
	e, err := sanitize.Email(email)
	if err != nil {
		return "", v1.UserError{
			ErrorCode:    v1.ErrorCodeMalformedEmail,
			ErrorContext: []string{email},
		}
	}
	return e, nil
}

// notDeliveredMessage replaces the reply message when an email could not be
// delivered.
const notDeliveredMessage = "La operación se registró, pero no se pudo " +
	"enviar el correo electrónico."

// send delivers a notification. A delivery failure is logged by the relay
// and only reported through the delivered flag of the reply.
func (p *agromarketwww) send(w http.ResponseWriter, r *http.Request, n *notify.Notification, msg string) {
	reply := v1.NotificationReply{
		Success:   true,
		Message:   msg,
		Delivered: p.relay.Notify(r.Context(), n),
	}
	if !reply.Delivered {
		reply.Message = notDeliveredMessage
	}
	util.RespondWithJSON(w, http.StatusOK, reply)
}

// handleSendReceipt sends the purchase receipt to the buyer.
func (p *agromarketwww) handleSendReceipt(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleSendReceipt")

	var sr v1.SendReceipt
	err := decodeJSON(r, &sr)
	if err != nil {
		respondWithError(w, r, "handleSendReceipt: %v", err)
		return
	}
	if sr.PurchaseID == "" {
		respondWithError(w, r, "handleSendReceipt",
			v1.UserError{
				ErrorCode:    v1.ErrorCodeMissingField,
				ErrorContext: []string{"compra_id"},
			})
		return
	}
	email, err := validRecipient(sr.Email)
	if err != nil {
		respondWithError(w, r, "handleSendReceipt: %v", err)
		return
	}
	shipping := notify.DefaultShipping
	if sr.Shipping != nil {
		shipping = *sr.Shipping
	}

	n, err := notify.NewReceipt(notify.Receipt{
		Email:         email,
		Name:          firstNonEmpty(sr.Name, defaultBuyerName),
		PurchaseID:    sr.PurchaseID,
		PurchasedAt:   sr.PurchasedAt,
		Products:      convertProductsToNotify(sr.Products),
		Subtotal:      sr.Subtotal,
		Shipping:      shipping,
		Taxes:         sr.Taxes,
		Total:         sr.Total,
		PaymentMethod: sr.PaymentMethod,
		Address: notify.Address{
			Name:       sr.Address.Name,
			Phone:      sr.Address.Phone,
			Street:     sr.Address.Street,
			City:       sr.Address.City,
			State:      sr.Address.State,
			PostalCode: sr.Address.PostalCode,
			Notes:      sr.Address.Notes,
		},
	})
	if err != nil {
		respondWithError(w, r, "handleSendReceipt: NewReceipt: %v", err)
		return
	}

	p.send(w, r, n, "Ticket de compra enviado correctamente")
}

// handleSendRefundNotice informs the buyer of a processed refund.
func (p *agromarketwww) handleSendRefundNotice(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleSendRefundNotice")

	var sn v1.SendRefundNotice
	err := decodeJSON(r, &sn)
	if err != nil {
		respondWithError(w, r, "handleSendRefundNotice: %v", err)
		return
	}
	email, err := validRecipient(sn.Email)
	if err != nil {
		respondWithError(w, r, "handleSendRefundNotice: %v", err)
		return
	}

	n, err := notify.NewRefund(notify.Refund{
		Email:      email,
		Name:       firstNonEmpty(sn.Name, defaultBuyerName),
		PurchaseID: sn.PurchaseID,
		RefundID:   sn.RefundID,
		Amount:     sn.Amount,
		Currency:   strings.ToUpper(firstNonEmpty(sn.Currency, payment.DefaultCurrency)),
		Type:       firstNonEmpty(sn.Type, payment.RefundComplete),
		Reason:     sn.Reason,
	})
	if err != nil {
		respondWithError(w, r, "handleSendRefundNotice: NewRefund: %v", err)
		return
	}

	p.send(w, r, n, "Notificación de devolución enviada correctamente")
}

// handleSendOrderStatus informs the buyer that an order changed status.
func (p *agromarketwww) handleSendOrderStatus(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleSendOrderStatus")

	var so v1.SendOrderStatus
	err := decodeJSON(r, &so)
	if err != nil {
		respondWithError(w, r, "handleSendOrderStatus: %v", err)
		return
	}
	st := notify.OrderStatus{
		Email:      strings.TrimSpace(so.Email),
		Name:       firstNonEmpty(so.Name, defaultBuyerName),
		PurchaseID: firstNonEmpty(so.PurchaseID, so.PurchaseIDAlt),
		NewStatus:  firstNonEmpty(so.NewStatus, so.NewStatusAlt),
		PrevStatus: firstNonEmpty(so.PrevStatus, so.PrevStatusAlt),
		Products:   convertProductsToNotify(so.Products),
		SellerName: firstNonEmpty(so.SellerName, so.SellerNameAlt,
			defaultSellerName),
		UpdatedAt: firstNonEmpty(so.UpdatedAt, so.UpdatedAtAlt,
			time.Now().Format(updatedAtLayout)),
	}

	var missing []string
	if st.Email == "" {
		missing = append(missing, "email")
	}
	if st.PurchaseID == "" {
		missing = append(missing, "compraId")
	}
	if st.NewStatus == "" {
		missing = append(missing, "nuevoEstado")
	}
	if len(missing) > 0 {
		respondWithError(w, r, "handleSendOrderStatus",
			v1.UserError{
				ErrorCode:    v1.ErrorCodeMissingField,
				ErrorContext: missing,
			})
		return
	}
	st.Email, err = validRecipient(st.Email)
	if err != nil {
		respondWithError(w, r, "handleSendOrderStatus: %v", err)
		return
	}

	n, err := notify.NewOrderStatus(st)
	if err != nil {
		respondWithError(w, r, "handleSendOrderStatus: NewOrderStatus: %v",
			err)
		return
	}

	p.send(w, r, n, "Correo de cambio de estado enviado correctamente")
}
