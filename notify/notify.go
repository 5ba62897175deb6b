// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package notify renders the AgroMarket transactional notifications and
// relays them through an ordered list of delivery strategies.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/agromarket/agromarket/functions"
	"github.com/pkg/errors"
)

// Kind identifies a notification.
type Kind int

const (
	KindInvalid Kind = iota
	KindSellerApproved
	KindSellerRejected
	KindSellerPending
	KindOrderStatus
	KindReceipt
	KindRefund
	KindSupportTicket
	KindSellerApplication
	KindResetCode
)

type kindInfo struct {
	name     string
	function string
	tpl      *template.Template
}

var kinds = map[Kind]kindInfo{
	KindSellerApproved: {"seller-approved", functions.SendSellerApprovalEmail,
		newTemplate("seller-approved", templateSellerApprovedRaw)},
	KindSellerRejected: {"seller-rejected", functions.SendSellerRejectionEmail,
		newTemplate("seller-rejected", templateSellerRejectedRaw)},
	KindSellerPending: {"seller-pending", functions.SendSellerPendingEmail,
		newTemplate("seller-pending", templateSellerPendingRaw)},
	KindOrderStatus: {"order-status", functions.SendOrderStatusChangeEmail,
		newTemplate("order-status", templateOrderStatusRaw)},
	KindReceipt: {"receipt", functions.SendReceiptEmail,
		newTemplate("receipt", templateReceiptRaw)},
	KindRefund: {"refund", functions.SendRefundEmail,
		newTemplate("refund", templateRefundRaw)},
	KindSupportTicket: {"support-ticket", functions.SendSupportTicket,
		newTemplate("support-ticket", templateSupportTicketRaw)},
	KindSellerApplication: {"seller-application", functions.SendNewSellerApplication,
		newTemplate("seller-application", templateSellerApplicationRaw)},
	KindResetCode: {"reset-code", functions.SendPasswordResetCode,
		newTemplate("reset-code", templateResetCodeRaw)},
}

// String returns the human readable kind.
func (k Kind) String() string {
	if ki, ok := kinds[k]; ok {
		return ki.name
	}
	return "invalid"
}

// Function returns the cloud function that delivers the kind.
func (k Kind) Function() string {
	return kinds[k].function
}

// Order statuses.
const (
	StatusPreparing = "preparando"
	StatusShipped   = "enviado"
	StatusReceived  = "recibido"
	StatusCancelled = "cancelado"
)

var statusLabels = map[string]string{
	StatusPreparing: "Preparando",
	StatusShipped:   "Enviado",
	StatusReceived:  "Recibido",
	StatusCancelled: "Cancelado",
}

// StatusLabel returns the display label of an order status. Unknown statuses
// are returned unchanged.
func StatusLabel(status string) string {
	if l, ok := statusLabels[strings.ToLower(status)]; ok {
		return l
	}
	return status
}

var paymentMethods = map[string]string{
	"tarjeta":       "Tarjeta de débito/crédito",
	"efectivo":      "Efectivo contra entrega",
	"transferencia": "Transferencia bancaria",
}

// PaymentMethodLabel returns the display label of a payment method.
func PaymentMethodLabel(method string) string {
	if l, ok := paymentMethods[method]; ok {
		return l
	}
	return method
}

// OrderReference returns the short reference of an order that is shown to
// users: the first nine characters of its id, upper cased.
func OrderReference(id string) string {
	r := []rune(id)
	if len(r) > 9 {
		r = r[:9]
	}
	return strings.ToUpper(string(r))
}

// DefaultShipping is the shipping cost used when a receipt carries none.
const DefaultShipping = 4.50

var templateFuncs = template.FuncMap{
	"money": func(v float64) string {
		return fmt.Sprintf("$%.2f", v)
	},
	"inc":           func(i int) int { return i + 1 },
	"reference":     OrderReference,
	"status":        StatusLabel,
	"paymentMethod": PaymentMethodLabel,
	"year": func() int {
		return time.Now().Year()
	},
}

func newTemplate(name, raw string) *template.Template {
	t := template.Must(template.New(name).Funcs(templateFuncs).
		Parse(templateLayoutRaw))
	return template.Must(t.Parse(raw))
}

func createBody(tpl *template.Template, tplData interface{}) (string, error) {
	var buf bytes.Buffer
	err := tpl.Execute(&buf, tplData)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Notification is a rendered notification that is ready to be delivered.
type Notification struct {
	Kind    Kind
	To      []string
	ReplyTo string
	Subject string
	HTML    string

	// Data is the payload of the cloud function.
	Data interface{}
}

func newNotification(k Kind, to []string, subject string, data interface{}) (*Notification, error) {
	ki, ok := kinds[k]
	if !ok {
		return nil, errors.Errorf("invalid notification kind %v", int(k))
	}
	body, err := createBody(ki.tpl, data)
	if err != nil {
		return nil, errors.Wrapf(err, "render %v", k)
	}
	return &Notification{
		Kind:    k,
		To:      to,
		Subject: subject,
		HTML:    body,
		Data:    data,
	}, nil
}

// NewResetCode returns the notification that delivers a password reset
// code.
func NewResetCode(email, code, name string) (*Notification, error) {
	return newNotification(KindResetCode, []string{email},
		"Código de Recuperación de Contraseña - AgroMarket",
		resetCodeTemplateData{
			Email: email,
			Code:  code,
			Name:  name,
		})
}

// NewSellerReview returns the notification that informs an applicant of the
// review of their seller application. k must be KindSellerApproved,
// KindSellerRejected or KindSellerPending.
func NewSellerReview(k Kind, r SellerReview) (*Notification, error) {
	var subject string
	switch k {
	case KindSellerApproved:
		subject = "Solicitud de Vendedor Aprobada - AgroMarket"
	case KindSellerRejected:
		subject = "Solicitud de Vendedor Rechazada - AgroMarket"
	case KindSellerPending:
		subject = "Solicitud de Vendedor Recibida - AgroMarket"
	default:
		return nil, errors.Errorf("invalid seller review kind %v", k)
	}
	return newNotification(k, []string{r.Email}, subject, r)
}

// NewSellerApplication returns the notification that informs the
// administrators of a new seller application.
func NewSellerApplication(a SellerApplication, admins []string) (*Notification, error) {
	return newNotification(KindSellerApplication, admins,
		"Nueva Solicitud de Vendedor - "+a.Name, a)
}

// NewReceipt returns the purchase receipt notification.
func NewReceipt(r Receipt) (*Notification, error) {
	return newNotification(KindReceipt, []string{r.Email},
		"Confirmación de Compra - Pedido #"+OrderReference(r.PurchaseID), r)
}

// NewOrderStatus returns the order status change notification.
func NewOrderStatus(s OrderStatus) (*Notification, error) {
	subject := fmt.Sprintf("Actualización de Pedido #%v - %v",
		OrderReference(s.PurchaseID), StatusLabel(s.NewStatus))
	return newNotification(KindOrderStatus, []string{s.Email}, subject, s)
}

// NewRefund returns the refund notification.
func NewRefund(r Refund) (*Notification, error) {
	return newNotification(KindRefund, []string{r.Email},
		"Devolución Procesada - Pedido #"+OrderReference(r.PurchaseID), r)
}

// NewSupportTicket returns the notification that delivers a support ticket
// to the support inbox. Replies go to the sender of the ticket. The cloud
// function knows the inbox on its own, so an empty inbox is allowed.
func NewSupportTicket(t SupportTicket, inbox string) (*Notification, error) {
	var to []string
	if inbox != "" {
		to = []string{inbox}
	}
	n, err := newNotification(KindSupportTicket, to,
		"Soporte AgroMarket: "+t.Topic, t)
	if err != nil {
		return nil, err
	}
	n.ReplyTo = t.Email
	return n, nil
}
