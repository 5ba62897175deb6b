// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package v1

import (
	"fmt"
)

type ErrorCodeT int

const (
	CsrfToken = "X-CSRF-Token" // CSRF token for replies

	// General routes
	RouteHome             = "/"
	RouteInformation      = "/informacion"
	RouteOfflineCatalog   = "/catalogo_offline"
	RouteAboutUs          = "/sobre_nosotros"
	RoutePrivacyNotice    = "/aviso_privacidad"
	RouteSupport          = "/soporte"
	RouteDownloadApp      = "/descargar-apk"
	RouteNews             = "/api/noticias"
	RouteSendSupport      = "/api/enviar-soporte"
	RouteRegisterShortcut = "/register"

	// Auth routes
	RouteAuthPrefix      = "/auth"
	RouteLogin           = "/login"
	RouteRegister        = "/register"
	RouteSyncRole        = "/sincronizar-rol"
	RouteLogout          = "/logout"
	RouteProfile         = "/perfil"
	RouteActivateSeller  = "/activar_rol_vendedor"
	RouteForgotPassword  = "/forgot_password"
	RouteResetPassword   = "/reset_password"
	RouteLoginPage       = RouteAuthPrefix + RouteLogin
	RouteForgotPassPage  = RouteAuthPrefix + RouteForgotPassword
	RouteResetPassPage   = RouteAuthPrefix + RouteResetPassword
	RouteProfilePage     = RouteAuthPrefix + RouteProfile
	RouteSellerPanelPage = RouteSellerPrefix + RouteSellerPanel

	// Buyer routes
	RouteBuyerPrefix         = "/comprador"
	RouteBuyerPanel          = "/panel"
	RouteBuyerCategory       = "/categoria/{categoria}"
	RouteBuyerProducts       = "/productos"
	RouteBuyerProduct        = "/producto/{id}"
	RouteBuyerProductDetail  = "/detalle_producto/{id}"
	RouteBuyerCart           = "/carrito"
	RouteBuyerChats          = "/chats"
	RouteBuyerChat           = "/chats/{id}"
	RouteBuyerNewChat        = "/chats/nuevo"
	RouteBuyerSearch         = "/buscar_productos"
	RouteBuyerOrders         = "/mis_pedidos"
	RouteBuyerOrderDetail    = "/detalle_pedido/{id}"
	RouteBuyerPaymentSuccess = "/pago_exitoso"
	RouteBuyerStripeSuccess  = "/stripe-success"
	RouteCreatePaymentIntent = "/create-payment-intent"
	RouteProcessRefund       = "/procesar-devolucion"
	RoutePaymentDetails      = "/obtener-detalles-pago/{id}"
	RouteRefundStatus        = "/verificar-devolucion/{id}"
	RouteSendReceipt         = "/enviar-ticket-compra"
	RouteSendRefundNotice    = "/enviar-notificacion-devolucion"
	RouteSendOrderStatus     = "/api/enviar-correo-cambio-estado"

	// Seller routes
	RouteSellerPrefix      = "/vendedor"
	RouteSellerPanel       = "/panel"
	RouteSellerAddProduct  = "/agregar_producto"
	RouteSellerAdd         = "/agregar"
	RouteSellerProducts    = "/mis_productos"
	RouteSellerProductsAlt = "/productos"
	RouteSellerEdit        = "/editar/{id}"
	RouteSellerSales       = "/ventas"
	RouteSellerStats       = "/estadisticas"
	RouteSellerCatalog     = "/catalogo"
	RouteSellerChats       = "/chats"
	RouteSellerChat        = "/chats/{id}"
	RouteSellerApplication = "/api/solicitud"

	// Admin routes
	RouteAdminPrefix       = "/admin"
	RouteAdminPanel        = "/panel"
	RouteAdminUsersPage    = "/usuarios"
	RouteAdminRequests     = "/solicitudes-vendedores"
	RouteAdminRequest      = "/solicitudes-vendedores/{id}"
	RouteAdminUsers        = "/api/usuarios"
	RouteAdminUser         = "/api/usuarios/{id}"
	RouteAdminUserRole     = "/api/usuarios/{id}/rol"
	RouteAdminReviewSeller = "/api/solicitudes/{id}/{accion:aprobar|rechazar|pendiente}"

	// Error codes
	ErrorCodeInvalid            ErrorCodeT = 0
	ErrorCodeUnauthenticated    ErrorCodeT = 1
	ErrorCodeForbidden          ErrorCodeT = 2
	ErrorCodeValidation         ErrorCodeT = 3
	ErrorCodeServiceUnavailable ErrorCodeT = 4
	ErrorCodeUpstream           ErrorCodeT = 5
	ErrorCodeMissingField       ErrorCodeT = 6
	ErrorCodeMalformedEmail     ErrorCodeT = 7
	ErrorCodeXSSDetected        ErrorCodeT = 8
	ErrorCodeInvalidAmount      ErrorCodeT = 9
	ErrorCodeInvalidRole        ErrorCodeT = 10
	ErrorCodeResetCodeInvalid   ErrorCodeT = 11
	ErrorCodeResetCodeExpired   ErrorCodeT = 12
	ErrorCodeResetNotVerified   ErrorCodeT = 13
	ErrorCodePasswordTooShort   ErrorCodeT = 14
	ErrorCodePasswordMismatch   ErrorCodeT = 15
	ErrorCodePaymentIncomplete  ErrorCodeT = 16
	ErrorCodeMalformedJSON      ErrorCodeT = 17
	ErrorCodeUserNotFound       ErrorCodeT = 18
	ErrorCodeInvalidUpload      ErrorCodeT = 19
	ErrorCodeDeliveryFailed     ErrorCodeT = 20
)

var (
	// ErrorCodes contains the human readable error messages for the error
	// codes. The messages are shown to end users.
	ErrorCodes = map[ErrorCodeT]string{
		ErrorCodeInvalid:            "Error desconocido.",
		ErrorCodeUnauthenticated:    "Debes iniciar sesión para acceder a esta página.",
		ErrorCodeForbidden:          "No tienes permisos para acceder a esta página.",
		ErrorCodeValidation:         "Los datos enviados no son válidos.",
		ErrorCodeServiceUnavailable: "El servicio no está disponible. Por favor, contacta al administrador.",
		ErrorCodeUpstream:           "El servicio externo reportó un error.",
		ErrorCodeMissingField:       "Falta un campo requerido.",
		ErrorCodeMalformedEmail:     "El correo electrónico no es válido.",
		ErrorCodeXSSDetected:        "Se detectó contenido no permitido en el formulario.",
		ErrorCodeInvalidAmount:      "El monto no es válido.",
		ErrorCodeInvalidRole:        "El rol no es válido.",
		ErrorCodeResetCodeInvalid:   "El código es inválido o ha expirado. Por favor, verifica el código o solicita uno nuevo.",
		ErrorCodeResetCodeExpired:   "El código ha expirado. Por favor, solicita uno nuevo.",
		ErrorCodeResetNotVerified:   "Debes verificar el código primero.",
		ErrorCodePasswordTooShort:   "La contraseña debe tener al menos 6 caracteres.",
		ErrorCodePasswordMismatch:   "Las contraseñas no coinciden.",
		ErrorCodePaymentIncomplete:  "El pago no está completo.",
		ErrorCodeMalformedJSON:      "No se recibieron datos.",
		ErrorCodeUserNotFound:       "El usuario no existe.",
		ErrorCodeInvalidUpload:      "La imagen no es válida. Solo se permiten archivos png, jpg, jpeg y gif.",
		ErrorCodeDeliveryFailed:     "Error al enviar el correo electrónico. Por favor, intenta de nuevo más tarde o contacta al administrador.",
	}
)

// UserError represents an error that is caused by something that the user
// did (malformed input, missing session, bad role, etc).
type UserError struct {
	ErrorCode    ErrorCodeT
	ErrorContext []string
}

// Error satisfies the error interface.
func (e UserError) Error() string {
	return fmt.Sprintf("user error code: %v", e.ErrorCode)
}

// ErrorReply is the JSON body returned for any failed request.
type ErrorReply struct {
	Success      bool     `json:"success"`
	Error        string   `json:"error"`
	ErrorCode    int64    `json:"errorcode,omitempty"`
	ErrorContext []string `json:"errorcontext,omitempty"`
}

// ForbiddenReply is returned when the session does not hold the role a route
// requires.
type ForbiddenReply struct {
	Success      bool     `json:"success"`
	Error        string   `json:"error"`
	RequiredRole string   `json:"required_role"`
	UserRoles    []string `json:"user_roles"`
	ActiveRole   string   `json:"rol_activo"`
}

// MessageReply is the generic success reply.
type MessageReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NotificationReply is the reply to the commands that email a buyer. The
// command succeeds whether or not the email was delivered.
type NotificationReply struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Delivered bool   `json:"delivered"`
}

// SyncRole is sent by the client after the external sign in completes.
type SyncRole struct {
	UserID     string      `json:"user_id"`
	Roles      interface{} `json:"roles"` // List of tags or a single tag
	ActiveRole string      `json:"rol_activo"`
	Name       string      `json:"nombre"`
	Email      string      `json:"email"`
}

// SyncRoleReply is the reply to the SyncRole command.
type SyncRoleReply struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	ActiveRole string   `json:"rol_activo"`
	Roles      []string `json:"roles"`
}

// ResetPassword is the JSON form of the reset password submission.
type ResetPassword struct {
	Password        string `json:"password" schema:"password"`
	PasswordConfirm string `json:"password_confirm" schema:"password_confirm"`
}

// ForgotPassword is the form used by both steps of the forgot password page.
// The first step sends the email and the second step sends the code.
type ForgotPassword struct {
	Email string `schema:"email"`
	Code  string `schema:"code"`
}

// SupportMessage is a message sent from the support page.
type SupportMessage struct {
	Name    string `json:"nombre"`
	Email   string `json:"email"`
	Subject string `json:"asunto"`
	Message string `json:"mensaje"`
}

// SupportMessageReply is the reply to the SupportMessage command.
type SupportMessageReply struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Ticket  string                 `json:"ticket"`
	Data    map[string]interface{} `json:"data"`
}

// NewsReply is the reply to the news route.
type NewsReply struct {
	News []interface{} `json:"noticias"`
}

// CreatePaymentIntent creates a payment intent for the amount in cents.
type CreatePaymentIntent struct {
	Amount int64  `json:"amount"`
	UserID string `json:"user_id,omitempty"`
}

// CreatePaymentIntentReply returns the client secret used by the browser to
// confirm the payment.
type CreatePaymentIntentReply struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// ProcessRefund requests a full or partial refund of a payment intent.
type ProcessRefund struct {
	PurchaseID      string `json:"compra_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	Amount          int64  `json:"monto_devolucion,omitempty"` // In cents
	Reason          string `json:"motivo"`
	Partial         bool   `json:"parcial"`
}

// Refund is the refund record returned to the client.
type Refund struct {
	PurchaseID      string  `json:"compra_id"`
	PaymentIntentID string  `json:"payment_intent_id"`
	ChargeID        string  `json:"charge_id"`
	RefundID        string  `json:"refund_id"`
	OriginalAmount  float64 `json:"monto_original"`
	RefundAmount    float64 `json:"monto_devolucion"`
	Currency        string  `json:"moneda"`
	Type            string  `json:"tipo"`
	Status          string  `json:"estado"`
	Reason          string  `json:"motivo"`
	UserID          string  `json:"usuario_id"`
	RequestedAt     string  `json:"fecha_solicitud"`
}

// ProcessRefundReply is the reply to the ProcessRefund command.
type ProcessRefundReply struct {
	Success      bool    `json:"success"`
	Message      string  `json:"message"`
	Refund       Refund  `json:"devolucion"`
	RefundID     string  `json:"refund_id"`
	Status       string  `json:"status"`
	RefundAmount float64 `json:"monto_devolucion"`
	Currency     string  `json:"moneda"`
}

// PaymentIntent is the receipt view of a payment intent.
type PaymentIntent struct {
	ID       string  `json:"id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Status   string  `json:"status"`
	Created  int64   `json:"created"`
}

// Card is the receipt view of the card used for a payment.
type Card struct {
	Last4    string `json:"last4"`
	Brand    string `json:"brand"`
	ExpMonth int64  `json:"exp_month"`
	ExpYear  int64  `json:"exp_year"`
	Funding  string `json:"funding,omitempty"`
}

// PaymentDetailsReply is the reply to the payment details route.
type PaymentDetailsReply struct {
	Success       bool          `json:"success"`
	PaymentIntent PaymentIntent `json:"payment_intent"`
	Card          *Card         `json:"card"`
}

// RefundStatus is the current state of a refund.
type RefundStatus struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Reason   string  `json:"reason"`
	Created  int64   `json:"created"`
}

// RefundStatusReply is the reply to the refund status route.
type RefundStatusReply struct {
	Success bool         `json:"success"`
	Refund  RefundStatus `json:"refund"`
}

// Product is a purchased product line.
type Product struct {
	Name       string  `json:"nombre"`
	Quantity   float64 `json:"cantidad"`
	Unit       string  `json:"unidad"`
	UnitPrice  float64 `json:"precio_unitario"`
	TotalPrice float64 `json:"precio_total"`
}

// Address is a delivery address.
type Address struct {
	Name       string `json:"nombre"`
	Phone      string `json:"telefono"`
	Street     string `json:"calle"`
	City       string `json:"ciudad"`
	State      string `json:"estado"`
	PostalCode string `json:"codigo_postal"`
	Notes      string `json:"referencias"`
}

// SendReceipt sends the purchase receipt to the buyer.
type SendReceipt struct {
	PurchaseID    string    `json:"compra_id"`
	Email         string    `json:"email_cliente"`
	Name          string    `json:"nombre_cliente"`
	PurchasedAt   string    `json:"fecha_compra"`
	Products      []Product `json:"productos"`
	Subtotal      float64   `json:"subtotal"`
	Shipping      *float64  `json:"envio"`
	Taxes         float64   `json:"impuestos"`
	Total         float64   `json:"total"`
	PaymentMethod string    `json:"metodo_pago"`
	Address       Address   `json:"direccion_entrega"`
}

// SendOrderStatus notifies a buyer that an order changed status. Both the
// camel case and the snake case field names are accepted.
type SendOrderStatus struct {
	Email         string    `json:"email"`
	Name          string    `json:"nombre"`
	PurchaseID    string    `json:"compraId"`
	PurchaseIDAlt string    `json:"compra_id"`
	NewStatus     string    `json:"nuevoEstado"`
	NewStatusAlt  string    `json:"nuevo_estado"`
	PrevStatus    string    `json:"estadoAnterior"`
	PrevStatusAlt string    `json:"estado_anterior"`
	Products      []Product `json:"productos"`
	SellerName    string    `json:"vendedorNombre"`
	SellerNameAlt string    `json:"vendedor_nombre"`
	UpdatedAt     string    `json:"fechaActualizacion"`
	UpdatedAtAlt  string    `json:"fecha_actualizacion"`
}

// SendRefundNotice notifies a buyer that a refund was processed.
type SendRefundNotice struct {
	PurchaseID string  `json:"compra_id"`
	Email      string  `json:"email_cliente"`
	Name       string  `json:"nombre_cliente"`
	RefundID   string  `json:"refund_id"`
	Amount     float64 `json:"monto_devolucion"`
	Currency   string  `json:"moneda"`
	Type       string  `json:"tipo"`
	Reason     string  `json:"motivo"`
}

// SellerApplication notifies the administrators of a new seller
// application.
type SellerApplication struct {
	ApplicationID string `json:"solicitud_id"`
	Name          string `json:"nombre"`
	Email         string `json:"email"`
	StoreName     string `json:"nombre_tienda"`
	Location      string `json:"ubicacion"`
	SubmittedAt   string `json:"fecha_solicitud"`
}

// ReviewSeller is sent by an administrator when a seller application is
// approved, rejected or put on hold.
type ReviewSeller struct {
	Email     string `json:"email"`
	Name      string `json:"nombre"`
	StoreName string `json:"nombre_tienda"`
	Reason    string `json:"motivo"`
}

// User is a user of the marketplace as seen by an administrator.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"nombre"`
	Phone        string `json:"telefono,omitempty"`
	Role         string `json:"rol,omitempty"`
	Disabled     bool   `json:"deshabilitado"`
	CreatedAt    int64  `json:"fecha_registro,omitempty"`
	LastSignInAt int64  `json:"ultimo_acceso,omitempty"`
}

// UsersReply is the reply to the admin users route.
type UsersReply struct {
	Success bool   `json:"success"`
	Users   []User `json:"usuarios"`
}

// UpdateUser contains the editable user fields.
type UpdateUser struct {
	Name  string `json:"nombre"`
	Email string `json:"email"`
	Phone string `json:"telefono"`
}

// ChangeUserRole sets the role of a user.
type ChangeUserRole struct {
	Role string `json:"rol"`
}

// Search contains the query params of the product search page.
type Search struct {
	Query    string `schema:"q"`
	Category string `schema:"categoria"`
}
