// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notify

// The data of every template doubles as the payload of the cloud function
// that delivers the same notification, hence the json tags.

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
	Name       string `json:"nombre,omitempty"`
	Phone      string `json:"telefono,omitempty"`
	Street     string `json:"calle,omitempty"`
	City       string `json:"ciudad,omitempty"`
	State      string `json:"estado,omitempty"`
	PostalCode string `json:"codigo_postal,omitempty"`
	Notes      string `json:"referencias,omitempty"`
}

type resetCodeTemplateData struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	Name  string `json:"nombre,omitempty"`
}

// SellerReview is the result of the review of a seller application.
type SellerReview struct {
	Email     string `json:"email"`
	Name      string `json:"nombre"`
	StoreName string `json:"nombreTienda,omitempty"`
	Location  string `json:"ubicacion,omitempty"`
	Reason    string `json:"motivoRechazo,omitempty"`
}

// SellerApplication is a new seller application.
type SellerApplication struct {
	ApplicationID string `json:"solicitudId"`
	Name          string `json:"nombre"`
	Email         string `json:"email"`
	StoreName     string `json:"nombreTienda,omitempty"`
	Location      string `json:"ubicacion,omitempty"`
	SubmittedAt   string `json:"fechaSolicitud,omitempty"`
}

// Receipt is a purchase receipt.
type Receipt struct {
	Email         string    `json:"email"`
	Name          string    `json:"nombre"`
	PurchaseID    string    `json:"compraId"`
	PurchasedAt   string    `json:"fechaCompra"`
	Products      []Product `json:"productos"`
	Subtotal      float64   `json:"subtotal"`
	Shipping      float64   `json:"envio"`
	Taxes         float64   `json:"impuestos"`
	Total         float64   `json:"total"`
	PaymentMethod string    `json:"metodoPago"`
	Address       Address   `json:"direccionEntrega"`
}

// OrderStatus is a change of the status of an order.
type OrderStatus struct {
	Email      string    `json:"email"`
	Name       string    `json:"nombre"`
	PurchaseID string    `json:"compraId"`
	NewStatus  string    `json:"nuevoEstado"`
	PrevStatus string    `json:"estadoAnterior,omitempty"`
	Products   []Product `json:"productos"`
	SellerName string    `json:"vendedorNombre,omitempty"`
	UpdatedAt  string    `json:"fechaActualizacion,omitempty"`
}

// Refund is a processed refund.
type Refund struct {
	Email      string  `json:"email"`
	Name       string  `json:"nombre"`
	PurchaseID string  `json:"compraId"`
	RefundID   string  `json:"refundId"`
	Amount     float64 `json:"montoDevolucion"`
	Currency   string  `json:"moneda"`
	Type       string  `json:"tipo"`
	Reason     string  `json:"motivo"`
}

// SupportTicket is a message sent from the support page.
type SupportTicket struct {
	TicketID string `json:"ticketId"`
	Name     string `json:"nombre"`
	Email    string `json:"email"`
	Subject  string `json:"asunto"`
	Topic    string `json:"asuntoTexto"`
	Message  string `json:"mensaje"`
}

// Every template is executed inside templateLayoutRaw and must define the
// title and content blocks.
const templateLayoutRaw = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.container { max-width: 600px; margin: 0 auto; padding: 20px; }
.header { background: #2e8b57; color: white; padding: 30px; text-align: center; border-radius: 10px 10px 0 0; }
.content { background: #f9f9f9; padding: 30px; border-radius: 0 0 10px 10px; }
.section { background: white; padding: 20px; margin-bottom: 20px; border-radius: 8px; }
.section h2 { color: #2e8b57; margin-top: 0; }
.footer { text-align: center; margin-top: 30px; color: #666; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
<div class="header">
<h1>AgroMarket</h1>
<p>{{template "title" .}}</p>
</div>
<div class="content">
{{template "content" .}}
</div>
<div class="footer">
<p>© {{year}} AgroMarket. Todos los derechos reservados.</p>
</div>
</div>
</body>
</html>
`

const templateResetCodeRaw = `
{{define "title"}}Recuperación de Contraseña{{end}}
{{define "content"}}
<div class="section">
<h2>Hola{{if .Name}} {{.Name}}{{end}},</h2>
<p>Recibimos una solicitud para restablecer la contraseña de tu cuenta
{{.Email}}. Tu código de verificación es:</p>
<p style="font-size: 32px; font-weight: bold; letter-spacing: 8px; text-align: center;">{{.Code}}</p>
<p>El código expira en 15 minutos. Si no solicitaste este cambio puedes
ignorar este correo.</p>
</div>
{{end}}
`

const templateSellerApprovedRaw = `
{{define "title"}}Solicitud de Vendedor Aprobada{{end}}
{{define "content"}}
<div class="section">
<h2>¡Felicidades {{.Name}}!</h2>
<p>Tu solicitud para vender en AgroMarket fue aprobada.{{if .StoreName}}
Tu tienda <strong>{{.StoreName}}</strong>{{if .Location}} en {{.Location}}{{end}}
ya puede publicar productos.{{end}}</p>
<p>Inicia sesión con {{.Email}} y activa el rol de vendedor desde tu perfil.</p>
</div>
{{end}}
`

const templateSellerRejectedRaw = `
{{define "title"}}Solicitud de Vendedor Rechazada{{end}}
{{define "content"}}
<div class="section">
<h2>Hola {{.Name}},</h2>
<p>Lamentamos informarte que tu solicitud para vender en AgroMarket no fue
aprobada.</p>
{{if .Reason}}<p><strong>Motivo:</strong> {{.Reason}}</p>{{end}}
<p>Puedes corregir la información y enviar una nueva solicitud.</p>
</div>
{{end}}
`

const templateSellerPendingRaw = `
{{define "title"}}Solicitud de Vendedor Recibida{{end}}
{{define "content"}}
<div class="section">
<h2>Hola {{.Name}},</h2>
<p>Recibimos tu solicitud para vender en AgroMarket{{if .StoreName}} con la
tienda <strong>{{.StoreName}}</strong>{{end}}. Un administrador la revisará
y te avisaremos por correo.</p>
</div>
{{end}}
`

const templateSellerApplicationRaw = `
{{define "title"}}Nueva Solicitud de Vendedor{{end}}
{{define "content"}}
<div class="section">
<h2>Solicitud {{.ApplicationID}}</h2>
<p><strong>Nombre:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Tienda:</strong> {{or .StoreName "N/A"}}</p>
<p><strong>Ubicación:</strong> {{or .Location "N/A"}}</p>
<p><strong>Fecha:</strong> {{.SubmittedAt}}</p>
</div>
{{end}}
`

const templateReceiptRaw = `
{{define "title"}}Ticket de Compra{{end}}
{{define "content"}}
<div class="section">
<h2>Información del Pedido</h2>
<p><strong>Número de pedido:</strong> {{.PurchaseID}}</p>
<p><strong>Fecha:</strong> {{.PurchasedAt}}</p>
<p><strong>Método de pago:</strong> {{paymentMethod .PaymentMethod}}</p>
</div>
<div class="section">
<h2>Información del Cliente</h2>
<p><strong>Nombre:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
</div>
<div class="section">
<h2>Productos Comprados</h2>
<table style="width: 100%; border-collapse: collapse;">
<tr><th>#</th><th>Producto</th><th>Cantidad</th><th>Precio Unit.</th><th>Total</th></tr>
{{range $i, $p := .Products}}<tr>
<td>{{inc $i}}</td>
<td>{{$p.Name}}</td>
<td>{{$p.Quantity}} {{or $p.Unit "kg"}}</td>
<td style="text-align: right;">{{money $p.UnitPrice}}</td>
<td style="text-align: right;">{{money $p.TotalPrice}}</td>
</tr>
{{end}}</table>
</div>
<div class="section">
<h2>Información de Entrega</h2>
<p><strong>Ciudad de entrega:</strong> {{or .Address.City "No especificada"}}</p>
<p><strong>Teléfono de contacto:</strong> {{or .Address.Phone "No especificado"}}</p>
<p>El conductor se comunicará contigo en el número proporcionado para
coordinar la entrega.</p>
</div>
<div class="section">
<p>Subtotal: {{money .Subtotal}}</p>
<p>Envío: {{money .Shipping}}</p>
<p>Impuestos: {{money .Taxes}}</p>
<p><strong>TOTAL: {{money .Total}}</strong></p>
</div>
<p>Gracias por tu compra en AgroMarket. Este es un comprobante automático,
por favor guárdalo.</p>
{{end}}
`

const templateOrderStatusRaw = `
{{define "title"}}Actualización de Estado de Pedido{{end}}
{{define "content"}}
<div class="section" style="text-align: center;">
<h2>Hola {{.Name}},</h2>
<p>Actualización de estado del pedido <strong>#{{reference .PurchaseID}}</strong>
a <strong style="color: #2e8b57;">{{status .NewStatus}}</strong></p>
{{if .PrevStatus}}<p>Estado anterior: {{status .PrevStatus}}</p>{{end}}
{{if .Products}}<ul>
{{range .Products}}<li>{{.Name}} - {{.Quantity}} {{or .Unit "kg"}}</li>
{{end}}</ul>{{end}}
<p>Puedes ver el estado completo de tu pedido en cualquier momento desde tu
cuenta en AgroMarket.</p>
</div>
{{end}}
`

const templateRefundRaw = `
{{define "title"}}Confirmación de Devolución{{end}}
{{define "content"}}
<div class="section">
<h2>Devolución Procesada</h2>
<p>Hola <strong>{{.Name}}</strong>,</p>
<p>Te informamos que tu solicitud de devolución ha sido procesada
exitosamente.</p>
</div>
<div class="section">
<h2>Detalles de la Devolución</h2>
<p><strong>Número de pedido:</strong> {{.PurchaseID}}</p>
<p><strong>ID de devolución:</strong> {{.RefundID}}</p>
<p><strong>Tipo:</strong> Devolución {{.Type}}</p>
<p><strong>Motivo:</strong> {{.Reason}}</p>
<p style="font-size: 28px; font-weight: bold;">{{.Currency}} {{money .Amount}}</p>
<p>El reembolso aparecerá en tu tarjeta en 5-10 días hábiles, dependiendo de
tu banco.</p>
</div>
{{end}}
`

const templateSupportTicketRaw = `
{{define "title"}}Nuevo Mensaje de Soporte{{end}}
{{define "content"}}
<div class="section">
<h2>Información del Contacto</h2>
<p><strong>Ticket:</strong> {{.TicketID}}</p>
<p><strong>Nombre:</strong> {{.Name}}</p>
<p><strong>Correo electrónico:</strong> {{.Email}}</p>
<p><strong>Asunto:</strong> {{.Topic}}</p>
</div>
<div class="section">
<h2>Mensaje</h2>
<div style="white-space: pre-wrap;">{{.Message}}</div>
</div>
{{end}}
`
