// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/agromarket/agromarket/sessions"
	"github.com/agromarket/agromarket/util"
	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
)

// Page names.
const (
	pageInformation         = "informacion"
	pageOfflineCatalog      = "catalogo_offline"
	pageAboutUs             = "sobre_nosotros"
	pagePrivacyNotice       = "aviso_privacidad"
	pageSupport             = "soporte"
	pageLogin               = "login"
	pageRegister            = "register"
	pageProfile             = "perfil"
	pageActivateSeller      = "activar_rol"
	pageForgotPassword      = "forgot_password"
	pageResetPassword       = "reset_password"
	pageBuyerPanel          = "comprador/panel"
	pageBuyerCategory       = "comprador/categoria"
	pageBuyerProducts       = "comprador/productos"
	pageBuyerProduct        = "comprador/detalle_producto"
	pageBuyerCart           = "comprador/carrito"
	pageBuyerChats          = "comprador/chats"
	pageBuyerChat           = "comprador/chat_conversacion"
	pageBuyerOrders         = "comprador/mis_pedidos"
	pageBuyerOrder          = "comprador/detalle_pedido"
	pageBuyerPaymentSuccess = "comprador/pago_exitoso"
	pageSellerPanel         = "vendedor/panel"
	pageSellerAddProduct    = "vendedor/agregar_producto"
	pageSellerProducts      = "vendedor/mis_productos"
	pageSellerEdit          = "vendedor/editar_producto"
	pageSellerSales         = "vendedor/ventas"
	pageSellerStats         = "vendedor/estadisticas"
	pageSellerCatalog       = "vendedor/productos"
	pageSellerChats         = "vendedor/chats"
	pageSellerChat          = "vendedor/chat_conversacion"
	pageAdminPanel          = "admin/panel"
	pageAdminUsers          = "admin/usuarios"
	pageAdminRequests       = "admin/solicitudes"
	pageAdminRequest        = "admin/detalle_solicitud"
)

// pageTitles contains the title of every page. A page without a dedicated
// content template is rendered with the application shell, which the
// browser scripts fill in.
var pageTitles = map[string]string{
	pageInformation:         "Información",
	pageOfflineCatalog:      "Catálogo sin conexión",
	pageAboutUs:             "Sobre nosotros",
	pagePrivacyNotice:       "Aviso de privacidad",
	pageSupport:             "Soporte",
	pageLogin:               "Iniciar sesión",
	pageRegister:            "Registro",
	pageProfile:             "Mi perfil",
	pageActivateSeller:      "Activar rol de vendedor",
	pageForgotPassword:      "Recuperar contraseña",
	pageResetPassword:       "Restablecer contraseña",
	pageBuyerPanel:          "Panel del comprador",
	pageBuyerCategory:       "Categoría",
	pageBuyerProducts:       "Productos",
	pageBuyerProduct:        "Detalle del producto",
	pageBuyerCart:           "Carrito",
	pageBuyerChats:          "Mis chats",
	pageBuyerChat:           "Conversación",
	pageBuyerOrders:         "Mis pedidos",
	pageBuyerOrder:          "Detalle del pedido",
	pageBuyerPaymentSuccess: "Pago exitoso",
	pageSellerPanel:         "Panel del vendedor",
	pageSellerAddProduct:    "Agregar producto",
	pageSellerProducts:      "Mis productos",
	pageSellerEdit:          "Editar producto",
	pageSellerSales:         "Ventas",
	pageSellerStats:         "Estadísticas",
	pageSellerCatalog:       "Catálogo",
	pageSellerChats:         "Mis chats",
	pageSellerChat:          "Conversación",
	pageAdminPanel:          "Panel de administración",
	pageAdminUsers:          "Usuarios",
	pageAdminRequests:       "Solicitudes de vendedores",
	pageAdminRequest:        "Detalle de la solicitud",
}

// pageContents contains the pages that carry server side content.
var pageContents = map[string]string{
	pageInformation:      pageInformationRaw,
	pageSupport:          pageSupportRaw,
	pageProfile:          pageProfileRaw,
	pageActivateSeller:   pageActivateSellerRaw,
	pageForgotPassword:   pageForgotPasswordRaw,
	pageResetPassword:    pageResetPasswordRaw,
	pageSellerAddProduct: pageSellerAddProductRaw,
}

// pageData is the data that every page is executed with.
type pageData struct {
	Name      string
	Title     string
	User      *sessions.Identity
	Flashes   []sessions.Flash
	CSRFField template.HTML
	StripeKey string
	Vars      map[string]string
	Data      map[string]interface{}
}

var pageFuncs = template.FuncMap{
	"year": func() int {
		return time.Now().Year()
	},
}

// pages contains the parsed page templates.
var pages = func() map[string]*template.Template {
	m := make(map[string]*template.Template, len(pageTitles))
	for name := range pageTitles {
		raw, ok := pageContents[name]
		if !ok {
			raw = pageShellRaw
		}
		t := template.Must(template.New(name).Funcs(pageFuncs).
			Parse(pageLayoutRaw))
		m[name] = template.Must(t.Parse(raw))
	}
	return m
}()

// render executes the page and writes it with the provided status code. The
// flash messages of the session are consumed.
func (p *agromarketwww) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]interface{}) {
	t, ok := pages[name]
	if !ok {
		respondWithError(w, r, "render: %v",
			fmt.Errorf("page not found: %v", name))
		return
	}

	s := p.session(r)
	pd := pageData{
		Name:      name,
		Title:     pageTitles[name],
		Flashes:   s.Flashes(),
		CSRFField: csrf.TemplateField(r),
		StripeKey: p.cfg.StripePublishableKey,
		Vars:      mux.Vars(r),
		Data:      data,
	}
	if id, ok := s.Identity(); ok {
		pd.User = id
	}

	var buf bytes.Buffer
	err := t.Execute(&buf, pd)
	if err != nil {
		respondWithError(w, r, "render: %v",
			fmt.Errorf("execute %v: %v", name, err))
		return
	}

	// Flashes are consumed once they were rendered.
	if len(pd.Flashes) != 0 {
		p.saveSession(w, r, s)
	}

	err = util.RespondWithCopy(w, status, "text/html; charset=utf-8",
		buf.Bytes())
	if err != nil {
		log.Debugf("render %v: %v", name, err)
	}
}

// handlePage returns the handler that renders a page.
func (p *agromarketwww) handlePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Tracef("handlePage: %v", name)

		p.render(w, r, http.StatusOK, name, nil)
	}
}

// handleVarPage returns the handler that renders a page about the resource
// named by a route variable.
func (p *agromarketwww) handleVarPage(name, key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Tracef("handleVarPage: %v %v", name, mux.Vars(r)[key])

		p.render(w, r, http.StatusOK, name, map[string]interface{}{
			key: mux.Vars(r)[key],
		})
	}
}

const pageLayoutRaw = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}} - AgroMarket</title>
<link rel="stylesheet" href="/static/css/styles.css">
<link rel="manifest" href="/static/manifest.json">
</head>
<body data-page="{{.Name}}">
<header>
<nav>
<a href="/">AgroMarket</a>
{{if .User}}
<span>{{.User.DisplayName}}</span>
<a href="/auth/perfil">Mi perfil</a>
<a href="/auth/logout">Cerrar sesión</a>
{{else}}
<a href="/auth/login">Iniciar sesión</a>
<a href="/auth/register">Registro</a>
{{end}}
</nav>
</header>
{{range .Flashes}}
<div class="alert alert-{{.Category}}">{{.Message}}</div>
{{end}}
<main>
{{template "content" .}}
</main>
<footer>
<p>© {{year}} AgroMarket. Todos los derechos reservados.</p>
</footer>
<script type="application/json" id="page-data">{{.Data}}</script>
{{if .StripeKey}}<script>window.STRIPE_PUBLISHABLE_KEY = {{.StripeKey}};</script>{{end}}
<script src="/static/js/app.js"></script>
</body>
</html>
`

const pageShellRaw = `
{{define "content"}}
<h1>{{.Title}}</h1>
<div id="app"></div>
{{end}}
`

const pageInformationRaw = `
{{define "content"}}
<h1>Bienvenido a AgroMarket</h1>
<p>El mercado que conecta a productores del campo con compradores.</p>
<a href="/descargar-apk">Descarga la aplicación</a>
<div id="noticias"></div>
{{end}}
`

const pageSupportRaw = `
{{define "content"}}
<h1>Soporte</h1>
<form id="soporte-form">
<input type="text" name="nombre" minlength="2" maxlength="100" required>
<input type="email" name="email" required>
<select name="asunto" required>
<option value="cuenta">Problemas con mi cuenta</option>
<option value="pedido">Consulta sobre un pedido</option>
<option value="pago">Problemas con el pago</option>
<option value="producto">Consulta sobre productos</option>
<option value="tecnico">Soporte técnico</option>
<option value="otro">Otro</option>
</select>
<textarea name="mensaje" maxlength="5000" required></textarea>
<button type="submit">Enviar</button>
</form>
{{end}}
`

const pageProfileRaw = `
{{define "content"}}
<h1>Mi perfil</h1>
{{with .User}}
<p>{{.DisplayName}}</p>
<p>{{.Email}}</p>
<p>Rol activo: {{.ActiveRole}}</p>
<ul>{{range .Roles}}<li>{{.}}</li>{{end}}</ul>
{{end}}
<a href="/auth/activar_rol_vendedor">Quiero vender</a>
{{end}}
`

const pageActivateSellerRaw = `
{{define "content"}}
<h1>Activar rol de vendedor</h1>
<p>Al activar el rol de vendedor podrás publicar tus productos.</p>
<form method="post" action="/auth/activar_rol_vendedor">
{{.CSRFField}}
<button type="submit">Activar</button>
</form>
{{end}}
`

const pageForgotPasswordRaw = `
{{define "content"}}
<h1>Recuperar contraseña</h1>
{{if eq (index .Data "step") "code"}}
<form method="post" action="/auth/forgot_password">
{{.CSRFField}}
<input type="hidden" name="email" value="{{index .Data "email"}}">
<input type="text" name="code" inputmode="numeric" maxlength="6" required>
<button type="submit">Verificar código</button>
</form>
{{else}}
<form method="post" action="/auth/forgot_password">
{{.CSRFField}}
<input type="email" name="email" required>
<button type="submit">Enviar código</button>
</form>
{{end}}
{{end}}
`

const pageResetPasswordRaw = `
{{define "content"}}
<h1>Restablecer contraseña</h1>
<form method="post" action="/auth/reset_password">
{{.CSRFField}}
<input type="password" name="password" minlength="6" required>
<input type="password" name="password_confirm" minlength="6" required>
<button type="submit">Cambiar contraseña</button>
</form>
{{end}}
`

const pageSellerAddProductRaw = `
{{define "content"}}
<h1>Agregar producto</h1>
<form method="post" action="/vendedor/agregar_producto" enctype="multipart/form-data">
{{.CSRFField}}
<input type="text" name="nombre" maxlength="100" required>
<textarea name="descripcion" maxlength="1000"></textarea>
<input type="text" name="precio" required>
<input type="number" name="stock" min="0">
<input type="text" name="unidad" maxlength="20">
<input type="text" name="categoria" maxlength="50">
<input type="file" name="imagen" accept="image/png,image/jpeg,image/gif">
<button type="submit">Guardar</button>
</form>
{{end}}
`
