// Copyright (c) 2021-2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"path/filepath"

	v1 "github.com/agromarket/agromarket/agromarketwww/api/v1"
	"github.com/agromarket/agromarket/sessions"
	"github.com/agromarket/agromarket/util"
	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
)

const (
	csrfKeyLength    = 32 // In bytes
	csrfKeyFile      = "csrf.key"
	csrfCookieMaxAge = sessions.MaxAge

	// Static assets and uploaded images.
	routeStatic  = "/static/"
	routeUploads = "/static/uploads/"
)

// setupRouter sets up the router for the AgroMarket http API.
func (p *agromarketwww) setupRouter() error {
	// Setup the router
	p.router = mux.NewRouter()
	p.router.StrictSlash(true) // Ignore trailing slashes

	// Add a 404 handler
	p.router.NotFoundHandler = http.HandlerFunc(p.handleNotFound)

	// Add router middleware. Middleware is executed
	// in the same order that they are registered in.
	p.router.Use(closeBodyMiddleware) // MUST be registered first
	p.router.Use(maxBodySizeMiddleware)
	p.router.Use(requestIDMiddleware)
	p.router.Use(loggingMiddleware)
	p.router.Use(recoverMiddleware)
	p.router.Use(p.sessions.Middleware)

	// Setup a subrouter that is CSRF protected. The browser forms that
	// change the state of a session are required to use the protected
	// router. The subrouter takes on the configuration of the router that
	// it was spawned from, including all of the middleware that has
	// already been registered.
	p.protected = p.router.NewRoute().Subrouter()

	csrfKey, err := p.loadCSRFKey()
	if err != nil {
		return err
	}
	csrfMiddleware := csrf.Protect(
		csrfKey,
		csrf.Path("/"),
		csrf.MaxAge(csrfCookieMaxAge),
		csrf.Secure(p.cfg.secureCookie),
		csrf.FieldName("csrf_token"),
	)
	p.protected.Use(csrfMiddleware)

	return nil
}

// setupRoutes sets up the routes of every blueprint of the marketplace.
func (p *agromarketwww) setupRoutes() {
	// Static files. Uploads are registered first so that they are not
	// looked up in the static dir.
	if p.cfg.UploadDir != "" {
		p.router.PathPrefix(routeUploads).Handler(http.StripPrefix(
			routeUploads, http.FileServer(http.Dir(p.cfg.UploadDir))))
	}
	if p.cfg.StaticDir != "" {
		p.router.PathPrefix(routeStatic).Handler(http.StripPrefix(
			routeStatic, http.FileServer(http.Dir(p.cfg.StaticDir))))
	}

	p.setupGeneralRoutes()
	p.setupAuthRoutes()
	p.setupBuyerRoutes()
	p.setupSellerRoutes()
	p.setupAdminRoutes()
}

// setupGeneralRoutes sets up the public pages.
func (p *agromarketwww) setupGeneralRoutes() {
	addRoute(p.router, http.MethodGet, "", v1.RouteHome,
		p.handlePage(pageInformation))
	addRoute(p.router, http.MethodGet, "", v1.RouteInformation,
		p.handlePage(pageInformation))
	addRoute(p.router, http.MethodGet, "", v1.RouteOfflineCatalog,
		p.handlePage(pageOfflineCatalog))
	addRoute(p.router, http.MethodGet, "", v1.RouteAboutUs,
		p.handlePage(pageAboutUs))
	addRoute(p.router, http.MethodGet, "", v1.RoutePrivacyNotice,
		p.handlePage(pagePrivacyNotice))
	addRoute(p.router, http.MethodGet, "", v1.RouteSupport,
		p.handlePage(pageSupport))
	addRoute(p.router, http.MethodGet, "", v1.RouteDownloadApp,
		p.handleDownloadApp)
	addRoute(p.router, http.MethodGet, "", v1.RouteNews,
		p.handleNews)
	addRoute(p.router, http.MethodPost, "", v1.RouteSendSupport,
		p.handleSendSupport)
	addRoute(p.router, http.MethodGet, "", v1.RouteRegisterShortcut,
		handleRedirect(v1.RouteAuthPrefix+v1.RouteRegister))
}

// setupAuthRoutes sets up the session routes.
func (p *agromarketwww) setupAuthRoutes() {
	prefix := v1.RouteAuthPrefix
	addRoute(p.router, http.MethodGet, prefix, v1.RouteLogin,
		p.handlePage(pageLogin))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteRegister,
		p.handlePage(pageRegister))
	addRoute(p.router, http.MethodPost, prefix, v1.RouteSyncRole,
		p.handleSyncRole)
	addRoute(p.router, http.MethodGet, prefix, v1.RouteLogout,
		p.handleLogout)
	addRoute(p.router, http.MethodGet, prefix, v1.RouteProfile,
		p.gate.LoggedIn(p.handleProfile))

	// Browser forms
	addRoute(p.protected, http.MethodGet, prefix, v1.RouteActivateSeller,
		p.gate.LoggedIn(p.handleActivateSeller))
	addRoute(p.protected, http.MethodPost, prefix, v1.RouteActivateSeller,
		p.gate.LoggedIn(p.handleActivateSeller))
	addRoute(p.protected, http.MethodGet, prefix, v1.RouteForgotPassword,
		p.handleForgotPassword)
	addRoute(p.protected, http.MethodPost, prefix, v1.RouteForgotPassword,
		p.handleForgotPassword)
	addRoute(p.protected, http.MethodGet, prefix, v1.RouteResetPassword,
		p.handleResetPassword)
	addRoute(p.protected, http.MethodPost, prefix, v1.RouteResetPassword,
		p.handleResetPassword)
}

// setupBuyerRoutes sets up the routes that require the buyer role.
func (p *agromarketwww) setupBuyerRoutes() {
	prefix := v1.RouteBuyerPrefix
	buyer := func(f http.HandlerFunc) http.HandlerFunc {
		return p.gate.Role(sessions.RoleBuyer, f)
	}

	// Pages
	addRoute(p.router, http.MethodGet, prefix, v1.RouteBuyerPanel,
		buyer(p.handlePage(pageBuyerPanel)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteBuyerCategory,
		buyer(p.handleVarPage(pageBuyerCategory, "categoria")))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteBuyerProducts,
		buyer(p.handlePage(pageBuyerProducts)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteBuyerSearch,
		buyer(p.handleSearch))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteBuyerProduct,
		buyer(p.handleVarPage(pageBuyerProduct, "id")))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteBuyerProductDetail,
		buyer(p.handleVarPage(pageBuyerProduct, "id")))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteBuyerCart,
		buyer(p.handleCheckoutPage(pageBuyerCart)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteBuyerChats,
		buyer(p.handlePage(pageBuyerChats)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteBuyerNewChat,
		buyer(p.handlePage(pageBuyerChat)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteBuyerChat,
		buyer(p.handleVarPage(pageBuyerChat, "id")))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteBuyerOrders,
		buyer(p.handlePage(pageBuyerOrders)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteBuyerOrderDetail,
		buyer(p.handleCheckoutPage(pageBuyerOrder)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteBuyerPaymentSuccess,
		buyer(p.handlePage(pageBuyerPaymentSuccess)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteBuyerStripeSuccess,
		buyer(p.handlePage(pageBuyerPaymentSuccess)))

	// Payments
	addRoute(p.router, http.MethodPost, prefix, v1.RouteCreatePaymentIntent,
		buyer(p.handleCreatePaymentIntent))
	addRoute(p.router, http.MethodPost, prefix, v1.RouteProcessRefund,
		buyer(p.handleProcessRefund))
	addRoute(p.router, http.MethodGet, prefix, v1.RoutePaymentDetails,
		buyer(p.handlePaymentDetails))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteRefundStatus,
		buyer(p.handleRefundStatus))

	// Notifications
	addRoute(p.router, http.MethodPost, prefix, v1.RouteSendReceipt,
		buyer(p.handleSendReceipt))
	addRoute(p.router, http.MethodPost, prefix, v1.RouteSendRefundNotice,
		buyer(p.handleSendRefundNotice))

	// Seller activation lives with the other session forms.
	addRoute(p.router, http.MethodGet, prefix, v1.RouteActivateSeller,
		handleRedirect(v1.RouteAuthPrefix+v1.RouteActivateSeller))

	// The order status email is sent by the seller that changed the
	// order, so it only requires a session.
	addRoute(p.router, http.MethodPost, prefix, v1.RouteSendOrderStatus,
		p.gate.LoggedIn(p.handleSendOrderStatus))
}

// setupSellerRoutes sets up the routes that require the seller role.
func (p *agromarketwww) setupSellerRoutes() {
	prefix := v1.RouteSellerPrefix
	seller := func(f http.HandlerFunc) http.HandlerFunc {
		return p.gate.Role(sessions.RoleSeller, f)
	}

	addRoute(p.router, http.MethodGet, prefix, v1.RouteSellerPanel,
		seller(p.handlePage(pageSellerPanel)))
	addRoute(p.protected, http.MethodGet, prefix, v1.RouteSellerAddProduct,
		seller(p.handleAddProduct))
	addRoute(p.protected, http.MethodPost, prefix, v1.RouteSellerAddProduct,
		seller(p.handleAddProduct))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteSellerAdd,
		handleRedirect(prefix+v1.RouteSellerAddProduct))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteSellerProducts,
		seller(p.handlePage(pageSellerProducts)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteSellerProductsAlt,
		seller(p.handlePage(pageSellerProducts)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteSellerEdit,
		seller(p.handleVarPage(pageSellerEdit, "id")))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteSellerSales,
		seller(p.handlePage(pageSellerSales)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteSellerStats,
		seller(p.handlePage(pageSellerStats)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteSellerCatalog,
		seller(p.handlePage(pageSellerCatalog)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteSellerChats,
		seller(p.handlePage(pageSellerChats)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteSellerChat,
		seller(p.handleVarPage(pageSellerChat, "id")))

	// Any signed in user may apply to become a seller.
	addRoute(p.router, http.MethodPost, prefix, v1.RouteSellerApplication,
		p.gate.LoggedIn(p.handleSellerApplication))
}

// setupAdminRoutes sets up the routes that require the administrator role.
func (p *agromarketwww) setupAdminRoutes() {
	prefix := v1.RouteAdminPrefix
	admin := func(f http.HandlerFunc) http.HandlerFunc {
		return p.gate.Role(sessions.RoleAdmin, f)
	}

	addRoute(p.router, http.MethodGet, prefix, v1.RouteAdminPanel,
		admin(p.handlePage(pageAdminPanel)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteAdminUsersPage,
		admin(p.handlePage(pageAdminUsers)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteAdminRequests,
		admin(p.handlePage(pageAdminRequests)))
	addRoute(p.router, http.MethodGet, prefix, v1.RouteAdminRequest,
		admin(p.handleVarPage(pageAdminRequest, "id")))

	addRoute(p.router, http.MethodGet, prefix, v1.RouteAdminUsers,
		admin(p.handleUsers))
	addRoute(p.router, http.MethodPut, prefix, v1.RouteAdminUser,
		admin(p.handleUpdateUser))
	addRoute(p.router, http.MethodPatch, prefix, v1.RouteAdminUser,
		admin(p.handleUpdateUser))
	addRoute(p.router, http.MethodDelete, prefix, v1.RouteAdminUser,
		admin(p.handleDeleteUser))
	addRoute(p.router, http.MethodPost, prefix, v1.RouteAdminUserRole,
		admin(p.handleChangeUserRole))
	addRoute(p.router, http.MethodPost, prefix, v1.RouteAdminReviewSeller,
		admin(p.handleReviewSeller))
}

// addRoute adds a route to the provided router.
func addRoute(router *mux.Router, method string, routePrefix, route string, handler http.HandlerFunc) {
	router.HandleFunc(routePrefix+route, handler).Methods(method)
}

// handleRedirect returns a handler that permanently redirects to url.
func handleRedirect(url string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, url, http.StatusMovedPermanently)
	}
}

// loadCSRFKey loads the CSRF key from disk. If a CSRF key does not exist then
// one is created and saved to disk for future use.
func (p *agromarketwww) loadCSRFKey() ([]byte, error) {
	log.Infof("Load CSRF key")

	fp := filepath.Join(p.cfg.DataDir, csrfKeyFile)
	key, created, err := util.LoadKeyFile(fp, csrfKeyLength)
	if err != nil {
		return nil, err
	}
	if created {
		log.Infof("CSRF key created and saved to %v", fp)
	}
	if len(key) != csrfKeyLength {
		return nil, fmt.Errorf("CSRF key corrupt")
	}

	return key, nil
}

// handleNotFound handles all invalid routes. API clients get a JSON 404 and
// browsers get the information page.
func (p *agromarketwww) handleNotFound(w http.ResponseWriter, r *http.Request) {
	// Log incoming connection
	log.Debugf("Invalid route: %v %v %v %v",
		util.RemoteAddr(r), r.Method, r.URL, r.Proto)

	// Trace incoming request
	log.Tracef("%v", newLogClosure(func() string {
		trace, err := httputil.DumpRequest(r, true)
		if err != nil {
			trace = []byte(fmt.Sprintf("handleNotFound: DumpRequest %v", err))
		}
		return string(trace)
	}))

	if wantsJSON(r) {
		util.RespondWithJSON(w, http.StatusNotFound, v1.ErrorReply{
			Error: http.StatusText(http.StatusNotFound),
		})
		return
	}
	p.render(w, r, http.StatusNotFound, pageInformation, nil)
}
