// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package gate provides the request wrappers that guard the AgroMarket
// routes. A wrapped handler is only called when the session carries a signed
// in user and, for role routes, when that user holds the required role.
package gate

import (
	"mime"
	"net/http"
	"strings"

	v1 "github.com/agromarket/agromarket/agromarketwww/api/v1"
	"github.com/agromarket/agromarket/sanitize"
	"github.com/agromarket/agromarket/sessions"
	"github.com/agromarket/agromarket/util"
)

const (
	// flashCategory is the flash category of the denial messages.
	flashCategory = "danger"
)

// Gate wraps handlers with session and role checks.
type Gate struct {
	sessions *sessions.Manager
	loginURL string
}

// New returns a new Gate. Browser requests that are denied are redirected
// to loginURL.
func New(m *sessions.Manager, loginURL string) *Gate {
	return &Gate{
		sessions: m,
		loginURL: loginURL,
	}
}

// HasRole returns whether the identity satisfies the required role. A role
// is satisfied when it is held or when it is the active role. The
// administrator role must additionally be the active role.
func HasRole(id *sessions.Identity, required sessions.Role) bool {
	if id == nil {
		return false
	}
	ok := id.HasRole(required) || id.ActiveRole == required
	if required == sessions.RoleAdmin {
		ok = ok && id.ActiveRole == sessions.RoleAdmin
	}
	return ok
}

// WantsJSON returns whether the request expects a JSON reply instead of a
// rendered page.
func WantsJSON(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.HasPrefix(ct, "application/json")
	}
	return mt == "application/json"
}

// SetNoCache sets the headers that prevent a guarded page from being cached
// by the browser or an intermediate proxy.
func SetNoCache(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// session returns the session of the request. The session that the
// sessions middleware placed in the context is preferred.
func (g *Gate) session(r *http.Request) *sessions.Session {
	if s, ok := sessions.FromContext(r.Context()); ok {
		return s
	}
	return g.sessions.Load(r)
}

// redirect adds the flash message to the session and redirects the browser
// to the login page.
func (g *Gate) redirect(w http.ResponseWriter, r *http.Request, s *sessions.Session, msg string) {
	s.AddFlash(flashCategory, msg)
	err := g.sessions.Save(w, r, s)
	if err != nil {
		log.Errorf("redirect: save session: %v", err)
	}
	http.Redirect(w, r, g.loginURL, http.StatusFound)
}

// LoggedIn ensures that a user is signed in before calling the next
// function.
func (g *Gate) LoggedIn(f http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("LoggedIn: %v %v %v %v", util.RemoteAddr(r), r.Method,
			r.URL, r.Proto)

		s := g.session(r)
		if _, ok := s.Identity(); !ok {
			g.unauthenticated(w, r, s)
			return
		}

		SetNoCache(w)
		f(w, r)
	}
}

// Role ensures that a user is signed in and holds the required role before
// calling the next function.
func (g *Gate) Role(required sessions.Role, f http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("Role %v: %v %v %v %v", required, util.RemoteAddr(r),
			r.Method, r.URL, r.Proto)

		s := g.session(r)
		id, ok := s.Identity()
		if !ok {
			g.unauthenticated(w, r, s)
			return
		}
		if !HasRole(id, required) {
			g.forbidden(w, r, s, id, required)
			return
		}

		SetNoCache(w)
		f(w, r)
	}
}

func (g *Gate) unauthenticated(w http.ResponseWriter, r *http.Request, s *sessions.Session) {
	msg := v1.ErrorCodes[v1.ErrorCodeUnauthenticated]
	if WantsJSON(r) {
		util.RespondWithJSON(w, http.StatusUnauthorized, v1.ErrorReply{
			Error:     msg,
			ErrorCode: int64(v1.ErrorCodeUnauthenticated),
		})
		return
	}
	g.redirect(w, r, s, msg)
}

func (g *Gate) forbidden(w http.ResponseWriter, r *http.Request, s *sessions.Session, id *sessions.Identity, required sessions.Role) {
	roles := make([]string, 0, len(id.Roles))
	for _, v := range id.Roles {
		roles = append(roles, string(v))
	}
	sanitize.LogSecurityEvent(sanitize.EventAccessDenied, id.UserID,
		map[string]string{
			"path":     r.URL.Path,
			"required": string(required),
			"roles":    strings.Join(roles, ","),
			"active":   string(id.ActiveRole),
			"remote":   util.RemoteAddr(r),
		})

	msg := v1.ErrorCodes[v1.ErrorCodeForbidden]
	if WantsJSON(r) {
		util.RespondWithJSON(w, http.StatusForbidden, v1.ForbiddenReply{
			Error:        msg,
			RequiredRole: string(required),
			UserRoles:    roles,
			ActiveRole:   string(id.ActiveRole),
		})
		return
	}
	g.redirect(w, r, s, msg)
}
