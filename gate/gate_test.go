// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package gate

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	v1 "github.com/agromarket/agromarket/agromarketwww/api/v1"
	"github.com/agromarket/agromarket/sanitize"
	"github.com/agromarket/agromarket/sessions"
	"github.com/decred/slog"
	"github.com/go-test/deep"
	"github.com/gorilla/securecookie"
)

func newTestGate(t *testing.T) (*Gate, *sessions.Manager) {
	t.Helper()
	store := sessions.NewCookieStore(sessions.NewOptions(false),
		securecookie.GenerateRandomKey(32))
	m := sessions.NewManager(store)
	return New(m, v1.RouteLoginPage), m
}

// newRequest returns a request that carries a session with the given
// identity. A nil identity results in an anonymous session.
func newRequest(m *sessions.Manager, id *sessions.Identity, wantJSON bool) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/admin/panel", nil)
	if wantJSON {
		r.Header.Set("Content-Type", "application/json")
	}
	s := m.Load(r)
	if id != nil {
		s.SetIdentity(*id)
	}
	return r.WithContext(sessions.NewContext(r.Context(), s))
}

func okHandler(called *bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}
}

func TestHasRole(t *testing.T) {
	var tests = []struct {
		name     string
		id       *sessions.Identity
		required sessions.Role
		want     bool
	}{
		{"nil identity", nil, sessions.RoleBuyer, false},
		{"held role", &sessions.Identity{
			Roles:      []sessions.Role{sessions.RoleBuyer},
			ActiveRole: sessions.RoleBuyer,
		}, sessions.RoleBuyer, true},
		{"active role only", &sessions.Identity{
			ActiveRole: sessions.RoleSeller,
		}, sessions.RoleSeller, true},
		{"role missing", &sessions.Identity{
			Roles:      []sessions.Role{sessions.RoleBuyer},
			ActiveRole: sessions.RoleBuyer,
		}, sessions.RoleSeller, false},
		{"admin held but not active", &sessions.Identity{
			Roles: []sessions.Role{sessions.RoleAdmin,
				sessions.RoleSeller},
			ActiveRole: sessions.RoleSeller,
		}, sessions.RoleAdmin, false},
		{"admin active", &sessions.Identity{
			Roles:      []sessions.Role{sessions.RoleAdmin},
			ActiveRole: sessions.RoleAdmin,
		}, sessions.RoleAdmin, true},
		{"admin may use seller routes", &sessions.Identity{
			Roles: []sessions.Role{sessions.RoleAdmin,
				sessions.RoleSeller},
			ActiveRole: sessions.RoleAdmin,
		}, sessions.RoleSeller, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasRole(tc.id, tc.required); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWantsJSON(t *testing.T) {
	var tests = []struct {
		name   string
		header map[string]string
		want   bool
	}{
		{"browser", nil, false},
		{"json", map[string]string{
			"Content-Type": "application/json; charset=utf-8"}, true},
		{"ajax", map[string]string{
			"X-Requested-With": "XMLHttpRequest"}, true},
		{"form", map[string]string{
			"Content-Type": "application/x-www-form-urlencoded"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			for k, v := range tc.header {
				r.Header.Set(k, v)
			}
			if got := WantsJSON(r); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLoggedIn(t *testing.T) {
	g, m := newTestGate(t)

	t.Run("json unauthenticated", func(t *testing.T) {
		var called bool
		w := httptest.NewRecorder()
		g.LoggedIn(okHandler(&called))(w, newRequest(m, nil, true))

		if called {
			t.Fatalf("handler was called")
		}
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("got status %v, want %v", w.Code,
				http.StatusUnauthorized)
		}
		var er v1.ErrorReply
		if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
			t.Fatal(err)
		}
		if er.Success || er.Error != v1.ErrorCodes[v1.ErrorCodeUnauthenticated] {
			t.Errorf("unexpected reply %+v", er)
		}
	})

	t.Run("browser unauthenticated", func(t *testing.T) {
		var called bool
		w := httptest.NewRecorder()
		g.LoggedIn(okHandler(&called))(w, newRequest(m, nil, false))

		if called {
			t.Fatalf("handler was called")
		}
		if w.Code != http.StatusFound {
			t.Fatalf("got status %v, want %v", w.Code, http.StatusFound)
		}
		if loc := w.Header().Get("Location"); loc != v1.RouteLoginPage {
			t.Errorf("got location %v, want %v", loc, v1.RouteLoginPage)
		}

		// The flash travels in the session cookie
		next := httptest.NewRequest(http.MethodGet, v1.RouteLoginPage, nil)
		for _, c := range w.Result().Cookies() {
			next.AddCookie(c)
		}
		fs := m.Load(next).Flashes()
		want := []sessions.Flash{{
			Category: "danger",
			Message:  v1.ErrorCodes[v1.ErrorCodeUnauthenticated],
		}}
		if diff := deep.Equal(fs, want); diff != nil {
			t.Error(diff)
		}
	})

	t.Run("signed in", func(t *testing.T) {
		var called bool
		w := httptest.NewRecorder()
		r := newRequest(m, &sessions.Identity{UserID: "uid"}, false)
		g.LoggedIn(okHandler(&called))(w, r)

		if !called {
			t.Fatalf("handler was not called")
		}
		if cc := w.Header().Get("Cache-Control"); cc == "" {
			t.Errorf("no cache headers were not set")
		}
	})
}

// captureSecurityLog routes the security event log into the returned
// buffer for the duration of the test.
func captureSecurityLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var b bytes.Buffer
	sanitize.UseLogger(slog.NewBackend(&b).Logger("SECU"))
	t.Cleanup(sanitize.DisableLog)
	return &b
}

func TestRoleAdminDenied(t *testing.T) {
	g, m := newTestGate(t)
	secLog := captureSecurityLog(t)

	var called bool
	w := httptest.NewRecorder()
	r := newRequest(m, &sessions.Identity{
		UserID:     "uid",
		Roles:      []sessions.Role{sessions.RoleAdmin, sessions.RoleSeller},
		ActiveRole: sessions.RoleSeller,
	}, true)
	g.Role(sessions.RoleAdmin, okHandler(&called))(w, r)

	if called {
		t.Fatalf("handler was called")
	}
	if w.Code != http.StatusForbidden {
		t.Fatalf("got status %v, want %v", w.Code, http.StatusForbidden)
	}
	var got v1.ForbiddenReply
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := v1.ForbiddenReply{
		Error:        v1.ErrorCodes[v1.ErrorCodeForbidden],
		RequiredRole: "administrador",
		UserRoles:    []string{"administrador", "vendedor"},
		ActiveRole:   "vendedor",
	}
	if diff := deep.Equal(got, want); diff != nil {
		t.Error(diff)
	}

	entry := secLog.String()
	for _, s := range []string{
		sanitize.EventAccessDenied,
		"user: uid",
		`required="administrador"`,
		`active="vendedor"`,
	} {
		if !strings.Contains(entry, s) {
			t.Errorf("security log %q is missing %q", entry, s)
		}
	}
}

func TestRoleAllowed(t *testing.T) {
	g, m := newTestGate(t)

	var called bool
	w := httptest.NewRecorder()
	r := newRequest(m, &sessions.Identity{
		UserID:     "uid",
		Roles:      []sessions.Role{sessions.RoleAdmin},
		ActiveRole: sessions.RoleAdmin,
	}, false)
	g.Role(sessions.RoleAdmin, okHandler(&called))(w, r)

	if !called {
		t.Fatalf("handler was not called")
	}
	h := w.Header()
	if h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Errorf("unexpected cache headers %v", h)
	}
}
