// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sessions

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"
)

// contextKey is the type of the request context key for the session.
type contextKey struct{}

// Manager loads and saves AgroMarket sessions.
type Manager struct {
	store sessions.Store
	name  string
}

// NewManager returns a new Manager that uses the given gorilla store.
func NewManager(store sessions.Store) *Manager {
	return &Manager{
		store: store,
		name:  CookieName,
	}
}

// Load returns the session of the request. A fresh session is returned when
// the request does not carry a valid session cookie. Cookies that cannot be
// decoded, for example after a key rotation, are treated as absent.
func (m *Manager) Load(r *http.Request) *Session {
	s, err := m.store.Get(r, m.name)
	if err != nil {
		log.Debugf("Load: discarding undecodable session: %v", err)
	}
	if s == nil {
		s = sessions.NewSession(m.store, m.name)
		s.IsNew = true
	}
	return newSession(s)
}

// Save persists the session and updates the response cookie.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, s *Session) error {
	return m.store.Save(r, w, s.s)
}

// Middleware loads the session of every request and adds it to the request
// context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := m.Load(r)
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
	})
}

// NewContext returns a copy of the context that carries the session.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session that is carried in the context.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok
}
