// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sessions

import (
	"encoding/gob"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/sessions"
)

const (
	// MaxAge is the max age for a session in seconds.
	MaxAge = 86400 // One day

	// CookieName is the name of the session cookie.
	CookieName = "agromarket_session"
)

// Session value keys. These are the only keys that are written to the
// gorilla session values map.
const (
	keyCreatedAt   = "created_at"
	keyUserID      = "usuario_id"
	keyEmail       = "email"
	keyDisplayName = "nombre"
	keyRoles       = "roles"
	keyActiveRole  = "rol_activo"

	keyResetCode     = "reset_password_code"
	keyResetExpires  = "reset_code_expires"
	keyResetCodeHash = "reset_code_hash"
	keyResetEmail    = "reset_email"
	keyResetVerified = "reset_verified"
)

// resetKeys contains every key that belongs to the password reset state.
var resetKeys = []string{
	keyResetCode,
	keyResetExpires,
	keyResetCodeHash,
	keyResetEmail,
	keyResetVerified,
}

func init() {
	// Roles and flashes are stored as interface values.
	gob.Register([]string{})
	gob.Register([]interface{}{})
}

// Role is a marketplace role.
type Role string

const (
	RoleBuyer  Role = "comprador"
	RoleSeller Role = "vendedor"
	RoleAdmin  Role = "administrador"
)

// Roles contains every valid role.
var Roles = []Role{RoleBuyer, RoleSeller, RoleAdmin}

// ParseRole normalizes and validates a role tag.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return r, true
	}
	return "", false
}

// Identity is the authenticated user of a session.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	Roles       []Role
	ActiveRole  Role
}

// HasRole returns whether the role is in the identity role set.
func (i *Identity) HasRole(r Role) bool {
	for _, v := range i.Roles {
		if v == r {
			return true
		}
	}
	return false
}

// ResetState is the password reset state that is kept in the session.
type ResetState struct {
	Code      string
	CodeHash  string
	Email     string
	ExpiresAt int64 // Unix timestamp
	Verified  bool
}

// Expired returns whether the reset code has expired at the given time.
func (r *ResetState) Expired(now time.Time) bool {
	return now.Unix() >= r.ExpiresAt
}

// Flash is a message that is shown to the user on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

// Session is a typed view of a gorilla session. Only the enumerated keys
// of this package are read or written.
type Session struct {
	s *sessions.Session
}

// newSession wraps a gorilla session.
func newSession(s *sessions.Session) *Session {
	return &Session{s: s}
}

// IsNew returns whether the session was just created and not yet saved.
func (s *Session) IsNew() bool {
	return s.s.IsNew
}

func (s *Session) str(key string) string {
	v, _ := s.s.Values[key].(string)
	return v
}

// Identity returns the authenticated user of the session. The bool is false
// when no user has signed in.
func (s *Session) Identity() (*Identity, bool) {
	uid := s.str(keyUserID)
	if uid == "" {
		return nil, false
	}
	var roles []Role
	if rs, ok := s.s.Values[keyRoles].([]string); ok {
		roles = make([]Role, 0, len(rs))
		for _, v := range rs {
			roles = append(roles, Role(v))
		}
	}
	return &Identity{
		UserID:      uid,
		Email:       s.str(keyEmail),
		DisplayName: s.str(keyDisplayName),
		Roles:       roles,
		ActiveRole:  Role(s.str(keyActiveRole)),
	}, true
}

// SetIdentity stores the authenticated user in the session.
func (s *Session) SetIdentity(id Identity) {
	rs := make([]string, 0, len(id.Roles))
	for _, v := range id.Roles {
		rs = append(rs, string(v))
	}
	s.s.Values[keyUserID] = id.UserID
	s.s.Values[keyEmail] = id.Email
	s.s.Values[keyDisplayName] = id.DisplayName
	s.s.Values[keyRoles] = rs
	s.s.Values[keyActiveRole] = string(id.ActiveRole)
}

// Reset returns the password reset state of the session. The bool is false
// when no reset is in progress.
func (s *Session) Reset() (*ResetState, bool) {
	hash := s.str(keyResetCodeHash)
	if hash == "" {
		return nil, false
	}
	expires, _ := s.s.Values[keyResetExpires].(int64)
	verified, _ := s.s.Values[keyResetVerified].(bool)
	return &ResetState{
		Code:      s.str(keyResetCode),
		CodeHash:  hash,
		Email:     s.str(keyResetEmail),
		ExpiresAt: expires,
		Verified:  verified,
	}, true
}

// SetReset stores the password reset state in the session. Any previous
// reset state is replaced.
func (s *Session) SetReset(r ResetState) {
	s.s.Values[keyResetCode] = r.Code
	s.s.Values[keyResetCodeHash] = r.CodeHash
	s.s.Values[keyResetEmail] = r.Email
	s.s.Values[keyResetExpires] = r.ExpiresAt
	s.s.Values[keyResetVerified] = r.Verified
}

// ClearReset removes every password reset key from the session.
func (s *Session) ClearReset() {
	for _, k := range resetKeys {
		delete(s.s.Values, k)
	}
}

// Clear removes all values from the session except its creation time.
func (s *Session) Clear() {
	for k := range s.s.Values {
		if k == keyCreatedAt {
			continue
		}
		delete(s.s.Values, k)
	}
}

// AddFlash adds a flash message to the session.
func (s *Session) AddFlash(category, message string) {
	s.s.AddFlash(category + "|" + message)
}

// Flashes returns and removes the pending flash messages.
func (s *Session) Flashes() []Flash {
	raw := s.s.Flashes()
	fs := make([]Flash, 0, len(raw))
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			continue
		}
		category, message, found := strings.Cut(str, "|")
		if !found {
			category, message = "info", str
		}
		fs = append(fs, Flash{Category: category, Message: message})
	}
	return fs
}

// NormalizeRoles converts the roles that the client submits into a list of
// valid roles. The client submits either a list of role tags or a single
// tag. Unknown roles are dropped.
func NormalizeRoles(v interface{}) []Role {
	var raw []string
	switch t := v.(type) {
	case nil:
	case string:
		raw = []string{t}
	case []string:
		raw = t
	case []interface{}:
		for _, r := range t {
			if s, ok := r.(string); ok {
				raw = append(raw, s)
			}
		}
	case map[string]interface{}:
		// {"comprador": true, "vendedor": false}
		for k, enabled := range t {
			if b, ok := enabled.(bool); ok && b {
				raw = append(raw, k)
			}
		}
		sort.Strings(raw)
	}

	roles := make([]Role, 0, len(raw))
	seen := make(map[Role]struct{}, len(raw))
	for _, s := range raw {
		r, ok := ParseRole(s)
		if !ok {
			log.Debugf("NormalizeRoles: dropping unknown role %q", s)
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		roles = append(roles, r)
	}
	return roles
}
