// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sessions

import (
	"encoding/base32"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

var (
	_ sessions.Store = (*SessionStore)(nil)
)

// SessionStore is a session store that keeps the encoded session ID in the
// client cookie and the encoded session values in a DB.
//
// SessionStore implements the sessions.Store interface.
type SessionStore struct {
	Codecs  []securecookie.Codec
	Options *sessions.Options
	db      DB
}

// newSessionID returns a new session ID. A session ID is defined as a 32 byte
// base32 string with padding.
func newSessionID() string {
	return base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32))
}

// Get returns a session for the given name after adding it to the registry.
//
// A new session is returned if the given session doesn't exist. Access IsNew
// on the session to check if it is an existing session or a new one.
//
// Get returns a new session and an error if the session exists but could not
// be decoded.
//
// This function satisfies the sessions.Store interface.
func (s *SessionStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	log.Tracef("SessionStore.Get: %v", name)

	return sessions.GetRegistry(r).Get(s, name)
}

// New returns a session for the given name without adding it to the registry.
//
// The sessions.Store interface dictates that New() should never return a nil
// session, even in the case of an error.
//
// This function satisfies the sessions.Store interface.
func (s *SessionStore) New(r *http.Request, name string) (*sessions.Session, error) {
	log.Tracef("SessionStore.New: %v", name)

	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true
	session.ID = newSessionID()

	c, err := r.Cookie(name)
	if errors.Is(err, http.ErrNoCookie) {
		return session, nil
	} else if err != nil {
		return session, err
	}

	// The cookie only carries the encoded session ID. Decode it and look
	// the values up in the database.
	var id string
	err = securecookie.DecodeMulti(name, c.Value, &id, s.Codecs...)
	if err != nil {
		return session, err
	}

	es, err := s.db.Get(id)
	switch {
	case errors.Is(err, ErrNotFound):
		// Expired or deleted. A new session is returned.
		return session, nil
	case err != nil:
		return session, err
	}

	if es.CreatedAt > 0 && opts.MaxAge > 0 &&
		time.Now().Unix() > es.CreatedAt+int64(opts.MaxAge) {
		log.Debugf("Session %v is expired", id)
		return session, nil
	}

	session.ID = id
	session.IsNew = false
	err = securecookie.DecodeMulti(name, es.Values, &session.Values,
		s.Codecs...)
	if err != nil {
		return session, err
	}

	return session, nil
}

// Save saves the session to the database and updates the http response cookie
// with the encoded session ID.
//
// If the Options.MaxAge of the session is <= 0 then the session is deleted
// from the database and the cookie is expired.
//
// This function satisfies the sessions.Store interface.
func (s *SessionStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	log.Tracef("SessionStore.Save: %v", session.ID)

	if session.Options.MaxAge <= 0 {
		err := s.db.Del(session.ID)
		if err != nil {
			return err
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "",
			session.Options))
		return nil
	}

	createdAt, ok := session.Values[keyCreatedAt].(int64)
	if !ok {
		createdAt = time.Now().Unix()
		session.Values[keyCreatedAt] = createdAt
	}
	encodedValues, err := securecookie.EncodeMulti(session.Name(),
		session.Values, s.Codecs...)
	if err != nil {
		return err
	}
	err = s.db.Save(session.ID, EncodedSession{
		Values:    encodedValues,
		CreatedAt: createdAt,
	})
	if err != nil {
		return err
	}

	encodedID, err := securecookie.EncodeMulti(session.Name(), session.ID,
		s.Codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encodedID,
		session.Options))

	return nil
}

// codecs returns the securecookie codecs for the key pairs with the max age
// applied to each of them.
func codecs(maxAge int, keyPairs ...[]byte) []securecookie.Codec {
	cs := securecookie.CodecsFromPairs(keyPairs...)
	for _, codec := range cs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(maxAge)
		}
	}
	return cs
}

// NewSessionStore returns a new SessionStore that is backed by the given
// database.
//
// Keys are defined in pairs to allow key rotation, but the common case is
// to set a single authentication key and optionally an encryption key.
//
// The first key in a pair is used for authentication and the second for
// encryption. The encryption key can be set to nil or omitted in the last
// pair, but the authentication key is required in all pairs.
func NewSessionStore(db DB, opts *sessions.Options, keyPairs ...[]byte) *SessionStore {
	return &SessionStore{
		Codecs:  codecs(opts.MaxAge, keyPairs...),
		Options: opts,
		db:      db,
	}
}

// NewCookieStore returns a gorilla cookie store that keeps the encoded
// session values in the cookie itself.
func NewCookieStore(opts *sessions.Options, keyPairs ...[]byte) *sessions.CookieStore {
	cs := sessions.NewCookieStore(keyPairs...)
	cs.Options = opts
	cs.MaxAge(opts.MaxAge)
	return cs
}

// NewOptions returns the cookie options of the AgroMarket session. The
// secure flag is only set when the server is reached over https.
func NewOptions(secure bool) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   MaxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
