// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package resetpw implements the password reset flow. A reset moves through
// three states: requested, verified and completed. The state lives in the
// browser session and is mirrored, best effort, to an external DB so that a
// code can still be verified when the session copy is missing.
package resetpw

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agromarket/agromarket/sanitize"
	"github.com/agromarket/agromarket/sessions"
)

const (
	// PasswordMinLength is the minimum number of characters of a new
	// password.
	PasswordMinLength = 6
)

var (
	// minWaitTime is the minimum amount of time to wait before a reset
	// request returns. This prevents a timing attack that would reveal
	// whether an email belongs to a user.
	minWaitTime = 500 * time.Millisecond
)

var (
	ErrInvalidEmail     = errors.New("invalid email")
	ErrCodeInvalid      = errors.New("reset code is invalid")
	ErrCodeExpired      = errors.New("reset code has expired")
	ErrNotVerified      = errors.New("reset code has not been verified")
	ErrPasswordTooShort = errors.New("password is too short")
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrUnavailable is returned when no password updater is able to
	// change the password. PasswordUpdater implementations return it when
	// they are not configured.
	ErrUnavailable = errors.New("password update is unavailable")

	// ErrUpdateFailed is returned when a password updater was available
	// but failed to change the password.
	ErrUpdateFailed = errors.New("password update failed")
)

// PasswordUpdater changes the password of the user that owns the email.
type PasswordUpdater interface {
	UpdatePassword(ctx context.Context, email, password string) error
}

// UserLookup reports whether a user exists for an email.
type UserLookup interface {
	UserExists(ctx context.Context, email string) (bool, error)
}

// Notifier delivers a reset code to the user.
type Notifier interface {
	SendResetCode(ctx context.Context, email, code string) error
}

// Config contains the collaborators of a Flow.
type Config struct {
	// DB mirrors the issued codes. Optional.
	DB DB

	// Updaters are tried in order until one changes the password.
	Updaters []PasswordUpdater

	// Users is used in the hardened posture to skip issuing codes to
	// unknown emails. Optional.
	Users UserLookup

	// Notifier delivers the code.
	Notifier Notifier

	// Debug selects the relaxed posture. A code that could not be
	// delivered is returned to the caller.
	Debug bool
}

// Flow is the password reset flow.
type Flow struct {
	db       DB
	updaters []PasswordUpdater
	users    UserLookup
	notifier Notifier
	debug    bool
	now      func() time.Time
}

// New returns a new password reset Flow.
func New(cfg Config) *Flow {
	return &Flow{
		db:       cfg.DB,
		updaters: cfg.Updaters,
		users:    cfg.Users,
		notifier: cfg.Notifier,
		debug:    cfg.Debug,
		now:      time.Now,
	}
}

// RequestReply is returned by Request.
type RequestReply struct {
	// Email is the normalized email the code was issued for.
	Email string

	// Delivered is false when the code could not be delivered. It is
	// always true for emails that do not belong to a user.
	Delivered bool

	// DebugCode is the plaintext code. It is only set in the relaxed
	// posture when the code could not be delivered.
	DebugCode string
}

// wait blocks until the minimum wait time since start has passed or the
// context is done.
func wait(ctx context.Context, start time.Time) {
	d := minWaitTime - time.Since(start)
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Request issues a new reset code for the email and stores it in the
// session. A code that was previously issued in this session is superseded.
func (f *Flow) Request(ctx context.Context, s *sessions.Session, email string) (*RequestReply, error) {
	start := time.Now()
	defer wait(ctx, start)

	email, err := sanitize.Email(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}
	reply := RequestReply{
		Email:     email,
		Delivered: true,
	}

	if !f.debug && f.users != nil {
		exists, err := f.users.UserExists(ctx, email)
		switch {
		case err != nil:
			log.Errorf("Request: user lookup %v: %v", email, err)
		case !exists:
			log.Infof("Reset requested for unknown email %v", email)
			return &reply, nil
		}
	}

	// Supersede the code that is still pending in this session
	if prev, ok := s.Reset(); ok && f.db != nil {
		err := f.db.SetUsed(ctx, prev.CodeHash)
		if err != nil && !errors.Is(err, ErrNotFound) {
			log.Warnf("Request: supersede code: %v", err)
		}
	}

	code, err := NewCode()
	if err != nil {
		return nil, err
	}
	now := f.now()
	c := Code{
		CodeHash:  HashCode(code),
		Email:     email,
		ExpiresAt: now.Add(CodeLifetime).Unix(),
		CreatedAt: now.Unix(),
	}
	s.SetReset(sessions.ResetState{
		Code:      code,
		CodeHash:  c.CodeHash,
		Email:     c.Email,
		ExpiresAt: c.ExpiresAt,
	})

	if f.db != nil {
		err := f.db.Save(ctx, c)
		if err != nil {
			log.Warnf("Request: mirror code for %v: %v", email, err)
		}
	}

	err = f.notifier.SendResetCode(ctx, email, code)
	if err != nil {
		log.Errorf("Request: deliver code to %v: %v", email, err)
		reply.Delivered = false
		if f.debug {
			reply.DebugCode = code
		}
	}

	log.Infof("Reset code issued for %v", email)

	return &reply, nil
}

// Verify checks a submitted code. The code that is pending in the session is
// tried first. When the session holds no matching, unexpired code for the
// email the DB is consulted by code hash. Codes superseded by a newer request
// are marked used in the DB and stay rejected. On success the code is marked
// verified in both locations.
func (f *Flow) Verify(ctx context.Context, s *sessions.Session, email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)
	if email == "" || !validCode(code) {
		return ErrCodeInvalid
	}
	hash := HashCode(code)
	now := f.now()

	// Returned when the DB cannot settle the code either.
	failure := ErrCodeInvalid

	rs, ok := s.Reset()
	if ok && strings.EqualFold(rs.Email, email) &&
		subtle.ConstantTimeCompare([]byte(rs.CodeHash), []byte(hash)) == 1 {
		switch {
		case rs.Expired(now):
			failure = ErrCodeExpired
		case !f.usedInDB(ctx, hash):
			f.setVerifiedInDB(ctx, hash)
			rs.Verified = true
			s.SetReset(*rs)
			return nil
		}
	}

	if f.db == nil {
		return failure
	}
	c, err := f.db.Get(ctx, hash)
	switch {
	case errors.Is(err, ErrNotFound):
		return failure
	case err != nil:
		log.Errorf("Verify: lookup code: %v", err)
		return failure
	}
	switch {
	case !strings.EqualFold(c.Email, email):
		return ErrCodeInvalid
	case c.Used:
		return ErrCodeInvalid
	case c.Expired(now):
		return ErrCodeExpired
	}

	f.setVerifiedInDB(ctx, hash)
	s.SetReset(sessions.ResetState{
		Code:      code,
		CodeHash:  hash,
		Email:     c.Email,
		ExpiresAt: c.ExpiresAt,
		Verified:  true,
	})

	return nil
}

// usedInDB returns whether the DB reports the code as used. DB errors are
// logged and treated as not used.
func (f *Flow) usedInDB(ctx context.Context, hash string) bool {
	if f.db == nil {
		return false
	}
	c, err := f.db.Get(ctx, hash)
	switch {
	case errors.Is(err, ErrNotFound):
		return false
	case err != nil:
		log.Warnf("usedInDB: %v", err)
		return false
	}
	return c.Used
}

func (f *Flow) setVerifiedInDB(ctx context.Context, hash string) {
	if f.db == nil {
		return
	}
	err := f.db.SetVerified(ctx, hash)
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Warnf("setVerifiedInDB: %v", err)
	}
}

// Complete changes the password once the code has been verified. The reset
// state is left untouched when the password could not be changed so that
// the user can retry.
func (f *Flow) Complete(ctx context.Context, s *sessions.Session, password, confirm string) error {
	rs, ok := s.Reset()
	if !ok || !rs.Verified || rs.Email == "" {
		return ErrNotVerified
	}
	if utf8.RuneCountInString(password) < PasswordMinLength {
		return ErrPasswordTooShort
	}
	if password != confirm {
		return ErrPasswordMismatch
	}

	var lastErr error
	for _, u := range f.updaters {
		err := u.UpdatePassword(ctx, rs.Email, password)
		if err == nil {
			lastErr = nil
			break
		}
		if !errors.Is(err, ErrUnavailable) {
			log.Errorf("Complete: update password of %v: %v", rs.Email, err)
			lastErr = err
		} else if lastErr == nil {
			lastErr = ErrUnavailable
		}
	}
	switch {
	case len(f.updaters) == 0:
		return ErrUnavailable
	case errors.Is(lastErr, ErrUnavailable):
		return ErrUnavailable
	case lastErr != nil:
		return ErrUpdateFailed
	}

	if f.db != nil {
		err := f.db.SetUsed(ctx, rs.CodeHash)
		if err != nil && !errors.Is(err, ErrNotFound) {
			log.Warnf("Complete: mark code used: %v", err)
		}
	}
	s.ClearReset()

	log.Infof("Password reset completed for %v", rs.Email)

	return nil
}
