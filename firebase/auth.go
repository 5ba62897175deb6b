// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"
	"github.com/agromarket/agromarket/resetpw"
	"github.com/pkg/errors"
)

var (
	_ resetpw.PasswordUpdater = (*Auth)(nil)
	_ resetpw.UserLookup      = (*Auth)(nil)
)

// Auth changes passwords and looks up users through Firebase Auth. A nil
// Auth reports resetpw.ErrUnavailable.
type Auth struct {
	client *auth.Client
}

// UpdatePassword satisfies the resetpw.PasswordUpdater interface.
func (a *Auth) UpdatePassword(ctx context.Context, email, password string) error {
	if a == nil || a.client == nil {
		return resetpw.ErrUnavailable
	}
	u, err := a.client.GetUserByEmail(ctx, email)
	if err != nil {
		return errors.Wrapf(err, "get user %v", email)
	}
	params := (&auth.UserToUpdate{}).Password(password)
	_, err = a.client.UpdateUser(ctx, u.UID, params)
	if err != nil {
		return errors.Wrapf(err, "update user %v", u.UID)
	}

	log.Debugf("Password updated for user %v", u.UID)

	return nil
}

// UserExists satisfies the resetpw.UserLookup interface.
func (a *Auth) UserExists(ctx context.Context, email string) (bool, error) {
	if a == nil || a.client == nil {
		return false, resetpw.ErrUnavailable
	}
	_, err := a.client.GetUserByEmail(ctx, email)
	switch {
	case auth.IsUserNotFound(err):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}
