// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package firebase

import (
	"context"
	"errors"

	"firebase.google.com/go/v4/auth"
	pkgerrors "github.com/pkg/errors"
	"google.golang.org/api/iterator"
)

const (
	// roleClaim is the custom claim that holds the role of a user.
	roleClaim = "rol"

	// usersPageSize is the number of users that are requested per page.
	usersPageSize = 1000
)

var (
	// ErrUserNotFound is returned when no user exists for an ID.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotConfigured is returned by the user directory when the server
	// is not connected to a Firebase project.
	ErrNotConfigured = errors.New("firebase is not configured")
)

// User is a user of the Firebase project.
type User struct {
	UID          string
	Email        string
	DisplayName  string
	Phone        string
	Disabled     bool
	Role         string
	CreatedAt    int64 // Unix timestamp
	LastSignInAt int64 // Unix timestamp
}

// UserUpdate contains the user fields that an administrator can edit.
// Empty fields are left untouched.
type UserUpdate struct {
	DisplayName string
	Email       string
	Phone       string
}

func convertUser(u *auth.UserRecord) User {
	var uu User
	if u.UserInfo != nil {
		uu.UID = u.UID
		uu.Email = u.Email
		uu.DisplayName = u.DisplayName
		uu.Phone = u.PhoneNumber
	}
	uu.Disabled = u.Disabled
	if r, ok := u.CustomClaims[roleClaim].(string); ok {
		uu.Role = r
	}
	if u.UserMetadata != nil {
		uu.CreatedAt = u.UserMetadata.CreationTimestamp / 1000
		uu.LastSignInAt = u.UserMetadata.LastLogInTimestamp / 1000
	}
	return uu
}

func (a *Auth) enabled() bool {
	return a != nil && a.client != nil
}

// Users returns every user of the project.
func (a *Auth) Users(ctx context.Context) ([]User, error) {
	if !a.enabled() {
		return nil, ErrNotConfigured
	}
	users := make([]User, 0, 64)
	it := a.client.Users(ctx, "")
	it.PageInfo().MaxSize = usersPageSize
	for {
		u, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pkgerrors.Wrap(err, "list users")
		}
		users = append(users, convertUser(u.UserRecord))
	}

	log.Debugf("Listed %v users", len(users))

	return users, nil
}

// UpdateUser updates the profile of a user.
func (a *Auth) UpdateUser(ctx context.Context, uid string, uu UserUpdate) error {
	if !a.enabled() {
		return ErrNotConfigured
	}
	params := &auth.UserToUpdate{}
	if uu.DisplayName != "" {
		params = params.DisplayName(uu.DisplayName)
	}
	if uu.Email != "" {
		params = params.Email(uu.Email)
	}
	if uu.Phone != "" {
		params = params.PhoneNumber(uu.Phone)
	}
	_, err := a.client.UpdateUser(ctx, uid, params)
	switch {
	case auth.IsUserNotFound(err):
		return ErrUserNotFound
	case err != nil:
		return pkgerrors.Wrapf(err, "update user %v", uid)
	}

	log.Infof("User %v updated", uid)

	return nil
}

// DeleteUser deletes a user.
func (a *Auth) DeleteUser(ctx context.Context, uid string) error {
	if !a.enabled() {
		return ErrNotConfigured
	}
	err := a.client.DeleteUser(ctx, uid)
	switch {
	case auth.IsUserNotFound(err):
		return ErrUserNotFound
	case err != nil:
		return pkgerrors.Wrapf(err, "delete user %v", uid)
	}

	log.Infof("User %v deleted", uid)

	return nil
}

// SetRole sets the role claim of a user. The other custom claims of the
// user are preserved.
func (a *Auth) SetRole(ctx context.Context, uid, role string) error {
	if !a.enabled() {
		return ErrNotConfigured
	}
	u, err := a.client.GetUser(ctx, uid)
	switch {
	case auth.IsUserNotFound(err):
		return ErrUserNotFound
	case err != nil:
		return pkgerrors.Wrapf(err, "get user %v", uid)
	}
	claims := make(map[string]interface{}, len(u.CustomClaims)+1)
	for k, v := range u.CustomClaims {
		claims[k] = v
	}
	claims[roleClaim] = role
	err = a.client.SetCustomUserClaims(ctx, uid, claims)
	if err != nil {
		return pkgerrors.Wrapf(err, "set claims of %v", uid)
	}

	log.Infof("User %v role set to %v", uid, role)

	return nil
}
