// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package resetpw

import (
	"context"
	"encoding/json"

	"github.com/agromarket/agromarket/functions"
	"github.com/pkg/errors"
)

// Caller calls a delegated cloud function.
type Caller interface {
	Enabled() bool
	Call(ctx context.Context, name string, data interface{}) (json.RawMessage, error)
}

var (
	_ PasswordUpdater = (*FunctionUpdater)(nil)
)

// FunctionUpdater changes passwords through the updatePassword cloud
// function.
type FunctionUpdater struct {
	c Caller
}

// NewFunctionUpdater returns a new FunctionUpdater.
func NewFunctionUpdater(c Caller) *FunctionUpdater {
	return &FunctionUpdater{c: c}
}

// UpdatePassword satisfies the PasswordUpdater interface.
func (u *FunctionUpdater) UpdatePassword(ctx context.Context, email, password string) error {
	if u.c == nil || !u.c.Enabled() {
		return ErrUnavailable
	}
	res, err := u.c.Call(ctx, functions.UpdatePassword, map[string]string{
		"email":       email,
		"newPassword": password,
	})
	if err != nil {
		return err
	}
	if !functions.Succeeded(res) {
		return errors.Errorf("%v reported failure: %s",
			functions.UpdatePassword, res)
	}
	return nil
}
