// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	v1 "github.com/agromarket/agromarket/agromarketwww/api/v1"
	"github.com/agromarket/agromarket/functions"
	"github.com/agromarket/agromarket/mail"
	"github.com/agromarket/agromarket/notify"
	"github.com/agromarket/agromarket/payment"
	"github.com/agromarket/agromarket/resetpw"
)

// userErrorCode returns the error code of a user error or -1 when err is
// not a user error.
func userErrorCode(err error) v1.ErrorCodeT {
	var ue v1.UserError
	if errors.As(err, &ue) {
		return ue.ErrorCode
	}
	return -1
}

func TestConvertErrors(t *testing.T) {
	internal := errors.New("disk full")

	var tests = []struct {
		name string
		err  error
		want v1.ErrorCodeT
	}{
		{"reset invalid email", convertResetError(resetpw.ErrInvalidEmail),
			v1.ErrorCodeMalformedEmail},
		{"reset wrapped code", convertResetError(
			fmt.Errorf("verify: %w", resetpw.ErrCodeInvalid)),
			v1.ErrorCodeResetCodeInvalid},
		{"reset unavailable", convertResetError(resetpw.ErrUnavailable),
			v1.ErrorCodeServiceUnavailable},
		{"reset internal", convertResetError(internal), -1},
		{"payment validation", convertPaymentError(
			payment.ValidationError{Message: "monto inválido"}),
			v1.ErrorCodeValidation},
		{"payment not configured", convertPaymentError(
			payment.ErrNotConfigured), v1.ErrorCodeServiceUnavailable},
		{"payment upstream", convertPaymentError(payment.UpstreamError{
			Op: "refund", Err: internal}), v1.ErrorCodeUpstream},
		{"notify disabled", convertNotifyError(&notify.DeliveryError{
			Errs: []error{functions.ErrDisabled, mail.ErrDisabled}}),
			v1.ErrorCodeServiceUnavailable},
		{"notify failed", convertNotifyError(&notify.DeliveryError{
			Errs: []error{functions.ErrDisabled, internal}}),
			v1.ErrorCodeUpstream},
		{"notify internal", convertNotifyError(internal), -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := userErrorCode(tc.err); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRespondWithError(t *testing.T) {
	// User errors carry their status
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	respondWithError(w, r, "test: %v", v1.UserError{
		ErrorCode:    v1.ErrorCodeUserNotFound,
		ErrorContext: []string{"u9"},
	})
	er := wantError(t, w, http.StatusNotFound, v1.ErrorCodeUserNotFound)
	if er.Error != v1.ErrorCodes[v1.ErrorCodeUserNotFound] {
		t.Errorf("got error %v", er.Error)
	}

	// Internal errors are hidden behind a timestamp
	w = httptest.NewRecorder()
	respondWithError(w, r, "test: %v", errors.New("disk full"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got %v, want %v", w.Code, http.StatusInternalServerError)
	}
	decodeReply(t, w, &er)
	if er.Error != v1.ErrorCodes[v1.ErrorCodeInvalid] || er.ErrorCode == 0 {
		t.Errorf("unexpected reply %+v", er)
	}
}
