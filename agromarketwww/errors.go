// Copyright (c) 2017-2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	v1 "github.com/agromarket/agromarket/agromarketwww/api/v1"
	"github.com/agromarket/agromarket/firebase"
	"github.com/agromarket/agromarket/functions"
	"github.com/agromarket/agromarket/gate"
	"github.com/agromarket/agromarket/mail"
	"github.com/agromarket/agromarket/notify"
	"github.com/agromarket/agromarket/payment"
	"github.com/agromarket/agromarket/resetpw"
	"github.com/agromarket/agromarket/util"
)

// wantsJSON returns whether the request is an API request that expects a
// JSON reply.
func wantsJSON(r *http.Request) bool {
	return gate.WantsJSON(r) || strings.Contains(r.URL.Path, "/api/")
}

// userErrorStatus returns the http status code of a user error.
func userErrorStatus(e v1.ErrorCodeT) int {
	switch e {
	case v1.ErrorCodeUnauthenticated:
		return http.StatusUnauthorized
	case v1.ErrorCodeForbidden:
		return http.StatusForbidden
	case v1.ErrorCodeUserNotFound:
		return http.StatusNotFound
	case v1.ErrorCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case v1.ErrorCodeUpstream, v1.ErrorCodeDeliveryFailed:
		return http.StatusBadGateway
	}
	return http.StatusBadRequest
}

// respondWithError checks the error type and responds with the appropriate
// HTTP error response.
func respondWithError(w http.ResponseWriter, r *http.Request, format string, err error) {
	// Check if the client dropped the connection
	if err := r.Context().Err(); err == context.Canceled {
		log.Infof("%v %v %v %v client aborted connection",
			util.RemoteAddr(r), r.Method, r.URL, r.Proto)

		// The client dropped the connection. There
		// is no need to send a response.
		return
	}

	// Check if this a user error
	var ue v1.UserError
	if errors.As(err, &ue) {
		m := fmt.Sprintf("%v User error: %v %v",
			util.RemoteAddr(r), ue.ErrorCode, v1.ErrorCodes[ue.ErrorCode])
		if len(ue.ErrorContext) != 0 {
			m += fmt.Sprintf(": %v", strings.Join(ue.ErrorContext, ", "))
		}
		log.Infof(m)

		util.RespondWithJSON(w, userErrorStatus(ue.ErrorCode),
			v1.ErrorReply{
				Error:        v1.ErrorCodes[ue.ErrorCode],
				ErrorCode:    int64(ue.ErrorCode),
				ErrorContext: ue.ErrorContext,
			})
		return
	}

	// This is an internal server error. Log it and return a 500.
	t := time.Now().Unix()
	e := fmt.Sprintf(format, err)
	log.Errorf("%v %v %v %v Internal error %v: %v",
		util.RemoteAddr(r), r.Method, r.URL, r.Proto, t, e)

	// If this is a pkg/errors error then we can pull the
	// stack trace out of the error, otherwise, we use the
	// stack trace that points to this function.
	stack, ok := util.StackTrace(err)
	if !ok {
		stack = string(debug.Stack())
	}

	log.Errorf("Stacktrace (NOT A REAL CRASH): %v", stack)

	util.RespondWithJSON(w, http.StatusInternalServerError,
		v1.ErrorReply{
			Error:     v1.ErrorCodes[v1.ErrorCodeInvalid],
			ErrorCode: t,
		})
}

// convertResetError converts a password reset error to a user error. Errors
// that are not caused by the user are returned unchanged.
func convertResetError(err error) error {
	var e v1.ErrorCodeT
	switch {
	case errors.Is(err, resetpw.ErrInvalidEmail):
		e = v1.ErrorCodeMalformedEmail
	case errors.Is(err, resetpw.ErrCodeInvalid):
		e = v1.ErrorCodeResetCodeInvalid
	case errors.Is(err, resetpw.ErrCodeExpired):
		e = v1.ErrorCodeResetCodeExpired
	case errors.Is(err, resetpw.ErrNotVerified):
		e = v1.ErrorCodeResetNotVerified
	case errors.Is(err, resetpw.ErrPasswordTooShort):
		e = v1.ErrorCodePasswordTooShort
	case errors.Is(err, resetpw.ErrPasswordMismatch):
		e = v1.ErrorCodePasswordMismatch
	case errors.Is(err, resetpw.ErrUnavailable):
		e = v1.ErrorCodeServiceUnavailable
	case errors.Is(err, resetpw.ErrUpdateFailed):
		e = v1.ErrorCodeUpstream
	default:
		return err
	}
	return v1.UserError{ErrorCode: e}
}

// convertPaymentError converts a payment bridge error to a user error.
func convertPaymentError(err error) error {
	var (
		ve payment.ValidationError
		ue payment.UpstreamError
	)
	switch {
	case errors.As(err, &ve):
		return v1.UserError{
			ErrorCode:    v1.ErrorCodeValidation,
			ErrorContext: []string{ve.Message},
		}
	case errors.Is(err, payment.ErrNotConfigured):
		return v1.UserError{
			ErrorCode: v1.ErrorCodeServiceUnavailable,
		}
	case errors.As(err, &ue):
		log.Warnf("Payment processor: %v", ue)
		return v1.UserError{
			ErrorCode:    v1.ErrorCodeUpstream,
			ErrorContext: []string{ue.Err.Error()},
		}
	}
	return err
}

// convertNotifyError converts a delivery error to a user error. A
// notification that could not be delivered because no channel is configured
// is reported as an unavailable service.
func convertNotifyError(err error) error {
	var de *notify.DeliveryError
	if !errors.As(err, &de) {
		return err
	}
	disabled := len(de.Errs) > 0
	for _, v := range de.Errs {
		if !errors.Is(v, functions.ErrDisabled) &&
			!errors.Is(v, mail.ErrDisabled) {
			disabled = false
			break
		}
	}
	if disabled {
		return v1.UserError{
			ErrorCode: v1.ErrorCodeServiceUnavailable,
		}
	}
	return v1.UserError{
		ErrorCode: v1.ErrorCodeUpstream,
	}
}

// convertDirectoryError converts a user directory error to a user error.
func convertDirectoryError(err error) error {
	switch {
	case errors.Is(err, firebase.ErrUserNotFound):
		return v1.UserError{ErrorCode: v1.ErrorCodeUserNotFound}
	case errors.Is(err, firebase.ErrNotConfigured):
		return v1.UserError{ErrorCode: v1.ErrorCodeServiceUnavailable}
	}
	return err
}
