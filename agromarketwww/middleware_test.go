// Copyright (c) 2021-2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	v1 "github.com/agromarket/agromarket/agromarketwww/api/v1"
	"github.com/gorilla/mux"
)

func TestMaxBodySizeMiddleware(t *testing.T) {
	// Setup the test router
	router := mux.NewRouter()
	router.Use(closeBodyMiddleware)
	router.Use(maxBodySizeMiddleware)

	// Setup a route handler that reads the request body. Reading
	// the request body is required in order to trigger the error.
	testRoute := "/test"
	router.HandleFunc(testRoute, func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Setup tests
	var tests = []struct {
		name     string
		size     int
		wantCode int
	}{
		{"no request body", 0, http.StatusOK},
		{"under the req body limit", reqBodySizeLimit - 1, http.StatusOK},
		{"at the req body limit", reqBodySizeLimit, http.StatusOK},
		{"over the req body limit", reqBodySizeLimit + 1,
			http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Setup request
			body := strings.NewReader(strings.Repeat("a", tc.size))
			r := httptest.NewRequest(http.MethodPost, testRoute, body)
			w := httptest.NewRecorder()

			// Send request
			router.ServeHTTP(w, r)

			// Verify the response code
			if w.Code != tc.wantCode {
				t.Errorf("got status code %v, want %v",
					w.Code, tc.wantCode)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(requestIDHeader)
	}))

	// A new ID is generated
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	got := w.Header().Get(requestIDHeader)
	if got == "" || got != seen {
		t.Fatalf("got response id %q, request id %q", got, seen)
	}

	// The ID of the proxy is kept
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(requestIDHeader, "proxy-id")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if got := w.Header().Get(requestIDHeader); got != "proxy-id" {
		t.Errorf("got response id %q", got)
	}
	if seen != "proxy-id" {
		t.Errorf("got request id %q", seen)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := recoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got %v, want %v", w.Code, http.StatusInternalServerError)
	}
	var er v1.ErrorReply
	decodeReply(t, w, &er)
	if er.Error != v1.ErrorCodes[v1.ErrorCodeInvalid] || er.ErrorCode == 0 {
		t.Errorf("unexpected reply %+v", er)
	}
}
