// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package functions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-test/deep"
)

func TestURL(t *testing.T) {
	c := New(Opts{Project: "agromarket-625b2"})
	got := c.URL(SendReceiptEmail)
	want := "https://us-central1-agromarket-625b2.cloudfunctions.net/sendReceiptEmail"
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDisabled(t *testing.T) {
	c := New(Opts{})
	if c.Enabled() {
		t.Fatalf("client without project is enabled")
	}
	_, err := c.Call(context.Background(), SendReceiptEmail, nil)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("got err %v, want %v", err, ErrDisabled)
	}
}

func TestCall(t *testing.T) {
	var (
		gotBody map[string]interface{}
		gotAuth string
		gotPath string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Error(err)
		}
		w.Write([]byte(`{"result":{"success":true,"messageId":"m1"}}`))
	}))
	defer ts.Close()

	c := New(Opts{BaseURL: ts.URL, Token: "tok"})
	res, err := c.Call(context.Background(), SendReceiptEmail,
		map[string]interface{}{"email": "ana@example.com", "total": 10.5})
	if err != nil {
		t.Fatal(err)
	}

	if gotPath != "/"+SendReceiptEmail {
		t.Errorf("got path %v", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("got auth %q", gotAuth)
	}
	want := map[string]interface{}{
		"data": map[string]interface{}{
			"email": "ana@example.com",
			"total": 10.5,
		},
	}
	if diff := deep.Equal(gotBody, want); diff != nil {
		t.Error(diff)
	}
	if !Succeeded(res) {
		t.Errorf("result %s not successful", res)
	}
}

func TestCallNoResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false}`))
	}))
	defer ts.Close()

	c := New(Opts{BaseURL: ts.URL})
	res, err := c.Call(context.Background(), SendRefundEmail, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(res) != `{"success":false}` {
		t.Errorf("got %s", res)
	}
	if Succeeded(res) {
		t.Errorf("unsuccessful result reported as success")
	}
}

func TestCallStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := New(Opts{BaseURL: ts.URL})
	_, err := c.Call(context.Background(), SendRefundEmail, nil)
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("got err %v, want *Error", err)
	}
	if fe.StatusCode != http.StatusInternalServerError ||
		fe.Function != SendRefundEmail {
		t.Errorf("unexpected error %+v", fe)
	}
}

func TestCallTimeout(t *testing.T) {
	done := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(done)

	c := New(Opts{BaseURL: ts.URL, Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := c.Call(context.Background(), SendRefundEmail, nil)
	if err == nil {
		t.Fatalf("got nil error")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("call was not bounded by the timeout")
	}
}

func TestSucceeded(t *testing.T) {
	var tests = []struct {
		in   string
		want bool
	}{
		{`{"success":true}`, true},
		{`{"success":false}`, false},
		{`{"valid":false}`, false},
		{`{"messageId":"x"}`, true},
		{`not json`, false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := Succeeded(json.RawMessage(tc.in)); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
