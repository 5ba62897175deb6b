// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package functions is a client for the AgroMarket serverless cloud
// functions. Every function is called with a POST of {"data": {...}} and
// replies with {"result": {...}}.
package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

// Function names.
const (
	SendPasswordResetCode      = "sendPasswordResetCode"
	VerifyPasswordResetCode    = "verifyPasswordResetCode"
	UpdatePassword             = "updatePassword"
	SendReceiptEmail           = "sendReceiptEmail"
	SendOrderStatusChangeEmail = "sendOrderStatusChangeEmail"
	SendRefundEmail            = "sendRefundEmail"
	SendSupportTicket          = "sendSupportTicket"
	SendNewSellerApplication   = "sendNewSellerApplicationNotification"
	SendSellerApprovalEmail    = "sendSellerApprovalEmail"
	SendSellerRejectionEmail   = "sendSellerRejectionEmail"
	SendSellerPendingEmail     = "sendSellerPendingEmail"
)

const (
	// DefaultRegion is the region the functions are deployed to.
	DefaultRegion = "us-central1"

	// DefaultTimeout is the timeout of a single function call.
	DefaultTimeout = 10 * time.Second

	// maxReplySize is the largest reply body that is read.
	maxReplySize = 1 << 20
)

var (
	// ErrDisabled is returned when the client has not been configured
	// with a project.
	ErrDisabled = errors.New("cloud functions are not configured")
)

// Error is returned when a function replies with a non 200 status code.
type Error struct {
	Function   string
	StatusCode int
	Body       string
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("function %v: status %v: %v", e.Function,
		e.StatusCode, e.Body)
}

// Opts contains the client options.
type Opts struct {
	// Project is the cloud project ID. The client is disabled when no
	// project is provided.
	Project string

	// Region defaults to DefaultRegion.
	Region string

	// Token is an optional bearer token that is sent with every call.
	Token string

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// BaseURL overrides the URL that is derived from the project and
	// region.
	BaseURL string
}

// Client calls the cloud functions.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// New returns a new cloud functions client.
func New(opts Opts) *Client {
	if opts.Region == "" {
		opts.Region = DefaultRegion
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	baseURL := opts.BaseURL
	if baseURL == "" && opts.Project != "" {
		baseURL = fmt.Sprintf("https://%v-%v.cloudfunctions.net",
			opts.Region, opts.Project)
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   opts.Token,
	}
}

// Enabled returns whether the client is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// URL returns the URL of the named function.
func (c *Client) URL(name string) string {
	return c.baseURL + "/" + name
}

// Call calls the named function with the provided data and returns the
// result. The whole reply body is returned when it does not contain a
// result field.
func (c *Client) Call(ctx context.Context, name string, data interface{}) (json.RawMessage, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	log.Tracef("Call %v: %v", name, logClosure(func() string {
		return spew.Sdump(data)
	}))

	b, err := json.Marshal(struct {
		Data interface{} `json:"data"`
	}{
		Data: data,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(name),
		bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "call %v", name)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return nil, errors.Wrapf(err, "read %v reply", name)
	}
	log.Debugf("Call %v: status %v in %v", name, resp.StatusCode,
		time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Function:   name,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var reply struct {
		Result json.RawMessage `json:"result"`
	}
	err = json.Unmarshal(body, &reply)
	if err == nil && len(reply.Result) > 0 {
		return reply.Result, nil
	}
	return body, nil
}

// Succeeded returns whether a function result reports success. Results
// without a success or valid flag are considered successful.
func Succeeded(result json.RawMessage) bool {
	var r struct {
		Success *bool `json:"success"`
		Valid   *bool `json:"valid"`
	}
	if err := json.Unmarshal(result, &r); err != nil {
		return false
	}
	switch {
	case r.Success != nil:
		return *r.Success
	case r.Valid != nil:
		return *r.Valid
	}
	return true
}
