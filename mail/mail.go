// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mail provides the SMTP client that AgroMarket uses when the
// delegated mail functions are unreachable.
package mail

import (
	"context"
	"errors"
)

var (
	// ErrDisabled is returned when mail has not been configured.
	ErrDisabled = errors.New("mail is disabled")
)

// Message is an outbound email.
type Message struct {
	To      []string
	Subject string

	// HTML is the HTML body of the message.
	HTML string

	// ReplyTo is the address that replies should be sent to. SMTP
	// delivery adds it to the end of the body since the headers of the
	// message are fixed.
	ReplyTo string
}

// Mailer is an interface used to send emails to a list of recipients.
type Mailer interface {
	// IsEnabled determines if the smtp server is enabled or not.
	IsEnabled() bool

	// Send sends the message. Every configured SMTP strategy is tried in
	// order until one succeeds or the context is done.
	Send(ctx context.Context, m Message) error
}
