// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/agromarket/agromarket/functions"
	"github.com/agromarket/agromarket/mail"
	"github.com/pkg/errors"
)

const (
	// DefaultBudget is the time that all strategies of a single delivery
	// share.
	DefaultBudget = 45 * time.Second
)

var (
	// ErrNoRecipients is returned when a notification has no recipients.
	ErrNoRecipients = errors.New("notification has no recipients")
)

// Strategy is a way of delivering a notification.
type Strategy interface {
	Name() string
	Deliver(ctx context.Context, n *Notification) error
}

// Caller calls a cloud function. *functions.Client satisfies it.
type Caller interface {
	Enabled() bool
	Call(ctx context.Context, name string, data interface{}) (json.RawMessage, error)
}

type functionStrategy struct {
	caller  Caller
	timeout time.Duration
}

// FunctionStrategy returns the strategy that delivers notifications through
// the cloud function of their kind. Every call is bounded by timeout.
func FunctionStrategy(c Caller, timeout time.Duration) Strategy {
	if timeout == 0 {
		timeout = functions.DefaultTimeout
	}
	return &functionStrategy{
		caller:  c,
		timeout: timeout,
	}
}

func (s *functionStrategy) Name() string {
	return "function"
}

func (s *functionStrategy) Deliver(ctx context.Context, n *Notification) error {
	if !s.caller.Enabled() {
		return functions.ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name := n.Kind.Function()
	result, err := s.caller.Call(ctx, name, n.Data)
	if err != nil {
		return err
	}
	if !functions.Succeeded(result) {
		return errors.Errorf("%v reported failure: %s", name, result)
	}
	return nil
}

type mailStrategy struct {
	mailer mail.Mailer
}

// MailStrategy returns the strategy that delivers notifications through the
// SMTP relay.
func MailStrategy(m mail.Mailer) Strategy {
	return &mailStrategy{
		mailer: m,
	}
}

func (s *mailStrategy) Name() string {
	return "smtp"
}

func (s *mailStrategy) Deliver(ctx context.Context, n *Notification) error {
	if !s.mailer.IsEnabled() {
		return mail.ErrDisabled
	}
	if len(n.To) == 0 {
		return ErrNoRecipients
	}
	return s.mailer.Send(ctx, mail.Message{
		To:      n.To,
		Subject: n.Subject,
		HTML:    n.HTML,
		ReplyTo: n.ReplyTo,
	})
}

// DeliveryError is returned when every strategy failed to deliver a
// notification.
type DeliveryError struct {
	Kind Kind
	Errs []error
}

// Error satisfies the error interface.
func (e *DeliveryError) Error() string {
	s := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		s = append(s, err.Error())
	}
	return "deliver " + e.Kind.String() + ": " + strings.Join(s, "; ")
}

// Opts contains the relay options.
type Opts struct {
	// Budget is shared by all the strategies of a delivery. It defaults
	// to DefaultBudget.
	Budget time.Duration

	// SupportAddress receives the support tickets.
	SupportAddress string

	// AdminAddresses receive the new seller applications.
	AdminAddresses []string
}

// Relay delivers notifications through the first strategy that succeeds.
type Relay struct {
	strategies []Strategy
	budget     time.Duration
	support    string
	admins     []string
}

// New returns a relay that tries the strategies in the order provided.
func New(opts Opts, strategies ...Strategy) *Relay {
	if opts.Budget == 0 {
		opts.Budget = DefaultBudget
	}
	return &Relay{
		strategies: strategies,
		budget:     opts.Budget,
		support:    opts.SupportAddress,
		admins:     opts.AdminAddresses,
	}
}

// Send delivers the notification. It returns a DeliveryError when every
// strategy failed.
func (r *Relay) Send(ctx context.Context, n *Notification) error {
	ctx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	derr := &DeliveryError{Kind: n.Kind}
	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			derr.Errs = append(derr.Errs, errors.Wrap(err, s.Name()))
			break
		}

		start := time.Now()
		err := s.Deliver(ctx, n)
		if err == nil {
			log.Infof("Delivered %v to %v via %v in %v", n.Kind,
				strings.Join(n.To, ", "), s.Name(), time.Since(start))
			return nil
		}
		log.Debugf("Deliver %v via %v: %v", n.Kind, s.Name(), err)
		derr.Errs = append(derr.Errs, errors.Wrap(err, s.Name()))
	}
	if len(derr.Errs) == 0 {
		derr.Errs = append(derr.Errs, errors.New("no delivery strategies"))
	}
	return derr
}

// Notify delivers the notification and logs a failure instead of returning
// it. It returns whether the notification was delivered.
func (r *Relay) Notify(ctx context.Context, n *Notification) bool {
	err := r.Send(ctx, n)
	if err != nil {
		log.Errorf("Notify: %v", err)
		return false
	}
	return true
}

// SendResetCode delivers a password reset code.
func (r *Relay) SendResetCode(ctx context.Context, email, code string) error {
	n, err := NewResetCode(email, code, "")
	if err != nil {
		return err
	}
	return r.Send(ctx, n)
}

// SupportTicket returns the notification of a support ticket addressed to
// the support inbox.
func (r *Relay) SupportTicket(t SupportTicket) (*Notification, error) {
	return NewSupportTicket(t, r.support)
}

// SellerApplication returns the notification of a new seller application
// addressed to the administrators.
func (r *Relay) SellerApplication(a SellerApplication) (*Notification, error) {
	return NewSellerApplication(a, r.admins)
}
