// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mail

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"html"
	"net"
	"net/mail"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/dajohi/goemail"
	"github.com/pkg/errors"
)

const (
	// DefaultTimeout is the budget that is shared by all SMTP strategies
	// of a single send.
	DefaultTimeout = 30 * time.Second

	// portSTARTTLS and portTLS are the submission ports.
	portSTARTTLS = 587
	portTLS      = 465
)

var (
	_ Mailer = (*client)(nil)
)

// sender sends a prepared message. goemail.SMTP satisfies it.
type sender interface {
	Send(msg *goemail.Message) error
}

// strategy is a single way of reaching the SMTP server.
type strategy struct {
	name   string
	sender sender
}

// endpoint is a port and the encryption that is used on it.
type endpoint struct {
	port int
	tls  bool // implicit TLS, otherwise STARTTLS
}

func (e endpoint) scheme() string {
	if e.tls {
		return "smtps"
	}
	return "smtp"
}

// endpoints returns the ordered endpoints that are tried for a host. The
// configured port comes first and uses implicit TLS when it is 465. The
// alternates 587/STARTTLS and 465/TLS follow unless they duplicate it.
func endpoints(port int) []endpoint {
	primary := endpoint{port: port, tls: port == portTLS}
	es := []endpoint{primary}
	for _, alt := range []endpoint{
		{port: portSTARTTLS, tls: false},
		{port: portTLS, tls: true},
	} {
		if alt == primary {
			continue
		}
		es = append(es, alt)
	}
	return es
}

// client provides an SMTP client for sending emails from a preset email
// address.
//
// client implements the Mailer interface.
type client struct {
	strategies  []strategy
	mailName    string
	mailAddress string
	disabled    bool
	timeout     time.Duration
	limiter     *limiter
}

// Opts contains the SMTP client options.
type Opts struct {
	Host     string
	Port     int
	User     string
	Password string

	// From is the sender address, optionally with a name, for example
	// "AgroMarket <noreply@agromarket.mx>".
	From string

	// CertPath is an optional CA certificate of the SMTP server.
	CertPath   string
	SkipVerify bool

	// Timeout is the budget shared by all strategies of a send.
	Timeout time.Duration

	// RateLimit is the maximum number of emails that a single recipient
	// receives during a rate limit period. Zero disables rate limiting.
	RateLimit int
}

// IsEnabled returns whether the mail server is enabled.
//
// This function satisfies the Mailer interface.
func (c *client) IsEnabled() bool {
	return !c.disabled
}

// build returns the goemail message for the recipients.
func (c *client) build(m Message, to []string) *goemail.Message {
	body := m.HTML
	if m.ReplyTo != "" {
		body += fmt.Sprintf("<p>Responder a: <a href=\"mailto:%v\">%v</a></p>",
			html.EscapeString(m.ReplyTo), html.EscapeString(m.ReplyTo))
	}
	msg := goemail.NewHTMLMessage(c.mailAddress, m.Subject, body)
	msg.SetName(c.mailName)

	// Multiple recipients do not get to see each other
	if len(to) == 1 {
		msg.AddTo(to[0])
	} else {
		for _, v := range to {
			msg.AddBCC(v)
		}
	}
	return msg
}

// Send sends the message through the first SMTP strategy that succeeds. All
// strategies share a single deadline.
//
// This function satisfies the Mailer interface.
func (c *client) Send(ctx context.Context, m Message) error {
	if c.disabled {
		return ErrDisabled
	}
	if len(m.To) == 0 {
		return nil
	}

	to, warn := m.To, []string(nil)
	if c.limiter != nil {
		to, warn = c.limiter.filter(m.To)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if len(warn) > 0 {
		err := c.send(ctx, c.build(Message{
			Subject: limitEmailSubject,
			HTML:    limitEmailBody,
		}, warn))
		if err != nil {
			log.Errorf("Send: rate limit warning: %v", err)
		}
	}
	if len(to) == 0 {
		log.Infof("Send: all recipients of %q are rate limited", m.Subject)
		return nil
	}

	return c.send(ctx, c.build(m, to))
}

// send tries every strategy in order.
func (c *client) send(ctx context.Context, msg *goemail.Message) error {
	var lastErr error
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}

		start := time.Now()
		err := sendWithContext(ctx, s.sender, msg)
		if err == nil {
			log.Debugf("Mail sent via %v in %v", s.name, time.Since(start))
			return nil
		}
		log.Warnf("Mail strategy %v failed: %v", s.name, err)
		lastErr = errors.Wrap(err, s.name)
	}
	if lastErr == nil {
		lastErr = errors.New("no smtp strategies")
	}
	return lastErr
}

// sendWithContext sends the message and returns early when the context is
// done. goemail does not accept a context, so an abandoned send keeps
// running in its goroutine until the dial or write times out.
func sendWithContext(ctx context.Context, s sender, msg *goemail.Message) error {
	done := make(chan error, 1)
	go func() {
		done <- s.Send(msg)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tlsConfig returns the TLS config of the SMTP connections.
func tlsConfig(host, certPath string, skipVerify bool) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: skipVerify,
	}
	if !skipVerify && certPath != "" {
		cert, err := os.ReadFile(certPath)
		if err != nil {
			return nil, err
		}
		certPool, err := x509.SystemCertPool()
		if err != nil {
			certPool = x509.NewCertPool()
		}
		certPool.AppendCertsFromPEM(cert)
		cfg.RootCAs = certPool
	}
	return cfg, nil
}

// New returns a new SMTP client. The client is disabled when the host or
// any of the credentials are missing.
func New(opts Opts) (*client, error) {
	if opts.Host == "" || opts.User == "" || opts.Password == "" {
		log.Infof("Mail: DISABLED")
		return &client{
			disabled: true,
		}, nil
	}
	if opts.Port == 0 {
		opts.Port = portSTARTTLS
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	from := opts.From
	if from == "" {
		from = opts.User
	}
	a, err := mail.ParseAddress(from)
	if err != nil {
		return nil, errors.Wrapf(err, "parse from address %q", from)
	}

	log.Infof("Mail address: %v", a.String())

	tc, err := tlsConfig(opts.Host, opts.CertPath, opts.SkipVerify)
	if err != nil {
		return nil, err
	}

	var ss []strategy
	for _, e := range endpoints(opts.Port) {
		u := url.URL{
			Scheme: e.scheme(),
			User:   url.UserPassword(opts.User, opts.Password),
			Host:   net.JoinHostPort(opts.Host, strconv.Itoa(e.port)),
		}
		smtp, err := goemail.NewSMTP(u.String(), tc)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("%v://%v:%v", e.scheme(), opts.Host, e.port)
		log.Infof("Mail strategy: %v", name)
		ss = append(ss, strategy{name: name, sender: smtp})
	}

	c := &client{
		strategies:  ss,
		mailName:    a.Name,
		mailAddress: a.Address,
		timeout:     opts.Timeout,
	}
	if opts.RateLimit > 0 {
		c.limiter = newLimiter(opts.RateLimit, defaultRateLimitPeriod)
	}

	return c, nil
}
