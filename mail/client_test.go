// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dajohi/goemail"
	"github.com/google/go-cmp/cmp"
)

// testSender records the messages it is asked to send.
type testSender struct {
	sync.Mutex
	err   error
	delay time.Duration
	sent  int
}

func (s *testSender) Send(msg *goemail.Message) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.Lock()
	defer s.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent++
	return nil
}

func (s *testSender) count() int {
	s.Lock()
	defer s.Unlock()
	return s.sent
}

func newTestClient(timeout time.Duration, senders ...*testSender) *client {
	c := &client{
		mailName:    "AgroMarket",
		mailAddress: "noreply@agromarket.mx",
		timeout:     timeout,
	}
	for i, s := range senders {
		c.strategies = append(c.strategies, strategy{
			name:   string(rune('a' + i)),
			sender: s,
		})
	}
	return c
}

func TestEndpoints(t *testing.T) {
	var tests = []struct {
		port int
		want []endpoint
	}{
		{587, []endpoint{{587, false}, {465, true}}},
		{465, []endpoint{{465, true}, {587, false}}},
		{25, []endpoint{{25, false}, {587, false}, {465, true}}},
		{2525, []endpoint{{2525, false}, {587, false}, {465, true}}},
	}
	for _, test := range tests {
		got := endpoints(test.port)
		diff := cmp.Diff(test.want, got, cmp.AllowUnexported(endpoint{}))
		if diff != "" {
			t.Errorf("port %v: %v", test.port, diff)
		}
	}
}

func TestNewDisabled(t *testing.T) {
	c, err := New(Opts{Host: "smtp.example.com", User: "u"})
	if err != nil {
		t.Fatal(err)
	}
	if c.IsEnabled() {
		t.Fatal("client without password is enabled")
	}
	err = c.Send(context.Background(), Message{To: []string{"a@b.com"}})
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("got %v, want %v", err, ErrDisabled)
	}
}

func TestNew(t *testing.T) {
	c, err := New(Opts{
		Host:     "smtp.example.com",
		Port:     465,
		User:     "user@example.com",
		Password: "p@ss:word",
		From:     "AgroMarket <noreply@agromarket.mx>",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !c.IsEnabled() {
		t.Fatal("client is disabled")
	}
	if c.mailName != "AgroMarket" || c.mailAddress != "noreply@agromarket.mx" {
		t.Fatalf("from: %q %q", c.mailName, c.mailAddress)
	}
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.name)
	}
	want := []string{
		"smtps://smtp.example.com:465",
		"smtp://smtp.example.com:587",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatal(diff)
	}
	if c.timeout != DefaultTimeout {
		t.Fatalf("timeout %v", c.timeout)
	}
}

func TestSendFallback(t *testing.T) {
	first := &testSender{err: errors.New("connection refused")}
	second := &testSender{}
	third := &testSender{}
	c := newTestClient(time.Second, first, second, third)

	err := c.Send(context.Background(), Message{
		To:      []string{"comprador@example.com"},
		Subject: "Hola",
		HTML:    "<p>Hola</p>",
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.count() != 1 {
		t.Fatalf("second strategy sent %v", second.count())
	}
	if third.count() != 0 {
		t.Fatalf("third strategy was used")
	}
}

func TestSendAllFail(t *testing.T) {
	c := newTestClient(time.Second,
		&testSender{err: errors.New("one")},
		&testSender{err: errors.New("two")})

	err := c.Send(context.Background(), Message{
		To: []string{"comprador@example.com"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "b: two" {
		t.Fatalf("got %v", err)
	}
}

func TestSendSharedDeadline(t *testing.T) {
	slow := &testSender{delay: time.Second}
	next := &testSender{}
	c := newTestClient(50*time.Millisecond, slow, next)

	start := time.Now()
	err := c.Send(context.Background(), Message{
		To: []string{"comprador@example.com"},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("send did not honor the deadline")
	}
	if next.count() != 0 {
		t.Fatal("strategy used after the deadline")
	}
}

func TestSendNoRecipients(t *testing.T) {
	s := &testSender{}
	c := newTestClient(time.Second, s)
	if err := c.Send(context.Background(), Message{}); err != nil {
		t.Fatal(err)
	}
	if s.count() != 0 {
		t.Fatal("message sent without recipients")
	}
}

func TestSendRateLimit(t *testing.T) {
	s := &testSender{}
	c := newTestClient(time.Second, s)
	c.limiter = newLimiter(2, time.Hour)

	m := Message{To: []string{"Vendedor@example.com"}}
	for i := 0; i < 4; i++ {
		if err := c.Send(context.Background(), m); err != nil {
			t.Fatal(err)
		}
	}

	// Two messages and a single warning
	if s.count() != 3 {
		t.Fatalf("sent %v, want 3", s.count())
	}
}

func TestLimiterFilter(t *testing.T) {
	l := newLimiter(1, time.Hour)

	valid, warn := l.filter([]string{"a@x.com", "b@x.com"})
	if len(valid) != 2 || len(warn) != 0 {
		t.Fatalf("first: %v %v", valid, warn)
	}
	valid, warn = l.filter([]string{"A@x.com", "c@x.com"})
	if diff := cmp.Diff([]string{"c@x.com"}, valid); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff([]string{"A@x.com"}, warn); diff != "" {
		t.Fatal(diff)
	}
	valid, warn = l.filter([]string{"a@x.com"})
	if len(valid) != 0 || len(warn) != 0 {
		t.Fatalf("warned twice: %v %v", valid, warn)
	}
}

func TestFilterTimestamps(t *testing.T) {
	now := time.Now()
	in := []int64{
		now.Add(-2 * time.Hour).Unix(),
		now.Add(-30 * time.Minute).Unix(),
		now.Unix(),
	}
	got := filterTimestamps(in, time.Hour)
	if diff := cmp.Diff(in[1:], got); diff != "" {
		t.Fatal(diff)
	}
}
