// Copyright (c) 2017-2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/agromarket/agromarket/firebase"
	"github.com/agromarket/agromarket/notify"
	"github.com/agromarket/agromarket/payment"
	"github.com/agromarket/agromarket/resetpw"
	"github.com/agromarket/agromarket/sessions"
	"github.com/robfig/cron"
)

// testStrategy is a notification strategy that records the notifications it
// delivers.
type testStrategy struct {
	sync.Mutex
	sent []*notify.Notification
	err  error
}

func (s *testStrategy) Name() string {
	return "test"
}

func (s *testStrategy) Deliver(ctx context.Context, n *notify.Notification) error {
	s.Lock()
	defer s.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *testStrategy) last() *notify.Notification {
	s.Lock()
	defer s.Unlock()
	if len(s.sent) == 0 {
		return nil
	}
	return s.sent[len(s.sent)-1]
}

// testNotifier records the reset codes it is asked to deliver.
type testNotifier struct {
	sync.Mutex
	codes map[string]string
	err   error
}

func (n *testNotifier) SendResetCode(ctx context.Context, email, code string) error {
	n.Lock()
	defer n.Unlock()
	if n.err != nil {
		return n.err
	}
	n.codes[email] = code
	return nil
}

func (n *testNotifier) code(email string) string {
	n.Lock()
	defer n.Unlock()
	return n.codes[email]
}

// testUpdater records the passwords it changes.
type testUpdater struct {
	sync.Mutex
	passwords map[string]string
	err       error
}

func (u *testUpdater) UpdatePassword(ctx context.Context, email, password string) error {
	u.Lock()
	defer u.Unlock()
	if u.err != nil {
		return u.err
	}
	u.passwords[email] = password
	return nil
}

// testDirectory is an in memory user directory.
type testDirectory struct {
	sync.Mutex
	users map[string]firebase.User
	err   error
}

func (d *testDirectory) Users(ctx context.Context) ([]firebase.User, error) {
	d.Lock()
	defer d.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	u := make([]firebase.User, 0, len(d.users))
	for _, v := range d.users {
		u = append(u, v)
	}
	return u, nil
}

func (d *testDirectory) UpdateUser(ctx context.Context, uid string, uu firebase.UserUpdate) error {
	d.Lock()
	defer d.Unlock()
	u, ok := d.users[uid]
	if !ok {
		return firebase.ErrUserNotFound
	}
	if uu.DisplayName != "" {
		u.DisplayName = uu.DisplayName
	}
	if uu.Email != "" {
		u.Email = uu.Email
	}
	if uu.Phone != "" {
		u.Phone = uu.Phone
	}
	d.users[uid] = u
	return nil
}

func (d *testDirectory) DeleteUser(ctx context.Context, uid string) error {
	d.Lock()
	defer d.Unlock()
	if _, ok := d.users[uid]; !ok {
		return firebase.ErrUserNotFound
	}
	delete(d.users, uid)
	return nil
}

func (d *testDirectory) SetRole(ctx context.Context, uid, role string) error {
	d.Lock()
	defer d.Unlock()
	u, ok := d.users[uid]
	if !ok {
		return firebase.ErrUserNotFound
	}
	u.Role = role
	d.users[uid] = u
	return nil
}

// testProcessor is an in memory payment processor.
type testProcessor struct {
	sync.Mutex
	intents map[string]*payment.Intent
	refunds map[string]*payment.Refund
	err     error
}

func (p *testProcessor) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*payment.Intent, error) {
	p.Lock()
	defer p.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	pi := &payment.Intent{
		ID:           "pi_new",
		ClientSecret: "pi_new_secret",
		Amount:       amount,
		Currency:     currency,
		Status:       "requires_payment_method",
	}
	p.intents[pi.ID] = pi
	return pi, nil
}

func (p *testProcessor) Intent(ctx context.Context, id string) (*payment.Intent, error) {
	p.Lock()
	defer p.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	pi, ok := p.intents[id]
	if !ok {
		return nil, errors.New("no such payment intent")
	}
	c := *pi
	return &c, nil
}

func (p *testProcessor) CreateRefund(ctx context.Context, r payment.RefundRequest) (*payment.Refund, error) {
	p.Lock()
	defer p.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	ref := &payment.Refund{
		ID:       "re_1",
		Status:   "pending",
		Amount:   r.Amount,
		Currency: "mxn",
		Reason:   r.Reason,
		Created:  1700000000,
	}
	p.refunds[ref.ID] = ref
	return ref, nil
}

func (p *testProcessor) Refund(ctx context.Context, id string) (*payment.Refund, error) {
	p.Lock()
	defer p.Unlock()
	r, ok := p.refunds[id]
	if !ok {
		return nil, errors.New("no such refund")
	}
	return r, nil
}

// testServer is an agromarketwww instance with in memory backends.
type testServer struct {
	*agromarketwww

	strategy  *testStrategy
	notifier  *testNotifier
	updater   *testUpdater
	processor *testProcessor
	directory *testDirectory
}

// newTestServer returns a fully routed server that keeps its sessions in
// cookies and talks to in memory backends.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	cfg := &config{
		HomeDir:         dir,
		DataDir:         filepath.Join(dir, "data"),
		UploadDir:       filepath.Join(dir, "uploads"),
		APKFile:         filepath.Join(dir, defaultAPKFilename),
		Profile:         profileDevelopment,
		SessionDB:       sessionDBCookie,
		ResetDB:         resetDBNone,
		SupportAddress:  defaultSupportAddress,
		CleanupSchedule: defaultCleanupSchedule,
		Version:         appVersion,
		debug:           true,
	}
	for _, d := range []string{cfg.DataDir, cfg.UploadDir} {
		if err := os.MkdirAll(d, 0700); err != nil {
			t.Fatal(err)
		}
	}

	ts := &testServer{
		agromarketwww: &agromarketwww{
			cfg:  cfg,
			cron: cron.New(),
		},
		strategy: &testStrategy{},
		notifier: &testNotifier{codes: make(map[string]string)},
		updater:  &testUpdater{passwords: make(map[string]string)},
		processor: &testProcessor{
			intents: map[string]*payment.Intent{
				"pi_ok": {
					ID:       "pi_ok",
					Amount:   25000,
					Currency: "mxn",
					Status:   payment.StatusSucceeded,
					Created:  1700000000,
					ChargeID: "ch_ok",
					Card: &payment.Card{
						Brand:    "visa",
						Last4:    "4242",
						ExpMonth: 12,
						ExpYear:  2030,
					},
				},
			},
			refunds: make(map[string]*payment.Refund),
		},
		directory: &testDirectory{
			users: map[string]firebase.User{
				"u1": {
					UID:         "u1",
					Email:       "ana@example.com",
					DisplayName: "Ana",
					Role:        "comprador",
				},
			},
		},
	}

	err := ts.setupSessions(context.Background(), nil)
	if err != nil {
		t.Fatalf("setupSessions: %v", err)
	}
	ts.relay = notify.New(notify.Opts{
		SupportAddress: cfg.SupportAddress,
		AdminAddresses: []string{"admin@agromarket.test"},
	}, ts.strategy)
	ts.reset = resetpw.New(resetpw.Config{
		Updaters: []resetpw.PasswordUpdater{ts.updater},
		Notifier: ts.notifier,
		Debug:    cfg.debug,
	})
	ts.payments = payment.New(ts.processor)
	ts.users = ts.directory

	err = ts.setupRouter()
	if err != nil {
		t.Fatalf("setupRouter: %v", err)
	}
	ts.setupRoutes()

	t.Cleanup(ts.close)

	return ts
}

// login returns the cookies of a session that carries the identity.
func (ts *testServer) login(t *testing.T, id sessions.Identity) []*http.Cookie {
	t.Helper()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	s := ts.sessions.Load(r)
	s.SetIdentity(id)
	w := httptest.NewRecorder()
	err := ts.sessions.Save(w, r, s)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	return w.Result().Cookies()
}

// buyer, seller and admin are the identities used by the tests.
var (
	buyer = sessions.Identity{
		UserID:      "buyer1",
		Email:       "comprador@example.com",
		DisplayName: "Comprador",
		Roles:       []sessions.Role{sessions.RoleBuyer},
		ActiveRole:  sessions.RoleBuyer,
	}
	seller = sessions.Identity{
		UserID:      "seller1",
		Email:       "vendedor@example.com",
		DisplayName: "Vendedor",
		Roles:       []sessions.Role{sessions.RoleBuyer, sessions.RoleSeller},
		ActiveRole:  sessions.RoleSeller,
	}
	admin = sessions.Identity{
		UserID:      "admin1",
		Email:       "admin@example.com",
		DisplayName: "Admin",
		Roles:       []sessions.Role{sessions.RoleAdmin},
		ActiveRole:  sessions.RoleAdmin,
	}
)

// latestCookies returns the cookies of a response, keeping the last cookie
// of every name.
func latestCookies(w *httptest.ResponseRecorder) []*http.Cookie {
	var (
		order []string
		m     = make(map[string]*http.Cookie)
	)
	for _, c := range w.Result().Cookies() {
		if _, ok := m[c.Name]; !ok {
			order = append(order, c.Name)
		}
		m[c.Name] = c
	}
	cs := make([]*http.Cookie, 0, len(order))
	for _, n := range order {
		cs = append(cs, m[n])
	}
	return cs
}

// newJSONRequest returns a request with the JSON encoded body.
func newJSONRequest(t *testing.T, method, route string, body interface{}, cookies []*http.Cookie) *http.Request {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	}
	r := httptest.NewRequest(method, route, rdr)
	r.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

// do sends the request through the router.
func (ts *testServer) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, r)
	return w
}

// serve calls a handler directly with the session loaded into the request
// context. It bypasses the CSRF protection of the browser forms.
func (ts *testServer) serve(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.sessions.Middleware(h).ServeHTTP(w, r)
	return w
}

// decodeReply decodes the JSON body of a response.
func decodeReply(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	err := json.Unmarshal(w.Body.Bytes(), v)
	if err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}
