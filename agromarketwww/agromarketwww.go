// Copyright (c) 2017-2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	v1 "github.com/agromarket/agromarket/agromarketwww/api/v1"
	"github.com/agromarket/agromarket/firebase"
	"github.com/agromarket/agromarket/functions"
	"github.com/agromarket/agromarket/gate"
	"github.com/agromarket/agromarket/mail"
	"github.com/agromarket/agromarket/notify"
	"github.com/agromarket/agromarket/payment"
	"github.com/agromarket/agromarket/payment/stripe"
	"github.com/agromarket/agromarket/resetpw"
	resetleveldb "github.com/agromarket/agromarket/resetpw/leveldb"
	resetmysql "github.com/agromarket/agromarket/resetpw/mysql"
	"github.com/agromarket/agromarket/sessions"
	sessleveldb "github.com/agromarket/agromarket/sessions/leveldb"
	sessmysql "github.com/agromarket/agromarket/sessions/mysql"
	"github.com/agromarket/agromarket/sessions/redisdb"
	"github.com/agromarket/agromarket/util"
	"github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	gsessions "github.com/gorilla/sessions"
	"github.com/robfig/cron"
)

const (
	sessionKeyLength = 32 // In bytes
	sessionKeyFile   = "session.key"
)

// userDirectory is the user administration backend. *firebase.Auth
// satisfies it.
type userDirectory interface {
	Users(ctx context.Context) ([]firebase.User, error)
	UpdateUser(ctx context.Context, uid string, uu firebase.UserUpdate) error
	DeleteUser(ctx context.Context, uid string) error
	SetRole(ctx context.Context, uid, role string) error
}

// agromarketwww is the AgroMarket web server context.
type agromarketwww struct {
	cfg       *config
	router    *mux.Router
	protected *mux.Router // CSRF protected subrouter

	sessions *sessions.Manager
	gate     *gate.Gate
	reset    *resetpw.Flow
	relay    *notify.Relay
	payments *payment.Bridge
	users    userDirectory // Nil when firebase is disabled

	// Expired sessions and reset codes are removed by the cron.
	cron          *cron.Cron
	sessionsClean sessions.Cleaner
	resetClean    resetpw.Cleaner

	closers []io.Closer
}

// session returns the session of the request. The session that the sessions
// middleware placed in the request context is preferred.
func (p *agromarketwww) session(r *http.Request) *sessions.Session {
	if s, ok := sessions.FromContext(r.Context()); ok {
		return s
	}
	return p.sessions.Load(r)
}

// saveSession persists the session. A failure is logged; the request has
// already been handled at this point.
func (p *agromarketwww) saveSession(w http.ResponseWriter, r *http.Request, s *sessions.Session) {
	err := p.sessions.Save(w, r, s)
	if err != nil {
		log.Errorf("%v saveSession: %v", util.RemoteAddr(r), err)
	}
}

// flashRedirect adds a flash message to the session and redirects the
// browser.
func (p *agromarketwww) flashRedirect(w http.ResponseWriter, r *http.Request, s *sessions.Session, category, msg, url string) {
	if msg != "" {
		s.AddFlash(category, msg)
	}
	p.saveSession(w, r, s)
	http.Redirect(w, r, url, http.StatusFound)
}

// close releases the backends in the reverse order they were opened in.
func (p *agromarketwww) close() {
	if p.cron != nil {
		p.cron.Stop()
	}
	for i := len(p.closers) - 1; i >= 0; i-- {
		err := p.closers[i].Close()
		if err != nil {
			log.Errorf("close: %v", err)
		}
	}
}

// openMySQL opens the MySQL connection that is shared by the session store
// and the reset code mirror.
func openMySQL(cfg *config) (*sql.DB, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.MySQLUser
	mc.Passwd = cfg.MySQLPass
	mc.Net = "tcp"
	mc.Addr = cfg.MySQLHost
	mc.DBName = cfg.MySQLDB
	mc.ParseTime = true

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %v", err)
	}
	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql %v: %v", cfg.MySQLHost, err)
	}

	log.Infof("MySQL host: %v", cfg.MySQLHost)

	return db, nil
}

// setupSessions creates the session store that was selected in the config.
func (p *agromarketwww) setupSessions(ctx context.Context, db func() (*sql.DB, error)) error {
	key, created, err := util.LoadKeyFile(filepath.Join(p.cfg.DataDir,
		sessionKeyFile), sessionKeyLength)
	if err != nil {
		return fmt.Errorf("session key: %v", err)
	}
	if created {
		log.Infof("Session key created")
	}

	log.Infof("Session database: %v", p.cfg.SessionDB)

	opts := sessions.NewOptions(p.cfg.secureCookie)
	var store gsessions.Store
	switch p.cfg.SessionDB {
	case sessionDBLevel:
		ldb, err := sessleveldb.New(p.cfg.DataDir, sessions.MaxAge)
		if err != nil {
			return err
		}
		p.closers = append(p.closers, ldb)
		p.sessionsClean = ldb
		store = sessions.NewSessionStore(ldb, opts, key)

	case sessionDBMySQL:
		sdb, err := db()
		if err != nil {
			return err
		}
		mdb, err := sessmysql.New(sdb, sessions.MaxAge, nil)
		if err != nil {
			return err
		}
		p.sessionsClean = mdb
		store = sessions.NewSessionStore(mdb, opts, key)

	case sessionDBRedis:
		rdb, err := redisdb.New(ctx, sessions.MaxAge, redisdb.Opts{
			Addr:     p.cfg.RedisAddr,
			Password: p.cfg.RedisPass,
			DB:       p.cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		store = sessions.NewSessionStore(rdb, opts, key)

	case sessionDBCookie:
		store = sessions.NewCookieStore(opts, key)

	default:
		return fmt.Errorf("invalid sessiondb '%v'", p.cfg.SessionDB)
	}

	p.sessions = sessions.NewManager(store)
	p.gate = gate.New(p.sessions, v1.RouteLoginPage)

	return nil
}

// setupResetDB opens the reset code mirror that was selected in the config.
func (p *agromarketwww) setupResetDB(db func() (*sql.DB, error), app *firebase.App) (resetpw.DB, error) {
	log.Infof("Reset code database: %v", p.cfg.ResetDB)

	switch p.cfg.ResetDB {
	case resetDBLevel:
		ldb, err := resetleveldb.New(p.cfg.DataDir)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, ldb)
		p.resetClean = ldb
		return ldb, nil

	case resetDBMySQL:
		sdb, err := db()
		if err != nil {
			return nil, err
		}
		mdb, err := resetmysql.New(sdb, nil)
		if err != nil {
			return nil, err
		}
		p.resetClean = mdb
		return mdb, nil

	case resetDBFirestore:
		if app == nil {
			return nil, nil
		}
		cs := app.CodeStore()
		p.resetClean = cs
		return cs, nil

	case resetDBNone:
		return nil, nil
	}

	return nil, fmt.Errorf("invalid resetdb '%v'", p.cfg.ResetDB)
}

// newAgromarketwww connects to the backends that were selected in the config
// and returns the server context. The router is not set up.
func newAgromarketwww(ctx context.Context, cfg *config) (*agromarketwww, error) {
	p := &agromarketwww{
		cfg:  cfg,
		cron: cron.New(),
	}

	// The MySQL connection is opened on first use and shared.
	var sdb *sql.DB
	db := func() (*sql.DB, error) {
		if sdb != nil {
			return sdb, nil
		}
		var err error
		sdb, err = openMySQL(cfg)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, sdb)
		return sdb, nil
	}

	err := p.setupSessions(ctx, db)
	if err != nil {
		p.close()
		return nil, err
	}

	// Firebase
	var app *firebase.App
	if !cfg.DisableFirebase {
		app, err = firebase.New(ctx, firebase.Opts{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentials,
		})
		if err != nil {
			// The marketplace keeps running without the admin
			// features.
			log.Warnf("Firebase unavailable: %v", err)
			app = nil
		} else {
			p.closers = append(p.closers, app)
		}
	}

	// Cloud functions
	fopts := functions.Opts{
		Project: cfg.FirebaseProjectID,
		Region:  cfg.FunctionsRegion,
		Token:   cfg.FunctionsToken,
		Timeout: cfg.FunctionsTimeout,
		BaseURL: cfg.FunctionsURL,
	}
	if cfg.DisableFunctions {
		fopts = functions.Opts{}
	}
	fc := functions.New(fopts)

	// SMTP relay
	mailer, err := mail.New(mail.Opts{
		Host:       cfg.MailHost,
		Port:       cfg.MailPort,
		User:       cfg.MailUser,
		Password:   cfg.MailPass,
		From:       cfg.MailFrom,
		CertPath:   cfg.MailCert,
		SkipVerify: cfg.MailSkipVerify,
		RateLimit:  cfg.MailRateLimit,
	})
	if err != nil {
		p.close()
		return nil, fmt.Errorf("new mail client: %v", err)
	}

	p.relay = notify.New(notify.Opts{
		SupportAddress: cfg.SupportAddress,
		AdminAddresses: cfg.AdminAddresses,
	}, notify.FunctionStrategy(fc, cfg.FunctionsTimeout),
		notify.MailStrategy(mailer))

	// Password reset
	rdb, err := p.setupResetDB(db, app)
	if err != nil {
		p.close()
		return nil, err
	}
	rcfg := resetpw.Config{
		DB:       rdb,
		Notifier: p.relay,
		Debug:    cfg.debug,
	}
	if app != nil {
		fa := app.Auth()
		rcfg.Users = fa
		rcfg.Updaters = append(rcfg.Updaters, fa)
		p.users = fa
	}
	rcfg.Updaters = append(rcfg.Updaters, resetpw.NewFunctionUpdater(fc))
	p.reset = resetpw.New(rcfg)

	// Payments
	var proc payment.Processor
	if cfg.StripeSecretKey != "" {
		proc, err = stripe.New(cfg.StripeSecretKey)
		if err != nil {
			p.close()
			return nil, fmt.Errorf("new stripe processor: %v", err)
		}
	} else {
		log.Warnf("Stripe secret key not set; payments are disabled")
	}
	p.payments = payment.New(proc)

	return p, nil
}
