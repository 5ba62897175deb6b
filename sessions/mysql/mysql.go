// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agromarket/agromarket/sessions"
	"github.com/pkg/errors"
)

// sessionsTable holds one row per browser session. The id is the
// securecookie encoded session ID, which fits in 128 characters for every
// supported key size. The encoded values of a marketplace session (identity,
// roles, flashes and the reset flow keys) stay well below the 64 KiB of a
// BLOB.
//
// expires_at is the Unix time after which the row is ignored by Get and
// deleted by Cleanup.
const sessionsTable = `
  id              CHAR(128) PRIMARY KEY,
  encoded_session BLOB NOT NULL,
  created_at      BIGINT NOT NULL,
  expires_at      BIGINT NOT NULL,
  INDEX (expires_at)
`

var (
	_ sessions.DB      = (*mysql)(nil)
	_ sessions.Cleaner = (*mysql)(nil)
)

// mysql keeps the marketplace sessions in a MySQL table.
type mysql struct {
	db     *sql.DB
	maxAge int64 // In seconds
	opts   *Opts

	// Queries for the configured table.
	qInsert  string
	qDelete  string
	qSelect  string
	qCleanup string
}

// Opts contains the optional settings of the sessions table.
type Opts struct {
	// TableName defaults to agromarket_sessions.
	TableName string

	// OpTimeout bounds every database operation. It defaults to ten
	// seconds.
	OpTimeout time.Duration
}

const (
	defaultTableName = "agromarket_sessions"
	defaultOpTimeout = 10 * time.Second
)

// New returns the MySQL session database. The table is created when missing
// and the sessions that expired while the server was down are removed.
func New(db *sql.DB, maxAge int64, opts *Opts) (*mysql, error) {
	if maxAge <= 0 {
		return nil, errors.Errorf("invalid session max age %v", maxAge)
	}
	o := Opts{}
	if opts != nil {
		o = *opts
	}
	if o.TableName == "" {
		o.TableName = defaultTableName
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = defaultOpTimeout
	}

	m := newMySQL(db, maxAge, &o)
	err := m.createTable()
	if err != nil {
		return nil, err
	}
	n, err := m.Cleanup()
	if err != nil {
		return nil, err
	}
	if n > 0 {
		log.Infof("Removed %v sessions that expired while offline", n)
	}

	return m, nil
}

func newMySQL(db *sql.DB, maxAge int64, opts *Opts) *mysql {
	t := opts.TableName
	return &mysql{
		db:     db,
		maxAge: maxAge,
		opts:   opts,
		qInsert: fmt.Sprintf("INSERT INTO %v "+
			"(id, encoded_session, created_at, expires_at) "+
			"VALUES (?, ?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE encoded_session = VALUES(encoded_session)",
			t),
		qDelete: fmt.Sprintf("DELETE FROM %v WHERE id = ?", t),
		qSelect: fmt.Sprintf("SELECT encoded_session, created_at FROM %v "+
			"WHERE id = ? AND expires_at > ?", t),
		qCleanup: fmt.Sprintf("DELETE FROM %v WHERE expires_at <= ?", t),
	}
}

// Save stores the encoded session. A session keeps the expiry of its first
// save; later saves only replace the values.
//
// This function satisfies the sessions.DB interface.
func (m *mysql) Save(sessionID string, s sessions.EncodedSession) error {
	log.Tracef("Save %v", sessionID)

	createdAt := s.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}

	ctx, cancel := m.opContext()
	defer cancel()

	_, err := m.db.ExecContext(ctx, m.qInsert, sessionID, []byte(s.Values),
		createdAt, createdAt+m.maxAge)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Del removes a session. Removing a missing session is not an error.
//
// This function satisfies the sessions.DB interface.
func (m *mysql) Del(sessionID string) error {
	log.Tracef("Del %v", sessionID)

	ctx, cancel := m.opContext()
	defer cancel()

	_, err := m.db.ExecContext(ctx, m.qDelete, sessionID)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Get returns an unexpired session. sessions.ErrNotFound is returned for
// missing and expired sessions alike.
//
// This function satisfies the sessions.DB interface.
func (m *mysql) Get(sessionID string) (*sessions.EncodedSession, error) {
	log.Tracef("Get %v", sessionID)

	ctx, cancel := m.opContext()
	defer cancel()

	var es sessions.EncodedSession
	var values []byte
	err := m.db.QueryRowContext(ctx, m.qSelect, sessionID, time.Now().Unix()).
		Scan(&values, &es.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, sessions.ErrNotFound
	case err != nil:
		return nil, errors.WithStack(err)
	}
	es.Values = string(values)

	return &es, nil
}

// Cleanup deletes the expired sessions.
//
// This function satisfies the sessions.Cleaner interface.
func (m *mysql) Cleanup() (int64, error) {
	ctx, cancel := m.opContext()
	defer cancel()

	r, err := m.db.ExecContext(ctx, m.qCleanup, time.Now().Unix())
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	log.Debugf("Cleanup: %v expired sessions deleted", n)

	return n, nil
}

func (m *mysql) createTable() error {
	ctx, cancel := m.opContext()
	defer cancel()

	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %v (%v)",
		m.opts.TableName, sessionsTable)
	_, err := m.db.ExecContext(ctx, q)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (m *mysql) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.opts.OpTimeout)
}
