// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agromarket/agromarket/resetpw"
	"github.com/pkg/errors"
)

// codesTable is the table for the password reset codes. The code_hash
// column holds the hex encoded SHA256 digest of the code.
const codesTable = `
  code_hash  CHAR(64) PRIMARY KEY,
  email      VARCHAR(254) NOT NULL,
  expires_at BIGINT NOT NULL,
  created_at BIGINT NOT NULL,
  used       BOOLEAN NOT NULL DEFAULT FALSE,
  verified   BOOLEAN NOT NULL DEFAULT FALSE,
  INDEX (email)
`

var (
	_ resetpw.DB      = (*mysql)(nil)
	_ resetpw.Cleaner = (*mysql)(nil)
)

// mysql implements the resetpw.DB interface.
type mysql struct {
	db   *sql.DB
	opts *Opts
}

// Opts contains configurable options for the reset codes database.
type Opts struct {
	// TableName is the table name for the reset codes table.
	TableName string

	// OpTimeout is the timeout for a single database operation.
	OpTimeout time.Duration
}

const (
	defaultTableName = "password_reset_codes"
	defaultOpTimeout = 10 * time.Second
)

// New returns a new mysql context that implements the resetpw.DB interface.
// The table is created if it does not exist yet.
func New(db *sql.DB, opts *Opts) (*mysql, error) {
	if opts == nil {
		opts = &Opts{}
	}
	if opts.TableName == "" {
		opts.TableName = defaultTableName
	}
	if opts.OpTimeout == 0 {
		opts.OpTimeout = defaultOpTimeout
	}
	m := mysql{
		db:   db,
		opts: opts,
	}

	ctx, cancel := m.ctxForOp(context.Background())
	defer cancel()

	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %v (%v)",
		m.opts.TableName, codesTable)
	_, err := m.db.ExecContext(ctx, q)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &m, nil
}

// Save saves a new reset code.
//
// Save satisfies the resetpw.DB interface.
func (m *mysql) Save(ctx context.Context, c resetpw.Code) error {
	log.Tracef("Save %v", c.Email)

	ctx, cancel := m.ctxForOp(ctx)
	defer cancel()

	q := `INSERT INTO %v
    (code_hash, email, expires_at, created_at, used, verified)
    VALUES (?, ?, ?, ?, ?, ?)`

	q = fmt.Sprintf(q, m.opts.TableName)
	_, err := m.db.ExecContext(ctx, q, c.CodeHash, c.Email, c.ExpiresAt,
		c.CreatedAt, c.Used, c.Verified)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Get returns the reset code for the hash.
//
// Get satisfies the resetpw.DB interface.
func (m *mysql) Get(ctx context.Context, codeHash string) (*resetpw.Code, error) {
	ctx, cancel := m.ctxForOp(ctx)
	defer cancel()

	q := `SELECT code_hash, email, expires_at, created_at, used, verified
    FROM %v WHERE code_hash = ?`

	q = fmt.Sprintf(q, m.opts.TableName)

	var c resetpw.Code
	err := m.db.QueryRowContext(ctx, q, codeHash).Scan(&c.CodeHash,
		&c.Email, &c.ExpiresAt, &c.CreatedAt, &c.Used, &c.Verified)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, resetpw.ErrNotFound
	case err != nil:
		return nil, errors.WithStack(err)
	}

	return &c, nil
}

// SetVerified marks the code verified.
//
// SetVerified satisfies the resetpw.DB interface.
func (m *mysql) SetVerified(ctx context.Context, codeHash string) error {
	return m.setFlag(ctx, "verified", codeHash)
}

// SetUsed marks the code used.
//
// SetUsed satisfies the resetpw.DB interface.
func (m *mysql) SetUsed(ctx context.Context, codeHash string) error {
	return m.setFlag(ctx, "used", codeHash)
}

func (m *mysql) setFlag(ctx context.Context, column, codeHash string) error {
	ctx, cancel := m.ctxForOp(ctx)
	defer cancel()

	q := fmt.Sprintf("UPDATE %v SET %v = TRUE WHERE code_hash = ?",
		m.opts.TableName, column)
	_, err := m.db.ExecContext(ctx, q, codeHash)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Cleanup deletes the codes that are expired or used.
//
// Cleanup satisfies the resetpw.Cleaner interface.
func (m *mysql) Cleanup(ctx context.Context) (int64, error) {
	ctx, cancel := m.ctxForOp(ctx)
	defer cancel()

	q := fmt.Sprintf("DELETE FROM %v WHERE expires_at <= ? OR used = TRUE",
		m.opts.TableName)
	r, err := m.db.ExecContext(ctx, q, time.Now().Unix())
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, err
	}

	log.Debugf("Deleted %v reset codes from the database", n)

	return n, nil
}

// ctxForOp returns a context and cancel function for a single database
// operation.
func (m *mysql) ctxForOp(ctx context.Context) (context.Context, func()) {
	return context.WithTimeout(ctx, m.opts.OpTimeout)
}
