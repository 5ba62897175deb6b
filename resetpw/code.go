// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package resetpw

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"time"

	"github.com/agromarket/agromarket/util"
)

const (
	// CodeLength is the number of digits of a reset code.
	CodeLength = 6

	// CodeLifetime is the time a reset code is valid for.
	CodeLifetime = 15 * time.Minute
)

var (
	// ErrNotFound is returned by a DB when a reset code does not exist.
	ErrNotFound = errors.New("reset code not found")

	regexpCode = regexp.MustCompile(`^[0-9]{6}$`)
)

// Code is a password reset code record. The plaintext code is never
// stored. Records are keyed by the hash of the code.
type Code struct {
	CodeHash  string `json:"code_hash"`
	Email     string `json:"email"`
	ExpiresAt int64  `json:"expires_at"` // Unix timestamp
	CreatedAt int64  `json:"created_at"` // Unix timestamp
	Used      bool   `json:"used"`
	Verified  bool   `json:"verified"`
}

// Expired returns whether the code has expired at the given time.
func (c *Code) Expired(now time.Time) bool {
	return now.Unix() >= c.ExpiresAt
}

// DB is the external store that mirrors the reset codes that are issued.
// Writes to it are best effort.
type DB interface {
	// Save saves a new reset code.
	Save(ctx context.Context, c Code) error

	// Get returns the reset code for the hash. ErrNotFound MUST be
	// returned when the code does not exist.
	Get(ctx context.Context, codeHash string) (*Code, error)

	// SetVerified marks the code verified.
	SetVerified(ctx context.Context, codeHash string) error

	// SetUsed marks the code used. A used code is never accepted again.
	SetUsed(ctx context.Context, codeHash string) error
}

// Cleaner is implemented by databases that are able to delete the codes
// that are expired or used.
type Cleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// NewCode returns a new random six digit reset code.
func NewCode() (string, error) {
	return util.RandomDigits(CodeLength)
}

// HashCode returns the hex encoded SHA256 digest of the code.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// validCode returns whether the string has the format of a reset code.
func validCode(code string) bool {
	return regexpCode.MatchString(code)
}
