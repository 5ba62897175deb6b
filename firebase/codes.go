// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package firebase

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/agromarket/agromarket/resetpw"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// codesCollection is the Firestore collection of the reset codes. The
// document ID is the code hash.
const codesCollection = "password_reset_codes"

var (
	_ resetpw.DB      = (*CodeStore)(nil)
	_ resetpw.Cleaner = (*CodeStore)(nil)
)

// codeDoc is the Firestore document of a reset code.
type codeDoc struct {
	Email     string    `firestore:"email"`
	CodeHash  string    `firestore:"code_hash"`
	ExpiresAt time.Time `firestore:"expires_at"`
	CreatedAt time.Time `firestore:"created_at"`
	Used      bool      `firestore:"used"`
	Verified  bool      `firestore:"verified"`
}

func convertCodeToDoc(c resetpw.Code) codeDoc {
	return codeDoc{
		Email:     c.Email,
		CodeHash:  c.CodeHash,
		ExpiresAt: time.Unix(c.ExpiresAt, 0).UTC(),
		CreatedAt: time.Unix(c.CreatedAt, 0).UTC(),
		Used:      c.Used,
		Verified:  c.Verified,
	}
}

func convertCodeFromDoc(d codeDoc) resetpw.Code {
	return resetpw.Code{
		CodeHash:  d.CodeHash,
		Email:     d.Email,
		ExpiresAt: d.ExpiresAt.Unix(),
		CreatedAt: d.CreatedAt.Unix(),
		Used:      d.Used,
		Verified:  d.Verified,
	}
}

// isNotFound returns whether the error is a Firestore not found error.
func isNotFound(err error) bool {
	return status.Code(errors.Cause(err)) == codes.NotFound
}

// CodeStore implements the resetpw.DB interface on Firestore.
type CodeStore struct {
	client *firestore.Client
}

// NewCodeStore returns a new CodeStore.
func NewCodeStore(client *firestore.Client) *CodeStore {
	return &CodeStore{client: client}
}

func (s *CodeStore) doc(codeHash string) *firestore.DocumentRef {
	return s.client.Collection(codesCollection).Doc(codeHash)
}

// Save satisfies the resetpw.DB interface.
func (s *CodeStore) Save(ctx context.Context, c resetpw.Code) error {
	_, err := s.doc(c.CodeHash).Set(ctx, convertCodeToDoc(c))
	if err != nil {
		return errors.Wrap(err, "set code")
	}
	return nil
}

// Get satisfies the resetpw.DB interface.
func (s *CodeStore) Get(ctx context.Context, codeHash string) (*resetpw.Code, error) {
	snap, err := s.doc(codeHash).Get(ctx)
	switch {
	case isNotFound(err):
		return nil, resetpw.ErrNotFound
	case err != nil:
		return nil, errors.Wrap(err, "get code")
	}
	var d codeDoc
	err = snap.DataTo(&d)
	if err != nil {
		return nil, err
	}
	c := convertCodeFromDoc(d)
	return &c, nil
}

func (s *CodeStore) setFlag(ctx context.Context, field, codeHash string) error {
	_, err := s.doc(codeHash).Update(ctx, []firestore.Update{
		{Path: field, Value: true},
	})
	switch {
	case isNotFound(err):
		return resetpw.ErrNotFound
	case err != nil:
		return errors.Wrapf(err, "update %v", field)
	}
	return nil
}

// SetVerified satisfies the resetpw.DB interface.
func (s *CodeStore) SetVerified(ctx context.Context, codeHash string) error {
	return s.setFlag(ctx, "verified", codeHash)
}

// SetUsed satisfies the resetpw.DB interface.
func (s *CodeStore) SetUsed(ctx context.Context, codeHash string) error {
	return s.setFlag(ctx, "used", codeHash)
}

// Cleanup deletes the codes that are expired or used.
//
// Cleanup satisfies the resetpw.Cleaner interface.
func (s *CodeStore) Cleanup(ctx context.Context) (int64, error) {
	col := s.client.Collection(codesCollection)
	queries := []firestore.Query{
		col.Where("expires_at", "<=", time.Now().UTC()),
		col.Where("used", "==", true),
	}
	var n int64
	seen := make(map[string]struct{})
	for _, q := range queries {
		docs, err := q.Documents(ctx).GetAll()
		if err != nil {
			return n, errors.Wrap(err, "query codes")
		}
		for _, d := range docs {
			if _, ok := seen[d.Ref.ID]; ok {
				continue
			}
			seen[d.Ref.ID] = struct{}{}
			_, err := d.Ref.Delete(ctx)
			if err != nil {
				return n, errors.Wrapf(err, "delete %v", d.Ref.ID)
			}
			n++
		}
	}

	log.Debugf("Deleted %v reset codes from Firestore", n)

	return n, nil
}
