// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package leveldb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agromarket/agromarket/resetpw"
	"github.com/google/go-cmp/cmp"
)

func newTestLocalDB(t *testing.T) *localdb {
	t.Helper()

	l, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		l.Close()
	})
	return l
}

func TestCodeLifecycle(t *testing.T) {
	l := newTestLocalDB(t)
	ctx := context.Background()

	c := resetpw.Code{
		CodeHash:  resetpw.HashCode("654321"),
		Email:     "ana@example.com",
		ExpiresAt: time.Now().Add(resetpw.CodeLifetime).Unix(),
		CreatedAt: time.Now().Unix(),
	}

	_, err := l.Get(ctx, c.CodeHash)
	if !errors.Is(err, resetpw.ErrNotFound) {
		t.Fatalf("got err '%v', want '%v'", err, resetpw.ErrNotFound)
	}
	err = l.SetUsed(ctx, c.CodeHash)
	if !errors.Is(err, resetpw.ErrNotFound) {
		t.Fatalf("got err '%v', want '%v'", err, resetpw.ErrNotFound)
	}

	if err := l.Save(ctx, c); err != nil {
		t.Fatal(err)
	}
	if err := l.SetVerified(ctx, c.CodeHash); err != nil {
		t.Fatal(err)
	}
	if err := l.SetUsed(ctx, c.CodeHash); err != nil {
		t.Fatal(err)
	}

	got, err := l.Get(ctx, c.CodeHash)
	if err != nil {
		t.Fatal(err)
	}
	want := c
	want.Verified = true
	want.Used = true
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("(-want +got):\n%v", diff)
	}
}

func TestCleanup(t *testing.T) {
	l := newTestLocalDB(t)
	ctx := context.Background()
	now := time.Now()

	codes := []resetpw.Code{
		{CodeHash: "active", ExpiresAt: now.Add(time.Minute).Unix()},
		{CodeHash: "expired", ExpiresAt: now.Add(-time.Minute).Unix()},
		{CodeHash: "used", ExpiresAt: now.Add(time.Minute).Unix(),
			Used: true},
	}
	for _, c := range codes {
		if err := l.Save(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	n, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("got %v deleted, want 2", n)
	}
	if _, err := l.Get(ctx, "active"); err != nil {
		t.Errorf("active code: %v", err)
	}
}
