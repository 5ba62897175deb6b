// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"testing"

	"github.com/robfig/cron"
)

type testSessionCleaner struct {
	calls int
	err   error
}

func (c *testSessionCleaner) Cleanup() (int64, error) {
	c.calls++
	return 2, c.err
}

type testResetCleaner struct {
	calls    int
	deadline bool
}

func (c *testResetCleaner) Cleanup(ctx context.Context) (int64, error) {
	c.calls++
	_, c.deadline = ctx.Deadline()
	return 1, nil
}

func TestCleanup(t *testing.T) {
	sc := &testSessionCleaner{err: errors.New("locked")}
	rc := &testResetCleaner{}
	p := &agromarketwww{
		sessionsClean: sc,
		resetClean:    rc,
	}

	// A failing backend does not stop the others
	p.cleanup()
	if sc.calls != 1 || rc.calls != 1 {
		t.Fatalf("got calls %v %v", sc.calls, rc.calls)
	}
	if !rc.deadline {
		t.Error("reset cleanup has no deadline")
	}
}

func TestStartCleanup(t *testing.T) {
	t.Run("nothing to clean", func(t *testing.T) {
		p := &agromarketwww{
			cfg:  &config{CleanupSchedule: defaultCleanupSchedule},
			cron: cron.New(),
		}
		if err := p.startCleanup(); err != nil {
			t.Fatal(err)
		}
		if n := len(p.cron.Entries()); n != 0 {
			t.Errorf("got %v entries", n)
		}
	})

	t.Run("scheduled", func(t *testing.T) {
		p := &agromarketwww{
			cfg:           &config{CleanupSchedule: defaultCleanupSchedule},
			cron:          cron.New(),
			sessionsClean: &testSessionCleaner{},
		}
		if err := p.startCleanup(); err != nil {
			t.Fatal(err)
		}
		defer p.cron.Stop()
		if n := len(p.cron.Entries()); n != 1 {
			t.Errorf("got %v entries", n)
		}
	})

	t.Run("invalid schedule", func(t *testing.T) {
		p := &agromarketwww{
			cfg:        &config{CleanupSchedule: "every now and then"},
			cron:       cron.New(),
			resetClean: &testResetCleaner{},
		}
		if err := p.startCleanup(); err == nil {
			t.Fatal("got nil error")
		}
	})
}
