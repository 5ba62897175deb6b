// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"time"
)

const cleanupTimeout = time.Minute

// cleanup removes the expired sessions and reset codes from the backends
// that are able to do so.
func (p *agromarketwww) cleanup() {
	if p.sessionsClean != nil {
		n, err := p.sessionsClean.Cleanup()
		if err != nil {
			log.Errorf("cleanup sessions: %v", err)
		} else if n > 0 {
			log.Infof("Removed %v expired sessions", n)
		}
	}

	if p.resetClean != nil {
		ctx, cancel := context.WithTimeout(context.Background(),
			cleanupTimeout)
		defer cancel()
		n, err := p.resetClean.Cleanup(ctx)
		if err != nil {
			log.Errorf("cleanup reset codes: %v", err)
		} else if n > 0 {
			log.Infof("Removed %v expired reset codes", n)
		}
	}
}

// startCleanup launches the cron job that runs the cleanup. Nothing is
// scheduled when none of the backends expire their own records.
func (p *agromarketwww) startCleanup() error {
	if p.sessionsClean == nil && p.resetClean == nil {
		return nil
	}

	log.Infof("Starting cleanup cron: %v", p.cfg.CleanupSchedule)
	err := p.cron.AddFunc(p.cfg.CleanupSchedule, func() {
		log.Debugf("Running cleanup cron")
		p.cleanup()
	})
	if err != nil {
		return err
	}
	p.cron.Start()

	return nil
}
