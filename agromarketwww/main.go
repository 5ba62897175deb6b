// Copyright (c) 2017-2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/elliptic"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agromarket/agromarket/util"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// generateTLSCertificate generates the https key pair when none exists.
func generateTLSCertificate(cfg *config) error {
	if util.FileExists(cfg.HTTPSKey) || util.FileExists(cfg.HTTPSCert) {
		return nil
	}

	log.Infof("Generating HTTPS keypair...")

	err := util.GenCertPair(elliptic.P256(), "agromarketwww",
		cfg.HTTPSCert, cfg.HTTPSKey)
	if err != nil {
		return fmt.Errorf("unable to create https keypair: %v", err)
	}

	log.Infof("HTTPS keypair created...")

	return nil
}

func newTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{
			tls.CurveP256,
			tls.CurveP521,
			tls.X25519},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// gracefulShutdown terminates the listeners gracefully.
func gracefulShutdown(servers []*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			log.Error(err)
		}
	}
}

func _main() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("Could not load configuration file: %v", err)
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	log.Infof("Version : %v", cfg.Version)
	log.Infof("Profile : %v", cfg.Profile)
	log.Infof("Home dir: %v", cfg.HomeDir)

	if cfg.TLS {
		err = generateTLSCertificate(cfg)
		if err != nil {
			return err
		}
	}

	ctx := context.Background()
	p, err := newAgromarketwww(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.close()

	err = p.setupRouter()
	if err != nil {
		return fmt.Errorf("setupRouter: %v", err)
	}
	p.setupRoutes()

	err = p.startCleanup()
	if err != nil {
		return fmt.Errorf("startCleanup: %v", err)
	}

	// Setup OS signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bind to a port and pass our router in. A failing listener takes
	// the others down with it.
	g, gctx := errgroup.WithContext(ctx)
	servers := make([]*http.Server, 0, len(cfg.Listeners))
	for _, listener := range cfg.Listeners {
		srv := &http.Server{
			Handler:           p.router,
			Addr:              listener,
			ReadHeaderTimeout: 10 * time.Second,
		}
		if cfg.TLS {
			srv.TLSConfig = newTLSConfig()
		}
		servers = append(servers, srv)

		g.Go(func() error {
			log.Infof("Listen: %v", srv.Addr)
			var err error
			if cfg.TLS {
				err = srv.ListenAndServeTLS(cfg.HTTPSCert, cfg.HTTPSKey)
			} else {
				err = srv.ListenAndServe()
			}
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("listen %v: %v", srv.Addr, err)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Infof("Terminating")
		gracefulShutdown(servers)
		return nil
	})

	// Tell user we are ready to go.
	log.Infof("Start of day")

	err = g.Wait()
	log.Infof("Exiting")

	return err
}

func main() {
	err := _main()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
