// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package firebase connects the server to the Firebase project that holds
// the AgroMarket users and documents. It provides the Firestore mirror of the
// password reset codes and the Auth backed password updater.
package firebase

import (
	"context"
	"os"

	"cloud.google.com/go/firestore"
	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// DefaultProjectID is the Firebase project of AgroMarket.
const DefaultProjectID = "agromarket-625b2"

// scopes are the OAuth2 scopes that the admin credentials are requested
// with.
var scopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/datastore",
	"https://www.googleapis.com/auth/firebase",
	"https://www.googleapis.com/auth/identitytoolkit",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Opts contains the Firebase connection options.
type Opts struct {
	// ProjectID defaults to DefaultProjectID.
	ProjectID string

	// CredentialsFile is the path to a service account key. The
	// application default credentials are used when it is empty.
	CredentialsFile string
}

// App is a connected Firebase app.
type App struct {
	app       *fb.App
	auth      *auth.Client
	firestore *firestore.Client
}

// New connects to the Firebase project.
func New(ctx context.Context, opts Opts) (*App, error) {
	if opts.ProjectID == "" {
		opts.ProjectID = DefaultProjectID
	}

	var (
		creds *google.Credentials
		err   error
	)
	if opts.CredentialsFile != "" {
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, err
		}
		creds, err = google.CredentialsFromJSON(ctx, b, scopes...)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %v", opts.CredentialsFile)
		}
	} else {
		creds, err = google.FindDefaultCredentials(ctx, scopes...)
		if err != nil {
			return nil, errors.Wrap(err, "default credentials")
		}
	}

	app, err := fb.NewApp(ctx, &fb.Config{ProjectID: opts.ProjectID},
		option.WithCredentials(creds))
	if err != nil {
		return nil, errors.Wrap(err, "new app")
	}
	ac, err := app.Auth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "auth client")
	}
	fc, err := app.Firestore(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "firestore client")
	}

	log.Infof("Connected to Firebase project %v", opts.ProjectID)

	return &App{
		app:       app,
		auth:      ac,
		firestore: fc,
	}, nil
}

// Auth returns the password updater and user lookup of the app.
func (a *App) Auth() *Auth {
	return &Auth{client: a.auth}
}

// CodeStore returns the Firestore reset code store of the app.
func (a *App) CodeStore() *CodeStore {
	return NewCodeStore(a.firestore)
}

// Close closes the Firestore connection.
func (a *App) Close() error {
	return a.firestore.Close()
}
