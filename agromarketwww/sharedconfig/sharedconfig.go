// Copyright (c) 2017-2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sharedconfig

import (
	"path/filepath"

	"github.com/decred/dcrd/dcrutil/v3"
)

const (
	// DefaultConfigFilename is the default configuration file name.
	DefaultConfigFilename = "agromarketwww.conf"

	// DefaultDataDirname is the default data directory name. The data
	// directory is located in the application home directory.
	DefaultDataDirname = "data"

	// DefaultEnvFilename is the name of the optional environment file
	// that is loaded before the configuration is parsed.
	DefaultEnvFilename = ".env"
)

var (
	// DefaultHomeDir points to agromarketwww's default home directory.
	DefaultHomeDir = dcrutil.AppDataDir("agromarketwww", false)

	// DefaultConfigFile points to agromarketwww's default config file
	// path.
	DefaultConfigFile = filepath.Join(DefaultHomeDir, DefaultConfigFilename)

	// DefaultDataDir points to agromarketwww's default data directory
	// path.
	DefaultDataDir = filepath.Join(DefaultHomeDir, DefaultDataDirname)
)
