// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/agromarket/agromarket/agromarketwww/sharedconfig"
	"github.com/agromarket/agromarket/firebase"
	"github.com/agromarket/agromarket/functions"
	"github.com/agromarket/agromarket/util"
	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

const (
	appVersion = "1.0.0"

	defaultConfigFilename = sharedconfig.DefaultConfigFilename
	defaultDataDirname    = sharedconfig.DefaultDataDirname
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "agromarketwww.log"
	defaultUploadDirname  = "uploads"
	defaultAPKFilename    = "app-release.apk"

	// Profiles
	profileDevelopment = "development"
	profileProduction  = "production"
	defaultProfile     = profileDevelopment

	defaultDevelopmentHost = "127.0.0.1"
	defaultDevelopmentPort = "5001"
	defaultProductionHost  = "0.0.0.0"
	defaultProductionPort  = "5000"

	// Session backends
	sessionDBLevel   = "leveldb"
	sessionDBMySQL   = "mysql"
	sessionDBRedis   = "redis"
	sessionDBCookie  = "cookie"
	defaultSessionDB = sessionDBLevel

	// Reset code backends
	resetDBLevel     = "leveldb"
	resetDBMySQL     = "mysql"
	resetDBFirestore = "firestore"
	resetDBNone      = "none"
	defaultResetDB   = resetDBFirestore

	defaultMySQLHost   = "localhost:3306"
	defaultMySQLUser   = "agromarket"
	defaultMySQLDBName = "agromarket"
	defaultRedisAddr   = "localhost:6379"

	defaultMailHost = "smtp.gmail.com"
	defaultMailPort = 587

	defaultSupportAddress = "agromarket559@gmail.com"

	// defaultMailRateLimit is the number of emails a single recipient may
	// receive per day.
	defaultMailRateLimit = 100

	defaultCleanupSchedule = "@every 15m"
)

var (
	defaultHomeDir       = sharedconfig.DefaultHomeDir
	defaultConfigFile    = sharedconfig.DefaultConfigFile
	defaultDataDir       = sharedconfig.DefaultDataDir
	defaultHTTPSKeyFile  = filepath.Join(defaultHomeDir, "https.key")
	defaultHTTPSCertFile = filepath.Join(defaultHomeDir, "https.cert")
	defaultLogDir        = filepath.Join(defaultHomeDir, defaultLogDirname)
	defaultUploadDir     = filepath.Join(defaultHomeDir, defaultUploadDirname)
	defaultAPKFile       = filepath.Join(defaultHomeDir, defaultAPKFilename)
)

// config defines the configuration options for agromarketwww.
//
// See loadConfig for details on the configuration load process.
type config struct {
	HomeDir     string   `short:"A" long:"appdata" description:"Path to application home directory"`
	ShowVersion bool     `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string   `short:"C" long:"configfile" description:"Path to configuration file"`
	EnvFile     string   `long:"envfile" description:"Path to an environment file that is loaded before the configuration is parsed"`
	DataDir     string   `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir      string   `long:"logdir" description:"Directory to log output."`
	DebugLevel  string   `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	Profile     string   `long:"profile" env:"AGROMARKET_PROFILE" choice:"development" choice:"production" description:"Named settings profile"`
	Listeners   []string `long:"listen" description:"Add an interface/port to listen for connections (default development: 127.0.0.1:5001, production: 0.0.0.0:5000)"`
	TLS         bool     `long:"tls" description:"Serve https instead of http. A self signed key pair is created when none exists"`
	HTTPSCert   string   `long:"httpscert" description:"File containing the https certificate file"`
	HTTPSKey    string   `long:"httpskey" description:"File containing the https certificate key"`
	StaticDir   string   `long:"staticdir" description:"Directory with the static assets that are served under /static/"`
	UploadDir   string   `long:"uploaddir" description:"Directory that stores the uploaded product images"`
	APKFile     string   `long:"apkfile" description:"Path to the downloadable Android application package"`

	// Sessions
	SessionDB string `long:"sessiondb" choice:"leveldb" choice:"mysql" choice:"redis" choice:"cookie" description:"Session storage backend"`
	ResetDB   string `long:"resetdb" choice:"leveldb" choice:"mysql" choice:"firestore" choice:"none" description:"Password reset code mirror"`
	MySQLHost string `long:"mysqlhost" env:"MYSQL_HOST" description:"MySQL host:port"`
	MySQLUser string `long:"mysqluser" env:"MYSQL_USER" description:"MySQL user"`
	MySQLPass string `long:"mysqlpass" env:"MYSQL_PASSWORD" description:"MySQL password"`
	MySQLDB   string `long:"mysqldb" env:"MYSQL_DATABASE" description:"MySQL database name"`
	RedisAddr string `long:"redisaddr" env:"REDIS_ADDR" description:"Redis host:port"`
	RedisPass string `long:"redispass" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisDB   int    `long:"redisdb" description:"Redis database number"`

	// Firebase
	FirebaseProjectID   string `long:"firebaseproject" env:"FIREBASE_PROJECT_ID" description:"Firebase project ID"`
	FirebaseCredentials string `long:"firebasecredentials" env:"FIREBASE_CREDENTIALS_PATH" description:"Firebase service account key file. The application default credentials are used when empty"`
	DisableFirebase     bool   `long:"nofirebase" description:"Do not connect to Firebase"`

	// Cloud functions
	FunctionsRegion  string        `long:"functionsregion" env:"FUNCTIONS_REGION" description:"Cloud functions region"`
	FunctionsToken   string        `long:"functionstoken" env:"FUNCTIONS_TOKEN" description:"Bearer token sent to the cloud functions"`
	FunctionsURL     string        `long:"functionsurl" env:"FUNCTIONS_URL" description:"Override of the cloud functions base URL"`
	FunctionsTimeout time.Duration `long:"functionstimeout" description:"Timeout of a single cloud function call"`
	DisableFunctions bool          `long:"nofunctions" description:"Do not call the cloud functions"`

	// Mail
	MailHost       string   `long:"mailhost" env:"MAIL_SERVER" description:"SMTP host"`
	MailPort       int      `long:"mailport" env:"MAIL_PORT" description:"SMTP port"`
	MailUser       string   `long:"mailuser" env:"MAIL_USERNAME" description:"SMTP user"`
	MailPass       string   `long:"mailpass" env:"MAIL_PASSWORD" description:"SMTP password"`
	MailFrom       string   `long:"mailfrom" env:"MAIL_DEFAULT_SENDER" description:"Sender address, for example 'AgroMarket <noreply@example.com>'"`
	MailCert       string   `long:"mailcert" description:"CA certificate of the SMTP server"`
	MailSkipVerify bool     `long:"mailskipverify" description:"Skip the verification of the SMTP server certificate"`
	MailRateLimit  int      `long:"mailratelimit" description:"Emails a single recipient may receive per day. Zero disables the limit"`
	SupportAddress string   `long:"supportaddress" env:"SUPPORT_EMAIL" description:"Inbox of the support tickets"`
	AdminAddresses []string `long:"adminaddress" env:"ADMIN_EMAILS" env-delim:"," description:"Administrator inbox for new seller applications"`

	// Payments
	StripeSecretKey      string `long:"stripesecretkey" env:"STRIPE_SECRET_KEY" description:"Stripe secret key"`
	StripePublishableKey string `long:"stripepublishablekey" env:"STRIPE_PUBLISHABLE_KEY" description:"Stripe publishable key handed to the checkout pages"`

	// Maintenance
	CleanupSchedule string `long:"cleanupschedule" description:"Cron schedule of the expired session and reset code cleanup"`

	Version string

	// debug is set by the development profile. It selects the relaxed
	// password reset posture.
	debug bool

	// secureCookie is set by the production profile.
	secureCookie bool
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace":
		fallthrough
	case "debug":
		fallthrough
	case "info":
		fallthrough
	case "warn":
		fallthrough
	case "error":
		fallthrough
	case "critical":
		return true
	}
	return false
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	// Convert the subsystemLoggers map keys to a slice.
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsytems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "The specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			str := "The specified subsystem [%v] is invalid -- " +
				"supported subsytems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// removeDuplicateAddresses returns a new slice with all duplicate entries in
// addrs removed.
func removeDuplicateAddresses(addrs []string) []string {
	result := make([]string, 0, len(addrs))
	seen := map[string]struct{}{}
	for _, val := range addrs {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = struct{}{}
		}
	}
	return result
}

// normalizeAddresses returns a new slice with all the passed addresses
// normalized with the given default port, and all duplicates removed.
func normalizeAddresses(addrs []string, defaultPort string) []string {
	for i, addr := range addrs {
		addrs[i] = util.NormalizeAddress(addr, defaultPort)
	}

	return removeDuplicateAddresses(addrs)
}

// applyProfile sets the settings that depend on the selected profile and
// fills in the listeners when none were provided.
func (c *config) applyProfile() error {
	var host, port string
	switch c.Profile {
	case profileDevelopment:
		c.debug = true
		c.secureCookie = false
		host, port = defaultDevelopmentHost, defaultDevelopmentPort
	case profileProduction:
		c.debug = false
		c.secureCookie = true
		host, port = defaultProductionHost, defaultProductionPort
	default:
		return fmt.Errorf("invalid profile %q", c.Profile)
	}

	if len(c.Listeners) == 0 {
		c.Listeners = []string{net.JoinHostPort(host, port)}
	}
	c.Listeners = normalizeAddresses(c.Listeners, port)

	return nil
}

// loadEnvFile loads the environment file. Variables that are already set in
// the environment take precedence. A missing file is not an error.
func loadEnvFile(envFile string) error {
	if envFile == "" || !util.FileExists(envFile) {
		return nil
	}
	return godotenv.Load(envFile)
}

// newConfigParser returns a new command line flags parser.
func newConfigParser(cfg *config, options flags.Options) *flags.Parser {
	return flags.NewParser(cfg, options)
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//     and environment file
//  3. Load the environment file
//  4. Load configuration file overwriting defaults with any specified options
//  5. Parse CLI options and overwrite/add any specified options
//
// The above results in agromarketwww functioning properly without any config
// settings while still allowing the user to override settings with config
// files and command line options.  Command line options always take
// precedence.
func loadConfig() (*config, []string, error) {
	// Default config.
	cfg := config{
		HomeDir:           defaultHomeDir,
		ConfigFile:        defaultConfigFile,
		EnvFile:           sharedconfig.DefaultEnvFilename,
		DebugLevel:        defaultLogLevel,
		DataDir:           defaultDataDir,
		LogDir:            defaultLogDir,
		Profile:           defaultProfile,
		HTTPSKey:          defaultHTTPSKeyFile,
		HTTPSCert:         defaultHTTPSCertFile,
		UploadDir:         defaultUploadDir,
		APKFile:           defaultAPKFile,
		SessionDB:         defaultSessionDB,
		ResetDB:           defaultResetDB,
		MySQLHost:         defaultMySQLHost,
		MySQLUser:         defaultMySQLUser,
		MySQLDB:           defaultMySQLDBName,
		RedisAddr:         defaultRedisAddr,
		FirebaseProjectID: firebase.DefaultProjectID,
		FunctionsRegion:   functions.DefaultRegion,
		FunctionsTimeout:  functions.DefaultTimeout,
		MailHost:          defaultMailHost,
		MailPort:          defaultMailPort,
		MailRateLimit:     defaultMailRateLimit,
		SupportAddress:    defaultSupportAddress,
		CleanupSchedule:   defaultCleanupSchedule,
		Version:           appVersion,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := newConfigParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(0)
		}
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Printf("%s version %s (Go version %s %s/%s)\n", appName,
			appVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// The environment file must be loaded before the final parse so that
	// the env tags pick up its variables.
	err = loadEnvFile(cleanAndExpandPath(preCfg.EnvFile))
	if err != nil {
		err := fmt.Errorf("loadConfig: environment file: %v", err)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Paths that were left at their defaults follow an alternative home
	// directory.
	if preCfg.HomeDir != "" {
		cfg.HomeDir, _ = filepath.Abs(preCfg.HomeDir)
		rebase := []struct {
			dst      *string
			set, def string
			name     string
		}{
			{&cfg.ConfigFile, preCfg.ConfigFile, defaultConfigFile,
				defaultConfigFilename},
			{&cfg.DataDir, preCfg.DataDir, defaultDataDir,
				defaultDataDirname},
			{&cfg.HTTPSKey, preCfg.HTTPSKey, defaultHTTPSKeyFile,
				"https.key"},
			{&cfg.HTTPSCert, preCfg.HTTPSCert, defaultHTTPSCertFile,
				"https.cert"},
			{&cfg.LogDir, preCfg.LogDir, defaultLogDir, defaultLogDirname},
			{&cfg.UploadDir, preCfg.UploadDir, defaultUploadDir,
				defaultUploadDirname},
			{&cfg.APKFile, preCfg.APKFile, defaultAPKFile,
				defaultAPKFilename},
		}
		for _, v := range rebase {
			if v.set == v.def {
				*v.dst = filepath.Join(cfg.HomeDir, v.name)
			} else {
				*v.dst = v.set
			}
		}
	}

	// Load additional config from file.
	var configFileError error
	parser := newConfigParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(cfg.ConfigFile)
	if err != nil {
		var e *os.PathError
		if !errors.As(err, &e) {
			fmt.Fprintf(os.Stderr, "Error parsing config "+
				"file: %v\n", err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, nil, err
	}

	// Create the home directory if it doesn't already exist.
	funcName := "loadConfig"
	err = os.MkdirAll(cfg.HomeDir, 0700)
	if err != nil {
		// Show a nicer error message if it's because a symlink is
		// linked to a directory that does not exist (probably because
		// it's not mounted).
		var e *os.PathError
		if errors.As(err, &e) && os.IsExist(err) {
			if link, lerr := os.Readlink(e.Path); lerr == nil {
				str := "is symlink %s -> %s mounted?"
				err = fmt.Errorf(str, e.Path, link)
			}
		}

		str := "%s: Failed to create home directory: %v"
		err := fmt.Errorf(str, funcName, err)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.HTTPSKey = cleanAndExpandPath(cfg.HTTPSKey)
	cfg.HTTPSCert = cleanAndExpandPath(cfg.HTTPSCert)
	cfg.UploadDir = cleanAndExpandPath(cfg.UploadDir)
	cfg.APKFile = cleanAndExpandPath(cfg.APKFile)
	cfg.StaticDir = cleanAndExpandPath(cfg.StaticDir)
	cfg.MailCert = cleanAndExpandPath(cfg.MailCert)
	cfg.FirebaseCredentials = cleanAndExpandPath(cfg.FirebaseCredentials)

	for _, dir := range []string{cfg.DataDir, cfg.UploadDir} {
		err = os.MkdirAll(dir, 0700)
		if err != nil {
			str := "%s: Failed to create directory %v: %v"
			err := fmt.Errorf(str, funcName, dir, err)
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	if err := cfg.applyProfile(); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	if cfg.MailFrom == "" && cfg.MailUser != "" {
		cfg.MailFrom = fmt.Sprintf("AgroMarket <%v>", cfg.MailUser)
	}
	if cfg.MySQLPass == "" && (cfg.SessionDB == sessionDBMySQL ||
		cfg.ResetDB == resetDBMySQL) {
		err := fmt.Errorf("%s: the mysql backend requires --mysqlpass",
			funcName)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}
	if cfg.ResetDB == resetDBFirestore && cfg.DisableFirebase {
		log.Warnf("Firebase is disabled, reset codes are only kept in " +
			"the session")
		cfg.ResetDB = resetDBNone
	}

	// Warn about missing config file only after all other configuration is
	// done.  This prevents the warning on help messages and invalid
	// options.  Note this should go directly before the return.
	if configFileError != nil {
		log.Warnf("%v", configFileError)
	}

	return &cfg, remainingArgs, nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	return util.CleanAndExpandPath(path)
}
