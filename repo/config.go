package repo

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/CarliMargareta/storyagent/version"
	"github.com/jessevdk/go-flags"
	"github.com/natefinch/lumberjack"
	"github.com/op/go-logging"
)

const (
	defaultConfigFilename = "storyagent.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "agent.log"

	// DefaultAPIURL is the hosted Story API consumed by the agent.
	DefaultAPIURL = "https://story-api.dicoding.dev/v1"
)

var (
	// DefaultHomeDir is the default data directory.
	DefaultHomeDir = AppDataDir("storyagent", false)

	defaultConfigFile = filepath.Join(DefaultHomeDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(DefaultHomeDir, defaultLogDirname)

	fileLogFormat   = logging.MustStringFormatter(`%{time:2006-01-02T15:04:05} [%{level}] [%{module}] %{message}`)
	stdoutLogFormat = logging.MustStringFormatter(`%{color:reset}%{color}%{time:15:04:05.000} [%{level}] [%{module}] %{message}`)

	defaultPrecacheURLs = []string{
		"/",
		"/index.html",
		"/app.css",
		"/app.bundle.js",
		"/manifest.json",
		"/favicon.png",
		"/images/logo.png",
		"https://unpkg.com/leaflet@1.9.4/dist/leaflet.css",
		"https://unpkg.com/leaflet@1.9.4/dist/leaflet.js",
		"https://unpkg.com/leaflet-control-geocoder/dist/Control.Geocoder.css",
		"https://unpkg.com/leaflet-control-geocoder/dist/Control.Geocoder.js",
	}

	defaultCDNHosts = []string{"unpkg.com", "tile.openstreetmap.org"}
)

// Config defines the configuration options for the story agent.
//
// See LoadConfig for details on the configuration load process.
type Config struct {
	ShowVersion      bool          `short:"v" long:"version" description:"Display version information and exit"`
	ConfigFile       string        `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir          string        `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir           string        `long:"logdir" description:"Directory to log output."`
	LogLevel         string        `short:"l" long:"loglevel" description:"set the logging level [debug, info, notice, warning, error, critical]" default:"info"`
	APIURL           string        `long:"apiurl" description:"Base URL of the remote Story API"`
	GatewayAddr      string        `long:"gatewayaddr" description:"Address the client bridge gateway listens on" default:"127.0.0.1:8890"`
	SiteOrigin       string        `long:"siteorigin" description:"Origin of the application shell used by the asset cache" default:"http://localhost:9000"`
	PollInterval     time.Duration `long:"pollinterval" description:"How often to poll the remote API for new stories" default:"15m"`
	ReminderInterval time.Duration `long:"reminderinterval" description:"How often to store the periodic reminder notification" default:"1h"`
	DummyInterval    time.Duration `long:"dummyinterval" description:"Interval between synthetic notifications when dummy mode is enabled" default:"1m"`
	SweepInterval    time.Duration `long:"sweepinterval" description:"How often the notification retention sweep runs" default:"6h"`
	FetchTimeout     time.Duration `long:"fetchtimeout" description:"Bounded wait on network-first fetches before falling back to cache" default:"8s"`
	CacheVersion     string        `long:"cacheversion" description:"Version token for the asset cache" default:"v2"`
	CDNMaxEntries    int           `long:"cdnmaxentries" description:"Maximum number of cached CDN assets" default:"50"`
	CDNMaxAge        time.Duration `long:"cdnmaxage" description:"Maximum age of cached CDN assets" default:"720h"`
	PrecacheURLs     []string      `long:"precacheurl" description:"Override the default application shell assets to pre-cache"`
	CDNHosts         []string      `long:"cdnhost" description:"Override the default cross-origin hosts treated as CDN assets"`
	AllowedIPs       []string      `long:"allowip" description:"Only allow gateway connections from these IPs"`
	GatewayUsername  string        `long:"gatewayusername" description:"Username for basic authentication on the gateway"`
	GatewayPassword  string        `long:"gatewaypassword" description:"Password for basic authentication on the gateway"`
	NoCors           bool          `long:"nocors" description:"Disable CORS headers on the gateway"`
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
// 	1) Start with a default config with sane settings
// 	2) Pre-parse the command line to check for an alternative config file
// 	3) Load configuration file overwriting defaults with any specified options
// 	4) Parse CLI options and overwrite/add any specified options
func LoadConfig() (*Config, error) {
	// Default config.
	cfg := Config{
		DataDir:    DefaultHomeDir,
		ConfigFile: defaultConfigFile,
		LogDir:     defaultLogDir,
		APIURL:     DefaultAPIURL,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified. Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := flags.NewParser(&cfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, err
		}
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version.String())
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := os.Stat(preCfg.ConfigFile); os.IsNotExist(err) {
		if err := createDefaultConfigFile(preCfg.ConfigFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating a default config file: %v\n", err)
		}
	}

	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %v\n", err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, err
		}
		configFileError = err
	}

	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	if len(cfg.PrecacheURLs) == 0 {
		cfg.PrecacheURLs = defaultPrecacheURLs
	}
	if len(cfg.CDNHosts) == 0 {
		cfg.CDNHosts = defaultCDNHosts
	}

	setupLogging(cfg.LogDir, cfg.LogLevel)

	// Warn about missing config file only after all other configuration is
	// done. This prevents the warning on help messages and invalid
	// options. Note this should go directly before the return.
	if configFileError != nil {
		log.Warningf("%v", configFileError)
	}
	return &cfg, nil
}

// sampleConfig is written to the data directory on first run.
const sampleConfig = `; storyagent configuration file
;
; Uncomment options to override the defaults.

; apiurl=https://story-api.dicoding.dev/v1
; gatewayaddr=127.0.0.1:8890
; loglevel=info
; pollinterval=15m
; reminderinterval=1h
; sweepinterval=6h
; cacheversion=v2
; cdnmaxentries=50
; cdnmaxage=720h
`

func createDefaultConfigFile(destinationPath string) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0700); err != nil {
		return err
	}
	return writeFile(destinationPath, []byte(sampleConfig), 0600)
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(pth string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(pth, "~") {
		homeDir := filepath.Dir(DefaultHomeDir)
		pth = strings.Replace(pth, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(pth))
}

func setupLogging(logDir, logLevel string) {
	backendStdout := logging.NewLogBackend(os.Stdout, "", 0)
	backendStdoutFormatter := logging.NewBackendFormatter(backendStdout, stdoutLogFormat)

	if logDir != "" {
		rotator := &lumberjack.Logger{
			Filename:   path.Join(logDir, defaultLogFilename),
			MaxSize:    10, // Megabytes
			MaxBackups: 3,
			MaxAge:     30, // Days
		}

		backendFile := logging.NewLogBackend(rotator, "", 0)
		backendFileFormatter := logging.NewBackendFormatter(backendFile, fileLogFormat)
		logging.SetBackend(backendStdoutFormatter, backendFileFormatter)
	} else {
		logging.SetBackend(backendStdoutFormatter)
	}

	level, err := logging.LogLevel(strings.ToUpper(logLevel))
	if err != nil {
		level = logging.INFO
	}
	logging.SetLevel(level, "")
}
