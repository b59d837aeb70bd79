// Package config loads tracker settings from YAML, environment and flags.
package config

import (
	"flag"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvAPIURL overrides api_url from the YAML file.
const EnvAPIURL = "FUNDINGTRACKER_API_URL"

// Defaults.
const (
	DefaultAPIURL            = "http://localhost:8080"
	DefaultRefreshInterval   = 5 * time.Minute
	DefaultHistoryLimit      = 50
	DefaultBatchHistoryLimit = 0
	DefaultTopK              = 5
	DefaultRequestTimeout    = 30 * time.Second
	DefaultRetries           = 0
	DefaultDashboardAddr     = ":8000"
	DefaultTLSCacheDir       = "cert-cache"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config runtime settings.
type Config struct {
	APIURL            string
	RefreshInterval   time.Duration
	HistoryLimit      int
	BatchHistoryLimit int // 0 leaves the limit to the backend
	TopK              int
	RequestTimeout    time.Duration
	Retries           int
	DashboardAddr     string
	TLSDomains        []string
	TLSCacheDir       string

	// Once prints a single refresh to the terminal and exits.
	Once bool
	// Setup runs the configuration wizard.
	Setup bool
}

// ConfigTmp is the YAML shape of Config.
type ConfigTmp struct {
	APIURL               string        `yaml:"api_url"`
	RefreshInterval      time.Duration `yaml:"refresh_interval,omitempty"`
	HistoryLimitStr      string        `yaml:"history_limit,omitempty"`
	BatchHistoryLimitStr string        `yaml:"batch_history_limit,omitempty"`
	TopKStr              string        `yaml:"top_k,omitempty"`
	RequestTimeout       time.Duration `yaml:"request_timeout,omitempty"`
	RetriesStr           string        `yaml:"retries,omitempty"`
	DashboardAddr        string        `yaml:"dashboard_addr,omitempty"`
	TLSDomains           []string      `yaml:"tls_domains,omitempty"`
	TLSCacheDir          string        `yaml:"tls_cache_dir,omitempty"`
}

// Default returns a Config with every default applied.
func Default() Config {
	return Config{
		APIURL:            DefaultAPIURL,
		RefreshInterval:   DefaultRefreshInterval,
		HistoryLimit:      DefaultHistoryLimit,
		BatchHistoryLimit: DefaultBatchHistoryLimit,
		TopK:              DefaultTopK,
		RequestTimeout:    DefaultRequestTimeout,
		Retries:           DefaultRetries,
		DashboardAddr:     DefaultDashboardAddr,
		TLSCacheDir:       DefaultTLSCacheDir,
	}
}

// Get loads .env, then parses the process flags.
func Get() (Config, error) {
	// .env is optional
	_ = godotenv.Load()
	return Load(os.Args[1:], os.Getenv)
}

// Load builds a Config from args. Precedence is defaults, YAML, environment, flags.
func Load(args []string, getenv func(string) string) (Config, error) {
	fs := flag.NewFlagSet("fundingtracker", flag.ContinueOnError)
	path := fs.String("config", "", "path to yaml config")
	apiURL := fs.String("api-url", "", "backend base url, example: http://localhost:8080")
	addr := fs.String("addr", "", "dashboard listen address, example: :8000")
	once := fs.Bool("once", false, "fetch once, print tables and exit")
	setup := fs.Bool("setup", false, "run the configuration wizard")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if *path != "" {
		var err error
		if cfg, err = getYaml(*path); err != nil {
			return Config{}, err
		}
	}

	if getenv != nil {
		if v := strings.TrimSpace(getenv(EnvAPIURL)); v != "" {
			cfg.APIURL = v
		}
	}
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}
	if *addr != "" {
		cfg.DashboardAddr = *addr
	}
	cfg.Once = *once
	cfg.Setup = *setup

	if cfg.Setup {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}

	var c ConfigTmp
	if err := yaml.Unmarshal(f, &c); err != nil {
		return Config{}, errors.Wrapf(err, "parse yaml config %s", path)
	}
	return c.toConfig()
}

func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Default()

	if c.APIURL != "" {
		cfg.APIURL = c.APIURL
	}
	if c.RefreshInterval != 0 {
		cfg.RefreshInterval = c.RefreshInterval
	}
	if c.RequestTimeout != 0 {
		cfg.RequestTimeout = c.RequestTimeout
	}
	if c.DashboardAddr != "" {
		cfg.DashboardAddr = c.DashboardAddr
	}
	if c.TLSCacheDir != "" {
		cfg.TLSCacheDir = c.TLSCacheDir
	}
	cfg.TLSDomains = c.TLSDomains

	ints := []struct {
		name string
		raw  string
		dst  *int
	}{
		{"history_limit", c.HistoryLimitStr, &cfg.HistoryLimit},
		{"batch_history_limit", c.BatchHistoryLimitStr, &cfg.BatchHistoryLimit},
		{"top_k", c.TopKStr, &cfg.TopK},
		{"retries", c.RetriesStr, &cfg.Retries},
	}
	for _, f := range ints {
		if f.raw == "" {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(f.raw))
		if err != nil {
			return Config{}, errors.Wrapf(ErrInvalidConfig, "incorrect '%s' param in yaml config (must be an integer): %s", f.name, f.raw)
		}
		*f.dst = v
	}

	return cfg, nil
}

// Tmp converts cfg back into its YAML shape.
func (c Config) Tmp() ConfigTmp {
	return ConfigTmp{
		APIURL:               c.APIURL,
		RefreshInterval:      c.RefreshInterval,
		HistoryLimitStr:      strconv.Itoa(c.HistoryLimit),
		BatchHistoryLimitStr: strconv.Itoa(c.BatchHistoryLimit),
		TopKStr:              strconv.Itoa(c.TopK),
		RequestTimeout:       c.RequestTimeout,
		RetriesStr:           strconv.Itoa(c.Retries),
		DashboardAddr:        c.DashboardAddr,
		TLSDomains:           c.TLSDomains,
		TLSCacheDir:          c.TLSCacheDir,
	}
}

// Validate checks ranges and the backend url.
func (c Config) Validate() error {
	if err := ValidateAPIURL(c.APIURL); err != nil {
		return err
	}
	switch {
	case c.RefreshInterval <= 0:
		return errors.Wrap(ErrInvalidConfig, "refresh_interval must be positive")
	case c.HistoryLimit <= 0:
		return errors.Wrap(ErrInvalidConfig, "history_limit must be positive")
	case c.BatchHistoryLimit < 0:
		return errors.Wrap(ErrInvalidConfig, "batch_history_limit must not be negative")
	case c.TopK <= 0:
		return errors.Wrap(ErrInvalidConfig, "top_k must be positive")
	case c.RequestTimeout < 0:
		return errors.Wrap(ErrInvalidConfig, "request_timeout must not be negative")
	case c.Retries < 0:
		return errors.Wrap(ErrInvalidConfig, "retries must not be negative")
	case !c.Once && c.DashboardAddr == "":
		return errors.Wrap(ErrInvalidConfig, "dashboard_addr is required")
	}
	return nil
}

// ValidateAPIURL accepts absolute http and https urls.
func ValidateAPIURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrapf(ErrInvalidConfig, "api_url %q: %v", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Wrapf(ErrInvalidConfig, "api_url %q must be an absolute http(s) url", raw)
	}
	return nil
}
