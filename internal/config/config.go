// Package config resolves wellness-tui settings from defaults, an optional
// YAML file, a .env file and WELLNESS_* environment variables. Command-line
// flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIBase = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second

	appDirName     = "wellness-tui"
	configFileName = "config.yaml"
)

// Config is the resolved runtime configuration.
type Config struct {
	APIBase   string        `yaml:"api_base"`
	Timeout   time.Duration `yaml:"timeout"`
	LogFile   string        `yaml:"log_file"`
	Verbose   bool          `yaml:"verbose"`
	AltScreen bool          `yaml:"alt_screen"`
	Profile   ProfileConfig `yaml:"profile"`
}

// ProfileConfig prefills the profile form.
type ProfileConfig struct {
	Name          string `yaml:"name"`
	Goal          string `yaml:"goal"`
	ActivityLevel string `yaml:"activity_level"`
	PrimaryMetric string `yaml:"primary_metric"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIBase:   DefaultAPIBase,
		Timeout:   DefaultTimeout,
		AltScreen: true,
	}
}

// DefaultPath is $XDG_CONFIG_HOME/wellness-tui/config.yaml or the platform
// equivalent. It returns "" when no config directory can be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ""
	}
	return filepath.Join(dir, appDirName, configFileName)
}

// Load reads path (a missing file yields defaults) and applies environment
// overrides.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv(lookup)
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	c.APIBase = envOr(lookup, "WELLNESS_API_BASE", c.APIBase)
	c.Timeout = envOrDuration(lookup, "WELLNESS_TIMEOUT", c.Timeout)
	c.LogFile = envOr(lookup, "WELLNESS_LOG_FILE", c.LogFile)
	c.Verbose = envOrBool(lookup, "WELLNESS_VERBOSE", c.Verbose)
	c.AltScreen = envOrBool(lookup, "WELLNESS_ALT_SCREEN", c.AltScreen)
	c.Profile.Name = envOr(lookup, "WELLNESS_USER_NAME", c.Profile.Name)
	c.Profile.Goal = envOr(lookup, "WELLNESS_GOAL", c.Profile.Goal)
	c.Profile.ActivityLevel = envOr(lookup, "WELLNESS_ACTIVITY_LEVEL", c.Profile.ActivityLevel)
	c.Profile.PrimaryMetric = envOr(lookup, "WELLNESS_PRIMARY_METRIC", c.Profile.PrimaryMetric)
}

// Validate normalizes the base URL and rejects unusable values.
func (c *Config) Validate() error {
	base := strings.TrimRight(strings.TrimSpace(c.APIBase), "/")
	if base == "" {
		base = DefaultAPIBase
	}
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("invalid api base %q: %w", c.APIBase, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid api base %q: scheme must be http or https", c.APIBase)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid api base %q: missing host", c.APIBase)
	}
	c.APIBase = base
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

func envOr(lookup func(string) (string, bool), key, fallback string) string {
	value, ok := lookup(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envOrDuration(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	value := envOr(lookup, key, "")
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	// Bare integers are seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func envOrBool(lookup func(string) (string, bool), key string, fallback bool) bool {
	switch strings.ToLower(envOr(lookup, key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
