// Package config loads client settings from TOML files with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/placectl/internal/microversion"
)

const (
	EnvEndpoint   = "PLACECTL_ENDPOINT"
	EnvAPIVersion = "PLACECTL_API_VERSION"
	EnvToken      = "PLACECTL_TOKEN"
	EnvConfigPath = "PLACECTL_CONFIG"
	EnvCACert     = "PLACECTL_CACERT"
)

// DefaultFileName is the config file looked up in the working directory and
// under the user config directory.
const DefaultFileName = "placectl.toml"

// Config is the resolved client configuration.
type Config struct {
	Endpoint    string
	APIVersion  string
	ServiceType string
	Token       string
	CACert      string
	Insecure    bool
	Timeout     time.Duration
}

func Default() Config {
	return Config{
		APIVersion:  "1.0",
		ServiceType: "placement",
		Timeout:     30 * time.Second,
	}
}

// fileConfig mirrors the TOML document. Values stay raw here; parsing and
// defaulting happen during the merge.
type fileConfig struct {
	Endpoint    string `toml:"endpoint"`
	APIVersion  string `toml:"api_version"`
	ServiceType string `toml:"service_type"`
	Token       string `toml:"token"`
	CACert      string `toml:"ca_cert"`
	Insecure    bool   `toml:"insecure"`
	Timeout     string `toml:"timeout"`
}

// Load reads one TOML file over the defaults. Keys absent from the file
// keep their default; present-but-empty keys override.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("endpoint") {
		cfg.Endpoint = strings.TrimSpace(raw.Endpoint)
	}
	if meta.IsDefined("api_version") {
		cfg.APIVersion = strings.TrimSpace(raw.APIVersion)
	}
	if meta.IsDefined("service_type") {
		cfg.ServiceType = strings.TrimSpace(raw.ServiceType)
	}
	if meta.IsDefined("token") {
		cfg.Token = strings.TrimSpace(raw.Token)
	}
	if meta.IsDefined("ca_cert") {
		cfg.CACert = strings.TrimSpace(raw.CACert)
	}
	if meta.IsDefined("insecure") {
		cfg.Insecure = raw.Insecure
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	return cfg, nil
}

// Resolve builds the effective configuration: defaults, then the config
// file (explicit path, PLACECTL_CONFIG, or a discovered placectl.toml),
// then environment overrides. A missing discovered file is not an error; a
// missing explicit one is.
func Resolve(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
		explicit = path != ""
	}
	if !explicit {
		path = discover()
	}

	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case !explicit && errors.Is(err, fs.ErrNotExist):
			// discovered file raced away, keep defaults
		default:
			return Config{}, err
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func discover() string {
	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName
	}
	if dir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(dir, "placectl", DefaultFileName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvEndpoint)); v != "" {
		cfg.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIVersion)); v != "" {
		cfg.APIVersion = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		cfg.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCACert)); v != "" {
		cfg.CACert = v
	}
}

// Validate checks the fields every network operation needs.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return fmt.Errorf("config missing endpoint")
	}
	if strings.TrimSpace(cfg.ServiceType) == "" {
		return fmt.Errorf("config missing service_type")
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("config timeout must not be negative")
	}
	if v := strings.TrimSpace(cfg.APIVersion); v != "" && !microversion.Negotiable(v) {
		if _, err := microversion.Parse(v); err != nil {
			return fmt.Errorf("config api_version: %w", err)
		}
	}
	return nil
}
