// Package daemon holds the runtime configuration for abonod.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full abonod configuration, read from config.toml.
type Config struct {
	API     APIConfig     `toml:"api"`
	Store   StoreConfig   `toml:"store"`
	Events  EventsConfig  `toml:"events"`
	Metrics MetricsConfig `toml:"metrics"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig selects and configures the ledger backend.
type StoreConfig struct {
	Backend     string `toml:"backend"` // "sqlite" or "postgres"
	Path        string `toml:"path"`    // sqlite database file
	DSN         string `toml:"dsn"`     // postgres connection string
	LockTimeout string `toml:"lock_timeout"`
}

// LockTimeoutDuration parses the configured lock timeout, defaulting to 5s.
func (c StoreConfig) LockTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.LockTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// EventsConfig configures the Kafka event publisher.
type EventsConfig struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8480,
		},
		Store: StoreConfig{
			Backend:     "sqlite",
			Path:        filepath.Join(dataDir(), "ledger.db"),
			LockTimeout: "5s",
		},
		Events: EventsConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
			Topic:   "abono.payments",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() string {
	return filepath.Join(dataDir(), "config.toml")
}

// LoadConfig reads the config file at path on top of the defaults. A
// missing file is not an error. ABONO_DSN and ABONO_BROKERS environment
// variables override the file so secrets can stay out of it.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if dsn := os.Getenv("ABONO_DSN"); dsn != "" {
		cfg.Store.DSN = dsn
	}
	if brokers := os.Getenv("ABONO_BROKERS"); brokers != "" {
		cfg.Events.Brokers = strings.Split(brokers, ",")
	}
	return cfg, nil
}

// dataDir returns the abonod data directory, ~/.abono unless ABONO_HOME
// overrides it.
func dataDir() string {
	if env := os.Getenv("ABONO_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".abono")
}
