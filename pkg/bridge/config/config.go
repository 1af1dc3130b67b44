// Package config loads process configuration for the bridge from an optional
// bridge.yaml file, BRIDGE_* environment variables, and built-in defaults, in
// ascending precedence. Command-line flags in cmd/bridge override the result
// after loading.
//
// Every key carries a default, so a bridge with no config file at all comes
// up runnable: SQLite store in ./bridge.db, PYLOGIX backend, trap listener
// and status server off.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sections
// ─────────────────────────────────────────────────────────────────────────────

// Config is the full process configuration tree.
type Config struct {
	Log       Log       `mapstructure:"log"`
	DB        DB        `mapstructure:"db"`
	EIP       EIP       `mapstructure:"eip"`
	Seed      Seed      `mapstructure:"seed"`
	Retention Retention `mapstructure:"retention"`
	Poller    Poller    `mapstructure:"poller"`
	Trap      Trap      `mapstructure:"trap"`
	Status    Status    `mapstructure:"status"`
	Audit     Audit     `mapstructure:"audit"`
}

// Log controls the slog handler.
type Log struct {
	// Level is debug, info, warn, or error.
	Level string `mapstructure:"level"`
	// Format is json or text.
	Format string `mapstructure:"format"`
}

// DB selects the config store backend.
type DB struct {
	// Driver is sqlite or postgres.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// EIP selects the EtherNet/IP client backend.
type EIP struct {
	// Backend is PYLOGIX, CPPPO, or MOCK (case-insensitive).
	Backend string `mapstructure:"backend"`
}

// Seed names an optional YAML bootstrap file imported at startup.
type Seed struct {
	Path string `mapstructure:"path"`
}

// Retention tunes the daily sample purge.
type Retention struct {
	// Days is the sample age ceiling; 0 disables purging.
	Days int `mapstructure:"days"`
}

// Poller tunes the polling engine.
type Poller struct {
	// Workers is the per-protocol worker pool size.
	Workers int `mapstructure:"workers"`
}

// Trap configures the optional SNMP trap listener.
type Trap struct {
	Enabled   bool   `mapstructure:"enabled"`
	Listen    string `mapstructure:"listen"`
	Community string `mapstructure:"community"`
}

// Status configures the optional HTTP status server.
type Status struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// Audit configures the optional JSONL publish audit file.
type Audit struct {
	// Path enables the audit trail when non-empty.
	Path       string `mapstructure:"path"`
	MaxBytes   int64  `mapstructure:"max_bytes"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Loading
// ─────────────────────────────────────────────────────────────────────────────

// Load reads configuration. With a non-empty path the named file must exist
// and parse; with an empty path a bridge.yaml in the working directory is
// used when present and silently skipped when not. Environment variables
// override file values key by key: BRIDGE_LOG_LEVEL, BRIDGE_DB_DSN,
// BRIDGE_TRAP_ENABLED, and so on.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("bridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
		// No file anywhere: defaults plus environment only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key. Keys without defaults would be invisible
// to environment-only overrides, so the list is exhaustive.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "bridge.db")

	v.SetDefault("eip.backend", "PYLOGIX")

	v.SetDefault("seed.path", "")

	v.SetDefault("retention.days", 7)

	v.SetDefault("poller.workers", 5)

	v.SetDefault("trap.enabled", false)
	v.SetDefault("trap.listen", "0.0.0.0:162")
	v.SetDefault("trap.community", "public")

	v.SetDefault("status.enabled", false)
	v.SetDefault("status.listen", ":8080")

	v.SetDefault("audit.path", "")
	v.SetDefault("audit.max_bytes", int64(10*1024*1024))
	v.SetDefault("audit.max_backups", 5)
}
