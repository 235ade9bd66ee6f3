package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ppde/internal/classify"
	"ppde/internal/errors"
	"ppde/internal/gate"
	"ppde/internal/paths"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = 1

// EnvPrefix prefixes environment overrides, e.g. PPDE_GATE_OUTPUTCAP.
const EnvPrefix = "PPDE"

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StoreSnapshot = "snapshot"
	StoreNone     = "none"
)

// Config represents the complete ppde configuration
type Config struct {
	Version int `json:"version" mapstructure:"version" toml:"version"`

	Gate       gate.Config      `json:"gate" mapstructure:"gate" toml:"gate"`
	Classifier classify.Cutoffs `json:"classifier" mapstructure:"classifier" toml:"classifier"`
	History    HistoryConfig    `json:"history" mapstructure:"history" toml:"history"`
	Baseline   BaselineConfig   `json:"baseline" mapstructure:"baseline" toml:"baseline"`
	Scan       ScanConfig       `json:"scan" mapstructure:"scan" toml:"scan"`
	Store      StoreConfig      `json:"store" mapstructure:"store" toml:"store"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging" toml:"logging"`
}

// HistoryConfig controls which commits form the personal baseline.
type HistoryConfig struct {
	MaxAgeDays int `json:"maxAgeDays" mapstructure:"maxAgeDays" toml:"maxAgeDays"`
	MaxCommits int `json:"maxCommits" mapstructure:"maxCommits" toml:"maxCommits"`
	// Author overrides user.email when set.
	Author    string `json:"author" mapstructure:"author" toml:"author"`
	TimeoutMs int    `json:"timeoutMs" mapstructure:"timeoutMs" toml:"timeoutMs"`
}

// Timeout returns the git command timeout.
func (h HistoryConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutMs) * time.Millisecond
}

// BaselineConfig controls history replay.
type BaselineConfig struct {
	Workers  int  `json:"workers" mapstructure:"workers" toml:"workers"`
	UseCache bool `json:"useCache" mapstructure:"useCache" toml:"useCache"`
}

// ScanConfig contains file walking configuration
type ScanConfig struct {
	Ignore []string `json:"ignore" mapstructure:"ignore" toml:"ignore"`
}

// StoreConfig selects where the frequency table comes from.
type StoreConfig struct {
	Backend      string `json:"backend" mapstructure:"backend" toml:"backend"`
	SnapshotPath string `json:"snapshotPath" mapstructure:"snapshotPath" toml:"snapshotPath"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level" toml:"level"`
	FileLevel string `json:"fileLevel" mapstructure:"fileLevel" toml:"fileLevel"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:    CurrentVersion,
		Gate:       gate.DefaultConfig(),
		Classifier: classify.DefaultCutoffs(),
		History: HistoryConfig{
			MaxAgeDays: 180,
			MaxCommits: 250,
			TimeoutMs:  5000,
		},
		Baseline: BaselineConfig{
			Workers:  4,
			UseCache: true,
		},
		Scan: ScanConfig{
			Ignore: []string{},
		},
		Store: StoreConfig{
			Backend: StoreSQLite,
		},
		Logging: LoggingConfig{
			Level:     "warn",
			FileLevel: "info",
		},
	}
}

// setDefaults registers every key so that env overrides reach keys absent
// from the config file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)

	v.SetDefault("gate.minObservations", d.Gate.MinObservations)
	v.SetDefault("gate.stableThreshold", d.Gate.StableThreshold)
	v.SetDefault("gate.volatileThreshold", d.Gate.VolatileThreshold)
	v.SetDefault("gate.outputCap", d.Gate.OutputCap)
	v.SetDefault("gate.collapseDuplicates", d.Gate.CollapseDuplicates)

	v.SetDefault("classifier.newDays", d.Classifier.NewDays)
	v.SetDefault("classifier.recentDays", d.Classifier.RecentDays)
	v.SetDefault("classifier.fixThreshold", d.Classifier.FixThreshold)
	v.SetDefault("classifier.lineTiers", d.Classifier.LineTiers)
	v.SetDefault("classifier.cyclomaticTiers", d.Classifier.CyclomaticTiers)

	v.SetDefault("history.maxAgeDays", d.History.MaxAgeDays)
	v.SetDefault("history.maxCommits", d.History.MaxCommits)
	v.SetDefault("history.author", d.History.Author)
	v.SetDefault("history.timeoutMs", d.History.TimeoutMs)

	v.SetDefault("baseline.workers", d.Baseline.Workers)
	v.SetDefault("baseline.useCache", d.Baseline.UseCache)

	v.SetDefault("scan.ignore", d.Scan.Ignore)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.snapshotPath", d.Store.SnapshotPath)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.fileLevel", d.Logging.FileLevel)
}

// LoadConfig loads configuration from .ppde/config.json, applies PPDE_*
// environment overrides, and validates the result. A missing file yields
// the defaults (still subject to env overrides).
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(paths.GetRepoDataDir(repoRoot))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, errors.NewPpdeError(errors.ConfigInvalid,
				"failed to read "+paths.GetConfigPath(repoRoot), err, nil)
		}
	}

	// Every key has a registered default, so decoding into a zero value
	// leaves no field unset.
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.NewPpdeError(errors.ConfigInvalid, "failed to decode configuration", err, nil)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.NewPpdeError(errors.ConfigInvalid, err.Error(), err, nil)
	}
	return cfg, nil
}

// Save writes the configuration to .ppde/config.json
func (c *Config) Save(repoRoot string) error {
	if _, err := paths.EnsureRepoDataDir(repoRoot); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	return os.WriteFile(paths.GetConfigPath(repoRoot), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}
	if err := c.Gate.Validate(); err != nil {
		return &ConfigError{Field: "gate", Message: err.Error()}
	}
	if err := c.Classifier.Validate(); err != nil {
		return &ConfigError{Field: "classifier", Message: err.Error()}
	}
	if c.History.MaxAgeDays <= 0 {
		return &ConfigError{Field: "history.maxAgeDays", Message: "must be positive"}
	}
	if c.History.MaxCommits <= 0 {
		return &ConfigError{Field: "history.maxCommits", Message: "must be positive"}
	}
	if c.History.TimeoutMs < 0 {
		return &ConfigError{Field: "history.timeoutMs", Message: "must not be negative"}
	}
	if c.Baseline.Workers < 1 {
		return &ConfigError{Field: "baseline.workers", Message: "must be at least 1"}
	}
	switch c.Store.Backend {
	case StoreSQLite, StoreNone:
	case StoreSnapshot:
		if c.Store.SnapshotPath == "" {
			return &ConfigError{Field: "store.snapshotPath", Message: "required when store.backend is snapshot"}
		}
	default:
		return &ConfigError{Field: "store.backend", Message: fmt.Sprintf("unknown backend %q (expected sqlite, snapshot or none)", c.Store.Backend)}
	}
	return nil
}

// SnapshotPath resolves the configured snapshot path against repoRoot.
func (c *Config) SnapshotPath(repoRoot string) string {
	if c.Store.SnapshotPath == "" || filepath.IsAbs(c.Store.SnapshotPath) {
		return c.Store.SnapshotPath
	}
	return filepath.Join(repoRoot, c.Store.SnapshotPath)
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
