// Package config provides configuration management for the penf-coref command-line tool.
// It supports loading configuration from YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/penf-coref/pkg/coref"
	"github.com/otherjamesbrown/penf-coref/pkg/db"
	"github.com/otherjamesbrown/penf-coref/pkg/logging"
	"github.com/otherjamesbrown/penf-coref/pkg/workers"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// LogFormat selects how log lines are rendered.
type LogFormat string

const (
	// LogFormatAuto uses console output on a terminal and JSON otherwise.
	LogFormatAuto    LogFormat = "auto"
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)

// Scorer names.
const (
	ScorerTable  = "table"
	ScorerLinear = "linear"
)

// Default configuration values.
const (
	DefaultTimeout      = 10 * time.Minute
	DefaultOutputFormat = OutputFormatText
	DefaultConfigDir    = ".penf-coref"
	DefaultConfigFile   = "config.yaml"
	DefaultScratchFile  = "scratch.db"
)

// ResolverConfig holds the algorithm settings passed to coref.Config.
type ResolverConfig struct {
	// Thresholds is one value for every pair kind, or four values in the order
	// pronoun/pronoun, pronoun/non-pronoun, non-pronoun/pronoun, non-pronoun/non-pronoun.
	Thresholds []float64 `yaml:"thresholds"`

	MaxMentionDistance                int  `yaml:"max_mention_distance"`
	MaxMentionDistanceWithStringMatch int  `yaml:"max_mention_distance_with_string_match"`
	StrictBestFirst                   bool `yaml:"strict_best_first"`
	ScorerTotal                       bool `yaml:"scorer_total"`

	// Scorer is "table" (precomputed pair scores) or "linear".
	Scorer string `yaml:"scorer"`

	// Linear holds the logistic model used by the linear scorer.
	Linear LinearConfig `yaml:"linear,omitempty"`

	// Dictionary is an optional YAML pronoun dictionary replacing the built-in one.
	Dictionary string `yaml:"dictionary,omitempty"`
}

// LinearConfig is a logistic model over pair features.
type LinearConfig struct {
	Bias    float64            `yaml:"bias"`
	Weights map[string]float64 `yaml:"weights,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string    `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// ScratchConfig holds the per-run artifact store settings.
type ScratchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // defaults to <config dir>/scratch.db
}

// RedisConfig holds score cache settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr      string        `yaml:"addr,omitempty"`
	Password  string        `yaml:"password,omitempty"`
	DB        int           `yaml:"db"`
	Namespace string        `yaml:"namespace,omitempty"`
	TTL       time.Duration `yaml:"ttl"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// Timeout bounds a single resolve or batch invocation.
	Timeout time.Duration `yaml:"timeout"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	Log      LogConfig          `yaml:"log"`
	Resolver ResolverConfig     `yaml:"resolver"`
	Workers  workers.PoolConfig `yaml:"workers"`
	Scratch  ScratchConfig      `yaml:"scratch"`
	Redis    RedisConfig        `yaml:"redis"`

	// Persist saves resolved partitions to Postgres.
	Persist  bool      `yaml:"persist"`
	Postgres db.Config `yaml:"postgres"`

	// MetricsAddr serves /metrics and /version during batch runs when set.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		Timeout:      DefaultTimeout,
		OutputFormat: DefaultOutputFormat,
		Log: LogConfig{
			Level:  string(logging.LevelInfo),
			Format: LogFormatAuto,
		},
		Resolver: ResolverConfig{
			Thresholds:                        []float64{coref.DefaultThreshold},
			MaxMentionDistance:                coref.DefaultMaxMentionDistance,
			MaxMentionDistanceWithStringMatch: coref.DefaultMaxMentionDistanceWithStringMatch,
			Scorer:                            ScorerTable,
		},
		Workers:  workers.DefaultPoolConfig(),
		Postgres: *db.DefaultConfig(),
	}
}

// ConfigDir returns the configuration directory path.
// Uses $PENF_COREF_CONFIG_DIR if set, otherwise ~/.penf-coref
func ConfigDir() (string, error) {
	if dir := os.Getenv("PENF_COREF_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.penf-coref/config.yaml or $PENF_COREF_CONFIG_DIR/config.yaml)
// 3. Environment variables (PENF_COREF_*, PENF_COREF_DB_* for Postgres)
func LoadConfig() (*CLIConfig, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg. Keys absent from the file keep
// their current values.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) error {
	if v := os.Getenv("PENF_COREF_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PENF_COREF_TIMEOUT: %w", err)
		}
		cfg.Timeout = timeout
	}

	if v := os.Getenv("PENF_COREF_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if isTrue(os.Getenv("PENF_COREF_DEBUG")) {
		cfg.Debug = true
	}

	if v := os.Getenv("PENF_COREF_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("PENF_COREF_LOG_FORMAT"); v != "" {
		cfg.Log.Format = LogFormat(v)
	}

	if err := loadResolverFromEnv(&cfg.Resolver); err != nil {
		return err
	}

	if v := os.Getenv("PENF_COREF_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PENF_COREF_WORKERS: %w", err)
		}
		cfg.Workers.Count = n
	}

	if v := os.Getenv("PENF_COREF_SCRATCH_PATH"); v != "" {
		cfg.Scratch.Path = v
		cfg.Scratch.Enabled = true
	}

	if v := os.Getenv("PENF_COREF_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PENF_COREF_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PENF_COREF_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PENF_COREF_REDIS_DB: %w", err)
		}
		cfg.Redis.DB = n
	}

	if isTrue(os.Getenv("PENF_COREF_PERSIST")) {
		cfg.Persist = true
	}
	db.ApplyEnv(&cfg.Postgres)

	if v := os.Getenv("PENF_COREF_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	return nil
}

func loadResolverFromEnv(rc *ResolverConfig) error {
	if v := os.Getenv("PENF_COREF_THRESHOLDS"); v != "" {
		vals, err := ParseThresholds(v)
		if err != nil {
			return fmt.Errorf("PENF_COREF_THRESHOLDS: %w", err)
		}
		rc.Thresholds = vals
	}
	if v := os.Getenv("PENF_COREF_MAX_MENTION_DISTANCE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PENF_COREF_MAX_MENTION_DISTANCE: %w", err)
		}
		rc.MaxMentionDistance = n
	}
	if v := os.Getenv("PENF_COREF_MAX_STRING_MATCH_DISTANCE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PENF_COREF_MAX_STRING_MATCH_DISTANCE: %w", err)
		}
		rc.MaxMentionDistanceWithStringMatch = n
	}
	if isTrue(os.Getenv("PENF_COREF_STRICT_BEST_FIRST")) {
		rc.StrictBestFirst = true
	}
	if isTrue(os.Getenv("PENF_COREF_SCORER_TOTAL")) {
		rc.ScorerTotal = true
	}
	if v := os.Getenv("PENF_COREF_SCORER"); v != "" {
		rc.Scorer = v
	}
	if v := os.Getenv("PENF_COREF_DICTIONARY"); v != "" {
		rc.Dictionary = v
	}
	return nil
}

func isTrue(v string) bool {
	return v == "true" || v == "1"
}

// ParseThresholds parses a comma-separated list of one or four thresholds.
func ParseThresholds(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing threshold %q: %w", p, err)
		}
		vals = append(vals, v)
	}
	if _, err := coref.ThresholdsFromValues(vals); err != nil {
		return nil, err
	}
	return vals, nil
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	switch c.Log.Format {
	case LogFormatAuto, LogFormatJSON, LogFormatConsole:
	default:
		return fmt.Errorf("invalid log format: %q (must be auto, json, or console)", c.Log.Format)
	}

	switch c.Resolver.Scorer {
	case ScorerTable:
	case ScorerLinear:
		if len(c.Resolver.Linear.Weights) == 0 {
			return fmt.Errorf("linear scorer requires resolver.linear.weights")
		}
	default:
		return fmt.Errorf("invalid scorer: %q (must be table or linear)", c.Resolver.Scorer)
	}

	if c.Workers.Count < 0 {
		return fmt.Errorf("workers.count must not be negative")
	}

	if _, err := c.CorefConfig(); err != nil {
		return err
	}

	if c.Persist {
		if err := c.Postgres.Validate(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}

	return nil
}

// CorefConfig returns the validated resolver configuration.
func (c *CLIConfig) CorefConfig() (coref.Config, error) {
	thresholds, err := coref.ThresholdsFromValues(c.Resolver.Thresholds)
	if err != nil {
		return coref.Config{}, err
	}
	cfg := coref.Config{
		Thresholds:                        thresholds,
		MaxMentionDistance:                c.Resolver.MaxMentionDistance,
		MaxMentionDistanceWithStringMatch: c.Resolver.MaxMentionDistanceWithStringMatch,
		StrictBestFirst:                   c.Resolver.StrictBestFirst,
		ScorerTotal:                       c.Resolver.ScorerTotal,
	}
	if err := cfg.Validate(); err != nil {
		return coref.Config{}, err
	}
	return cfg, nil
}

// Scorer builds the configured pair scorer.
func (c *CLIConfig) Scorer() coref.Scorer {
	if c.Resolver.Scorer == ScorerLinear {
		return coref.NewLinearScorer(c.Resolver.Linear.Bias, c.Resolver.Linear.Weights)
	}
	return coref.TableScorer{}
}

// LoggingConfig returns the logger configuration. terminal reports whether
// stderr is a terminal and decides the auto format.
func (c *CLIConfig) LoggingConfig(terminal bool) *logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(c.Log.Level)
	if c.Debug {
		lc.Level = logging.LevelDebug
	}
	switch c.Log.Format {
	case LogFormatJSON:
		lc.JSONFormat = true
	case LogFormatConsole:
		lc.NoColor = !terminal
	default:
		lc.JSONFormat = !terminal
	}
	return lc
}

// ScratchPath returns the scratch database path, defaulting into the config directory.
func (c *CLIConfig) ScratchPath() (string, error) {
	if c.Scratch.Path != "" {
		return ExpandPath(c.Scratch.Path)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultScratchFile), nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// Redacted returns a copy safe to print: passwords are masked.
func (c *CLIConfig) Redacted() *CLIConfig {
	out := *c
	if out.Postgres.Password != "" {
		out.Postgres.Password = "xxxxx"
	}
	if out.Redis.Password != "" {
		out.Redis.Password = "xxxxx"
	}
	return &out
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
