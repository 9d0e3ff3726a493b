// Package config loads process configuration for an RLC AM bearer (or a
// simulator driving several of them) from environment variables, a YAML
// file, and defaults, in that order of decreasing priority.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/rlcam/pkg/rlc/am"
	"github.com/marmos91/rlcam/pkg/rlc/pdu"
)

// Config is the top-level process configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (RLCAM_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics controls the Prometheus metrics registry.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Bearers lists the AM bearers to bring up, keyed by LCID.
	Bearers map[string]BearerConfig `mapstructure:"bearers" yaml:"bearers"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled controls whether AM metrics are registered.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// BearerConfig is the RRC-provided configuration for one AM bearer (§6
// Configuration inputs), with validation tags in place of am.Config's
// hand-rolled Validate so config-file/env mistakes surface with field-level
// messages before an entity is ever constructed.
type BearerConfig struct {
	// Profile selects the SN/LI/SO field widths: lte, nr12, or nr18.
	Profile string `mapstructure:"profile" validate:"required,oneof=lte nr12 nr18" yaml:"profile"`

	// TPollRetransmit is t-PollRetransmit's duration, in TTIs.
	TPollRetransmit time.Duration `mapstructure:"t_poll_retransmit" validate:"required,gt=0" yaml:"t_poll_retransmit"`

	// PollPDU is the PDU-count threshold before forcing a poll; 0 disables
	// it (see am.Config.PollPDU).
	PollPDU uint32 `mapstructure:"poll_pdu" yaml:"poll_pdu"`

	// PollByte is the byte-count threshold before forcing a poll; 0
	// disables it.
	PollByte uint64 `mapstructure:"poll_byte" yaml:"poll_byte"`

	// MaxRetxThreshold is the retx_count at which MaxRetxReached fires.
	MaxRetxThreshold uint32 `mapstructure:"max_retx_threshold" validate:"required,oneof=1 2 3 4 6 8 16 32" yaml:"max_retx_threshold"`

	// TReordering is t-Reordering's duration, in TTIs.
	TReordering time.Duration `mapstructure:"t_reordering" validate:"required,gt=0" yaml:"t_reordering"`

	// TStatusProhibit is t-StatusProhibit's duration, in TTIs.
	TStatusProhibit time.Duration `mapstructure:"t_status_prohibit" validate:"required,gt=0" yaml:"t_status_prohibit"`

	// TxQueueCapacity bounds the Tx SDU queue.
	TxQueueCapacity int `mapstructure:"tx_queue_capacity" validate:"gte=0" yaml:"tx_queue_capacity"`

	// PollFallbackEvery is the (e) fallback heuristic described on
	// am.Config.PollFallbackEvery.
	PollFallbackEvery uint32 `mapstructure:"poll_fallback_every" yaml:"poll_fallback_every"`
}

// profiles maps the config-file profile name to its pdu.Profile.
var profiles = map[string]pdu.Profile{
	"lte":  pdu.LTE,
	"nr12": pdu.NR12,
	"nr18": pdu.NR18,
}

// ToAMConfig converts a validated BearerConfig, for lcid, into the am
// package's runtime configuration. TTIs are assumed to be 1ms, matching
// the constant durations used throughout §6.
func (b BearerConfig) ToAMConfig(lcid string) am.Config {
	return am.Config{
		LCID:              lcid,
		Profile:           profiles[strings.ToLower(b.Profile)],
		TPollRetransmitMs: uint32(b.TPollRetransmit.Milliseconds()),
		PollPDU:           b.PollPDU,
		PollByte:          b.PollByte,
		MaxRetxThreshold:  b.MaxRetxThreshold,
		TReorderingMs:     uint32(b.TReordering.Milliseconds()),
		TStatusProhibitMs: uint32(b.TStatusProhibit.Milliseconds()),
		TxQueueCapacity:   b.TxQueueCapacity,
		PollFallbackEvery: b.PollFallbackEvery,
	}
}

// Load loads configuration from file, environment, and defaults. When no
// configuration file is found it returns GetDefaultConfig() as is, and
// environment variables are not consulted; with a file, environment
// variables override only the keys the file sets.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg to path in YAML form.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper wires environment-variable and config-file search behavior.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("RLCAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// durationDecodeHook lets config files and env vars express durations as
// "80ms", "1s", etc. rather than raw nanosecond integers.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v) * time.Millisecond, nil
		case int64:
			return time.Duration(v) * time.Millisecond, nil
		case float64:
			return time.Duration(v) * time.Millisecond, nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rlcam")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "rlcam")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// validate is shared across calls: it caches struct metadata internally,
// so constructing it once per process (matching the teacher's registry
// pattern for other shared clients) avoids repeated reflection setup.
var validate = validator.New()

// Validate checks cfg's struct tags and bearer-level semantics.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg.Logging); err != nil {
		return err
	}
	for lcid, b := range cfg.Bearers {
		if err := validate.Struct(b); err != nil {
			return fmt.Errorf("bearer %q: %w", lcid, err)
		}
	}
	return nil
}
