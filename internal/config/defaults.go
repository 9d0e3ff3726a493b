package config

import "time"

// GetDefaultConfig returns a Config with no bearers configured beyond a
// single "default" one, suitable as a starting point for the simulator.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Bearers: map[string]BearerConfig{
			"default": defaultBearerConfig(),
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

func defaultBearerConfig() BearerConfig {
	return BearerConfig{
		Profile:           "lte",
		TPollRetransmit:   80 * time.Millisecond,
		PollPDU:           16,
		PollByte:          0,
		MaxRetxThreshold:  4,
		TReordering:       45 * time.Millisecond,
		TStatusProhibit:   10 * time.Millisecond,
		TxQueueCapacity:   128,
		PollFallbackEvery: 0,
	}
}

// ApplyDefaults fills in zero-valued fields left unspecified by the config
// file or environment.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	if cfg.Bearers == nil {
		cfg.Bearers = map[string]BearerConfig{}
	}
	for lcid, b := range cfg.Bearers {
		applyBearerDefaults(&b)
		cfg.Bearers[lcid] = b
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyBearerDefaults(cfg *BearerConfig) {
	if cfg.Profile == "" {
		cfg.Profile = "lte"
	}
	if cfg.TPollRetransmit == 0 {
		cfg.TPollRetransmit = 80 * time.Millisecond
	}
	if cfg.TReordering == 0 {
		cfg.TReordering = 45 * time.Millisecond
	}
	if cfg.TStatusProhibit == 0 {
		cfg.TStatusProhibit = 10 * time.Millisecond
	}
	if cfg.TxQueueCapacity == 0 {
		cfg.TxQueueCapacity = 128
	}
	if cfg.MaxRetxThreshold == 0 {
		cfg.MaxRetxThreshold = 4
	}
}
