package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, Validate(cfg))
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "VERBOSE"
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsBadMaxRetx(t *testing.T) {
	cfg := GetDefaultConfig()
	b := cfg.Bearers["default"]
	b.MaxRetxThreshold = 5
	cfg.Bearers["default"] = b
	require.Error(t, Validate(cfg))
}

func TestToAMConfigMapsProfile(t *testing.T) {
	b := defaultBearerConfig()
	b.Profile = "nr18"
	amCfg := b.ToAMConfig("lcid-5")
	require.Equal(t, "lcid-5", amCfg.LCID)
	require.EqualValues(t, 18, amCfg.Profile.SNBits)
	require.EqualValues(t, 80, amCfg.TPollRetransmitMs)
}
