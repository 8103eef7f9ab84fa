package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	return fs
}

func TestLoadAppliesDefaultsAndRequiresCoordinatorKey(t *testing.T) {
	fs := newFlagSet()
	require.NoError(t, fs.Parse(nil))

	_, err := Load(fs)
	require.Error(t, err, "public_key_bytes is required and unset by default")
}

func TestLoadAcceptsFlagOverrides(t *testing.T) {
	fs := newFlagSet()
	require.NoError(t, fs.Parse([]string{
		"--coordinator.public_key_bytes=ABCDE",
		"--protocol.mwm=9",
	}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.EqualValues(t, 9, cfg.Protocol.MWM)
	assert.Equal(t, "kerl", cfg.Coordinator.SpongeType)
	assert.EqualValues(t, 50, cfg.Workers.MilestoneSyncCount)
}

func TestLoadRejectsUnknownSpongeType(t *testing.T) {
	fs := newFlagSet()
	require.NoError(t, fs.Parse([]string{
		"--coordinator.public_key_bytes=ABCDE",
		"--coordinator.sponge_type=sha3",
	}))

	_, err := Load(fs)
	require.Error(t, err)
}
