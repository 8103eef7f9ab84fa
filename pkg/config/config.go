// Package config loads the node's configuration: command-line flags and an
// optional config file merged by viper, unmarshalled into typed structs per
// component (SPEC_FULL.md §2.1, spec.md §6 "Configuration (enumerated)").
package config

import (
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
)

// ErrInvalidConfig is wrapped with the offending key/value when validation
// fails after load.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// CoordinatorConfig carries the coordinator identity and sponge selection
// the Milestone Validator checks every candidate milestone against.
type CoordinatorConfig struct {
	PublicKeyBytes  string `mapstructure:"public_key_bytes"`
	SpongeType      string `mapstructure:"sponge_type"` // kerl | curl-p-27 | curl-p-81
	SecurityLevel   int    `mapstructure:"security_level"`
	MerkleTreeDepth int    `mapstructure:"merkle_tree_depth"`
}

// ProtocolConfig carries the handshake-checked protocol parameters.
type ProtocolConfig struct {
	MWM             uint8         `mapstructure:"mwm"`
	HandshakeWindow time.Duration `mapstructure:"handshake_window"`
}

// WorkersConfig carries the channel capacities and batch sizes of §5/§6.
type WorkersConfig struct {
	HasherInputBound       int             `mapstructure:"hasher_input_bound"`
	HasherOutputBound      int             `mapstructure:"hasher_output_bound"`
	TransactionWorkerCache int             `mapstructure:"transaction_worker_cache"`
	MilestoneSyncCount     milestone.Index `mapstructure:"ms_sync_count"`
	StatusInterval         time.Duration   `mapstructure:"status_interval"`
}

// PeeringConfig carries the gossip listener and bootstrap peer list.
type PeeringConfig struct {
	ListenPort uint16   `mapstructure:"listen_port"`
	Peers      []string `mapstructure:"peers"`
}

// SnapshotConfig carries the pruner's retention policy.
type SnapshotConfig struct {
	PruningDelay   milestone.Index `mapstructure:"pruning_delay"`
	UnconfirmedTTL time.Duration   `mapstructure:"unconfirmed_ttl"`
}

// Config is the fully-assembled, validated node configuration.
type Config struct {
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Protocol    ProtocolConfig    `mapstructure:"protocol"`
	Workers     WorkersConfig     `mapstructure:"workers"`
	Peering     PeeringConfig     `mapstructure:"peering"`
	Snapshot    SnapshotConfig    `mapstructure:"snapshot"`
}

func defaults() *viper.Viper {
	v := viper.New()
	v.SetDefault("coordinator.sponge_type", "kerl")
	v.SetDefault("coordinator.security_level", 2)
	v.SetDefault("coordinator.merkle_tree_depth", 20)
	v.SetDefault("protocol.mwm", 14)
	v.SetDefault("protocol.handshake_window", 20*time.Second)
	v.SetDefault("workers.hasher_input_bound", 1000)
	v.SetDefault("workers.hasher_output_bound", 1000)
	v.SetDefault("workers.transaction_worker_cache", 50000)
	v.SetDefault("workers.ms_sync_count", 50)
	v.SetDefault("workers.status_interval", 5*time.Second)
	v.SetDefault("peering.listen_port", 15600)
	v.SetDefault("snapshot.pruning_delay", 60480)
	v.SetDefault("snapshot.unconfirmed_ttl", 24*time.Hour)
	return v
}

// Flags registers the command-line flags this package reads, bound into fs
// so callers may add their own flags to the same set before parsing.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "config.json", "path to the config file")
	fs.String("coordinator.public_key_bytes", "", "coordinator public key (trytes)")
	fs.String("coordinator.sponge_type", "kerl", "coordinator milestone sponge: kerl, curl-p-27 or curl-p-81")
	fs.Uint8("protocol.mwm", 14, "minimum weight magnitude")
	fs.Duration("protocol.handshake_window", 20*time.Second, "accepted handshake timestamp skew")
	fs.Uint16("peering.listen_port", 15600, "gossip TCP listen port")
	fs.StringSlice("peering.peers", nil, "bootstrap peer addresses")
}

// Load merges defaults, an optional JSON/YAML/TOML config file at the
// "config" flag path, and the already-parsed flag set, then unmarshals the
// result into a validated Config.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := defaults()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "binding flags")
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "reading config file %q", path)
			}
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, errors.Wrap(err, "unmarshalling configuration")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Coordinator.SpongeType {
	case "kerl", "curl-p-27", "curl-p-81":
	default:
		return errors.Wrapf(ErrInvalidConfig, "coordinator.sponge_type: %q", c.Coordinator.SpongeType)
	}
	if c.Coordinator.PublicKeyBytes == "" {
		return errors.Wrap(ErrInvalidConfig, "coordinator.public_key_bytes: required")
	}
	if c.Workers.MilestoneSyncCount == 0 {
		return errors.Wrap(ErrInvalidConfig, "workers.ms_sync_count: must be > 0")
	}
	return nil
}
