// Package config provides configuration structures and defaults for the metadata store.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
)

// DefaultPath is where the command-line tool looks for its configuration.
const DefaultPath = "/etc/luksmeta.toml"

const (
	defaultSyncMode = "fsync"
)

// Config holds the tunable behavior of the metadata store.
type Config struct {
	// IgnoreKeyslotStatus lets automatic slot selection pick a slot whose
	// LUKS key slot is active. By default only slots with inactive key
	// material are chosen.
	IgnoreKeyslotStatus bool `toml:"ignore_keyslot_status"`
	// SyncMode is the durability barrier issued after every write:
	// "fsync" or "fdatasync".
	SyncMode string `toml:"sync_mode"`
}

// DefaultConfig returns a Config struct populated with default values.
func DefaultConfig() *Config {
	return &Config{
		SyncMode: defaultSyncMode,
	}
}

// FillDefaults sets any zero-value fields in the Config to their default values.
func (c *Config) FillDefaults() {
	def := DefaultConfig()
	if c.SyncMode == "" {
		c.SyncMode = def.SyncMode
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch c.SyncMode {
	case "fsync", "fdatasync":
		return nil
	default:
		return fmt.Errorf("invalid sync_mode %q: want fsync or fdatasync", c.SyncMode)
	}
}

// Load reads a TOML configuration file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown configuration key %q in %s", undecoded[0].String(), path)
	}

	cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
