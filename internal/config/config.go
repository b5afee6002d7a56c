// Package config loads and validates anchr's TOML configuration, with an
// optional hot-reload watcher.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// Volume is one named storage volume the server exposes, addressed by
// virtual paths of the form /<dev_name>/<segments> (spec.md §4.9).
type Volume struct {
	DevName  string `toml:"dev_name"`
	BindPath string `toml:"bind_path"`
}

// Network holds the listener addresses anchr binds.
type Network struct {
	QUICAddr string `toml:"quic_addr"`
	ObservAddr string `toml:"observ_addr"`
}

// Config is the full anchr server configuration.
type Config struct {
	AuthToken string   `toml:"auth_token"`
	Volumes   []Volume `toml:"rfs"`
	Network   Network  `toml:"network"`

	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
}

var devNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var (
	ErrNoAuthToken      = errors.New("config: auth_token must not be empty")
	ErrNoVolumes        = errors.New("config: at least one rfs volume is required")
	ErrBadDevName       = errors.New("config: dev_name must match [A-Za-z0-9_-]+")
	ErrDuplicateDevName = errors.New("config: duplicate dev_name")
	ErrDuplicateBind    = errors.New("config: duplicate bind_path across volumes")
	ErrBindNotWritable  = errors.New("config: bind_path is not writable")
)

// Default returns a minimal, permissive config suitable for local testing.
func Default() *Config {
	return &Config{
		AuthToken: "changeme",
		Volumes:   []Volume{{DevName: "default", BindPath: "./data"}},
		Network:   Network{QUICAddr: "0.0.0.0:4433", ObservAddr: "127.0.0.1:9090"},
	}
}

// Load reads and parses a TOML config file, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the auth token, volume table, and bind-path writability,
// mirroring the original setup checker's validation pass.
func (c *Config) Validate() error {
	if c.AuthToken == "" {
		return ErrNoAuthToken
	}
	if len(c.Volumes) == 0 {
		return ErrNoVolumes
	}
	names := make(map[string]bool, len(c.Volumes))
	binds := make(map[string]bool, len(c.Volumes))
	for _, v := range c.Volumes {
		if !devNamePattern.MatchString(v.DevName) {
			return fmt.Errorf("%w: %q", ErrBadDevName, v.DevName)
		}
		if names[v.DevName] {
			return fmt.Errorf("%w: %q", ErrDuplicateDevName, v.DevName)
		}
		names[v.DevName] = true

		abs, err := filepath.Abs(v.BindPath)
		if err != nil {
			return fmt.Errorf("config: resolving bind_path %q: %w", v.BindPath, err)
		}
		if binds[abs] {
			return fmt.Errorf("%w: %q", ErrDuplicateBind, v.BindPath)
		}
		binds[abs] = true

		if err := checkWritable(abs); err != nil {
			return fmt.Errorf("%w: %s: %s", ErrBindNotWritable, v.BindPath, err)
		}
	}
	return nil
}

// checkWritable probes a directory for writability by creating and
// removing a uniquely-named temp file, creating the directory first if
// necessary. Grounded on the original setup checker's UUID-probe approach.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".anchr-probe-"+uuid.NewString())
	f, err := os.Create(probe)
	if err != nil {
		return err
	}
	_ = f.Close()
	return os.Remove(probe)
}

// VolumeByName looks up a configured volume by its dev_name.
func (c *Config) VolumeByName(name string) (Volume, bool) {
	for _, v := range c.Volumes {
		if v.DevName == name {
			return v, true
		}
	}
	return Volume{}, false
}
