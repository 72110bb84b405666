// Package config loads the turret daemon's YAML configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/w1xm/turret_interface/turret"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Turret turret.Parameters `yaml:"turret"`
	Link   LinkConfig        `yaml:"link"`
	Server ServerConfig      `yaml:"server"`
	// LogFile, if set, receives a rotated copy of the log.
	LogFile string `yaml:"log_file"`
	// CommandDB is the sqlite database every received command is logged to.
	CommandDB string `yaml:"command_db"`
}

// Link kinds.
const (
	LinkHerkulex = "herkulex"
	LinkModbus   = "modbus"
	LinkSim      = "sim"
)

type LinkConfig struct {
	Kind string `yaml:"kind"`
	// Port and Baud select a local serial port.
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
	// URL selects a remote modbus bridge instead of Port.
	URL       string `yaml:"url"`
	Password  string `yaml:"password"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

func (l LinkConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutMs) * time.Millisecond
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func Default() *Config {
	return &Config{
		Turret: turret.DefaultParameters(),
		Link: LinkConfig{
			Kind:      LinkSim,
			Baud:      115200,
			TimeoutMs: 100,
		},
		Server: ServerConfig{Addr: "127.0.0.1:8503"},
	}
}

// Load reads path on top of the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration correctness. It does not modify cfg.
func Validate(cfg *Config) error {
	if err := cfg.Turret.Validate(); err != nil {
		return err
	}
	switch cfg.Link.Kind {
	case LinkSim:
	case LinkHerkulex:
		if cfg.Link.Port == "" {
			return fmt.Errorf("link %q: port is required", cfg.Link.Kind)
		}
		if cfg.Link.Baud <= 0 {
			return fmt.Errorf("link %q: baud must be > 0", cfg.Link.Kind)
		}
	case LinkModbus:
		if cfg.Link.Port == "" && cfg.Link.URL == "" {
			return fmt.Errorf("link %q: port or url is required", cfg.Link.Kind)
		}
		if cfg.Link.Port != "" && cfg.Link.URL != "" {
			return fmt.Errorf("link %q: port and url are mutually exclusive", cfg.Link.Kind)
		}
	default:
		return fmt.Errorf("unknown link kind %q", cfg.Link.Kind)
	}
	if cfg.Link.TimeoutMs < 0 {
		return fmt.Errorf("link timeout_ms must not be negative")
	}
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}
	return nil
}
