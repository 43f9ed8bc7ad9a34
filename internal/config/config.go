// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package config loads node configuration from an optional YAML file
// overlaid by command-line flags.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/stratanode/strata/internal/extensions"
	"github.com/stratanode/strata/internal/xdg"
)

// Default values for node flags.
const (
	DefaultClusterName    = "strata"
	DefaultListenAddr     = "127.0.0.1:9300"
	DefaultMetricsAddr    = "127.0.0.1:9100"
	DefaultExtensionsDir  = "extensions"
	DefaultLogFormat      = "json"
	DefaultRequestTimeout = extensions.DefaultTimeout
)

// Config is the node configuration.
type Config struct {
	NodeName             string        `koanf:"node-name"`
	ClusterName          string        `koanf:"cluster-name"`
	ListenAddr           string        `koanf:"listen-addr"`
	MetricsAddr          string        `koanf:"metrics-addr"`
	ExtensionsDir        string        `koanf:"extensions-dir"`
	LogFormat            string        `koanf:"log-format"`
	RequestTimeout       time.Duration `koanf:"request-timeout"`
	HandshakeConcurrency int           `koanf:"handshake-concurrency"`

	// Settings is the free-form settings block, flattened to dotted keys.
	Settings map[string]string `koanf:"-"`
}

// RegisterFlags adds the node flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML configuration file (default: $XDG_CONFIG_HOME/strata/strata.yaml if present)")
	fs.String("node-name", "", "node name (default: host name)")
	fs.String("cluster-name", DefaultClusterName, "cluster name")
	fs.String("listen-addr", DefaultListenAddr, "extension transport listen address")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("extensions-dir", DefaultExtensionsDir, "directory holding extensions.yml")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.Duration("request-timeout", DefaultRequestTimeout, "bounded wait for every call to an extension")
	fs.Int("handshake-concurrency", 0, "maximum parallel extension handshakes (0 = unbounded)")
}

// Load reads the file named by the --config flag, or strata.yaml in the
// XDG config directory when the flag is empty, then applies flags. Flags
// set on the command line win over the file; flag defaults apply only to
// keys the file leaves unset.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, err := fs.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("config flag: %w", err)
	}
	if path == "" {
		path, _ = xdg.FindConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	cfg.Settings = make(map[string]string)
	for key, v := range k.Cut("settings").All() {
		cfg.Settings[key] = fmt.Sprint(v)
	}

	if cfg.NodeName == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("node-name not set and host name unavailable: %w", err)
		}
		cfg.NodeName = host
	}
	return &cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.NodeName == "" {
		return errors.New("node-name is required")
	}
	if c.ClusterName == "" {
		return errors.New("cluster-name is required")
	}
	if c.ListenAddr == "" {
		return errors.New("listen-addr is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request-timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.HandshakeConcurrency < 0 {
		return fmt.Errorf("handshake-concurrency must not be negative, got %d", c.HandshakeConcurrency)
	}
	return nil
}

// Environment returns the node's finalized settings view: the settings
// block plus the node-level keys extensions commonly need.
func (c *Config) Environment() extensions.NodeSettings {
	env := make(extensions.NodeSettings, len(c.Settings)+4)
	maps.Copy(env, c.Settings)
	env["node.name"] = c.NodeName
	env["cluster.name"] = c.ClusterName
	env["path.extensions"] = c.ExtensionsDir
	env["extensions.request_timeout"] = c.RequestTimeout.String()
	return env
}
