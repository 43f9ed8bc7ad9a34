// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strconv"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/stratanode/strata/internal/extensions/capability"
)

// ConfigFile is the extension configuration file inside the extensions directory.
const ConfigFile = "extensions.yml"

// Config is the parsed form of extensions.yml.
type Config struct {
	Extensions []Descriptor `yaml:"extensions,omitempty" json:"extensions,omitempty"`
}

// Descriptor is one operator-authored extension entry. Values are kept as
// written; Identity parses them.
type Descriptor struct {
	Name                string             `yaml:"name" json:"name" jsonschema:"minLength=1"`
	UniqueID            string             `yaml:"uniqueId" json:"uniqueId" jsonschema:"minLength=1,maxLength=128"`
	Description         string             `yaml:"description,omitempty" json:"description,omitempty"`
	HostName            string             `yaml:"hostName,omitempty" json:"hostName,omitempty"`
	HostAddress         string             `yaml:"hostAddress" json:"hostAddress" jsonschema:"minLength=1"`
	Port                string             `yaml:"port" json:"port" jsonschema:"oneof_type=string;integer"`
	Version             string             `yaml:"version,omitempty" json:"version,omitempty" jsonschema:"oneof_type=string;number"`
	NodeVersion         string             `yaml:"nodeVersion" json:"nodeVersion" jsonschema:"oneof_type=string;number"`
	RuntimeVersion      string             `yaml:"runtimeVersion,omitempty" json:"runtimeVersion,omitempty" jsonschema:"oneof_type=string;number"`
	EntryPoint          string             `yaml:"entryPoint,omitempty" json:"entryPoint,omitempty"`
	HasNativeController bool               `yaml:"hasNativeController,omitempty" json:"hasNativeController,omitempty"`
	Dependencies        []DependencyConfig `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Capabilities        []string           `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
}

// DependencyConfig is one entry of Descriptor.Dependencies.
type DependencyConfig struct {
	UniqueID string `yaml:"uniqueId" json:"uniqueId" jsonschema:"minLength=1"`
	Version  string `yaml:"version" json:"version" jsonschema:"oneof_type=string;number"`
}

// hostNamePattern accepts RFC 1123 host names.
var hostNamePattern = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// ParseConfig validates data against the extensions.yml schema and decodes
// it. Empty input is a valid file with no extensions.
func ParseConfig(data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Config{}, nil
	}

	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return &c, nil
}

// Identity parses d into an Identity. Any unparseable field is an error.
func (d Descriptor) Identity() (Identity, error) {
	if d.UniqueID == "" {
		return Identity{}, errors.New("uniqueId is required")
	}
	if d.Name == "" {
		return Identity{}, errors.New("name is required")
	}

	host, err := parseHost(d.HostAddress)
	if err != nil {
		return Identity{}, err
	}

	port, err := strconv.ParseUint(d.Port, 10, 16)
	if err != nil || port == 0 {
		return Identity{}, fmt.Errorf("port %q is not a valid TCP port", d.Port)
	}

	nodeVersion, err := semver.NewVersion(d.NodeVersion)
	if err != nil {
		return Identity{}, fmt.Errorf("nodeVersion %q: %w", d.NodeVersion, err)
	}

	var version *semver.Version
	if d.Version != "" {
		version, err = semver.NewVersion(d.Version)
		if err != nil {
			return Identity{}, fmt.Errorf("version %q: %w", d.Version, err)
		}
	}

	deps := make([]Dependency, 0, len(d.Dependencies))
	for _, dep := range d.Dependencies {
		if dep.UniqueID == "" {
			return Identity{}, errors.New("dependency uniqueId is required")
		}
		v, err := semver.NewVersion(dep.Version)
		if err != nil {
			return Identity{}, fmt.Errorf("dependency %s version %q: %w", dep.UniqueID, dep.Version, err)
		}
		deps = append(deps, Dependency{ID: dep.UniqueID, Version: v})
	}

	for _, pattern := range d.Capabilities {
		if err := capability.ValidatePattern(pattern); err != nil {
			return Identity{}, err
		}
	}

	return NewIdentity(IdentitySpec{
		ID:               d.UniqueID,
		Name:             d.Name,
		Description:      d.Description,
		HostName:         d.HostName,
		Host:             host,
		Port:             uint16(port),
		Version:          version,
		NodeVersion:      nodeVersion,
		RuntimeVersion:   d.RuntimeVersion,
		EntryPoint:       d.EntryPoint,
		Dependencies:     deps,
		Capabilities:     d.Capabilities,
		NativeController: d.HasNativeController,
	}), nil
}

func parseHost(s string) (string, error) {
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.String(), nil
	}
	if len(s) > 0 && len(s) <= 253 && hostNamePattern.MatchString(s) {
		return s, nil
	}
	return "", fmt.Errorf("hostAddress %q is not an IP address or host name", s)
}
