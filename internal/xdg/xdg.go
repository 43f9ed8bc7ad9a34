// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package xdg resolves Strata's XDG Base Directory locations.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "strata"

// ConfigFileName is the node configuration file looked up in ConfigDir.
const ConfigFileName = "strata.yaml"

// ConfigDir returns the XDG config directory for strata.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// FindConfigFile returns the path of ConfigFileName in ConfigDir when it
// exists as a regular file.
func FindConfigFile() (string, bool) {
	path := filepath.Join(ConfigDir(), ConfigFileName)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}
