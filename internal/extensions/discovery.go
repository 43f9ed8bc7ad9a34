// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stratanode/strata/pkg/errutil"
)

// Source supplies extension descriptors. A missing source yields no
// descriptors and no error.
type Source interface {
	Load(ctx context.Context) ([]Descriptor, error)
}

// FileSource reads ConfigFile from Dir.
type FileSource struct {
	Dir string
}

// Load implements Source.
func (s FileSource) Load(_ context.Context) ([]Descriptor, error) {
	info, err := os.Stat(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("extensions directory not present, no extensions will be loaded", "dir", s.Dir)
			return nil, nil
		}
		return nil, ErrConfiguration(s.Dir, err)
	}
	if !info.IsDir() {
		slog.Warn("extensions path is not a directory, no extensions will be loaded", "dir", s.Dir)
		return nil, nil
	}

	path := filepath.Join(s.Dir, ConfigFile)
	data, err := os.ReadFile(path) //nolint:gosec // path is the fixed settings file under the configured directory
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("extensions file not present, no extensions will be loaded", "path", path)
			return nil, nil
		}
		return nil, ErrConfiguration(path, err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, ErrConfiguration(path, err)
	}
	return cfg.Extensions, nil
}

// StaticSource serves a fixed descriptor list.
type StaticSource []Descriptor

// Load implements Source.
func (s StaticSource) Load(_ context.Context) ([]Descriptor, error) {
	return s, nil
}

// DiscoveryReport summarizes one discovery pass.
type DiscoveryReport struct {
	Loaded     []string
	Duplicates []string
}

// Loader turns configured descriptors into registry records.
type Loader struct {
	source   Source
	registry *Registry
}

// NewLoader creates a discovery loader.
func NewLoader(source Source, registry *Registry) *Loader {
	return &Loader{source: source, registry: registry}
}

// Discover loads every descriptor from the source and registers it.
//
// Every descriptor is parsed before anything is registered: one malformed
// entry fails the whole pass with CONFIGURATION_ERROR and leaves the registry
// unchanged. Duplicate ids are logged and skipped.
func (l *Loader) Discover(ctx context.Context) (DiscoveryReport, error) {
	var report DiscoveryReport
	if l.source == nil {
		return report, nil
	}

	descriptors, err := l.source.Load(ctx)
	if err != nil {
		return report, err
	}

	identities := make([]Identity, 0, len(descriptors))
	for i, d := range descriptors {
		identity, err := d.Identity()
		if err != nil {
			entry := d.UniqueID
			if entry == "" {
				entry = fmt.Sprintf("extensions[%d]", i)
			}
			return DiscoveryReport{}, ErrConfiguration(entry, err)
		}
		identities = append(identities, identity)
	}

	for _, identity := range identities {
		if err := l.registry.Register(identity); err != nil {
			if errutil.HasCode(err, CodeDuplicateID) {
				slog.InfoContext(ctx, "duplicate extension id, not loading",
					"extension_id", identity.ID(),
					"name", identity.Name())
				report.Duplicates = append(report.Duplicates, identity.ID())
				continue
			}
			return report, err
		}
		slog.InfoContext(ctx, "loaded extension",
			"extension_id", identity.ID(),
			"name", identity.Name(),
			"endpoint", identity.Endpoint())
		report.Loaded = append(report.Loaded, identity.ID())
	}

	if len(report.Loaded) > 0 {
		slog.InfoContext(ctx, "loaded all extensions", "count", len(report.Loaded))
	}
	return report, nil
}
