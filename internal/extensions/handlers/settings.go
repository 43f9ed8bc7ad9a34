// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package handlers

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/stratanode/strata/internal/extensions"
)

// CustomSettings records settings contributed by extensions. A key belongs to
// the first extension that registers it.
type CustomSettings struct {
	registry *extensions.Registry

	mu          sync.RWMutex
	owners      map[string]string
	definitions map[string][]extensions.SettingDefinition
}

// NewCustomSettings creates an empty settings table.
func NewCustomSettings(registry *extensions.Registry) *CustomSettings {
	return &CustomSettings{
		registry:    registry,
		owners:      make(map[string]string),
		definitions: make(map[string][]extensions.SettingDefinition),
	}
}

// Register adds the register-custom-settings handler to t.
func (s *CustomSettings) Register(t *extensions.DispatchTable) error {
	return extensions.Handle(t, extensions.ActionRegisterCustomSettings, s.handle)
}

func (s *CustomSettings) handle(ctx context.Context, req extensions.Request, body extensions.RegisterCustomSettingsRequest) (extensions.AcknowledgedResponse, error) {
	id, err := requester(s.registry, req, body.UniqueID)
	if err != nil {
		return extensions.AcknowledgedResponse{}, err
	}
	for _, def := range body.Settings {
		if strings.TrimSpace(def.Key) == "" {
			return extensions.AcknowledgedResponse{}, ErrInvalidSetting(id)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, def := range body.Settings {
		if owner, ok := s.owners[def.Key]; ok && owner != id {
			return extensions.AcknowledgedResponse{}, ErrSettingConflict(def.Key, owner)
		}
	}
	for _, old := range s.definitions[id] {
		delete(s.owners, old.Key)
	}
	for _, def := range body.Settings {
		s.owners[def.Key] = id
	}
	s.definitions[id] = slices.Clone(body.Settings)

	slog.InfoContext(ctx, "registered extension settings",
		"extension_id", id,
		"count", len(body.Settings))
	return extensions.AcknowledgedResponse{Acknowledged: true}, nil
}

// Definitions returns the settings registered by extensionID.
func (s *CustomSettings) Definitions(extensionID string) []extensions.SettingDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.definitions[extensionID])
}

// Owner returns the extension that registered key.
func (s *CustomSettings) Owner(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.owners[key]
	return id, ok
}
