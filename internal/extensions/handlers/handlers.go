// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package handlers implements the registration requests extensions send
// after their handshake: REST actions, custom settings, settings-update
// subscriptions and transport actions.
package handlers

import (
	"errors"

	"github.com/stratanode/strata/internal/extensions"
)

// Set groups every delegated handler.
type Set struct {
	Rest      *RestActions
	Settings  *CustomSettings
	Consumers *SettingsConsumers
	Transport *TransportActions
}

// New creates the delegated handlers for registry.
func New(registry *extensions.Registry, caller *extensions.Caller) *Set {
	return &Set{
		Rest:      NewRestActions(registry),
		Settings:  NewCustomSettings(registry),
		Consumers: NewSettingsConsumers(registry, caller),
		Transport: NewTransportActions(registry, caller),
	}
}

// Register adds every delegated action to t.
func (s *Set) Register(t *extensions.DispatchTable) error {
	return errors.Join(
		s.Rest.Register(t),
		s.Settings.Register(t),
		s.Consumers.Register(t),
		s.Transport.Register(t),
	)
}

// requester resolves the extension a registration request speaks for. The
// body id wins; the transport sender fills in when the body omits it. A sender
// may only speak for itself, and only initialized extensions may register
// anything.
func requester(registry *extensions.Registry, req extensions.Request, bodyID string) (string, error) {
	id := bodyID
	switch {
	case id == "":
		id = req.Sender
	case req.Sender != "" && req.Sender != id:
		return "", extensions.ErrPermissionDenied(req.Sender, req.Action)
	}
	rec, ok := registry.Lookup(id)
	if !ok {
		return "", extensions.ErrExtensionNotFound(id)
	}
	if rec.State() != extensions.StateInitialized {
		return "", ErrNotInitialized(id)
	}
	return id, nil
}
