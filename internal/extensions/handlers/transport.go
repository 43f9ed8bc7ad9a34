// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stratanode/strata/internal/extensions"
)

// TransportActions lets extensions serve named actions to one another through
// the host.
type TransportActions struct {
	registry *extensions.Registry
	caller   *extensions.Caller

	mu     sync.RWMutex
	owners map[string]string // action -> extension id
}

// NewTransportActions creates an empty action table.
func NewTransportActions(registry *extensions.Registry, caller *extensions.Caller) *TransportActions {
	return &TransportActions{
		registry: registry,
		caller:   caller,
		owners:   make(map[string]string),
	}
}

// Register adds the register and forward handlers to t.
func (a *TransportActions) Register(t *extensions.DispatchTable) error {
	if err := extensions.Handle(t, extensions.ActionRegisterTransportActions, a.handleRegister); err != nil {
		return err
	}
	return extensions.Handle(t, extensions.ActionTransportActionFromExtension, a.handleForward)
}

func (a *TransportActions) handleRegister(ctx context.Context, req extensions.Request, body extensions.RegisterTransportActionsRequest) (extensions.AcknowledgedResponse, error) {
	id, err := requester(a.registry, req, body.UniqueID)
	if err != nil {
		return extensions.AcknowledgedResponse{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, action := range body.Actions {
		if owner, ok := a.owners[action]; ok && owner != id {
			return extensions.AcknowledgedResponse{}, ErrActionConflict(action, owner)
		}
	}
	for _, action := range body.Actions {
		a.owners[action] = id
	}

	slog.InfoContext(ctx, "registered extension transport actions",
		"extension_id", id,
		"count", len(body.Actions))
	return extensions.AcknowledgedResponse{Acknowledged: true}, nil
}

// handleForward relays a request to the owning extension and returns its
// reply bytes unchanged.
func (a *TransportActions) handleForward(ctx context.Context, _ extensions.Request, body extensions.TransportActionRequestFromExtension) (extensions.ExtensionActionResponse, error) {
	owner, ok := a.Owner(body.Action)
	if !ok {
		return extensions.ExtensionActionResponse{}, extensions.ErrUnknownAction(body.Action)
	}
	rec, ok := a.registry.Lookup(owner)
	if !ok {
		return extensions.ExtensionActionResponse{}, extensions.ErrExtensionNotFound(owner)
	}
	if rec.State() != extensions.StateInitialized {
		return extensions.ExtensionActionResponse{}, ErrNotInitialized(owner)
	}

	return extensions.Invoke[extensions.ExtensionActionRequest, extensions.ExtensionActionResponse](
		ctx, a.caller, rec.Identity(), extensions.ActionHandleTransportAction, extensions.CallRequest,
		extensions.ExtensionActionRequest{Action: body.Action, Request: body.Request})
}

// Owner returns the extension serving action.
func (a *TransportActions) Owner(action string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.owners[action]
	return id, ok
}
