// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/stratanode/strata/pkg/errutil"
)

// RemovalListener is called once, immediately before a module is removed.
type RemovalListener func(ctx context.Context)

// Module is a host resource unit whose lifecycle is reported to extensions.
type Module interface {
	Name() string
	UUID() string
	AddRemovalListener(fn RemovalListener)
}

func moduleDescriptor(m Module) ModuleDescriptor {
	return ModuleDescriptor{Name: m.Name(), UUID: m.UUID()}
}

// EventForwarder pushes module lifecycle events to initialized extensions.
// Notification failures are logged here and never reach the caller.
type EventForwarder struct {
	registry *Registry
	caller   *Caller

	mu       sync.Mutex
	interest map[string][]string // module uuid -> extension ids
}

// NewEventForwarder creates a forwarder.
func NewEventForwarder(registry *Registry, caller *Caller) *EventForwarder {
	return &EventForwarder{
		registry: registry,
		caller:   caller,
		interest: make(map[string][]string),
	}
}

// OnModuleAttached notifies every initialized extension of module, in
// parallel, and waits for all of them. Extensions that answer with
// RemovalListener get a removal listener registered on module.
func (f *EventForwarder) OnModuleAttached(ctx context.Context, module Module) {
	var g errgroup.Group
	for _, rec := range f.registry.ListInitialized() {
		identity := rec.Identity()
		g.Go(func() error {
			f.attach(ctx, identity, module)
			return nil
		})
	}
	_ = g.Wait() // attach logs its own failures
}

func (f *EventForwarder) attach(ctx context.Context, identity Identity, module Module) {
	desc := moduleDescriptor(module)
	resp, err := Invoke[ModuleRequest, ModuleResponse](ctx, f.caller, identity, ActionModuleAttached, CallNotification,
		ModuleRequest{Module: desc})
	if err != nil {
		errutil.WarnError(ctx, nil, "module attach notification failed", err,
			"extension_id", identity.ID(),
			"module", desc.Name)
		return
	}
	if !resp.RemovalListener {
		return
	}

	f.mu.Lock()
	f.interest[desc.UUID] = append(f.interest[desc.UUID], identity.ID())
	f.mu.Unlock()

	module.AddRemovalListener(f.removalListener(identity, desc))
	slog.DebugContext(ctx, "extension listening for module removal",
		"extension_id", identity.ID(),
		"module", desc.Name)
}

// removalListener sends the pre-removal notice and waits for the ack. It
// never panics or returns an error to the module owner; removal proceeds
// whatever the extension does.
func (f *EventForwarder) removalListener(identity Identity, desc ModuleDescriptor) RemovalListener {
	return func(ctx context.Context) {
		defer f.dropInterest(desc.UUID, identity.ID())
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "module removal notification panicked",
					"extension_id", identity.ID(),
					"module", desc.Name,
					"panic", r)
			}
		}()

		_, err := Invoke[ModuleRequest, AcknowledgedResponse](ctx, f.caller, identity, ActionModuleRemoval, CallNotification,
			ModuleRequest{Module: desc})
		if err != nil {
			errutil.WarnError(ctx, nil, "module removal notification failed", err,
				"extension_id", identity.ID(),
				"module", desc.Name)
		}
	}
}

func (f *EventForwarder) dropInterest(moduleUUID, extensionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := slices.DeleteFunc(f.interest[moduleUUID], func(id string) bool { return id == extensionID })
	if len(ids) == 0 {
		delete(f.interest, moduleUUID)
		return
	}
	f.interest[moduleUUID] = ids
}

// InterestedIn returns the ids of extensions that asked to hear about
// module's removal, sorted.
func (f *EventForwarder) InterestedIn(module Module) []string {
	f.mu.Lock()
	ids := slices.Clone(f.interest[module.UUID()])
	f.mu.Unlock()
	slices.Sort(ids)
	return ids
}
