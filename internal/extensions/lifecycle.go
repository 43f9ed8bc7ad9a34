// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/stratanode/strata/internal/extensions/capability"
	"github.com/stratanode/strata/pkg/errutil"
)

// InitializationReport lists the outcome of one InitializeAll pass, each in
// discovery order.
type InitializationReport struct {
	Initialized []string
	Failed      []string
}

// LifecycleController drives records through the handshake. It is the only
// component that moves records out of Discovered.
type LifecycleController struct {
	registry    *Registry
	transport   Transport
	caller      *Caller
	enforcer    *capability.Enforcer
	concurrency int
}

// LifecycleOption configures a LifecycleController.
type LifecycleOption func(*LifecycleController)

// WithHandshakeConcurrency bounds how many handshakes run at once. Zero or
// less means unbounded.
func WithHandshakeConcurrency(n int) LifecycleOption {
	return func(c *LifecycleController) {
		c.concurrency = n
	}
}

// WithGrantEnforcer installs each extension's capability grants once its
// handshake succeeds.
func WithGrantEnforcer(e *capability.Enforcer) LifecycleOption {
	return func(c *LifecycleController) {
		c.enforcer = e
	}
}

// NewLifecycleController creates a controller.
func NewLifecycleController(registry *Registry, transport Transport, caller *Caller, opts ...LifecycleOption) *LifecycleController {
	c := &LifecycleController{
		registry:  registry,
		transport: transport,
		caller:    caller,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InitializeAll handshakes with every Discovered extension and returns once
// each has succeeded, failed or timed out. Handshakes are independent: one
// extension's failure never affects another's.
func (c *LifecycleController) InitializeAll(ctx context.Context) InitializationReport {
	records := c.registry.InState(StateDiscovered)
	slog.InfoContext(ctx, "initializing extensions", "count", len(records))

	results := make([]error, len(records))
	claimed := make([]bool, len(records))
	var g errgroup.Group
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for i, rec := range records {
		g.Go(func() error {
			// Another pass or a Reinitialize may have moved the record since
			// the snapshot; it reports that attempt, not this one.
			if err := c.registry.BeginInitializing(rec.ID()); err != nil {
				slog.DebugContext(ctx, "extension no longer discovered, skipping",
					"extension_id", rec.ID(),
					"error", err)
				return nil
			}
			claimed[i] = true
			results[i] = c.run(ctx, rec.Identity())
			return nil
		})
	}
	_ = g.Wait() // handshake goroutines never return errors

	var report InitializationReport
	for i, rec := range records {
		if !claimed[i] {
			continue
		}
		if results[i] != nil {
			report.Failed = append(report.Failed, rec.ID())
			continue
		}
		report.Initialized = append(report.Initialized, rec.ID())
	}
	slog.InfoContext(ctx, "extension initialization complete",
		"initialized", len(report.Initialized),
		"failed", len(report.Failed))
	return report
}

// Reinitialize moves a Failed extension back to Discovered and runs its
// handshake again. It is never called automatically.
func (c *LifecycleController) Reinitialize(ctx context.Context, id string) error {
	if err := c.registry.Retrigger(id); err != nil {
		return err
	}
	rec, ok := c.registry.Lookup(id)
	if !ok {
		return ErrExtensionNotFound(id)
	}
	if err := c.registry.BeginInitializing(id); err != nil {
		return err
	}
	return c.run(ctx, rec.Identity())
}

// run handshakes with an extension already moved to Initializing.
func (c *LifecycleController) run(ctx context.Context, identity Identity) error {
	id := identity.ID()
	err := c.handshake(ctx, identity)
	if err == nil {
		if err = c.registry.MarkInitialized(id); err == nil {
			slog.InfoContext(ctx, "extension initialized",
				"extension_id", id,
				"name", identity.Name())
			return nil
		}
		if c.enforcer != nil {
			c.enforcer.RemoveGrants(id)
		}
		return err
	}

	errutil.WarnError(ctx, nil, "extension initialization failed", err, "extension_id", id)
	if markErr := c.registry.MarkFailed(id, err); markErr != nil {
		return markErr
	}
	return err
}

func (c *LifecycleController) handshake(ctx context.Context, identity Identity) error {
	if err := c.transport.Connect(ctx, identity); err != nil {
		return ErrTransport(identity.ID(), ActionInitialize, err)
	}

	resp, err := Invoke[InitializeRequest, InitializeResponse](ctx, c.caller, identity, ActionInitialize, CallInitialize,
		InitializeRequest{
			SourceNode: c.transport.LocalNode(),
			Extension:  identity.Descriptor(),
		})
	if err != nil {
		return err
	}
	if resp.Name != identity.Name() {
		return ErrTransport(identity.ID(), ActionInitialize,
			fmt.Errorf("handshake reply names %q, expected %q", resp.Name, identity.Name()))
	}

	if c.enforcer != nil {
		if err := c.enforcer.SetGrants(identity.ID(), identity.Capabilities()); err != nil {
			return ErrConfiguration(identity.ID(), err)
		}
	}
	return nil
}
