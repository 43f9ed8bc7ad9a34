// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/stratanode/strata/internal/extensions/capability"
)

// ServiceConfig wires a Service to its collaborators.
type ServiceConfig struct {
	Transport Transport
	Cluster   ClusterService
	// Source supplies extension descriptors. Nil means no extensions.
	Source Source
	// Environment is the node's finalized settings, captured at construction.
	Environment NodeSettings
	// Timeout bounds every outbound call. Zero means DefaultTimeout.
	Timeout time.Duration
	// HandshakeConcurrency bounds parallel handshakes. Zero means unbounded.
	HandshakeConcurrency int
}

// Service owns the extension host state for one node: created at start,
// torn down at stop. Delegated handlers are registered on Table between
// NewService and Start.
type Service struct {
	transport Transport
	registry  *Registry
	enforcer  *capability.Enforcer
	table     *DispatchTable
	caller    *Caller
	loader    *Loader
	lifecycle *LifecycleController
	forwarder *EventForwarder
	ready     atomic.Bool
}

// NewService builds the host and registers the built-in actions.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Transport == nil {
		return nil, errors.New("transport is required")
	}

	registry := NewRegistry(WithTransitionObserver(RecordTransition))
	enforcer := capability.NewEnforcer()
	table := NewDispatchTable(WithEnforcer(enforcer))
	caller := NewCaller(cfg.Transport, WithTimeout(cfg.Timeout))

	if err := RegisterBuiltins(table, cfg.Cluster, cfg.Environment); err != nil {
		return nil, err
	}

	return &Service{
		transport: cfg.Transport,
		registry:  registry,
		enforcer:  enforcer,
		table:     table,
		caller:    caller,
		loader:    NewLoader(cfg.Source, registry),
		lifecycle: NewLifecycleController(registry, cfg.Transport, caller,
			WithHandshakeConcurrency(cfg.HandshakeConcurrency),
			WithGrantEnforcer(enforcer)),
		forwarder: NewEventForwarder(registry, caller),
	}, nil
}

// Start discovers extensions, seals and binds the dispatch table, and
// handshakes with every discovered extension. It returns once every
// handshake has concluded. A discovery error aborts start.
func (s *Service) Start(ctx context.Context) (InitializationReport, error) {
	if _, err := s.loader.Discover(ctx); err != nil {
		return InitializationReport{}, err
	}

	s.table.Seal()
	s.table.Bind(s.transport)

	report := s.lifecycle.InitializeAll(ctx)
	s.ready.Store(true)
	return report, nil
}

// Stop fails in-flight calls and drops all extension state.
func (s *Service) Stop() {
	s.ready.Store(false)
	s.caller.Close()
	for _, rec := range s.registry.All() {
		s.enforcer.RemoveGrants(rec.ID())
	}
	s.registry.Close()
}

// Ready reports whether Start has completed.
func (s *Service) Ready() bool { return s.ready.Load() }

// OnModuleAttached forwards a module-attach event to initialized extensions.
func (s *Service) OnModuleAttached(ctx context.Context, module Module) {
	s.forwarder.OnModuleAttached(ctx, module)
}

// Reinitialize re-runs the handshake for a Failed extension.
func (s *Service) Reinitialize(ctx context.Context, id string) error {
	return s.lifecycle.Reinitialize(ctx, id)
}

// Registry returns the extension registry.
func (s *Service) Registry() *Registry { return s.registry }

// Table returns the action dispatch table.
func (s *Service) Table() *DispatchTable { return s.table }

// Caller returns the outbound caller.
func (s *Service) Caller() *Caller { return s.caller }

// Enforcer returns the capability enforcer for inbound actions.
func (s *Service) Enforcer() *capability.Enforcer { return s.enforcer }

// Forwarder returns the module event forwarder.
func (s *Service) Forwarder() *EventForwarder { return s.forwarder }
