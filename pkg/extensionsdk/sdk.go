// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package extensionsdk provides the SDK for building Strata extensions.
//
// An extension is a separate process that serves the extension transport
// at the address declared for it in extensions.yml. The host connects,
// performs the initialization handshake, and then sends module
// notifications and settings updates; the extension calls back into the
// host through Host.
//
// Example usage:
//
//	ext, err := extensionsdk.New(extensionsdk.Config{
//		UniqueID: "geo",
//		Name:     "geo-extension",
//		OnSettingsUpdate: func(ctx context.Context, key, value string) {
//			slog.InfoContext(ctx, "setting changed", "key", key, "value", value)
//		},
//	})
//	if err != nil {
//		return err
//	}
//	return ext.Run(ctx, listener)
package extensionsdk

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"

	"github.com/stratanode/strata/internal/extensions"
	"github.com/stratanode/strata/internal/transport/grpctransport"
)

// ErrNotInitialized is returned by Extension.Host before the host has
// completed the handshake.
var ErrNotInitialized = errors.New("extensionsdk: host handshake not completed")

// ActionHandler serves one transport action on behalf of other extensions.
type ActionHandler func(ctx context.Context, request []byte) ([]byte, error)

// Config configures an extension.
type Config struct {
	// UniqueID is the id the extension is registered under on the host.
	// Required.
	UniqueID string

	// Name is returned in the handshake and must match the configured
	// extension name. Required.
	Name string

	// Version is advertised to peers.
	Version string

	// Timeout bounds each call to the host (default 10s).
	Timeout time.Duration

	// OnModuleAttached is called for each attached host module. Returning
	// true asks for a notice before the module is removed.
	OnModuleAttached func(ctx context.Context, module extensions.ModuleDescriptor) bool

	// OnModuleRemoval is called before a module the extension asked about
	// is removed.
	OnModuleRemoval func(ctx context.Context, module extensions.ModuleDescriptor)

	// OnSettingsUpdate is called for every setting key the extension
	// subscribed to through Host.AddSettingsUpdateConsumer.
	OnSettingsUpdate func(ctx context.Context, key, value string)

	// TransportActions are served to other extensions through the host.
	TransportActions map[string]ActionHandler

	// DialOptions are passed to the underlying transport.
	DialOptions []grpc.DialOption
}

// Extension is a running extension process.
type Extension struct {
	cfg       Config
	transport *grpctransport.Transport

	host        atomic.Pointer[Host]
	initialized chan struct{}
	initOnce    sync.Once
}

// New validates cfg and creates an extension. Call Serve or Run to start
// answering the host.
func New(cfg Config) (*Extension, error) {
	if cfg.UniqueID == "" {
		return nil, errors.New("extensionsdk: UniqueID is required")
	}
	if cfg.Name == "" {
		return nil, errors.New("extensionsdk: Name is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = extensions.DefaultTimeout
	}

	e := &Extension{
		cfg:         cfg,
		initialized: make(chan struct{}),
		transport: grpctransport.New(grpctransport.Config{
			Local: extensions.NodeDescriptor{
				ID:      cfg.UniqueID,
				Name:    cfg.Name,
				Version: cfg.Version,
			},
			DialOptions: cfg.DialOptions,
		}),
	}
	e.register()
	return e, nil
}

func (e *Extension) register() {
	serve(e.transport, extensions.ActionInitialize, e.handleInitialize)
	serve(e.transport, extensions.ActionModuleAttached, e.handleModuleAttached)
	serve(e.transport, extensions.ActionModuleRemoval, e.handleModuleRemoval)
	serve(e.transport, extensions.ActionUpdateSettings, e.handleUpdateSettings)
	serve(e.transport, extensions.ActionHandleTransportAction, e.handleTransportAction)
}

// Serve answers the host on lis until Close.
func (e *Extension) Serve(lis net.Listener) error {
	slog.Info("extension serving", "extension_id", e.cfg.UniqueID, "addr", lis.Addr().String())
	return e.transport.Serve(lis)
}

// Run serves on lis until ctx is done, then closes the extension.
func (e *Extension) Run(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- e.Serve(lis) }()

	select {
	case <-ctx.Done():
		if err := e.Close(); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		_ = e.Close()
		return err
	}
}

// Close stops serving and drops the host connection.
func (e *Extension) Close() error {
	return e.transport.Close()
}

// Initialized is closed once the host has completed the handshake.
func (e *Extension) Initialized() <-chan struct{} {
	return e.initialized
}

// Host returns the client for the host that initialized this extension.
func (e *Extension) Host() (*Host, error) {
	h := e.host.Load()
	if h == nil {
		return nil, ErrNotInitialized
	}
	return h, nil
}

// Implemented lists the optional hooks this extension provides. It is
// reported to the host in the handshake.
func (e *Extension) Implemented() []string {
	var out []string
	if e.cfg.OnModuleAttached != nil {
		out = append(out, "ModuleListener")
	}
	if e.cfg.OnSettingsUpdate != nil {
		out = append(out, "SettingsConsumer")
	}
	if len(e.cfg.TransportActions) > 0 {
		out = append(out, "ActionExtension")
	}
	return out
}

func (e *Extension) handleInitialize(ctx context.Context, req extensions.InitializeRequest) (extensions.InitializeResponse, error) {
	src := req.SourceNode
	if err := e.transport.Dial(ctx, src.ID, src.Address); err != nil {
		return extensions.InitializeResponse{}, err
	}
	e.host.Store(&Host{
		transport: e.transport,
		node:      src,
		uniqueID:  e.cfg.UniqueID,
		timeout:   e.cfg.Timeout,
	})
	e.initOnce.Do(func() { close(e.initialized) })

	slog.InfoContext(ctx, "initialized by host",
		"extension_id", e.cfg.UniqueID,
		"host_node", src.ID,
		"host_address", src.Address)
	return extensions.InitializeResponse{Name: e.cfg.Name, Implemented: e.Implemented()}, nil
}

func (e *Extension) handleModuleAttached(ctx context.Context, req extensions.ModuleRequest) (extensions.ModuleResponse, error) {
	if e.cfg.OnModuleAttached == nil {
		return extensions.ModuleResponse{}, nil
	}
	return extensions.ModuleResponse{RemovalListener: e.cfg.OnModuleAttached(ctx, req.Module)}, nil
}

func (e *Extension) handleModuleRemoval(ctx context.Context, req extensions.ModuleRequest) (extensions.AcknowledgedResponse, error) {
	if e.cfg.OnModuleRemoval != nil {
		e.cfg.OnModuleRemoval(ctx, req.Module)
	}
	return extensions.AcknowledgedResponse{Acknowledged: true}, nil
}

func (e *Extension) handleUpdateSettings(ctx context.Context, req extensions.UpdateSettingsRequest) (extensions.AcknowledgedResponse, error) {
	if e.cfg.OnSettingsUpdate != nil {
		e.cfg.OnSettingsUpdate(ctx, req.Key, req.Value)
	}
	return extensions.AcknowledgedResponse{Acknowledged: true}, nil
}

func (e *Extension) handleTransportAction(ctx context.Context, req extensions.ExtensionActionRequest) (extensions.ExtensionActionResponse, error) {
	fn, ok := e.cfg.TransportActions[req.Action]
	if !ok {
		return extensions.ExtensionActionResponse{}, extensions.ErrUnknownAction(req.Action)
	}
	resp, err := fn(ctx, req.Request)
	if err != nil {
		return extensions.ExtensionActionResponse{}, err
	}
	return extensions.ExtensionActionResponse{Response: resp}, nil
}

// TransportActionNames returns the configured transport action names,
// sorted.
func (e *Extension) TransportActionNames() []string {
	names := make([]string, 0, len(e.cfg.TransportActions))
	for name := range e.cfg.TransportActions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// serve registers a typed inbound handler on t.
func serve[Req, Resp any](t *grpctransport.Transport, action string, fn func(context.Context, Req) (Resp, error)) {
	t.Handle(action, func(ctx context.Context, _ string, payload []byte) ([]byte, error) {
		req, err := extensions.Decode[Req](payload)
		if err != nil {
			return nil, extensions.ErrHandler(action, err)
		}
		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		return extensions.Encode(resp)
	})
}
