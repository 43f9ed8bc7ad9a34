// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratanode/strata/internal/cluster"
	"github.com/stratanode/strata/internal/config"
	"github.com/stratanode/strata/internal/extensions"
	"github.com/stratanode/strata/internal/extensions/handlers"
	"github.com/stratanode/strata/internal/indices"
	"github.com/stratanode/strata/internal/logging"
	"github.com/stratanode/strata/internal/observability"
	"github.com/stratanode/strata/internal/transport/grpctransport"
)

const shutdownTimeout = 5 * time.Second

// NewNodeCmd creates the node subcommand with all flags configured.
func NewNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run a node and its extension host",
		Long: `Run a node: discover extensions from <extensions-dir>/extensions.yml,
handshake with each of them, and serve the actions they call back with
until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return runNodeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runNodeWithDeps runs the node until ctx is cancelled, a signal arrives or
// a server fails.
func runNodeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *NodeDeps) error {
	if deps == nil {
		deps = &NodeDeps{}
	}
	if deps.ListenerFactory == nil {
		deps.ListenerFactory = net.Listen
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, opts ...observability.Option) ObservabilityServer {
			return observability.NewServer(addr, opts...)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.SetDefault(logging.Options{
		Service: "strata",
		Version: version,
		Node:    cfg.NodeName,
		Format:  cfg.LogFormat,
		Level:   slog.LevelInfo,
		Output:  cmd.ErrOrStderr(),
	})

	slog.Info("starting node",
		"cluster", cfg.ClusterName,
		"listen_addr", cfg.ListenAddr,
		"extensions_dir", cfg.ExtensionsDir,
		"request_timeout", cfg.RequestTimeout,
	)

	listener, err := deps.ListenerFactory("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr, err)
	}

	local := extensions.NodeDescriptor{
		ID:      cfg.NodeName,
		Name:    cfg.NodeName,
		Address: listener.Addr().String(),
		Version: version,
	}
	transport := grpctransport.New(grpctransport.Config{Local: local})
	defer func() {
		if closeErr := transport.Close(); closeErr != nil {
			slog.Debug("error closing extension transport", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	transportErr := make(chan error, 1)
	go func() {
		defer close(transportErr)
		if serveErr := transport.Serve(listener); serveErr != nil {
			transportErr <- serveErr
		}
	}()
	go monitorServerErrors(ctx, cancel, transportErr, "extension-transport")
	slog.Info("extension transport listening", "addr", local.Address)

	modules := indices.NewService()
	static := cluster.NewStatic(cfg.ClusterName, local, extensions.NodeSettings(cfg.Settings), cluster.WithModules(modules))

	svc, err := extensions.NewService(extensions.ServiceConfig{
		Transport:            transport,
		Cluster:              static,
		Source:               extensions.FileSource{Dir: cfg.ExtensionsDir},
		Environment:          cfg.Environment(),
		Timeout:              cfg.RequestTimeout,
		HandshakeConcurrency: cfg.HandshakeConcurrency,
	})
	if err != nil {
		return fmt.Errorf("failed to create extension service: %w", err)
	}
	defer svc.Stop()

	delegated := handlers.New(svc.Registry(), svc.Caller())
	if err := delegated.Register(svc.Table()); err != nil {
		return fmt.Errorf("failed to register extension handlers: %w", err)
	}
	static.OnSettingsUpdate(func(key, value string) {
		delegated.Consumers.Notify(ctx, key, value)
	})
	modules.AddObserver(svc)

	var obsServer ObservabilityServer
	if cfg.MetricsAddr != "" {
		opts := []observability.Option{
			observability.WithReadiness(svc.Ready),
			observability.WithStatus(func() any { return svc.Registry().Status() }),
			observability.WithMetrics(extensions.RegisterMetrics),
		}
		// Index admin endpoints drive module attach and removal notices.
		for pattern, h := range indices.Routes(modules) {
			opts = append(opts, observability.WithHandler(pattern, h))
		}
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, opts...)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	report, err := svc.Start(ctx)
	if err != nil {
		stopObservability(obsServer)
		return fmt.Errorf("failed to start extension host: %w", err)
	}
	slog.Info("extension host ready",
		"initialized", report.Initialized,
		"failed", report.Failed,
	)

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Node started")
	if deps.Ready != nil {
		deps.Ready(local.Address)
	}

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Extension service and transport stop in the deferred calls above.
	slog.Info("shutting down...")
	stopObservability(obsServer)
	return nil
}

func stopObservability(s ObservabilityServer) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It
// returns when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
