// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package main implements the echo extension. It serves a single
// transport action, echo:echo, which returns its request unchanged, and
// logs module and settings notifications from the host.
//
// Run it at the address declared for it in extensions.yml:
//
//	echo --unique-id echo --name echo-extension --listen 127.0.0.1:4532
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/stratanode/strata/internal/extensions"
	"github.com/stratanode/strata/internal/logging"
	"github.com/stratanode/strata/pkg/extensionsdk"
)

// Build-time variables set via ldflags.
var version = "dev"

const (
	// ActionEcho is the transport action served by this extension.
	ActionEcho = "echo:echo"

	// RouteEcho is the REST route the extension declares to the host.
	RouteEcho = "GET /_extensions/echo"

	// SettingGreeting is the custom setting the extension contributes and
	// watches.
	SettingGreeting = "echo.greeting"
)

type options struct {
	uniqueID  string
	name      string
	listen    string
	logFormat string
}

func main() {
	var opts options
	fs := pflag.NewFlagSet("echo", pflag.ExitOnError)
	fs.StringVar(&opts.uniqueID, "unique-id", "echo", "unique id the host knows this extension by")
	fs.StringVar(&opts.name, "name", "echo-extension", "extension name returned in the handshake")
	fs.StringVar(&opts.listen, "listen", "127.0.0.1:4532", "address to serve the host on")
	fs.StringVar(&opts.logFormat, "log-format", "json", "log format (json or text)")
	_ = fs.Parse(os.Args[1:])

	logging.SetDefault(logging.Options{
		Service: "echo-extension",
		Version: version,
		Format:  opts.logFormat,
		Level:   slog.LevelInfo,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	ext, err := newExtension(opts.uniqueID, opts.name)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", opts.listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", opts.listen, err)
	}

	go announce(ctx, ext)
	return ext.Run(ctx, lis)
}

func newExtension(uniqueID, name string) (*extensionsdk.Extension, error) {
	return extensionsdk.New(extensionsdk.Config{
		UniqueID: uniqueID,
		Name:     name,
		Version:  version,
		OnModuleAttached: func(ctx context.Context, m extensions.ModuleDescriptor) bool {
			slog.InfoContext(ctx, "module attached", "module", m.Name, "uuid", m.UUID)
			return true
		},
		OnModuleRemoval: func(ctx context.Context, m extensions.ModuleDescriptor) {
			slog.InfoContext(ctx, "module removal", "module", m.Name, "uuid", m.UUID)
		},
		OnSettingsUpdate: func(ctx context.Context, key, value string) {
			slog.InfoContext(ctx, "setting updated", "key", key, "value", value)
		},
		TransportActions: map[string]extensionsdk.ActionHandler{
			ActionEcho: echo,
		},
	})
}

func echo(_ context.Context, req []byte) ([]byte, error) {
	return req, nil
}

// announce registers the extension's routes, settings and actions once the
// host has completed the handshake.
func announce(ctx context.Context, ext *extensionsdk.Extension) {
	select {
	case <-ctx.Done():
		return
	case <-ext.Initialized():
	}

	host, err := ext.Host()
	if err != nil {
		slog.ErrorContext(ctx, "host unavailable", "error", err)
		return
	}
	if err := register(ctx, host, ext.TransportActionNames()); err != nil {
		slog.ErrorContext(ctx, "registration with host failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "registered with host", "host_node", host.Node().ID)
}

func register(ctx context.Context, host *extensionsdk.Host, actions []string) error {
	if err := host.RegisterRestActions(ctx, RouteEcho); err != nil {
		return fmt.Errorf("register rest actions: %w", err)
	}
	if err := host.RegisterCustomSettings(ctx, extensions.SettingDefinition{
		Key:     SettingGreeting,
		Type:    "string",
		Default: "hello",
		Dynamic: true,
	}); err != nil {
		return fmt.Errorf("register custom settings: %w", err)
	}
	if err := host.AddSettingsUpdateConsumer(ctx, SettingGreeting); err != nil {
		return fmt.Errorf("subscribe to settings: %w", err)
	}
	if err := host.RegisterTransportActions(ctx, actions...); err != nil {
		return fmt.Errorf("register transport actions: %w", err)
	}
	return nil
}
