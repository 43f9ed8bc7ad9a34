// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"context"
	"net"

	"github.com/stratanode/strata/internal/observability"
)

// NodeDeps contains injectable dependencies for the node command.
// All fields with nil values will use their default implementations.
type NodeDeps struct {
	// ListenerFactory creates the extension transport listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, opts ...observability.Option) ObservabilityServer

	// Ready, if set, is called once every extension handshake has
	// concluded, with the address the transport listens on.
	Ready func(transportAddr string)
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}
