// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package grpctransport carries extension actions over gRPC. Hosts and
// extensions both run a Transport: each serves inbound actions and holds
// client connections to its peers.
package grpctransport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/stratanode/strata/internal/extensions"
	"github.com/stratanode/strata/pkg/errutil"
)

// Sentinel errors.
var (
	ErrClosed       = errors.New("transport is closed")
	ErrNotConnected = errors.New("peer is not connected")
)

// Config holds transport settings.
type Config struct {
	// Local describes this process to peers. Local.ID is sent as the sender
	// of every outbound request.
	Local extensions.NodeDescriptor

	// KeepaliveTime is how often to ping peers (default: 10s)
	KeepaliveTime time.Duration

	// KeepaliveTimeout is how long to wait for ping response (default: 5s)
	KeepaliveTimeout time.Duration

	// DialOptions are appended to the defaults, e.g. a custom dialer in tests.
	DialOptions []grpc.DialOption

	// ServerOptions are appended to the defaults.
	ServerOptions []grpc.ServerOption
}

// Transport implements extensions.Transport over gRPC.
type Transport struct {
	local    extensions.NodeDescriptor
	server   *grpc.Server
	dialOpts []grpc.DialOption

	mu    sync.RWMutex
	conns map[string]*grpc.ClientConn // peer id -> conn

	handlers sync.Map // action -> extensions.InboundHandler
	closed   atomic.Bool
	inflight sync.WaitGroup
}

// New creates a transport. Call Serve to accept inbound requests.
func New(cfg Config) *Transport {
	if cfg.KeepaliveTime == 0 {
		cfg.KeepaliveTime = 10 * time.Second
	}
	if cfg.KeepaliveTimeout == 0 {
		cfg.KeepaliveTimeout = 5 * time.Second
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(codec{})),
	}
	dialOpts = append(dialOpts, cfg.DialOptions...)

	serverOpts := append([]grpc.ServerOption{grpc.ForceServerCodec(codec{})}, cfg.ServerOptions...)

	t := &Transport{
		local:    cfg.Local,
		server:   grpc.NewServer(serverOpts...),
		dialOpts: dialOpts,
		conns:    make(map[string]*grpc.ClientConn),
	}
	t.server.RegisterService(&serviceDesc, t)
	return t
}

// Serve accepts inbound requests on lis until Close.
func (t *Transport) Serve(lis net.Listener) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if err := t.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("transport server: %w", err)
	}
	return nil
}

// LocalNode implements extensions.Transport.
func (t *Transport) LocalNode() extensions.NodeDescriptor { return t.local }

// Connect implements extensions.Transport.
func (t *Transport) Connect(ctx context.Context, identity extensions.Identity) error {
	return t.Dial(ctx, identity.ID(), identity.Endpoint())
}

// Dial opens a connection to peer id at address, replacing nothing if one
// is already open. The connection is established lazily by gRPC.
func (t *Transport) Dial(_ context.Context, id, address string) error {
	if t.closed.Load() {
		return ErrClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.conns[id]; ok {
		return nil
	}
	conn, err := grpc.NewClient(address, t.dialOpts...)
	if err != nil {
		return fmt.Errorf("dial %s at %s: %w", id, address, err)
	}
	t.conns[id] = conn
	slog.Debug("peer connection opened", "peer_id", id, "address", address)
	return nil
}

// Disconnect closes the connection to peer id, if any.
func (t *Transport) Disconnect(id string) error {
	t.mu.Lock()
	conn, ok := t.conns[id]
	delete(t.conns, id)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return conn.Close()
}

// Send implements extensions.Transport. The reply is delivered to onResponse
// from a separate goroutine.
func (t *Transport) Send(ctx context.Context, target extensions.Identity, action string, payload []byte, onResponse extensions.ResponseHandler) error {
	conn, err := t.conn(target.ID())
	if err != nil {
		return err
	}

	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		onResponse(t.roundTrip(ctx, conn, action, payload))
	}()
	return nil
}

// Call sends a request to peer id and waits for the reply. Callers bound the
// wait with ctx.
func (t *Transport) Call(ctx context.Context, id, action string, payload []byte) ([]byte, error) {
	conn, err := t.conn(id)
	if err != nil {
		return nil, err
	}
	return t.roundTrip(ctx, conn, action, payload)
}

func (t *Transport) conn(id string) (*grpc.ClientConn, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	conn, ok := t.conns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, id)
	}
	return conn, nil
}

func (t *Transport) roundTrip(ctx context.Context, conn *grpc.ClientConn, action string, payload []byte) ([]byte, error) {
	out := new(result)
	in := &envelope{Action: action, Sender: t.local.ID, Payload: payload}
	if err := conn.Invoke(ctx, invokeMethod, in, out); err != nil {
		return nil, err
	}
	if err := out.err(); err != nil {
		return nil, err
	}
	return out.Payload, nil
}

// Handle implements extensions.Transport.
func (t *Transport) Handle(action string, handler extensions.InboundHandler) {
	t.handlers.Store(action, handler)
}

// invoke serves one inbound envelope. Handler failures travel in the
// result, not as gRPC errors.
func (t *Transport) invoke(ctx context.Context, in *envelope) (*result, error) {
	v, ok := t.handlers.Load(in.Action)
	if !ok {
		return failure(extensions.CodeUnknownAction, extensions.ErrUnknownAction(in.Action)), nil
	}
	payload, err := v.(extensions.InboundHandler)(ctx, in.Sender, in.Payload)
	if err != nil {
		return failure(errutil.Code(err), err), nil
	}
	return &result{Payload: payload}, nil
}

// Close stops the server, closes every peer connection and waits for
// outstanding sends to deliver their replies.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.server.Stop()

	t.mu.Lock()
	var err error
	for id, conn := range t.conns {
		err = multierr.Append(err, conn.Close())
		delete(t.conns, id)
	}
	t.mu.Unlock()

	t.inflight.Wait()
	return err
}
