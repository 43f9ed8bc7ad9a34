// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stratanode/strata/internal/extensions/capability"
	"github.com/stratanode/strata/pkg/errutil"
)

// Request is one named inbound request.
type Request struct {
	Action string
	// Sender is the calling extension id; empty for host-internal callers.
	Sender  string
	Payload []byte
}

// Response is the encoded reply to a Request.
type Response struct {
	Payload []byte
}

// Handler serves one action.
type Handler func(ctx context.Context, req Request) (Response, error)

// DispatchTable maps action names to handlers. It is written during startup
// and sealed before serving, after which it is only read.
type DispatchTable struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	sealed   atomic.Bool
	enforcer *capability.Enforcer
}

// DispatchOption configures a DispatchTable.
type DispatchOption func(*DispatchTable)

// WithEnforcer checks every request with a Sender against the extension's
// capability grants.
func WithEnforcer(e *capability.Enforcer) DispatchOption {
	return func(t *DispatchTable) {
		t.enforcer = e
	}
}

// NewDispatchTable creates an empty table.
func NewDispatchTable(opts ...DispatchOption) *DispatchTable {
	t := &DispatchTable{handlers: make(map[string]Handler)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register binds name to h. Registering a name twice, or registering after
// Seal, is a startup error.
func (t *DispatchTable) Register(name string, h Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sealed.Load() {
		return ErrTableSealed(name)
	}
	if _, exists := t.handlers[name]; exists {
		return ErrDuplicateAction(name)
	}
	t.handlers[name] = h
	return nil
}

// Handle registers a handler whose request and response shapes are fixed by
// its type parameters. Payloads are decoded before fn runs and fn's result is
// encoded into the Response.
func Handle[Req, Resp any](t *DispatchTable, name string, fn func(ctx context.Context, req Request, body Req) (Resp, error)) error {
	return t.Register(name, func(ctx context.Context, req Request) (Response, error) {
		body, err := Decode[Req](req.Payload)
		if err != nil {
			return Response{}, err
		}
		resp, err := fn(ctx, req, body)
		if err != nil {
			return Response{}, err
		}
		payload, err := Encode(resp)
		if err != nil {
			return Response{}, err
		}
		return Response{Payload: payload}, nil
	})
}

// Seal stops further registration.
func (t *DispatchTable) Seal() {
	t.sealed.Store(true)
}

// Sealed reports whether Seal was called.
func (t *DispatchTable) Sealed() bool {
	return t.sealed.Load()
}

// Has reports whether name is registered.
func (t *DispatchTable) Has(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.handlers[name]
	return ok
}

// Actions returns the registered names, sorted.
func (t *DispatchTable) Actions() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	t.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Dispatch runs the handler for req.Action. An unregistered name fails with
// UNKNOWN_ACTION before anything else happens. Handler errors without a code
// of their own are wrapped as HANDLER_ERROR.
func (t *DispatchTable) Dispatch(ctx context.Context, req Request) (resp Response, err error) {
	t.mu.RLock()
	h, ok := t.handlers[req.Action]
	t.mu.RUnlock()
	if !ok {
		RecordDispatch(req.Action, StatusUnknownAction)
		return Response{}, ErrUnknownAction(req.Action)
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "extensions.dispatch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("extension.action", req.Action),
			attribute.String("extension.sender", req.Sender),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if t.enforcer != nil && req.Sender != "" && !t.enforcer.Check(req.Sender, req.Action) {
		RecordDispatch(req.Action, StatusPermissionDenied)
		err = ErrPermissionDenied(req.Sender, req.Action)
		return Response{}, err
	}

	resp, err = h(ctx, req)
	if err != nil {
		if errutil.Code(err) == "" {
			err = ErrHandler(req.Action, err)
		}
		RecordDispatch(req.Action, StatusError)
		slog.WarnContext(ctx, "action handler failed",
			"action", req.Action,
			"sender", req.Sender,
			"duration", time.Since(start).String(),
			"error", err)
		return Response{}, err
	}
	RecordDispatch(req.Action, StatusSuccess)
	return resp, nil
}

// Bind registers every action in the table as an inbound handler on
// transport.
func (t *DispatchTable) Bind(transport Transport) {
	for _, name := range t.Actions() {
		transport.Handle(name, func(ctx context.Context, sender string, payload []byte) ([]byte, error) {
			resp, err := t.Dispatch(ctx, Request{Action: name, Sender: sender, Payload: payload})
			if err != nil {
				return nil, err
			}
			return resp.Payload, nil
		})
	}
}
