// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package extensionstest provides an in-memory Transport for tests.
package extensionstest

import (
	"context"
	"sync"
	"time"

	"github.com/stratanode/strata/internal/extensions"
)

// Responder produces an extension's reply to one request.
type Responder func(ctx context.Context, payload []byte) ([]byte, error)

// Reply returns a Responder that always answers with resp.
func Reply[Resp any](resp Resp) Responder {
	return func(context.Context, []byte) ([]byte, error) {
		return extensions.Encode(resp)
	}
}

// Fail returns a Responder that always answers with err.
func Fail(err error) Responder {
	return func(context.Context, []byte) ([]byte, error) {
		return nil, err
	}
}

// Delay runs r after d, ignoring cancellation of the call.
func Delay(d time.Duration, r Responder) Responder {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		time.Sleep(d)
		return r(context.WithoutCancel(ctx), payload)
	}
}

// Sent is one recorded outbound request.
type Sent struct {
	Target  string
	Action  string
	Payload []byte
}

// Transport is an in-memory extensions.Transport. Extensions are simulated by
// Responders keyed by target id and action; a request with no responder is
// never answered.
type Transport struct {
	local extensions.NodeDescriptor

	mu          sync.Mutex
	responders  map[string]Responder
	connectErrs map[string]error
	sendErrs    map[string]error
	connected   []string
	sent        []Sent
	handlers    map[string]extensions.InboundHandler

	wg sync.WaitGroup
}

// NewTransport creates an empty fake transport.
func NewTransport() *Transport {
	return &Transport{
		local: extensions.NodeDescriptor{
			ID:      "node-1",
			Name:    "node-1",
			Address: "127.0.0.1:9300",
		},
		responders:  make(map[string]Responder),
		connectErrs: make(map[string]error),
		sendErrs:    make(map[string]error),
		handlers:    make(map[string]extensions.InboundHandler),
	}
}

func key(target, action string) string { return target + "|" + action }

// Respond installs r as target's answer to action.
func (t *Transport) Respond(target, action string, r Responder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responders[key(target, action)] = r
}

// FailConnect makes Connect to target return err.
func (t *Transport) FailConnect(target string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectErrs[target] = err
}

// FailSend makes Send to target return err.
func (t *Transport) FailSend(target string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErrs[target] = err
}

// Connect implements extensions.Transport.
func (t *Transport) Connect(_ context.Context, identity extensions.Identity) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.connectErrs[identity.ID()]; err != nil {
		return err
	}
	t.connected = append(t.connected, identity.ID())
	return nil
}

// Send implements extensions.Transport.
func (t *Transport) Send(ctx context.Context, target extensions.Identity, action string, payload []byte, onResponse extensions.ResponseHandler) error {
	t.mu.Lock()
	t.sent = append(t.sent, Sent{Target: target.ID(), Action: action, Payload: payload})
	sendErr := t.sendErrs[target.ID()]
	r := t.responders[key(target.ID(), action)]
	t.mu.Unlock()

	if sendErr != nil {
		return sendErr
	}
	if r == nil {
		return nil
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		onResponse(r(ctx, payload))
	}()
	return nil
}

// Handle implements extensions.Transport.
func (t *Transport) Handle(action string, handler extensions.InboundHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[action] = handler
}

// LocalNode implements extensions.Transport.
func (t *Transport) LocalNode() extensions.NodeDescriptor { return t.local }

// Inbound simulates extension sender invoking action on the host.
func (t *Transport) Inbound(ctx context.Context, sender, action string, payload []byte) ([]byte, error) {
	t.mu.Lock()
	h := t.handlers[action]
	t.mu.Unlock()
	if h == nil {
		return nil, extensions.ErrUnknownAction(action)
	}
	return h(ctx, sender, payload)
}

// Handles reports whether an inbound handler is bound for action.
func (t *Transport) Handles(action string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.handlers[action]
	return ok
}

// SentTo returns the requests sent to target for action.
func (t *Transport) SentTo(target, action string) []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Sent
	for _, s := range t.sent {
		if s.Target == target && s.Action == action {
			out = append(out, s)
		}
	}
	return out
}

// Connected returns the ids Connect succeeded for, in call order.
func (t *Transport) Connected() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.connected...)
}

// Wait blocks until every responder goroutine has delivered its reply.
func (t *Transport) Wait() {
	t.wg.Wait()
}
