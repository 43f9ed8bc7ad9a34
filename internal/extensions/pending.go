// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import (
	"context"
	"sync"
	"time"
)

// PendingCall is one outbound request awaiting its correlated response. It
// resolves exactly once, either from the response handler or at its
// deadline; later resolutions are reported as stale and change nothing.
type PendingCall struct {
	id       string
	target   string
	action   string
	kind     CallKind
	created  time.Time
	deadline time.Time

	once    sync.Once
	done    chan struct{}
	payload []byte
	err     error
}

func newPendingCall(id, target, action string, kind CallKind, created time.Time, timeout time.Duration) *PendingCall {
	return &PendingCall{
		id:       id,
		target:   target,
		action:   action,
		kind:     kind,
		created:  created,
		deadline: created.Add(timeout),
		done:     make(chan struct{}),
	}
}

// ID returns the correlation id.
func (p *PendingCall) ID() string { return p.id }

// Target returns the extension id the call was sent to.
func (p *PendingCall) Target() string { return p.target }

// Action returns the action name.
func (p *PendingCall) Action() string { return p.action }

// Created returns when the call was issued.
func (p *PendingCall) Created() time.Time { return p.created }

// Deadline returns when the call times out.
func (p *PendingCall) Deadline() time.Time { return p.deadline }

// Done is closed once the call has resolved.
func (p *PendingCall) Done() <-chan struct{} { return p.done }

// Resolve sets the result. It returns false if the call was already
// resolved, in which case the arguments are discarded.
func (p *PendingCall) Resolve(payload []byte, err error) bool {
	resolved := false
	p.once.Do(func() {
		p.payload = payload
		p.err = err
		resolved = true
		close(p.done)
	})
	return resolved
}

// Result returns the resolved value. It must only be read after Done is
// closed.
func (p *PendingCall) Result() ([]byte, error) {
	return p.payload, p.err
}

// Await blocks until the call resolves, its deadline passes, or ctx ends.
// Deadline expiry resolves the call with the timeout error for its kind.
// Whichever resolution happened first is returned.
func (p *PendingCall) Await(ctx context.Context) ([]byte, error) {
	timer := time.NewTimer(time.Until(p.deadline))
	defer timer.Stop()

	select {
	case <-p.done:
	case <-timer.C:
		p.Resolve(nil, ErrTimeout(p.kind.timeoutCode(), p.target, p.action, p.deadline.Sub(p.created)))
	case <-ctx.Done():
		p.Resolve(nil, context.Cause(ctx))
	}
	return p.Result()
}
