// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stratanode/strata/pkg/errutil"
)

// DefaultTimeout bounds every outbound call unless configured otherwise.
const DefaultTimeout = 10 * time.Second

var tracer = otel.Tracer("strata/extensions")

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

func newCallID() string {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Caller issues outbound requests to extensions and correlates their
// asynchronous responses. Each call blocks only its own goroutine.
type Caller struct {
	transport Transport
	timeout   time.Duration

	inflight sync.Map // call id -> *PendingCall
	closed   atomic.Bool
}

// CallerOption configures a Caller.
type CallerOption func(*Caller)

// WithTimeout sets the bounded wait for every call. Non-positive values keep
// DefaultTimeout.
func WithTimeout(d time.Duration) CallerOption {
	return func(c *Caller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewCaller creates a Caller sending through transport.
func NewCaller(transport Transport, opts ...CallerOption) *Caller {
	c := &Caller{transport: transport, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the bounded wait applied to each call.
func (c *Caller) Timeout() time.Duration { return c.timeout }

// InFlight returns the number of calls awaiting resolution.
func (c *Caller) InFlight() int {
	n := 0
	c.inflight.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Call sends payload to target and waits for the correlated response, the
// call deadline, or ctx, whichever comes first. Deadline expiry fails with the
// timeout code for kind.
func (c *Caller) Call(ctx context.Context, target Identity, action string, payload []byte, kind CallKind) (resp []byte, err error) {
	if c.closed.Load() {
		return nil, ErrCallerClosed(target.ID(), action)
	}

	start := time.Now()
	call := newPendingCall(newCallID(), target.ID(), action, kind, start, c.timeout)

	ctx, span := tracer.Start(ctx, "extensions.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("extension.id", target.ID()),
			attribute.String("extension.action", action),
			attribute.String("extension.call_id", call.ID()),
			attribute.String("extension.call_kind", kind.String()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		RecordCall(action, callOutcome(err), time.Since(start))
	}()

	c.inflight.Store(call.ID(), call)
	defer c.inflight.Delete(call.ID())

	// Close may have swept the table between the check above and Store.
	if c.closed.Load() {
		call.Resolve(nil, ErrCallerClosed(target.ID(), action))
	}

	sendCtx, cancel := context.WithDeadline(ctx, call.Deadline())
	defer cancel()

	onResponse := func(reply []byte, replyErr error) {
		switch {
		case replyErr == nil:
		case !time.Now().Before(call.Deadline()):
			// The transport gave up because sendCtx expired.
			replyErr = ErrTimeout(kind.timeoutCode(), target.ID(), action, c.timeout)
		case errutil.Code(replyErr) == "":
			replyErr = ErrTransport(target.ID(), action, replyErr)
		}
		if !call.Resolve(reply, replyErr) {
			StaleResponses.Inc()
			slog.Debug("discarding stale extension response",
				"extension_id", target.ID(),
				"action", action,
				"call_id", call.ID(),
				"late_by", time.Since(call.Deadline()).String())
		}
	}

	if sendErr := c.transport.Send(sendCtx, target, action, payload, onResponse); sendErr != nil {
		call.Resolve(nil, ErrTransport(target.ID(), action, sendErr))
	}

	return call.Await(ctx)
}

// Close fails every in-flight call with CALLER_CLOSED and rejects new ones.
func (c *Caller) Close() {
	c.closed.Store(true)
	c.inflight.Range(func(_, v any) bool {
		call := v.(*PendingCall)
		call.Resolve(nil, ErrCallerClosed(call.Target(), call.Action()))
		return true
	})
}

func callOutcome(err error) string {
	switch errutil.Code(err) {
	case "":
		if err == nil {
			return OutcomeSuccess
		}
		return OutcomeFailure
	case CodeInitializationTimeout, CodeNotificationTimeout, CodeRequestTimeout:
		return OutcomeTimeout
	case CodeCallerClosed:
		return OutcomeClosed
	default:
		return OutcomeFailure
	}
}

// Invoke encodes req, calls action on target, and decodes the reply as Resp.
// An undecodable reply is a TRANSPORT_FAILURE.
func Invoke[Req, Resp any](ctx context.Context, c *Caller, target Identity, action string, kind CallKind, req Req) (Resp, error) {
	var zero Resp
	payload, err := Encode(req)
	if err != nil {
		return zero, oops.Code(CodeHandlerError).
			With("extension_id", target.ID()).
			With("action", action).
			Wrap(err)
	}
	reply, err := c.Call(ctx, target, action, payload, kind)
	if err != nil {
		return zero, err
	}
	resp, err := Decode[Resp](reply)
	if err != nil {
		return zero, ErrTransport(target.ID(), action, err)
	}
	return resp, nil
}
