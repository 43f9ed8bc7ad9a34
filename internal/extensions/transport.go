// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import "context"

// ResponseHandler receives the reply to one Send. Exactly one of payload or
// err is meaningful. Transports call it at most once per Send.
type ResponseHandler func(payload []byte, err error)

// InboundHandler serves one inbound action. sender is the calling
// extension's id, or empty when unknown.
type InboundHandler func(ctx context.Context, sender string, payload []byte) ([]byte, error)

// Transport is the request/response channel between the host and its
// extensions. Implementations own wire encoding and connection management.
type Transport interface {
	// Connect opens (or reuses) a connection to the extension.
	Connect(ctx context.Context, identity Identity) error
	// Send delivers payload to target asynchronously. A non-nil return means
	// nothing was sent and onResponse will not be called.
	Send(ctx context.Context, target Identity, action string, payload []byte, onResponse ResponseHandler) error
	// Handle registers the server side of action.
	Handle(action string, handler InboundHandler)
	// LocalNode describes this host to extensions.
	LocalNode() NodeDescriptor
}
