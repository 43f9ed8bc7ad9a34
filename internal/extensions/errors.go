// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import (
	"time"

	"github.com/samber/oops"
)

// Error codes for extension host failures. Codes are stable and surface in
// logs and metrics.
const (
	CodeDuplicateID           = "DUPLICATE_ID"
	CodeConfiguration         = "CONFIGURATION_ERROR"
	CodeUnknownAction         = "UNKNOWN_ACTION"
	CodeDuplicateAction       = "DUPLICATE_ACTION"
	CodeTableSealed           = "TABLE_SEALED"
	CodeHandlerError          = "HANDLER_ERROR"
	CodePermissionDenied      = "PERMISSION_DENIED"
	CodeTransportFailure      = "TRANSPORT_FAILURE"
	CodeInitializationTimeout = "INITIALIZATION_TIMEOUT"
	CodeNotificationTimeout   = "NOTIFICATION_TIMEOUT"
	CodeRequestTimeout        = "REQUEST_TIMEOUT"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeExtensionNotFound     = "EXTENSION_NOT_FOUND"
	CodeCallerClosed          = "CALLER_CLOSED"
)

// ErrDuplicateID is returned when an extension id is already registered.
func ErrDuplicateID(id string) error {
	return oops.Code(CodeDuplicateID).
		With("extension_id", id).
		Errorf("extension %q is already registered", id)
}

// ErrConfiguration wraps a malformed extension configuration entry.
func ErrConfiguration(entry string, cause error) error {
	return oops.Code(CodeConfiguration).
		With("entry", entry).
		Wrapf(cause, "invalid extension configuration")
}

// ErrUnknownAction is returned by Dispatch for unregistered action names.
func ErrUnknownAction(action string) error {
	return oops.Code(CodeUnknownAction).
		With("action", action).
		Errorf("no handler registered for action %s", action)
}

// ErrDuplicateAction is returned when an action name is registered twice.
func ErrDuplicateAction(action string) error {
	return oops.Code(CodeDuplicateAction).
		With("action", action).
		Errorf("action %s is already registered", action)
}

// ErrTableSealed is returned when registering after startup completed.
func ErrTableSealed(action string) error {
	return oops.Code(CodeTableSealed).
		With("action", action).
		Errorf("dispatch table is sealed, cannot register %s", action)
}

// ErrHandler wraps a handler failure that carries no code of its own.
func ErrHandler(action string, cause error) error {
	return oops.Code(CodeHandlerError).
		With("action", action).
		Wrapf(cause, "handler for %s failed", action)
}

// ErrPermissionDenied is returned when an extension invokes an action it was
// not granted.
func ErrPermissionDenied(extensionID, action string) error {
	return oops.Code(CodePermissionDenied).
		With("extension_id", extensionID).
		With("action", action).
		Errorf("extension %q may not invoke %s", extensionID, action)
}

// ErrTransport wraps a connection or send failure.
func ErrTransport(extensionID, action string, cause error) error {
	return oops.Code(CodeTransportFailure).
		With("extension_id", extensionID).
		With("action", action).
		Wrapf(cause, "transport failure")
}

// ErrTimeout is returned when a pending call reaches its deadline. code is one
// of the *Timeout codes.
func ErrTimeout(code, extensionID, action string, after time.Duration) error {
	return oops.Code(code).
		With("extension_id", extensionID).
		With("action", action).
		With("timeout", after.String()).
		Errorf("no response from extension %q to %s within %s", extensionID, action, after)
}

// ErrInvalidTransition is returned when a lifecycle transition is not allowed
// from the record's current state.
func ErrInvalidTransition(id string, from, to State) error {
	return oops.Code(CodeInvalidTransition).
		With("extension_id", id).
		With("from", from.String()).
		With("to", to.String()).
		Errorf("extension %q cannot move from %s to %s", id, from, to)
}

// ErrExtensionNotFound is returned for ids the registry does not know.
func ErrExtensionNotFound(id string) error {
	return oops.Code(CodeExtensionNotFound).
		With("extension_id", id).
		Errorf("extension %q not found", id)
}

// ErrCallerClosed resolves calls still in flight when the caller shuts down.
func ErrCallerClosed(extensionID, action string) error {
	return oops.Code(CodeCallerClosed).
		With("extension_id", extensionID).
		With("action", action).
		Errorf("caller closed before %s completed", action)
}
