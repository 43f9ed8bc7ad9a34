// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package handlers

import (
	"github.com/samber/oops"
)

// Error codes for delegated registration requests.
const (
	CodeInvalidRoute    = "INVALID_ROUTE"
	CodeRouteConflict   = "ROUTE_CONFLICT"
	CodeInvalidSetting  = "INVALID_SETTING"
	CodeSettingConflict = "SETTING_CONFLICT"
	CodeActionConflict  = "ACTION_CONFLICT"
	CodeNotInitialized  = "NOT_INITIALIZED"
)

// ErrInvalidRoute rejects a REST action that is not "METHOD /path".
func ErrInvalidRoute(route string) error {
	return oops.Code(CodeInvalidRoute).
		With("route", route).
		Errorf("invalid REST action %q, want \"METHOD /path\"", route)
}

// ErrRouteConflict rejects a route already owned by another extension.
func ErrRouteConflict(route Route, owner string) error {
	return oops.Code(CodeRouteConflict).
		With("route", route.String()).
		With("owner", owner).
		Errorf("REST action %s is already registered by %q", route, owner)
}

// ErrInvalidSetting rejects a setting definition without a key.
func ErrInvalidSetting(extensionID string) error {
	return oops.Code(CodeInvalidSetting).
		With("extension_id", extensionID).
		Errorf("custom setting from %q has no key", extensionID)
}

// ErrSettingConflict rejects a setting key owned by another extension.
func ErrSettingConflict(key, owner string) error {
	return oops.Code(CodeSettingConflict).
		With("key", key).
		With("owner", owner).
		Errorf("setting %s is already registered by %q", key, owner)
}

// ErrActionConflict rejects a transport action owned by another extension.
func ErrActionConflict(action, owner string) error {
	return oops.Code(CodeActionConflict).
		With("action", action).
		With("owner", owner).
		Errorf("transport action %s is already registered by %q", action, owner)
}

// ErrNotInitialized is returned when a request names an extension that has
// not completed its handshake.
func ErrNotInitialized(extensionID string) error {
	return oops.Code(CodeNotInitialized).
		With("extension_id", extensionID).
		Errorf("extension %q is not initialized", extensionID)
}
