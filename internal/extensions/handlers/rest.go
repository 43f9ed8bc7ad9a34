// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/stratanode/strata/internal/extensions"
)

// Route is one REST endpoint an extension serves.
type Route struct {
	Method string
	Path   string
}

// String returns "METHOD /path".
func (r Route) String() string { return r.Method + " " + r.Path }

var methods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// ParseRoute parses "METHOD /path".
func ParseRoute(s string) (Route, error) {
	method, path, ok := strings.Cut(strings.TrimSpace(s), " ")
	path = strings.TrimSpace(path)
	method = strings.ToUpper(method)
	if !ok || !slices.Contains(methods, method) || !strings.HasPrefix(path, "/") || strings.ContainsAny(path, " \t") {
		return Route{}, ErrInvalidRoute(s)
	}
	return Route{Method: method, Path: path}, nil
}

// RestActions records the REST routes each extension serves.
type RestActions struct {
	registry *extensions.Registry

	mu     sync.RWMutex
	owners map[Route]string
	routes map[string][]Route
}

// NewRestActions creates an empty route table.
func NewRestActions(registry *extensions.Registry) *RestActions {
	return &RestActions{
		registry: registry,
		owners:   make(map[Route]string),
		routes:   make(map[string][]Route),
	}
}

// Register adds the register-REST-actions handler to t.
func (r *RestActions) Register(t *extensions.DispatchTable) error {
	return extensions.Handle(t, extensions.ActionRegisterRestActions, r.handle)
}

func (r *RestActions) handle(ctx context.Context, req extensions.Request, body extensions.RegisterRestActionsRequest) (extensions.AcknowledgedResponse, error) {
	id, err := requester(r.registry, req, body.UniqueID)
	if err != nil {
		return extensions.AcknowledgedResponse{}, err
	}

	routes := make([]Route, 0, len(body.RestActions))
	for _, s := range body.RestActions {
		route, err := ParseRoute(s)
		if err != nil {
			return extensions.AcknowledgedResponse{}, err
		}
		routes = append(routes, route)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, route := range routes {
		if owner, ok := r.owners[route]; ok && owner != id {
			return extensions.AcknowledgedResponse{}, ErrRouteConflict(route, owner)
		}
	}
	for _, old := range r.routes[id] {
		delete(r.owners, old)
	}
	for _, route := range routes {
		r.owners[route] = id
	}
	r.routes[id] = routes

	slog.InfoContext(ctx, "registered extension REST actions",
		"extension_id", id,
		"count", len(routes))
	return extensions.AcknowledgedResponse{Acknowledged: true}, nil
}

// Lookup returns the extension serving method and path.
func (r *RestActions) Lookup(method, path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.owners[Route{Method: strings.ToUpper(method), Path: path}]
	return id, ok
}

// Routes returns the routes registered by extensionID.
func (r *RestActions) Routes(extensionID string) []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.routes[extensionID])
}
