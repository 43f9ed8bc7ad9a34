// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package handlers

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/stratanode/strata/internal/extensions"
	"github.com/stratanode/strata/pkg/errutil"
)

// SettingsConsumers tracks which extensions want to hear about changes to
// which setting keys, and pushes those changes.
type SettingsConsumers struct {
	registry *extensions.Registry
	caller   *extensions.Caller

	mu   sync.RWMutex
	subs map[string][]string // key -> extension ids
}

// NewSettingsConsumers creates an empty subscription table.
func NewSettingsConsumers(registry *extensions.Registry, caller *extensions.Caller) *SettingsConsumers {
	return &SettingsConsumers{
		registry: registry,
		caller:   caller,
		subs:     make(map[string][]string),
	}
}

// Register adds the add-settings-update-consumer handler to t.
func (c *SettingsConsumers) Register(t *extensions.DispatchTable) error {
	return extensions.Handle(t, extensions.ActionAddSettingsUpdateConsumer, c.handle)
}

func (c *SettingsConsumers) handle(_ context.Context, req extensions.Request, body extensions.AddSettingsUpdateConsumerRequest) (extensions.AcknowledgedResponse, error) {
	id, err := requester(c.registry, req, body.UniqueID)
	if err != nil {
		return extensions.AcknowledgedResponse{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range body.Keys {
		if !slices.Contains(c.subs[key], id) {
			c.subs[key] = append(c.subs[key], id)
		}
	}
	return extensions.AcknowledgedResponse{Acknowledged: true}, nil
}

// Subscribers returns the extensions subscribed to key.
func (c *SettingsConsumers) Subscribers(key string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.subs[key])
}

// Notify pushes a changed setting to every initialized subscriber, in
// parallel, each with the caller's bounded wait. Failures are logged. It
// returns how many subscribers acknowledged.
func (c *SettingsConsumers) Notify(ctx context.Context, key, value string) int {
	var (
		acked atomic.Int32
		g     errgroup.Group
	)
	for _, id := range c.Subscribers(key) {
		rec, ok := c.registry.Lookup(id)
		if !ok || rec.State() != extensions.StateInitialized {
			continue
		}
		identity := rec.Identity()
		g.Go(func() error {
			resp, err := extensions.Invoke[extensions.UpdateSettingsRequest, extensions.AcknowledgedResponse](
				ctx, c.caller, identity, extensions.ActionUpdateSettings, extensions.CallNotification,
				extensions.UpdateSettingsRequest{Key: key, Value: value})
			if err != nil {
				errutil.WarnError(ctx, nil, "settings update notification failed", err,
					"extension_id", identity.ID(),
					"key", key)
				return nil
			}
			if resp.Acknowledged {
				acked.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait() // failures are logged per subscriber
	return int(acked.Load())
}
