// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensionsdk

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/stratanode/strata/internal/extensions"
	"github.com/stratanode/strata/internal/extensions/handlers"
	"github.com/stratanode/strata/internal/transport/grpctransport"
	"github.com/stratanode/strata/pkg/errutil"
)

// Registration retry bounds. The host marks an extension initialized only
// after it has read the handshake reply, so a registration sent right
// after Initialized fires can briefly see NOT_INITIALIZED.
const (
	registerBackoffBase = 50 * time.Millisecond
	registerBackoffCap  = time.Second
	registerMaxRetries  = 8
)

// Host is the extension's client for the node that initialized it.
type Host struct {
	transport *grpctransport.Transport
	node      extensions.NodeDescriptor
	uniqueID  string
	timeout   time.Duration
}

// Node describes the host node.
func (h *Host) Node() extensions.NodeDescriptor { return h.node }

// ClusterState fetches the host's cluster view.
func (h *Host) ClusterState(ctx context.Context) (extensions.ClusterStateResponse, error) {
	return call[extensions.Empty, extensions.ClusterStateResponse](ctx, h, extensions.ActionClusterState, extensions.Empty{})
}

// ClusterSettings fetches the host's current cluster settings.
func (h *Host) ClusterSettings(ctx context.Context) (extensions.NodeSettings, error) {
	resp, err := call[extensions.Empty, extensions.ClusterSettingsResponse](ctx, h, extensions.ActionClusterSettings, extensions.Empty{})
	return resp.Settings, err
}

// EnvironmentSettings fetches the settings the host node started with.
func (h *Host) EnvironmentSettings(ctx context.Context) (extensions.NodeSettings, error) {
	resp, err := call[extensions.Empty, extensions.EnvironmentSettingsResponse](ctx, h, extensions.ActionEnvironmentSettings, extensions.Empty{})
	return resp.Settings, err
}

// RegisterRestActions declares the REST routes this extension serves,
// each written as "METHOD /path".
func (h *Host) RegisterRestActions(ctx context.Context, routes ...string) error {
	return h.register(ctx, extensions.ActionRegisterRestActions,
		extensions.RegisterRestActionsRequest{UniqueID: h.uniqueID, RestActions: routes})
}

// RegisterCustomSettings declares settings this extension contributes.
func (h *Host) RegisterCustomSettings(ctx context.Context, defs ...extensions.SettingDefinition) error {
	return h.register(ctx, extensions.ActionRegisterCustomSettings,
		extensions.RegisterCustomSettingsRequest{UniqueID: h.uniqueID, Settings: defs})
}

// AddSettingsUpdateConsumer subscribes this extension to updates of keys.
func (h *Host) AddSettingsUpdateConsumer(ctx context.Context, keys ...string) error {
	return h.register(ctx, extensions.ActionAddSettingsUpdateConsumer,
		extensions.AddSettingsUpdateConsumerRequest{UniqueID: h.uniqueID, Keys: keys})
}

// RegisterTransportActions declares actions this extension serves for
// other extensions.
func (h *Host) RegisterTransportActions(ctx context.Context, actions ...string) error {
	return h.register(ctx, extensions.ActionRegisterTransportActions,
		extensions.RegisterTransportActionsRequest{UniqueID: h.uniqueID, Actions: actions})
}

// SendTransportAction asks the host to forward request to the extension
// that registered action, and returns that extension's reply.
func (h *Host) SendTransportAction(ctx context.Context, action string, request []byte) ([]byte, error) {
	resp, err := call[extensions.TransportActionRequestFromExtension, extensions.ExtensionActionResponse](ctx, h,
		extensions.ActionTransportActionFromExtension,
		extensions.TransportActionRequestFromExtension{UniqueID: h.uniqueID, Action: action, Request: request})
	return resp.Response, err
}

// register sends a registration request, retrying while the host still
// reports this extension as not initialized.
func (h *Host) register(ctx context.Context, action string, req any) error {
	backoff := retry.WithMaxRetries(registerMaxRetries,
		retry.WithCappedDuration(registerBackoffCap, retry.NewExponential(registerBackoffBase)))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := call[any, extensions.AcknowledgedResponse](ctx, h, action, req)
		if errutil.HasCode(err, handlers.CodeNotInitialized) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func call[Req, Resp any](ctx context.Context, h *Host, action string, req Req) (Resp, error) {
	var zero Resp
	payload, err := extensions.Encode(req)
	if err != nil {
		return zero, extensions.ErrHandler(action, err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	reply, err := h.transport.Call(ctx, h.node.ID, action, payload)
	if err != nil {
		if errutil.Code(err) != "" {
			return zero, err
		}
		return zero, extensions.ErrTransport(h.node.ID, action, err)
	}
	resp, err := extensions.Decode[Resp](reply)
	if err != nil {
		return zero, extensions.ErrTransport(h.node.ID, action, err)
	}
	return resp, nil
}
