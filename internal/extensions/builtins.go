// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import (
	"context"
	"errors"
)

// ClusterService is the read-only cluster membership view the built-in
// queries delegate to.
type ClusterService interface {
	ClusterName() string
	State() ClusterState
	Settings() NodeSettings
}

// RegisterBuiltins registers the cluster-state, cluster-settings and
// environment-settings queries. environment is copied now; later changes to
// the node's settings are not reflected in environment-settings replies.
func RegisterBuiltins(t *DispatchTable, cluster ClusterService, environment NodeSettings) error {
	if cluster == nil {
		return errors.New("cluster service is required")
	}
	snapshot := environment.Clone()

	return errors.Join(
		Handle(t, ActionClusterState, func(_ context.Context, _ Request, _ Empty) (ClusterStateResponse, error) {
			return ClusterStateResponse{
				ClusterName: cluster.ClusterName(),
				State:       cluster.State(),
			}, nil
		}),
		Handle(t, ActionClusterSettings, func(_ context.Context, _ Request, _ Empty) (ClusterSettingsResponse, error) {
			return ClusterSettingsResponse{Settings: cluster.Settings().Clone()}, nil
		}),
		Handle(t, ActionEnvironmentSettings, func(_ context.Context, _ Request, _ Empty) (EnvironmentSettingsResponse, error) {
			return EnvironmentSettingsResponse{Settings: snapshot.Clone()}, nil
		}),
	)
}
