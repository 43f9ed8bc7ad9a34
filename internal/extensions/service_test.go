// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stratanode/strata/internal/extensions"
	"github.com/stratanode/strata/internal/extensions/extensionstest"
	"github.com/stratanode/strata/pkg/errutil"
)

func TestService_StartAndStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := extensionstest.NewTransport()
	defer tr.Wait()

	ok := descriptor("ok")
	ok.Capabilities = []string{"internal:discovery/*"}
	tr.Respond("ok", extensions.ActionInitialize, extensionstest.Reply(extensions.InitializeResponse{Name: "ok-extension"}))

	svc, err := extensions.NewService(extensions.ServiceConfig{
		Transport:   tr,
		Cluster:     &staticCluster{name: "prod"},
		Source:      extensions.StaticSource{ok, descriptor("down")},
		Environment: extensions.NodeSettings{"node.name": "node-1"},
		Timeout:     30 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Table().Register("custom:action", echoHandler))
	assert.False(t, svc.Ready())

	report, err := svc.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, report.Initialized)
	assert.Equal(t, []string{"down"}, report.Failed)
	assert.True(t, svc.Ready())
	assert.True(t, tr.Handles(extensions.ActionEnvironmentSettings))
	assert.True(t, tr.Handles("custom:action"))

	errutil.AssertErrorCode(t, svc.Table().Register("late:action", echoHandler), extensions.CodeTableSealed)

	// The initialized extension may call built-ins it was granted.
	reply, err := tr.Inbound(context.Background(), "ok", extensions.ActionEnvironmentSettings, nil)
	require.NoError(t, err)
	env, err := extensions.Decode[extensions.EnvironmentSettingsResponse](reply)
	require.NoError(t, err)
	assert.Equal(t, "node-1", env.Settings["node.name"])

	_, err = tr.Inbound(context.Background(), "ok", "custom:action", nil)
	errutil.AssertErrorCode(t, err, extensions.CodePermissionDenied)

	_, err = tr.Inbound(context.Background(), "down", extensions.ActionClusterState, nil)
	errutil.AssertErrorCode(t, err, extensions.CodePermissionDenied)

	svc.Stop()
	assert.False(t, svc.Ready())
	assert.Equal(t, 0, svc.Registry().Len())
	assert.False(t, svc.Enforcer().IsRegistered("ok"))
}

func TestService_DiscoveryErrorAbortsStart(t *testing.T) {
	bad := descriptor("bad")
	bad.NodeVersion = "not-semver"

	svc, err := extensions.NewService(extensions.ServiceConfig{
		Transport: extensionstest.NewTransport(),
		Cluster:   &staticCluster{name: "prod"},
		Source:    extensions.StaticSource{descriptor("good"), bad},
	})
	require.NoError(t, err)

	_, err = svc.Start(context.Background())
	errutil.AssertErrorCode(t, err, extensions.CodeConfiguration)
	assert.False(t, svc.Ready())
	assert.Equal(t, 0, svc.Registry().Len())
}

func TestService_RequiresCollaborators(t *testing.T) {
	_, err := extensions.NewService(extensions.ServiceConfig{Cluster: &staticCluster{}})
	require.Error(t, err)

	_, err = extensions.NewService(extensions.ServiceConfig{Transport: extensionstest.NewTransport()})
	require.Error(t, err)
}
