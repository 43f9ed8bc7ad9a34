// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package handlers_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stratanode/strata/internal/extensions"
	"github.com/stratanode/strata/internal/extensions/extensionstest"
	"github.com/stratanode/strata/internal/extensions/handlers"
	"github.com/stratanode/strata/pkg/errutil"
)

type fixture struct {
	registry  *extensions.Registry
	transport *extensionstest.Transport
	caller    *extensions.Caller
	table     *extensions.DispatchTable
	set       *handlers.Set
}

func newFixture(t *testing.T, initialized ...string) *fixture {
	t.Helper()
	f := &fixture{
		registry:  extensions.NewRegistry(),
		transport: extensionstest.NewTransport(),
		table:     extensions.NewDispatchTable(),
	}
	f.caller = extensions.NewCaller(f.transport, extensions.WithTimeout(50*time.Millisecond))
	for _, id := range initialized {
		require.NoError(t, f.registry.Register(extensionstest.Identity(id)))
		require.NoError(t, f.registry.BeginInitializing(id))
		require.NoError(t, f.registry.MarkInitialized(id))
	}
	f.set = handlers.New(f.registry, f.caller)
	require.NoError(t, f.set.Register(f.table))
	f.table.Seal()
	return f
}

func dispatch[Req any](t *testing.T, f *fixture, sender, action string, body Req) (extensions.Response, error) {
	t.Helper()
	payload, err := extensions.Encode(body)
	require.NoError(t, err)
	return f.table.Dispatch(context.Background(), extensions.Request{Action: action, Sender: sender, Payload: payload})
}

func TestSet_RegistersDelegatedActions(t *testing.T) {
	f := newFixture(t)
	for _, action := range []string{
		extensions.ActionRegisterRestActions,
		extensions.ActionRegisterCustomSettings,
		extensions.ActionAddSettingsUpdateConsumer,
		extensions.ActionRegisterTransportActions,
		extensions.ActionTransportActionFromExtension,
	} {
		assert.True(t, f.table.Has(action), action)
	}

	err := handlers.New(f.registry, f.caller).Register(extensions.NewDispatchTable())
	require.NoError(t, err)
}

func TestParseRoute(t *testing.T) {
	tests := []struct {
		in      string
		want    handlers.Route
		wantErr bool
	}{
		{in: "GET /_extensions/geo", want: handlers.Route{Method: "GET", Path: "/_extensions/geo"}},
		{in: "post /items", want: handlers.Route{Method: "POST", Path: "/items"}},
		{in: "  DELETE   /items/{id}  ", want: handlers.Route{Method: "DELETE", Path: "/items/{id}"}},
		{in: "FETCH /items", wantErr: true},
		{in: "GET items", wantErr: true},
		{in: "GET", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := handlers.ParseRoute(tt.in)
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, handlers.CodeInvalidRoute)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRestActions(t *testing.T) {
	f := newFixture(t, "geo", "other")

	_, err := dispatch(t, f, "geo", extensions.ActionRegisterRestActions,
		extensions.RegisterRestActionsRequest{UniqueID: "geo", RestActions: []string{"GET /geo", "POST /geo/shape"}})
	require.NoError(t, err)

	id, ok := f.set.Rest.Lookup("get", "/geo")
	require.True(t, ok)
	assert.Equal(t, "geo", id)
	assert.Len(t, f.set.Rest.Routes("geo"), 2)

	_, err = dispatch(t, f, "other", extensions.ActionRegisterRestActions,
		extensions.RegisterRestActionsRequest{RestActions: []string{"GET /geo"}})
	errutil.AssertErrorCode(t, err, handlers.CodeRouteConflict)
	assert.Empty(t, f.set.Rest.Routes("other"))

	_, err = dispatch(t, f, "other", extensions.ActionRegisterRestActions,
		extensions.RegisterRestActionsRequest{RestActions: []string{"GET /other", "bogus"}})
	errutil.AssertErrorCode(t, err, handlers.CodeInvalidRoute)
	assert.Empty(t, f.set.Rest.Routes("other"))

	// Re-registration replaces the previous route set.
	_, err = dispatch(t, f, "geo", extensions.ActionRegisterRestActions,
		extensions.RegisterRestActionsRequest{RestActions: []string{"PUT /geo"}})
	require.NoError(t, err)
	_, ok = f.set.Rest.Lookup("GET", "/geo")
	assert.False(t, ok)
}

func TestRegistrationRequiresInitializedExtension(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.Register(extensionstest.Identity("pending")))

	_, err := dispatch(t, f, "pending", extensions.ActionRegisterRestActions,
		extensions.RegisterRestActionsRequest{RestActions: []string{"GET /x"}})
	errutil.AssertErrorCode(t, err, handlers.CodeNotInitialized)

	_, err = dispatch(t, f, "", extensions.ActionRegisterCustomSettings,
		extensions.RegisterCustomSettingsRequest{UniqueID: "ghost"})
	errutil.AssertErrorCode(t, err, extensions.CodeExtensionNotFound)
}

func TestRegistrationRejectsSenderSpeakingForAnother(t *testing.T) {
	f := newFixture(t, "geo", "other")

	_, err := dispatch(t, f, "other", extensions.ActionRegisterRestActions,
		extensions.RegisterRestActionsRequest{UniqueID: "geo", RestActions: []string{"GET /geo"}})
	errutil.AssertErrorCode(t, err, extensions.CodePermissionDenied)
	assert.Empty(t, f.set.Rest.Routes("geo"))

	_, err = dispatch(t, f, "other", extensions.ActionRegisterCustomSettings,
		extensions.RegisterCustomSettingsRequest{UniqueID: "geo"})
	errutil.AssertErrorCode(t, err, extensions.CodePermissionDenied)

	_, err = dispatch(t, f, "other", extensions.ActionRegisterTransportActions,
		extensions.RegisterTransportActionsRequest{UniqueID: "geo", Actions: []string{"geo:shape"}})
	errutil.AssertErrorCode(t, err, extensions.CodePermissionDenied)
	_, ok := f.set.Transport.Owner("geo:shape")
	assert.False(t, ok)

	// A matching body id is fine.
	_, err = dispatch(t, f, "geo", extensions.ActionRegisterRestActions,
		extensions.RegisterRestActionsRequest{UniqueID: "geo", RestActions: []string{"GET /geo"}})
	assert.NoError(t, err)
}

func TestCustomSettings(t *testing.T) {
	f := newFixture(t, "a", "b")

	_, err := dispatch(t, f, "a", extensions.ActionRegisterCustomSettings, extensions.RegisterCustomSettingsRequest{
		Settings: []extensions.SettingDefinition{{Key: "a.enabled", Type: "bool", Default: "true", Dynamic: true}},
	})
	require.NoError(t, err)

	owner, ok := f.set.Settings.Owner("a.enabled")
	require.True(t, ok)
	assert.Equal(t, "a", owner)
	assert.Equal(t, "bool", f.set.Settings.Definitions("a")[0].Type)

	_, err = dispatch(t, f, "b", extensions.ActionRegisterCustomSettings, extensions.RegisterCustomSettingsRequest{
		Settings: []extensions.SettingDefinition{{Key: "a.enabled"}},
	})
	errutil.AssertErrorCode(t, err, handlers.CodeSettingConflict)

	_, err = dispatch(t, f, "b", extensions.ActionRegisterCustomSettings, extensions.RegisterCustomSettingsRequest{
		Settings: []extensions.SettingDefinition{{Key: " "}},
	})
	errutil.AssertErrorCode(t, err, handlers.CodeInvalidSetting)
}

func TestSettingsConsumers_Notify(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t, "fast", "slow", "other")
	defer f.transport.Wait()

	for _, id := range []string{"fast", "slow"} {
		_, err := dispatch(t, f, id, extensions.ActionAddSettingsUpdateConsumer,
			extensions.AddSettingsUpdateConsumerRequest{Keys: []string{"cluster.mode"}})
		require.NoError(t, err)
	}
	// Subscribing twice is idempotent.
	_, err := dispatch(t, f, "fast", extensions.ActionAddSettingsUpdateConsumer,
		extensions.AddSettingsUpdateConsumerRequest{Keys: []string{"cluster.mode"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fast", "slow"}, f.set.Consumers.Subscribers("cluster.mode"))

	f.transport.Respond("fast", extensions.ActionUpdateSettings,
		extensionstest.Reply(extensions.AcknowledgedResponse{Acknowledged: true}))
	// slow never answers.

	acked := f.set.Consumers.Notify(context.Background(), "cluster.mode", "strict")
	assert.Equal(t, 1, acked)

	sent := f.transport.SentTo("fast", extensions.ActionUpdateSettings)
	require.Len(t, sent, 1)
	req, err := extensions.Decode[extensions.UpdateSettingsRequest](sent[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, extensions.UpdateSettingsRequest{Key: "cluster.mode", Value: "strict"}, req)
	assert.Len(t, f.transport.SentTo("slow", extensions.ActionUpdateSettings), 1)
	assert.Empty(t, f.transport.SentTo("other", extensions.ActionUpdateSettings))

	assert.Equal(t, 0, f.set.Consumers.Notify(context.Background(), "unwatched", "x"))
}

func TestTransportActions_Forward(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t, "owner", "client")
	defer f.transport.Wait()

	_, err := dispatch(t, f, "owner", extensions.ActionRegisterTransportActions,
		extensions.RegisterTransportActionsRequest{Actions: []string{"geo:lookup"}})
	require.NoError(t, err)

	_, err = dispatch(t, f, "client", extensions.ActionRegisterTransportActions,
		extensions.RegisterTransportActionsRequest{Actions: []string{"geo:lookup"}})
	errutil.AssertErrorCode(t, err, handlers.CodeActionConflict)

	f.transport.Respond("owner", extensions.ActionHandleTransportAction,
		func(_ context.Context, payload []byte) ([]byte, error) {
			req, err := extensions.Decode[extensions.ExtensionActionRequest](payload)
			if err != nil {
				return nil, err
			}
			return extensions.Encode(extensions.ExtensionActionResponse{Response: append([]byte("echo:"), req.Request...)})
		})

	resp, err := dispatch(t, f, "client", extensions.ActionTransportActionFromExtension,
		extensions.TransportActionRequestFromExtension{UniqueID: "client", Action: "geo:lookup", Request: []byte("paris")})
	require.NoError(t, err)
	out, err := extensions.Decode[extensions.ExtensionActionResponse](resp.Payload)
	require.NoError(t, err)
	assert.Equal(t, []byte("echo:paris"), out.Response)

	_, err = dispatch(t, f, "client", extensions.ActionTransportActionFromExtension,
		extensions.TransportActionRequestFromExtension{Action: "nobody:serves"})
	errutil.AssertErrorCode(t, err, extensions.CodeUnknownAction)
}

func TestTransportActions_ForwardTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t, "owner")

	_, err := dispatch(t, f, "owner", extensions.ActionRegisterTransportActions,
		extensions.RegisterTransportActionsRequest{Actions: []string{"slow:action"}})
	require.NoError(t, err)

	_, err = dispatch(t, f, "owner", extensions.ActionTransportActionFromExtension,
		extensions.TransportActionRequestFromExtension{Action: "slow:action"})
	errutil.AssertErrorCode(t, err, extensions.CodeRequestTimeout)
}
