// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package indices_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stratanode/strata/internal/extensions"
	"github.com/stratanode/strata/internal/extensions/extensionstest"
	"github.com/stratanode/strata/internal/indices"
)

type recordingObserver struct {
	attached []string
}

func (o *recordingObserver) OnModuleAttached(_ context.Context, m extensions.Module) {
	o.attached = append(o.attached, m.Name())
}

func TestService_CreateNotifiesObservers(t *testing.T) {
	obs := &recordingObserver{}
	svc := indices.NewService(obs)

	idx, err := svc.Create(context.Background(), "logs-2026")
	require.NoError(t, err)
	assert.Equal(t, "logs-2026", idx.Name())
	assert.NotEmpty(t, idx.UUID())
	assert.Equal(t, []string{"logs-2026"}, obs.attached)

	_, err = svc.Create(context.Background(), "logs-2026")
	assert.ErrorIs(t, err, indices.ErrIndexExists)

	_, err = svc.Create(context.Background(), "Bad Name")
	assert.ErrorIs(t, err, indices.ErrInvalidName)

	assert.Equal(t, []string{"logs-2026"}, obs.attached)
	assert.Equal(t, []string{"logs-2026"}, svc.Names())
}

func TestService_DeleteRunsListenersThenRemoves(t *testing.T) {
	svc := indices.NewService()
	idx, err := svc.Create(context.Background(), "metrics")
	require.NoError(t, err)

	var calls []string
	idx.AddRemovalListener(func(context.Context) {
		_, stillThere := svc.Get("metrics")
		assert.True(t, stillThere, "listeners run before removal")
		calls = append(calls, "first")
	})
	idx.AddRemovalListener(func(context.Context) { panic("listener bug") })
	idx.AddRemovalListener(func(context.Context) { calls = append(calls, "third") })

	require.NoError(t, svc.Delete(context.Background(), "metrics"))
	assert.Equal(t, []string{"first", "third"}, calls)

	_, ok := svc.Get("metrics")
	assert.False(t, ok)
	assert.ErrorIs(t, svc.Delete(context.Background(), "metrics"), indices.ErrIndexNotFound)
}

// Removal proceeds when the interested extension never acknowledges.
func TestService_WithExtensionHost(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := extensionstest.NewTransport()
	defer tr.Wait()

	registry := extensions.NewRegistry()
	for _, id := range []string{"interested", "bystander"} {
		require.NoError(t, registry.Register(extensionstest.Identity(id)))
		require.NoError(t, registry.BeginInitializing(id))
		require.NoError(t, registry.MarkInitialized(id))
	}
	tr.Respond("interested", extensions.ActionModuleAttached,
		extensionstest.Reply(extensions.ModuleResponse{RemovalListener: true}))
	tr.Respond("bystander", extensions.ActionModuleAttached,
		extensionstest.Reply(extensions.ModuleResponse{}))

	caller := extensions.NewCaller(tr, extensions.WithTimeout(30*time.Millisecond))
	forwarder := extensions.NewEventForwarder(registry, caller)
	svc := indices.NewService(forwarder)

	_, err := svc.Create(context.Background(), "orders")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), "orders"))

	assert.Len(t, tr.SentTo("interested", extensions.ActionModuleRemoval), 1)
	assert.Empty(t, tr.SentTo("bystander", extensions.ActionModuleRemoval))
	assert.Empty(t, svc.Names())
}

func TestService_ConcurrentDeleteRunsListenersOnce(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	svc := indices.NewService()
	idx, err := svc.Create(ctx, "logs")
	require.NoError(t, err)

	var runs atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	idx.AddRemovalListener(func(context.Context) {
		runs.Add(1)
		close(entered)
		<-release
	})

	first := make(chan error, 1)
	go func() { first <- svc.Delete(ctx, "logs") }()
	<-entered

	// While the first removal is in its listeners the index is claimed.
	assert.ErrorIs(t, svc.Delete(ctx, "logs"), indices.ErrIndexNotFound)
	_, err = svc.Create(ctx, "logs")
	assert.ErrorIs(t, err, indices.ErrIndexExists)
	_, ok := svc.Get("logs")
	assert.True(t, ok)

	close(release)
	require.NoError(t, <-first)
	assert.Equal(t, int32(1), runs.Load())
	assert.ErrorIs(t, svc.Delete(ctx, "logs"), indices.ErrIndexNotFound)

	// The name is free again once removal completes.
	_, err = svc.Create(ctx, "logs")
	assert.NoError(t, err)
}
