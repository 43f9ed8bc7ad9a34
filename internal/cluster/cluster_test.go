// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package cluster_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratanode/strata/internal/cluster"
	"github.com/stratanode/strata/internal/extensions"
)

var (
	local = extensions.NodeDescriptor{ID: "node-1", Name: "node-1", Address: "10.0.0.1:9300"}
	peerA = extensions.NodeDescriptor{ID: "node-a", Name: "node-a", Address: "10.0.0.2:9300"}
	peerB = extensions.NodeDescriptor{ID: "node-b", Name: "node-b", Address: "10.0.0.3:9300"}
)

type moduleNames []string

func (m moduleNames) Names() []string { return m }

func TestNewPeersRequest(t *testing.T) {
	req, err := cluster.NewPeersRequest(local, []extensions.NodeDescriptor{peerB, peerA, peerA})
	require.NoError(t, err)
	assert.Equal(t, local, req.Source())
	assert.Equal(t, []extensions.NodeDescriptor{peerA, peerB}, req.KnownPeers())
	assert.Equal(t, 2, req.Len())
	assert.True(t, req.Knows(peerA))
	assert.False(t, req.Knows(local))

	_, err = cluster.NewPeersRequest(local, []extensions.NodeDescriptor{peerA, local})
	assert.ErrorIs(t, err, cluster.ErrSourceInKnownPeers)
}

func TestNewPeersRequest_IdentifiesPeersByID(t *testing.T) {
	moved := local
	moved.Address = "10.0.0.9:9300"
	_, err := cluster.NewPeersRequest(local, []extensions.NodeDescriptor{peerA, moved})
	assert.ErrorIs(t, err, cluster.ErrSourceInKnownPeers)

	renamed := peerA
	renamed.Address = "10.0.0.8:9300"
	req, err := cluster.NewPeersRequest(local, []extensions.NodeDescriptor{peerA, renamed})
	require.NoError(t, err)
	assert.Equal(t, []extensions.NodeDescriptor{peerA}, req.KnownPeers())
	assert.True(t, req.Knows(renamed))
}

func TestStatic_State(t *testing.T) {
	c := cluster.NewStatic("prod", local, extensions.NodeSettings{"a": "1"}, cluster.WithModules(moduleNames{"logs"}))

	s1 := c.State()
	assert.Equal(t, "prod", c.ClusterName())
	assert.Equal(t, "node-1", s1.LocalNodeID)
	assert.Equal(t, []extensions.NodeDescriptor{local}, s1.Nodes)
	assert.Equal(t, []string{"logs"}, s1.Modules)
	assert.NotEmpty(t, s1.StateUUID)

	assert.True(t, c.AddPeer(peerB))
	assert.True(t, c.AddPeer(peerA))
	assert.False(t, c.AddPeer(peerA))
	assert.False(t, c.AddPeer(local))

	s2 := c.State()
	assert.Equal(t, []extensions.NodeDescriptor{local, peerA, peerB}, s2.Nodes)
	assert.Greater(t, s2.Version, s1.Version)
	assert.NotEqual(t, s1.StateUUID, s2.StateUUID)

	assert.True(t, c.RemovePeer("node-a"))
	assert.False(t, c.RemovePeer("node-a"))
	assert.Len(t, c.State().Nodes, 2)
}

func TestStatic_SettingsUpdate(t *testing.T) {
	c := cluster.NewStatic("prod", local, extensions.NodeSettings{"mode": "lax"})

	var seen []string
	c.OnSettingsUpdate(func(key, value string) {
		assert.Equal(t, value, c.Settings()[key], "change is visible before listeners run")
		seen = append(seen, key+"="+value)
	})

	snapshot := c.Settings()
	c.UpdateSetting("mode", "strict")
	c.UpdateSetting("mode", "strict")
	c.UpdateSetting("replicas", "2")

	assert.Equal(t, []string{"mode=strict", "replicas=2"}, seen)
	assert.Equal(t, "lax", snapshot["mode"])
	assert.Equal(t, "strict", c.Settings()["mode"])
}

func TestStatic_PeerExchange(t *testing.T) {
	a := cluster.NewStatic("prod", peerA, nil)
	a.AddPeer(peerB)

	req, err := a.PeersRequest()
	require.NoError(t, err)
	assert.False(t, req.Knows(peerA))

	c := cluster.NewStatic("prod", local, nil)
	assert.Equal(t, 2, c.MergePeers(req))
	assert.Equal(t, 0, c.MergePeers(req))

	back, err := c.PeersRequest()
	require.NoError(t, err)
	assert.Equal(t, 1, a.MergePeers(back), "only the requester itself is new to a")
}
