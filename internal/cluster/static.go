// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package cluster provides the cluster membership view served to extensions.
package cluster

import (
	"crypto/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/stratanode/strata/internal/extensions"
)

// SettingsListener is told about each changed setting, after the change is
// visible through Settings.
type SettingsListener func(key, value string)

// ModuleSource lists the names of attached modules.
type ModuleSource interface {
	Names() []string
}

// Static is an in-process cluster view: the local node plus any peers it
// has been told about. It implements extensions.ClusterService.
type Static struct {
	name  string
	local extensions.NodeDescriptor

	mu        sync.RWMutex
	peers     map[string]extensions.NodeDescriptor
	settings  extensions.NodeSettings
	version   int64
	stateUUID string
	modules   ModuleSource
	listeners []SettingsListener
}

// Option configures a Static cluster.
type Option func(*Static)

// WithModules includes the names from src in every cluster state.
func WithModules(src ModuleSource) Option {
	return func(s *Static) {
		s.modules = src
	}
}

// NewStatic creates a single-node cluster view.
func NewStatic(name string, local extensions.NodeDescriptor, settings extensions.NodeSettings, opts ...Option) *Static {
	s := &Static{
		name:      name,
		local:     local,
		peers:     make(map[string]extensions.NodeDescriptor),
		settings:  settings.Clone(),
		version:   1,
		stateUUID: newStateUUID(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newStateUUID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// bump records a state change. Callers hold mu.
func (s *Static) bump() {
	s.version++
	s.stateUUID = newStateUUID()
}

// ClusterName implements extensions.ClusterService.
func (s *Static) ClusterName() string { return s.name }

// LocalNode returns the local node.
func (s *Static) LocalNode() extensions.NodeDescriptor { return s.local }

// State implements extensions.ClusterService.
func (s *Static) State() extensions.ClusterState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]extensions.NodeDescriptor, 0, len(s.peers)+1)
	nodes = append(nodes, s.local)
	for _, p := range s.peers {
		nodes = append(nodes, p)
	}
	slices.SortFunc(nodes[1:], func(a, b extensions.NodeDescriptor) int {
		return strings.Compare(a.ID, b.ID)
	})

	state := extensions.ClusterState{
		Version:       s.version,
		StateUUID:     s.stateUUID,
		LocalNodeID:   s.local.ID,
		ManagerNodeID: s.local.ID,
		Nodes:         nodes,
	}
	if s.modules != nil {
		state.Modules = s.modules.Names()
	}
	return state
}

// Settings implements extensions.ClusterService.
func (s *Static) Settings() extensions.NodeSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// OnSettingsUpdate registers fn for every later UpdateSetting.
func (s *Static) OnSettingsUpdate(fn SettingsListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// UpdateSetting changes one setting and notifies listeners. Setting a key to
// its current value is a no-op.
func (s *Static) UpdateSetting(key, value string) {
	s.mu.Lock()
	if current, ok := s.settings[key]; ok && current == value {
		s.mu.Unlock()
		return
	}
	s.settings[key] = value
	s.bump()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(key, value)
	}
}

// AddPeer adds node to the view. It returns false for the local node or a
// peer already present.
func (s *Static) AddPeer(node extensions.NodeDescriptor) bool {
	if node.ID == s.local.ID {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[node.ID]; ok {
		return false
	}
	s.peers[node.ID] = node
	s.bump()
	return true
}

// RemovePeer drops the peer with id.
func (s *Static) RemovePeer(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[id]; !ok {
		return false
	}
	delete(s.peers, id)
	s.bump()
	return true
}

// PeersRequest describes this node's membership view for exchange with
// another process.
func (s *Static) PeersRequest() (*PeersRequest, error) {
	s.mu.RLock()
	known := make([]extensions.NodeDescriptor, 0, len(s.peers))
	for _, p := range s.peers {
		known = append(known, p)
	}
	s.mu.RUnlock()
	return NewPeersRequest(s.local, known)
}

// MergePeers adds the sender of req and every peer it knows, except this
// node. It returns how many peers were new.
func (s *Static) MergePeers(req *PeersRequest) int {
	added := 0
	if s.AddPeer(req.Source()) {
		added++
	}
	for _, p := range req.KnownPeers() {
		if s.AddPeer(p) {
			added++
		}
	}
	return added
}
