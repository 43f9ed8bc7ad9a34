// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package cluster

import (
	"errors"
	"slices"
	"strings"

	goset "github.com/deckarep/golang-set/v2"

	"github.com/stratanode/strata/internal/extensions"
)

// ErrSourceInKnownPeers is returned when a peers request lists its own
// source among the known peers.
var ErrSourceInKnownPeers = errors.New("source peer must not be among its known peers")

// PeersRequest pairs a sender with the peers it knows about. Peers are
// identified by node id, and the source is never a member of its own known
// set.
type PeersRequest struct {
	source extensions.NodeDescriptor
	ids    goset.Set[string]
	known  []extensions.NodeDescriptor
}

// NewPeersRequest builds a request from source and its known peers. When
// several descriptors share an id the first one is kept.
func NewPeersRequest(source extensions.NodeDescriptor, known []extensions.NodeDescriptor) (*PeersRequest, error) {
	req := &PeersRequest{source: source, ids: goset.NewThreadUnsafeSet[string]()}
	for _, peer := range known {
		if peer.ID == source.ID {
			return nil, ErrSourceInKnownPeers
		}
		if req.ids.Add(peer.ID) {
			req.known = append(req.known, peer)
		}
	}
	slices.SortFunc(req.known, func(a, b extensions.NodeDescriptor) int {
		return strings.Compare(a.ID, b.ID)
	})
	return req, nil
}

// Source returns the sending peer.
func (r *PeersRequest) Source() extensions.NodeDescriptor { return r.source }

// KnownPeers returns the known peers sorted by id.
func (r *PeersRequest) KnownPeers() []extensions.NodeDescriptor {
	return slices.Clone(r.known)
}

// Knows reports whether a peer with the same id is in the known set.
func (r *PeersRequest) Knows(peer extensions.NodeDescriptor) bool {
	return r.ids.Contains(peer.ID)
}

// Len returns the number of known peers.
func (r *PeersRequest) Len() int { return r.ids.Cardinality() }
