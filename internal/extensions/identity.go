// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import (
	"net"
	"slices"
	"strconv"

	"github.com/Masterminds/semver/v3"
)

// Dependency is another extension this one declares it needs.
type Dependency struct {
	ID      string
	Version *semver.Version
}

// Identity describes one configured extension. It is produced once at
// discovery time and never mutated; accessors return copies.
type Identity struct {
	id               string
	name             string
	description      string
	hostName         string
	host             string
	port             uint16
	version          *semver.Version
	nodeVersion      *semver.Version
	runtimeVersion   string
	entryPoint       string
	dependencies     []Dependency
	capabilities     []string
	nativeController bool
}

// IdentitySpec carries the already-parsed fields of an Identity.
type IdentitySpec struct {
	ID               string
	Name             string
	Description      string
	HostName         string
	Host             string
	Port             uint16
	Version          *semver.Version
	NodeVersion      *semver.Version
	RuntimeVersion   string
	EntryPoint       string
	Dependencies     []Dependency
	Capabilities     []string
	NativeController bool
}

// NewIdentity builds an immutable Identity from spec.
func NewIdentity(spec IdentitySpec) Identity {
	return Identity{
		id:               spec.ID,
		name:             spec.Name,
		description:      spec.Description,
		hostName:         spec.HostName,
		host:             spec.Host,
		port:             spec.Port,
		version:          spec.Version,
		nodeVersion:      spec.NodeVersion,
		runtimeVersion:   spec.RuntimeVersion,
		entryPoint:       spec.EntryPoint,
		dependencies:     slices.Clone(spec.Dependencies),
		capabilities:     slices.Clone(spec.Capabilities),
		nativeController: spec.NativeController,
	}
}

// ID returns the unique extension id.
func (i Identity) ID() string { return i.id }

// Name returns the display name. Handshake replies are matched on it.
func (i Identity) Name() string { return i.name }

// Description returns the free-form description.
func (i Identity) Description() string { return i.description }

// HostName returns the declared host name.
func (i Identity) HostName() string { return i.hostName }

// Host returns the address the extension listens on.
func (i Identity) Host() string { return i.host }

// Port returns the port the extension listens on.
func (i Identity) Port() uint16 { return i.port }

// Endpoint returns host:port.
func (i Identity) Endpoint() string {
	return net.JoinHostPort(i.host, strconv.Itoa(int(i.port)))
}

// Version returns the extension's own version.
func (i Identity) Version() *semver.Version { return i.version }

// NodeVersion returns the host protocol version the extension was built for.
func (i Identity) NodeVersion() *semver.Version { return i.nodeVersion }

// RuntimeVersion returns the declared runtime version.
func (i Identity) RuntimeVersion() string { return i.runtimeVersion }

// EntryPoint returns the implementation entry-point identifier.
func (i Identity) EntryPoint() string { return i.entryPoint }

// Dependencies returns a copy of the declared dependencies.
func (i Identity) Dependencies() []Dependency { return slices.Clone(i.dependencies) }

// Capabilities returns a copy of the declared capability patterns.
func (i Identity) Capabilities() []string { return slices.Clone(i.capabilities) }

// NativeController reports the native-controller flag.
func (i Identity) NativeController() bool { return i.nativeController }

// Descriptor returns the wire form sent in the handshake.
func (i Identity) Descriptor() ExtensionDescriptor {
	deps := make([]DependencyDescriptor, len(i.dependencies))
	for n, d := range i.dependencies {
		deps[n] = DependencyDescriptor{ID: d.ID, Version: versionString(d.Version)}
	}
	return ExtensionDescriptor{
		ID:               i.id,
		Name:             i.name,
		Address:          i.Endpoint(),
		Version:          versionString(i.version),
		NodeVersion:      versionString(i.nodeVersion),
		Dependencies:     deps,
		NativeController: i.nativeController,
	}
}

func versionString(v *semver.Version) string {
	if v == nil {
		return ""
	}
	return v.String()
}
