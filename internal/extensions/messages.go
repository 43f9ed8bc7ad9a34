// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

// NodeDescriptor identifies a process taking part in the protocol: the host
// node itself or an extension seen as a peer.
type NodeDescriptor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Version string `json:"version,omitempty"`
}

// ExtensionDescriptor is the wire form of an Identity.
type ExtensionDescriptor struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Address          string                 `json:"address"`
	Version          string                 `json:"version,omitempty"`
	NodeVersion      string                 `json:"nodeVersion"`
	Dependencies     []DependencyDescriptor `json:"dependencies,omitempty"`
	NativeController bool                   `json:"nativeController,omitempty"`
}

// DependencyDescriptor is the wire form of a Dependency.
type DependencyDescriptor struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// InitializeRequest opens the handshake. It carries the host's own
// descriptor so the extension can call back.
type InitializeRequest struct {
	SourceNode NodeDescriptor      `json:"sourceNode"`
	Extension  ExtensionDescriptor `json:"extension"`
}

// InitializeResponse completes the handshake. Name must match the configured
// extension name.
type InitializeResponse struct {
	Name        string   `json:"name"`
	Implemented []string `json:"implemented,omitempty"`
}

// ModuleDescriptor identifies a host module in notifications.
type ModuleDescriptor struct {
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

// ModuleRequest is sent for module-attach and pre-removal notifications.
type ModuleRequest struct {
	Module ModuleDescriptor `json:"module"`
}

// ModuleResponse answers a module-attach notification.
type ModuleResponse struct {
	RemovalListener bool `json:"removalListener"`
}

// AcknowledgedResponse is the plain acknowledgement reply.
type AcknowledgedResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// Empty is the payload of requests that carry no arguments.
type Empty struct{}

// NodeSettings is a flat key/value view of node settings.
type NodeSettings map[string]string

// Clone returns an independent copy of s.
func (s NodeSettings) Clone() NodeSettings {
	out := make(NodeSettings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ClusterState is the read-only cluster view served to extensions.
type ClusterState struct {
	Version       int64            `json:"version"`
	StateUUID     string           `json:"stateUuid"`
	LocalNodeID   string           `json:"localNodeId"`
	ManagerNodeID string           `json:"managerNodeId,omitempty"`
	Nodes         []NodeDescriptor `json:"nodes"`
	Modules       []string         `json:"modules,omitempty"`
}

// ClusterStateResponse answers ActionClusterState.
type ClusterStateResponse struct {
	ClusterName string       `json:"clusterName"`
	State       ClusterState `json:"state"`
}

// ClusterSettingsResponse answers ActionClusterSettings.
type ClusterSettingsResponse struct {
	Settings NodeSettings `json:"settings"`
}

// EnvironmentSettingsResponse answers ActionEnvironmentSettings.
type EnvironmentSettingsResponse struct {
	Settings NodeSettings `json:"settings"`
}

// RegisterRestActionsRequest declares the REST routes an extension serves,
// each written as "METHOD /path".
type RegisterRestActionsRequest struct {
	UniqueID    string   `json:"uniqueId"`
	RestActions []string `json:"restActions"`
}

// SettingDefinition is one custom setting contributed by an extension.
type SettingDefinition struct {
	Key     string `json:"key"`
	Type    string `json:"type,omitempty"`
	Default string `json:"default,omitempty"`
	Dynamic bool   `json:"dynamic,omitempty"`
}

// RegisterCustomSettingsRequest declares an extension's custom settings.
type RegisterCustomSettingsRequest struct {
	UniqueID string              `json:"uniqueId"`
	Settings []SettingDefinition `json:"settings"`
}

// AddSettingsUpdateConsumerRequest subscribes an extension to setting keys.
type AddSettingsUpdateConsumerRequest struct {
	UniqueID string   `json:"uniqueId"`
	Keys     []string `json:"keys"`
}

// UpdateSettingsRequest pushes one changed setting to a subscriber.
type UpdateSettingsRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RegisterTransportActionsRequest declares the transport actions an
// extension serves for other extensions.
type RegisterTransportActionsRequest struct {
	UniqueID string   `json:"uniqueId"`
	Actions  []string `json:"actions"`
}

// TransportActionRequestFromExtension asks the host to forward Request to
// whichever extension registered Action.
type TransportActionRequestFromExtension struct {
	UniqueID string `json:"uniqueId"`
	Action   string `json:"action"`
	Request  []byte `json:"request,omitempty"`
}

// ExtensionActionRequest is delivered to the extension that owns Action.
type ExtensionActionRequest struct {
	Action  string `json:"action"`
	Request []byte `json:"request,omitempty"`
}

// ExtensionActionResponse carries the owner's reply bytes.
type ExtensionActionResponse struct {
	Response []byte `json:"response,omitempty"`
}
