// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

// Action names are part of the wire contract with extensions. They must not
// be renamed without a migration plan, including the misspelled
// environment-settings name that deployed extensions already send.
const (
	// Host to extension.
	ActionInitialize            = "internal:discovery/extensions"
	ActionModuleAttached        = "indices:internal/extensions"
	ActionModuleRemoval         = "indices:internal/name"
	ActionUpdateSettings        = "internal:discovery/updatesettings"
	ActionHandleTransportAction = "internal:extensions/handle-transportaction"

	// Extension to host.
	ActionClusterState                 = "internal:discovery/clusterstate"
	ActionClusterSettings              = "internal:discovery/clustersettings"
	ActionEnvironmentSettings          = "internal:discovery/enviornmentsettings"
	ActionAddSettingsUpdateConsumer    = "internal:discovery/addsettingsupdateconsumer"
	ActionRegisterCustomSettings       = "internal:discovery/registercustomsettings"
	ActionRegisterRestActions          = "internal:discovery/registerrestactions"
	ActionRegisterTransportActions     = "internal:discovery/registertransportactions"
	ActionTransportActionFromExtension = "internal:extensions/request-transportaction-from-extension"
)

// CallKind classifies an outbound call. It selects the timeout code reported
// when no response arrives in time.
type CallKind uint8

// Outbound call kinds.
const (
	CallInitialize CallKind = iota
	CallNotification
	CallRequest
)

// String returns the metric label for k.
func (k CallKind) String() string {
	switch k {
	case CallInitialize:
		return "initialize"
	case CallNotification:
		return "notification"
	case CallRequest:
		return "request"
	default:
		return "unknown"
	}
}

func (k CallKind) timeoutCode() string {
	switch k {
	case CallInitialize:
		return CodeInitializationTimeout
	case CallNotification:
		return CodeNotificationTimeout
	default:
		return CodeRequestTimeout
	}
}
