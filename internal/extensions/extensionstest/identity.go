// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensionstest

import (
	"github.com/Masterminds/semver/v3"

	"github.com/stratanode/strata/internal/extensions"
)

// Identity returns a loopback identity named after id.
func Identity(id string, capabilities ...string) extensions.Identity {
	return extensions.NewIdentity(extensions.IdentitySpec{
		ID:           id,
		Name:         id + "-extension",
		Host:         "127.0.0.1",
		Port:         4532,
		Version:      semver.MustParse("1.0.0"),
		NodeVersion:  semver.MustParse("3.0.0"),
		Capabilities: capabilities,
	})
}

// Handshake returns a Responder that completes identity's handshake.
func Handshake(identity extensions.Identity) Responder {
	return Reply(extensions.InitializeResponse{Name: identity.Name()})
}
