// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratanode/strata/internal/extensions"
)

const validConfig = `
extensions:
  - name: geospatial
    uniqueId: geo
    description: geo shapes
    hostAddress: 127.0.0.1
    port: 4532
    version: 1.2.0
    nodeVersion: 3.0.0
    runtimeVersion: "21"
    entryPoint: org.example.Geo
    hasNativeController: true
    dependencies:
      - uniqueId: common
        version: 2.0.0
    capabilities:
      - internal:discovery/*
`

func TestParseConfig_Valid(t *testing.T) {
	cfg, err := extensions.ParseConfig([]byte(validConfig))
	require.NoError(t, err)
	require.Len(t, cfg.Extensions, 1)

	d := cfg.Extensions[0]
	assert.Equal(t, "geo", d.UniqueID)
	assert.Equal(t, "4532", d.Port)
	assert.True(t, d.HasNativeController)
	require.Len(t, d.Dependencies, 1)

	identity, err := d.Identity()
	require.NoError(t, err)
	assert.Equal(t, "geo", identity.ID())
	assert.Equal(t, "geospatial", identity.Name())
	assert.Equal(t, "127.0.0.1:4532", identity.Endpoint())
	assert.Equal(t, "1.2.0", identity.Version().String())
	assert.Equal(t, "3.0.0", identity.NodeVersion().String())
	assert.Equal(t, "org.example.Geo", identity.EntryPoint())
	assert.True(t, identity.NativeController())
	require.Len(t, identity.Dependencies(), 1)
	assert.Equal(t, "common", identity.Dependencies()[0].ID)
	assert.Equal(t, []string{"internal:discovery/*"}, identity.Capabilities())
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := extensions.ParseConfig([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Extensions)

	cfg, err = extensions.ParseConfig([]byte("extensions: []\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Extensions)
}

func TestParseConfig_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing uniqueId",
			yaml: `
extensions:
  - name: geo
    hostAddress: 127.0.0.1
    port: 4532
    nodeVersion: 3.0.0
`,
		},
		{
			name: "unknown field",
			yaml: `
extensions:
  - name: geo
    uniqueId: geo
    hostAddress: 127.0.0.1
    port: 4532
    nodeVersion: 3.0.0
    flavour: vanilla
`,
		},
		{
			name: "port is a list",
			yaml: `
extensions:
  - name: geo
    uniqueId: geo
    hostAddress: 127.0.0.1
    port: [1, 2]
    nodeVersion: 3.0.0
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extensions.ParseConfig([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "schema validation failed")
		})
	}
}

func TestDescriptorIdentity_Malformed(t *testing.T) {
	base := extensions.Descriptor{
		Name:        "geo",
		UniqueID:    "geo",
		HostAddress: "127.0.0.1",
		Port:        "4532",
		NodeVersion: "3.0.0",
	}

	tests := []struct {
		name    string
		mutate  func(d *extensions.Descriptor)
		wantErr string
	}{
		{"bad address", func(d *extensions.Descriptor) { d.HostAddress = "not an address!" }, "hostAddress"},
		{"port not numeric", func(d *extensions.Descriptor) { d.Port = "http" }, "port"},
		{"port out of range", func(d *extensions.Descriptor) { d.Port = "70000" }, "port"},
		{"port zero", func(d *extensions.Descriptor) { d.Port = "0" }, "port"},
		{"bad node version", func(d *extensions.Descriptor) { d.NodeVersion = "three" }, "nodeVersion"},
		{"bad version", func(d *extensions.Descriptor) { d.Version = "x.y" }, "version"},
		{"bad dependency version", func(d *extensions.Descriptor) {
			d.Dependencies = []extensions.DependencyConfig{{UniqueID: "common", Version: "latest"}}
		}, "dependency common"},
		{"bad capability", func(d *extensions.Descriptor) { d.Capabilities = []string{"[unclosed"} }, "capability"},
		{"missing id", func(d *extensions.Descriptor) { d.UniqueID = "" }, "uniqueId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base
			tt.mutate(&d)
			_, err := d.Identity()
			require.Error(t, err)
			assert.Contains(t, strings.ToLower(err.Error()), strings.ToLower(tt.wantErr))
		})
	}
}

func TestDescriptorIdentity_HostNames(t *testing.T) {
	for _, host := range []string{"localhost", "ext-1.internal.example.com", "::1", "10.0.0.7"} {
		d := extensions.Descriptor{Name: "n", UniqueID: "id", HostAddress: host, Port: "1", NodeVersion: "1.0.0"}
		_, err := d.Identity()
		assert.NoError(t, err, host)
	}
}

func TestIdentity_AccessorsReturnCopies(t *testing.T) {
	d := extensions.Descriptor{
		Name: "n", UniqueID: "id", HostAddress: "::1", Port: "9", NodeVersion: "1.0.0",
		Capabilities: []string{"a:*"},
	}
	identity, err := d.Identity()
	require.NoError(t, err)

	caps := identity.Capabilities()
	caps[0] = "mutated"
	assert.Equal(t, []string{"a:*"}, identity.Capabilities())
	assert.Equal(t, "[::1]:9", identity.Endpoint())
}

func TestGenerateSchema(t *testing.T) {
	data, err := extensions.GenerateSchema()
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, extensions.SchemaID)
	assert.Contains(t, s, `"uniqueId"`)
	assert.Contains(t, s, `"nodeVersion"`)
}
