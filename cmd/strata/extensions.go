// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stratanode/strata/internal/config"
	"github.com/stratanode/strata/internal/extensions"
)

// NewExtensionsCmd creates the extensions subcommand group.
func NewExtensionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extensions",
		Short: "Inspect extension configuration",
	}
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newSchemaCmd())
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate extensions.yml",
		Long: `Validate <dir>/extensions.yml against the extension schema and check
every entry the way a node would at startup: host, port and versions must
parse, and duplicate ids are reported. dir defaults to "` + config.DefaultExtensionsDir + `".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := config.DefaultExtensionsDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(cmd, dir)
		},
	}
}

func runValidate(cmd *cobra.Command, dir string) error {
	loader := extensions.NewLoader(extensions.FileSource{Dir: dir}, extensions.NewRegistry())
	report, err := loader.Discover(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s: %s", filepath.Join(dir, extensions.ConfigFile), extensions.FormatSchemaError(err))
	}

	cmd.Printf("%d extension(s) valid\n", len(report.Loaded))
	for _, id := range report.Loaded {
		cmd.Printf("  %s\n", id)
	}
	for _, id := range report.Duplicates {
		cmd.Printf("  %s: duplicate unique id, would not be loaded\n", id)
	}
	return nil
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema for extensions.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := extensions.GenerateSchema()
			if err != nil {
				return fmt.Errorf("failed to generate schema: %w", err)
			}
			cmd.Println(string(schema))
			return nil
		},
	}
}
