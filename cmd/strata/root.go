// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the Strata CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strata",
		Short: "Strata - an extension host for search nodes",
		Long: `Strata runs a node that discovers out-of-process extensions from
extensions.yml, initializes them over the extension transport, and serves
the actions they call back with.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewNodeCmd())
	cmd.AddCommand(NewExtensionsCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
