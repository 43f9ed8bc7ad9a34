// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/stratanode/strata/internal/config"
	"github.com/stratanode/strata/internal/extensions"
)

// NodeStatus is what the status command reports about a running node.
type NodeStatus struct {
	Addr       string                    `json:"addr"`
	Ready      bool                      `json:"ready"`
	Extensions []extensions.RecordStatus `json:"extensions"`
	Error      string                    `json:"error,omitempty"`
}

type statusConfig struct {
	addr       string
	jsonOutput bool
	timeout    time.Duration
}

// NewStatusCmd creates the status subcommand with all flags configured.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show extension status of a running node",
		Long: `Query a running node's observability endpoint and show whether its
extension host is ready and the lifecycle state of every extension.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "metrics-addr", config.DefaultMetricsAddr, "observability address of the node")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "HTTP timeout")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	client := &http.Client{Timeout: cfg.timeout}
	status := queryNodeStatus(client, cfg.addr)

	if cfg.jsonOutput {
		out, err := formatStatusJSON(status)
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		cmd.Println(out)
	} else {
		cmd.Print(formatStatusTable(status))
	}

	if status.Error != "" {
		return fmt.Errorf("node at %s: %s", cfg.addr, status.Error)
	}
	return nil
}

// queryNodeStatus reads readiness and extension status from addr. Errors
// are reported in the result.
func queryNodeStatus(client *http.Client, addr string) NodeStatus {
	status := NodeStatus{Addr: addr}

	resp, err := client.Get("http://" + addr + "/healthz/readiness")
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	_ = resp.Body.Close()
	status.Ready = resp.StatusCode == http.StatusOK

	resp, err = client.Get("http://" + addr + "/status/extensions")
	if err != nil {
		status.Error = fmt.Sprintf("failed to query extensions: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		status.Error = fmt.Sprintf("extension status returned %s", resp.Status)
		return status
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		status.Error = fmt.Sprintf("failed to read extension status: %v", err)
		return status
	}
	if err := sonic.Unmarshal(body, &status.Extensions); err != nil {
		status.Error = fmt.Sprintf("failed to decode extension status: %v", err)
	}
	return status
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status NodeStatus) string {
	var buf bytes.Buffer
	if status.Error != "" {
		fmt.Fprintf(&buf, "node %s: unreachable (%s)\n", status.Addr, status.Error)
		return buf.String()
	}

	ready := "not ready"
	if status.Ready {
		ready = "ready"
	}
	fmt.Fprintf(&buf, "node %s: %s\n", status.Addr, ready)
	if len(status.Extensions) == 0 {
		buf.WriteString("no extensions\n")
		return buf.String()
	}

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tENDPOINT\tSTATE\tATTEMPTS\tCAUSE")
	for _, ext := range status.Extensions {
		cause := ext.Cause
		if cause == "" {
			cause = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			ext.ID, ext.Name, ext.Endpoint, ext.State, ext.Attempt, cause)
	}
	_ = w.Flush()
	return buf.String()
}

// formatStatusJSON formats the status as indented JSON.
func formatStatusJSON(status NodeStatus) (string, error) {
	data, err := sonic.ConfigStd.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}
