// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the toolbridge server command.
package app

import (
	"github.com/spf13/cobra"

	"github.com/stacklok/toolbridge/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "toolbridge",
	DisableAutoGenTag: true,
	Short:             "ToolBridge connects applications to remote MCP tool-provider servers",
	Long: `ToolBridge manages connections to remote MCP (Model Context Protocol)
tool-provider servers: it discovers each provider's OAuth authorization
server, registers a client, walks users through a PKCE authorization-code
flow, introspects the provider's tool catalog, and issues opaque API keys
for proxy access to running connections.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates the root command for the ToolBridge server.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	rootCmd.AddCommand(serveCmd)
	return rootCmd
}
