// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/holomush/holoauth/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the holoauth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holoauth",
		Short: "holoauth - token authentication service",
		Long: `holoauth registers users, verifies passwords, issues opaque bearer
tokens and runs the password reset flow over a small JSON API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/holoauth/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPurgeCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig reads configuration for a command. Only flags the user set
// override file and environment values.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.NewLoader(configFile).Load(flags)
	if err != nil {
		return nil, err //nolint:wrapcheck // loader errors carry codes
	}
	return cfg, nil
}
