// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/LeeDigitalWorks/zapprops/pkg/env"
	"github.com/LeeDigitalWorks/zapprops/pkg/logger"
	"github.com/LeeDigitalWorks/zapprops/pkg/utils"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "zapprops",
	Short: "zapprops - container property store",
	Long: `zapprops stores container properties (label, layout, checksum settings,
redundancy factor, snapshot limit) and answers property queries over gRPC.
It runs as a server in front of one of several database backends and ships
client commands to create, open, query and update containers.`,
	PersistentPreRun: initializeLogging,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&utils.ConfigurationFileDirectory, "config_dir", ".", "Directory for configuration files")
	rootCmd.PersistentFlags().String("log_level", "", "Log level (trace, debug, info, warn, error). Overrides LOG_LEVEL")
}

// initializeLogging applies --log_level and loads the ENV setting.
func initializeLogging(cmd *cobra.Command, args []string) {
	env.Load()

	lvl, _ := cmd.Flags().GetString("log_level")
	if lvl == "" {
		return
	}
	level, err := zerolog.ParseLevel(lvl)
	if err != nil || level == zerolog.NoLevel {
		logger.Warn().Str("value", lvl).Msg("invalid --log_level, keeping current level")
		return
	}
	logger.SetLevel(level)
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
