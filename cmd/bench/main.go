// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianBench/pkg/logging"
	"github.com/AleutianAI/AleutianBench/pkg/ux"
)

var (
	configPath       string
	personalityLevel string
	logLevel         string
	logDir           string

	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "bench",
		Short: "Benchmark local LLMs on tool-calling with a todo MCP collaborator",
		Long: `bench runs a three-phase tool-calling evaluation (extract, verify,
execute) against local models, scores the results, and writes JSON and
Markdown artifacts for comparison across models and output formats.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
			logger = logging.New(logging.Config{
				Level:   logging.ParseLevel(logLevel),
				LogDir:  logDir,
				Service: "bench",
			})
			slog.SetDefault(logger.Slog())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a bench.yaml configuration file")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "", "Output style: standard, minimal, machine")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Mirror logs to a per-day file in this directory")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(modelsCmd)
}
