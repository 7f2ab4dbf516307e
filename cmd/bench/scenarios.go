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
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianBench/pkg/ux"
	"github.com/AleutianAI/AleutianBench/services/eval/config"
	"github.com/AleutianAI/AleutianBench/services/eval/scenario"
)

var (
	flagListScenarioDir string

	scenariosCmd = &cobra.Command{
		Use:   "scenarios",
		Short: "List the evaluation scenarios the suite would run",
		Run:   listScenarios,
	}

	modelsCmd = &cobra.Command{
		Use:   "models",
		Short: "List models installed on the Ollama server",
		Run:   listModels,
	}
)

func init() {
	scenariosCmd.Flags().StringVar(&flagListScenarioDir, "scenario-dir", "", "Directory of scenario fixtures (default: built-in suite)")
}

func listScenarios(cmd *cobra.Command, _ []string) {
	var suite []scenario.Scenario
	if flagListScenarioDir != "" {
		loaded, err := scenario.LoadDir(flagListScenarioDir)
		if err != nil {
			slog.Error("Scenario load failed", "error", err)
			os.Exit(1)
		}
		for _, sk := range loaded.Skipped {
			ux.ScenarioStatus(sk.Path, ux.IconWarning, sk.Reason)
		}
		suite = loaded.Scenarios
	} else {
		suite = scenario.Builtin()
	}

	ux.Title(fmt.Sprintf("%d scenarios", len(suite)))
	for _, sc := range suite {
		focus := sc.EvaluationFocus
		if focus == "" {
			focus = "general"
		}
		ux.ScenarioStatus(sc.Name, ux.IconSuccess,
			fmt.Sprintf("complexity=%d focus=%s tools=[%s]",
				sc.Complexity, focus, strings.Join(sc.ExpectedTools, ", ")))
	}
}

func listModels(cmd *cobra.Command, _ []string) {
	cfg, err := config.Parse(configPath)
	if err != nil {
		slog.Error("Configuration error", "error", err)
		os.Exit(1)
	}
	models, err := discoverModels(context.Background(), cfg.Gateway.OllamaHost)
	if err != nil {
		slog.Error("Model discovery failed", "host", cfg.Gateway.OllamaHost, "error", err)
		os.Exit(1)
	}
	if len(models) == 0 {
		ux.Warning("No models installed; pull one with 'ollama pull <model>'")
		return
	}
	ux.Title(fmt.Sprintf("%d installed models", len(models)))
	for _, m := range models {
		fmt.Printf("  %s\n", m)
	}
}
