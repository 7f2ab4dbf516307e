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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianBench/pkg/ux"
	"github.com/AleutianAI/AleutianBench/services/eval/aggregate"
	"github.com/AleutianAI/AleutianBench/services/eval/artifacts"
	"github.com/AleutianAI/AleutianBench/services/eval/config"
	"github.com/AleutianAI/AleutianBench/services/eval/pipeline"
)

var (
	flagReportLogs string
	flagReportOut  string

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Rebuild the summary and Markdown report from a run's detailed logs",
		Long: `report recomputes aggregation from a detailed_test_logs JSON file.
Useful after a scoring change: re-aggregate an old run without
re-invoking any model.`,
		Run: runReport,
	}
)

func init() {
	reportCmd.Flags().StringVar(&flagReportLogs, "logs", "", "Path to a detailed_test_logs_*.json file (required)")
	reportCmd.Flags().StringVar(&flagReportOut, "out", "results", "Output directory for the rebuilt report")
	_ = reportCmd.MarkFlagRequired("logs")
}

func runReport(cmd *cobra.Command, _ []string) {
	cfg, err := config.Parse(configPath)
	if err != nil {
		slog.Error("Configuration error", "error", err)
		os.Exit(1)
	}

	raw, err := os.ReadFile(flagReportLogs)
	if err != nil {
		slog.Error("Failed to read detailed logs", "path", flagReportLogs, "error", err)
		os.Exit(1)
	}
	var results []*pipeline.Result
	if err := json.Unmarshal(raw, &results); err != nil {
		slog.Error("Failed to parse detailed logs", "error", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		slog.Error("Detailed logs contain no results")
		os.Exit(1)
	}

	models := map[string]bool{}
	var modelList []string
	for _, res := range results {
		if !models[res.Model] {
			models[res.Model] = true
			modelList = append(modelList, res.Model)
		}
	}

	summary := aggregate.Build(results, aggregate.Provenance{
		AnchorDate: cfg.AnchorDate,
		Phase:      cfg.Phase,
		Format:     cfg.Format,
	})
	md := aggregate.Report(summary, results, aggregate.ReportConfig{
		Models:        modelList,
		ScenarioCount: len(summary.Scenarios),
		MaxRetries:    cfg.Gateway.MaxRetries,
		RetryDelayS:   cfg.Gateway.RetryDelay.Seconds(),
		TimeoutS:      cfg.Gateway.AttemptTimeout.Seconds(),
		AnchorDate:    cfg.AnchorDate,
	})

	writer, err := artifacts.NewWriter(flagReportOut, "")
	if err != nil {
		slog.Error("Output directory setup failed", "error", err)
		os.Exit(1)
	}
	if err := writer.WriteSummary(summary); err != nil {
		slog.Error("Summary write failed", "error", err)
		os.Exit(1)
	}
	if err := writer.WriteMarkdown(md); err != nil {
		slog.Error("Markdown write failed", "error", err)
		os.Exit(1)
	}
	ux.Success(fmt.Sprintf("Rebuilt report for %d results in %s", len(results), writer.Dir()))
}
