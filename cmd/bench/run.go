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
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianBench/pkg/ux"
	"github.com/AleutianAI/AleutianBench/services/eval/aggregate"
	"github.com/AleutianAI/AleutianBench/services/eval/artifacts"
	"github.com/AleutianAI/AleutianBench/services/eval/cache"
	"github.com/AleutianAI/AleutianBench/services/eval/config"
	"github.com/AleutianAI/AleutianBench/services/eval/pipeline"
	"github.com/AleutianAI/AleutianBench/services/eval/scenario"
	"github.com/AleutianAI/AleutianBench/services/eval/sweep"
	"github.com/AleutianAI/AleutianBench/services/eval/telemetry"
	"github.com/AleutianAI/AleutianBench/services/llm"
	"github.com/AleutianAI/AleutianBench/services/mcp"
)

var (
	flagModels        []string
	flagModelsExtract []string
	flagModelsVerify  []string
	flagModelsExecute []string
	flagScenarios     []string
	flagScenarioDir   string
	flagOut           string
	flagPhase         string
	flagFormat        string
	flagRepeats       int
	flagMaxParallel   int
	flagAnchorDate    string
	flagDiscover      bool
	flagNoCache       bool
	flagNoRescore     bool

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the evaluation suite against the configured models",
		Run:   runBench,
	}
)

func init() {
	runCmd.Flags().StringSliceVar(&flagModels, "models", nil, "Models to evaluate (overrides config)")
	runCmd.Flags().StringSliceVar(&flagModelsExtract, "models-extract", nil, "Per-model extract-stage override, positional with --models")
	runCmd.Flags().StringSliceVar(&flagModelsVerify, "models-verify", nil, "Per-model verify-stage override, positional with --models")
	runCmd.Flags().StringSliceVar(&flagModelsExecute, "models-execute", nil, "Per-model execute-stage override, positional with --models")
	runCmd.Flags().StringSliceVar(&flagScenarios, "scenarios", nil, "Run only the named scenarios")
	runCmd.Flags().StringVar(&flagScenarioDir, "scenario-dir", "", "Directory of scenario fixtures (default: built-in suite)")
	runCmd.Flags().StringVar(&flagOut, "out", "", "Output directory for artifacts")
	runCmd.Flags().StringVar(&flagPhase, "phase", "", "Pipeline phase: all, extraction, verification, execution")
	runCmd.Flags().StringVar(&flagFormat, "format", "", "Output contract: function or json")
	runCmd.Flags().IntVar(&flagRepeats, "repeats", 0, "Runs per model/scenario pair")
	runCmd.Flags().IntVar(&flagMaxParallel, "max-parallel-models", 0, "Cap on concurrent model workers")
	runCmd.Flags().StringVar(&flagAnchorDate, "anchor-date", "", "Anchor date for relative-date scoring, YYYY-MM-DD")
	runCmd.Flags().BoolVar(&flagDiscover, "discover", false, "Discover installed Ollama models instead of naming them")
	runCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Bypass the response cache")
	runCmd.Flags().BoolVar(&flagNoRescore, "no-rescore", false, "Disable alternate-format rescoring")
}

func runBench(cmd *cobra.Command, _ []string) {
	cfg, err := config.Parse(configPath)
	if err != nil {
		slog.Error("Configuration error", "error", err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Discovery must run before validation so a bare `bench run`
	// against a local Ollama needs no model names at all.
	if flagDiscover || len(cfg.Models) == 0 {
		models, err := discoverModels(ctx, cfg.Gateway.OllamaHost)
		if err != nil {
			slog.Error("Model discovery failed", "error", err)
			os.Exit(1)
		}
		if len(models) == 0 {
			slog.Error("No models installed; pull at least one with 'ollama pull'")
			os.Exit(1)
		}
		cfg.Models = models
		cfg.ExtractModels, cfg.VerifyModels, cfg.ExecuteModels = nil, nil, nil
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration error", "error", err)
		os.Exit(1)
	}

	// The anchor date must be pinned before any fixture text is read.
	_ = os.Setenv("EVAL_ANCHOR_DATE", cfg.AnchorDate)

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "aleutianbench",
		ServiceVersion: "1.0.0",
		Exporter:       cfg.Telemetry.Exporter,
		TracePath:      cfg.Telemetry.TracePath,
	})
	if err != nil {
		slog.Error("Telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("Telemetry shutdown", "error", err)
		}
	}()

	scenarios, err := loadScenarios(cfg)
	if err != nil {
		slog.Error("Scenario load failed", "error", err)
		os.Exit(1)
	}

	var responseCache *cache.Cache
	if cfg.Cache.Enabled && !flagNoCache {
		responseCache, err = cache.Open(cache.Config{Path: cfg.Cache.Path, TTL: cfg.Cache.TTL})
		if err != nil {
			slog.Error("Cache open failed", "error", err)
			os.Exit(1)
		}
		defer responseCache.Close()
	}

	writer, err := artifacts.NewWriter(cfg.OutputDir, "")
	if err != nil {
		slog.Error("Artifact directory setup failed", "error", err)
		os.Exit(1)
	}

	printRunBanner(cfg, len(scenarios), writer.RunID())

	tracker := ux.NewTracker(len(cfg.Models) * len(scenarios) * cfg.Repeats)
	s := sweep.New(newRunnerFactory(cfg, responseCache),
		sweep.WithRepeats(cfg.Repeats),
		sweep.WithMaxParallel(cfg.MaxParallelModels),
		sweep.WithRescoring(cfg.RescoreAlternate),
		sweep.WithTracker(tracker),
	)

	started := time.Now()
	results := s.Run(ctx, cfg.Models, scenarios)
	tracker.Finish()

	if ctx.Err() != nil {
		ux.Warning(fmt.Sprintf("Run interrupted after %d results; writing partial artifacts", len(results)))
	}
	if len(results) == 0 {
		slog.Error("No results produced")
		os.Exit(1)
	}

	if err := writeArtifacts(writer, cfg, results, started); err != nil {
		slog.Error("Artifact write failed", "error", err)
		os.Exit(1)
	}

	failed := 0
	for _, res := range results {
		if res.ExecutionError != "" {
			failed++
		}
	}
	ux.RunSummary(len(results)-failed, failed, len(results))
	ux.Success(fmt.Sprintf("Run %s complete: %d results in %s", writer.RunID(), len(results), writer.Dir()))
}

// applyFlagOverrides layers command-line flags over the parsed config.
// Validation happens afterwards so --models alone is enough to run
// without a file.
func applyFlagOverrides(cfg *config.Run) {
	if len(flagModels) > 0 {
		cfg.Models = flagModels
	}
	if len(flagModelsExtract) > 0 {
		cfg.ExtractModels = flagModelsExtract
	}
	if len(flagModelsVerify) > 0 {
		cfg.VerifyModels = flagModelsVerify
	}
	if len(flagModelsExecute) > 0 {
		cfg.ExecuteModels = flagModelsExecute
	}
	if len(flagScenarios) > 0 {
		cfg.Scenarios = flagScenarios
	}
	if flagScenarioDir != "" {
		cfg.ScenarioDir = flagScenarioDir
	}
	if flagOut != "" {
		cfg.OutputDir = flagOut
	}
	if flagPhase != "" {
		cfg.Phase = flagPhase
	}
	if flagFormat != "" {
		cfg.Format = flagFormat
	}
	if flagRepeats > 0 {
		cfg.Repeats = flagRepeats
	}
	if flagMaxParallel > 0 {
		cfg.MaxParallelModels = flagMaxParallel
	}
	if flagAnchorDate != "" {
		cfg.AnchorDate = flagAnchorDate
	}
	if flagNoRescore {
		cfg.RescoreAlternate = false
	}
}

func loadScenarios(cfg *config.Run) ([]scenario.Scenario, error) {
	var suite []scenario.Scenario
	if cfg.ScenarioDir != "" {
		loaded, err := scenario.LoadDir(cfg.ScenarioDir)
		if err != nil {
			return nil, err
		}
		for _, sk := range loaded.Skipped {
			slog.Warn("Skipping scenario fixture", "file", sk.Path, "reason", sk.Reason)
		}
		suite = loaded.Scenarios
	} else {
		suite = scenario.Builtin()
	}
	if len(cfg.Scenarios) > 0 {
		filtered, err := scenario.Filter(suite, cfg.Scenarios)
		if err != nil {
			return nil, err
		}
		suite = filtered
	}
	if len(suite) == 0 {
		return nil, fmt.Errorf("no scenarios to run")
	}
	return suite, nil
}

// newClient builds the backend for a model name. Names with an
// "openai/" prefix route to the OpenAI-compatible backend; everything
// else is an Ollama model.
func newClient(cfg *config.Run, model string) (llm.Client, error) {
	if rest, ok := strings.CutPrefix(model, "openai/"); ok {
		return llm.NewOpenAIClient(rest)
	}
	return llm.NewOllamaClient(cfg.Gateway.OllamaHost, model)
}

func newGateway(cfg *config.Run, responseCache *cache.Cache, model string) (*llm.Gateway, error) {
	client, err := newClient(cfg, model)
	if err != nil {
		return nil, err
	}
	var wrapped llm.Client = client
	if responseCache != nil {
		wrapped = cache.WrapClient(client, responseCache)
	}
	return llm.NewGateway(wrapped,
		llm.WithMaxRetries(cfg.Gateway.MaxRetries),
		llm.WithRetryDelay(cfg.Gateway.RetryDelay),
		llm.WithAttemptTimeout(cfg.Gateway.AttemptTimeout),
	), nil
}

// newRunnerFactory builds one pipeline runner per model worker, with
// stage-specific gateways when the config pins them and a dedicated
// tool store per worker.
func newRunnerFactory(cfg *config.Run, responseCache *cache.Cache) sweep.Factory {
	index := map[string]int{}
	for i, m := range cfg.Models {
		index[m] = i
	}
	return func(model string) (*pipeline.Runner, error) {
		i := index[model]
		extract, err := newGateway(cfg, responseCache, config.StageModel(cfg.ExtractModels, cfg.Models, i))
		if err != nil {
			return nil, err
		}
		gws := pipeline.Gateways{Extract: extract}
		if verifyModel := config.StageModel(cfg.VerifyModels, cfg.Models, i); verifyModel != model {
			if gws.Verify, err = newGateway(cfg, responseCache, verifyModel); err != nil {
				return nil, err
			}
		}
		if executeModel := config.StageModel(cfg.ExecuteModels, cfg.Models, i); executeModel != model {
			if gws.Execute, err = newGateway(cfg, responseCache, executeModel); err != nil {
				return nil, err
			}
		}

		var store mcp.Runner
		if cfg.Store.Kind == "stdio" {
			store = mcp.NewStdioAdapter(cfg.Store.ClientPath)
		} else {
			store = mcp.NewMemoryRunner()
		}
		return pipeline.New(gws, store,
			pipeline.WithPhase(pipeline.Phase(cfg.Phase)),
			pipeline.WithFormat(pipeline.Format(cfg.Format)),
		), nil
	}
}

// discoverModels asks the Ollama server what it has installed.
func discoverModels(ctx context.Context, host string) ([]string, error) {
	client, err := llm.NewOllamaClient(host, "discovery")
	if err != nil {
		return nil, err
	}
	return client.ListModels(ctx)
}

func printRunBanner(cfg *config.Run, scenarioCount int, runID string) {
	format := pipeline.Format(cfg.Format)
	fmt.Printf("\nStarting Evaluation Run: %s\n", runID)
	fmt.Printf("   Models:      %s\n", strings.Join(cfg.Models, ", "))
	fmt.Printf("   Scenarios:   %d\n", scenarioCount)
	fmt.Printf("   Phase:       %s\n", cfg.Phase)
	fmt.Printf("   Format:      %s\n", format.DisplayName())
	fmt.Printf("   Repeats:     %d\n", cfg.Repeats)
	fmt.Printf("   Anchor Date: %s\n", cfg.AnchorDate)
	fmt.Println("---------------------------------------------------")
}

func writeArtifacts(writer *artifacts.Writer, cfg *config.Run, results []*pipeline.Result, started time.Time) error {
	for _, res := range results {
		ended := started.Add(time.Duration(res.Metrics.ResponseTime * float64(time.Second)))
		if err := writer.WritePhases(artifacts.PhaseEnvelopes(res, started, ended)); err != nil {
			return err
		}
	}

	summary := aggregate.Build(results, aggregate.Provenance{
		AnchorDate: cfg.AnchorDate,
		Phase:      cfg.Phase,
		Format:     cfg.Format,
	})
	if err := writer.WriteSummary(summary); err != nil {
		return err
	}
	if err := writer.WriteDetailedLogs(results); err != nil {
		return err
	}
	md := aggregate.Report(summary, results, aggregate.ReportConfig{
		Models:        cfg.Models,
		ScenarioCount: len(summary.Scenarios),
		MaxRetries:    cfg.Gateway.MaxRetries,
		RetryDelayS:   cfg.Gateway.RetryDelay.Seconds(),
		TimeoutS:      cfg.Gateway.AttemptTimeout.Seconds(),
		AnchorDate:    cfg.AnchorDate,
	})
	return writer.WriteMarkdown(md)
}
