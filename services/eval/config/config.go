// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the benchmark run configuration: a YAML file
// merged with ALEUTIANBENCH_* environment variables, validated once,
// then treated as immutable for the run.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Run is the full configuration for one benchmark run.
type Run struct {
	// Models is the primary model list, one pipeline per entry.
	Models []string `mapstructure:"models" validate:"min=1"`

	// ExtractModels, VerifyModels, and ExecuteModels optionally pin a
	// different model per pipeline stage. An empty list means the
	// primary model runs that stage.
	ExtractModels []string `mapstructure:"extract_models"`
	VerifyModels  []string `mapstructure:"verify_models"`
	ExecuteModels []string `mapstructure:"execute_models"`

	// Phase limits the pipeline: all, extraction, verification, or
	// execution.
	Phase string `mapstructure:"phase" validate:"oneof=all extraction verification execution"`

	// Format selects the output contract: function or json.
	Format string `mapstructure:"format" validate:"oneof=function json"`

	// ScenarioDir holds scenario fixture files. Empty runs the
	// built-in suite.
	ScenarioDir string `mapstructure:"scenario_dir"`

	// Scenarios filters the suite to the named fixtures. Empty runs
	// everything.
	Scenarios []string `mapstructure:"scenarios"`

	// OutputDir receives artifact files.
	OutputDir string `mapstructure:"output_dir" validate:"required"`

	// AnchorDate fixes "today" for prompts and date scoring,
	// YYYY-MM-DD.
	AnchorDate string `mapstructure:"anchor_date" validate:"required,datetime=2006-01-02"`

	// Repeats is how many times each model runs each scenario.
	Repeats int `mapstructure:"repeats" validate:"gte=1,lte=10"`

	// MaxParallelModels caps concurrent model workers. Zero means one
	// worker per model.
	MaxParallelModels int `mapstructure:"max_parallel_models" validate:"gte=0"`

	// RescoreAlternate re-parses each unit's raw output with the
	// other format's parser.
	RescoreAlternate bool `mapstructure:"rescore_alternate"`

	Gateway   Gateway   `mapstructure:"gateway"`
	Cache     Cache     `mapstructure:"cache"`
	Store     Store     `mapstructure:"store"`
	Telemetry Telemetry `mapstructure:"telemetry"`
}

// Gateway configures the retrying LLM gateway.
type Gateway struct {
	// OllamaHost is the Ollama server base URL.
	OllamaHost string `mapstructure:"ollama_host" validate:"required,url"`

	// MaxRetries is the retry count after the first attempt.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0,lte=10"`

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration `mapstructure:"retry_delay"`

	// AttemptTimeout bounds a single generation call.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// Cache configures the response cache.
type Cache struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`

	// TTL expires entries; zero keeps them forever.
	TTL time.Duration `mapstructure:"ttl"`
}

// Store selects the todo collaborator backend.
type Store struct {
	// Kind is "memory" or "stdio".
	Kind string `mapstructure:"kind" validate:"oneof=memory stdio"`

	// ClientPath is the stdio client executable, required for the
	// stdio kind.
	ClientPath string `mapstructure:"client_path" validate:"required_if=Kind stdio"`
}

// Telemetry configures tracing.
type Telemetry struct {
	// Exporter is "stdout", "file", or "none".
	Exporter string `mapstructure:"exporter" validate:"oneof=stdout file none"`

	// TracePath is the span output file for the file exporter.
	TracePath string `mapstructure:"trace_path"`
}

// Defaults mirror the harness's standing constants.
func setDefaults(v *viper.Viper) {
	v.SetDefault("phase", "all")
	v.SetDefault("format", "function")
	v.SetDefault("output_dir", "results")
	v.SetDefault("anchor_date", "2025-08-06")
	v.SetDefault("repeats", 3)
	v.SetDefault("max_parallel_models", 0)
	v.SetDefault("rescore_alternate", true)
	v.SetDefault("gateway.ollama_host", "http://localhost:11434")
	v.SetDefault("gateway.max_retries", 2)
	v.SetDefault("gateway.retry_delay", time.Second)
	v.SetDefault("gateway.attempt_timeout", 90*time.Second)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.path", ".bench-cache")
	v.SetDefault("cache.ttl", time.Duration(0))
	v.SetDefault("store.kind", "memory")
	v.SetDefault("telemetry.exporter", "none")
}

// Load reads the configuration file at path, merges environment
// overrides, and validates the result. An empty path loads defaults
// and environment only.
func Load(path string) (*Run, error) {
	cfg, err := Parse(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads and merges without validating, for callers that still
// apply their own overrides before Validate.
func Parse(path string) (*Run, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ALEUTIANBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Run
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate runs the struct tags and the cross-field rules the tags
// cannot express.
func (r *Run) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("config field %s failed rule %q", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("validate config: %w", err)
	}
	for _, stage := range [][]string{r.ExtractModels, r.VerifyModels, r.ExecuteModels} {
		if len(stage) != 0 && len(stage) != len(r.Models) {
			return fmt.Errorf("stage model lists must be empty or match models (%d entries)", len(r.Models))
		}
	}
	if r.Telemetry.Exporter == "file" && r.Telemetry.TracePath == "" {
		return fmt.Errorf("telemetry.trace_path is required for the file exporter")
	}
	return nil
}

// StageModel returns the model pinned for a stage at index i, falling
// back to the primary model.
func StageModel(stage []string, primary []string, i int) string {
	if i < len(stage) && stage[i] != "" {
		return stage[i]
	}
	return primary[i]
}
