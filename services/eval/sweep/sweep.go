// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sweep drives a full benchmark run: every model against
// every scenario, repeated for stability, parallel across models but
// strictly ordered within each model's worker.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/AleutianBench/pkg/ux"
	"github.com/AleutianAI/AleutianBench/services/eval/pipeline"
	"github.com/AleutianAI/AleutianBench/services/eval/scenario"
	"github.com/AleutianAI/AleutianBench/services/eval/score"
)

// DefaultRepeats is how many times each model/scenario pair runs.
const DefaultRepeats = 3

// Factory builds a fresh pipeline runner for one model's worker.
// Each worker gets its own runner so the backing tool store is never
// shared across models.
type Factory func(model string) (*pipeline.Runner, error)

// Sweep holds run-wide knobs.
type Sweep struct {
	factory     Factory
	repeats     int
	maxParallel int
	rescore     bool
	tracker     *ux.Tracker
}

// Option configures a Sweep.
type Option func(*Sweep)

// WithRepeats sets how many times each scenario runs per model.
func WithRepeats(n int) Option {
	return func(s *Sweep) {
		if n > 0 {
			s.repeats = n
		}
	}
}

// WithMaxParallel caps how many model workers run at once. Zero
// means one worker per model.
func WithMaxParallel(n int) Option {
	return func(s *Sweep) { s.maxParallel = n }
}

// WithRescoring toggles alternate-format rescoring of each unit's
// raw output.
func WithRescoring(enabled bool) Option {
	return func(s *Sweep) { s.rescore = enabled }
}

// WithTracker attaches a progress tracker.
func WithTracker(t *ux.Tracker) Option {
	return func(s *Sweep) { s.tracker = t }
}

// New creates a sweep with alternate-format rescoring on and three
// repeats per unit.
func New(factory Factory, opts ...Option) *Sweep {
	s := &Sweep{factory: factory, repeats: DefaultRepeats, rescore: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Units reports the number of primary work units the sweep will run,
// excluding rescored results.
func (s *Sweep) Units(models, scenarios int) int {
	return models * scenarios * s.repeats
}

// Run executes the sweep and returns results grouped by model in the
// input model order. Rescored results follow the unit that produced
// them. A model whose runner cannot be built contributes no results;
// a unit that panics contributes a failed result and the sweep moves
// on.
func (s *Sweep) Run(ctx context.Context, models []string, scenarios []scenario.Scenario) []*pipeline.Result {
	perModel := make([][]*pipeline.Result, len(models))

	limit := s.maxParallel
	if limit <= 0 || limit > len(models) {
		limit = len(models)
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i, model := range models {
		wg.Add(1)
		go func(idx int, model string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			perModel[idx] = s.runWorker(ctx, model, scenarios)
		}(i, model)
	}
	wg.Wait()

	var out []*pipeline.Result
	for _, results := range perModel {
		out = append(out, results...)
	}
	return out
}

// runWorker runs one model through every scenario in order,
// repeating each before moving to the next.
func (s *Sweep) runWorker(ctx context.Context, model string, scenarios []scenario.Scenario) []*pipeline.Result {
	runner, err := s.factory(model)
	if err != nil {
		s.logf("skipping %s: %v", model, err)
		for range scenarios {
			for i := 0; i < s.repeats; i++ {
				s.advance(model, "skipped")
			}
		}
		return nil
	}

	var results []*pipeline.Result
	for si := range scenarios {
		sc := &scenarios[si]
		for run := 0; run < s.repeats; run++ {
			if ctx.Err() != nil {
				return results
			}
			res := s.runUnit(ctx, runner, model, sc)
			results = append(results, res)
			s.advance(model, sc.Name)
			if s.rescore {
				if alt := rescoreAlternate(res, sc); alt != nil {
					results = append(results, alt)
				}
			}
		}
	}
	return results
}

// runUnit contains one scenario execution, converting a panic into a
// failed result so one bad unit cannot sink the worker.
func (s *Sweep) runUnit(ctx context.Context, runner *pipeline.Runner, model string, sc *scenario.Scenario) (res *pipeline.Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scenario run panicked", "model", model, "scenario", sc.Name, "panic", r)
			res = &pipeline.Result{
				Model:          model,
				Scenario:       sc.Name,
				ExecutionError: fmt.Sprintf("panic: %v", r),
				Metrics: pipeline.Metrics{
					ExpectedTools: len(sc.ExpectedTools),
				},
			}
		}
	}()
	return runner.RunScenario(ctx, sc)
}

// rescoreAlternate reparses a unit's raw output with the other
// format's parser. When the alternate parser finds calls, the unit is
// scored a second time on extraction-set overlap alone, so a model
// that answered in the wrong format still gets format-coverage
// credit. Returns nil when there is nothing to rescore.
func rescoreAlternate(res *pipeline.Result, sc *scenario.Scenario) *pipeline.Result {
	if res == nil || res.ModelOutput == "" {
		return nil
	}
	alt := pipeline.FormatJSON
	if res.FormatType == pipeline.FormatJSON {
		alt = pipeline.FormatFunction
	}
	calls := alt.Parser().Parse(res.ModelOutput)
	if len(calls) == 0 {
		return nil
	}

	tools := make([]string, 0, len(calls))
	for _, c := range calls {
		tools = append(tools, c.Tool)
	}
	gold := sc.GoldTools(string(pipeline.PhaseExtraction))
	usage := score.SetPRF1(tools, gold)

	return &pipeline.Result{
		Model:           res.Model,
		Scenario:        res.Scenario,
		FormatType:      alt,
		FormatName:      alt.DisplayName() + " (rescored)",
		Phase:           res.Phase,
		EvaluationFocus: res.EvaluationFocus,
		SLASeconds:      res.SLASeconds,
		ModelOutput:     res.ModelOutput,
		ToolCalls:       calls,
		RetryInfo:       res.RetryInfo,
		Metrics: pipeline.Metrics{
			SuccessRate:   usage.F1,
			ToolAccuracy:  usage.F1,
			ResponseTime:  res.Metrics.ResponseTime,
			ExpectedTools: len(gold),
			ActualTools:   len(calls),
			RetryAttempts: res.Metrics.RetryAttempts,
			TotalAttempts: res.Metrics.TotalAttempts,
			ToolUsage:     usage,
		},
	}
}

func (s *Sweep) advance(model, label string) {
	if s.tracker != nil {
		s.tracker.Advance(model + " / " + label)
	}
}

func (s *Sweep) logf(format string, args ...any) {
	if s.tracker != nil {
		s.tracker.Logf(format, args...)
		return
	}
	slog.Warn(fmt.Sprintf(format, args...))
}
