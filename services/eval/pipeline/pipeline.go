// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline runs one scenario through the three-stage
// evaluation: extract tool calls from a model's answer, vet them
// through the verification gates, and execute the final sequence
// against an isolated todo store.
//
// Narrower phases short-circuit the stages that are not under test:
// extraction stops after parsing, verification substitutes the valid
// extracted calls for the verifier model's output, and execution
// synthesizes the final sequence from the gold set so the store
// round-trip is scored deterministically.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianBench/services/eval/execute"
	"github.com/AleutianAI/AleutianBench/services/eval/scenario"
	"github.com/AleutianAI/AleutianBench/services/eval/score"
	"github.com/AleutianAI/AleutianBench/services/eval/toolcall"
	"github.com/AleutianAI/AleutianBench/services/eval/verify"
	"github.com/AleutianAI/AleutianBench/services/llm"
	"github.com/AleutianAI/AleutianBench/services/mcp"
)

var tracer = otel.Tracer("aleutianbench.eval.pipeline")

// Gateways holds the per-stage model gateways. Verify and Execute
// fall back to Extract when unset, so a single-model run only has to
// configure one gateway.
type Gateways struct {
	Extract *llm.Gateway
	Verify  *llm.Gateway
	Execute *llm.Gateway
}

func (g Gateways) verifier() *llm.Gateway {
	if g.Verify != nil {
		return g.Verify
	}
	return g.Extract
}

func (g Gateways) executor() *llm.Gateway {
	if g.Execute != nil {
		return g.Execute
	}
	return g.Extract
}

// Runner drives scenarios through the pipeline. A Runner owns no
// store state of its own; the mcp.Runner it wraps is reset at the
// start of every scenario, so a Runner must not be shared across
// concurrent RunScenario calls.
type Runner struct {
	gateways Gateways
	store    mcp.Runner
	phase    Phase
	format   Format
}

type Option func(*Runner)

// WithPhase narrows the run to a single pipeline stage.
func WithPhase(p Phase) Option {
	return func(r *Runner) { r.phase = p }
}

// WithFormat selects the model output contract.
func WithFormat(f Format) Option {
	return func(r *Runner) { r.format = f }
}

func New(gateways Gateways, store mcp.Runner, opts ...Option) *Runner {
	r := &Runner{
		gateways: gateways,
		store:    store,
		phase:    PhaseAll,
		format:   FormatFunction,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScenario resets the store, seeds the fixture's setup todos, and
// runs the scenario through every stage the configured phase keeps.
// Failures are recorded in the result, never returned as errors, so
// a sweep keeps scoring the remaining scenarios.
func (r *Runner) RunScenario(ctx context.Context, s *scenario.Scenario) *Result {
	ctx, span := tracer.Start(ctx, "pipeline.RunScenario",
		trace.WithAttributes(
			attribute.String("scenario", s.Name),
			attribute.String("model", r.gateways.Extract.Model()),
			attribute.String("phase", string(r.phase)),
			attribute.String("format", string(r.format)),
		))
	defer span.End()

	start := time.Now()
	parser := r.format.Parser()
	params := llm.DeterministicParams()
	params.System = r.format.SystemPrompt()

	setupErrors := r.seedStore(ctx, s)

	contextSummary := r.store.ContextSummary()
	var enhancedPrompt string
	if strings.Contains(contextSummary, "empty") {
		enhancedPrompt = s.Prompt + "\n\n" + emptyDBNote
	} else {
		enhancedPrompt = s.Prompt + "\n\n" + contextSummary
	}

	res := &Result{
		Model:           r.gateways.Extract.Model(),
		Scenario:        s.Name,
		FormatType:      r.format,
		FormatName:      r.format.DisplayName(),
		Phase:           r.phase,
		EvaluationFocus: s.EvaluationFocus,
		SLASeconds:      s.SLASeconds,
		ContextInjected: contextSummary,
		EnhancedPrompt:  enhancedPrompt,
		SetupErrors:     setupErrors,
		ToolCalls:       []toolcall.Call{},
		Records:         []execute.Record{},
	}

	// Extraction round trip.
	extractResp := r.gateways.Extract.Invoke(ctx, enhancedPrompt, params)
	res.RetryInfo = extractResp.RetryInfo
	if extractResp.Err != "" {
		res.ExecutionError = extractResp.Err
		res.Metrics = Metrics{
			ResponseTime:  extractResp.RetryInfo.TotalTime,
			ExpectedTools: len(s.ExpectedTools),
			RetryAttempts: extractResp.RetryInfo.RetryAttempts,
			TotalAttempts: extractResp.RetryInfo.TotalAttempts,
		}
		return res
	}
	modelOutput := extractResp.Output
	toolCalls := parser.Parse(modelOutput)
	res.ModelOutput = modelOutput
	res.ToolCalls = toolCalls

	extractionGold := s.GoldTools("extraction")
	verificationGold := s.GoldTools("verification")
	executionGold := s.GoldTools("execution")

	if r.phase == PhaseExtraction {
		f1 := score.SetPRF1(toolcall.ToolNames(toolCalls), extractionGold).F1
		res.Metrics = phaseMetrics(f1, len(extractionGold), len(toolCalls), time.Since(start).Seconds(), extractResp.RetryInfo)
		res.Pipeline.Extract = &ExtractData{
			Model:     r.gateways.Extract.Model(),
			RawOutput: modelOutput,
			ToolCalls: toolCalls,
			RetryInfo: extractResp.RetryInfo,
			Metrics: ExtractMetrics{
				ToolF1:             f1,
				OrderAdherence:     1.0,
				ParameterReadiness: 0.0,
			},
		}
		return res
	}

	// Verification: a second round trip vets the extracted calls,
	// then the gate engine adjudicates whatever came back. In
	// verification-only mode the valid extracted calls stand in for
	// the verifier's output so the gates are scored alone.
	var vetted []toolcall.Call
	verifyRetry := llm.RetryInfo{FinalSuccess: true}
	verifyRaw := ""
	verifyFailed := false
	if r.phase == PhaseVerification {
		vetted = toolcall.ValidOnly(toolCalls)
	} else {
		verifyResp := r.gateways.verifier().Invoke(ctx, buildVerifyPrompt(s.Prompt, modelOutput), params)
		verifyRetry = verifyResp.RetryInfo
		verifyFailed = verifyResp.Err != ""
		if !verifyFailed {
			verifyRaw = verifyResp.Output
			vetted = parser.Parse(verifyRaw)
		}
		if len(vetted) == 0 {
			vetted = toolcall.ValidOnly(toolCalls)
		}
	}

	gateResult := verify.Apply(vetted, s)
	accepted := gateResult.Accepted
	gates := verify.GatesApplied(s)

	if r.phase == PhaseVerification {
		acceptanceF1 := score.SetPRF1(toolcall.ToolNames(accepted), verificationGold).F1
		res.Metrics = phaseMetrics(acceptanceF1, len(verificationGold), len(accepted), time.Since(start).Seconds(), extractResp.RetryInfo)
		res.Pipeline.Verify = &VerifyData{
			Model:       r.gateways.verifier().Model(),
			VettedCalls: vetted,
			Accepted:    accepted,
			Rejected:    gateResult.Rejected,
			Gates:       gates,
			RetryInfo:   verifyRetry,
			Metrics: VerifyMetrics{
				AcceptanceF1:   acceptanceF1,
				OrderAdherence: 1.0,
			},
		}
		return res
	}

	// Execute planning: a third round trip turns the vetted set into
	// the final sequence. In execution-only mode the final calls are
	// synthesized from the gold set with the fixture's param hints,
	// so no model variance reaches the store.
	var finalCalls []toolcall.Call
	var vettedText string
	execRetry := llm.RetryInfo{FinalSuccess: true}
	execRaw := ""
	if r.phase == PhaseExecution {
		for _, tool := range verificationGold {
			finalCalls = append(finalCalls, toolcall.NewCall(tool, s.ParamHints[tool]))
		}
		vettedText = toolcall.FormatCalls(finalCalls)
	} else {
		if !verifyFailed && len(gateResult.Rejected) == 0 {
			vettedText = verifyRaw
		} else {
			vettedText = toolcall.FormatCalls(accepted)
		}
		execResp := r.gateways.executor().Invoke(ctx, buildExecutePrompt(s.Prompt, contextSummary, vettedText), params)
		execRetry = execResp.RetryInfo
		if execResp.Err == "" {
			execRaw = execResp.Output
			finalCalls = parser.Parse(execRaw)
		}
		if len(finalCalls) == 0 {
			finalCalls = accepted
		}
	}

	parsingErrors, validationErrors := 0, 0
	for _, c := range finalCalls {
		if !c.IsValid {
			parsingErrors += len(c.ParsingErrors)
			validationErrors += len(c.ValidationErrors)
		}
	}

	records := execute.NewEngine(r.store).Run(ctx, finalCalls)
	res.Records = records

	// Parameter and workflow quality are judged on the extracted
	// calls: they measure what the model understood, not what the
	// executor planner rewrote.
	paramScores := score.EvaluateParams(toolCalls, s)
	workflowScores := score.EvaluateWorkflow(toolCalls, s)

	successfulCalls := 0
	for _, rec := range records {
		if rec.Success {
			successfulCalls++
		}
	}
	validFinal := len(toolcall.ValidOnly(finalCalls))
	usage := score.SetPRF1(toolcall.ToolNames(finalCalls), executionGold)

	var successRate, toolAccuracy float64
	if len(executionGold) > 0 {
		successRate = goldToolSuccessRate(executionGold, records)
		toolAccuracy = float64(validFinal) / float64(len(executionGold))
		if toolAccuracy > 1.0 {
			toolAccuracy = 1.0
		}
	} else if len(finalCalls) == 0 {
		successRate, toolAccuracy = 1.0, 1.0
	}

	elapsed := time.Since(start).Seconds()
	res.Metrics = Metrics{
		SuccessRate:      successRate,
		ToolAccuracy:     toolAccuracy,
		ResponseTime:     elapsed,
		ExpectedTools:    len(executionGold),
		ActualTools:      len(finalCalls),
		SuccessfulCalls:  successfulCalls,
		ValidToolCalls:   validFinal,
		ValidationErrors: validationErrors,
		ParsingErrors:    parsingErrors,
		RetryAttempts:    extractResp.RetryInfo.RetryAttempts,
		TotalAttempts:    extractResp.RetryInfo.TotalAttempts,
		ParameterScores:  &paramScores,
		WorkflowScores:   &workflowScores,
		ToolUsage:        usage,
		ErrorBreakdown:   bucketRecords(records),
	}

	extractionF1 := score.SetPRF1(toolcall.ToolNames(toolCalls), extractionGold).F1
	orderAdherence := 1.0
	if s.WorkflowExpectations != nil && len(s.WorkflowExpectations.LogicalOrder) > 0 {
		orderAdherence = workflowScores.SequenceLogic
	}
	acceptanceF1 := score.SetPRF1(toolcall.ToolNames(accepted), verificationGold).F1

	res.Pipeline.Extract = &ExtractData{
		Model:     r.gateways.Extract.Model(),
		RawOutput: modelOutput,
		ToolCalls: toolCalls,
		RetryInfo: extractResp.RetryInfo,
		Metrics: ExtractMetrics{
			ToolF1:             extractionF1,
			OrderAdherence:     orderAdherence,
			ParameterReadiness: paramScores.CompletenessScore,
		},
	}
	res.Pipeline.Verify = &VerifyData{
		Model:       r.gateways.verifier().Model(),
		RawOutput:   verifyRaw,
		VettedCalls: vetted,
		Accepted:    accepted,
		Rejected:    gateResult.Rejected,
		Gates:       gates,
		RetryInfo:   verifyRetry,
		Metrics: VerifyMetrics{
			AcceptanceF1:   acceptanceF1,
			OrderAdherence: orderAdherence,
		},
	}
	execMetrics := ExecuteMetrics{
		SuccessRate:  successRate,
		ToolAccuracy: toolAccuracy,
		ToolUsageF1:  usage.F1,
		Timing:       elapsed,
	}
	if s.ExecutionGold != nil && len(s.ExecutionGold.Sequence) > 0 {
		adherence := score.SequenceAdherence(toolcall.ToolNames(finalCalls), s.ExecutionGold.Sequence)
		execMetrics.OrderAdherence = &adherence
	}
	res.Pipeline.Execute = &ExecuteData{
		Model:      r.gateways.executor().Model(),
		RawOutput:  execRaw,
		FinalCalls: finalCalls,
		Records:    records,
		RetryInfo:  execRetry,
		Metrics:    execMetrics,
	}
	return res
}

// seedStore resets the store and creates the fixture's setup todos.
// Seeding problems are reported, not fatal: a scenario that expected
// seeded data will simply score what it scores.
func (r *Runner) seedStore(ctx context.Context, s *scenario.Scenario) []string {
	setupErrors := []string{}
	if err := r.store.ResetDatabase(); err != nil {
		setupErrors = append(setupErrors, fmt.Sprintf("Failed to reset database: %v", err))
		return setupErrors
	}
	for _, todo := range s.Setup.CreateTodos {
		result := r.store.ExecuteToolCall(ctx, toolcall.NewCall("create_todo", todo))
		if !result.Success {
			reason := result.Error
			if reason == "" {
				reason = "unknown"
			}
			setupErrors = append(setupErrors, fmt.Sprintf("Failed to create setup todo: %s", reason))
		}
	}
	if len(setupErrors) > 0 {
		slog.Warn("Scenario setup reported errors",
			"scenario", s.Name,
			"errors", len(setupErrors))
	}
	return setupErrors
}

// phaseMetrics maps a single phase's headline score onto the
// top-level metrics block so narrower phases aggregate uniformly.
func phaseMetrics(f1 float64, expected, actual int, elapsed float64, retry llm.RetryInfo) Metrics {
	return Metrics{
		SuccessRate:   f1,
		ToolAccuracy:  f1,
		ResponseTime:  elapsed,
		ExpectedTools: expected,
		ActualTools:   actual,
		RetryAttempts: retry.RetryAttempts,
		TotalAttempts: retry.TotalAttempts,
		ToolUsage:     score.PRF1{Precision: f1, Recall: f1, F1: f1},
		ErrorBreakdown: &ErrorBreakdown{
			ValidationErrors:  []execute.Record{},
			NotFoundErrors:    []execute.Record{},
			ExecutionErrors:   []execute.Record{},
			UnknownToolErrors: []execute.Record{},
		},
	}
}

// goldToolSuccessRate scores each unique gold tool as succeeded when
// any executed call for that tool succeeded. Extra calls beyond the
// gold set neither help nor hurt.
func goldToolSuccessRate(gold []string, records []execute.Record) float64 {
	unique := map[string]bool{}
	for _, tool := range gold {
		name := strings.ToLower(strings.TrimSpace(tool))
		if name != "" {
			unique[name] = false
		}
	}
	if len(unique) == 0 {
		return 0.0
	}
	for _, rec := range records {
		name := strings.ToLower(strings.TrimSpace(rec.Tool))
		if _, ok := unique[name]; ok && rec.Success {
			unique[name] = true
		}
	}
	hits := 0
	for _, ok := range unique {
		if ok {
			hits++
		}
	}
	return float64(hits) / float64(len(unique))
}

func bucketRecords(records []execute.Record) *ErrorBreakdown {
	eb := &ErrorBreakdown{
		ValidationErrors:  []execute.Record{},
		NotFoundErrors:    []execute.Record{},
		ExecutionErrors:   []execute.Record{},
		UnknownToolErrors: []execute.Record{},
	}
	for _, rec := range records {
		switch rec.ErrorType {
		case mcp.ValidationError:
			eb.ValidationErrors = append(eb.ValidationErrors, rec)
		case mcp.ExecutionError:
			if strings.Contains(rec.Error, "not found") {
				eb.NotFoundErrors = append(eb.NotFoundErrors, rec)
			} else {
				eb.ExecutionErrors = append(eb.ExecutionErrors, rec)
			}
		}
	}
	return eb
}
