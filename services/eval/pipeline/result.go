// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"github.com/AleutianAI/AleutianBench/services/eval/execute"
	"github.com/AleutianAI/AleutianBench/services/eval/score"
	"github.com/AleutianAI/AleutianBench/services/eval/toolcall"
	"github.com/AleutianAI/AleutianBench/services/eval/verify"
	"github.com/AleutianAI/AleutianBench/services/llm"
)

// Phase selects which pipeline stages run for real. Narrower phases
// substitute deterministic inputs so the stage under test is scored
// in isolation.
type Phase string

const (
	PhaseAll          Phase = "all"
	PhaseExtraction   Phase = "extraction"
	PhaseVerification Phase = "verification"
	PhaseExecution    Phase = "execution"
)

// Format selects the output contract the model is prompted for and
// the parser that recovers calls from its output.
type Format string

const (
	FormatFunction Format = "function"
	FormatJSON     Format = "json"
)

// Parser returns the tolerant parser for the format.
func (f Format) Parser() toolcall.Parser {
	if f == FormatJSON {
		return toolcall.JSONParser{}
	}
	return toolcall.FunctionParser{}
}

// DisplayName is the human-readable format label used in reports.
func (f Format) DisplayName() string {
	if f == FormatJSON {
		return "JSON"
	}
	return "Function Calling"
}

// SystemPrompt returns the format's system prompt with anchored
// dates baked in.
func (f Format) SystemPrompt() string {
	if f == FormatJSON {
		return jsonSystemPrompt()
	}
	return functionSystemPrompt()
}

// ExtractMetrics scores the extraction stage in isolation.
type ExtractMetrics struct {
	ToolF1             float64 `json:"tool_f1"`
	OrderAdherence     float64 `json:"order_adherence"`
	ParameterReadiness float64 `json:"parameter_readiness"`
}

// ExtractData records the extraction stage of one run.
type ExtractData struct {
	Model     string          `json:"model"`
	RawOutput string          `json:"raw_output"`
	ToolCalls []toolcall.Call `json:"tool_calls"`
	RetryInfo llm.RetryInfo   `json:"retry_info"`
	Metrics   ExtractMetrics  `json:"metrics"`
}

// VerifyMetrics scores the verification stage in isolation.
type VerifyMetrics struct {
	AcceptanceF1 float64 `json:"acceptance_f1"`
	// HallucinationF1 is reserved; hallucination adjudication is not
	// scored in the single-shot pipeline.
	HallucinationF1 float64 `json:"hallucination_f1"`
	OrderAdherence  float64 `json:"order_adherence"`
}

// VerifyData records the verification stage: the vetted calls the
// verifier model returned and the gate engine's verdict over them.
type VerifyData struct {
	Model       string             `json:"model"`
	RawOutput   string             `json:"raw_output,omitempty"`
	VettedCalls []toolcall.Call    `json:"vetted_calls"`
	Accepted    []toolcall.Call    `json:"accepted"`
	Rejected    []verify.Rejection `json:"rejected"`
	Gates       map[string]string  `json:"gates"`
	RetryInfo   llm.RetryInfo      `json:"retry_info"`
	Metrics     VerifyMetrics      `json:"metrics"`
}

// ExecuteMetrics scores the execution stage.
type ExecuteMetrics struct {
	SuccessRate  float64 `json:"success_rate"`
	ToolAccuracy float64 `json:"tool_accuracy"`
	ToolUsageF1  float64 `json:"tool_usage_f1"`
	Timing       float64 `json:"timing"`
	// OrderAdherence is only set when the fixture declares an
	// execution gold sequence.
	OrderAdherence *float64 `json:"order_adherence,omitempty"`
}

// ExecuteData records the execution stage of one run.
type ExecuteData struct {
	Model      string           `json:"model"`
	RawOutput  string           `json:"raw_output,omitempty"`
	FinalCalls []toolcall.Call  `json:"final_calls"`
	Records    []execute.Record `json:"results"`
	RetryInfo  llm.RetryInfo    `json:"retry_info"`
	Metrics    ExecuteMetrics   `json:"metrics"`
}

// PipelineData carries the per-stage breakdown. Stages that never
// ran (phase short-circuits, gateway failures) are nil.
type PipelineData struct {
	Extract *ExtractData `json:"extract,omitempty"`
	Verify  *VerifyData  `json:"verify,omitempty"`
	Execute *ExecuteData `json:"execute,omitempty"`
}

// ErrorBreakdown buckets execution records by error type.
type ErrorBreakdown struct {
	ValidationErrors  []execute.Record `json:"validation_errors"`
	NotFoundErrors    []execute.Record `json:"not_found_errors"`
	ExecutionErrors   []execute.Record `json:"execution_errors"`
	UnknownToolErrors []execute.Record `json:"unknown_tool_errors"`
}

// Metrics is the top-level scoring block for one model x scenario
// run. In narrower phases the phase's headline score is mapped onto
// SuccessRate and ToolAccuracy so aggregation stays uniform.
type Metrics struct {
	SuccessRate      float64               `json:"success_rate"`
	ToolAccuracy     float64               `json:"tool_accuracy"`
	ResponseTime     float64               `json:"response_time"`
	ExpectedTools    int                   `json:"expected_tools"`
	ActualTools      int                   `json:"actual_tools"`
	SuccessfulCalls  int                   `json:"successful_calls"`
	ValidToolCalls   int                   `json:"valid_tool_calls"`
	ValidationErrors int                   `json:"validation_errors"`
	ParsingErrors    int                   `json:"parsing_errors"`
	RetryAttempts    int                   `json:"retry_attempts"`
	TotalAttempts    int                   `json:"total_attempts"`
	ParameterScores  *score.ParamScores    `json:"parameter_extraction,omitempty"`
	WorkflowScores   *score.WorkflowScores `json:"workflow_planning,omitempty"`
	ToolUsage        score.PRF1            `json:"tool_usage"`
	ErrorBreakdown   *ErrorBreakdown       `json:"error_breakdown,omitempty"`
}

// Result is the complete outcome of one model x scenario run.
type Result struct {
	Model      string `json:"model"`
	Scenario   string `json:"scenario"`
	FormatType Format `json:"format_type"`
	FormatName string `json:"format_name"`
	Phase      Phase  `json:"phase"`

	// EvaluationFocus and SLASeconds are copied from the fixture so
	// the aggregator never needs the scenario set in hand.
	EvaluationFocus string  `json:"evaluation_focus,omitempty"`
	SLASeconds      float64 `json:"sla_seconds,omitempty"`

	ContextInjected string `json:"context_injected"`
	EnhancedPrompt  string `json:"enhanced_prompt"`
	ModelOutput     string `json:"model_output"`

	ToolCalls []toolcall.Call  `json:"tool_calls"`
	Records   []execute.Record `json:"results"`

	SetupErrors    []string `json:"setup_errors"`
	ExecutionError string   `json:"execution_error,omitempty"`

	RetryInfo llm.RetryInfo `json:"retry_info"`
	Metrics   Metrics       `json:"metrics"`
	Pipeline  PipelineData  `json:"pipeline"`
}
