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
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianBench/services/eval/execute"
	"github.com/AleutianAI/AleutianBench/services/eval/scenario"
	"github.com/AleutianAI/AleutianBench/services/eval/toolcall"
	"github.com/AleutianAI/AleutianBench/services/llm"
	"github.com/AleutianAI/AleutianBench/services/mcp"
)

// scriptedClient returns queued outputs in call order, repeating the
// last one when the queue runs dry.
type scriptedClient struct {
	model   string
	outputs []string
	errs    []error
	calls   int
	prompts []string
}

func (c *scriptedClient) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (*llm.Result, error) {
	i := c.calls
	c.calls++
	c.prompts = append(c.prompts, prompt)
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	out := c.outputs[len(c.outputs)-1]
	if i < len(c.outputs) {
		out = c.outputs[i]
	}
	return &llm.Result{Text: out}, nil
}

func (c *scriptedClient) Model() string { return c.model }

func newRunner(t *testing.T, client *scriptedClient, opts ...Option) *Runner {
	t.Helper()
	gw := llm.NewGateway(client,
		llm.WithRetryDelay(time.Millisecond),
		llm.WithAttemptTimeout(5*time.Second))
	return New(Gateways{Extract: gw}, mcp.NewMemoryRunner(), opts...)
}

func TestRunScenario_FullPipeline(t *testing.T) {
	call := `create_todo(title="Buy milk", priority="high")`
	client := &scriptedClient{model: "test-model", outputs: []string{
		"Sure, creating the todo.\n" + call, // extract
		call,                                // verify
		call,                                // execute plan
	}}
	r := newRunner(t, client)
	s := &scenario.Scenario{
		Name:          "create_simple",
		Prompt:        "Add a todo item: 'Buy milk' with high priority.",
		ExpectedTools: []string{"create_todo"},
	}

	res := r.RunScenario(context.Background(), s)

	if client.calls != 3 {
		t.Fatalf("expected 3 model calls, got %d", client.calls)
	}
	if res.ExecutionError != "" {
		t.Fatalf("unexpected execution error: %s", res.ExecutionError)
	}
	if res.Metrics.SuccessRate != 1.0 {
		t.Errorf("success rate = %v, want 1.0", res.Metrics.SuccessRate)
	}
	if res.Metrics.ToolAccuracy != 1.0 {
		t.Errorf("tool accuracy = %v, want 1.0", res.Metrics.ToolAccuracy)
	}
	if res.Metrics.SuccessfulCalls != 1 {
		t.Errorf("successful calls = %d, want 1", res.Metrics.SuccessfulCalls)
	}
	if res.Metrics.ToolUsage.F1 != 1.0 {
		t.Errorf("tool usage f1 = %v, want 1.0", res.Metrics.ToolUsage.F1)
	}
	if len(res.Records) != 1 || !res.Records[0].Success {
		t.Fatalf("expected one successful record, got %+v", res.Records)
	}
	if res.Pipeline.Extract == nil || res.Pipeline.Verify == nil || res.Pipeline.Execute == nil {
		t.Fatal("all pipeline stages should be recorded")
	}
	if res.Pipeline.Extract.Metrics.ToolF1 != 1.0 {
		t.Errorf("extraction tool f1 = %v, want 1.0", res.Pipeline.Extract.Metrics.ToolF1)
	}
	if !strings.Contains(res.EnhancedPrompt, emptyDBNote) {
		t.Error("empty store should inject the empty-database note")
	}
}

func TestRunScenario_SetupSeedingInjectsContext(t *testing.T) {
	client := &scriptedClient{model: "test-model", outputs: []string{"list_todos()\n"}}
	r := newRunner(t, client)
	s := &scenario.Scenario{
		Name:          "list_existing",
		Prompt:        "Show me everything.",
		ExpectedTools: []string{"list_todos"},
		Setup: scenario.Setup{CreateTodos: []map[string]toolcall.Value{
			{"title": toolcall.String("Water plants")},
			{"title": toolcall.String("Call dentist")},
		}},
	}

	res := r.RunScenario(context.Background(), s)

	if len(res.SetupErrors) != 0 {
		t.Fatalf("setup errors: %v", res.SetupErrors)
	}
	if res.ContextInjected != "Database contains 2 todos." {
		t.Errorf("context = %q", res.ContextInjected)
	}
	if strings.Contains(res.EnhancedPrompt, emptyDBNote) {
		t.Error("seeded store must not claim to be empty")
	}
	if !strings.HasSuffix(res.EnhancedPrompt, res.ContextInjected) {
		t.Error("context summary should be appended to the prompt")
	}
}

func TestRunScenario_ExtractionPhaseStopsEarly(t *testing.T) {
	client := &scriptedClient{model: "test-model", outputs: []string{
		`create_todo(title="Buy milk")` + "\n" + `list_todos()`,
	}}
	r := newRunner(t, client, WithPhase(PhaseExtraction))
	s := &scenario.Scenario{
		Name:          "extract_only",
		Prompt:        "Add milk, then show todos.",
		ExpectedTools: []string{"create_todo", "list_todos"},
	}

	res := r.RunScenario(context.Background(), s)

	if client.calls != 1 {
		t.Fatalf("extraction phase should make exactly one model call, got %d", client.calls)
	}
	if res.Metrics.SuccessRate != 1.0 || res.Metrics.ToolAccuracy != 1.0 {
		t.Errorf("extraction f1 should map to top-level scores, got %+v", res.Metrics)
	}
	if res.Pipeline.Verify != nil || res.Pipeline.Execute != nil {
		t.Error("later stages should not be recorded")
	}
	if len(res.Records) != 0 {
		t.Error("nothing should execute in extraction phase")
	}
}

func TestRunScenario_VerificationPhaseUsesExtractedCalls(t *testing.T) {
	client := &scriptedClient{model: "test-model", outputs: []string{
		`create_todo(title="Buy milk")`,
	}}
	r := newRunner(t, client, WithPhase(PhaseVerification))
	s := &scenario.Scenario{
		Name:          "verify_only",
		Prompt:        "Add milk.",
		ExpectedTools: []string{"create_todo"},
	}

	res := r.RunScenario(context.Background(), s)

	if client.calls != 1 {
		t.Fatalf("verification phase should skip the verifier model call, got %d calls", client.calls)
	}
	if res.Pipeline.Verify == nil {
		t.Fatal("verify stage should be recorded")
	}
	if res.Pipeline.Verify.Metrics.AcceptanceF1 != 1.0 {
		t.Errorf("acceptance f1 = %v, want 1.0", res.Pipeline.Verify.Metrics.AcceptanceF1)
	}
	if !res.Pipeline.Verify.RetryInfo.FinalSuccess {
		t.Error("substituted verify stage should report final success")
	}
	if got := res.Pipeline.Verify.Gates["allowlist"]; got != "applied" {
		t.Errorf("allowlist gate = %q, want applied", got)
	}
	if len(res.Records) != 0 {
		t.Error("nothing should execute in verification phase")
	}
}

func TestRunScenario_ExecutionPhaseSynthesizesFromGold(t *testing.T) {
	// The extractor rambles and the verifier echoes it; neither
	// matters because execution-only builds the final calls from the
	// gold set and param hints.
	client := &scriptedClient{model: "test-model", outputs: []string{
		"I would probably create something here.",
		"I would probably create something here.",
	}}
	r := newRunner(t, client, WithPhase(PhaseExecution))
	s := &scenario.Scenario{
		Name:          "execute_only",
		Prompt:        "Add rent reminder.",
		ExpectedTools: []string{"create_todo"},
		ParamHints: map[string]map[string]toolcall.Value{
			"create_todo": {"title": toolcall.String("Pay rent")},
		},
	}

	res := r.RunScenario(context.Background(), s)

	if client.calls != 2 {
		t.Fatalf("execution phase should skip only the executor call, got %d calls", client.calls)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected one record, got %d", len(res.Records))
	}
	rec := res.Records[0]
	if rec.Tool != "create_todo" || !rec.Success {
		t.Fatalf("synthesized call should execute successfully: %+v", rec)
	}
	if res.Metrics.SuccessRate != 1.0 {
		t.Errorf("success rate = %v, want 1.0", res.Metrics.SuccessRate)
	}
	if res.Pipeline.Execute == nil || len(res.Pipeline.Execute.FinalCalls) != 1 {
		t.Fatal("execute stage should carry the synthesized call")
	}
	if got, _ := res.Pipeline.Execute.FinalCalls[0].Param("title"); got.Display() != "Pay rent" {
		t.Errorf("param hint not applied: %v", got)
	}
}

func TestRunScenario_GatewayFailureRecordsZeroMetrics(t *testing.T) {
	client := &scriptedClient{
		model: "test-model",
		errs:  []error{errors.New("boom"), errors.New("boom"), errors.New("boom")},
	}
	r := newRunner(t, client)
	s := &scenario.Scenario{
		Name:          "unreachable",
		Prompt:        "Add milk.",
		ExpectedTools: []string{"create_todo"},
	}

	res := r.RunScenario(context.Background(), s)

	if res.ExecutionError == "" {
		t.Fatal("gateway failure should be recorded")
	}
	if res.Metrics.SuccessRate != 0 || res.Metrics.ToolAccuracy != 0 {
		t.Errorf("failed run must score zero, got %+v", res.Metrics)
	}
	if res.Metrics.ExpectedTools != 1 {
		t.Errorf("expected tools = %d, want 1", res.Metrics.ExpectedTools)
	}
	if res.Metrics.TotalAttempts != 3 {
		t.Errorf("total attempts = %d, want 3", res.Metrics.TotalAttempts)
	}
	if res.Pipeline.Extract != nil {
		t.Error("no stage data should be recorded for a failed extraction")
	}
}

func TestRunScenario_ExecutorFallbackToVettedCalls(t *testing.T) {
	client := &scriptedClient{model: "test-model", outputs: []string{
		`create_todo(title="Buy milk")`, // extract
		`create_todo(title="Buy milk")`, // verify
		"Nothing useful in this reply.", // execute plan, unparseable
	}}
	r := newRunner(t, client)
	s := &scenario.Scenario{
		Name:          "fallback",
		Prompt:        "Add milk.",
		ExpectedTools: []string{"create_todo"},
	}

	res := r.RunScenario(context.Background(), s)

	if len(res.Records) != 1 || res.Records[0].Tool != "create_todo" {
		t.Fatalf("executor fallback should run the vetted calls, got %+v", res.Records)
	}
	if res.Metrics.SuccessRate != 1.0 {
		t.Errorf("success rate = %v, want 1.0", res.Metrics.SuccessRate)
	}
}

func TestRunScenario_GateRejectionFiltersExecution(t *testing.T) {
	extracted := "list_todos()\ndelete_todo(id=1)"
	client := &scriptedClient{model: "test-model", outputs: []string{
		extracted,
		extracted,
		"Nothing useful in this reply.", // forces fallback to accepted calls
	}}
	r := newRunner(t, client)
	s := &scenario.Scenario{
		Name:          "allowlist_guard",
		Prompt:        "Show me my todos.",
		ExpectedTools: []string{"list_todos"},
	}

	res := r.RunScenario(context.Background(), s)

	if res.Pipeline.Verify == nil {
		t.Fatal("verify stage should be recorded")
	}
	if len(res.Pipeline.Verify.Rejected) != 1 {
		t.Fatalf("expected one gate rejection, got %d", len(res.Pipeline.Verify.Rejected))
	}
	if res.Pipeline.Verify.Rejected[0].Call.Tool != "delete_todo" {
		t.Errorf("rejected tool = %s, want delete_todo", res.Pipeline.Verify.Rejected[0].Call.Tool)
	}
	if len(res.Records) != 1 || res.Records[0].Tool != "list_todos" {
		t.Fatalf("only the accepted call should execute, got %+v", res.Records)
	}
}

type recordSpec struct {
	tool    string
	success bool
}

func makeRecords(specs []recordSpec) []execute.Record {
	out := make([]execute.Record, 0, len(specs))
	for _, sp := range specs {
		out = append(out, execute.Record{Tool: sp.tool, Success: sp.success, Status: execute.StatusExecuted})
	}
	return out
}

func TestGoldToolSuccessRate(t *testing.T) {
	tests := []struct {
		name    string
		gold    []string
		records []recordSpec
		want    float64
	}{
		{
			name:    "all gold tools succeed",
			gold:    []string{"create_todo", "list_todos"},
			records: []recordSpec{{"create_todo", true}, {"list_todos", true}},
			want:    1.0,
		},
		{
			name:    "one of two fails",
			gold:    []string{"create_todo", "list_todos"},
			records: []recordSpec{{"create_todo", true}, {"list_todos", false}},
			want:    0.5,
		},
		{
			name:    "extra successful calls do not help",
			gold:    []string{"create_todo"},
			records: []recordSpec{{"list_todos", true}, {"search_todos", true}},
			want:    0.0,
		},
		{
			name:    "duplicate gold tools count once",
			gold:    []string{"create_todo", "create_todo"},
			records: []recordSpec{{"create_todo", true}},
			want:    1.0,
		},
		{
			name:    "case and whitespace normalized",
			gold:    []string{" Create_Todo "},
			records: []recordSpec{{"create_todo", true}},
			want:    1.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := goldToolSuccessRate(tt.gold, makeRecords(tt.records))
			if got != tt.want {
				t.Errorf("goldToolSuccessRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatSelection(t *testing.T) {
	if _, ok := FormatFunction.Parser().(toolcall.FunctionParser); !ok {
		t.Error("function format should use the function parser")
	}
	if _, ok := FormatJSON.Parser().(toolcall.JSONParser); !ok {
		t.Error("json format should use the json parser")
	}
	if !strings.Contains(FormatJSON.SystemPrompt(), "TOOL_EXECUTION_MODE_JSON") {
		t.Error("json system prompt marker missing")
	}
	if !strings.Contains(FormatFunction.SystemPrompt(), "TOOL_EXECUTION_MODE:") {
		t.Error("function system prompt marker missing")
	}
	if !strings.Contains(FormatFunction.SystemPrompt(), scenario.AnchorDate()) {
		t.Error("system prompt should carry the anchor date")
	}
}
