// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scenario

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianBench/services/eval/toolcall"
)

// =============================================================================
// Gold Set and Allowlist Tests
// =============================================================================

func TestScenario_GoldTools_Fallbacks(t *testing.T) {
	s := Scenario{
		ExpectedTools:    []string{"create_todo", "update_todo"},
		VerificationGold: &GoldSet{Tools: []string{"create_todo"}},
	}

	tests := []struct {
		phase string
		want  []string
	}{
		{"extraction", []string{"create_todo", "update_todo"}},
		{"verification", []string{"create_todo"}},
		{"execution", []string{"create_todo"}}, // Falls back to verification
	}
	for _, tt := range tests {
		t.Run(tt.phase, func(t *testing.T) {
			if got := s.GoldTools(tt.phase); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GoldTools(%s) = %v, want %v", tt.phase, got, tt.want)
			}
		})
	}
}

func TestScenario_Allowlist_Precedence(t *testing.T) {
	tests := []struct {
		name string
		s    Scenario
		want []string
	}{
		{
			name: "verification gold wins",
			s: Scenario{
				ExpectedTools:    []string{"a"},
				ExtractionGold:   &GoldSet{Tools: []string{"create_todo"}},
				VerificationGold: &GoldSet{Tools: []string{"delete_todo"}},
			},
			want: []string{"delete_todo"},
		},
		{
			name: "extraction gold second",
			s: Scenario{
				ExpectedTools:  []string{"a"},
				ExtractionGold: &GoldSet{Tools: []string{"create_todo"}},
			},
			want: []string{"create_todo"},
		},
		{
			name: "expected tools last",
			s:    Scenario{ExpectedTools: []string{"list_todos"}},
			want: []string{"list_todos"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Allowlist(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Allowlist() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Expected Parameters Shape Tests
// =============================================================================

func TestExpectedParameters_FlatShape(t *testing.T) {
	var e ExpectedParameters
	raw := `{"title":"Buy milk","priority":"high"}`
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal error = %v", err)
	}
	if e.Flat == nil || e.PerTool != nil {
		t.Fatalf("expected flat shape, got %+v", e)
	}

	params, ok := e.ForTool("create_todo", []string{"create_todo"})
	if !ok {
		t.Fatal("flat shape should apply with single-tool allowlist")
	}
	if title, _ := params["title"].AsString(); title != "Buy milk" {
		t.Errorf("title = %q", title)
	}

	// Flat shape never applies when the allowlist has multiple tools.
	if _, ok := e.ForTool("create_todo", []string{"create_todo", "list_todos"}); ok {
		t.Error("flat shape must not apply with multi-tool allowlist")
	}
}

func TestExpectedParameters_PerToolShape(t *testing.T) {
	var e ExpectedParameters
	raw := `{"create_todo":{"title":"x"},"update_todo":{"completed":true}}`
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal error = %v", err)
	}
	if e.PerTool == nil {
		t.Fatalf("expected per-tool shape, got %+v", e)
	}

	params, ok := e.ForTool("update_todo", []string{"create_todo", "update_todo"})
	if !ok {
		t.Fatal("per-tool shape should apply regardless of allowlist width")
	}
	if completed, _ := params["completed"].AsBool(); !completed {
		t.Errorf("completed = %v", params["completed"])
	}
	if _, ok := e.ForTool("delete_todo", nil); ok {
		t.Error("tool absent from per-tool mapping should not match")
	}
}

// =============================================================================
// Anchor Substitution Tests
// =============================================================================

func TestSubstituteAnchors(t *testing.T) {
	t.Setenv("EVAL_ANCHOR_DATE", "")
	got := SubstituteAnchors("due ${TODAY}, then ${TOMORROW}")
	want := "due 2025-08-06, then 2025-08-07"
	if got != want {
		t.Errorf("SubstituteAnchors() = %q, want %q", got, want)
	}
}

func TestAnchorDate_EnvOverride(t *testing.T) {
	t.Setenv("EVAL_ANCHOR_DATE", "2026-01-31")
	if got := AnchorDate(); got != "2026-01-31" {
		t.Errorf("AnchorDate() = %q", got)
	}
	if got := AnchorTomorrow(); got != "2026-02-01" {
		t.Errorf("AnchorTomorrow() = %q", got)
	}
}

func TestAnchorDate_MalformedEnvFallsBack(t *testing.T) {
	t.Setenv("EVAL_ANCHOR_DATE", "next tuesday")
	if got := AnchorDate(); got != DefaultAnchorDate {
		t.Errorf("AnchorDate() = %q, want default", got)
	}
}

// =============================================================================
// Loader Tests
// =============================================================================

func TestLoadFile_SingleObject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "my_fixture.json")
	content := `{"prompt":"Create 'X' for ${TOMORROW}","expected_tools":["create_todo"]}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EVAL_ANCHOR_DATE", "")

	result := LoadFile(path)
	if len(result.Skipped) != 0 {
		t.Fatalf("unexpected skips: %+v", result.Skipped)
	}
	if len(result.Scenarios) != 1 {
		t.Fatalf("expected 1 scenario, got %d", len(result.Scenarios))
	}
	s := result.Scenarios[0]
	if s.Name != "my_fixture" {
		t.Errorf("name = %q, want file stem", s.Name)
	}
	if s.Prompt != "Create 'X' for 2025-08-07" {
		t.Errorf("prompt = %q, anchor not substituted", s.Prompt)
	}
}

func TestLoadFile_Catalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	content := `[
		{"name":"one","prompt":"p1","expected_tools":["list_todos"]},
		{"prompt":"p2","expected_tools":["create_todo"]}
	]`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	result := LoadFile(path)
	if len(result.Scenarios) != 2 {
		t.Fatalf("expected 2 scenarios, got %d (skipped %+v)", len(result.Scenarios), result.Skipped)
	}
	if result.Scenarios[0].Name != "one" {
		t.Errorf("embedded name should win, got %q", result.Scenarios[0].Name)
	}
	if result.Scenarios[1].Name != "catalog_1" {
		t.Errorf("fallback name = %q, want catalog_1", result.Scenarios[1].Name)
	}
}

func TestLoadFile_SkippedWithReason(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"malformed.json", `{"prompt": `},
		{"missing_prompt.json", `{"expected_tools":["create_todo"]}`},
		{"bad_tool.json", `{"prompt":"p","expected_tools":["fly_to_moon"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			result := LoadFile(path)
			if len(result.Scenarios) != 0 {
				t.Errorf("malformed fixture should not load: %+v", result.Scenarios)
			}
			if len(result.Skipped) != 1 || result.Skipped[0].Reason == "" {
				t.Errorf("expected one skip with reason, got %+v", result.Skipped)
			}
		})
	}
}

func TestLoadFile_YAMLFixture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weekly_review.yaml")
	content := `prompt: "Show todos due ${TODAY}"
expected_tools:
  - list_todos
expected_parameters:
  due_date: "${TODAY}"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EVAL_ANCHOR_DATE", "")

	result := LoadFile(path)
	if len(result.Skipped) != 0 {
		t.Fatalf("unexpected skips: %+v", result.Skipped)
	}
	if len(result.Scenarios) != 1 {
		t.Fatalf("expected 1 scenario, got %d", len(result.Scenarios))
	}
	s := result.Scenarios[0]
	if s.Name != "weekly_review" {
		t.Errorf("name = %q, want yaml file stem", s.Name)
	}
	if s.Prompt != "Show todos due 2025-08-06" {
		t.Errorf("prompt = %q, anchor not substituted", s.Prompt)
	}
}

func TestLoadFile_YAMLCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pack.yml")
	content := `- name: first
  prompt: p1
  expected_tools: [list_todos]
- prompt: p2
  expected_tools: [create_todo]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	result := LoadFile(path)
	if len(result.Scenarios) != 2 {
		t.Fatalf("expected 2 scenarios, got %d (skipped %+v)", len(result.Scenarios), result.Skipped)
	}
	if result.Scenarios[0].Name != "first" {
		t.Errorf("embedded name should win, got %q", result.Scenarios[0].Name)
	}
	if result.Scenarios[1].Name != "pack_1" {
		t.Errorf("fallback name = %q, want pack_1", result.Scenarios[1].Name)
	}
}

func TestLoadFile_MalformedYAMLSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("prompt: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}

	result := LoadFile(path)
	if len(result.Scenarios) != 0 || len(result.Skipped) != 1 {
		t.Fatalf("want one skip, got scenarios=%d skipped=%+v",
			len(result.Scenarios), result.Skipped)
	}
	if !strings.Contains(result.Skipped[0].Reason, "yaml decode") {
		t.Errorf("reason = %q, want yaml decode failure", result.Skipped[0].Reason)
	}
}

func TestLoadDir_MixedFixtures(t *testing.T) {
	dir := t.TempDir()
	good := `{"prompt":"p","expected_tools":["list_todos"]}`
	bad := `not json at all`
	if err := os.WriteFile(filepath.Join(dir, "a_good.json"), []byte(good), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b_bad.json"), []byte(bad), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	result, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir error = %v", err)
	}
	if len(result.Scenarios) != 1 || len(result.Skipped) != 1 {
		t.Errorf("got %d scenarios, %d skipped; want 1 and 1",
			len(result.Scenarios), len(result.Skipped))
	}
}

func TestFilter(t *testing.T) {
	scenarios := []Scenario{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	kept, err := Filter(scenarios, []string{"c", "a"})
	if err != nil {
		t.Fatalf("Filter error = %v", err)
	}
	if len(kept) != 2 || kept[0].Name != "c" || kept[1].Name != "a" {
		t.Errorf("Filter preserved wrong set/order: %+v", kept)
	}

	all, err := Filter(scenarios, nil)
	if err != nil || len(all) != 3 {
		t.Errorf("empty keep should pass everything through")
	}

	if _, err := Filter(scenarios, []string{"nope"}); err == nil {
		t.Error("unknown scenario name should error")
	}
}

// =============================================================================
// Built-in Suite Tests
// =============================================================================

func TestBuiltin_AllValid(t *testing.T) {
	suite := Builtin()
	if len(suite) == 0 {
		t.Fatal("built-in suite is empty")
	}
	seen := map[string]bool{}
	for i := range suite {
		s := &suite[i]
		if err := s.Validate(); err != nil {
			t.Errorf("builtin %q invalid: %v", s.Name, err)
		}
		if seen[s.Name] {
			t.Errorf("duplicate builtin name %q", s.Name)
		}
		seen[s.Name] = true
	}
}

func TestBuiltin_ReturnsFreshCopies(t *testing.T) {
	first := Builtin()
	first[0].Prompt = "mutated"
	second := Builtin()
	if second[0].Prompt == "mutated" {
		t.Error("Builtin() must not share state between calls")
	}
}

func TestScenario_Validate_ParamHintsSubset(t *testing.T) {
	s := Scenario{
		Name:          "s",
		Prompt:        "p",
		ExpectedTools: []string{toolcall.ToolCreateTodo},
		ParamHints: map[string]map[string]toolcall.Value{
			toolcall.ToolDeleteTodo: {"id": toolcall.Int(1)},
		},
	}
	if err := s.Validate(); err == nil {
		t.Error("param_hints outside expected_tools should fail validation")
	}
}
