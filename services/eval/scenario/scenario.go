// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scenario defines the immutable input fixtures the pipeline
// runs against: a natural-language prompt plus gold expectations,
// optional pre-seed setup, and strict-mode exactness declarations.
//
// Fixtures load from JSON files (single object or catalog list) or
// from the built-in suite. A fixture that fails to load is reported
// as skipped-with-reason, never silently dropped.
package scenario

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianBench/services/eval/toolcall"
)

var validate = validator.New()

// =============================================================================
// Scenario
// =============================================================================

// GoldSet is one phase's expected tool names.
type GoldSet struct {
	Tools []string `json:"tools"`

	// Sequence optionally pins an ordered gold sequence; only the
	// execution gold set uses it today.
	Sequence []string `json:"sequence,omitempty"`
}

// Dependency declares that one tool must precede (or feed) another.
type Dependency struct {
	Prerequisite string `json:"prerequisite"`
	Dependent    string `json:"dependent"`
	// Requirement is "order" or "parameter_usage"; empty means "order".
	Requirement string `json:"requirement"`
}

// ContextRequirement declares that a target call's parameter should
// originate from a source call's result.
type ContextRequirement struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Parameter string `json:"parameter"`
}

// WorkflowExpectations declares the heuristics a multi-step scenario
// is scored against.
type WorkflowExpectations struct {
	LogicalOrder        []string             `json:"logical_order"`
	Dependencies        []Dependency         `json:"dependencies"`
	MinimalSteps        int                  `json:"minimal_steps"`
	ContextRequirements []ContextRequirement `json:"context_requirements"`
	ErrorScenarios      []string             `json:"error_scenarios"`
	RequiredOperations  []string             `json:"required_operations"`
}

// Setup lists entities seeded into the collaborator before the
// scenario's prompt is issued.
type Setup struct {
	CreateTodos []map[string]toolcall.Value `json:"create_todos"`
}

// Scenario is one immutable evaluation fixture.
//
// Identity is Name (falling back to the file stem at load time).
// Scenarios are loaded once per run and never mutated afterward.
type Scenario struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt" validate:"required"`

	// ExpectedTools is the legacy ordered gold list, used as the
	// fallback when phase-specific gold sets are absent.
	ExpectedTools []string `json:"expected_tools"`

	// Phase-specific gold sets.
	ExtractionGold   *GoldSet `json:"extraction_gold,omitempty"`
	VerificationGold *GoldSet `json:"verification_gold,omitempty"`
	ExecutionGold    *GoldSet `json:"execution_gold,omitempty"`

	// ParamHints synthesizes deterministic calls in execution-only
	// mode. Keys must be a subset of ExpectedTools when both are set.
	ParamHints map[string]map[string]toolcall.Value `json:"param_hints,omitempty"`

	StrictMode bool `json:"strict_mode"`

	// ExpectedParameters drives the strict-mode exactness gate.
	ExpectedParameters *ExpectedParameters `json:"expected_parameters,omitempty"`

	Setup                Setup                 `json:"setup"`
	WorkflowExpectations *WorkflowExpectations `json:"workflow_expectations,omitempty"`
	EvaluationFocus      string                `json:"evaluation_focus,omitempty"`
	Complexity           int                   `json:"complexity" validate:"gte=0,lte=5"`

	// SLASeconds overrides the default latency SLA used by the task
	// score. Zero means the aggregator's default applies.
	SLASeconds float64 `json:"sla_seconds,omitempty"`
}

// Validate checks structural requirements beyond what JSON decoding
// enforces. Returns a descriptive error for the load report.
func (s *Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	if len(s.ParamHints) > 0 && len(s.ExpectedTools) > 0 {
		allowed := map[string]bool{}
		for _, tool := range s.ExpectedTools {
			allowed[tool] = true
		}
		for tool := range s.ParamHints {
			if !allowed[tool] {
				return fmt.Errorf("param_hints tool %q not in expected_tools", tool)
			}
		}
	}
	for _, tool := range s.ExpectedTools {
		if !toolcall.IsValidTool(tool) {
			return fmt.Errorf("expected_tools contains unknown tool %q", tool)
		}
	}
	return nil
}

// GoldTools returns the gold set for a phase, falling back through
// the phase chain to the legacy expected_tools list.
//
// Extraction falls back to ExpectedTools; verification falls back to
// extraction's answer; execution falls back to verification's.
func (s *Scenario) GoldTools(phase string) []string {
	switch phase {
	case "extraction":
		if s.ExtractionGold != nil && len(s.ExtractionGold.Tools) > 0 {
			return s.ExtractionGold.Tools
		}
		return s.ExpectedTools
	case "verification":
		if s.VerificationGold != nil && len(s.VerificationGold.Tools) > 0 {
			return s.VerificationGold.Tools
		}
		return s.GoldTools("extraction")
	case "execution":
		if s.ExecutionGold != nil && len(s.ExecutionGold.Tools) > 0 {
			return s.ExecutionGold.Tools
		}
		return s.GoldTools("verification")
	default:
		return s.ExpectedTools
	}
}

// Allowlist is the verification gate's tool allowlist: the
// verification gold set, else the extraction gold set, else the
// legacy expected list.
func (s *Scenario) Allowlist() []string {
	if s.VerificationGold != nil && len(s.VerificationGold.Tools) > 0 {
		return s.VerificationGold.Tools
	}
	if s.ExtractionGold != nil && len(s.ExtractionGold.Tools) > 0 {
		return s.ExtractionGold.Tools
	}
	return s.ExpectedTools
}

// =============================================================================
// Expected Parameters (dual shape)
// =============================================================================

// ExpectedParameters carries the strict-mode exactness declarations.
//
// Fixtures use one of two shapes: a flat mapping of parameter name to
// expected value (meaningful only when the allowlist identifies a
// single tool), or a per-tool mapping keyed by tool name. The shape
// is detected at decode time: if every top-level key is a valid tool
// name with an object value, the mapping is per-tool.
type ExpectedParameters struct {
	// PerTool is set for the per-tool shape.
	PerTool map[string]map[string]toolcall.Value

	// Flat is set for the single-tool shape.
	Flat map[string]toolcall.Value
}

// ForTool returns the expected parameter mapping that applies to a
// tool, honoring the dual-shape rule: the flat shape applies only
// when the allowlist is exactly [tool].
func (e *ExpectedParameters) ForTool(tool string, allowlist []string) (map[string]toolcall.Value, bool) {
	if e == nil {
		return nil, false
	}
	if e.PerTool != nil {
		params, ok := e.PerTool[tool]
		return params, ok
	}
	if len(allowlist) == 1 && allowlist[0] == tool {
		return e.Flat, e.Flat != nil
	}
	return nil, false
}

// UnmarshalJSON detects the fixture shape.
func (e *ExpectedParameters) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	perTool := len(raw) > 0
	for key, value := range raw {
		if !toolcall.IsValidTool(key) || !isJSONObject(value) {
			perTool = false
			break
		}
	}

	if perTool {
		e.PerTool = map[string]map[string]toolcall.Value{}
		for tool, value := range raw {
			var params map[string]toolcall.Value
			if err := json.Unmarshal(value, &params); err != nil {
				return fmt.Errorf("expected_parameters for %s: %w", tool, err)
			}
			e.PerTool[tool] = params
		}
		return nil
	}

	e.Flat = map[string]toolcall.Value{}
	for key, value := range raw {
		var v toolcall.Value
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("expected_parameters key %s: %w", key, err)
		}
		e.Flat[key] = v
	}
	return nil
}

// MarshalJSON writes back whichever shape is populated.
func (e ExpectedParameters) MarshalJSON() ([]byte, error) {
	if e.PerTool != nil {
		return json.Marshal(e.PerTool)
	}
	return json.Marshal(e.Flat)
}

func isJSONObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
