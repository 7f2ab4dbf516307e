// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package verify filters candidate tool calls through the scenario's
// admission gates.
//
// # Gates
//
// Gates run in a fixed order and every gate is evaluated even after
// an earlier one fails, so a rejected call carries the full list of
// failure reasons:
//
//  1. allowlist — in non-strict mode an empty allowlist passes
//     everything; in strict mode the allowlist is a closed set and an
//     empty list rejects every call.
//  2. required_params — each tool's required parameters must be
//     present (create_todo needs title, the id-addressed tools need
//     id, the query tools need nothing).
//  3. parameter_exactness — strict mode only, and only when the
//     scenario declares expected parameter values for the call's
//     tool. Expected values that are unresolved cross-call
//     placeholders ($CALL_<n>.id) are skipped since they cannot be
//     known before execution.
//
// A call is accepted iff every applicable gate passes.
package verify

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianBench/services/eval/scenario"
	"github.com/AleutianAI/AleutianBench/services/eval/toolcall"
)

// Gate names as they appear in rejection records and artifacts.
const (
	GateAllowlist          = "allowlist"
	GateRequiredParams     = "required_params"
	GateParameterExactness = "parameter_exactness"
)

// GateFailure records a single failed gate with a human-readable
// reason.
type GateFailure struct {
	Gate   string `json:"gate"`
	Reason string `json:"reason"`
}

// Rejection is a call that failed at least one gate.
type Rejection struct {
	Call        toolcall.Call `json:"call"`
	FailedGates []GateFailure `json:"failed_gates"`
}

// Result splits the candidate calls into accepted and rejected,
// preserving candidate order within each list.
type Result struct {
	Accepted []toolcall.Call `json:"accepted"`
	Rejected []Rejection     `json:"rejected"`
}

// =============================================================================
// Gate Engine
// =============================================================================

// Apply runs every candidate call through the scenario's gates.
func Apply(calls []toolcall.Call, s *scenario.Scenario) Result {
	allowlist := s.Allowlist()
	allowed := make(map[string]bool, len(allowlist))
	for _, tool := range allowlist {
		allowed[tool] = true
	}

	result := Result{
		Accepted: []toolcall.Call{},
		Rejected: []Rejection{},
	}

	for _, call := range calls {
		var failures []GateFailure

		if reason, ok := allowlistGate(call.Tool, allowed, len(allowlist), s.StrictMode); !ok {
			failures = append(failures, GateFailure{Gate: GateAllowlist, Reason: reason})
		}
		if reason, ok := requiredParamsGate(call); !ok {
			failures = append(failures, GateFailure{Gate: GateRequiredParams, Reason: reason})
		}
		if s.StrictMode {
			if expected, ok := s.ExpectedParameters.ForTool(call.Tool, allowlist); ok {
				if reason, ok := exactnessGate(call, expected); !ok {
					failures = append(failures, GateFailure{Gate: GateParameterExactness, Reason: reason})
				}
			}
		}

		if len(failures) == 0 {
			result.Accepted = append(result.Accepted, call)
		} else {
			result.Rejected = append(result.Rejected, Rejection{Call: call, FailedGates: failures})
		}
	}
	return result
}

// GatesApplied summarizes which gates were in force for the
// scenario, for the verification artifact. When flat expected
// parameters cannot bind because the allowlist names more than one
// tool, the exactness gate is reported as skipped so the condition
// is visible in artifacts rather than silently absent.
func GatesApplied(s *scenario.Scenario) map[string]string {
	gates := map[string]string{
		GateAllowlist:      "applied",
		GateRequiredParams: "applied",
	}
	if !s.StrictMode || s.ExpectedParameters == nil {
		return gates
	}
	e := s.ExpectedParameters
	if e.PerTool == nil && e.Flat != nil && len(s.Allowlist()) != 1 {
		gates[GateParameterExactness] = "exactness_skipped"
	} else {
		gates[GateParameterExactness] = "applied"
	}
	return gates
}

func allowlistGate(tool string, allowed map[string]bool, allowlistLen int, strict bool) (string, bool) {
	var ok bool
	if strict {
		// Closed set: an empty strict allowlist admits nothing.
		ok = allowed[tool]
	} else {
		ok = allowlistLen == 0 || allowed[tool]
	}
	if !ok {
		return "tool not in scenario allowlist", false
	}
	return "", true
}

func requiredParamsGate(call toolcall.Call) (string, bool) {
	var missing []string
	for _, name := range toolcall.RequiredParams(call.Tool) {
		if _, present := call.Parameters[name]; !present {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		quoted := make([]string, len(missing))
		for i, name := range missing {
			quoted[i] = "'" + name + "'"
		}
		return fmt.Sprintf("missing: [%s]", strings.Join(quoted, ", ")), false
	}
	return "", true
}

// =============================================================================
// Strict-Mode Exactness
// =============================================================================

func exactnessGate(call toolcall.Call, expected map[string]toolcall.Value) (string, bool) {
	var mismatches []string
	for _, key := range sortedExpectedKeys(expected) {
		expectedValue := expected[key]
		if isPlaceholder(expectedValue) {
			continue
		}

		actual, present := call.Param(key)
		if !present {
			mismatches = append(mismatches, fmt.Sprintf("missing key '%s'", key))
			continue
		}

		switch {
		case key == "priority":
			ev := strings.ToLower(expectedValue.Display())
			av := strings.ToLower(actual.Display())
			if ev != av {
				mismatches = append(mismatches, fmt.Sprintf(
					"priority mismatch: expected '%s', got '%s'",
					expectedValue.Display(), actual.Display()))
			}
		case expectedValue.Kind() == toolcall.KindBool:
			if !boolEquivalent(expectedValue, actual) {
				mismatches = append(mismatches, fmt.Sprintf(
					"boolean mismatch for '%s': expected %s, got %s",
					key, expectedValue.Display(), actual.Display()))
			}
		case expectedValue.Kind() == toolcall.KindInt || expectedValue.Kind() == toolcall.KindFloat:
			if !numericEquivalent(expectedValue, actual) {
				mismatches = append(mismatches, fmt.Sprintf(
					"numeric mismatch for '%s': expected %s, got %s",
					key, expectedValue.Display(), actual.Display()))
			}
		default:
			if expectedValue.Display() != actual.Display() {
				mismatches = append(mismatches, fmt.Sprintf(
					"mismatch for '%s': expected '%s', got '%s'",
					key, expectedValue.Display(), actual.Display()))
			}
		}
	}

	if len(mismatches) > 0 {
		return strings.Join(mismatches, "; "), false
	}
	return "", true
}

func isPlaceholder(v toolcall.Value) bool {
	s, ok := v.AsString()
	return ok && strings.HasPrefix(s, "$CALL_")
}

// boolEquivalent accepts a literal boolean or its case-insensitive
// string form on the actual side.
func boolEquivalent(expected, actual toolcall.Value) bool {
	want, _ := expected.AsBool()
	if got, ok := actual.AsBool(); ok {
		return got == want
	}
	if s, ok := actual.AsString(); ok {
		lower := strings.ToLower(s)
		if lower != "true" && lower != "false" {
			return false
		}
		return lower == strconv.FormatBool(want)
	}
	return false
}

// numericEquivalent compares after coercing both sides to floating
// point, parsing numeric strings on the actual side.
func numericEquivalent(expected, actual toolcall.Value) bool {
	want, _ := expected.AsFloat()
	if got, ok := actual.AsFloat(); ok {
		return got == want
	}
	if s, ok := actual.AsString(); ok {
		got, err := strconv.ParseFloat(s, 64)
		return err == nil && got == want
	}
	return false
}

func sortedExpectedKeys(m map[string]toolcall.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
