// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package score

import (
	"github.com/AleutianAI/AleutianBench/services/eval/scenario"
	"github.com/AleutianAI/AleutianBench/services/eval/toolcall"
)

// =============================================================================
// Workflow Planning Quality
// =============================================================================

// WorkflowScores reports the multi-step planning heuristics for one
// extracted call sequence.
type WorkflowScores struct {
	SequenceLogic       float64 `json:"sequence_logic"`
	DependencyAwareness float64 `json:"dependency_awareness"`
	Efficiency          float64 `json:"efficiency"`
	ContextUsage        float64 `json:"context_usage"`
	ErrorAnticipation   float64 `json:"error_anticipation"`
	Completeness        float64 `json:"workflow_completeness"`
}

// EvaluateWorkflow scores a call sequence against the scenario's
// workflow expectations.
//
// A scenario without expectations is trivially perfect; an empty call
// sequence against real expectations scores zero across the board.
func EvaluateWorkflow(calls []toolcall.Call, s *scenario.Scenario) WorkflowScores {
	if s == nil || s.WorkflowExpectations == nil {
		return WorkflowScores{
			SequenceLogic: 1.0, DependencyAwareness: 1.0, Efficiency: 1.0,
			ContextUsage: 1.0, ErrorAnticipation: 1.0, Completeness: 1.0,
		}
	}
	if len(calls) == 0 {
		return WorkflowScores{}
	}

	exp := s.WorkflowExpectations
	sequence := toolcall.ToolNames(calls)

	minimalSteps := exp.MinimalSteps
	if minimalSteps == 0 {
		minimalSteps = len(sequence)
	}

	return WorkflowScores{
		SequenceLogic:       sequenceLogic(sequence, exp.LogicalOrder),
		DependencyAwareness: dependencyAwareness(calls, exp.Dependencies),
		Efficiency:          efficiency(len(sequence), minimalSteps),
		ContextUsage:        contextUsage(calls, exp.ContextRequirements),
		ErrorAnticipation:   errorAnticipation(sequence, exp.ErrorScenarios),
		Completeness:        completeness(sequence, exp.RequiredOperations),
	}
}

// SequenceAdherence scores an executed tool sequence against an
// ordered gold sequence, with the same rules as the workflow
// sequence-logic heuristic.
func SequenceAdherence(actual, expectedOrder []string) float64 {
	return sequenceLogic(actual, expectedOrder)
}

// sequenceLogic checks whether the expected tools appear in their
// declared relative order, using each tool's first occurrence.
// Exact positional match scores 1.0; correct order with extra steps
// 0.8; otherwise the fraction of adjacent pairs in order. A missing
// expected tool zeroes the score.
func sequenceLogic(actual, expectedOrder []string) float64 {
	if len(expectedOrder) == 0 {
		return 1.0
	}

	positions := make([]int, 0, len(expectedOrder))
	for _, tool := range expectedOrder {
		found := -1
		for i, actualTool := range actual {
			if actualTool == tool {
				found = i
				break
			}
		}
		if found < 0 {
			return 0.0
		}
		positions = append(positions, found)
	}

	ordered := true
	for i := 0; i+1 < len(positions); i++ {
		if positions[i] > positions[i+1] {
			ordered = false
			break
		}
	}

	if ordered {
		exact := true
		for i, p := range positions {
			if p != i {
				exact = false
				break
			}
		}
		if exact {
			return 1.0
		}
		return 0.8
	}

	correctPairs := 0
	totalPairs := len(positions) - 1
	for i := 0; i < totalPairs; i++ {
		if positions[i] <= positions[i+1] {
			correctPairs++
		}
	}
	if totalPairs == 0 {
		return 0.0
	}
	return float64(correctPairs) / float64(totalPairs)
}

// dependencyAwareness averages per-dependency credit: an "order"
// requirement needs the prerequisite's first occurrence before the
// dependent's; "parameter_usage" gives 0.7 for co-occurrence since
// actual value threading is only observable at execution time.
func dependencyAwareness(calls []toolcall.Call, deps []scenario.Dependency) float64 {
	if len(deps) == 0 {
		return 1.0
	}

	total := 0.0
	counted := 0
	for _, dep := range deps {
		requirement := dep.Requirement
		if requirement == "" {
			requirement = "order"
		}
		switch requirement {
		case "order":
			counted++
			prereq := firstIndex(calls, dep.Prerequisite)
			dependent := firstIndex(calls, dep.Dependent)
			if prereq >= 0 && dependent >= 0 && prereq < dependent {
				total += 1.0
			}
		case "parameter_usage":
			counted++
			if firstIndex(calls, dep.Prerequisite) >= 0 && firstIndex(calls, dep.Dependent) >= 0 {
				total += 0.7
			}
		}
	}
	if counted == 0 {
		return 1.0
	}
	return total / float64(counted)
}

// efficiency compares the plan length to the declared minimum:
// exact is perfect, shorter suggests an incomplete plan (0.5), and
// longer decays as minimum/actual.
func efficiency(actualSteps, minimalSteps int) float64 {
	switch {
	case actualSteps == minimalSteps:
		return 1.0
	case actualSteps < minimalSteps:
		return 0.5
	default:
		return maxf(0.0, float64(minimalSteps)/float64(actualSteps))
	}
}

// contextUsage checks whether the target call carries the parameter
// a prior call should have supplied. A positive integer value looks
// like a threaded id and earns full credit; any other present value
// earns 0.7.
func contextUsage(calls []toolcall.Call, reqs []scenario.ContextRequirement) float64 {
	if len(reqs) == 0 {
		return 1.0
	}

	total := 0.0
	for _, req := range reqs {
		sourceIdx := firstIndex(calls, req.Source)
		targetIdx := firstIndex(calls, req.Target)
		if sourceIdx < 0 || targetIdx < 0 {
			continue
		}
		value, present := calls[targetIdx].Param(req.Parameter)
		if !present {
			continue
		}
		if id, isInt := value.AsInt(); isInt && id > 0 {
			total += 1.0
		} else {
			total += 0.7
		}
	}
	return total / float64(len(reqs))
}

// errorAnticipation rewards inspecting state before mutating it:
// a list/get before an update or delete earns full credit, mutating
// blind earns 0.3.
func errorAnticipation(sequence []string, errorScenarios []string) float64 {
	if len(errorScenarios) == 0 {
		return 1.0
	}

	hasInspection := false
	hasUpdate := false
	hasDelete := false
	for _, tool := range sequence {
		switch tool {
		case toolcall.ToolListTodos, toolcall.ToolGetTodo:
			hasInspection = true
		case toolcall.ToolUpdateTodo:
			hasUpdate = true
		case toolcall.ToolDeleteTodo:
			hasDelete = true
		}
	}

	total := 0.0
	for _, name := range errorScenarios {
		switch name {
		case "check_existence_before_update":
			if hasUpdate && hasInspection {
				total += 1.0
			} else if hasUpdate {
				total += 0.3
			}
		case "validate_id_before_delete":
			if hasDelete && hasInspection {
				total += 1.0
			} else if hasDelete {
				total += 0.3
			}
		}
	}
	return total / float64(len(errorScenarios))
}

// completeness is presence over the unique required operations,
// clamped to [0,1].
func completeness(sequence, required []string) float64 {
	if len(required) == 0 {
		return 1.0
	}
	requiredSet := map[string]bool{}
	for _, tool := range required {
		requiredSet[tool] = true
	}
	actualSet := map[string]bool{}
	for _, tool := range sequence {
		actualSet[tool] = true
	}
	hit := 0
	for tool := range requiredSet {
		if actualSet[tool] {
			hit++
		}
	}
	score := float64(hit) / float64(len(requiredSet))
	if score > 1.0 {
		return 1.0
	}
	if score < 0.0 {
		return 0.0
	}
	return score
}

func firstIndex(calls []toolcall.Call, tool string) int {
	for i, c := range calls {
		if c.Tool == tool {
			return i
		}
	}
	return -1
}
