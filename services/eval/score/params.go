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
	"strings"
	"time"

	"github.com/AleutianAI/AleutianBench/services/eval/scenario"
	"github.com/AleutianAI/AleutianBench/services/eval/toolcall"
)

// =============================================================================
// Parameter Extraction Accuracy
// =============================================================================

// ParamScores reports how faithfully a model pulled argument values
// out of the natural-language prompt. Only the first create_todo call
// is judged; extraction fidelity is a creation-time concern.
type ParamScores struct {
	TitleAccuracy        float64 `json:"title_accuracy"`
	PriorityAccuracy     float64 `json:"priority_accuracy"`
	DateAccuracy         float64 `json:"date_accuracy"`
	SemanticAccuracy     float64 `json:"semantic_accuracy"`
	CompletenessScore    float64 `json:"completeness_score"`
	AppropriatenessScore float64 `json:"appropriateness_score"`
}

// reasonableParams are keys a model may emit without being counted
// as hallucinated even when the fixture does not expect them.
var reasonableParams = map[string]bool{
	"title": true, "notes": true, "scheduledFor": true, "priority": true,
}

// EvaluateParams scores the first create_todo call in calls against
// the scenario's flat expected-parameter declarations.
//
// A scenario without expectations scores appropriateness 1.0 and
// everything else 0.0, matching the neutral baseline the aggregator
// expects. SemanticAccuracy averages only the positive individual
// scores, so an absent expectation never drags the mean down.
func EvaluateParams(calls []toolcall.Call, s *scenario.Scenario) ParamScores {
	scores := ParamScores{AppropriatenessScore: 1.0}

	expected := flatExpectations(s)
	if len(expected) == 0 {
		return scores
	}

	var create *toolcall.Call
	for i := range calls {
		if calls[i].Tool == toolcall.ToolCreateTodo {
			create = &calls[i]
			break
		}
	}
	if create == nil {
		return scores
	}
	actual := create.Parameters

	if expTitle, hasExp := stringExpectation(expected, "title"); hasExp {
		if actTitle, hasAct := stringParam(actual, "title"); hasAct {
			scores.TitleAccuracy = titleSimilarity(expTitle, actTitle)
		}
	}

	if expPriority, hasExp := stringExpectation(expected, "priority"); hasExp {
		actPriority, hasAct := stringParam(actual, "priority")
		if !hasAct {
			actPriority = "medium" // The collaborator's default
		}
		scores.PriorityAccuracy = priorityAccuracy(expPriority, actPriority)
	}

	if expDate, hasExp := expected["scheduledFor"]; hasExp {
		scores.DateAccuracy = dateAccuracy(expDate, actual["scheduledFor"])
	}

	if len(expected) > 0 {
		overlap := 0
		for key := range expected {
			if _, present := actual[key]; present {
				overlap++
			}
		}
		scores.CompletenessScore = float64(overlap) / float64(len(expected))
	}

	hallucinated := 0
	for key := range actual {
		if _, isExpected := expected[key]; !isExpected && !reasonableParams[key] {
			hallucinated++
		}
	}
	if hallucinated > 0 {
		scores.AppropriatenessScore = maxf(0.0, 1.0-float64(hallucinated)*0.2)
	}

	var positive []float64
	for _, v := range []float64{scores.TitleAccuracy, scores.PriorityAccuracy, scores.DateAccuracy} {
		if v > 0 {
			positive = append(positive, v)
		}
	}
	if len(positive) > 0 {
		sum := 0.0
		for _, v := range positive {
			sum += v
		}
		scores.SemanticAccuracy = sum / float64(len(positive))
	}

	return scores
}

// flatExpectations returns the scenario's expected parameters when
// they apply to create_todo.
func flatExpectations(s *scenario.Scenario) map[string]toolcall.Value {
	if s == nil || s.ExpectedParameters == nil {
		return nil
	}
	if params, ok := s.ExpectedParameters.ForTool(toolcall.ToolCreateTodo, s.Allowlist()); ok {
		return params
	}
	// A flat declaration on a create-focused scenario still applies
	// even when the legacy expected list repeats create_todo.
	if s.ExpectedParameters.Flat != nil {
		for _, tool := range s.Allowlist() {
			if tool == toolcall.ToolCreateTodo {
				return s.ExpectedParameters.Flat
			}
		}
	}
	return nil
}

func stringExpectation(expected map[string]toolcall.Value, key string) (string, bool) {
	v, ok := expected[key]
	if !ok {
		return "", false
	}
	return v.Display(), true
}

func stringParam(params map[string]toolcall.Value, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, isStr := v.AsString()
	return s, isStr
}

// =============================================================================
// Title Similarity Ladder
// =============================================================================

// synonymGroups pair action words with object words; a title that
// matches a group on both axes is a reasonable paraphrase.
var synonymGroups = []struct {
	actions []string
	objects []string
}{
	{[]string{"buy", "purchase", "get"}, []string{"groceries", "grocery", "food", "shopping"}},
	{[]string{"call", "phone", "contact"}, []string{"mom", "mother", "parent"}},
	{[]string{"meeting", "meet"}, []string{"client", "customer"}},
	{[]string{"submit", "send", "deliver"}, []string{"report", "document"}},
	{[]string{"task", "todo", "item"}, []string{"reminder", "note"}},
}

// titleSimilarity walks the credit ladder: exact match, substring
// containment, bucketed Jaccard word overlap, then synonym pairs.
func titleSimilarity(expected, actual string) float64 {
	exp := strings.ToLower(strings.TrimSpace(expected))
	act := strings.ToLower(strings.TrimSpace(actual))

	if exp == act {
		return 1.0
	}
	if strings.Contains(act, exp) || strings.Contains(exp, act) {
		return 0.8
	}

	expWords := wordSet(exp)
	actWords := wordSet(act)
	if len(expWords) > 0 && len(actWords) > 0 {
		overlap := 0
		for w := range expWords {
			if actWords[w] {
				overlap++
			}
		}
		union := len(expWords) + len(actWords) - overlap
		jaccard := 0.0
		if union > 0 {
			jaccard = float64(overlap) / float64(union)
		}
		switch {
		case jaccard >= 0.6:
			return 0.7
		case jaccard >= 0.4:
			return 0.5
		case jaccard >= 0.2:
			return 0.3
		}
	}

	for _, group := range synonymGroups {
		expAction := containsAny(exp, group.actions)
		actAction := containsAny(act, group.actions)
		expObject := containsAny(exp, group.objects)
		actObject := containsAny(act, group.objects)

		if expAction && actAction && expObject && actObject {
			return 0.6
		}
		if (expAction && actAction) || (expObject && actObject) {
			return 0.4
		}
	}

	return 0.0
}

func wordSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// =============================================================================
// Priority and Date Accuracy
// =============================================================================

var priorityOrdinal = map[string]int{"low": 1, "medium": 2, "high": 3}

// priorityAccuracy gives full credit for a match (with "normal"
// accepted as medium) and half credit for being one ordinal level
// off.
func priorityAccuracy(expected, actual string) float64 {
	exp := strings.ToLower(expected)
	act := strings.ToLower(actual)

	if exp == act {
		return 1.0
	}
	if exp == "medium" && (act == "medium" || act == "normal") {
		return 1.0
	}

	expVal, expOK := priorityOrdinal[exp]
	if !expOK {
		expVal = 2
	}
	actVal, actOK := priorityOrdinal[act]
	if !actOK {
		actVal = 2
	}

	switch absInt(expVal - actVal) {
	case 0:
		return 1.0
	case 1:
		return 0.5
	default:
		return 0.0
	}
}

// dateAccuracy compares scheduled dates, normalizing "today" and
// "tomorrow" against the anchor date and decaying credit with the
// day difference.
func dateAccuracy(expected, actual toolcall.Value) float64 {
	if expected.IsNull() && actual.IsNull() {
		return 1.0
	}
	exp, expIsStr := expected.AsString()
	act, actIsStr := actual.AsString()
	if !expIsStr || !actIsStr {
		return 0.0
	}

	if exp == act {
		return 1.0
	}

	expNorm := normalizeAnchorDate(exp)
	actNorm := normalizeAnchorDate(act)
	if expNorm == actNorm {
		return 1.0
	}

	expDate, expErr := time.Parse("2006-01-02", expNorm)
	actDate, actErr := time.Parse("2006-01-02", actNorm)
	if expErr != nil || actErr != nil {
		return 0.0
	}

	diffDays := absInt(int(expDate.Sub(actDate).Hours() / 24))
	switch {
	case diffDays == 0:
		return 1.0
	case diffDays == 1:
		return 0.7
	case diffDays <= 3:
		return 0.5
	default:
		return 0.0
	}
}

func normalizeAnchorDate(s string) string {
	switch strings.ToLower(s) {
	case "today":
		return scenario.AnchorDate()
	case "tomorrow":
		return scenario.AnchorTomorrow()
	default:
		return s
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
