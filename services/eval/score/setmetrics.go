// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package score computes the per-run quality metrics: set-based
// precision/recall/F1 over tool names, parameter-extraction accuracy
// on create calls, and workflow-planning heuristics for multi-step
// scenarios.
//
// All scorers are pure functions of their inputs; nothing here talks
// to a model or mutates shared state.
package score

import "strings"

// =============================================================================
// Set-Based Precision / Recall / F1
// =============================================================================

// PRF1 is one precision/recall/F1 triple.
type PRF1 struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// SetPRF1 scores predicted tool names against a gold list, reduced
// to sets after trimming and lowercasing.
//
// Boundary behavior is fixed: both sets empty is a vacuous match
// (all 1.0); an empty prediction against a non-empty gold set is all
// 0.0. Duplicates carry no weight, so repeating a correct tool never
// changes the score.
func SetPRF1(predicted, gold []string) PRF1 {
	predSet := normalizeSet(predicted)
	goldSet := normalizeSet(gold)

	if len(predSet) == 0 && len(goldSet) == 0 {
		return PRF1{Precision: 1.0, Recall: 1.0, F1: 1.0}
	}
	if len(predSet) == 0 || len(goldSet) == 0 {
		return PRF1{}
	}

	overlap := 0
	for name := range predSet {
		if goldSet[name] {
			overlap++
		}
	}

	precision := float64(overlap) / float64(len(predSet))
	recall := float64(overlap) / float64(len(goldSet))
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return PRF1{Precision: precision, Recall: recall, F1: f1}
}

func normalizeSet(names []string) map[string]bool {
	set := map[string]bool{}
	for _, name := range names {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized != "" {
			set[normalized] = true
		}
	}
	return set
}
