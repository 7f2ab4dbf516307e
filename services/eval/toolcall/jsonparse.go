// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package toolcall

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// JSON-Array Parser
// =============================================================================

// JSONParser recovers calls from a JSON array of
// {"tool": ..., "parameters": {...}} objects.
//
// Recovery is progressively more tolerant: direct parse of the
// trimmed text, then the first fenced block, then the first balanced
// bracketed region found by depth counting. If no array is recovered
// the result is empty rather than partial. Mis-shaped elements are
// skipped silently, so parsing_errors stays empty for every call this
// parser emits.
type JSONParser struct{}

// Parse implements the Parser interface.
func (JSONParser) Parse(raw string) []Call {
	data, ok := recoverArray(strings.TrimSpace(raw))
	if !ok {
		return nil
	}

	var calls []Call
	for _, item := range data {
		obj, isObj := item.(map[string]any)
		if !isObj {
			continue
		}
		tool, isStr := obj["tool"].(string)
		if !isStr || !IsValidTool(tool) {
			continue
		}
		params := map[string]Value{}
		if rawParams, isMap := obj["parameters"].(map[string]any); isMap {
			for key, rawValue := range rawParams {
				value, converted := FromJSON(rawValue)
				if !converted {
					// Nested structures have no scalar representation;
					// collapse to null so type validation flags them.
					value = Null()
				}
				if s, isString := value.AsString(); isString && key == "priority" {
					value = String(strings.ToLower(s))
				}
				params[key] = value
			}
		}
		calls = append(calls, newCall(tool, params, nil))
	}
	return calls
}

// recoverArray attempts the three recovery strategies in order.
func recoverArray(raw string) ([]any, bool) {
	if data, ok := tryParseArray(raw); ok {
		return data, true
	}

	candidate := raw
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		candidate = m[1]
	}

	snippet, found := balancedBracketRegion(candidate)
	if !found {
		return nil, false
	}
	return tryParseArray(snippet)
}

func tryParseArray(s string) ([]any, bool) {
	var data any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil, false
	}
	list, isList := data.([]any)
	if !isList {
		return nil, false
	}
	return list, true
}

// balancedBracketRegion returns the first `[...]` region with
// balanced bracket depth. Depth counting deliberately ignores quote
// state: real model output nests arrays and objects but rarely embeds
// raw brackets in strings, and a failed parse of the region simply
// yields an empty result.
func balancedBracketRegion(s string) (string, bool) {
	start := strings.Index(s, "[")
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
