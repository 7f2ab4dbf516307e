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
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Call Formatting
// =============================================================================

// FormatCall renders a call in function syntax, the shape the
// executor prompt and the execution-only synthesis path feed back to
// the function parser.
//
// Booleans render as True/False, null as None, numbers bare, and
// strings quoted with inner quotes escaped. Parameters are ordered by
// the tool's schema (required first, then optional) with any extra
// keys appended in lexical order, so output is deterministic.
func FormatCall(tool string, params map[string]Value) string {
	var args []string
	for _, key := range formatOrder(tool, params) {
		args = append(args, fmt.Sprintf("%s=%s", key, formatLiteral(params[key])))
	}
	return fmt.Sprintf("%s(%s)", tool, strings.Join(args, ", "))
}

// FormatCalls renders one call per line.
func FormatCalls(calls []Call) string {
	lines := make([]string, 0, len(calls))
	for _, c := range calls {
		lines = append(lines, FormatCall(c.Tool, c.Parameters))
	}
	return strings.Join(lines, "\n")
}

func formatLiteral(v Value) string {
	switch v.Kind() {
	case KindBool:
		b, _ := v.AsBool()
		if b {
			return "True"
		}
		return "False"
	case KindNull:
		return "None"
	case KindInt:
		i, _ := v.AsInt()
		return strconv.FormatInt(i, 10)
	case KindFloat:
		f, _ := v.AsFloat()
		return strconv.FormatFloat(f, 'g', -1, 64)
	default:
		s, _ := v.AsString()
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
}

// formatOrder returns the present parameter keys in schema order,
// then extras lexically.
func formatOrder(tool string, params map[string]Value) []string {
	var order []string
	seen := map[string]bool{}
	if schema, ok := Schemas[tool]; ok {
		for _, key := range append(append([]string{}, schema.Required...), schema.Optional...) {
			if _, present := params[key]; present && !seen[key] {
				order = append(order, key)
				seen[key] = true
			}
		}
	}
	for _, key := range sortedKeys(params) {
		if !seen[key] {
			order = append(order, key)
		}
	}
	return order
}
