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
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// Function-Call Parser
// =============================================================================

var (
	fenceRe     = regexp.MustCompile("(?s)```[a-zA-Z0-9_]*\n(.*?)\n```")
	callStartRe = regexp.MustCompile(`^(\w+)\s*\(`)
)

// FunctionParser recovers calls written in function syntax, e.g.
//
//	create_todo(title="Buy milk", priority="high")
//
// Model text may wrap calls in prose and code fences, and a single
// call may span several lines. The parser narrows to fenced blocks
// when present, reconstructs multi-line calls by paren balancing,
// and evaluates keyword arguments as literals.
type FunctionParser struct{}

// Parse implements the Parser interface.
func (FunctionParser) Parse(raw string) []Call {
	var calls []Call
	for _, block := range narrowToBlocks(raw) {
		for _, candidate := range reconstructCalls(block) {
			m := callStartRe.FindStringSubmatch(candidate)
			if m == nil {
				continue
			}
			tool := m[1]
			if !IsValidTool(tool) {
				continue
			}
			params, parsingErrors := parseArgList(candidate)
			calls = append(calls, newCall(tool, params, parsingErrors))
		}
	}
	return calls
}

// narrowToBlocks returns the fenced-block contents when any exist,
// otherwise the whole text as a single block.
func narrowToBlocks(raw string) []string {
	matches := fenceRe.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return []string{raw}
	}
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, m[1])
	}
	return blocks
}

// reconstructCalls reassembles call candidates from a block, joining
// lines of a multi-line call until parens balance.
//
// The line consumer is a two-state machine: Idle waits for a line
// opening a call, Accumulating gathers lines while the open-paren
// depth stays positive. Candidates that never balance are dropped.
// When no candidate is reconstructed, raw lines are returned so
// single-line calls embedded in prose still parse.
func reconstructCalls(block string) []string {
	type state int
	const (
		idle state = iota
		accumulating
	)

	var (
		candidates []string
		current    []string
		depth      int
		st         = idle
	)

	for _, rawLine := range strings.Split(block, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		switch st {
		case idle:
			if !callStartRe.MatchString(line) {
				continue
			}
			depth = strings.Count(line, "(") - strings.Count(line, ")")
			if depth == 0 {
				candidates = append(candidates, line)
				continue
			}
			current = []string{line}
			st = accumulating
		case accumulating:
			current = append(current, line)
			depth += strings.Count(line, "(") - strings.Count(line, ")")
			if depth <= 0 {
				candidates = append(candidates, strings.Join(current, " "))
				current = nil
				st = idle
			}
		}
	}

	if len(candidates) > 0 {
		return candidates
	}
	lines := make([]string, 0)
	for _, l := range strings.Split(block, "\n") {
		lines = append(lines, strings.TrimSpace(l))
	}
	return lines
}

// parseArgList extracts keyword arguments from a reconstructed call.
//
// Only `key=value` arguments with literal values are supported.
// Positional arguments and unpacking forms each attach one parsing
// error; a failed literal evaluation attaches an error for that key
// and parsing continues with the remaining arguments.
func parseArgList(candidate string) (map[string]Value, []string) {
	params := map[string]Value{}
	var errs []string

	inner, err := argListBody(candidate)
	if err != nil {
		return params, []string{fmt.Sprintf("Malformed argument list: %v", err)}
	}

	for _, arg := range splitTopLevel(inner) {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		if strings.HasPrefix(arg, "**") || strings.HasPrefix(arg, "*") {
			errs = append(errs, "Unsupported argument form (kwargs expansion)")
			continue
		}
		eq := topLevelAssignIndex(arg)
		if eq < 0 {
			errs = append(errs, fmt.Sprintf("Unsupported positional argument: %s", arg))
			continue
		}
		key := strings.TrimSpace(arg[:eq])
		if !isIdentifier(key) {
			errs = append(errs, fmt.Sprintf("Invalid parameter name: %s", key))
			continue
		}
		value, evalErr := evalLiteral(strings.TrimSpace(arg[eq+1:]))
		if evalErr != nil {
			errs = append(errs, fmt.Sprintf("Could not evaluate parameter '%s': %v", key, evalErr))
			continue
		}
		// Priority values are compared case-insensitively everywhere
		// downstream; normalize at the boundary.
		if s, ok := value.AsString(); ok && key == "priority" {
			value = String(strings.ToLower(s))
		}
		params[key] = value
	}

	return params, errs
}

// argListBody returns the text between the call's outer parens.
func argListBody(candidate string) (string, error) {
	open := strings.Index(candidate, "(")
	if open < 0 {
		return "", fmt.Errorf("no opening parenthesis")
	}
	depth := 0
	var quote byte
	for i := open; i < len(candidate); i++ {
		ch := candidate[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return candidate[open+1 : i], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced parentheses")
}

// splitTopLevel splits on commas outside quotes and nesting.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// topLevelAssignIndex finds the `=` of a keyword argument, ignoring
// `==` comparisons and anything inside quotes.
func topLevelAssignIndex(arg string) int {
	var quote byte
	for i := 0; i < len(arg); i++ {
		ch := arg[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '=':
			if i+1 < len(arg) && arg[i+1] == '=' {
				i++
				continue
			}
			if i > 0 && (arg[i-1] == '!' || arg[i-1] == '<' || arg[i-1] == '>') {
				continue
			}
			return i
		}
	}
	return -1
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		alpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		digit := r >= '0' && r <= '9'
		if !alpha && !(digit && i > 0) {
			return false
		}
	}
	return true
}

// =============================================================================
// Literal Evaluation
// =============================================================================

// evalLiteral evaluates one argument value. Supported literals are
// quoted strings (single or double, with backslash escapes), booleans
// and null in Python or JSON spelling, and numbers.
func evalLiteral(s string) (Value, error) {
	if s == "" {
		return Value{}, fmt.Errorf("empty value")
	}

	if s[0] == '"' || s[0] == '\'' {
		return unquoteString(s)
	}

	switch s {
	case "True", "true":
		return Bool(true), nil
	case "False", "false":
		return Bool(false), nil
	case "None", "null":
		return Null(), nil
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f), nil
	}

	return Value{}, fmt.Errorf("not a recognized literal: %s", s)
}

// unquoteString evaluates a quoted string literal with the common
// backslash escapes.
func unquoteString(s string) (Value, error) {
	quote := s[0]
	if len(s) < 2 || s[len(s)-1] != quote {
		return Value{}, fmt.Errorf("unterminated string: %s", s)
	}
	body := s[1 : len(s)-1]

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch == quote {
			return Value{}, fmt.Errorf("unescaped quote in string: %s", s)
		}
		if ch != '\\' {
			b.WriteByte(ch)
			continue
		}
		i++
		if i >= len(body) {
			return Value{}, fmt.Errorf("dangling escape in string: %s", s)
		}
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\', '\'', '"':
			b.WriteByte(body[i])
		default:
			// Unknown escapes pass through verbatim, matching how
			// lenient model output tends to quote.
			b.WriteByte('\\')
			b.WriteByte(body[i])
		}
	}
	return String(b.String()), nil
}
