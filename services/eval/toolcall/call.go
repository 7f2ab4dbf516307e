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

import "sort"

// Call is one recovered tool invocation.
//
// A Call is created by a parser and immutable thereafter. Parsing and
// validation problems are attached as descriptive strings rather than
// raised, so an invalid call stays visible to scoring.
type Call struct {
	// Tool is one of the six operation names. Candidates outside the
	// vocabulary are discarded by the parsers before a Call exists.
	Tool string `json:"tool"`

	// Parameters maps argument names to typed literal values.
	Parameters map[string]Value `json:"parameters"`

	// ParsingErrors lists syntax-level problems (unsupported argument
	// forms, literal evaluation failures).
	ParsingErrors []string `json:"parsing_errors"`

	// ValidationErrors lists schema violations from ValidateParams.
	ValidationErrors []string `json:"validation_errors"`

	// IsValid is derived: no parsing errors and no validation errors.
	IsValid bool `json:"is_valid"`
}

// newCall assembles a Call, running schema validation and deriving
// IsValid.
func newCall(tool string, params map[string]Value, parsingErrors []string) Call {
	if params == nil {
		params = map[string]Value{}
	}
	validationErrors := ValidateParams(tool, params)
	return Call{
		Tool:             tool,
		Parameters:       params,
		ParsingErrors:    parsingErrors,
		ValidationErrors: validationErrors,
		IsValid:          len(parsingErrors) == 0 && len(validationErrors) == 0,
	}
}

// NewCall builds a call outside the parsers, for setup seeding and
// gold-set synthesis. Schema validation still runs.
func NewCall(tool string, params map[string]Value) Call {
	return newCall(tool, params, nil)
}

// Param returns the named parameter value. ok is false when absent.
func (c Call) Param(name string) (Value, bool) {
	v, ok := c.Parameters[name]
	return v, ok
}

// Parser converts raw model text into candidate calls. Both parsers
// are stateless and safe for concurrent use.
type Parser interface {
	Parse(raw string) []Call
}

// ToolNames projects a call list to its tool names, in order.
func ToolNames(calls []Call) []string {
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, c.Tool)
	}
	return names
}

// ValidOnly filters a call list down to the calls with no parsing or
// validation errors.
func ValidOnly(calls []Call) []Call {
	var out []Call
	for _, c := range calls {
		if c.IsValid {
			out = append(out, c)
		}
	}
	return out
}

// sortedKeys returns the map keys in lexical order so iteration is
// deterministic across runs.
func sortedKeys(params map[string]Value) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
