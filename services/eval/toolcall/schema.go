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

import "fmt"

// =============================================================================
// Tool Vocabulary
// =============================================================================

// The six todo-API operations. The parsers, gates, and execution
// engine all key off this closed set; changing it requires updating
// every schema table below in lockstep with the collaborator contract.
const (
	ToolCreateTodo  = "create_todo"
	ToolListTodos   = "list_todos"
	ToolGetTodo     = "get_todo"
	ToolUpdateTodo  = "update_todo"
	ToolDeleteTodo  = "delete_todo"
	ToolSearchTodos = "search_todos"
)

// ValidTools is the membership set for the tool vocabulary.
var ValidTools = map[string]bool{
	ToolCreateTodo:  true,
	ToolListTodos:   true,
	ToolGetTodo:     true,
	ToolUpdateTodo:  true,
	ToolDeleteTodo:  true,
	ToolSearchTodos: true,
}

// IsValidTool reports whether name is one of the six operations.
func IsValidTool(name string) bool { return ValidTools[name] }

// =============================================================================
// Parameter Schemas
// =============================================================================

// ParamType constrains the kinds a parameter value may take.
type ParamType int

const (
	// TypeString accepts string values. Null is additionally accepted
	// when the parameter is optional.
	TypeString ParamType = iota

	// TypeStringOrNull accepts string or null (date fields).
	TypeStringOrNull

	// TypeIntOrString accepts int or string (id fields).
	TypeIntOrString

	// TypeBool accepts boolean values only.
	TypeBool
)

// describe returns the human-readable form used in validation messages.
func (t ParamType) describe() string {
	switch t {
	case TypeString:
		return "string"
	case TypeStringOrNull:
		return "string or null"
	case TypeIntOrString:
		return "int or string"
	case TypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// allows reports whether the type admits a value of the given kind.
// optional widens TypeString to also accept null.
func (t ParamType) allows(kind Kind, optional bool) bool {
	switch t {
	case TypeString:
		if kind == KindString {
			return true
		}
		return optional && kind == KindNull
	case TypeStringOrNull:
		return kind == KindString || kind == KindNull
	case TypeIntOrString:
		return kind == KindInt || kind == KindString
	case TypeBool:
		return kind == KindBool
	default:
		return false
	}
}

// Schema is the fixed parameter contract for one tool.
type Schema struct {
	Required []string
	Optional []string
	Types    map[string]ParamType
}

// Schemas maps each tool to its parameter contract. These mirror the
// collaborator's tool definitions and are the single source of truth
// for validation in both parsers.
var Schemas = map[string]Schema{
	ToolCreateTodo: {
		Required: []string{"title"},
		Optional: []string{"notes", "scheduledFor", "priority"},
		Types: map[string]ParamType{
			"title":        TypeString,
			"notes":        TypeString,
			"scheduledFor": TypeStringOrNull,
			"priority":     TypeString,
		},
	},
	ToolListTodos: {
		Required: []string{},
		Optional: []string{"completed", "priority", "scheduledFrom", "scheduledTo"},
		Types: map[string]ParamType{
			"completed":     TypeBool,
			"priority":      TypeString,
			"scheduledFrom": TypeString,
			"scheduledTo":   TypeString,
		},
	},
	ToolSearchTodos: {
		Required: []string{"query"},
		Optional: []string{},
		Types: map[string]ParamType{
			"query": TypeString,
		},
	},
	ToolGetTodo: {
		Required: []string{"id"},
		Optional: []string{},
		Types: map[string]ParamType{
			"id": TypeIntOrString,
		},
	},
	ToolUpdateTodo: {
		Required: []string{"id"},
		Optional: []string{"title", "notes", "scheduledFor", "priority", "completed"},
		Types: map[string]ParamType{
			"id":           TypeIntOrString,
			"title":        TypeString,
			"notes":        TypeString,
			"scheduledFor": TypeStringOrNull,
			"priority":     TypeString,
			"completed":    TypeBool,
		},
	},
	ToolDeleteTodo: {
		Required: []string{"id"},
		Optional: []string{},
		Types: map[string]ParamType{
			"id": TypeIntOrString,
		},
	},
}

// RequiredParams returns the required parameter names for a tool, or
// nil for unknown tools. The returned slice must not be mutated.
func RequiredParams(tool string) []string {
	schema, ok := Schemas[tool]
	if !ok {
		return nil
	}
	return schema.Required
}

// =============================================================================
// Validation
// =============================================================================

// ValidateParams checks params against the tool's schema and returns
// descriptive error strings. Errors are data: the call stays
// structurally present and downstream stages decide what to do with
// an invalid call.
func ValidateParams(tool string, params map[string]Value) []string {
	schema, ok := Schemas[tool]
	if !ok {
		return []string{fmt.Sprintf("No validation schema for tool: %s", tool)}
	}

	var errs []string

	for _, required := range schema.Required {
		if _, present := params[required]; !present {
			errs = append(errs, fmt.Sprintf("Missing required parameter: %s", required))
		}
	}

	for _, name := range sortedKeys(params) {
		value := params[name]
		if !contains(schema.Required, name) && !contains(schema.Optional, name) {
			errs = append(errs, fmt.Sprintf("Unknown parameter: %s", name))
			continue
		}
		paramType, typed := schema.Types[name]
		if !typed {
			continue
		}
		optional := contains(schema.Optional, name)
		if !paramType.allows(value.Kind(), optional) {
			errs = append(errs, fmt.Sprintf(
				"Parameter '%s' has invalid type, expected %s, got %s",
				name, paramType.describe(), value.Kind()))
		}
	}

	return errs
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}
