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
	"testing"
)

// =============================================================================
// Schema Validation Tests
// =============================================================================

func TestValidateParams(t *testing.T) {
	tests := []struct {
		name     string
		tool     string
		params   map[string]Value
		wantErrs []string
	}{
		{
			name:     "valid create",
			tool:     ToolCreateTodo,
			params:   map[string]Value{"title": String("x"), "priority": String("low")},
			wantErrs: nil,
		},
		{
			name:     "missing required title",
			tool:     ToolCreateTodo,
			params:   map[string]Value{"notes": String("n")},
			wantErrs: []string{"Missing required parameter: title"},
		},
		{
			name:     "unknown parameter",
			tool:     ToolCreateTodo,
			params:   map[string]Value{"title": String("x"), "color": String("red")},
			wantErrs: []string{"Unknown parameter: color"},
		},
		{
			name:     "id accepts int",
			tool:     ToolGetTodo,
			params:   map[string]Value{"id": Int(5)},
			wantErrs: nil,
		},
		{
			name:     "id accepts string",
			tool:     ToolGetTodo,
			params:   map[string]Value{"id": String("$CALL_1.id")},
			wantErrs: nil,
		},
		{
			name:     "id rejects bool",
			tool:     ToolGetTodo,
			params:   map[string]Value{"id": Bool(true)},
			wantErrs: []string{"Parameter 'id' has invalid type, expected int or string, got bool"},
		},
		{
			name:     "completed must be bool",
			tool:     ToolListTodos,
			params:   map[string]Value{"completed": String("true")},
			wantErrs: []string{"Parameter 'completed' has invalid type, expected bool, got string"},
		},
		{
			name:     "null allowed for optional scheduledFor",
			tool:     ToolCreateTodo,
			params:   map[string]Value{"title": String("x"), "scheduledFor": Null()},
			wantErrs: nil,
		},
		{
			name:     "null allowed for optional notes",
			tool:     ToolCreateTodo,
			params:   map[string]Value{"title": String("x"), "notes": Null()},
			wantErrs: nil,
		},
		{
			name:     "null rejected for required title",
			tool:     ToolCreateTodo,
			params:   map[string]Value{"title": Null()},
			wantErrs: []string{"Parameter 'title' has invalid type, expected string, got null"},
		},
		{
			name:     "unknown tool",
			tool:     "fly_to_moon",
			params:   map[string]Value{},
			wantErrs: []string{"No validation schema for tool: fly_to_moon"},
		},
		{
			name: "update accepts full set",
			tool: ToolUpdateTodo,
			params: map[string]Value{
				"id": Int(2), "title": String("t"), "completed": Bool(true),
				"scheduledFor": Null(), "priority": String("high"),
			},
			wantErrs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateParams(tt.tool, tt.params)
			if len(errs) != len(tt.wantErrs) {
				t.Fatalf("ValidateParams() = %v, want %v", errs, tt.wantErrs)
			}
			for i, want := range tt.wantErrs {
				if errs[i] != want {
					t.Errorf("error[%d] = %q, want %q", i, errs[i], want)
				}
			}
		})
	}
}

func TestRequiredParams(t *testing.T) {
	tests := []struct {
		tool string
		want []string
	}{
		{ToolCreateTodo, []string{"title"}},
		{ToolGetTodo, []string{"id"}},
		{ToolUpdateTodo, []string{"id"}},
		{ToolDeleteTodo, []string{"id"}},
		{ToolListTodos, []string{}},
		{ToolSearchTodos, []string{"query"}},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			got := RequiredParams(tt.tool)
			if len(got) != len(tt.want) {
				t.Fatalf("RequiredParams(%s) = %v, want %v", tt.tool, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("RequiredParams(%s)[%d] = %q, want %q", tt.tool, i, got[i], tt.want[i])
				}
			}
		})
	}
	if RequiredParams("unknown") != nil {
		t.Error("RequiredParams(unknown) should be nil")
	}
}

func TestIsValidTool(t *testing.T) {
	for tool := range Schemas {
		if !IsValidTool(tool) {
			t.Errorf("IsValidTool(%s) = false", tool)
		}
	}
	if IsValidTool("create_todos") {
		t.Error("near-miss tool name should be invalid")
	}
}

// =============================================================================
// Formatter Tests
// =============================================================================

func TestFormatCall(t *testing.T) {
	tests := []struct {
		name   string
		tool   string
		params map[string]Value
		want   string
	}{
		{
			name:   "schema ordering",
			tool:   ToolCreateTodo,
			params: map[string]Value{"priority": String("high"), "title": String("Buy milk")},
			want:   `create_todo(title="Buy milk", priority="high")`,
		},
		{
			name:   "literal spellings",
			tool:   ToolUpdateTodo,
			params: map[string]Value{"id": Int(3), "completed": Bool(true), "scheduledFor": Null()},
			want:   `update_todo(id=3, scheduledFor=None, completed=True)`,
		},
		{
			name:   "escaped quotes",
			tool:   ToolSearchTodos,
			params: map[string]Value{"query": String(`say "hi"`)},
			want:   `search_todos(query="say \"hi\"")`,
		},
		{
			name:   "no parameters",
			tool:   ToolListTodos,
			params: map[string]Value{},
			want:   `list_todos()`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCall(tt.tool, tt.params); got != tt.want {
				t.Errorf("FormatCall() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatCall_RoundTrip(t *testing.T) {
	params := map[string]Value{
		"title":        String("Round trip"),
		"priority":     String("low"),
		"scheduledFor": String("2025-08-07"),
	}
	text := FormatCall(ToolCreateTodo, params)
	calls := FunctionParser{}.Parse(text)
	if len(calls) != 1 {
		t.Fatalf("round-trip parse produced %d calls", len(calls))
	}
	if !calls[0].IsValid {
		t.Fatalf("round-trip call invalid: %v / %v",
			calls[0].ParsingErrors, calls[0].ValidationErrors)
	}
	for key, want := range params {
		got := calls[0].Parameters[key]
		if !got.Equal(want) {
			t.Errorf("round-trip %s = %v, want %v", key, got, want)
		}
	}
}

// =============================================================================
// Value Tests
// =============================================================================

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"int equals float", Int(3), Float(3.0), true},
		{"string equality", String("a"), String("a"), true},
		{"string inequality", String("a"), String("b"), false},
		{"null equals null", Null(), Null(), true},
		{"bool mismatch", Bool(true), Bool(false), false},
		{"kind mismatch", String("3"), Int(3), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValue_JSONRoundTrip(t *testing.T) {
	call := Call{
		Tool: ToolUpdateTodo,
		Parameters: map[string]Value{
			"id":           Int(7),
			"completed":    Bool(true),
			"scheduledFor": Null(),
			"title":        String("quoted"),
		},
	}
	var decoded Call
	if err := jsonRoundTrip(call, &decoded); err != nil {
		t.Fatalf("round trip error = %v", err)
	}
	for key, want := range call.Parameters {
		if got := decoded.Parameters[key]; !got.Equal(want) {
			t.Errorf("decoded %s = %v, want %v", key, got, want)
		}
	}
}
