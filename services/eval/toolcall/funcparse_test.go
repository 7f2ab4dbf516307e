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
	"reflect"
	"strings"
	"testing"
)

// =============================================================================
// Function Parser Tests
// =============================================================================

func TestFunctionParser_TwoCalls(t *testing.T) {
	raw := `create_todo(title="Buy milk", priority="high", scheduledFor="2025-08-07")
list_todos(completed=False)`

	calls := FunctionParser{}.Parse(raw)
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}

	first := calls[0]
	if first.Tool != ToolCreateTodo || !first.IsValid {
		t.Errorf("first call = %+v, want valid create_todo", first)
	}
	wantFirst := map[string]Value{
		"title":        String("Buy milk"),
		"priority":     String("high"),
		"scheduledFor": String("2025-08-07"),
	}
	if !reflect.DeepEqual(first.Parameters, wantFirst) {
		t.Errorf("first parameters = %v, want %v", first.Parameters, wantFirst)
	}

	second := calls[1]
	if second.Tool != ToolListTodos || !second.IsValid {
		t.Errorf("second call = %+v, want valid list_todos", second)
	}
	wantSecond := map[string]Value{"completed": Bool(false)}
	if !reflect.DeepEqual(second.Parameters, wantSecond) {
		t.Errorf("second parameters = %v, want %v", second.Parameters, wantSecond)
	}
}

func TestFunctionParser_FencedBlockNarrowing(t *testing.T) {
	raw := "Here is my plan:\n" +
		"list_todos()\n" + // Outside the fence, must be ignored
		"```python\ncreate_todo(title=\"Inside\")\n```\n" +
		"Done."

	calls := FunctionParser{}.Parse(raw)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call from fenced block, got %d", len(calls))
	}
	if calls[0].Tool != ToolCreateTodo {
		t.Errorf("tool = %q, want create_todo", calls[0].Tool)
	}
}

func TestFunctionParser_MultiLineReconstruction(t *testing.T) {
	raw := "```\ncreate_todo(\n    title=\"Split over lines\",\n    priority=\"low\"\n)\n```"

	calls := FunctionParser{}.Parse(raw)
	if len(calls) != 1 {
		t.Fatalf("expected 1 reconstructed call, got %d", len(calls))
	}
	if !calls[0].IsValid {
		t.Fatalf("call invalid: parsing=%v validation=%v",
			calls[0].ParsingErrors, calls[0].ValidationErrors)
	}
	title, _ := calls[0].Parameters["title"].AsString()
	if title != "Split over lines" {
		t.Errorf("title = %q", title)
	}
}

func TestFunctionParser_UnbalancedFragmentDropped(t *testing.T) {
	raw := "```\ncreate_todo(\n    title=\"never closed\"\n```"
	calls := FunctionParser{}.Parse(raw)
	if len(calls) != 0 {
		t.Fatalf("unbalanced fragment should be dropped, got %d calls", len(calls))
	}
}

func TestFunctionParser_InvalidToolDiscarded(t *testing.T) {
	raw := `make_coffee(size="large")
create_todo(title="Real work")`

	calls := FunctionParser{}.Parse(raw)
	if len(calls) != 1 || calls[0].Tool != ToolCreateTodo {
		t.Fatalf("expected only create_todo to survive, got %v", ToolNames(calls))
	}
}

func TestFunctionParser_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantErrSub string
	}{
		{
			name:       "positional argument",
			raw:        `create_todo("Buy milk")`,
			wantErrSub: "positional",
		},
		{
			name:       "kwargs expansion",
			raw:        `create_todo(**extra)`,
			wantErrSub: "kwargs expansion",
		},
		{
			name:       "unevaluable literal",
			raw:        `create_todo(title=undefined_var)`,
			wantErrSub: "Could not evaluate parameter 'title'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := FunctionParser{}.Parse(tt.raw)
			if len(calls) != 1 {
				t.Fatalf("expected 1 call, got %d", len(calls))
			}
			if calls[0].IsValid {
				t.Error("call with parsing errors should not be valid")
			}
			joined := strings.Join(calls[0].ParsingErrors, "; ")
			if !strings.Contains(strings.ToLower(joined), strings.ToLower(tt.wantErrSub)) {
				t.Errorf("parsing errors %q missing %q", joined, tt.wantErrSub)
			}
		})
	}
}

func TestFunctionParser_ErrorDoesNotAbortSiblings(t *testing.T) {
	raw := `create_todo(title=broken)
create_todo(title="fine")`

	calls := FunctionParser{}.Parse(raw)
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].IsValid {
		t.Error("first call should carry a parsing error")
	}
	if !calls[1].IsValid {
		t.Errorf("second call should be valid, got %v", calls[1].ParsingErrors)
	}
}

func TestFunctionParser_PriorityLowercased(t *testing.T) {
	calls := FunctionParser{}.Parse(`create_todo(title="x", priority="HIGH")`)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	priority, _ := calls[0].Parameters["priority"].AsString()
	if priority != "high" {
		t.Errorf("priority = %q, want lowercased", priority)
	}
}

func TestFunctionParser_LiteralKinds(t *testing.T) {
	raw := `update_todo(id=7, completed=True, notes='single quoted', scheduledFor=None)`
	calls := FunctionParser{}.Parse(raw)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	params := calls[0].Parameters
	if id, ok := params["id"].AsInt(); !ok || id != 7 {
		t.Errorf("id = %v", params["id"])
	}
	if b, ok := params["completed"].AsBool(); !ok || !b {
		t.Errorf("completed = %v", params["completed"])
	}
	if s, ok := params["notes"].AsString(); !ok || s != "single quoted" {
		t.Errorf("notes = %v", params["notes"])
	}
	if !params["scheduledFor"].IsNull() {
		t.Errorf("scheduledFor = %v, want null", params["scheduledFor"])
	}
}

func TestFunctionParser_Idempotent(t *testing.T) {
	raw := "```\ncreate_todo(title=\"Once\", priority=\"low\")\ndelete_todo(id=3)\n```"
	first := FunctionParser{}.Parse(raw)
	second := FunctionParser{}.Parse(raw)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("parsing is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestFunctionParser_EscapedQuotes(t *testing.T) {
	calls := FunctionParser{}.Parse(`create_todo(title="say \"hi\"")`)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	title, _ := calls[0].Parameters["title"].AsString()
	if title != `say "hi"` {
		t.Errorf("title = %q", title)
	}
}
