// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianBench/services/eval/scenario"
)

// emptyDBNote is appended to the prompt when the store reports an
// empty database, instead of the raw context summary.
const emptyDBNote = "(Note: Database is currently empty - no existing todos.)"

// functionSystemPrompt instructs the model to answer with
// Python-style function call lines. Dates are anchored so relative
// phrases like "tomorrow" score deterministically across runs.
func functionSystemPrompt() string {
	anchor := scenario.AnchorDate()
	tomorrow := scenario.AnchorTomorrow()
	return fmt.Sprintf(`TOOL_EXECUTION_MODE: You help manage todos using MCP tools. Current date: %s. Tomorrow: %s.

AVAILABLE_TOOLS: create_todo|list_todos|get_todo|update_todo|delete_todo|search_todos

MANDATORY_FORMAT_RULES:
1. Use Python function call syntax: function_name(param1="value", param2=value)
2. String parameters in quotes, numbers/booleans without quotes
3. Available functions: create_todo(), list_todos(), get_todo(), update_todo(), delete_todo(), search_todos()
4. Multiple calls on separate lines
5. Use exact parameter names

PARAMETER_SPECIFICATIONS:
create_todo(title="required", notes="optional", scheduledFor="YYYY-MM-DD or None", priority="low/medium/high")
list_todos(completed=True/False, priority="low/medium/high", scheduledFrom="YYYY-MM-DD", scheduledTo="YYYY-MM-DD")  # all optional
get_todo(id=integer|string)
update_todo(id=integer|string, title="optional", notes="optional", scheduledFor="optional", priority="optional", completed=True/False)
delete_todo(id=integer|string)
search_todos(query="required substring to match title or notes")

TYPE_RULES:
- Strings in double quotes: "Buy groceries"
- Numbers without quotes: 1, 2, 3
- Booleans: True, False (Python style)
- None for null values
- Dates: "%s"
- IDs: integer or string (server coerces to integer)

CORRECT_EXAMPLES:
create_todo(title="Buy groceries", priority="high", scheduledFor="%s")
list_todos(completed=False, priority="high", scheduledFrom="2025-08-04", scheduledTo="2025-08-10")
search_todos(query="dentist")
update_todo(id=1, completed=True)

Provide helpful response, then function calls.
`, anchor, tomorrow, tomorrow, tomorrow)
}

// jsonSystemPrompt instructs the model to answer with a raw JSON
// array of tool call objects.
func jsonSystemPrompt() string {
	anchor := scenario.AnchorDate()
	tomorrow := scenario.AnchorTomorrow()
	return fmt.Sprintf(`
TOOL_EXECUTION_MODE_JSON: You help manage todos using MCP tools. Current date: %s. Tomorrow: %s.

AVAILABLE_TOOLS: create_todo|list_todos|get_todo|update_todo|delete_todo|search_todos

OUTPUT FORMAT (STRICT):
- Return ONLY a single JSON array of tool call objects. No prose.
- Example:

[
  {"tool": "create_todo", "parameters": {"title": "Buy groceries", "priority": "high", "scheduledFor": "YYYY-MM-DD"}},
  {"tool": "list_todos", "parameters": {"completed": false}}
]


RULES:
- Use only available tools.
- Use lowercase for priority: low|medium|high.
- Use YYYY-MM-DD for dates. Use exact integers for id.
- Do not include comments or trailing commas.
- Do not wrap JSON in code fences. Output must be raw JSON.
`, anchor, tomorrow)
}

// buildVerifyPrompt asks the verifier model to return the strictly
// justified subset of the extracted calls.
func buildVerifyPrompt(instruction, extractedOutput string) string {
	var b strings.Builder
	b.WriteString("Task: From the following extracted tool calls, return ONLY the vetted subset that is strictly justified by the instruction.\n")
	b.WriteString("- Do NOT add new calls beyond what the instruction justifies.\n")
	b.WriteString("- Remove unsupported or hallucinated steps.\n")
	b.WriteString("- Preserve reasonable order when applicable.\n")
	b.WriteString("Output only tool calls using the exact Function Calling format, one per line.\n\n")
	fmt.Fprintf(&b, "Instruction:\n%s\n\n", instruction)
	fmt.Fprintf(&b, "Extracted calls (for review):\n```\n%s\n```\n", extractedOutput)
	return b.String()
}

// buildExecutePrompt asks the executor model to turn the vetted set
// into the final, executable sequence.
func buildExecutePrompt(instruction, contextSummary, vettedCallsText string) string {
	var b strings.Builder
	b.WriteString("ROLE: Execute vetted MCP tool calls with strict conformance.\n\n")
	b.WriteString("INPUTS:\n")
	fmt.Fprintf(&b, "- Instruction:\n%s\n\n", instruction)
	fmt.Fprintf(&b, "- Context:\n%s\n\n", contextSummary)
	b.WriteString("- Vetted calls (authoritative allowed set):\n")
	fmt.Fprintf(&b, "```\n%s\n```\n", vettedCallsText)
	b.WriteString("\nTOOL SCHEMAS & RULES:\n")
	b.WriteString("- ids accept integer|string; server coerces to int\n")
	b.WriteString("- booleans unquoted (True/False), dates YYYY-MM-DD\n")
	b.WriteString("- Allowed tools only: create_todo, list_todos, get_todo, update_todo, delete_todo, search_todos\n")
	b.WriteString("- DO NOT introduce new tools or parameters beyond the vetted list\n")
	b.WriteString("- You MAY reorder to satisfy dependencies and deduplicate redundant calls\n\n")
	b.WriteString("OUTPUT FORMAT:\n")
	b.WriteString("- Python-like Function Calling, one call per line, no commentary.\n\n")
	b.WriteString("TASK:\n")
	b.WriteString("- Produce the final, executable sequence that best fulfills the instruction using ONLY the vetted calls, fixing types/order if needed.\n")
	return b.String()
}
