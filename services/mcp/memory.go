// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianBench/services/eval/toolcall"
)

// MemoryRunner is an in-process todo store with the same tool
// surface and response text shapes as the Node server. It exists for
// tests and offline runs where spawning subprocesses is unwanted.
type MemoryRunner struct {
	mu     sync.Mutex
	todos  []*memoryTodo
	nextID int64
}

type memoryTodo struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Notes        string  `json:"notes"`
	ScheduledFor *string `json:"scheduledFor"`
	Priority     string  `json:"priority"`
	Completed    bool    `json:"completed"`
}

func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{nextID: 1}
}

func (m *MemoryRunner) ResetDatabase() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.todos = nil
	m.nextID = 1
	return nil
}

func (m *MemoryRunner) ContextSummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.todos) == 0 {
		return "Database is currently empty (no todos exist)."
	}
	return fmt.Sprintf("Database contains %d todos.", len(m.todos))
}

func (m *MemoryRunner) Close() error { return nil }

func (m *MemoryRunner) ExecuteToolCall(ctx context.Context, call toolcall.Call) ToolResult {
	if !call.IsValid {
		return ToolResult{
			Success:          false,
			ErrorType:        ValidationError,
			Error:            "Tool call failed validation",
			ParsingErrors:    call.ParsingErrors,
			ValidationErrors: call.ValidationErrors,
			Details:          fmt.Sprintf("Invalid tool call for %s", call.Tool),
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var text string
	var err error
	switch call.Tool {
	case toolcall.ToolCreateTodo:
		text = m.createTodo(call)
	case toolcall.ToolListTodos:
		text = m.listTodos(call)
	case toolcall.ToolSearchTodos:
		text = m.searchTodos(call)
	case toolcall.ToolGetTodo:
		text, err = m.getTodo(call)
	case toolcall.ToolUpdateTodo:
		text, err = m.updateTodo(call)
	case toolcall.ToolDeleteTodo:
		text, err = m.deleteTodo(call)
	default:
		err = fmt.Errorf("Unknown tool: %s", call.Tool)
	}
	if err != nil {
		return ToolResult{
			Success:   false,
			ErrorType: ExecutionError,
			Error:     err.Error(),
		}
	}

	return ToolResult{
		Success: true,
		Raw:     clientEnvelope(call, text),
		Message: fmt.Sprintf("Executed %s", call.Tool),
	}
}

// clientEnvelope mirrors the Node client's stdout shape.
func clientEnvelope(call toolcall.Call, text string) json.RawMessage {
	envelope := map[string]any{
		"tool":      call.Tool,
		"arguments": call.Parameters,
		"response": map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": text},
			},
		},
	}
	raw, _ := json.Marshal(envelope)
	return raw
}

func (m *MemoryRunner) createTodo(call toolcall.Call) string {
	todo := &memoryTodo{
		ID:       m.nextID,
		Title:    paramString(call, "title", ""),
		Notes:    paramString(call, "notes", ""),
		Priority: paramString(call, "priority", "medium"),
	}
	if v, ok := call.Param("scheduledFor"); ok && !v.IsNull() {
		if s, isStr := v.AsString(); isStr {
			todo.ScheduledFor = &s
		}
	}
	m.nextID++
	m.todos = append(m.todos, todo)
	return "Created todo:\n" + formatTodo(todo)
}

func (m *MemoryRunner) listTodos(call toolcall.Call) string {
	var filtered []*memoryTodo
	for _, t := range m.todos {
		if v, ok := call.Param("completed"); ok {
			if want, isBool := v.AsBool(); isBool && t.Completed != want {
				continue
			}
		}
		if v, ok := call.Param("priority"); ok {
			if p, isStr := v.AsString(); isStr && !strings.EqualFold(t.Priority, p) {
				continue
			}
		}
		if v, ok := call.Param("scheduledFrom"); ok {
			if from, isStr := v.AsString(); isStr {
				if t.ScheduledFor == nil || *t.ScheduledFor < from {
					continue
				}
			}
		}
		if v, ok := call.Param("scheduledTo"); ok {
			if to, isStr := v.AsString(); isStr {
				if t.ScheduledFor == nil || *t.ScheduledFor > to {
					continue
				}
			}
		}
		filtered = append(filtered, t)
	}
	return fmt.Sprintf("Found %d todos:\n%s", len(filtered), formatTodos(filtered))
}

func (m *MemoryRunner) searchTodos(call toolcall.Call) string {
	query := strings.ToLower(paramString(call, "query", ""))
	var results []*memoryTodo
	if query != "" {
		for _, t := range m.todos {
			if strings.Contains(strings.ToLower(t.Title), query) ||
				strings.Contains(strings.ToLower(t.Notes), query) {
				results = append(results, t)
			}
		}
	}
	return fmt.Sprintf("Found %d todos:\n%s", len(results), formatTodos(results))
}

func (m *MemoryRunner) getTodo(call toolcall.Call) (string, error) {
	todo, err := m.findByID(call)
	if err != nil {
		return "", err
	}
	return formatTodo(todo), nil
}

func (m *MemoryRunner) updateTodo(call toolcall.Call) (string, error) {
	todo, err := m.findByID(call)
	if err != nil {
		return "", err
	}
	if v, ok := call.Param("title"); ok {
		if s, isStr := v.AsString(); isStr {
			todo.Title = s
		}
	}
	if v, ok := call.Param("notes"); ok {
		if s, isStr := v.AsString(); isStr {
			todo.Notes = s
		}
	}
	if v, ok := call.Param("scheduledFor"); ok {
		if v.IsNull() {
			todo.ScheduledFor = nil
		} else if s, isStr := v.AsString(); isStr {
			todo.ScheduledFor = &s
		}
	}
	if v, ok := call.Param("priority"); ok {
		if s, isStr := v.AsString(); isStr {
			todo.Priority = s
		}
	}
	if v, ok := call.Param("completed"); ok {
		if b, isBool := v.AsBool(); isBool {
			todo.Completed = b
		}
	}
	return "Updated todo:\n" + formatTodo(todo), nil
}

func (m *MemoryRunner) deleteTodo(call toolcall.Call) (string, error) {
	todo, err := m.findByID(call)
	if err != nil {
		return "", err
	}
	for i, t := range m.todos {
		if t.ID == todo.ID {
			m.todos = append(m.todos[:i], m.todos[i+1:]...)
			break
		}
	}
	return fmt.Sprintf("Deleted todo: %s (ID: %d)", todo.Title, todo.ID), nil
}

func (m *MemoryRunner) findByID(call toolcall.Call) (*memoryTodo, error) {
	v, ok := call.Param("id")
	if !ok {
		return nil, fmt.Errorf("Todo with ID <missing> not found")
	}
	id, ok := coerceID(v)
	if !ok {
		return nil, fmt.Errorf("Todo with ID %s not found", v.Display())
	}
	for _, t := range m.todos {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("Todo with ID %d not found", id)
}

// paramString reads a string parameter, treating null or absent as
// the fallback.
func paramString(call toolcall.Call, name, fallback string) string {
	v, ok := call.Param(name)
	if !ok || v.IsNull() {
		return fallback
	}
	if s, isStr := v.AsString(); isStr {
		return s
	}
	return fallback
}

// coerceID accepts an integer or a numeric string, matching the
// server's parseInt handling.
func coerceID(v toolcall.Value) (int64, bool) {
	if id, ok := v.AsInt(); ok {
		return id, true
	}
	if s, ok := v.AsString(); ok {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err == nil {
			return id, true
		}
	}
	return 0, false
}

func formatTodo(t *memoryTodo) string {
	raw, _ := json.MarshalIndent(t, "", "  ")
	return string(raw)
}

func formatTodos(todos []*memoryTodo) string {
	if todos == nil {
		todos = []*memoryTodo{}
	}
	raw, _ := json.MarshalIndent(todos, "", "  ")
	return string(raw)
}
