// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mcp executes tool calls against the todo MCP server.
//
// The real adapter shells out to the Node stdio client with an
// isolated working directory per run, so server state never leaks
// between scenarios. MemoryRunner is a drop-in in-process fake with
// the same response text shapes.
package mcp

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"

	"github.com/AleutianAI/AleutianBench/services/eval/toolcall"
)

// ErrorType classifies a failed tool execution.
type ErrorType string

const (
	ValidationError ErrorType = "validation_error"
	TransportError  ErrorType = "transport_error"
	ExecutionError  ErrorType = "execution_error"
	ParsingError    ErrorType = "parsing_error"
)

// ToolResult is the per-call outcome envelope.
type ToolResult struct {
	Success bool `json:"success"`

	// Raw is the client's JSON payload on success.
	Raw     json.RawMessage `json:"raw,omitempty"`
	Message string          `json:"message,omitempty"`

	ErrorType        ErrorType `json:"error_type,omitempty"`
	Error            string    `json:"error,omitempty"`
	ParsingErrors    []string  `json:"parsing_errors,omitempty"`
	ValidationErrors []string  `json:"validation_errors,omitempty"`
	Details          string    `json:"details,omitempty"`
}

// Runner executes tool calls against an isolated todo store.
type Runner interface {
	// ResetDatabase discards all state and starts from an empty
	// store.
	ResetDatabase() error

	// ContextSummary describes the current store state for prompt
	// injection.
	ContextSummary() string

	// ExecuteToolCall runs one call. Failures are reported in the
	// result, never as a panic or fatal error.
	ExecuteToolCall(ctx context.Context, call toolcall.Call) ToolResult

	// Close releases any resources (working directories).
	Close() error
}

// The created todo's JSON is embedded in the response text field,
// where its quotes arrive backslash-escaped.
var createdIDRe = regexp.MustCompile(`\\?"id\\?":\s*(\d+)`)

// ExtractCreatedID pulls the new todo's id out of a successful
// create_todo result. The server formats the created todo as JSON
// inside its response text, so the first "id" field is the one just
// assigned.
func ExtractCreatedID(result ToolResult) (int64, bool) {
	if !result.Success || len(result.Raw) == 0 {
		return 0, false
	}
	m := createdIDRe.FindSubmatch(result.Raw)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(string(m[1]), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
