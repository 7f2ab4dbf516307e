// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package execute dispatches vetted tool calls to the todo store and
// resolves cross-call id references.
//
// A parameter value of the form $CALL_<n>.id refers to the id
// assigned by the n-th successful create_todo earlier in the same
// run (1-based). A reference to a create that has not happened yet,
// or that failed, cannot be resolved; the referring call is skipped
// and the rest of the sequence continues.
package execute

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianBench/services/eval/toolcall"
	"github.com/AleutianAI/AleutianBench/services/mcp"
)

// Status of one execution record.
type Status string

const (
	// StatusExecuted means the call was dispatched to the store
	// (success or not).
	StatusExecuted Status = "executed"

	// StatusSkipped means an id placeholder could not be resolved.
	StatusSkipped Status = "skipped"

	// StatusRejected means the call failed schema validation and
	// never reached the store.
	StatusRejected Status = "rejected"
)

// Record is the per-call execution outcome.
type Record struct {
	Tool      string                    `json:"tool"`
	Arguments map[string]toolcall.Value `json:"arguments"`
	Status    Status                    `json:"status"`
	Success   bool                      `json:"success"`
	Response  json.RawMessage           `json:"response,omitempty"`
	Error     string                    `json:"error,omitempty"`
	ErrorType mcp.ErrorType             `json:"error_type,omitempty"`
	LatencyMS int64                     `json:"latency_ms"`
}

var placeholderRe = regexp.MustCompile(`^\$CALL_(\d+)\.id$`)

// Engine runs call sequences against a store.
type Engine struct {
	runner mcp.Runner
}

func NewEngine(runner mcp.Runner) *Engine {
	return &Engine{runner: runner}
}

// Run executes the calls in order. Per-call failures never abort the
// sequence; every call produces exactly one record.
func (e *Engine) Run(ctx context.Context, calls []toolcall.Call) []Record {
	records := make([]Record, 0, len(calls))
	var createdIDs []int64

	for _, call := range calls {
		resolved, unresolvable := resolvePlaceholders(call, createdIDs)
		if unresolvable != "" {
			slog.Debug("Skipping call with unresolved placeholder",
				"tool", call.Tool, "placeholder", unresolvable)
			records = append(records, Record{
				Tool:      call.Tool,
				Arguments: call.Parameters,
				Status:    StatusSkipped,
				Error:     fmt.Sprintf("unresolved placeholder %s", unresolvable),
			})
			continue
		}

		start := time.Now()
		result := e.runner.ExecuteToolCall(ctx, resolved)
		latency := time.Since(start).Milliseconds()

		status := StatusExecuted
		if result.ErrorType == mcp.ValidationError {
			status = StatusRejected
		}
		records = append(records, Record{
			Tool:      resolved.Tool,
			Arguments: resolved.Parameters,
			Status:    status,
			Success:   result.Success,
			Response:  result.Raw,
			Error:     result.Error,
			ErrorType: result.ErrorType,
			LatencyMS: latency,
		})

		if result.Success && resolved.Tool == toolcall.ToolCreateTodo {
			if id, ok := mcp.ExtractCreatedID(result); ok {
				createdIDs = append(createdIDs, id)
			}
		}
	}
	return records
}

// resolvePlaceholders substitutes $CALL_<n>.id references. Returns
// the placeholder text when a reference cannot be satisfied yet.
func resolvePlaceholders(call toolcall.Call, createdIDs []int64) (toolcall.Call, string) {
	var resolved map[string]toolcall.Value
	for key, value := range call.Parameters {
		s, isStr := value.AsString()
		if !isStr {
			continue
		}
		m := placeholderRe.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(createdIDs) {
			return call, s
		}
		if resolved == nil {
			resolved = make(map[string]toolcall.Value, len(call.Parameters))
			for k, v := range call.Parameters {
				resolved[k] = v
			}
		}
		resolved[key] = toolcall.Int(createdIDs[n-1])
	}
	if resolved == nil {
		return call, ""
	}

	out := call
	out.Parameters = resolved
	return out, ""
}

// SuccessfulTools reports the set of tools with at least one
// successful record, for metric computation.
func SuccessfulTools(records []Record) map[string]bool {
	succeeded := make(map[string]bool)
	for _, r := range records {
		if r.Success {
			succeeded[r.Tool] = true
		}
	}
	return succeeded
}
