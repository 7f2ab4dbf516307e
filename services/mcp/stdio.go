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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/AleutianBench/services/eval/toolcall"
)

// StdioAdapter executes tool calls by invoking the Node MCP client
// CLI, one subprocess per call. Each run gets a fresh temporary
// working directory so the server's data/ files stay isolated.
type StdioAdapter struct {
	clientPath string
	workingDir string
}

// NewStdioAdapter points at the mcp_client.js entry script. The
// working directory is created lazily on first use.
func NewStdioAdapter(clientPath string) *StdioAdapter {
	return &StdioAdapter{clientPath: clientPath}
}

// ResetDatabase swaps in a fresh isolated working directory.
func (a *StdioAdapter) ResetDatabase() error {
	if a.workingDir != "" {
		// Best-effort cleanup of the previous directory.
		_ = os.RemoveAll(a.workingDir)
	}
	dir, err := os.MkdirTemp("", "tmp_mcp_")
	if err != nil {
		return fmt.Errorf("failed to create MCP working directory: %w", err)
	}
	// The server expects a data subdir in its CWD.
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o755); err != nil {
		return fmt.Errorf("failed to create MCP data directory: %w", err)
	}
	a.workingDir = dir
	slog.Debug("Reset MCP working directory", "dir", dir)
	return nil
}

// ContextSummary describes the fresh store. A new working directory
// always starts empty.
func (a *StdioAdapter) ContextSummary() string {
	return "Database is currently empty (no todos exist)."
}

// ExecuteToolCall invokes the Node client with the call's tool and
// parameters. Invalid calls are rejected locally without spawning a
// subprocess.
func (a *StdioAdapter) ExecuteToolCall(ctx context.Context, call toolcall.Call) ToolResult {
	if a.workingDir == "" {
		if err := a.ResetDatabase(); err != nil {
			return ToolResult{
				Success:   false,
				ErrorType: TransportError,
				Error:     err.Error(),
			}
		}
	}

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

	argsJSON, err := json.Marshal(call.Parameters)
	if err != nil {
		return ToolResult{
			Success:   false,
			ErrorType: TransportError,
			Error:     fmt.Sprintf("Failed to encode tool arguments: %v", err),
		}
	}

	cmd := exec.CommandContext(ctx, "node", a.clientPath,
		"--tool", call.Tool,
		"--args", string(argsJSON),
		"--cwd", a.workingDir,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = "MCP client returned non-zero exit code"
			}
			return ToolResult{
				Success:   false,
				ErrorType: ExecutionError,
				Error:     msg,
			}
		}
		return ToolResult{
			Success:   false,
			ErrorType: TransportError,
			Error:     fmt.Sprintf("Failed to invoke MCP client: %v", err),
		}
	}

	payload := stdout.Bytes()
	if !json.Valid(payload) {
		detail := stdout.String()
		if len(detail) > 5000 {
			detail = detail[:5000]
		}
		return ToolResult{
			Success:   false,
			ErrorType: ParsingError,
			Error:     "Invalid JSON from MCP client",
			Details:   detail,
		}
	}

	return ToolResult{
		Success: true,
		Raw:     json.RawMessage(payload),
		Message: fmt.Sprintf("Executed %s", call.Tool),
	}
}

// Close removes the working directory.
func (a *StdioAdapter) Close() error {
	if a.workingDir == "" {
		return nil
	}
	dir := a.workingDir
	a.workingDir = ""
	return os.RemoveAll(dir)
}
