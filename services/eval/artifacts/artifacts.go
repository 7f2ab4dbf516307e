// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package artifacts persists run output: per-scenario phase
// envelopes, the run-level JSON summary with a stable latest
// pointer, detailed result logs, and the Markdown report.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianBench/services/eval/pipeline"
)

// EnvelopeVersion is the artifact schema version.
const EnvelopeVersion = "1.0"

// Timings brackets one phase.
type Timings struct {
	Started   string `json:"started"`
	Ended     string `json:"ended"`
	LatencyMS int64  `json:"latency_ms"`
}

// Envelope is the common wrapper around one phase's artifact. Every
// envelope carries a status and either a payload or an error, so a
// reader never has to guess whether a phase ran.
type Envelope struct {
	Version  string            `json:"version"`
	Phase    string            `json:"phase"`
	Scenario string            `json:"scenario"`
	Model    string            `json:"model,omitempty"`
	Payload  any               `json:"payload,omitempty"`
	Metrics  any               `json:"metrics,omitempty"`
	Gates    map[string]string `json:"gates,omitempty"`
	Status   string            `json:"status"`
	Error    string            `json:"error,omitempty"`
	Timings  Timings           `json:"timings"`
}

// PhaseEnvelopes derives the per-phase artifacts from a result.
// Phases that never ran are omitted; a failed extraction yields a
// single "fail" extraction envelope carrying the error.
func PhaseEnvelopes(res *pipeline.Result, started, ended time.Time) []Envelope {
	timings := Timings{
		Started:   started.UTC().Format(time.RFC3339Nano),
		Ended:     ended.UTC().Format(time.RFC3339Nano),
		LatencyMS: ended.Sub(started).Milliseconds(),
	}
	var envelopes []Envelope
	if res.ExecutionError != "" {
		return append(envelopes, Envelope{
			Version:  EnvelopeVersion,
			Phase:    "extraction",
			Scenario: res.Scenario,
			Model:    res.Model,
			Status:   "fail",
			Error:    res.ExecutionError,
			Timings:  timings,
		})
	}
	if ex := res.Pipeline.Extract; ex != nil {
		envelopes = append(envelopes, Envelope{
			Version:  EnvelopeVersion,
			Phase:    "extraction",
			Scenario: res.Scenario,
			Model:    ex.Model,
			Payload: map[string]any{
				"raw_output": ex.RawOutput,
				"tool_calls": ex.ToolCalls,
			},
			Metrics: ex.Metrics,
			Status:  "pass",
			Timings: timings,
		})
	}
	if v := res.Pipeline.Verify; v != nil {
		envelopes = append(envelopes, Envelope{
			Version:  EnvelopeVersion,
			Phase:    "verification",
			Scenario: res.Scenario,
			Model:    v.Model,
			Payload: map[string]any{
				"vetted_calls": v.VettedCalls,
				"accepted":     v.Accepted,
				"rejected":     v.Rejected,
				"accepted_count": len(v.Accepted),
				"rejected_count": len(v.Rejected),
			},
			Metrics: v.Metrics,
			Gates:   v.Gates,
			Status:  "pass",
			Timings: timings,
		})
	}
	if ex := res.Pipeline.Execute; ex != nil {
		envelopes = append(envelopes, Envelope{
			Version:  EnvelopeVersion,
			Phase:    "execution",
			Scenario: res.Scenario,
			Model:    ex.Model,
			Payload: map[string]any{
				"final_calls": ex.FinalCalls,
				"results":     ex.Records,
			},
			Metrics: ex.Metrics,
			Status:  "pass",
			Timings: timings,
		})
	}
	return envelopes
}

// NewRunID builds a unique, sortable run identifier.
func NewRunID() string {
	return fmt.Sprintf("%s_%s", time.Now().Format("2006-01-02_15-04-05"), uuid.NewString()[:8])
}

// Writer persists artifacts under dir/<runID>/.
type Writer struct {
	dir   string
	runID string
	stamp string
}

// NewWriter creates the run directory under dir.
func NewWriter(dir, runID string) (*Writer, error) {
	if runID == "" {
		runID = NewRunID()
	}
	w := &Writer{
		dir:   filepath.Join(dir, runID),
		runID: runID,
		stamp: time.Now().Format("2006-01-02_15-04-05"),
	}
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return w, nil
}

// RunID is the identifier for this writer's run.
func (w *Writer) RunID() string { return w.runID }

// Dir is the run's artifact directory.
func (w *Writer) Dir() string { return w.dir }

// WritePhases writes each envelope to
// <model>/<scenario>/<phase>.json inside the run directory.
func (w *Writer) WritePhases(envelopes []Envelope) error {
	for _, env := range envelopes {
		dir := filepath.Join(w.dir, sanitize(env.Model), sanitize(env.Scenario))
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create phase dir: %w", err)
		}
		if err := writeJSON(filepath.Join(dir, env.Phase+".json"), env); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummary writes the timestamped run summary and refreshes the
// stable latest pointer next to it.
func (w *Writer) WriteSummary(summary any) error {
	if err := writeJSON(filepath.Join(w.dir, fmt.Sprintf("summary_%s.json", w.stamp)), summary); err != nil {
		return err
	}
	return writeJSON(filepath.Join(w.dir, "summary_latest.json"), summary)
}

// WriteDetailedLogs writes the full per-result log.
func (w *Writer) WriteDetailedLogs(results []*pipeline.Result) error {
	return writeJSON(filepath.Join(w.dir, fmt.Sprintf("detailed_test_logs_%s.json", w.stamp)), results)
}

// WriteMarkdown writes the human-readable report.
func (w *Writer) WriteMarkdown(content string) error {
	path := filepath.Join(w.dir, "TEST_RESULTS_SUMMARY.md")
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// sanitize keeps artifact paths flat and filesystem-safe.
func sanitize(name string) string {
	if name == "" {
		return "unknown"
	}
	replacer := strings.NewReplacer("/", "_", ":", "_", " ", "_", "\\", "_")
	return replacer.Replace(name)
}
