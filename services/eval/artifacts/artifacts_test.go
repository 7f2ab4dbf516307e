// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianBench/services/eval/pipeline"
)

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		Model:    "test-model",
		Scenario: "create_simple",
		Pipeline: pipeline.PipelineData{
			Extract: &pipeline.ExtractData{
				Model:     "test-model",
				RawOutput: `create_todo(title="Buy milk")`,
				Metrics:   pipeline.ExtractMetrics{ToolF1: 1.0, OrderAdherence: 1.0},
			},
			Verify: &pipeline.VerifyData{
				Model: "test-model",
				Gates: map[string]string{"allowlist": "applied"},
			},
			Execute: &pipeline.ExecuteData{
				Model:   "test-model",
				Metrics: pipeline.ExecuteMetrics{SuccessRate: 1.0},
			},
		},
	}
}

func TestPhaseEnvelopes_AllPhases(t *testing.T) {
	started := time.Now()
	envs := PhaseEnvelopes(sampleResult(), started, started.Add(1500*time.Millisecond))

	if len(envs) != 3 {
		t.Fatalf("expected 3 envelopes, got %d", len(envs))
	}
	wantPhases := []string{"extraction", "verification", "execution"}
	for i, env := range envs {
		if env.Phase != wantPhases[i] {
			t.Errorf("envelope %d phase = %s, want %s", i, env.Phase, wantPhases[i])
		}
		if env.Version != EnvelopeVersion {
			t.Errorf("version = %s", env.Version)
		}
		if env.Status != "pass" {
			t.Errorf("status = %s, want pass", env.Status)
		}
		if env.Timings.LatencyMS != 1500 {
			t.Errorf("latency = %d, want 1500", env.Timings.LatencyMS)
		}
	}
	if envs[1].Gates["allowlist"] != "applied" {
		t.Error("verification envelope should carry the gates map")
	}
}

func TestPhaseEnvelopes_FailedExtraction(t *testing.T) {
	res := &pipeline.Result{
		Model:          "test-model",
		Scenario:       "unreachable",
		ExecutionError: "HTTP 500",
	}
	envs := PhaseEnvelopes(res, time.Now(), time.Now())

	if len(envs) != 1 {
		t.Fatalf("expected a single failure envelope, got %d", len(envs))
	}
	if envs[0].Status != "fail" || envs[0].Error != "HTTP 500" {
		t.Errorf("failure envelope = %+v", envs[0])
	}
}

func TestWriter_PhasesAndSummary(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "test_run")
	if err != nil {
		t.Fatal(err)
	}

	started := time.Now()
	if err := w.WritePhases(PhaseEnvelopes(sampleResult(), started, started)); err != nil {
		t.Fatal(err)
	}
	phasePath := filepath.Join(w.Dir(), "test-model", "create_simple", "verification.json")
	data, err := os.ReadFile(phasePath)
	if err != nil {
		t.Fatalf("phase artifact missing: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("phase artifact is not valid JSON: %v", err)
	}
	if env.Phase != "verification" {
		t.Errorf("phase = %s", env.Phase)
	}

	summary := map[string]string{"winner": "test-model"}
	if err := w.WriteSummary(summary); err != nil {
		t.Fatal(err)
	}
	latest, err := os.ReadFile(filepath.Join(w.Dir(), "summary_latest.json"))
	if err != nil {
		t.Fatalf("latest pointer missing: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(latest, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["winner"] != "test-model" {
		t.Errorf("latest pointer content = %v", decoded)
	}
}

func TestNewRunID_Unique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Error("run IDs should be unique")
	}
}

func TestSanitize(t *testing.T) {
	if got := sanitize("ollama/llama3:8b"); got != "ollama_llama3_8b" {
		t.Errorf("sanitize = %q", got)
	}
	if got := sanitize(""); got != "unknown" {
		t.Errorf("sanitize empty = %q", got)
	}
}
