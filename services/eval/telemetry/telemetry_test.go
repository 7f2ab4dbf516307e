// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInit_NoneIsNoOp(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Exporter: "none"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{Exporter: "jaeger"})
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("err = %v, want ErrUnknownExporter", err)
	}
}

func TestInit_FileExporterWritesSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")
	shutdown, err := Init(context.Background(), Config{
		ServiceName: "aleutianbench-test",
		Exporter:    "file",
		TracePath:   path,
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "unit-span")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read trace file: %v", err)
	}
	if !strings.Contains(string(raw), "unit-span") {
		t.Errorf("trace file missing span: %s", raw)
	}
}

func TestInit_FileExporterRequiresPath(t *testing.T) {
	if _, err := Init(context.Background(), Config{Exporter: "file"}); err == nil {
		t.Error("expected error for missing trace path")
	}
}
