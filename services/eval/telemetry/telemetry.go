// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires the OpenTelemetry tracer provider for a
// benchmark run. Phase spans carry the model, scenario, and timing
// data the artifact files summarize, so a run can be replayed span by
// span when a number looks wrong.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// ErrUnknownExporter is returned for an exporter name Init does not
// recognize.
var ErrUnknownExporter = errors.New("unknown trace exporter")

// Config controls tracing behavior.
type Config struct {
	// ServiceName identifies this process in spans.
	ServiceName string `json:"service_name"`

	// ServiceVersion is the version string attached to spans.
	ServiceVersion string `json:"service_version"`

	// Exporter selects the span exporter: "stdout", "file", or
	// "none". File output goes to TracePath.
	Exporter string `json:"exporter"`

	// TracePath is the output file for the "file" exporter.
	TracePath string `json:"trace_path"`
}

// DefaultConfig returns development defaults. OTEL_TRACES_EXPORTER
// overrides the exporter selection.
func DefaultConfig() Config {
	exporter := os.Getenv("OTEL_TRACES_EXPORTER")
	if exporter == "" {
		exporter = "none"
	}
	return Config{
		ServiceName:    "aleutianbench",
		ServiceVersion: "1.0.0",
		Exporter:       exporter,
	}
}

// Init installs the global tracer provider.
//
// After Init returns successfully, otel.Tracer() works throughout the
// process. The returned shutdown function flushes pending spans and
// must be called on exit.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if cfg.Exporter == "none" || cfg.Exporter == "" {
		return func(context.Context) error { return nil }, nil
	}

	var exporter trace.SpanExporter
	var closer func() error
	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "file":
		if cfg.TracePath == "" {
			return nil, errors.New("trace_path is required for the file exporter")
		}
		var f *os.File
		f, err = os.OpenFile(cfg.TracePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err == nil {
			closer = f.Close
			exporter, err = stdouttrace.New(stdouttrace.WithWriter(f))
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)
	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if closer != nil {
			if cerr := closer(); err == nil {
				err = cerr
			}
		}
		return err
	}, nil
}
