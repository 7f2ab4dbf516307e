// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Fixture Loading
// =============================================================================

// Skipped records one fixture that failed to load, with the reason
// surfaced in the load report.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// LoadResult is the outcome of loading a fixture directory: the
// usable scenarios plus a parallel list of skipped entries. A
// malformed fixture never aborts the load.
type LoadResult struct {
	Scenarios []Scenario `json:"scenarios"`
	Skipped   []Skipped  `json:"skipped"`
}

// LoadDir loads every .json, .yaml, and .yml fixture in dir, in
// lexical filename order. Each file may hold a single scenario object
// or a catalog list of them.
func LoadDir(dir string) (LoadResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return LoadResult{}, fmt.Errorf("read fixture dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !fixtureExt(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var result LoadResult
	for _, name := range names {
		fileResult := LoadFile(filepath.Join(dir, name))
		result.Scenarios = append(result.Scenarios, fileResult.Scenarios...)
		result.Skipped = append(result.Skipped, fileResult.Skipped...)
	}
	return result, nil
}

// LoadFile loads one fixture file. Decode and validation failures
// land in Skipped rather than returning an error: the sweep should
// run whatever is usable.
func LoadFile(path string) LoadResult {
	var result LoadResult

	data, err := os.ReadFile(path)
	if err != nil {
		result.Skipped = append(result.Skipped, Skipped{Path: path, Reason: err.Error()})
		return result
	}

	text := SubstituteAnchors(string(data))
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)

	// YAML fixtures decode through the same JSON path so custom
	// unmarshalers (expected_parameters, typed values) apply to both.
	if ext == ".yaml" || ext == ".yml" {
		converted, err := yamlToJSON(text)
		if err != nil {
			result.Skipped = append(result.Skipped, Skipped{
				Path: path, Reason: fmt.Sprintf("yaml decode: %v", err)})
			return result
		}
		text = converted
	}

	// A catalog file is a JSON list; anything else is one object.
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			result.Skipped = append(result.Skipped, Skipped{
				Path: path, Reason: fmt.Sprintf("catalog decode: %v", err)})
			return result
		}
		for i, item := range items {
			entryName := fmt.Sprintf("%s[%d]", path, i)
			if s, reason := decodeOne(item, fmt.Sprintf("%s_%d", stem, i)); reason != "" {
				result.Skipped = append(result.Skipped, Skipped{Path: entryName, Reason: reason})
			} else {
				result.Scenarios = append(result.Scenarios, s)
			}
		}
		return result
	}

	if s, reason := decodeOne([]byte(trimmed), stem); reason != "" {
		result.Skipped = append(result.Skipped, Skipped{Path: path, Reason: reason})
	} else {
		result.Scenarios = append(result.Scenarios, s)
	}
	return result
}

// decodeOne decodes and validates one fixture object. The returned
// reason is empty on success. Scenarios without an embedded name take
// the fallback (file stem).
func decodeOne(data []byte, fallbackName string) (Scenario, string) {
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Sprintf("decode: %v", err)
	}
	if s.Name == "" {
		s.Name = fallbackName
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, fmt.Sprintf("validate: %v", err)
	}
	return s, ""
}

// fixtureExt reports whether name has a recognized fixture extension.
func fixtureExt(name string) bool {
	switch filepath.Ext(name) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// yamlToJSON converts a YAML document to its JSON rendering. yaml.v3
// decodes mappings as map[string]any, which json.Marshal accepts
// directly.
func yamlToJSON(text string) (string, error) {
	var doc any
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return "", err
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Filter returns the scenarios whose names are in keep. An empty keep
// list means no filtering. Unknown names are reported so a typoed
// --scenarios flag fails loudly.
func Filter(scenarios []Scenario, keep []string) ([]Scenario, error) {
	if len(keep) == 0 {
		return scenarios, nil
	}
	byName := map[string]Scenario{}
	for _, s := range scenarios {
		byName[s.Name] = s
	}
	var out []Scenario
	for _, name := range keep {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		out = append(out, s)
	}
	return out, nil
}
