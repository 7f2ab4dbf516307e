// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"testing"
	"time"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(InMemoryConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_PutGet(t *testing.T) {
	c := openTestCache(t)

	key := Key("llama3.1:8b", "system", "prompt", map[string]any{"temperature": 0})
	if err := c.Put(key, []byte("response text")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, found, err := c.Get(key)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if string(got) != "response text" {
		t.Errorf("value = %q", got)
	}
}

func TestCache_MissingKey(t *testing.T) {
	c := openTestCache(t)

	_, found, err := c.Get("absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("want miss for absent key")
	}
}

func TestCache_JSONRoundTrip(t *testing.T) {
	c := openTestCache(t)

	type entry struct {
		Output   string  `json:"output"`
		Duration float64 `json:"duration"`
	}
	want := entry{Output: "create_todo(title=\"x\")", Duration: 1.5}
	if err := c.PutJSON("k", want); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}

	var got entry
	found, err := c.GetJSON("k", &got)
	if err != nil || !found {
		t.Fatalf("GetJSON: found=%v err=%v", found, err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestKey_Sensitivity(t *testing.T) {
	base := Key("m", "s", "p", map[string]any{"seed": 1234})
	tests := []struct {
		name string
		key  string
	}{
		{"different model", Key("m2", "s", "p", map[string]any{"seed": 1234})},
		{"different system", Key("m", "s2", "p", map[string]any{"seed": 1234})},
		{"different prompt", Key("m", "s", "p2", map[string]any{"seed": 1234})},
		{"different options", Key("m", "s", "p", map[string]any{"seed": 99})},
	}
	for _, tt := range tests {
		if tt.key == base {
			t.Errorf("%s: key collision", tt.name)
		}
	}
	if again := Key("m", "s", "p", map[string]any{"seed": 1234}); again != base {
		t.Error("identical inputs must produce identical keys")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	cfg := InMemoryConfig()
	cfg.TTL = 50 * time.Millisecond
	c, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if err := c.Put("k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(120 * time.Millisecond)

	_, found, err := c.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("entry should have expired")
	}
}
