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
	"context"
	"log/slog"

	"github.com/AleutianAI/AleutianBench/services/llm"
)

// CachedClient wraps a backend client with the response cache. Cache
// errors degrade to a backend call, never to a failed generation.
type CachedClient struct {
	backend llm.Client
	cache   *Cache
}

// WrapClient returns a client that consults the cache before hitting
// the backend.
func WrapClient(backend llm.Client, c *Cache) *CachedClient {
	return &CachedClient{backend: backend, cache: c}
}

// Model implements llm.Client.
func (c *CachedClient) Model() string { return c.backend.Model() }

// Generate implements llm.Client. The cache key covers the model,
// system prompt, user prompt, and every sampling knob, so a sampling
// change never serves a stale entry.
func (c *CachedClient) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (*llm.Result, error) {
	key := Key(c.backend.Model(), params.System, prompt, params)

	var cached llm.Result
	found, err := c.cache.GetJSON(key, &cached)
	if err != nil {
		slog.Warn("cache read failed, falling through to backend", "error", err)
	}
	if found {
		return &cached, nil
	}

	result, err := c.backend.Generate(ctx, prompt, params)
	if err != nil {
		return nil, err
	}
	if err := c.cache.PutJSON(key, result); err != nil {
		slog.Warn("cache write failed", "error", err)
	}
	return result, nil
}
