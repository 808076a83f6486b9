// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package vertex

import "sync"

// cacheKey identifies one project/location pair. Token sources are
// shared at this granularity so adapters for several models in the
// same project reuse one bearer token instead of racing the token
// endpoint.
type cacheKey struct {
	projectID string
	location  string
}

// ClientCache holds token sources keyed by project and location. Safe
// for concurrent use; concurrent misses for the same key settle on one
// winner.
type ClientCache struct {
	mu      sync.Mutex
	sources map[cacheKey]*tokenSource
}

// NewClientCache creates an empty cache.
func NewClientCache() *ClientCache {
	return &ClientCache{sources: make(map[cacheKey]*tokenSource)}
}

// getOrCreate returns the cached token source for the key, building
// one with create on first use.
func (c *ClientCache) getOrCreate(key cacheKey, create func() *tokenSource) *tokenSource {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ts, ok := c.sources[key]; ok {
		return ts
	}
	ts := create()
	c.sources[key] = ts
	return ts
}

// Len returns the number of cached token sources.
func (c *ClientCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sources)
}
