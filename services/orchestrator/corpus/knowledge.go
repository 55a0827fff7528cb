// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package corpus

import (
	"context"
	"strings"
	"sync"
	"time"

	"log/slog"
)

// KnowledgeMap is the flat key → value mapping backing template placeholder
// substitution. Keys are case-insensitive.
//
// The mapping is persisted as a single JSON object, same batched-flush model
// as the conversation corpus.
type KnowledgeMap struct {
	mu      sync.RWMutex
	entries map[string]string

	persister *documentPersister[map[string]string]
}

// NewKnowledgeMap loads the mapping document at path, starting empty when it
// is missing or corrupt.
func NewKnowledgeMap(path string) *KnowledgeMap {
	m := &KnowledgeMap{entries: make(map[string]string)}
	m.persister = newDocumentPersister(path, func() map[string]string {
		m.mu.RLock()
		defer m.mu.RUnlock()
		out := make(map[string]string, len(m.entries))
		for k, v := range m.entries {
			out[k] = v
		}
		return out
	})

	loaded, ok := m.persister.load()
	if !ok {
		return m
	}
	for k, v := range loaded {
		m.entries[strings.ToLower(strings.TrimSpace(k))] = v
	}
	slog.Info("Loaded knowledge mapping", "path", path, "entries", len(m.entries))
	return m
}

// Get looks up a key case-insensitively. Satisfies templates.KnowledgeLookup.
func (m *KnowledgeMap) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[strings.ToLower(strings.TrimSpace(key))]
	return v, ok
}

// Set stores or overwrites an entry. Empty keys are ignored.
func (m *KnowledgeMap) Set(key, value string) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return
	}
	m.mu.Lock()
	m.entries[key] = value
	m.mu.Unlock()
	m.persister.markDirty()
}

// Len returns the number of entries.
func (m *KnowledgeMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Run starts the batched flush loop; it returns when ctx is canceled, after
// a final flush.
func (m *KnowledgeMap) Run(ctx context.Context, interval time.Duration) {
	m.persister.run(ctx, interval)
}

// Flush writes the mapping document now if there are unflushed mutations.
func (m *KnowledgeMap) Flush() error {
	return m.persister.flush()
}
