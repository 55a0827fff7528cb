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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"
)

// DefaultFlushInterval is how often dirty stores are written back when the
// caller does not choose an interval.
const DefaultFlushInterval = 5 * time.Second

// documentPersister writes a whole JSON document on a dirty-flag schedule.
//
// Mutating code calls markDirty; the run loop (or an explicit flush) asks the
// snapshot callback for the current document and writes it atomically via a
// temp file and rename. One flush absorbs any number of mutations between
// intervals.
type documentPersister[T any] struct {
	path     string
	snapshot func() T

	mu    sync.Mutex
	dirty bool
}

func newDocumentPersister[T any](path string, snapshot func() T) *documentPersister[T] {
	return &documentPersister[T]{path: path, snapshot: snapshot}
}

// load reads and decodes the document. A missing file is a normal first run;
// a corrupt file is logged and ignored. Both return ok=false.
func (p *documentPersister[T]) load() (T, bool) {
	var doc T
	if p.path == "" {
		return doc, false
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Unreadable document store, starting empty", "path", p.path, "error", err)
		}
		return doc, false
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("Corrupt document store, starting empty", "path", p.path, "error", err)
		var zero T
		return zero, false
	}
	return doc, true
}

func (p *documentPersister[T]) markDirty() {
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
}

// flush writes the document if dirty. The dirty flag clears before the write
// so mutations landing during the write are picked up by the next flush.
func (p *documentPersister[T]) flush() error {
	p.mu.Lock()
	if !p.dirty || p.path == "" {
		p.mu.Unlock()
		return nil
	}
	p.dirty = false
	p.mu.Unlock()

	doc := p.snapshot()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document %s: %w", p.path, err)
	}

	tmp := p.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(p.path), 0750); err != nil {
		return fmt.Errorf("create document directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return fmt.Errorf("write document %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("replace document %s: %w", p.path, err)
	}
	return nil
}

// run flushes on the interval until ctx is canceled, then flushes once more.
func (p *documentPersister[T]) run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := p.flush(); err != nil {
				slog.Error("Final document flush failed", "path", p.path, "error", err)
			}
			return
		case <-ticker.C:
			if err := p.flush(); err != nil {
				slog.Error("Document flush failed", "path", p.path, "error", err)
			}
		}
	}
}
