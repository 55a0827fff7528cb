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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/htwebz/assistant/services/orchestrator/datatypes"
)

// ErrDefinitionNotFound is returned by Get when no definition is stored for
// a term.
var ErrDefinitionNotFound = errors.New("definition not found")

// DefinitionConfig holds configuration for the definition store's BadgerDB
// instance.
type DefinitionConfig struct {
	// Path is the directory for database files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultDefinitionConfig returns production defaults: durable synchronous
// writes at the given path.
func DefaultDefinitionConfig(path string) DefinitionConfig {
	return DefinitionConfig{Path: path, SyncWrites: true}
}

// InMemoryDefinitionConfig returns a configuration for tests: no disk I/O,
// data lost on close.
func InMemoryDefinitionConfig() DefinitionConfig {
	return DefinitionConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// DefinitionStore persists learned term definitions in BadgerDB.
//
// # Description
//
// Definitions are point-lookup records: the learner writes each term once
// and the ranker reads individual terms per request. BadgerDB gives those
// lookups durability without rewriting a whole document per learned term.
//
// Writes are first-writer-wins: once a term has a definition, later writes
// for the same term are ignored. Learned knowledge is corrected through the
// feedback path, not by racing background fetches.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide isolation.
type DefinitionStore struct {
	db *badger.DB
}

// OpenDefinitionStore opens the store with the given configuration. The
// caller must Close it when done.
func OpenDefinitionStore(cfg DefinitionConfig) (*DefinitionStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent definition store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create definition store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open definition store: %w", err)
	}
	return &DefinitionStore{db: db}, nil
}

// Close releases the underlying database.
func (s *DefinitionStore) Close() error {
	return s.db.Close()
}

func definitionKey(term string) []byte {
	return []byte("def:" + strings.ToLower(strings.TrimSpace(term)))
}

// Put stores a definition for term unless one already exists. Returns true
// when the definition was written.
func (s *DefinitionStore) Put(term, definition string) (bool, error) {
	rec := datatypes.DefinitionRecord{
		Term:       strings.ToLower(strings.TrimSpace(term)),
		Definition: definition,
		LearnedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := rec.Validate(); err != nil {
		return false, fmt.Errorf("invalid definition for %q: %w", term, err)
	}

	written := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key := definitionKey(term)
		if _, err := txn.Get(key); err == nil {
			return nil // first writer wins
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		written = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("store definition for %q: %w", term, err)
	}
	return written, nil
}

// Get retrieves the definition for term, or ErrDefinitionNotFound.
func (s *DefinitionStore) Get(term string) (datatypes.DefinitionRecord, error) {
	var rec datatypes.DefinitionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(definitionKey(term))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrDefinitionNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		if errors.Is(err, ErrDefinitionNotFound) {
			return rec, err
		}
		return rec, fmt.Errorf("read definition for %q: %w", term, err)
	}
	return rec, nil
}

// Has reports whether a definition exists for term.
func (s *DefinitionStore) Has(term string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(definitionKey(term))
		return err
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("check definition for %q: %w", term, err)
}
