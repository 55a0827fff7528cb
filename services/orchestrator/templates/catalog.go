// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package templates

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/htwebz/assistant/services/orchestrator/datatypes"
)

// catalogueFile is the on-disk YAML shape:
//
//	templates:
//	  - input: "hello"
//	    output: "Hi! How can I help you today?"
//	  - input: "what is your name"
//	    output: "I'm {assistant_name}."
type catalogueFile struct {
	Templates []datatypes.Template `yaml:"templates"`
}

// LoadFile reads a YAML template catalogue from path.
//
// A missing file is not an error: the assistant runs with an empty catalogue
// and the template stage simply never produces candidates. A present but
// malformed file is an error, since it means the operator intended a
// catalogue and got none.
func LoadFile(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Template catalogue not found, starting empty", "path", path)
			return NewStore(nil), nil
		}
		return nil, fmt.Errorf("failed to read template catalogue: %w", err)
	}

	var file catalogueFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse template catalogue %s: %w", path, err)
	}

	slog.Info("Loaded template catalogue", "path", path, "count", len(file.Templates))
	return NewStore(file.Templates), nil
}

// Watch reloads the catalogue whenever the file changes on disk.
//
// # Description
//
// Runs until ctx is canceled. Reload failures keep the previous snapshot;
// a broken edit never takes the running catalogue down. Editors that
// rename-over the file emit Create rather than Write, so both are handled.
//
// # Inputs
//
//   - ctx: Cancels the watcher.
//   - path: The catalogue file to watch.
//
// # Outputs
//
//   - error: Non-nil only if the watcher itself cannot be established.
func (s *Store) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalogue watcher: %w", err)
	}

	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				raw, err := os.ReadFile(path)
				if err != nil {
					slog.Error("Catalogue reload read failed, keeping previous snapshot",
						"path", path, "error", err)
					continue
				}
				var file catalogueFile
				if err := yaml.Unmarshal(raw, &file); err != nil {
					slog.Error("Catalogue reload parse failed, keeping previous snapshot",
						"path", path, "error", err)
					continue
				}
				s.replace(file.Templates)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Catalogue watcher error", "error", err)
			}
		}
	}()

	return nil
}
