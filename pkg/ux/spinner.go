// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides small terminal presentation helpers for the CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// Spinner is an animated terminal wait indicator. Start and Stop pair;
// Stop clears the spinner line so the response can print in its place.
type Spinner struct {
	message string
	out     io.Writer

	mu        sync.Mutex
	isRunning bool
	stop      chan struct{}
	done      chan struct{}
}

// NewSpinner creates a spinner that writes to stderr, keeping stdout
// clean for piped output.
func NewSpinner(message string) *Spinner {
	return &Spinner{message: message, out: os.Stderr}
}

// WithWriter redirects spinner output, for tests.
func (s *Spinner) WithWriter(w io.Writer) *Spinner {
	s.out = w
	return s
}

// Start begins the animation. Starting a running spinner is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()

		frame := 0
		for {
			select {
			case <-stop:
				// Clear the spinner line.
				fmt.Fprintf(s.out, "\r%*s\r", len(s.message)+2, "")
				return
			case <-ticker.C:
				fmt.Fprintf(s.out, "\r%s %s", spinnerFrames[frame%len(spinnerFrames)], s.message)
				frame++
			}
		}
	}(s.stop, s.done)
}

// Stop halts the animation and clears the line. Stopping a stopped
// spinner is a no-op.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.isRunning = false
	close(s.stop)
	<-s.done
}
