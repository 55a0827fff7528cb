// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ranker

import (
	"sync"

	"github.com/htwebz/assistant/services/orchestrator/datatypes"
)

// maxTurnsPerSession bounds how much conversational context a session keeps.
const maxTurnsPerSession = 10

// SessionHistory tracks recent turns per session for continuity detection
// and anti-repetition.
//
// Sessions are in-memory only; history is conversational seasoning, not
// state worth persisting. Safe for concurrent use.
type SessionHistory struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
}

type sessionState struct {
	turns []datatypes.Turn

	// lastWinner is the raw top candidate of the previous turn, before any
	// anti-repetition rewrite, so consecutive repeats keep counting.
	lastWinner string
	repeats    int
}

// NewSessionHistory returns an empty history.
func NewSessionHistory() *SessionHistory {
	return &SessionHistory{sessions: make(map[string]*sessionState)}
}

// Recent returns a copy of the session's turns, oldest first. Nil for an
// unknown session.
func (h *SessionHistory) Recent(sessionID string) []datatypes.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]datatypes.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Repeats returns how many consecutive previous turns produced winner as
// the raw top candidate. Zero means the response is fresh for this session.
func (h *SessionHistory) Repeats(sessionID, winner string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[sessionID]
	if !ok || s.lastWinner != winner {
		return 0
	}
	return s.repeats
}

// Observe records a completed turn: the question, the text actually
// delivered, and the raw winning candidate used for repeat tracking.
func (h *SessionHistory) Observe(sessionID, question, delivered, winner string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[sessionID]
	if !ok {
		s = &sessionState{}
		h.sessions[sessionID] = s
	}

	if s.lastWinner == winner {
		s.repeats++
	} else {
		s.lastWinner = winner
		s.repeats = 1
	}

	s.turns = append(s.turns, datatypes.Turn{Question: question, Answer: delivered})
	if len(s.turns) > maxTurnsPerSession {
		s.turns = s.turns[len(s.turns)-maxTurnsPerSession:]
	}
}

// Forget drops a session's state. Used when a client ends a conversation.
func (h *SessionHistory) Forget(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sessionID)
}
