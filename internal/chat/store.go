// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat contains the conversation session store and its domain types.
package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// DEFAULTS
// =============================================================================

// Default session settings applied when a store creates a session.
const (
	DefaultModel        = "gpt-3.5-turbo"
	DefaultSystemPrompt = "You are a helpful assistant."
	DefaultMaxTokens    = 4096
)

// Defaults holds the initial settings for newly created sessions.
type Defaults struct {
	Model        string
	SystemPrompt string
	MaxTokens    int
}

// fill applies fallback values for unset fields.
func (d Defaults) fill() Defaults {
	if d.Model == "" {
		d.Model = DefaultModel
	}
	if d.SystemPrompt == "" {
		d.SystemPrompt = DefaultSystemPrompt
	}
	if d.MaxTokens == 0 {
		d.MaxTokens = DefaultMaxTokens
	}
	return d
}

// =============================================================================
// SESSION STORE
// =============================================================================

// Store is an in-memory registry of sessions keyed by session id.
//
// The hosting environment may construct or query the store many times per
// logical turn, so creation is idempotent: a session is seeded once, when
// its id is first seen, never unconditionally. Sessions are isolated; there
// is no shared mutable state between them.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	defaults Defaults
}

// NewStore creates an empty session store with the given defaults.
func NewStore(defaults Defaults) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		defaults: defaults.fill(),
	}
}

// newSession builds a seeded session with the store's defaults.
func (st *Store) newSession(id string) *Session {
	now := time.Now()
	s := &Session{
		id:           id,
		createdAt:    now,
		updatedAt:    now,
		systemPrompt: st.defaults.SystemPrompt,
		model:        st.defaults.Model,
		maxTokens:    st.defaults.MaxTokens,
	}
	s.ClearConversation()
	return s
}

// Create creates a new seeded session under a generated id.
func (st *Store) Create() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	id := uuid.NewString()
	s := st.newSession(id)
	st.sessions[id] = s
	return s
}

// GetOrCreate returns the session for the given id, seeding a new one only
// when the id has not been seen. Calling it repeatedly with one id always
// returns the same session and never duplicates the seed message.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[id]; ok {
		return s
	}
	s := st.newSession(id)
	st.sessions[id] = s
	return s
}

// Get returns the session for the given id, if present.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	return s, ok
}

// Remove tears down the session for the given id.
func (st *Store) Remove(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.sessions, id)
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	return len(st.sessions)
}
