// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat contains the conversation session store and its domain types.
package chat

import (
	"errors"
	"time"
)

// ErrNegativeCost is returned when a negative amount is appended to the
// cost log. Cost entries are non-negative USD amounts.
var ErrNegativeCost = errors.New("cost entries must be non-negative")

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session holds the ordered message log and the parallel per-turn cost log
// for one user session.
//
// The two logs obey a positional correspondence: the i-th cost entry belongs
// to the i-th assistant message in log order. Callers maintain it by
// appending a cost once, immediately after appending an assistant message.
// ClearConversation is the only operation that shrinks either log, and it
// clears both together.
//
// A session is driven by a single goroutine (one turn at a time); the Store
// guards concurrent lookup, the session itself does not lock.
type Session struct {
	id           string
	createdAt    time.Time
	updatedAt    time.Time
	systemPrompt string

	messages []Message
	costs    []float64

	model     string
	maxTokens int
	urlInput  string
}

// =============================================================================
// MESSAGE LOG
// =============================================================================

// AppendMessage appends a message to the log. Never reorders or deduplicates.
func (s *Session) AppendMessage(msg Message) {
	s.messages = append(s.messages, msg)
	s.updatedAt = time.Now()
}

// Messages returns a copy of the message log in append order.
func (s *Session) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// MessageCount returns the number of messages in the log.
func (s *Session) MessageCount() int {
	return len(s.messages)
}

// AssistantCount returns the number of assistant messages in the log.
func (s *Session) AssistantCount() int {
	count := 0
	for _, msg := range s.messages {
		switch msg.Role {
		case RoleAssistant:
			count++
		case RoleSystem, RoleUser:
			// not cost-bearing
		}
	}
	return count
}

// Seeded reports whether the log holds its seed system message.
func (s *Session) Seeded() bool {
	return len(s.messages) > 0 && s.messages[0].Role == RoleSystem
}

// =============================================================================
// COST LOG
// =============================================================================

// AppendCost appends a per-turn USD cost. The caller contract is one append,
// immediately after appending an assistant message, so the i-th entry stays
// aligned with the i-th assistant message.
func (s *Session) AppendCost(cost float64) error {
	if cost < 0 {
		return ErrNegativeCost
	}
	s.costs = append(s.costs, cost)
	s.updatedAt = time.Now()
	return nil
}

// Costs returns a copy of the cost log in append order.
func (s *Session) Costs() []float64 {
	out := make([]float64, len(s.costs))
	copy(out, s.costs)
	return out
}

// TotalCost returns the sum of the cost log in USD.
func (s *Session) TotalCost() float64 {
	total := 0.0
	for _, c := range s.costs {
		total += c
	}
	return total
}

// CostForAssistant returns the cost paired with the i-th assistant message
// (0-based, in log order), and whether such an entry exists.
func (s *Session) CostForAssistant(i int) (float64, bool) {
	if i < 0 || i >= len(s.costs) {
		return 0, false
	}
	return s.costs[i], true
}

// =============================================================================
// HISTORY PAIRING
// =============================================================================

// Entry is one message of the log together with its paired cost, when the
// message is an assistant reply that has one.
type Entry struct {
	Message Message
	Cost    float64
	HasCost bool
}

// Entries walks the log pairing each assistant message with its positional
// cost entry. Render sites consume this so cost pairing logic lives in one
// place.
func (s *Session) Entries() []Entry {
	entries := make([]Entry, 0, len(s.messages))
	assistantIdx := 0
	for _, msg := range s.messages {
		entry := Entry{Message: msg}
		switch msg.Role {
		case RoleAssistant:
			if cost, ok := s.CostForAssistant(assistantIdx); ok {
				entry.Cost = cost
				entry.HasCost = true
			}
			assistantIdx++
		case RoleSystem, RoleUser:
			// no cost entry
		}
		entries = append(entries, entry)
	}
	return entries
}

// =============================================================================
// CONVERSATION LIFECYCLE
// =============================================================================

// ClearConversation atomically empties both logs and reseeds the message log
// with the session's system message. This is the only shrinking operation.
func (s *Session) ClearConversation() {
	s.messages = s.messages[:0]
	s.costs = s.costs[:0]
	s.messages = append(s.messages, NewSystemMessage(s.systemPrompt))
	s.updatedAt = time.Now()
}

// =============================================================================
// SESSION SETTINGS
// =============================================================================

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// SelectModel stores the active model identifier. Selecting a model does not
// retroactively affect already-computed costs.
func (s *Session) SelectModel(model string) {
	s.model = model
	s.updatedAt = time.Now()
}

// CurrentModel returns the active model identifier.
func (s *Session) CurrentModel() string {
	return s.model
}

// SetMaxTokens stores the max-context-token budget.
func (s *Session) SetMaxTokens(n int) {
	s.maxTokens = n
}

// MaxTokens returns the max-context-token budget.
func (s *Session) MaxTokens() int {
	return s.maxTokens
}

// SystemPrompt returns the system message used to seed the conversation.
func (s *Session) SystemPrompt() string {
	return s.systemPrompt
}

// SetURLInput stores the pending URL input.
func (s *Session) SetURLInput(url string) {
	s.urlInput = url
}

// URLInput returns the pending URL input.
func (s *Session) URLInput() string {
	return s.urlInput
}

// ClearURLInput resets the pending URL input.
func (s *Session) ClearURLInput() {
	s.urlInput = ""
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// UpdatedAt returns when the session last changed.
func (s *Session) UpdatedAt() time.Time {
	return s.updatedAt
}
