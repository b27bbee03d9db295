// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tokenizer counts tokens for billing and context-window accounting.
package tokenizer

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UnsupportedModelError is returned when chat-message counting rules are not
// known for a model identifier.
type UnsupportedModelError struct {
	Model string
}

func (e *UnsupportedModelError) Error() string {
	return "message token counting is not implemented for model: " + e.Model
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is the minimal chat message shape the counting rules operate on.
type Message struct {
	Role    string
	Name    string // optional
	Content string
}

// =============================================================================
// OVERHEAD RULES
// =============================================================================

// overhead holds the per-message token overheads for a model family.
type overhead struct {
	perMessage int
	perName    int
}

// canonicalOverheads lists the models with exactly known overhead rules.
// The newest dated variant of each family is treated as canonical for any
// model string containing the family prefix.
var canonicalOverheads = map[string]overhead{
	"gpt-3.5-turbo-0613":     {perMessage: 3, perName: 1},
	"gpt-3.5-turbo-16k-0613": {perMessage: 3, perName: 1},
	"gpt-4-0314":             {perMessage: 3, perName: 1},
	"gpt-4-32k-0314":         {perMessage: 3, perName: 1},
	"gpt-4-0613":             {perMessage: 3, perName: 1},
	"gpt-4-32k-0613":         {perMessage: 3, perName: 1},
	// every message follows <|start|>{role/name}\n{content}<|end|>\n
	// if there's a name, the role is omitted
	"gpt-3.5-turbo-0301": {perMessage: 4, perName: -1},
}

// replyPriming is the fixed suffix cost of every chat call:
// every reply is primed with <|start|>assistant<|message|>
const replyPriming = 3

// =============================================================================
// ENCODER
// =============================================================================

// Encoder wraps a model-specific tiktoken encoding.
//
// Construction never fails: when no exact encoding exists for the model the
// encoder falls back to the general-purpose cl100k_base encoding, and when
// even that is unavailable (no cached BPE data) it degrades to a
// ~4-characters-per-token heuristic. Both degradations mark the encoder
// approximate so callers can warn that costs are estimates.
type Encoder struct {
	model       string
	enc         *tiktoken.Tiktoken
	approximate bool
	warnf       func(format string, args ...any)
}

// New creates an encoder for the given model.
func New(model string) *Encoder {
	e := &Encoder{model: model}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		e.approximate = true
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// Heuristic counting only. Still usable for rough metering.
			enc = nil
		}
	}
	e.enc = enc
	return e
}

// SetWarnFunc installs a sink for non-fatal counting warnings.
func (e *Encoder) SetWarnFunc(warnf func(format string, args ...any)) {
	e.warnf = warnf
}

// Model returns the model identifier the encoder was created for.
func (e *Encoder) Model() string {
	return e.model
}

// Approximate reports whether counts are estimates rather than exact
// (fallback encoding or heuristic in use).
func (e *Encoder) Approximate() bool {
	return e.approximate
}

func (e *Encoder) warn(format string, args ...any) {
	if e.warnf != nil {
		e.warnf(format, args...)
	}
}

// =============================================================================
// COUNTING
// =============================================================================

// CountText returns the number of tokens in the given text.
func (e *Encoder) CountText(text string) int {
	if e.enc == nil {
		// ~4 bytes per token for English; ceil division.
		if len(text) == 0 {
			return 0
		}
		return (len(text) + 3) / 4
	}
	return len(e.enc.Encode(text, nil, nil))
}

// resolveOverheads finds the overhead rules for a model. Undated family
// variants resolve to the newest dated rules of their family, with a warning
// message for the caller to surface; totally unknown models error.
func resolveOverheads(model string) (overhead, string, error) {
	if rules, ok := canonicalOverheads[model]; ok {
		return rules, "", nil
	}
	switch {
	case strings.Contains(model, "gpt-3.5-turbo"):
		return canonicalOverheads["gpt-3.5-turbo-0613"],
			"gpt-3.5-turbo may update over time; counting tokens assuming gpt-3.5-turbo-0613", nil
	case strings.Contains(model, "gpt-4"):
		return canonicalOverheads["gpt-4-0613"],
			"gpt-4 may update over time; counting tokens assuming gpt-4-0613", nil
	default:
		return overhead{}, "", &UnsupportedModelError{Model: model}
	}
}

// SupportsMessages reports whether chat-message counting rules exist for the
// encoder's model. Returns an UnsupportedModelError when they do not.
func (e *Encoder) SupportsMessages() error {
	_, _, err := resolveOverheads(e.model)
	return err
}

// CountMessages returns the number of tokens a chat request with the given
// messages consumes, including per-message structural overhead and the fixed
// reply priming suffix.
func (e *Encoder) CountMessages(msgs []Message) (int, error) {
	rules, warning, err := resolveOverheads(e.model)
	if err != nil {
		return 0, err
	}
	if warning != "" {
		e.warn("%s", warning)
	}

	total := 0
	for _, msg := range msgs {
		total += rules.perMessage
		total += e.CountText(msg.Role)
		total += e.CountText(msg.Content)
		if msg.Name != "" {
			total += e.CountText(msg.Name)
			total += rules.perName
		}
	}
	total += replyPriming
	return total, nil
}
