// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides token and cost accounting for chat requests.
package telemetry

import (
	"github.com/mfaulds/chatspend/internal/openai"
	"github.com/mfaulds/chatspend/internal/tokenizer"
)

// =============================================================================
// COST LISTENER
// =============================================================================

// CostListener feeds a CostMeter from the lifecycle events of one streaming
// completion call. It is an independent subscriber on the client's event
// stream; display rendering is a separate listener and neither observes the
// other.
//
// OnStart counts the outgoing request messages into prompt tokens, OnToken
// counts each fragment into completion tokens, and OnEnd records the
// successful request. A stream that fails never reaches OnEnd, so an
// interrupted call leaves successfulRequests at zero while keeping the
// tokens that were already generated.
type CostListener struct {
	meter *CostMeter
	enc   *tokenizer.Encoder
	err   error
}

// NewCostListener creates an accounting listener over the given meter and
// encoder. The encoder's model should already be validated with
// SupportsMessages; an unsupported model surfaces via Err after OnStart.
func NewCostListener(meter *CostMeter, enc *tokenizer.Encoder) *CostListener {
	return &CostListener{meter: meter, enc: enc}
}

// OnStart counts the request messages into prompt tokens.
func (l *CostListener) OnStart(messages []openai.Message) {
	n, err := l.enc.CountMessages(toTokenizerMessages(messages))
	if err != nil {
		l.err = err
		return
	}
	l.meter.AddPromptTokens(n)
}

// OnToken counts a single streamed fragment into completion tokens.
func (l *CostListener) OnToken(token string) {
	l.meter.AddCompletionTokens(l.enc.CountText(token))
}

// OnEnd records the completed request.
func (l *CostListener) OnEnd(_ *openai.ChatResult) {
	l.meter.AddSuccessfulRequest(1)
}

// Err returns the counting error recorded during OnStart, if any.
func (l *CostListener) Err() error {
	return l.err
}

// Meter returns the underlying meter.
func (l *CostListener) Meter() *CostMeter {
	return l.meter
}

// =============================================================================
// NON-STREAMING METERING
// =============================================================================

// MeterCompletion feeds a meter post hoc from the full prompt messages and
// completion text of a non-streaming call.
//
// Blocking calls never observe stream events, so their meter would otherwise
// stay empty and report a zero cost. Prompt counting is identical to the
// streaming path's. Completion counting is over the whole text, which can
// come out slightly below a streamed sum of per-fragment counts when
// fragment boundaries split tokens.
func MeterCompletion(meter *CostMeter, enc *tokenizer.Encoder, messages []openai.Message, completion string) error {
	n, err := enc.CountMessages(toTokenizerMessages(messages))
	if err != nil {
		return err
	}
	meter.AddPromptTokens(n)
	meter.AddCompletionTokens(enc.CountText(completion))
	meter.AddSuccessfulRequest(1)
	return nil
}

// toTokenizerMessages converts wire messages to the tokenizer's shape.
func toTokenizerMessages(messages []openai.Message) []tokenizer.Message {
	out := make([]tokenizer.Message, len(messages))
	for i, m := range messages {
		out[i] = tokenizer.Message{
			Role:    m.Role,
			Name:    m.Name,
			Content: m.Content,
		}
	}
	return out
}
