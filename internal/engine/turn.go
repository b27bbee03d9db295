// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine runs metered conversation turns against a chat model client.
package engine

import (
	"context"

	"github.com/mfaulds/chatspend/internal/chat"
	"github.com/mfaulds/chatspend/internal/openai"
	"github.com/mfaulds/chatspend/internal/telemetry"
	"github.com/mfaulds/chatspend/internal/tokenizer"
)

// =============================================================================
// ENGINE
// =============================================================================

// Completer is the model client surface the engine needs: one streaming and
// one blocking completion call. Retries, auth, and transport policy live
// behind it.
type Completer interface {
	Chat(ctx context.Context, req openai.ChatRequest) (*openai.ChatResult, error)
	ChatStream(ctx context.Context, req openai.ChatRequest, listeners ...openai.StreamListener) (*openai.ChatResult, error)
}

// Engine orchestrates one conversation turn: it attaches cost accounting to
// a model call and commits the (user message, assistant message, cost)
// triple to the session only when the call succeeds.
type Engine struct {
	client Completer

	// WarnFunc receives non-fatal warnings (tokenizer fallback, family
	// counting approximations). Nil silences them.
	WarnFunc func(format string, args ...any)
}

// New creates an engine over the given model client.
func New(client Completer) *Engine {
	return &Engine{client: client}
}

func (e *Engine) warn(format string, args ...any) {
	if e.WarnFunc != nil {
		e.WarnFunc(format, args...)
	}
}

// =============================================================================
// TURN RESULT
// =============================================================================

// TurnResult reports the outcome of one successful turn.
type TurnResult struct {
	// Answer is the assistant's full reply text.
	Answer string

	// Cost is the USD cost of this turn, as appended to the session.
	Cost float64

	// Meter is the spent accumulator for this turn, for summary display.
	// It must not be reused for another request.
	Meter *telemetry.CostMeter

	// Approximate is true when token counting used a fallback encoding,
	// making Cost an estimate.
	Approximate bool
}

// =============================================================================
// TURN PROCESSING
// =============================================================================

// prepare validates a turn's model up front and builds its metering pieces.
// Nothing is committed to the session here, so a failed turn leaves the
// conversation unchanged and ready for a retry.
func (e *Engine) prepare(session *chat.Session) (*telemetry.CostMeter, *tokenizer.Encoder, error) {
	model := session.CurrentModel()

	meter, err := telemetry.NewCostMeter(model)
	if err != nil {
		return nil, nil, err
	}

	enc := tokenizer.New(model)
	enc.SetWarnFunc(e.warn)
	if err := enc.SupportsMessages(); err != nil {
		return nil, nil, err
	}
	if enc.Approximate() {
		e.warn("no exact tokenizer for model %q; using cl100k_base encoding, costs are approximate", model)
	}

	return meter, enc, nil
}

// RunTurn processes one user turn over a streaming completion.
//
// The cost listener is registered first so accounting observes every event;
// the extra listeners (display, progress) follow in the order given. On any
// error — unknown model, unsupported tokenization, transport failure,
// interrupted stream — the session's logs are untouched and no cost is
// recorded, even though the abandoned meter may have counted tokens.
func (e *Engine) RunTurn(ctx context.Context, session *chat.Session, input string, listeners ...openai.StreamListener) (*TurnResult, error) {
	meter, enc, err := e.prepare(session)
	if err != nil {
		return nil, err
	}

	userMsg := chat.NewUserMessage(input)
	req := buildRequest(session, input)

	costListener := telemetry.NewCostListener(meter, enc)
	all := append([]openai.StreamListener{costListener}, listeners...)

	result, err := e.client.ChatStream(ctx, req, all...)
	if err != nil {
		return nil, err
	}
	if err := costListener.Err(); err != nil {
		return nil, err
	}

	return commitTurn(session, userMsg, result.Content, meter, enc)
}

// RunTurnBlocking processes one user turn over a non-streaming completion.
// The meter never observes stream events on this path, so it is fed post hoc
// from the full prompt and response text.
func (e *Engine) RunTurnBlocking(ctx context.Context, session *chat.Session, input string) (*TurnResult, error) {
	meter, enc, err := e.prepare(session)
	if err != nil {
		return nil, err
	}

	userMsg := chat.NewUserMessage(input)
	req := buildRequest(session, input)

	result, err := e.client.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := telemetry.MeterCompletion(meter, enc, req.Messages, result.Content); err != nil {
		return nil, err
	}

	return commitTurn(session, userMsg, result.Content, meter, enc)
}

// commitTurn appends the turn's messages and cost to the session as a unit.
func commitTurn(session *chat.Session, userMsg chat.Message, answer string, meter *telemetry.CostMeter, enc *tokenizer.Encoder) (*TurnResult, error) {
	cost := meter.TotalCost()

	session.AppendMessage(userMsg)
	session.AppendMessage(chat.NewAssistantMessage(answer))
	if err := session.AppendCost(cost); err != nil {
		return nil, err
	}

	return &TurnResult{
		Answer:      answer,
		Cost:        cost,
		Meter:       meter,
		Approximate: enc.Approximate(),
	}, nil
}

// =============================================================================
// REQUEST BUILDING
// =============================================================================

// buildRequest assembles the wire request for one turn: the session history
// plus the new user message, the session's model, and its completion cap.
func buildRequest(session *chat.Session, input string) openai.ChatRequest {
	return openai.ChatRequest{
		Model:     session.CurrentModel(),
		Messages:  append(toWireMessages(session.Messages()), openai.NewUserMessage(input)),
		MaxTokens: session.MaxTokens(),
	}
}

// toWireMessages converts session messages to the client's wire shape.
func toWireMessages(messages []chat.Message) []openai.Message {
	out := make([]openai.Message, 0, len(messages)+1)
	for _, msg := range messages {
		var role string
		switch msg.Role {
		case chat.RoleSystem:
			role = openai.RoleSystem
		case chat.RoleUser:
			role = openai.RoleUser
		case chat.RoleAssistant:
			role = openai.RoleAssistant
		default:
			continue
		}
		out = append(out, openai.Message{Role: role, Content: msg.Content})
	}
	return out
}
