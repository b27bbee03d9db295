// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openai provides the HTTP client for OpenAI-compatible chat APIs.
package openai

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message represents a chat message sent to the API.
type Message struct {
	Role    string `json:"role"`           // "system", "user", "assistant"
	Name    string `json:"name,omitempty"` // optional participant name
	Content string `json:"content"`        // the message content
}

// Role string constants used on the wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ChatRequest is the request body for the /chat/completions endpoint.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// Usage holds the token accounting reported by the API for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the non-streaming response from /chat/completions.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// GetContent returns the content of the first choice.
func (r *ChatResponse) GetContent() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

// StreamChunk represents a single SSE chunk of a streaming response.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// GetContent returns the content fragment from the first choice's delta.
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// IsDone returns true if the chunk carries a finish reason.
func (c *StreamChunk) IsDone() bool {
	return c.GetFinishReason() != ""
}

// GetFinishReason returns the finish reason if streaming is complete.
func (c *StreamChunk) GetFinishReason() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].FinishReason
	}
	return ""
}

// errorResponse is the error envelope returned by the API.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// =============================================================================
// RESULT TYPE
// =============================================================================

// ChatResult is the final outcome of a completion call, streaming or not.
type ChatResult struct {
	// Content is the full assistant reply text.
	Content string

	// Model is the model identifier the server reported, when available.
	Model string

	// FinishReason is the server's finish reason ("stop", "length", ...).
	FinishReason string

	// Usage is the server-reported token accounting. Zero for streaming
	// responses that do not include usage; the metering layer counts
	// client-side in that case.
	Usage Usage
}

// =============================================================================
// STREAM LISTENER
// =============================================================================

// StreamListener observes the lifecycle of one streaming completion call.
//
// Listeners are registered per call and invoked synchronously, in
// registration order, as the transport delivers events: OnStart once before
// the request is sent, OnToken once per content fragment in arrival order,
// and OnEnd exactly once on successful completion. A call that fails before
// completing never reaches OnEnd.
//
// Accounting and display are independent listeners on the same event stream;
// neither can alter what the other observes.
type StreamListener interface {
	OnStart(messages []Message)
	OnToken(token string)
	OnEnd(result *ChatResult)
}
