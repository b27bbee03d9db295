// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openai provides the HTTP client for OpenAI-compatible chat APIs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the chat API client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotConfigured
	ErrTypeTimeout
	ErrTypeAuth
	ErrTypeModelNotFound
	ErrTypeRateLimited
	ErrTypeConnection
	ErrTypeInvalidResponse
	ErrTypeStreamInterrupted
)

// Sentinel errors for easy checking.
var (
	ErrNotConfigured = &ClientError{Type: ErrTypeNotConfigured, Message: "API key is not configured"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the chat API client.
type ClientConfig struct {
	// BaseURL is the API base URL (default: https://api.openai.com/v1)
	BaseURL string

	// APIKey is the bearer token sent with every request.
	APIKey string

	// Timeout for non-streaming requests (default: 60s).
	// Streaming requests are bounded by their context instead.
	Timeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: "https://api.openai.com/v1",
		Timeout: 60 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with an OpenAI-compatible chat API.
//
// The Client is safe for concurrent use. It owns transport concerns only:
// retries, auth rotation, and billing are out of scope.
type Client struct {
	config       *ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a new client with the given API key and defaults.
func NewClient(apiKey string) *Client {
	cfg := DefaultConfig()
	cfg.APIKey = apiKey
	return NewClientWithConfig(cfg)
}

// NewClientWithConfig creates a new client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		// No client timeout for streaming; cancellation comes from the
		// request context so long generations are not cut off.
		streamClient: &http.Client{},
	}
}

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// Chat sends a chat request and returns the complete response (non-streaming).
// The Stream field of the request is overridden.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	req.Stream = false

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, &ClientError{Type: ErrTypeConnection, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, c.handleErrorResponse(resp.StatusCode, respBody)
	}

	var result ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	finishReason := ""
	if len(result.Choices) > 0 {
		finishReason = result.Choices[0].FinishReason
	}

	return &ChatResult{
		Content:      result.GetContent(),
		Model:        result.Model,
		FinishReason: finishReason,
		Usage:        result.Usage,
	}, nil
}

// ChatStream performs a streaming chat completion request, delivering
// lifecycle events to every registered listener in registration order.
//
// OnStart fires once before the request is sent; OnToken fires per content
// fragment in arrival order; OnEnd fires exactly once, only when the stream
// completes successfully. On any error the partial content is lost to the
// caller but whatever the listeners already observed stands.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, listeners ...StreamListener) (*ChatResult, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	for _, l := range listeners {
		l.OnStart(req.Messages)
	}

	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, &ClientError{Type: ErrTypeConnection, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, c.handleErrorResponse(resp.StatusCode, respBody)
	}

	return c.processStream(ctx, resp.Body, listeners)
}

// handleErrorResponse maps an API error status to a typed ClientError.
func (c *Client) handleErrorResponse(status int, body []byte) error {
	var apiErr errorResponse
	msg := ""
	if err := json.Unmarshal(body, &apiErr); err == nil {
		msg = apiErr.Error.Message
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		if msg == "" {
			msg = "authentication failed"
		}
		return &ClientError{Type: ErrTypeAuth, Message: msg}
	case http.StatusNotFound:
		if msg == "" {
			return ErrModelNotFound
		}
		return &ClientError{Type: ErrTypeModelNotFound, Message: msg}
	case http.StatusTooManyRequests:
		if msg == "" {
			msg = "rate limited"
		}
		return &ClientError{Type: ErrTypeRateLimited, Message: msg}
	default:
		if msg == "" {
			msg = "chat request failed with status " + http.StatusText(status)
		}
		return &ClientError{Type: ErrTypeInvalidResponse, Message: msg}
	}
}
