// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// recordingListener records every lifecycle event it observes. The optional
// shared log captures interleaving across multiple listeners.
type recordingListener struct {
	name      string
	sharedLog *[]string
	sharedMu  *sync.Mutex

	starts int
	tokens []string
	ends   []*ChatResult
}

func (r *recordingListener) record(event string) {
	if r.sharedLog != nil {
		r.sharedMu.Lock()
		*r.sharedLog = append(*r.sharedLog, r.name+":"+event)
		r.sharedMu.Unlock()
	}
}

func (r *recordingListener) OnStart(_ []Message) {
	r.starts++
	r.record("start")
}

func (r *recordingListener) OnToken(token string) {
	r.tokens = append(r.tokens, token)
	r.record("token:" + token)
}

func (r *recordingListener) OnEnd(result *ChatResult) {
	r.ends = append(r.ends, result)
	r.record("end")
}

func streamChunkJSON(t *testing.T, content, finishReason string) string {
	t.Helper()
	chunk := map[string]any{
		"id":    "chatcmpl-test",
		"model": "gpt-3.5-turbo",
		"choices": []map[string]any{{
			"delta":         map[string]any{"content": content},
			"finish_reason": finishReason,
		}},
	}
	data, err := json.Marshal(chunk)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func newTestClient(baseURL string) *Client {
	return NewClientWithConfig(&ClientConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
	})
}

// =============================================================================
// SSE READER TESTS
// =============================================================================

func TestSSEReader(t *testing.T) {
	input := ": comment line\n" +
		"event: message\n" +
		"data: first\n" +
		"\n" +
		"data: second\r\n" +
		"\r\n" +
		"data: [DONE]\n" +
		"\n"

	reader := NewSSEReader(strings.NewReader(input))

	want := []string{"first", "second", "[DONE]"}
	for _, expected := range want {
		data, err := reader.ReadEvent()
		if err != nil {
			t.Fatalf("ReadEvent: %v", err)
		}
		if string(data) != expected {
			t.Errorf("ReadEvent = %q, want %q", data, expected)
		}
	}

	if _, err := reader.ReadEvent(); err != io.EOF {
		t.Errorf("final ReadEvent err = %v, want io.EOF", err)
	}
}

func TestSSEReaderMultiLineData(t *testing.T) {
	input := "data: line one\ndata: line two\n\n"
	reader := NewSSEReader(strings.NewReader(input))

	data, err := reader.ReadEvent()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "line one\nline two" {
		t.Errorf("ReadEvent = %q", data)
	}
}

// =============================================================================
// NON-STREAMING TESTS
// =============================================================================

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("non-streaming request should have stream=false")
		}
		if req.Model != "gpt-3.5-turbo" {
			t.Errorf("model = %q", req.Model)
		}
		if req.MaxTokens != 128 {
			t.Errorf("max_tokens = %d, want 128", req.MaxTokens)
		}

		resp := map[string]any{
			"id":    "chatcmpl-test",
			"model": "gpt-3.5-turbo-0613",
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": "Hello!"},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Chat(context.Background(), ChatRequest{
		Model:     "gpt-3.5-turbo",
		Messages:  []Message{NewUserMessage("hi")},
		MaxTokens: 128,
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Content != "Hello!" {
		t.Errorf("Content = %q", result.Content)
	}
	if result.FinishReason != "stop" {
		t.Errorf("FinishReason = %q", result.FinishReason)
	}
	if result.Usage.TotalTokens != 15 {
		t.Errorf("Usage.TotalTokens = %d", result.Usage.TotalTokens)
	}
}

func TestChatNotConfigured(t *testing.T) {
	client := NewClient("")
	_, err := client.Chat(context.Background(), ChatRequest{Model: "gpt-4"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestChatErrorStatuses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType ErrorType
	}{
		{"unauthorized", http.StatusUnauthorized, ErrTypeAuth},
		{"forbidden", http.StatusForbidden, ErrTypeAuth},
		{"not found", http.StatusNotFound, ErrTypeModelNotFound},
		{"rate limited", http.StatusTooManyRequests, ErrTypeRateLimited},
		{"server error", http.StatusInternalServerError, ErrTypeInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprintf(w, `{"error": {"message": "boom", "type": "test"}}`)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := client.Chat(context.Background(), ChatRequest{
				Model:    "gpt-4",
				Messages: []Message{NewUserMessage("hi")},
			})
			if err == nil {
				t.Fatal("expected error")
			}

			var clientErr *ClientError
			if !errors.As(err, &clientErr) {
				t.Fatalf("err = %T, want *ClientError", err)
			}
			if clientErr.Type != tt.wantType {
				t.Errorf("error type = %d, want %d", clientErr.Type, tt.wantType)
			}
		})
	}
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestChatStream(t *testing.T) {
	fragments := []string{"Hel", "lo", "!"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("streaming request should have stream=true")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frag := range fragments {
			fmt.Fprintf(w, "data: %s\n\n", streamChunkJSON(t, frag, ""))
			flusher.Flush()
		}
		fmt.Fprintf(w, "data: %s\n\n", streamChunkJSON(t, "", "stop"))
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	listener := &recordingListener{name: "l"}

	result, err := client.ChatStream(context.Background(), ChatRequest{
		Model:    "gpt-3.5-turbo",
		Messages: []Message{NewUserMessage("hi")},
	}, listener)
	if err != nil {
		t.Fatal(err)
	}

	if result.Content != "Hello!" {
		t.Errorf("Content = %q, want Hello!", result.Content)
	}
	if result.FinishReason != "stop" {
		t.Errorf("FinishReason = %q", result.FinishReason)
	}

	if listener.starts != 1 {
		t.Errorf("OnStart fired %d times, want 1", listener.starts)
	}
	if len(listener.tokens) != len(fragments) {
		t.Fatalf("OnToken fired %d times, want %d", len(listener.tokens), len(fragments))
	}
	for i, frag := range fragments {
		if listener.tokens[i] != frag {
			t.Errorf("tokens[%d] = %q, want %q", i, listener.tokens[i], frag)
		}
	}
	if len(listener.ends) != 1 {
		t.Fatalf("OnEnd fired %d times, want 1", len(listener.ends))
	}
	if listener.ends[0].Content != "Hello!" {
		t.Errorf("OnEnd result content = %q", listener.ends[0].Content)
	}
}

// Listeners observe every event in registration order.
func TestChatStreamListenerOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", streamChunkJSON(t, "hi", ""))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	var log []string
	var mu sync.Mutex
	first := &recordingListener{name: "first", sharedLog: &log, sharedMu: &mu}
	second := &recordingListener{name: "second", sharedLog: &log, sharedMu: &mu}

	client := newTestClient(server.URL)
	if _, err := client.ChatStream(context.Background(), ChatRequest{
		Model:    "gpt-4",
		Messages: []Message{NewUserMessage("hi")},
	}, first, second); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"first:start", "second:start",
		"first:token:hi", "second:token:hi",
		"first:end", "second:end",
	}
	if len(log) != len(want) {
		t.Fatalf("event log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

// A cancelled stream surfaces as ErrTypeStreamInterrupted and never fires
// OnEnd; tokens observed before cancellation stand.
func TestChatStreamCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: %s\n\n", streamChunkJSON(t, "partial", ""))
		flusher.Flush()
		// Hold the stream open until the client gives up
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokenSeen := make(chan struct{})
	var once sync.Once
	listener := &recordingListener{name: "l"}
	cancelling := listenerFunc{
		onToken: func(string) { once.Do(func() { close(tokenSeen) }) },
	}
	go func() {
		<-tokenSeen
		cancel()
	}()

	client := newTestClient(server.URL)
	_, err := client.ChatStream(ctx, ChatRequest{
		Model:    "gpt-4",
		Messages: []Message{NewUserMessage("hi")},
	}, listener, cancelling)
	if err == nil {
		t.Fatal("expected error from cancelled stream")
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("err = %T, want *ClientError", err)
	}
	if clientErr.Type != ErrTypeStreamInterrupted {
		t.Errorf("error type = %d, want ErrTypeStreamInterrupted", clientErr.Type)
	}

	if len(listener.ends) != 0 {
		t.Error("OnEnd must not fire for an interrupted stream")
	}
	if len(listener.tokens) == 0 {
		t.Error("tokens observed before cancellation should stand")
	}
}

// listenerFunc adapts bare functions to the StreamListener interface.
type listenerFunc struct {
	onStart func([]Message)
	onToken func(string)
	onEnd   func(*ChatResult)
}

func (l listenerFunc) OnStart(messages []Message) {
	if l.onStart != nil {
		l.onStart(messages)
	}
}

func (l listenerFunc) OnToken(token string) {
	if l.onToken != nil {
		l.onToken(token)
	}
}

func (l listenerFunc) OnEnd(result *ChatResult) {
	if l.onEnd != nil {
		l.onEnd(result)
	}
}

func TestChatStreamSkipsMalformedChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprintf(w, "data: %s\n\n", streamChunkJSON(t, "ok", ""))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.ChatStream(context.Background(), ChatRequest{
		Model:    "gpt-4",
		Messages: []Message{NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Content != "ok" {
		t.Errorf("Content = %q, want ok", result.Content)
	}
}
