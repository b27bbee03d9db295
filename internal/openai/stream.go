// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openai provides the HTTP client for OpenAI-compatible chat APIs.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event from the stream and returns its data.
// Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() ([]byte, error) {
	var dataLines [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				// If we have data, return it before EOF
				if len(dataLines) > 0 {
					return bytes.Join(dataLines, []byte("\n")), nil
				}
				return nil, io.EOF
			}
			return nil, err
		}

		// Trim trailing newline and carriage return
		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("data:")) {
			dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
		}
		// Ignore other fields (event:, id:, retry:, comments starting with :)
	}
}

// =============================================================================
// STREAM PROCESSING
// =============================================================================

// processStream reads the SSE stream, forwarding each content fragment to the
// listeners and accumulating the full reply. OnEnd fires only when the stream
// terminates cleanly ([DONE] marker, finish reason, or server EOF).
func (c *Client) processStream(ctx context.Context, body io.Reader, listeners []StreamListener) (*ChatResult, error) {
	reader := NewSSEReader(body)

	result := &ChatResult{}
	var content strings.Builder

	for {
		select {
		case <-ctx.Done():
			return nil, &ClientError{Type: ErrTypeStreamInterrupted, Message: "stream cancelled", Cause: ctx.Err()}
		default:
		}

		data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, &ClientError{Type: ErrTypeStreamInterrupted, Message: "stream interrupted", Cause: err}
		}

		// [DONE] signals the end of the stream
		if bytes.Equal(data, []byte("[DONE]")) {
			break
		}

		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Skip malformed chunks
			continue
		}

		if chunk.Model != "" {
			result.Model = chunk.Model
		}

		if fragment := chunk.GetContent(); fragment != "" {
			content.WriteString(fragment)
			for _, l := range listeners {
				l.OnToken(fragment)
			}
		}

		if reason := chunk.GetFinishReason(); reason != "" {
			result.FinishReason = reason
		}
	}

	result.Content = content.String()
	for _, l := range listeners {
		l.OnEnd(result)
	}

	return result, nil
}
