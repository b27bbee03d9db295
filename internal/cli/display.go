// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// display.go - Stream listener that forwards reply fragments to the terminal.

package cli

import (
	"github.com/mfaulds/chatspend/internal/openai"
)

// DisplayListener writes a streamed reply to stdout as it arrives. It is
// registered alongside the cost listener so display and accounting observe
// the same stream independently.
//
// In markdown mode fragments are held back and the full reply is rendered
// once on completion, since partial markdown cannot be rendered correctly.
type DisplayListener struct {
	markdown bool
}

// NewDisplayListener creates a display listener. When markdown is true the
// reply is rendered as markdown on completion instead of streamed raw.
func NewDisplayListener(markdown bool) *DisplayListener {
	return &DisplayListener{markdown: markdown}
}

// OnStart implements openai.StreamListener.
func (d *DisplayListener) OnStart(_ []openai.Message) {}

// OnToken implements openai.StreamListener.
func (d *DisplayListener) OnToken(token string) {
	if !d.markdown {
		streamToStdout(token)
	}
}

// OnEnd implements openai.StreamListener.
func (d *DisplayListener) OnEnd(result *openai.ChatResult) {
	if d.markdown && result != nil {
		displayResponse(result.Content)
	}
}
