// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command handler for the chatspend CLI.
//
// Handles the "chatspend ask" command which sends a single question and
// prints the metered reply without entering the REPL.
//
// Command: ask
// Short:   Ask a single question
//
// Examples:
//   chatspend ask "What is a goroutine?"
//   chatspend ask --model gpt-4 "Explain channels"
//   echo "question" | chatspend ask
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mfaulds/chatspend/internal/chat"
	"github.com/mfaulds/chatspend/internal/config"
	"github.com/mfaulds/chatspend/internal/engine"
	"github.com/mfaulds/chatspend/internal/openai"
	"github.com/mfaulds/chatspend/internal/pricing"
)

// HandleAskCommand handles the "ask" command: one question, one reply.
// The reply uses the non-streaming API so piped output arrives whole.
func HandleAskCommand(args Args) error {
	cfg := config.Global()

	if cfg.API.Key == "" {
		return fmt.Errorf("no API key configured: set OPENAI_API_KEY or api.key in config")
	}

	question := strings.TrimSpace(strings.Join(args.Positional, " "))

	// Read from stdin when no question given and input is piped
	if question == "" && !IsTTY() {
		scanner := bufio.NewScanner(os.Stdin)
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		question = strings.TrimSpace(strings.Join(lines, "\n"))
	}

	if question == "" {
		return fmt.Errorf("no question given: chatspend ask \"your question\"")
	}

	store := chat.NewStore(cfg.SessionDefaults())
	session := store.Create()

	if args.Model != "" {
		if !pricing.Known(args.Model) {
			return fmt.Errorf("unknown model %q; known models: %s",
				args.Model, strings.Join(pricing.Models(), ", "))
		}
		session.SelectModel(args.Model)
	}

	client := openai.NewClientWithConfig(&openai.ClientConfig{
		BaseURL: cfg.API.BaseURL,
		APIKey:  cfg.API.Key,
		Timeout: time.Duration(cfg.API.TimeoutSecs) * time.Second,
	})

	eng := engine.New(client)
	eng.WarnFunc = func(format string, a ...any) {
		fmt.Fprintf(os.Stderr, "%s %s\n",
			warningStyle.Render("[Warning]"),
			fmt.Sprintf(format, a...))
	}

	ctx := context.Background()
	result, err := eng.RunTurnBlocking(ctx, session, question)
	if err != nil {
		return err
	}

	displayResponse(result.Answer)
	fmt.Println()

	if !args.Quiet {
		costLine := fmt.Sprintf("cost: $%.5f", result.Cost)
		if result.Approximate {
			costLine += " (approximate)"
		}
		fmt.Fprintln(os.Stderr, costStyle.Render(costLine))
	}

	return nil
}
