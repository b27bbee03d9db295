// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler for the chatspend CLI.
//
// Handles the "chatspend chat" command which provides an interactive REPL
// for conversing with an OpenAI model while metering spend per turn.
//
// Command: chat
// Short:   Start an interactive metered chat session
//
// Examples:
//   chatspend chat                      Start interactive chat (default model)
//   chatspend chat --model gpt-4        Use specific model
//   chatspend chat --quiet              Suppress cost lines
//
// Flags:
//   -m, --model NAME    Use specific model (overrides config)
//   -q, --quiet         Minimal output (no cost lines)
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /clear, /c          Clear conversation history (system prompt is kept)
//   /model [name]       Show or switch model
//   /cost               Show per-turn and total spend
//   /status, /s         Show session statistics
//   /history            Show conversation history
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel current generation
//   Ctrl+D              Exit chat
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/mfaulds/chatspend/internal/chat"
	"github.com/mfaulds/chatspend/internal/config"
	"github.com/mfaulds/chatspend/internal/engine"
	"github.com/mfaulds/chatspend/internal/openai"
	"github.com/mfaulds/chatspend/internal/pricing"
	"github.com/mfaulds/chatspend/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	// Prompt style
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	// Welcome banner style
	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	// Info style
	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	// Command style
	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	// Warning style
	warningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	// Error style
	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose)

	// Cost line style
	costStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	// Section header style
	summaryHeaderStyle = lipgloss.NewStyle().
				Foreground(styles.Cyan).
				Bold(true)
)

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatSession holds the state for an interactive chat session.
type ChatSession struct {
	// Conversation state and spend log
	Session *chat.Session

	// Turn processor
	Engine *engine.Engine

	// Configuration
	Config *config.Config
	Quiet  bool

	// Tracking
	StartTime time.Time

	// Cancel function for the current stream, shared between the REPL
	// goroutine and the signal handler goroutine.
	cancelMu sync.Mutex
	cancel   context.CancelFunc

	// Input history handler
	InputCLI *ChatCLI
}

// setCancel installs the cancel function for the turn in flight.
func (s *ChatSession) setCancel(cancel context.CancelFunc) {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	s.cancel = cancel
}

// cancelTurn cancels the turn in flight, if any, and reports whether one
// was cancelled. Safe to call from any goroutine.
func (s *ChatSession) cancelTurn() bool {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

// NewChatSession creates a new interactive chat session.
func NewChatSession(args Args, cfg *config.Config) (*ChatSession, error) {
	store := chat.NewStore(cfg.SessionDefaults())
	session := store.Create()

	// CLI arg overrides the configured model
	if args.Model != "" {
		if !pricing.Known(args.Model) {
			return nil, fmt.Errorf("unknown model %q; known models: %s",
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

	return &ChatSession{
		Session:   session,
		Engine:    eng,
		Config:    cfg,
		Quiet:     args.Quiet,
		StartTime: time.Now(),
		InputCLI:  NewChatCLI(),
	}, nil
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChatCommand handles the "chat" command with full interactive support.
func HandleChatCommand(args Args) error {
	cfg := config.Global()

	if cfg.API.Key == "" {
		return fmt.Errorf("no API key configured: set OPENAI_API_KEY or api.key in config")
	}

	session, err := NewChatSession(args, cfg)
	if err != nil {
		return err
	}

	if !session.Quiet {
		printWelcome(session)
	}

	// Ensure input history is saved on exit
	defer session.InputCLI.Close()

	// Set up signal handling for graceful Ctrl+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig == os.Interrupt || sig == syscall.SIGTERM {
				// First Ctrl+C cancels current operation
				if session.cancelTurn() {
					fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
				}
			}
		}
	}()

	// Main REPL loop using liner for input history
	for {
		input, err := session.InputCLI.ReadInput(promptStyle.Render("chatspend> "))
		if err != nil {
			if err == liner.ErrPromptAborted {
				// Ctrl+C pressed - exit gracefully
				fmt.Println()
				printExitSummary(session)
				return nil
			}
			// EOF (Ctrl+D) or other error - exit gracefully
			fmt.Println()
			printExitSummary(session)
			return nil
		}

		input = strings.TrimSpace(input)

		if input == "" {
			continue
		}

		// Handle slash commands
		if strings.HasPrefix(input, "/") {
			shouldContinue, err := handleSlashCommand(input, session)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n",
					errorStyle.Render("[Error]"),
					err)
			}
			if !shouldContinue {
				printExitSummary(session)
				return nil
			}
			continue
		}

		// Handle exit/quit without slash
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			printExitSummary(session)
			return nil
		}

		// Process the message
		if err := processMessage(session, input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n",
				errorStyle.Render("[Error]"),
				err)
		}
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// processMessage runs one metered turn and streams the reply.
func processMessage(session *ChatSession, input string) error {
	// Create cancellable context for Ctrl+C handling
	ctx, cancel := context.WithCancel(context.Background())
	session.setCancel(cancel)
	defer func() {
		session.setCancel(nil)
		cancel()
	}()

	// Render markdown on TTY for better formatting; stream raw otherwise
	useMarkdown := session.Config.UI.Markdown && IsStdoutTTY()
	display := NewDisplayListener(useMarkdown)

	startTime := time.Now()

	fmt.Println() // Space before response

	result, err := session.Engine.RunTurn(ctx, session.Session, input, display)
	if err != nil {
		return err
	}

	// Ensure newline after response
	fmt.Println()
	fmt.Println()

	if !session.Quiet && session.Config.UI.ShowCost {
		showTurnCost(session, result, time.Since(startTime))
	}

	return nil
}

// showTurnCost shows the cost line after a response.
func showTurnCost(session *ChatSession, result *engine.TurnResult, duration time.Duration) {
	meter := result.Meter

	costLine := fmt.Sprintf("cost: $%.5f", result.Cost)
	if result.Approximate {
		costLine += " (approximate)"
	}

	fmt.Fprintf(os.Stderr, "%s | $%.5f total | %s tokens | %s\n",
		costStyle.Render(costLine),
		session.Session.TotalCost(),
		formatNumber(meter.TotalTokens()),
		duration.Round(time.Millisecond))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func handleSlashCommand(cmd string, session *ChatSession) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?":
		printHelp()
		return true, nil

	case "/clear", "/c":
		session.Session.ClearConversation()
		fmt.Println(commandStyle.Render("[Conversation cleared]"))
		return true, nil

	case "/model", "/m":
		return handleModelCommand(session, args)

	case "/cost":
		printCost(session)
		return true, nil

	case "/status", "/s":
		printStatus(session)
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	case "/history":
		printHistory(session)
		return true, nil

	case "/":
		// Just "/" shows help
		printHelp()
		return true, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// handleModelCommand handles the /model command.
func handleModelCommand(session *ChatSession, args []string) (bool, error) {
	if len(args) == 0 {
		fmt.Printf("%s Current model: %s\n",
			infoStyle.Render("[Model]"),
			commandStyle.Render(session.Session.CurrentModel()))
		return true, nil
	}

	newModel := args[0]

	// A model without a pricing entry cannot be metered, so refuse the
	// switch instead of silently losing cost tracking.
	if !pricing.Known(newModel) {
		return true, fmt.Errorf("unknown model %q; known models: %s",
			newModel, strings.Join(pricing.Models(), ", "))
	}

	session.Session.SelectModel(newModel)
	fmt.Printf("%s Switched to model: %s\n",
		commandStyle.Render("[OK]"),
		newModel)

	return true, nil
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

// printWelcome prints the welcome banner.
func printWelcome(session *ChatSession) {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("chatspend interactive chat"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n",
		infoStyle.Render("Model:"),
		commandStyle.Render(session.Session.CurrentModel()))

	rate, err := pricing.CostPer1K(session.Session.CurrentModel())
	if err == nil {
		fmt.Printf("%s $%.4f / 1K tokens\n",
			infoStyle.Render("Rate:"),
			rate)
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

// printHelp prints available commands.
func printHelp() {
	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Available Commands"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/clear, /c", "Clear conversation history"},
		{"/model [name]", "Show or switch model"},
		{"/cost", "Show per-turn and total spend"},
		{"/status, /s", "Show session statistics"},
		{"/history", "Show conversation history"},
		{"/quit, /q", "Exit chat"},
	}

	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-15s", c.cmd)),
			infoStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Tip: Ctrl+C cancels current generation, Ctrl+D exits"))
	fmt.Println()
}

// printCost prints the spend breakdown for the session.
func printCost(session *ChatSession) {
	entries := session.Session.Entries()

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Session Spend"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	turn := 0
	for _, entry := range entries {
		if !entry.HasCost {
			continue
		}
		turn++
		fmt.Printf("  %d. %s  %s\n",
			turn,
			costStyle.Render(fmt.Sprintf("$%.5f", entry.Cost)),
			infoStyle.Render(entry.Message.Preview(60)))
	}

	if turn == 0 {
		fmt.Println(infoStyle.Render("  No metered turns yet"))
	}

	fmt.Println()
	fmt.Printf("  %s %s\n",
		infoStyle.Render("Total:"),
		commandStyle.Render(fmt.Sprintf("$%.5f", session.Session.TotalCost())))
	fmt.Println()
}

// printStatus prints session statistics.
func printStatus(session *ChatSession) {
	elapsed := time.Since(session.StartTime).Round(time.Second)

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Session Status"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	fmt.Printf("  %s %s\n",
		infoStyle.Render("Model:"),
		commandStyle.Render(session.Session.CurrentModel()))
	fmt.Printf("  %s %s\n",
		infoStyle.Render("Duration:"),
		elapsed.String())
	fmt.Printf("  %s %d messages (%d replies)\n",
		infoStyle.Render("History:"),
		session.Session.MessageCount(),
		session.Session.AssistantCount())
	fmt.Printf("  %s $%.5f\n",
		infoStyle.Render("Spend:"),
		session.Session.TotalCost())

	fmt.Println()
}

// printHistory prints conversation history.
func printHistory(session *ChatSession) {
	messages := session.Session.Messages()
	if len(messages) == 0 {
		fmt.Println(infoStyle.Render("[No messages yet]"))
		return
	}

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Conversation History"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 25)))
	fmt.Println()

	for i, msg := range messages {
		var role string
		switch msg.Role {
		case chat.RoleUser:
			role = lipgloss.NewStyle().Foreground(styles.Cyan).Render("You")
		case chat.RoleAssistant:
			role = lipgloss.NewStyle().Foreground(styles.Purple).Render("AI")
		case chat.RoleSystem:
			role = lipgloss.NewStyle().Foreground(styles.Amber).Render("System")
		default:
			role = msg.Role.String()
		}

		fmt.Printf("  %d. %s: %s\n", i+1, role, msg.Preview(100))
	}

	fmt.Println()
}

// printExitSummary prints the session summary on exit.
func printExitSummary(session *ChatSession) {
	// Skip if no metered turns
	if session.Session.AssistantCount() == 0 {
		fmt.Println(infoStyle.Render("Goodbye!"))
		return
	}

	elapsed := time.Since(session.StartTime).Round(time.Second)

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Session Summary"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 15)))

	fmt.Printf("  %s %d\n",
		infoStyle.Render("Turns:"),
		session.Session.AssistantCount())
	fmt.Printf("  %s $%.5f\n",
		infoStyle.Render("Spend:"),
		session.Session.TotalCost())
	fmt.Printf("  %s %s\n",
		infoStyle.Render("Duration:"),
		elapsed.String())

	fmt.Println()
	fmt.Println(infoStyle.Render("Goodbye!"))
}
