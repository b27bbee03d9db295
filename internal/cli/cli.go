// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and dispatch for the chatspend CLI.

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/mfaulds/chatspend/internal/config"
	"github.com/mfaulds/chatspend/internal/pricing"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command identifies a top-level CLI command.
type Command string

const (
	CmdChat    Command = "chat"
	CmdAsk     Command = "ask"
	CmdModels  Command = "models"
	CmdConfig  Command = "config"
	CmdVersion Command = "version"
	CmdHelp    Command = "help"
)

// Parse splits os.Args style input into a command and its arguments.
// With no command, chat is the default.
func Parse(raw []string) (Command, []string) {
	if len(raw) == 0 {
		return CmdChat, nil
	}

	switch strings.ToLower(raw[0]) {
	case "chat":
		return CmdChat, raw[1:]
	case "ask":
		return CmdAsk, raw[1:]
	case "models":
		return CmdModels, raw[1:]
	case "config":
		return CmdConfig, raw[1:]
	case "version", "--version", "-v":
		return CmdVersion, raw[1:]
	case "help", "--help", "-h":
		return CmdHelp, raw[1:]
	default:
		// Flags without a command run chat with those flags
		if strings.HasPrefix(raw[0], "-") {
			return CmdChat, raw
		}
		return CmdHelp, raw
	}
}

// Run parses arguments and dispatches to the matching command handler.
func Run(raw []string) error {
	cmd, rest := Parse(raw)
	args := ParseArgs(rest)

	// --config loads an explicit config file before any command runs
	if args.ConfigPath != "" {
		cfg, err := config.LoadFromPath(args.ConfigPath)
		if err != nil {
			return err
		}
		config.SetGlobal(cfg)
	}

	switch cmd {
	case CmdChat:
		return HandleChatCommand(args)
	case CmdAsk:
		return HandleAskCommand(args)
	case CmdModels:
		return HandleModelsCommand(args)
	case CmdConfig:
		return HandleConfigCommand(args)
	case CmdVersion:
		printVersion()
		return nil
	case CmdHelp:
		printUsage()
		return nil
	default:
		printUsage()
		return nil
	}
}

// =============================================================================
// MODELS COMMAND
// =============================================================================

// HandleModelsCommand prints the known models and their per-1K-token rates.
func HandleModelsCommand(_ Args) error {
	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Known Models"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	for _, model := range pricing.Models() {
		rate, err := pricing.CostPer1K(model)
		if err != nil {
			continue
		}
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-28s", model)),
			costStyle.Render(fmt.Sprintf("$%.4f / 1K tokens", rate)))
	}

	fmt.Println()
	return nil
}

// =============================================================================
// CONFIG COMMAND
// =============================================================================

// HandleConfigCommand shows the active configuration, or writes a starter
// config file with "config init".
func HandleConfigCommand(args Args) error {
	if len(args.Positional) > 0 && strings.EqualFold(args.Positional[0], "init") {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
		if err := config.Save(config.Default()); err != nil {
			return err
		}
		fmt.Printf("%s Wrote %s\n", commandStyle.Render("[OK]"), path)
		return nil
	}

	cfg := config.Global()
	path, _ := config.ConfigPath()

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Configuration"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()
	fmt.Printf("  %s %s\n", infoStyle.Render("File:"), path)
	fmt.Printf("  %s %s\n", infoStyle.Render("Model:"), commandStyle.Render(cfg.DefaultModel))
	fmt.Printf("  %s %d\n", infoStyle.Render("Max tokens:"), cfg.MaxTokens)
	fmt.Printf("  %s %s\n", infoStyle.Render("Base URL:"), cfg.API.BaseURL)
	if cfg.API.Key != "" {
		fmt.Printf("  %s %s\n", infoStyle.Render("API key:"), commandStyle.Render("configured"))
	} else {
		fmt.Printf("  %s %s\n", infoStyle.Render("API key:"), warningStyle.Render("not set (export OPENAI_API_KEY)"))
	}
	fmt.Println()
	return nil
}

// =============================================================================
// VERSION AND USAGE
// =============================================================================

func printVersion() {
	fmt.Printf("chatspend %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}

func printUsage() {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("chatspend") + infoStyle.Render(" - terminal chat with live cost metering"))
	fmt.Println()
	fmt.Println(infoStyle.Render("Usage:"))
	fmt.Println("  chatspend [chat] [flags]      Start an interactive chat session")
	fmt.Println("  chatspend ask \"question\"      Ask a single question")
	fmt.Println("  chatspend models              List known models and rates")
	fmt.Println("  chatspend config [init]       Show or create configuration")
	fmt.Println("  chatspend version             Show version")
	fmt.Println()
	fmt.Println(infoStyle.Render("Flags:"))
	fmt.Println("  -m, --model NAME              Use specific model")
	fmt.Println("  -q, --quiet                   Suppress cost lines and banners")
	fmt.Println("  --config PATH                 Load configuration from PATH")
	fmt.Println()
}
