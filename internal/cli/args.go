// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Unified argument parsing for chatspend CLI commands.

package cli

import (
	"strings"
)

// =============================================================================
// ARGS
// =============================================================================

// Args holds parsed command-line arguments shared by all commands.
type Args struct {
	// Model overrides the configured default model.
	Model string

	// Quiet suppresses cost lines and banners.
	Quiet bool

	// ConfigPath loads configuration from a specific file.
	ConfigPath string

	// Positional holds the remaining positional arguments
	// (the question text for "ask").
	Positional []string
}

// ParseArgs parses raw command arguments into Args.
//
// Supported flag formats:
//
//	--flag value     Long flag with space-separated value
//	--flag=value     Long flag with equals sign
//	-f value         Short flag with space-separated value
//	--flag           Boolean flag (no value)
func ParseArgs(raw []string) Args {
	var args Args

	i := 0
	for i < len(raw) {
		arg := raw[i]

		if !strings.HasPrefix(arg, "-") {
			args.Positional = append(args.Positional, arg)
			i++
			continue
		}

		name := strings.TrimLeft(arg, "-")
		value := ""
		hasValue := false

		// Handle --flag=value format
		if idx := strings.Index(name, "="); idx >= 0 {
			value = name[idx+1:]
			name = name[:idx]
			hasValue = true
		}

		switch name {
		case "model", "m":
			if !hasValue && i+1 < len(raw) {
				value = raw[i+1]
				i++
			}
			args.Model = value

		case "config":
			if !hasValue && i+1 < len(raw) {
				value = raw[i+1]
				i++
			}
			args.ConfigPath = value

		case "quiet", "q":
			args.Quiet = true

		default:
			// Unknown flags are ignored rather than fatal so the CLI
			// stays forward compatible with newer scripts.
		}
		i++
	}

	return args
}
