// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the chatspend command-line interface.
//
// The package provides an interactive REPL (chat), a one-shot question
// command (ask), and small informational commands (models, config,
// version). Replies stream to the terminal while a cost listener meters
// token spend for every turn.
package cli
