// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the line-mode commands for relay-tui.
//
// The interactive chat REPL (HandleChatCommand) streams responses from the
// Relay backend, renders assembled messages with markdown, and keeps input
// history across sessions. Terminal helpers (IsTTY, WrapText, ColorsEnabled)
// and the shared ArgParser live here too, so both the REPL and the full-screen
// UI entry point parse arguments the same way.
//
// # Usage
//
//	args := cli.NewArgParser(os.Args[1:])
//	switch args.Subcommand() {
//	case "chat":
//	    return cli.HandleChatCommand(cli.Options{RawMode: args.BoolFlag("raw")})
//	}
//
// Commands degrade gracefully when stdout is not a terminal: markdown
// rendering and colors are disabled, and commands that need interactive
// input fail with a TTYRequiredError instead of hanging.
package cli
