// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "testing"

func TestArgParserSubcommandAndFlags(t *testing.T) {
	args := NewArgParser([]string{"chat", "--raw", "--quiet=false", "--theme", "light"})

	if got := args.Subcommand(); got != "chat" {
		t.Errorf("Subcommand = %q, want chat", got)
	}
	if !args.BoolFlag("raw") {
		t.Error("expected --raw to be true")
	}
	if args.BoolFlag("quiet") {
		t.Error("expected --quiet=false to parse as false")
	}
	if got := args.Flag("theme"); got != "light" {
		t.Errorf("Flag(theme) = %q, want light", got)
	}
}

func TestArgParserPositionals(t *testing.T) {
	args := NewArgParser([]string{"config", "set", "ui.theme", "dark"})

	if args.PositionalCount() != 4 {
		t.Fatalf("PositionalCount = %d, want 4", args.PositionalCount())
	}
	if got := args.Positional(1); got != "set" {
		t.Errorf("Positional(1) = %q, want set", got)
	}
	if got := args.Positional(10); got != "" {
		t.Errorf("out-of-range positional = %q, want empty", got)
	}

	rest := args.PositionalFrom(2)
	if len(rest) != 2 || rest[0] != "ui.theme" || rest[1] != "dark" {
		t.Errorf("PositionalFrom(2) = %v", rest)
	}
}

func TestArgParserEqualsForm(t *testing.T) {
	args := NewArgParser([]string{"--lines=50"})
	if got := args.Flag("lines"); got != "50" {
		t.Errorf("Flag(lines) = %q, want 50", got)
	}
	if !args.HasFlag("lines") {
		t.Error("HasFlag(lines) = false")
	}
	if args.HasFlag("missing") {
		t.Error("HasFlag(missing) = true")
	}
}

func TestArgParserEmpty(t *testing.T) {
	args := NewArgParser(nil)
	if args.Subcommand() != "" {
		t.Errorf("Subcommand on empty args = %q", args.Subcommand())
	}
	if args.PositionalCount() != 0 {
		t.Errorf("PositionalCount on empty args = %d", args.PositionalCount())
	}
}
