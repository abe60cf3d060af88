// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// statusbar.go - Bottom status bar for the chat surface.
package components

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/relay-tui/internal/ui/styles"
)

// StatusBarState is everything the status bar displays.
type StatusBarState struct {
	ConversationTitle string
	Streaming         bool
	TokenCount        int
	ShowTokens        bool
	Notice            string // transient message, shown instead of shortcuts
}

// RenderStatusBar renders the one-line status bar for the given width.
func RenderStatusBar(theme *styles.Theme, width int, s StatusBarState) string {
	var left strings.Builder

	title := s.ConversationTitle
	if title == "" {
		title = "new conversation"
	}
	left.WriteString(theme.StatusValue.Render(runewidth.Truncate(title, width/3, "...")))

	if s.Streaming {
		left.WriteString("  " + theme.StatusKey.Render("streaming"))
	}
	if s.ShowTokens && s.TokenCount > 0 {
		left.WriteString("  " + theme.StatusKey.Render(fmt.Sprintf("%d tok", s.TokenCount)))
	}

	var right string
	if s.Notice != "" {
		right = theme.StatusValue.Render(s.Notice)
	} else {
		right = shortcuts(theme, s.Streaming)
	}

	leftStr := left.String()
	gap := width - runewidth.StringWidth(stripANSI(leftStr)) - runewidth.StringWidth(stripANSI(right)) - 2
	if gap < 1 {
		gap = 1
	}

	return theme.StatusBar.Width(width).Render(leftStr + strings.Repeat(" ", gap) + right)
}

// shortcuts renders the context-sensitive shortcut hints.
func shortcuts(theme *styles.Theme, streaming bool) string {
	pairs := [][2]string{
		{"ctrl+o", "conversations"},
		{"ctrl+n", "new"},
		{"ctrl+q", "quit"},
	}
	if streaming {
		pairs = [][2]string{
			{"esc", "cancel"},
			{"ctrl+q", "quit"},
		}
	}

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, theme.ShortcutKey.Render(p[0])+" "+theme.ShortcutDesc.Render(p[1]))
	}
	return strings.Join(parts, theme.ShortcutDesc.Render(" · "))
}
