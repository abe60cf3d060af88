// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// convlist.go - Conversation list pane for switching between threads.
package components

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/relay-tui/internal/convo"
	"github.com/jeranaias/relay-tui/internal/ui/styles"
)

// ConversationList is a selectable pane over the registry's conversations.
// It is shown as an overlay; selection state lives here, the registry's
// active pointer only changes when the user confirms a pick.
type ConversationList struct {
	theme    *styles.Theme
	items    []convo.Conversation
	cursor   int
	activeID string
	visible  bool
	width    int
	height   int
}

// NewConversationList creates a hidden conversation list.
func NewConversationList(theme *styles.Theme) *ConversationList {
	return &ConversationList{theme: theme, width: 40, height: 12}
}

// SetItems replaces the listed conversations, keeping the cursor in range.
func (l *ConversationList) SetItems(items []convo.Conversation, activeID string) {
	l.items = items
	l.activeID = activeID
	if l.cursor >= len(items) {
		l.cursor = len(items) - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
}

// SetSize updates the pane dimensions.
func (l *ConversationList) SetSize(width, height int) {
	if width > 20 {
		l.width = width
	}
	if height > 4 {
		l.height = height
	}
}

// Show opens the pane with the cursor on the active conversation.
func (l *ConversationList) Show() {
	l.visible = true
	for i, c := range l.items {
		if c.ID == l.activeID {
			l.cursor = i
			return
		}
	}
	l.cursor = 0
}

// Hide closes the pane.
func (l *ConversationList) Hide() { l.visible = false }

// Visible reports whether the pane is open.
func (l *ConversationList) Visible() bool { return l.visible }

// CursorUp moves the selection up.
func (l *ConversationList) CursorUp() {
	if l.cursor > 0 {
		l.cursor--
	}
}

// CursorDown moves the selection down.
func (l *ConversationList) CursorDown() {
	if l.cursor < len(l.items)-1 {
		l.cursor++
	}
}

// Selected returns the conversation under the cursor.
func (l *ConversationList) Selected() (convo.Conversation, bool) {
	if l.cursor < 0 || l.cursor >= len(l.items) {
		return convo.Conversation{}, false
	}
	return l.items[l.cursor], true
}

// View renders the pane.
func (l *ConversationList) View() string {
	var b strings.Builder
	b.WriteString(l.theme.ListTitle.Render("Conversations"))
	b.WriteString("\n")

	if len(l.items) == 0 {
		b.WriteString(l.theme.ListItem.Render("(none yet — just start typing)"))
		return l.theme.ListBox.Render(b.String())
	}

	// Window the items around the cursor so long lists stay navigable.
	visible := l.height - 3
	if visible < 1 {
		visible = 1
	}
	start := 0
	if l.cursor >= visible {
		start = l.cursor - visible + 1
	}
	end := start + visible
	if end > len(l.items) {
		end = len(l.items)
	}

	for i := start; i < end; i++ {
		c := l.items[i]
		title := c.Title
		if title == "" {
			title = c.ID
		}
		title = runewidth.Truncate(title, l.width-8, "...")

		marker := "  "
		if c.ID == l.activeID {
			marker = l.theme.ListItemActive.Render("● ")
		}

		line := marker + title
		if i == l.cursor {
			line = l.theme.ListItemSelected.Render("> " + title)
			if c.ID == l.activeID {
				line = l.theme.ListItemSelected.Render("> ● " + title)
			}
		} else {
			line = marker + l.theme.ListItem.Render(title)
		}

		b.WriteString("\n" + line)
	}

	b.WriteString("\n\n" + l.theme.ShortcutDesc.Render("enter switch · d delete · esc close"))
	return l.theme.ListBox.Render(b.String())
}
