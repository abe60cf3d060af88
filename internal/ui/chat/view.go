// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// view.go - Rendering for the chat surface.
package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/relay-tui/internal/ui/components"
)

// View renders the full chat surface.
func (m Model) View() string {
	if !m.ready {
		return "Starting relay-tui..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.convList.Visible() {
		// The list pane replaces the transcript while open.
		pane := m.convList.View()
		b.WriteString(lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Center, pane))
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")

	if m.banner.Visible() {
		b.WriteString(m.banner.View(m.width))
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	return b.String()
}

// renderHeader renders the one-line header.
func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("relay-tui")
	info := m.theme.HeaderInfo.Render(m.cfg.API.BaseURL)
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(info) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(title + strings.Repeat(" ", gap) + info)
}

// renderStatusBar renders the bottom status bar.
func (m Model) renderStatusBar() string {
	title := ""
	if active, ok := m.registry.Get(m.registry.ActiveID()); ok {
		title = active.Title
		if title == "" {
			title = active.ID
		}
	}

	return components.RenderStatusBar(m.theme, m.width, components.StatusBarState{
		ConversationTitle: title,
		Streaming:         m.streaming(),
		TokenCount:        m.totalTokens,
		ShowTokens:        m.cfg.UI.ShowTokens,
		Notice:            m.notice,
	})
}

// renderTranscript renders the active conversation: finished messages plus
// the live snapshot of an in-flight reply.
func (m Model) renderTranscript() string {
	msgs := m.activeTranscript()

	var blocks []string
	for i := range msgs {
		blocks = append(blocks, m.renderer.Render(msgs[i]))
	}

	if s := m.streamFor(m.registry.ActiveID()); s != nil {
		snap := s.asm.Snapshot()
		if len(snap.Parts) == 0 {
			blocks = append(blocks, m.spin.View()+" "+m.theme.Thinking.Render("thinking..."))
		} else {
			blocks = append(blocks, m.renderer.Render(snap))
		}
	}

	if len(blocks) == 0 {
		return m.renderWelcome()
	}

	return strings.Join(blocks, "\n\n")
}

// renderWelcome fills an empty transcript with a short hint.
func (m Model) renderWelcome() string {
	lines := []string{
		"",
		m.theme.HeaderTitle.Render("  relay-tui"),
		m.theme.InputHint.Render("  Chat with the Relay API from your terminal."),
		"",
		m.theme.InputHint.Render("  enter send · ctrl+o conversations · ctrl+n new · ctrl+q quit"),
	}
	return strings.Join(lines, "\n")
}
