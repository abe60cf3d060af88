// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the chat surface. It detects the
// terminal's color capability once at startup and the styles adapt to the
// background via AdaptiveColor.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions, updated on resize
	Width  int
	Height int

	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderInfo  lipgloss.Style

	// Message rendering
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageBody    lipgloss.Style
	Reasoning      lipgloss.Style
	ToolRunning    lipgloss.Style
	ToolDone       lipgloss.Style
	ToolFailed     lipgloss.Style
	SourceRef      lipgloss.Style
	Timestamp      lipgloss.Style

	// Input area
	InputPrompt lipgloss.Style
	InputHint   lipgloss.Style

	// Status bar
	StatusBar    lipgloss.Style
	StatusKey    lipgloss.Style
	StatusValue  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// Spinner / thinking indicator
	Spinner  lipgloss.Style
	Thinking lipgloss.Style

	// Error banner
	ErrorBox     lipgloss.Style
	ErrorTitle   lipgloss.Style
	ErrorMessage lipgloss.Style
	ErrorHint    lipgloss.Style

	// Conversation list pane
	ListBox          lipgloss.Style
	ListTitle        lipgloss.Style
	ListItem         lipgloss.Style
	ListItemSelected lipgloss.Style
	ListItemActive   lipgloss.Style
}

// NewTheme builds the theme from the current terminal environment.
func NewTheme() *Theme {
	profile := termenv.ColorProfile()
	isDark := termenv.HasDarkBackground()

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: profile,
		Width:        80,
		Height:       24,
	}

	t.Header = lipgloss.NewStyle().
		Background(SurfaceBright).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)
	t.HeaderInfo = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.UserLabel = lipgloss.NewStyle().
		Foreground(UserLabel).
		Bold(true)
	t.AssistantLabel = lipgloss.NewStyle().
		Foreground(AssistantLabel).
		Bold(true)
	t.MessageBody = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.Reasoning = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
	t.ToolRunning = lipgloss.NewStyle().
		Foreground(Amber)
	t.ToolDone = lipgloss.NewStyle().
		Foreground(ToolSuccessFg)
	t.ToolFailed = lipgloss.NewStyle().
		Foreground(ToolErrorFg)
	t.SourceRef = lipgloss.NewStyle().
		Foreground(Cyan).
		Underline(true)
	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.InputHint = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceBright).
		Padding(0, 1)
	t.StatusKey = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.StatusValue = lipgloss.NewStyle().
		Foreground(TextSecondary)
	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)
	t.Thinking = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.ErrorBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 1)
	t.ErrorTitle = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)
	t.ErrorMessage = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.ErrorHint = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.ListBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.ListTitle = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)
	t.ListItem = lipgloss.NewStyle().
		Foreground(TextSecondary)
	t.ListItemSelected = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Purple)
	t.ListItemActive = lipgloss.NewStyle().
		Foreground(Emerald)

	return t
}

// SetSize records the terminal dimensions for styles that depend on width.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}
