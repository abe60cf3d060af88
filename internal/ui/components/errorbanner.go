// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errorbanner.go - Dismissable error banner with optional retry.
package components

import (
	"strings"

	"github.com/jeranaias/relay-tui/internal/ui/styles"
)

// ErrorBanner presents a stream or request failure without leaving the chat.
// Partial content stays in the transcript; the banner offers retry when the
// failed input is known.
type ErrorBanner struct {
	theme *styles.Theme

	Title   string
	Message string

	// RetryInput is the user input that failed; empty disables retry.
	RetryInput string

	visible bool
}

// NewErrorBanner creates a hidden banner.
func NewErrorBanner(theme *styles.Theme) *ErrorBanner {
	return &ErrorBanner{theme: theme}
}

// Show displays the banner for an error.
func (b *ErrorBanner) Show(title, message, retryInput string) {
	b.Title = title
	b.Message = message
	b.RetryInput = retryInput
	b.visible = true
}

// Hide dismisses the banner.
func (b *ErrorBanner) Hide() {
	b.visible = false
	b.RetryInput = ""
}

// Visible reports whether the banner is shown.
func (b *ErrorBanner) Visible() bool { return b.visible }

// CanRetry reports whether a retry action is available.
func (b *ErrorBanner) CanRetry() bool { return b.RetryInput != "" }

// View renders the banner.
func (b *ErrorBanner) View(width int) string {
	if !b.visible {
		return ""
	}

	var body strings.Builder
	body.WriteString(b.theme.ErrorTitle.Render(b.Title))
	body.WriteString("\n")
	body.WriteString(b.theme.ErrorMessage.Render(b.Message))
	body.WriteString("\n")
	if b.CanRetry() {
		body.WriteString(b.theme.ErrorHint.Render("r retry · esc dismiss"))
	} else {
		body.WriteString(b.theme.ErrorHint.Render("esc dismiss"))
	}

	box := b.theme.ErrorBox
	if width > 10 {
		box = box.Width(width - 4)
	}
	return box.Render(body.String())
}
