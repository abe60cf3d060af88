// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the relay-tui
// terminal UI: an adaptive color palette and a Theme of lipgloss styles
// shared by the chat surface and its components. Colors are declared as
// AdaptiveColor pairs so the same theme works on light and dark terminals.
package styles
