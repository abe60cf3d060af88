// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the reusable UI pieces for the relay-tui chat
// surface: the message renderer (glamour markdown plus part annotations),
// syntax-highlighted code previews, the conversation list pane, the error
// banner, and the status bar. Components render to strings; the chat model
// owns layout and input handling.
package components
