// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package convo tracks conversations and merges persisted history with
// live streamed messages.
//
// The Registry owns the set of known conversations and the active
// conversation pointer. The pointer is written synchronously on every
// selection change, before any asynchronous UI update, so a send
// dispatched immediately after a selection change always sees the new id.
//
// Merge combines a conversation's persisted message history with the
// messages still held by live assemblers into one ordered, id-unique
// view, reconstructing Part sequences for persisted messages from the
// best available source.
package convo
