// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package part defines the message content model for relay-tui.
//
// A chat message is an ordered sequence of Parts. Each Part is one typed
// unit of content: plain text, model reasoning, a source reference, a file
// attachment, a tool invocation, or a data artifact produced by the backend.
// The set of Part kinds is closed; code that switches on PartType can rely
// on exhaustiveness.
//
// # Key Types
//
//   - Part: the sealed union of content kinds
//   - Message: an ordered Part sequence with role and status
//   - ToolState: the tool invocation lifecycle
//   - ToolRegistry: maps known tool names to renderers
//
// Tool invocations follow a strict lifecycle: input-streaming,
// input-available, then exactly one of output-available or output-error.
// The terminal states absorb any late or duplicate events.
package part
