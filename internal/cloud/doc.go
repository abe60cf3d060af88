// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud implements the client for the hosted Relay API.
//
// The client covers two transports plus the thin collaborator endpoints:
//
//   - Send opens one streaming request per user message, decodes the
//     typed event protocol (text deltas, tool lifecycle, data artifacts)
//     and forwards each event to a message assembler. On a clean finish
//     it writes the output cache and asks for a conversation refresh; on
//     cancellation it keeps the assembled parts but skips the cache.
//   - RawStream decodes the legacy line-delimited completion format
//     (text / complete / error records) for the REPL surface.
//   - Conversation CRUD, history fetch, and file upload are plain JSON
//     requests with bounded retries.
//
// Authorization comes from a TokenSource consulted per request; the
// client never stores credentials itself.
package cloud
