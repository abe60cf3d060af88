// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the full-screen Bubble Tea chat surface.
//
// One Model owns the viewport, input area, conversation list, and the set
// of in-flight streams. Sends resolve the active conversation id through
// the registry before dispatch, so a switch during streaming never
// retargets a reply. While a stream runs, the view polls the assembler's
// snapshot on a capped frame tick; the RenderGate drops frames whose
// rendered content is unchanged.
package chat
