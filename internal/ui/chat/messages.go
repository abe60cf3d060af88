// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// messages.go - Bubble Tea message types for the chat surface.
package chat

import (
	"time"

	"github.com/jeranaias/relay-tui/internal/convo"
)

// frameMsg drives the capped-rate render loop while a stream is active.
type frameMsg time.Time

// streamDoneMsg reports that a send's event stream ended, successfully or
// not. The stream carries the assembler whose final snapshot becomes the
// transcript entry.
type streamDoneMsg struct {
	stream *stream
	err    error
}

// conversationsMsg delivers the backend's conversation list.
type conversationsMsg struct {
	list []convo.Conversation
	err  error
}

// historyMsg delivers stored messages for one conversation.
type historyMsg struct {
	convID string
	stored []convo.StoredMessage
	err    error
}

// deletedMsg reports a backend conversation delete.
type deletedMsg struct {
	convID string
	err    error
}

// noticeExpireMsg clears a transient status bar notice.
type noticeExpireMsg struct {
	id int
}
