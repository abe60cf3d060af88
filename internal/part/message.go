// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package part

import "time"

// =============================================================================
// MESSAGE
// =============================================================================

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status tracks a message through streaming assembly.
type Status string

// Assembly states. StatusSubmitted covers the window between dispatching a
// send and the first decoded event.
const (
	StatusSubmitted Status = "submitted"
	StatusStreaming Status = "streaming"
	StatusDone      Status = "done"
	StatusError     Status = "error"
)

// Message is an ordered Part sequence with identity and role. Parts grow
// while the message is streaming; order is arrival order and is preserved.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	Parts     []Part    `json:"-"`

	// Content is the flat text fallback for messages that were never
	// decomposed into parts.
	Content string `json:"content,omitempty"`

	Status    Status `json:"status,omitempty"`
	ErrorText string `json:"error_text,omitempty"`
}

// Clone returns a deep copy of the message, including its Parts.
func (m *Message) Clone() Message {
	c := *m
	c.Parts = CloneParts(m.Parts)
	return c
}

// Text concatenates the message's text parts, falling back to the flat
// Content field when no parts exist.
func (m Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var out string
	for _, p := range m.Parts {
		if t, ok := p.(*TextPart); ok {
			out += t.Content
		}
	}
	return out
}

// FindTool returns the tool invocation with the given call id, if any.
// At most one record exists per call id within a message.
func (m *Message) FindTool(callID string) (int, Part) {
	for i, p := range m.Parts {
		switch v := p.(type) {
		case *ToolPart:
			if v.CallID == callID {
				return i, v
			}
		case *DynamicToolPart:
			if v.CallID == callID {
				return i, v
			}
		}
	}
	return -1, nil
}
