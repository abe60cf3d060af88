// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convo

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/relay-tui/internal/cache"
	"github.com/jeranaias/relay-tui/internal/part"
)

// =============================================================================
// PERSISTED MESSAGE SHAPE
// =============================================================================

// StoredMessage is a message as returned by the backend's history endpoint.
// The backend's stored representation is not guaranteed to carry full tool
// output fidelity, so reconstruction falls back through the local output
// cache and finally to synthesis from these fragments.
type StoredMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Parts is the full stored part sequence, when the backend kept one.
	Parts json.RawMessage `json:"parts,omitempty"`

	// ToolsUsed summarizes tool calls when stored parts are absent or
	// incomplete.
	ToolsUsed []ToolUsage `json:"tools_used,omitempty"`

	// Artifacts lists data artifacts attached to the message.
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// ToolUsage is the backend's summary of one completed tool call.
type ToolUsage struct {
	CallID string          `json:"tool_call_id"`
	Name   string          `json:"tool_name"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`
}

// Artifact is the backend's summary of one data artifact.
type Artifact struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// =============================================================================
// MERGE
// =============================================================================

// Merge combines persisted history with live assembler-produced messages
// into one ordered list with unique message ids. History keeps its
// position; live messages not present in history are appended in their
// own order. When both sides carry an id, the live message wins (it is at
// least as fresh as the stored copy).
func Merge(history []StoredMessage, live []part.Message, store *cache.Store) []part.Message {
	liveByID := make(map[string]*part.Message, len(live))
	for i := range live {
		liveByID[live[i].ID] = &live[i]
	}

	out := make([]part.Message, 0, len(history)+len(live))
	seen := make(map[string]bool, len(history)+len(live))

	for _, sm := range history {
		if sm.ID == "" || seen[sm.ID] {
			continue
		}
		seen[sm.ID] = true

		if lm, ok := liveByID[sm.ID]; ok {
			out = append(out, lm.Clone())
			continue
		}
		out = append(out, Reconstruct(sm, store))
	}

	for i := range live {
		if seen[live[i].ID] {
			continue
		}
		seen[live[i].ID] = true
		out = append(out, live[i].Clone())
	}

	return out
}

// =============================================================================
// RECONSTRUCTION
// =============================================================================

// Reconstruct rebuilds a renderable message from a persisted one.
//
// Priority order:
//  1. the backend's stored part sequence, topped up with tool parts
//     synthesized from usage metadata when none of the stored parts are
//     terminal tool invocations;
//  2. the local output cache, written at stream-finish on this device;
//  3. synthesis from fragments: tools used, artifacts, then flat text.
func Reconstruct(sm StoredMessage, store *cache.Store) part.Message {
	msg := part.Message{
		ID:        sm.ID,
		Role:      part.Role(sm.Role),
		CreatedAt: sm.CreatedAt,
		Content:   sm.Content,
		Status:    part.StatusDone,
	}

	if len(sm.Parts) > 0 {
		if parts, err := part.UnmarshalParts(sm.Parts); err == nil && len(parts) > 0 {
			if len(sm.ToolsUsed) > 0 && !hasTerminalTool(parts) {
				parts = append(synthesizeTools(sm.ToolsUsed), parts...)
			}
			msg.Parts = parts
			return msg
		}
	}

	if parts, ok := store.Get(sm.ID); ok {
		msg.Parts = parts
		return msg
	}

	msg.Parts = synthesize(sm)
	return msg
}

func hasTerminalTool(parts []part.Part) bool {
	for _, p := range parts {
		switch v := p.(type) {
		case *part.ToolPart:
			if v.State.Terminal() {
				return true
			}
		case *part.DynamicToolPart:
			if v.State.Terminal() {
				return true
			}
		}
	}
	return false
}

func synthesizeTools(used []ToolUsage) []part.Part {
	out := make([]part.Part, 0, len(used))
	for _, u := range used {
		out = append(out, &part.ToolPart{
			CallID: u.CallID,
			Name:   u.Name,
			State:  part.StateOutputAvailable,
			Input:  u.Input,
			Output: u.Output,
		})
	}
	return out
}

func synthesize(sm StoredMessage) []part.Part {
	parts := synthesizeTools(sm.ToolsUsed)
	for _, a := range sm.Artifacts {
		parts = append(parts, &part.DataPart{Kind: a.Kind, Payload: a.Payload})
	}
	if sm.Content != "" {
		parts = append(parts, &part.TextPart{Content: sm.Content})
	}
	return parts
}
