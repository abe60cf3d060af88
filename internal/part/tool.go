// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package part

import "encoding/json"

// =============================================================================
// TOOL LIFECYCLE
// =============================================================================

// ToolState is one stage of a tool invocation's lifecycle.
type ToolState string

// Lifecycle states. StateOutputAvailable and StateOutputError are terminal:
// no event may transition an invocation out of them.
const (
	StateInputStreaming  ToolState = "input-streaming"
	StateInputAvailable  ToolState = "input-available"
	StateOutputAvailable ToolState = "output-available"
	StateOutputError     ToolState = "output-error"
)

// Terminal reports whether the state is final.
func (s ToolState) Terminal() bool {
	return s == StateOutputAvailable || s == StateOutputError
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// StartTool computes the record for a tool-call-start event.
//
// With no prior record it creates one in input-streaming, promoting to
// input-available once the call arguments are present. A prior record in a
// terminal state is returned unchanged: duplicate start delivery is a no-op.
// The function is pure; callers decide where the result is stored.
func StartTool(prev *ToolPart, callID, name string, input json.RawMessage) *ToolPart {
	if prev != nil {
		if prev.State.Terminal() {
			return prev
		}
		next := *prev
		if len(input) > 0 {
			next.Input = cloneRaw(input)
			next.State = StateInputAvailable
		}
		return &next
	}

	t := &ToolPart{
		CallID: callID,
		Name:   name,
		State:  StateInputStreaming,
	}
	if len(input) > 0 {
		t.Input = cloneRaw(input)
		t.State = StateInputAvailable
	}
	return t
}

// ResolveTool computes the record for a tool-result event.
//
// A record in input-streaming or input-available moves to output-available
// (result carried output) or output-error (result carried an error). A
// record already in a terminal state is returned unchanged, which guards
// against duplicate or out-of-order result delivery from the backend.
func ResolveTool(prev *ToolPart, output json.RawMessage, errText string) *ToolPart {
	if prev == nil {
		return nil
	}
	if prev.State.Terminal() {
		return prev
	}

	next := *prev
	if errText != "" {
		next.State = StateOutputError
		next.ErrorText = errText
	} else {
		next.State = StateOutputAvailable
		next.Output = cloneRaw(output)
	}
	return &next
}
