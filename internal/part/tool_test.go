// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package part

import (
	"encoding/json"
	"testing"
)

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestStartToolCreatesRecord(t *testing.T) {
	input := json.RawMessage(`{"city":"NYC"}`)
	rec := StartTool(nil, "t1", "get_weather", input)

	if rec.CallID != "t1" {
		t.Errorf("CallID = %q, want 't1'", rec.CallID)
	}
	if rec.Name != "get_weather" {
		t.Errorf("Name = %q, want 'get_weather'", rec.Name)
	}
	if rec.State != StateInputAvailable {
		t.Errorf("State = %q, want %q", rec.State, StateInputAvailable)
	}
}

func TestStartToolWithoutInput(t *testing.T) {
	rec := StartTool(nil, "t1", "get_weather", nil)

	if rec.State != StateInputStreaming {
		t.Errorf("State = %q, want %q", rec.State, StateInputStreaming)
	}
}

func TestResolveToolOutput(t *testing.T) {
	rec := StartTool(nil, "t1", "get_weather", json.RawMessage(`{"city":"NYC"}`))
	rec = ResolveTool(rec, json.RawMessage(`{"temp":72}`), "")

	if rec.State != StateOutputAvailable {
		t.Errorf("State = %q, want %q", rec.State, StateOutputAvailable)
	}
	if string(rec.Output) != `{"temp":72}` {
		t.Errorf("Output = %s", rec.Output)
	}
}

func TestResolveToolError(t *testing.T) {
	rec := StartTool(nil, "t1", "get_weather", json.RawMessage(`{}`))
	rec = ResolveTool(rec, nil, "upstream timeout")

	if rec.State != StateOutputError {
		t.Errorf("State = %q, want %q", rec.State, StateOutputError)
	}
	if rec.ErrorText != "upstream timeout" {
		t.Errorf("ErrorText = %q", rec.ErrorText)
	}
}

// Terminal states absorb all later events, including replayed results.
func TestTerminalStateIsMonotonic(t *testing.T) {
	rec := StartTool(nil, "t1", "get_weather", json.RawMessage(`{"city":"NYC"}`))
	rec = ResolveTool(rec, json.RawMessage(`{"temp":72}`), "")

	// Duplicate result with different output must be dropped.
	after := ResolveTool(rec, json.RawMessage(`{"temp":99}`), "")
	if string(after.Output) != `{"temp":72}` {
		t.Errorf("duplicate result applied: Output = %s", after.Output)
	}
	if after.State != StateOutputAvailable {
		t.Errorf("State = %q, want %q", after.State, StateOutputAvailable)
	}

	// A late error result must not flip the state either.
	after = ResolveTool(after, nil, "late failure")
	if after.State != StateOutputAvailable {
		t.Errorf("late error applied: State = %q", after.State)
	}

	// Nor may a replayed start reset a terminal record.
	after = StartTool(after, "t1", "get_weather", json.RawMessage(`{"city":"LA"}`))
	if after.State != StateOutputAvailable {
		t.Errorf("replayed start applied: State = %q", after.State)
	}
	if string(after.Input) != `{"city":"NYC"}` {
		t.Errorf("replayed start overwrote input: %s", after.Input)
	}
}

func TestTerminalHelper(t *testing.T) {
	cases := []struct {
		state ToolState
		want  bool
	}{
		{StateInputStreaming, false},
		{StateInputAvailable, false},
		{StateOutputAvailable, true},
		{StateOutputError, true},
	}

	for _, tc := range cases {
		if got := tc.state.Terminal(); got != tc.want {
			t.Errorf("Terminal(%q) = %v, want %v", tc.state, got, tc.want)
		}
	}
}
