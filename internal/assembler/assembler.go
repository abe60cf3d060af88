// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assembler applies a stream of protocol events to a message's
// Part sequence.
//
// One Assembler owns one in-flight assistant message. Events are applied
// strictly in arrival order; each application is a single guarded update,
// so snapshots taken for rendering never observe a torn mutation. The
// transport decodes wire records into Events and forwards them here.
package assembler

import (
	"encoding/json"
	"sync"

	"github.com/jeranaias/relay-tui/internal/part"
)

// =============================================================================
// PROTOCOL EVENTS
// =============================================================================

// EventType identifies one typed protocol event.
type EventType string

// The typed event set produced by the streaming endpoint.
const (
	EventTextDelta      EventType = "text-delta"
	EventReasoningDelta EventType = "reasoning-delta"
	EventSourceURL      EventType = "source-url"
	EventFile           EventType = "file"
	EventToolCallStart  EventType = "tool-call-start"
	EventToolResult     EventType = "tool-result"
	EventData           EventType = "data"
	EventFinish         EventType = "finish"
	EventError          EventType = "error"
)

// Usage carries token accounting from a finish event.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Event is one decoded protocol event. Fields are populated according to
// Type; the zero value of unused fields is ignored.
type Event struct {
	Type EventType `json:"type"`

	// text-delta, reasoning-delta
	Text string `json:"text,omitempty"`

	// source-url, file
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	MediaType string `json:"media_type,omitempty"`

	// tool-call-start, tool-result
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`

	// tool-result (error case), error
	ErrorText string `json:"error_text,omitempty"`

	// data
	Payload json.RawMessage `json:"payload,omitempty"`

	// finish
	Reason string `json:"reason,omitempty"`
	Usage  *Usage `json:"usage,omitempty"`
}

// dataPayload is the subset of a data event payload the assembler inspects.
// A conversation id marks the event as a pointer correction rather than an
// artifact; a kind labels the artifact for rendering.
type dataPayload struct {
	ConversationID string `json:"conversation_id"`
	Kind           string `json:"kind"`
}

// =============================================================================
// ASSEMBLER
// =============================================================================

// Assembler owns the mutable Part sequence of one in-flight message.
//
// Apply and Snapshot are safe to call from different goroutines: the
// transport applies events from its read loop while the render loop takes
// snapshots.
type Assembler struct {
	mu  sync.Mutex
	msg *part.Message

	tools *part.ToolRegistry

	// onConversationID is invoked when a data event carries a freshly
	// assigned conversation id for a conversation the backend created
	// implicitly on first send.
	onConversationID func(id string)

	finished bool
	reason   string
	usage    Usage
}

// New creates an assembler for the given message. The registry decides
// whether a tool-call-start produces a ToolPart or a DynamicToolPart; it
// may be nil, in which case every tool is dynamic. The conversation id
// hook may be nil.
func New(msg *part.Message, tools *part.ToolRegistry, onConversationID func(id string)) *Assembler {
	return &Assembler{
		msg:              msg,
		tools:            tools,
		onConversationID: onConversationID,
	}
}

// Apply mutates the message according to one protocol event.
// Events arriving after finish or error are dropped.
func (a *Assembler) Apply(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finished && ev.Type != EventFinish {
		return
	}

	switch ev.Type {
	case EventTextDelta:
		a.appendText(ev.Text)
	case EventReasoningDelta:
		a.msg.Parts = append(a.msg.Parts, &part.ReasoningPart{Content: ev.Text})
		a.markStreaming()
	case EventSourceURL:
		a.msg.Parts = append(a.msg.Parts, &part.SourcePart{URL: ev.URL, Title: ev.Title})
		a.markStreaming()
	case EventFile:
		a.msg.Parts = append(a.msg.Parts, &part.FilePart{URL: ev.URL, MediaType: ev.MediaType})
		a.markStreaming()
	case EventToolCallStart:
		a.applyToolStart(ev)
	case EventToolResult:
		a.applyToolResult(ev)
	case EventData:
		a.applyData(ev)
	case EventFinish:
		a.finishLocked(ev.Reason, ev.Usage)
	case EventError:
		a.msg.Status = part.StatusError
		a.msg.ErrorText = ev.ErrorText
		a.finished = true
	}
}

// appendText grows the trailing TextPart, or starts a new one when the
// last part is of a different kind. Deltas accumulate into a single block
// per contiguous run.
func (a *Assembler) appendText(fragment string) {
	if n := len(a.msg.Parts); n > 0 {
		if t, ok := a.msg.Parts[n-1].(*part.TextPart); ok {
			t.Content += fragment
			a.markStreaming()
			return
		}
	}
	a.msg.Parts = append(a.msg.Parts, &part.TextPart{Content: fragment})
	a.markStreaming()
}

func (a *Assembler) applyToolStart(ev Event) {
	a.markStreaming()

	idx, existing := a.msg.FindTool(ev.ToolCallID)
	if existing != nil {
		// Exactly one record per call id; route through the transition
		// function so terminal records absorb the event.
		switch v := existing.(type) {
		case *part.ToolPart:
			a.msg.Parts[idx] = part.StartTool(v, ev.ToolCallID, ev.ToolName, ev.Input)
		case *part.DynamicToolPart:
			a.msg.Parts[idx] = fromToolPart(part.StartTool(asToolPart(v), ev.ToolCallID, ev.ToolName, ev.Input))
		}
		return
	}

	rec := part.StartTool(nil, ev.ToolCallID, ev.ToolName, ev.Input)
	if a.tools.Known(ev.ToolName) {
		a.msg.Parts = append(a.msg.Parts, rec)
	} else {
		a.msg.Parts = append(a.msg.Parts, fromToolPart(rec))
	}
}

func (a *Assembler) applyToolResult(ev Event) {
	idx, existing := a.msg.FindTool(ev.ToolCallID)
	if existing == nil {
		// Result for an unknown call: nothing to update.
		return
	}

	switch v := existing.(type) {
	case *part.ToolPart:
		a.msg.Parts[idx] = part.ResolveTool(v, ev.Output, ev.ErrorText)
	case *part.DynamicToolPart:
		a.msg.Parts[idx] = fromToolPart(part.ResolveTool(asToolPart(v), ev.Output, ev.ErrorText))
	}
	a.markStreaming()
}

func (a *Assembler) applyData(ev Event) {
	var payload dataPayload
	if len(ev.Payload) > 0 {
		// Best effort; an undecodable payload is still a valid artifact.
		_ = json.Unmarshal(ev.Payload, &payload)
	}

	if payload.ConversationID != "" {
		// The backend assigned a conversation id for an implicitly
		// created conversation. Signal upward; no part is appended.
		if a.onConversationID != nil {
			a.onConversationID(payload.ConversationID)
		}
		return
	}

	kind := payload.Kind
	if kind == "" {
		kind = "data"
	}
	a.msg.Parts = append(a.msg.Parts, &part.DataPart{Kind: kind, Payload: ev.Payload})
	a.markStreaming()
}

func (a *Assembler) markStreaming() {
	if a.msg.Status == part.StatusSubmitted || a.msg.Status == "" {
		a.msg.Status = part.StatusStreaming
	}
}

// =============================================================================
// COMPLETION
// =============================================================================

// Finish marks assembly complete. Idempotent: a second finish is ignored.
func (a *Assembler) Finish() {
	a.mu.Lock()
	a.finishLocked("", nil)
	a.mu.Unlock()
}

func (a *Assembler) finishLocked(reason string, usage *Usage) {
	if a.finished {
		return
	}
	a.finished = true
	a.reason = reason
	if usage != nil {
		a.usage = *usage
	}
	if a.msg.Status != part.StatusError {
		a.msg.Status = part.StatusDone
	}
}

// Done reports whether assembly has reached finish or error.
func (a *Assembler) Done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finished
}

// FinishReason returns the reason carried by the finish event, if any.
func (a *Assembler) FinishReason() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reason
}

// TokenUsage returns the usage carried by the finish event.
func (a *Assembler) TokenUsage() Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// Snapshot returns a deep copy of the message for rendering. The copy is
// consistent: it never interleaves with a concurrent Apply.
func (a *Assembler) Snapshot() part.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.msg.Clone()
}

// MessageID returns the id of the message under assembly.
func (a *Assembler) MessageID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.msg.ID
}

// =============================================================================
// HELPERS
// =============================================================================

// asToolPart widens a dynamic record so both variants share one set of
// transition functions.
func asToolPart(d *part.DynamicToolPart) *part.ToolPart {
	return &part.ToolPart{
		CallID: d.CallID,
		Name:   d.Name,
		State:  d.State,
		Input:  d.Input,
		Output: d.Output,
	}
}

func fromToolPart(t *part.ToolPart) *part.DynamicToolPart {
	return &part.DynamicToolPart{
		CallID: t.CallID,
		Name:   t.Name,
		State:  t.State,
		Input:  t.Input,
		Output: t.Output,
	}
}
