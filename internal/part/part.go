// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package part

import (
	"encoding/json"
)

// =============================================================================
// PART UNION
// =============================================================================

// PartType identifies one kind of message content.
type PartType string

// The closed set of Part kinds.
const (
	TypeText        PartType = "text"
	TypeReasoning   PartType = "reasoning"
	TypeSource      PartType = "source"
	TypeFile        PartType = "file"
	TypeTool        PartType = "tool"
	TypeDynamicTool PartType = "dynamic-tool"
	TypeData        PartType = "data"
)

// Part is one typed unit of message content.
//
// The union is sealed: only the types in this package implement it, so a
// type switch over the concrete pointer types covers every case.
type Part interface {
	Type() PartType
	isPart()
}

// TextPart holds a contiguous run of assistant or user text.
// During streaming, deltas accumulate into a single growing TextPart so
// downstream consumers always see one coherent block per run.
type TextPart struct {
	Content string `json:"content"`
}

// ReasoningPart holds a block of model reasoning text.
type ReasoningPart struct {
	Content string `json:"content"`
}

// SourcePart references an external source cited by the model.
type SourcePart struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// FilePart references a file produced by or attached to the message.
type FilePart struct {
	URL       string `json:"url"`
	MediaType string `json:"media_type,omitempty"`
}

// ToolPart tracks one backend tool call through its lifecycle.
type ToolPart struct {
	CallID    string          `json:"tool_call_id"`
	Name      string          `json:"tool_name"`
	State     ToolState       `json:"state"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	ErrorText string          `json:"error_text,omitempty"`
}

// DynamicToolPart tracks a tool call whose name is not in the known set.
// It shares the ToolPart lifecycle but is rendered generically.
type DynamicToolPart struct {
	CallID string          `json:"tool_call_id"`
	Name   string          `json:"tool_name"`
	State  ToolState       `json:"state"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`
}

// DataPart holds an opaque data artifact emitted by the backend.
type DataPart struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Type implements Part.
func (p *TextPart) Type() PartType        { return TypeText }
func (p *ReasoningPart) Type() PartType   { return TypeReasoning }
func (p *SourcePart) Type() PartType      { return TypeSource }
func (p *FilePart) Type() PartType        { return TypeFile }
func (p *ToolPart) Type() PartType        { return TypeTool }
func (p *DynamicToolPart) Type() PartType { return TypeDynamicTool }
func (p *DataPart) Type() PartType        { return TypeData }

func (p *TextPart) isPart()        {}
func (p *ReasoningPart) isPart()   {}
func (p *SourcePart) isPart()      {}
func (p *FilePart) isPart()        {}
func (p *ToolPart) isPart()        {}
func (p *DynamicToolPart) isPart() {}
func (p *DataPart) isPart()        {}

// =============================================================================
// CACHEABILITY
// =============================================================================

// Cacheable reports whether a Part may be written to the output cache.
//
// Only settled content qualifies: complete text, tool invocations that have
// reached a terminal state, and data artifacts. Mid-flight tool input is
// never persisted.
func Cacheable(p Part) bool {
	switch v := p.(type) {
	case *TextPart:
		return true
	case *DataPart:
		return true
	case *ToolPart:
		return v.State.Terminal()
	case *DynamicToolPart:
		return v.State.Terminal()
	default:
		return false
	}
}

// FilterCacheable returns the cacheable subset of parts, preserving order.
func FilterCacheable(parts []Part) []Part {
	out := make([]Part, 0, len(parts))
	for _, p := range parts {
		if Cacheable(p) {
			out = append(out, Clone(p))
		}
	}
	return out
}

// Clone returns a deep copy of a Part.
func Clone(p Part) Part {
	switch v := p.(type) {
	case *TextPart:
		c := *v
		return &c
	case *ReasoningPart:
		c := *v
		return &c
	case *SourcePart:
		c := *v
		return &c
	case *FilePart:
		c := *v
		return &c
	case *ToolPart:
		c := *v
		c.Input = cloneRaw(v.Input)
		c.Output = cloneRaw(v.Output)
		return &c
	case *DynamicToolPart:
		c := *v
		c.Input = cloneRaw(v.Input)
		c.Output = cloneRaw(v.Output)
		return &c
	case *DataPart:
		c := *v
		c.Payload = cloneRaw(v.Payload)
		return &c
	default:
		return p
	}
}

// CloneParts returns a deep copy of a Part sequence.
func CloneParts(parts []Part) []Part {
	if parts == nil {
		return nil
	}
	out := make([]Part, len(parts))
	for i, p := range parts {
		out[i] = Clone(p)
	}
	return out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	c := make(json.RawMessage, len(raw))
	copy(c, raw)
	return c
}

// =============================================================================
// JSON ENCODING
// =============================================================================

// envelope is the wire/disk representation of a Part. The type tag selects
// the variant; unused fields are omitted.
type envelope struct {
	Type      PartType        `json:"type"`
	Content   string          `json:"content,omitempty"`
	URL       string          `json:"url,omitempty"`
	Title     string          `json:"title,omitempty"`
	MediaType string          `json:"media_type,omitempty"`
	CallID    string          `json:"tool_call_id,omitempty"`
	Name      string          `json:"tool_name,omitempty"`
	State     ToolState       `json:"state,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	ErrorText string          `json:"error_text,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// MarshalParts encodes an ordered Part sequence as a JSON array.
func MarshalParts(parts []Part) ([]byte, error) {
	envs := make([]envelope, 0, len(parts))
	for _, p := range parts {
		envs = append(envs, toEnvelope(p))
	}
	return json.Marshal(envs)
}

// UnmarshalParts decodes a JSON array produced by MarshalParts.
// Entries with an unknown type tag are skipped, not fatal, so newer
// records remain readable by older builds.
func UnmarshalParts(data []byte) ([]Part, error) {
	var envs []envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, err
	}

	parts := make([]Part, 0, len(envs))
	for _, env := range envs {
		if p := fromEnvelope(env); p != nil {
			parts = append(parts, p)
		}
	}
	return parts, nil
}

func toEnvelope(p Part) envelope {
	switch v := p.(type) {
	case *TextPart:
		return envelope{Type: TypeText, Content: v.Content}
	case *ReasoningPart:
		return envelope{Type: TypeReasoning, Content: v.Content}
	case *SourcePart:
		return envelope{Type: TypeSource, URL: v.URL, Title: v.Title}
	case *FilePart:
		return envelope{Type: TypeFile, URL: v.URL, MediaType: v.MediaType}
	case *ToolPart:
		return envelope{
			Type:      TypeTool,
			CallID:    v.CallID,
			Name:      v.Name,
			State:     v.State,
			Input:     v.Input,
			Output:    v.Output,
			ErrorText: v.ErrorText,
		}
	case *DynamicToolPart:
		return envelope{
			Type:   TypeDynamicTool,
			CallID: v.CallID,
			Name:   v.Name,
			State:  v.State,
			Input:  v.Input,
			Output: v.Output,
		}
	case *DataPart:
		return envelope{Type: TypeData, Kind: v.Kind, Payload: v.Payload}
	default:
		return envelope{}
	}
}

func fromEnvelope(env envelope) Part {
	switch env.Type {
	case TypeText:
		return &TextPart{Content: env.Content}
	case TypeReasoning:
		return &ReasoningPart{Content: env.Content}
	case TypeSource:
		return &SourcePart{URL: env.URL, Title: env.Title}
	case TypeFile:
		return &FilePart{URL: env.URL, MediaType: env.MediaType}
	case TypeTool:
		return &ToolPart{
			CallID:    env.CallID,
			Name:      env.Name,
			State:     env.State,
			Input:     env.Input,
			Output:    env.Output,
			ErrorText: env.ErrorText,
		}
	case TypeDynamicTool:
		return &DynamicToolPart{
			CallID: env.CallID,
			Name:   env.Name,
			State:  env.State,
			Input:  env.Input,
			Output: env.Output,
		}
	case TypeData:
		return &DataPart{Kind: env.Kind, Payload: env.Payload}
	default:
		return nil
	}
}
