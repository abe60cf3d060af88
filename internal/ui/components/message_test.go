// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/relay-tui/internal/convo"
	"github.com/jeranaias/relay-tui/internal/part"
	"github.com/jeranaias/relay-tui/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme()
}

func TestRenderUserMessage(t *testing.T) {
	r := NewMessageRenderer(testTheme(), 80, false, nil)

	msg := part.Message{
		ID:        "msg_1",
		Role:      part.RoleUser,
		CreatedAt: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		Parts:     []part.Part{&part.TextPart{Content: "hello there"}},
	}

	out := r.Render(msg)
	if !strings.Contains(out, "You") {
		t.Errorf("expected role label, got %q", out)
	}
	if !strings.Contains(out, "hello there") {
		t.Errorf("expected message text, got %q", out)
	}
	if !strings.Contains(out, "09:30") {
		t.Errorf("expected timestamp, got %q", out)
	}
}

func TestRenderPreservesPartOrder(t *testing.T) {
	r := NewMessageRenderer(testTheme(), 80, false, nil)

	msg := part.Message{
		ID:   "msg_2",
		Role: part.RoleAssistant,
		Parts: []part.Part{
			&part.TextPart{Content: "before tool"},
			&part.ToolPart{Name: "search", State: part.StateOutputAvailable},
			&part.TextPart{Content: "after tool"},
		},
	}

	out := r.Render(msg)
	before := strings.Index(out, "before tool")
	tool := strings.Index(out, "search")
	after := strings.Index(out, "after tool")

	if before < 0 || tool < 0 || after < 0 {
		t.Fatalf("missing content in %q", out)
	}
	if !(before < tool && tool < after) {
		t.Errorf("part order not preserved: text=%d tool=%d text=%d", before, tool, after)
	}
}

func TestRenderToolStates(t *testing.T) {
	r := NewMessageRenderer(testTheme(), 80, false, nil)

	tests := []struct {
		name  string
		state part.ToolState
		want  string
	}{
		{"running", part.StateInputStreaming, "⋯"},
		{"input ready", part.StateInputAvailable, "⋯"},
		{"done", part.StateOutputAvailable, "✓"},
		{"failed", part.StateOutputError, "✗"},
	}

	for _, tt := range tests {
		msg := part.Message{
			Role: part.RoleAssistant,
			Parts: []part.Part{
				&part.ToolPart{Name: "fetch", State: tt.state, ErrorText: "boom"},
			},
		}
		out := r.Render(msg)
		if !strings.Contains(out, tt.want) {
			t.Errorf("%s: expected marker %q in %q", tt.name, tt.want, out)
		}
	}
}

// Registered tools label their annotation via the registry's renderer;
// unregistered names keep the generic label.
func TestRenderToolUsesRegisteredRenderer(t *testing.T) {
	tools := part.NewToolRegistry()
	tools.Register("lookup", func(tp *part.ToolPart) string {
		return "lookup [custom summary]"
	})
	r := NewMessageRenderer(testTheme(), 80, false, tools)

	msg := part.Message{
		Role: part.RoleAssistant,
		Parts: []part.Part{
			&part.ToolPart{Name: "lookup", State: part.StateOutputAvailable},
			&part.ToolPart{Name: "other", State: part.StateOutputAvailable},
		},
	}

	out := stripANSI(r.Render(msg))
	if !strings.Contains(out, "lookup [custom summary]") {
		t.Errorf("registered renderer not used: %q", out)
	}
	if !strings.Contains(out, "✓ other") {
		t.Errorf("unregistered tool lost generic label: %q", out)
	}
}

func TestRenderWebSearchSummaryInTranscript(t *testing.T) {
	r := NewMessageRenderer(testTheme(), 80, false, part.DefaultTools())

	msg := part.Message{
		Role: part.RoleAssistant,
		Parts: []part.Part{
			&part.ToolPart{
				Name:  "web_search",
				State: part.StateInputAvailable,
				Input: json.RawMessage(`{"query":"tide tables"}`),
			},
		},
	}

	out := stripANSI(r.Render(msg))
	if !strings.Contains(out, `web_search "tide tables"`) {
		t.Errorf("expected query summary, got %q", out)
	}
}

func TestRenderReasoningRespectsToggle(t *testing.T) {
	msg := part.Message{
		Role: part.RoleAssistant,
		Parts: []part.Part{
			&part.ReasoningPart{Content: "thinking out loud"},
			&part.TextPart{Content: "answer"},
		},
	}

	hidden := NewMessageRenderer(testTheme(), 80, false, nil).Render(msg)
	if strings.Contains(hidden, "thinking out loud") {
		t.Errorf("reasoning shown with toggle off: %q", hidden)
	}

	shown := NewMessageRenderer(testTheme(), 80, true, nil).Render(msg)
	if !strings.Contains(shown, "thinking out loud") {
		t.Errorf("reasoning hidden with toggle on: %q", shown)
	}
}

func TestRenderErrorText(t *testing.T) {
	r := NewMessageRenderer(testTheme(), 80, false, nil)

	msg := part.Message{
		Role:      part.RoleAssistant,
		Parts:     []part.Part{&part.TextPart{Content: "partial answer"}},
		ErrorText: "model overloaded",
	}

	out := r.Render(msg)
	if !strings.Contains(out, "partial answer") {
		t.Errorf("partial content missing: %q", out)
	}
	if !strings.Contains(out, "model overloaded") {
		t.Errorf("error text missing: %q", out)
	}
}

func TestToolOutputPreviewCode(t *testing.T) {
	payload, _ := json.Marshal(map[string]string{
		"code":     "package main",
		"language": "go",
	})

	out := toolOutputPreview(payload, 60)
	if !strings.Contains(stripANSI(out), "package main") {
		t.Errorf("expected highlighted code, got %q", out)
	}
}

func TestHighlightCodeTruncatesLongSnippets(t *testing.T) {
	code := strings.TrimSuffix(strings.Repeat("line\n", 40), "\n")
	out := HighlightCode(code, "text", 60)

	lines := strings.Split(out, "\n")
	if len(lines) > maxPreviewLines+1 {
		t.Errorf("expected at most %d lines plus marker, got %d", maxPreviewLines, len(lines))
	}
	if !strings.HasSuffix(out, "…") {
		t.Errorf("expected truncation marker, got %q", out)
	}
}

func TestStripANSI(t *testing.T) {
	in := "\x1b[31mred\x1b[0m text"
	if got := stripANSI(in); got != "red text" {
		t.Errorf("stripANSI = %q, want %q", got, "red text")
	}
}

func TestConversationListNavigation(t *testing.T) {
	l := NewConversationList(testTheme())
	l.SetItems([]convo.Conversation{
		{ID: "conv_a", Title: "first"},
		{ID: "conv_b", Title: "second"},
		{ID: "conv_c", Title: "third"},
	}, "conv_b")
	l.Show()

	if sel, _ := l.Selected(); sel.ID != "conv_b" {
		t.Errorf("Show should land on active, got %s", sel.ID)
	}

	l.CursorDown()
	if sel, _ := l.Selected(); sel.ID != "conv_c" {
		t.Errorf("CursorDown, got %s", sel.ID)
	}

	l.CursorDown() // at end, stays
	if sel, _ := l.Selected(); sel.ID != "conv_c" {
		t.Errorf("cursor ran past end, got %s", sel.ID)
	}

	l.CursorUp()
	l.CursorUp()
	l.CursorUp() // at start, stays
	if sel, _ := l.Selected(); sel.ID != "conv_a" {
		t.Errorf("cursor ran past start, got %s", sel.ID)
	}
}

func TestErrorBannerRetry(t *testing.T) {
	b := NewErrorBanner(testTheme())
	if b.Visible() {
		t.Fatal("banner visible before Show")
	}

	b.Show("Stream error", "connection reset", "retry me")
	if !b.Visible() || !b.CanRetry() {
		t.Error("expected visible banner with retry")
	}
	if out := b.View(80); !strings.Contains(out, "connection reset") {
		t.Errorf("banner missing message: %q", out)
	}

	b.Hide()
	if b.Visible() || b.CanRetry() {
		t.Error("Hide should clear visibility and retry input")
	}
}

func TestStatusBarContents(t *testing.T) {
	theme := testTheme()

	out := RenderStatusBar(theme, 100, StatusBarState{
		ConversationTitle: "weather chat",
		Streaming:         true,
		TokenCount:        1234,
		ShowTokens:        true,
	})

	plain := stripANSI(out)
	for _, want := range []string{"weather chat", "streaming", "1234 tok", "cancel"} {
		if !strings.Contains(plain, want) {
			t.Errorf("status bar missing %q: %q", want, plain)
		}
	}
}
