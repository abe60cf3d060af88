// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// message.go - Renders assembled chat messages for the viewport.
//
// Assistant text goes through glamour for markdown; tool invocations,
// reasoning, sources, and files render as one-line annotations in part
// order, so the transcript mirrors the order events arrived in.
package components

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/relay-tui/internal/part"
	"github.com/jeranaias/relay-tui/internal/ui/styles"
)

// MessageRenderer turns part.Message values into styled terminal text.
type MessageRenderer struct {
	theme         *styles.Theme
	width         int
	markdown      *glamour.TermRenderer
	showReasoning bool
	tools         *part.ToolRegistry
}

// NewMessageRenderer creates a renderer for the given theme and width. The
// registry supplies custom one-line summaries for known tools; it may be
// nil, in which case every tool renders generically.
func NewMessageRenderer(theme *styles.Theme, width int, showReasoning bool, tools *part.ToolRegistry) *MessageRenderer {
	r := &MessageRenderer{
		theme:         theme,
		showReasoning: showReasoning,
		tools:         tools,
	}
	r.SetWidth(width)
	return r
}

// SetWidth updates the wrap width and rebuilds the markdown renderer.
// glamour renderers are cheap to rebuild and wrap width is baked in at
// construction time.
func (r *MessageRenderer) SetWidth(width int) {
	if width < 20 {
		width = 20
	}
	r.width = width

	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err == nil {
		r.markdown = md
	}
}

// Render renders one message, including its role header line.
func (r *MessageRenderer) Render(msg part.Message) string {
	var b strings.Builder

	switch msg.Role {
	case part.RoleUser:
		b.WriteString(r.theme.UserLabel.Render("You"))
	case part.RoleAssistant:
		b.WriteString(r.theme.AssistantLabel.Render("Relay"))
	default:
		b.WriteString(r.theme.Timestamp.Render(string(msg.Role)))
	}
	if !msg.CreatedAt.IsZero() {
		b.WriteString("  " + r.theme.Timestamp.Render(msg.CreatedAt.Format("15:04")))
	}
	b.WriteString("\n")

	b.WriteString(r.renderBody(msg))

	if msg.ErrorText != "" {
		b.WriteString("\n" + r.theme.ToolFailed.Render("✗ "+msg.ErrorText))
	}

	return b.String()
}

// renderBody renders the ordered part sequence. Consecutive text parts
// are concatenated and rendered as a single markdown block.
func (r *MessageRenderer) renderBody(msg part.Message) string {
	if len(msg.Parts) == 0 {
		return r.renderText(msg.Content, msg.Role)
	}

	var b strings.Builder
	var pendingText strings.Builder

	flushText := func() {
		if pendingText.Len() == 0 {
			return
		}
		b.WriteString(r.renderText(pendingText.String(), msg.Role))
		pendingText.Reset()
	}

	for _, p := range msg.Parts {
		switch v := p.(type) {
		case *part.TextPart:
			pendingText.WriteString(v.Content)

		case *part.ReasoningPart:
			flushText()
			if r.showReasoning && v.Content != "" {
				b.WriteString(r.theme.Reasoning.Render(wrapIndent(v.Content, r.width-4, "  ")) + "\n")
			}

		case *part.ToolPart:
			flushText()
			b.WriteString(r.renderTool(v) + "\n")

		case *part.DynamicToolPart:
			flushText()
			// Dynamic records never have a registered renderer; widen to
			// the static shape so both variants share one code path.
			b.WriteString(r.renderTool(&part.ToolPart{
				CallID: v.CallID,
				Name:   v.Name,
				State:  v.State,
				Input:  v.Input,
				Output: v.Output,
			}) + "\n")

		case *part.SourcePart:
			flushText()
			title := v.Title
			if title == "" {
				title = v.URL
			}
			b.WriteString("  ▸ " + r.theme.SourceRef.Render(title) + "\n")

		case *part.FilePart:
			flushText()
			b.WriteString("  ▸ " + r.theme.StatusValue.Render(fmt.Sprintf("file %s (%s)", v.URL, v.MediaType)) + "\n")

		case *part.DataPart:
			// Opaque artifacts are not rendered inline.
		}
	}
	flushText()

	return b.String()
}

// renderText renders a text block. Assistant text gets markdown; user text
// is shown verbatim, wrapped.
func (r *MessageRenderer) renderText(text string, role part.Role) string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}

	if role == part.RoleAssistant && r.markdown != nil {
		out, err := r.markdown.Render(text)
		if err == nil {
			return strings.Trim(out, "\n") + "\n"
		}
	}

	return r.theme.MessageBody.Render(wrapIndent(text, r.width-4, "  ")) + "\n"
}

// renderTool renders a tool invocation annotation for its current state.
// Registered tools use their summary renderer for the label; completed
// calls show a highlighted output preview when the output looks like a
// code payload.
func (r *MessageRenderer) renderTool(t *part.ToolPart) string {
	label := t.Name
	custom := false
	if fn := r.tools.Renderer(t.Name); fn != nil {
		label = fn(t)
		custom = true
	}

	switch t.State {
	case part.StateOutputAvailable:
		line := r.theme.ToolDone.Render("✓ " + label)
		if preview := toolOutputPreview(t.Output, r.width-6); preview != "" {
			line += "\n" + preview
		}
		return line

	case part.StateOutputError:
		errText := t.ErrorText
		if errText == "" {
			errText = "tool failed"
		}
		return r.theme.ToolFailed.Render("✗ " + label + ": " + truncateWidth(errText, r.width-8))

	case part.StateInputAvailable:
		// A custom label already summarizes the input.
		if custom {
			return r.theme.ToolRunning.Render("⋯ " + label)
		}
		return r.theme.ToolRunning.Render("⋯ " + t.Name + " " + compactArgs(t.Input, r.width-10))

	default: // input-streaming
		return r.theme.ToolRunning.Render("⋯ " + label)
	}
}

// compactArgs renders tool input as a compact single-line summary.
func compactArgs(input json.RawMessage, maxWidth int) string {
	if len(input) == 0 {
		return ""
	}
	s := string(input)
	s = strings.Join(strings.Fields(s), " ")
	return truncateWidth(s, maxWidth)
}

// toolOutputPreview extracts a short preview from tool output. Outputs
// with a {"code": ..., "language": ...} shape get syntax highlighting.
func toolOutputPreview(output json.RawMessage, maxWidth int) string {
	if len(output) == 0 {
		return ""
	}

	var code struct {
		Code     string `json:"code"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(output, &code); err == nil && code.Code != "" {
		return HighlightCode(code.Code, code.Language, maxWidth)
	}

	var text string
	if err := json.Unmarshal(output, &text); err == nil && text != "" {
		return "    " + truncateWidth(strings.Join(strings.Fields(text), " "), maxWidth)
	}

	return ""
}

// truncateWidth truncates to a display width with ellipsis.
func truncateWidth(s string, maxWidth int) string {
	if maxWidth < 4 {
		maxWidth = 4
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// wrapIndent wraps text at width and indents each line.
func wrapIndent(text string, width int, indent string) string {
	if width < 10 {
		width = 10
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		for runewidth.StringWidth(line) > width {
			cut := breakPoint(line, width)
			out = append(out, indent+line[:cut])
			line = strings.TrimLeft(line[cut:], " ")
		}
		out = append(out, indent+line)
	}
	return strings.Join(out, "\n")
}

// breakPoint finds a byte offset to wrap at, preferring a space.
func breakPoint(line string, width int) int {
	cut := len(runewidth.Truncate(line, width, ""))
	if idx := strings.LastIndex(line[:cut], " "); idx > width/2 {
		return idx
	}
	return cut
}
