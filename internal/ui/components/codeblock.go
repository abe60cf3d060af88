// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// codeblock.go - Syntax highlighting for code payloads in tool output.
package components

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromastyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/mattn/go-runewidth"
)

// maxPreviewLines caps how much of a code payload is shown inline.
const maxPreviewLines = 12

// HighlightCode renders a code snippet with terminal syntax highlighting,
// indented for inline display. Unknown languages fall back to the analyzer,
// then to plain text. Highlighting failures degrade to unstyled code rather
// than dropping the content.
func HighlightCode(code, language string, maxWidth int) string {
	code = strings.TrimRight(code, "\n")
	if code == "" {
		return ""
	}

	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromastyles.Get("monokai")
	if style == nil {
		style = chromastyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	rendered := code
	if iterator, err := lexer.Tokenise(nil, code); err == nil {
		var buf bytes.Buffer
		if err := formatter.Format(&buf, style, iterator); err == nil {
			rendered = strings.TrimRight(buf.String(), "\n")
		}
	}

	lines := strings.Split(rendered, "\n")
	truncated := false
	if len(lines) > maxPreviewLines {
		lines = lines[:maxPreviewLines]
		truncated = true
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("    ")
		// Width cap applies to the raw text; ANSI sequences from the
		// highlighter do not advance the cursor, so only clamp when the
		// visible line is plainly too long.
		if maxWidth > 8 && runewidth.StringWidth(stripANSI(line)) > maxWidth {
			b.WriteString(runewidth.Truncate(line, maxWidth, "…"))
		} else {
			b.WriteString(line)
		}
	}
	if truncated {
		b.WriteString("\n    …")
	}
	return b.String()
}

// stripANSI removes CSI escape sequences for width measurement.
func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
