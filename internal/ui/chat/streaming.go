// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// streaming.go - Render pacing for streaming responses.
//
// STREAMING: Token deltas can arrive far faster than a terminal can
// usefully repaint. The assembler coalesces deltas on its side; the view
// polls snapshots on a fixed frame tick and the RenderGate drops frames
// whose rendered content is unchanged, keeping CPU flat during fast
// streams without adding latency to slow ones.
package chat

import (
	"hash/fnv"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// framesPerSecond caps how often the viewport repaints during streaming.
const framesPerSecond = 30

// frameInterval is the tick period derived from framesPerSecond.
const frameInterval = time.Second / framesPerSecond

// RenderGate skips viewport updates when the rendered transcript has not
// changed since the last frame. Content is compared by hash; the gate
// never blocks a genuinely new frame.
//
// Thread-safe: frames fire on the Bubble Tea loop but Reset can race with
// a late tick after a stream ends.
type RenderGate struct {
	mu       sync.Mutex
	lastHash uint64
	rendered bool
}

// NewRenderGate creates a gate that accepts the first frame.
func NewRenderGate() *RenderGate {
	return &RenderGate{}
}

// ShouldRender reports whether content differs from the last rendered
// frame, and records it as rendered when it does.
func (g *RenderGate) ShouldRender(content string) bool {
	h := fnv.New64a()
	h.Write([]byte(content))
	sum := h.Sum64()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rendered && sum == g.lastHash {
		return false
	}
	g.lastHash = sum
	g.rendered = true
	return true
}

// Reset forgets the last frame so the next one always renders. Call when
// the viewport is rebuilt for reasons other than streaming (resize,
// conversation switch).
func (g *RenderGate) Reset() {
	g.mu.Lock()
	g.rendered = false
	g.mu.Unlock()
}

// frameCmd schedules the next streaming frame tick.
func frameCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}
