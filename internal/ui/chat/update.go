// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// update.go - Message handling for the chat surface.
package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/relay-tui/internal/assembler"
	"github.com/jeranaias/relay-tui/internal/cloud"
	"github.com/jeranaias/relay-tui/internal/convo"
	"github.com/jeranaias/relay-tui/internal/part"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case frameMsg:
		return m.handleFrame()

	case streamDoneMsg:
		return m.handleStreamDone(msg)

	case conversationsMsg:
		return m.handleConversations(msg)

	case historyMsg:
		return m.handleHistory(msg)

	case deletedMsg:
		if msg.err != nil && !errors.Is(msg.err, cloud.ErrNotFound) {
			log.Printf("backend delete %s: %v", msg.convID, msg.err)
			return m, m.noticeCmd("backend delete failed")
		}
		return m, nil

	case noticeExpireMsg:
		if msg.id == m.noticeID {
			m.notice = ""
		}
		return m, nil

	case spinner.TickMsg:
		if len(m.streams) > 0 {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil

	default:
		var cmds []tea.Cmd
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}
}

// =============================================================================
// RESIZE
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true

	// Layout: header (1) + viewport + input (3 + border) + status bar (1).
	const reserved = 7
	vpHeight := m.height - reserved
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = vpHeight

	m.input.SetWidth(m.width - 2)
	m.theme.SetSize(m.width, m.height)
	m.renderer.SetWidth(m.width)
	m.convList.SetSize(m.width/2, vpHeight)

	m.gate.Reset()
	m.refreshViewport()

	return m, nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Ctrl+Q always quits.
	if key == "ctrl+q" {
		m.cancelAll()
		return m, tea.Quit
	}

	// Error banner has priority while visible.
	if m.banner.Visible() {
		switch key {
		case "r":
			if m.banner.CanRetry() {
				input := m.banner.RetryInput
				m.banner.Hide()
				return m.submit(input)
			}
		case "esc", "enter":
			m.banner.Hide()
			return m, nil
		}
		return m, nil
	}

	// Conversation list pane.
	if m.convList.Visible() {
		return m.handleListKey(key)
	}

	switch key {
	case "ctrl+c":
		if s := m.streamFor(m.registry.ActiveID()); s != nil {
			s.cancel()
			return m, nil
		}
		m.cancelAll()
		return m, tea.Quit

	case "esc":
		if s := m.streamFor(m.registry.ActiveID()); s != nil {
			s.cancel()
			return m, nil
		}
		return m, nil

	case "ctrl+o":
		m.convList.SetItems(m.registry.List(), m.registry.ActiveID())
		m.convList.Show()
		return m, m.fetchConversationsCmd()

	case "ctrl+n":
		conv := m.registry.Create("")
		m.gate.Reset()
		m.refreshViewport()
		return m, m.noticeCmd("new conversation " + conv.ID)

	case "enter":
		return m.submit(m.input.Value())

	case "pgup":
		m.viewport.HalfViewUp()
		return m, nil

	case "pgdown":
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleListKey handles keys while the conversation list is open.
func (m Model) handleListKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "esc", "ctrl+o":
		m.convList.Hide()
		return m, nil

	case "up", "k":
		m.convList.CursorUp()
		return m, nil

	case "down", "j":
		m.convList.CursorDown()
		return m, nil

	case "enter":
		sel, ok := m.convList.Selected()
		m.convList.Hide()
		if !ok || !m.registry.Select(sel.ID) {
			return m, nil
		}
		m.gate.Reset()
		m.refreshViewport()
		if len(m.transcripts[sel.ID]) == 0 {
			return m, m.fetchHistoryCmd(sel.ID)
		}
		return m, nil

	case "d":
		sel, ok := m.convList.Selected()
		if !ok {
			return m, nil
		}
		// Selection-to-nil happens inside Delete when it was active.
		m.registry.Delete(sel.ID)
		delete(m.transcripts, sel.ID)
		m.convList.SetItems(m.registry.List(), m.registry.ActiveID())
		m.gate.Reset()
		m.refreshViewport()
		return m, m.deleteConversationCmd(sel.ID)
	}

	return m, nil
}

// =============================================================================
// SUBMIT
// =============================================================================

// submit dispatches the current input on the active conversation. The
// conversation id is resolved once, before anything async starts, and the
// stream carries that id for its whole life.
func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	text = strings.TrimSpace(text)
	if text == "" {
		return m, nil
	}

	convID := m.registry.Resolve()
	if m.streamFor(convID) != nil {
		return m, m.noticeCmd("still replying — esc to cancel")
	}

	userMsg := part.Message{
		ID:        convo.NewMessageID(),
		Role:      part.RoleUser,
		CreatedAt: time.Now(),
		Content:   text,
		Parts:     []part.Part{&part.TextPart{Content: text}},
		Status:    part.StatusDone,
	}
	m.transcripts[convID] = append(m.transcripts[convID], userMsg)
	m.registry.Touch(convID, userMsg.ID)

	// Submitted until the first event arrives; the assembler promotes it.
	assistant := &part.Message{
		ID:        convo.NewMessageID(),
		Role:      part.RoleAssistant,
		CreatedAt: time.Now(),
		Status:    part.StatusSubmitted,
	}

	ctx, cancel := context.WithCancel(context.Background())
	str := &stream{
		convID: convID,
		msgID:  assistant.ID,
		input:  text,
		cancel: cancel,
	}

	registry := m.registry
	str.asm = assembler.New(assistant, m.tools, func(serverID string) {
		registry.AdoptServerID(convID, serverID)
		str.adopt(serverID)
	})

	m.streams = append(m.streams, str)
	m.input.Reset()
	m.gate.Reset()
	m.refreshViewport()
	m.viewport.GotoBottom()

	client := m.client
	store := m.store
	sendCmd := func() tea.Msg {
		err := client.Send(ctx, str.asm, cloud.SendOptions{
			ConversationID: convID,
			Text:           text,
			Cache:          store,
		})
		return streamDoneMsg{stream: str, err: err}
	}

	return m, tea.Batch(m.spin.Tick, frameCmd(), sendCmd, textarea.Blink)
}

// =============================================================================
// STREAMING
// =============================================================================

// handleFrame repaints the viewport from the live snapshot, then schedules
// the next frame while any stream is running.
func (m Model) handleFrame() (tea.Model, tea.Cmd) {
	if len(m.streams) == 0 {
		return m, nil
	}

	if m.streamFor(m.registry.ActiveID()) != nil {
		content := m.renderTranscript()
		if m.gate.ShouldRender(content) {
			m.viewport.SetContent(content)
			m.viewport.GotoBottom()
		}
	}

	return m, frameCmd()
}

// handleStreamDone finalizes a finished stream: the assembler's snapshot
// becomes the transcript entry, partial content included. A cancelled
// stream keeps its parts; the cache write was already skipped upstream.
func (m Model) handleStreamDone(msg streamDoneMsg) (tea.Model, tea.Cmd) {
	str := msg.stream
	m.removeStream(str)

	// The backend may have renamed the conversation mid-stream.
	orig, cur := str.originalID(), str.ConvID()
	if cur != orig {
		if t, ok := m.transcripts[orig]; ok {
			m.transcripts[cur] = t
			delete(m.transcripts, orig)
		}
	}

	snap := str.asm.Snapshot()
	if len(snap.Parts) > 0 || snap.Content != "" || snap.ErrorText != "" {
		m.transcripts[cur] = append(m.transcripts[cur], snap)
		m.registry.Touch(cur, snap.ID)
	}

	usage := str.asm.TokenUsage()
	m.totalTokens += usage.PromptTokens + usage.CompletionTokens

	m.gate.Reset()
	m.refreshViewport()
	m.viewport.GotoBottom()

	var cmds []tea.Cmd
	switch {
	case msg.err == nil:
		cmds = append(cmds, m.fetchConversationsCmd())

	case errors.Is(msg.err, context.Canceled):
		cmds = append(cmds, m.noticeCmd("cancelled — partial reply kept"))

	default:
		var streamErr *cloud.StreamError
		if errors.As(msg.err, &streamErr) {
			m.banner.Show("Stream error", streamErr.Err.Error(), str.input)
		} else {
			m.banner.Show("Request failed", msg.err.Error(), str.input)
		}
	}

	return m, tea.Batch(cmds...)
}

// =============================================================================
// BACKEND RESULTS
// =============================================================================

func (m Model) handleConversations(msg conversationsMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		// Offline or transient failure: keep the local list.
		log.Printf("conversation refresh: %v", msg.err)
		return m, nil
	}
	m.registry.Replace(msg.list)
	if m.convList.Visible() {
		m.convList.SetItems(m.registry.List(), m.registry.ActiveID())
	}
	return m, nil
}

func (m Model) handleHistory(msg historyMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, m.noticeCmd("could not load history")
	}

	m.transcripts[msg.convID] = convo.Merge(msg.stored, m.transcripts[msg.convID], m.store)
	for _, hm := range m.transcripts[msg.convID] {
		m.registry.Touch(msg.convID, hm.ID)
	}

	if msg.convID == m.registry.ActiveID() {
		m.gate.Reset()
		m.refreshViewport()
		m.viewport.GotoBottom()
	}
	return m, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// cancelAll cancels every in-flight stream, for shutdown.
func (m *Model) cancelAll() {
	for _, s := range m.streams {
		s.cancel()
	}
}

// refreshViewport rebuilds viewport content outside the frame loop.
func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderTranscript())
}
