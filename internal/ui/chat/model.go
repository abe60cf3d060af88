// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the full-screen chat surface for relay-tui.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/relay-tui/internal/assembler"
	"github.com/jeranaias/relay-tui/internal/cache"
	"github.com/jeranaias/relay-tui/internal/cloud"
	"github.com/jeranaias/relay-tui/internal/config"
	"github.com/jeranaias/relay-tui/internal/convo"
	"github.com/jeranaias/relay-tui/internal/part"
	"github.com/jeranaias/relay-tui/internal/ui/components"
	"github.com/jeranaias/relay-tui/internal/ui/styles"
)

// =============================================================================
// STREAM TRACKING
// =============================================================================

// stream is one in-flight send. The conversation id it was dispatched with
// may be renamed mid-stream when the backend assigns its own id; ConvID
// always answers with the current name.
type stream struct {
	mu      sync.Mutex
	convID  string
	adopted string

	msgID  string
	input  string
	asm    *assembler.Assembler
	cancel context.CancelFunc
}

// ConvID returns the stream's current conversation id.
func (s *stream) ConvID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adopted != "" {
		return s.adopted
	}
	return s.convID
}

// adopt records the backend-assigned id. Called from the assembler's
// conversation-id hook on the streaming goroutine.
func (s *stream) adopt(serverID string) {
	s.mu.Lock()
	s.adopted = serverID
	s.mu.Unlock()
}

// originalID returns the id the stream was dispatched with.
func (s *stream) originalID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convID
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat surface.
type Model struct {
	// Styling
	theme *styles.Theme
	cfg   *config.Config

	// Dimensions
	width  int
	height int
	ready  bool

	// Wiring
	client   *cloud.Client
	registry *convo.Registry
	store    *cache.Store
	tools    *part.ToolRegistry

	// UI components
	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model
	renderer *components.MessageRenderer
	convList *components.ConversationList
	banner   *components.ErrorBanner

	// Per-conversation transcripts, keyed by conversation id.
	transcripts map[string][]part.Message

	// In-flight sends. A conversation with an active stream is locked
	// against further sends; other conversations stay sendable.
	streams []*stream

	// Render pacing
	gate *RenderGate

	// Session stats
	totalTokens int

	// Transient status bar notice
	notice   string
	noticeID int
}

// New creates the chat model. The registry, cache, and client are shared
// with the rest of the application.
func New(cfg *config.Config, client *cloud.Client, registry *convo.Registry, store *cache.Store) Model {
	theme := styles.NewTheme()

	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.Prompt = "┃ "
	ta.CharLimit = 4096
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    frameInterval,
	}
	sp.Style = theme.Spinner

	tools := part.DefaultTools()

	return Model{
		theme:       theme,
		cfg:         cfg,
		client:      client,
		registry:    registry,
		store:       store,
		tools:       tools,
		viewport:    vp,
		input:       ta,
		spin:        sp,
		renderer:    components.NewMessageRenderer(theme, 80, cfg.Chat.ShowReasoning, tools),
		convList:    components.NewConversationList(theme),
		banner:      components.NewErrorBanner(theme),
		transcripts: make(map[string][]part.Message),
		gate:        NewRenderGate(),
	}
}

// Init starts the cursor blink and seeds the conversation list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.fetchConversationsCmd())
}

// =============================================================================
// SHARED LOOKUPS
// =============================================================================

// streamFor returns the in-flight stream for a conversation, if any.
func (m *Model) streamFor(convID string) *stream {
	for _, s := range m.streams {
		if s.ConvID() == convID || s.originalID() == convID {
			return s
		}
	}
	return nil
}

// removeStream drops a finished stream from the tracked set.
func (m *Model) removeStream(target *stream) {
	for i, s := range m.streams {
		if s == target {
			m.streams = append(m.streams[:i], m.streams[i+1:]...)
			return
		}
	}
}

// activeTranscript returns the transcript for the active conversation.
func (m *Model) activeTranscript() []part.Message {
	return m.transcripts[m.registry.ActiveID()]
}

// streaming reports whether the ACTIVE conversation has a stream running.
func (m *Model) streaming() bool {
	return m.streamFor(m.registry.ActiveID()) != nil
}

// =============================================================================
// BACKEND COMMANDS
// =============================================================================

// fetchConversationsCmd lists conversations from the backend.
func (m Model) fetchConversationsCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		list, err := client.ListConversations(ctx)
		return conversationsMsg{list: list, err: err}
	}
}

// fetchHistoryCmd loads stored messages for one conversation.
func (m Model) fetchHistoryCmd(convID string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		stored, err := client.Messages(ctx, convID)
		return historyMsg{convID: convID, stored: stored, err: err}
	}
}

// deleteConversationCmd deletes a conversation on the backend.
func (m Model) deleteConversationCmd(convID string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := client.DeleteConversation(ctx, convID)
		return deletedMsg{convID: convID, err: err}
	}
}

// noticeCmd shows a transient status bar notice.
func (m *Model) noticeCmd(text string) tea.Cmd {
	m.notice = text
	m.noticeID++
	id := m.noticeID
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return noticeExpireMsg{id: id}
	})
}
