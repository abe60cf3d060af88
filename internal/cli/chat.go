// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler for the relay-tui CLI.
//
// CLI: Comprehensive help and examples for all commands
// USABILITY: Markdown rendering and history for better CLI experience
//
// Handles the "relay-tui chat" command which provides an interactive REPL
// for conversing with the Relay backend.
//
// Command: chat
// Short:   Start an interactive chat session
//
// Examples:
//   relay-tui chat              Start interactive chat
//   relay-tui chat --raw        Use the legacy text-only endpoint
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /new, /n            Start a new conversation
//   /conversations      List known conversations
//   /switch ID          Switch to a conversation
//   /delete ID          Delete a conversation
//   /history            Show conversation history
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel current generation
//   Ctrl+D              Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/relay-tui/internal/assembler"
	"github.com/jeranaias/relay-tui/internal/cache"
	"github.com/jeranaias/relay-tui/internal/cloud"
	"github.com/jeranaias/relay-tui/internal/config"
	"github.com/jeranaias/relay-tui/internal/convo"
	"github.com/jeranaias/relay-tui/internal/part"
	"github.com/jeranaias/relay-tui/internal/util"
)

// =============================================================================
// SESSION STATE
// =============================================================================

// Options configures an interactive chat session.
type Options struct {
	// RawMode uses the legacy text-only endpoint instead of the typed stream.
	RawMode bool

	// Quiet suppresses the welcome banner and per-message stats.
	Quiet bool
}

// ChatSession holds the state for an interactive chat session.
type ChatSession struct {
	// Local transcript of this session (user and finished assistant messages)
	Messages []part.Message

	// Configuration
	Config  *config.Config
	Quiet   bool
	RawMode bool

	// Tracking
	StartTime   time.Time
	TotalTokens int
	QueryCount  int

	// Wiring
	Client   *cloud.Client
	Registry *convo.Registry
	Cache    *cache.Store
	Tools    *part.ToolRegistry

	// Cancel function for current stream
	CancelFunc context.CancelFunc

	// Input history handler
	InputCLI *ChatCLI
}

// NewChatSession creates a new chat session.
func NewChatSession(opts Options) *ChatSession {
	cfg := config.Global()

	client := cloud.NewClient(cloud.StaticToken(cfg.API.Token)).
		WithBaseURL(cfg.API.BaseURL).
		WithMaxRetries(cfg.API.MaxRetries)

	var store *cache.Store
	if cfg.Cache.Enabled {
		dir := cfg.Cache.Dir
		if dir == "" {
			dir, _ = config.ConfigDir()
		}
		if dir != "" {
			store = cache.NewStoreWithLimit(dir, cfg.Cache.MaxEntries)
		}
	}

	return &ChatSession{
		Messages:  make([]part.Message, 0),
		Config:    cfg,
		Quiet:     opts.Quiet,
		RawMode:   opts.RawMode || cfg.Chat.RawMode,
		StartTime: time.Now(),
		Client:    client,
		Registry:  convo.NewRegistry(),
		Cache:     store,
		Tools:     part.DefaultTools(),
		InputCLI:  NewChatCLI(),
	}
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChatCommand handles the "chat" command with full interactive support.
func HandleChatCommand(opts Options) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	// Honors NO_COLOR and piped stdout before any styled output.
	lipgloss.SetColorProfile(GetColorProfile())

	session := NewChatSession(opts)

	if !session.Client.IsConfigured() {
		return fmt.Errorf("no API token configured. Set api.token in ~/.relay/config.toml or RELAY_TOKEN")
	}

	// Seed the conversation list from the backend. Best effort: offline
	// startup still gets a working local registry.
	session.refreshConversations()

	if !session.Quiet {
		printWelcome(session)
	}

	defer session.InputCLI.Close()

	// First Ctrl+C cancels the in-flight generation.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigChan {
			if session.CancelFunc != nil {
				session.CancelFunc()
				session.CancelFunc = nil
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	for {
		input, err := session.InputCLI.ReadInput(promptStyle.Render("relay> "))
		if err != nil {
			if err == liner.ErrPromptAborted {
				fmt.Println()
				printExitSummary(session)
				return nil
			}
			// EOF (Ctrl+D) or other error - exit gracefully
			fmt.Println()
			printExitSummary(session)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldContinue, err := handleSlashCommand(input, session)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			if !shouldContinue {
				printExitSummary(session)
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			printExitSummary(session)
			return nil
		}

		if err := processMessage(session, input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		}
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// processMessage sends a message on the active conversation and streams the
// response. The conversation id is resolved once, up front, and passed down
// explicitly so a mid-stream switch cannot retarget the reply.
func processMessage(session *ChatSession, input string) error {
	convID := session.Registry.Resolve()

	ctx, cancel := context.WithCancel(context.Background())
	session.CancelFunc = cancel
	defer func() {
		session.CancelFunc = nil
		cancel()
	}()

	userMsg := part.Message{
		ID:        convo.NewMessageID(),
		Role:      part.RoleUser,
		CreatedAt: time.Now(),
		Content:   input,
		Parts:     []part.Part{&part.TextPart{Content: input}},
		Status:    part.StatusDone,
	}
	session.Registry.Touch(convID, userMsg.ID)
	session.Messages = append(session.Messages, userMsg)

	fmt.Println() // Space before response
	startTime := time.Now()

	var reply part.Message
	var err error
	if session.RawMode {
		reply, err = session.sendRaw(ctx, convID, input)
	} else {
		reply, err = session.sendTyped(ctx, convID, input)
	}

	// Cancelled generations keep whatever text arrived; that is not an error.
	if err != nil && errors.Is(err, context.Canceled) {
		err = nil
	}

	if reply.ID != "" && (len(reply.Parts) > 0 || reply.Content != "") {
		session.Registry.Touch(session.Registry.ActiveID(), reply.ID)
		session.Messages = append(session.Messages, reply)
	}

	if err != nil {
		var streamErr *cloud.StreamError
		if errors.As(err, &streamErr) && streamErr.Partial != "" {
			fmt.Fprintln(os.Stderr, warningStyle.Render("[Stream interrupted, partial response shown]"))
		}
		return err
	}

	fmt.Println()
	fmt.Println()

	session.QueryCount++
	if !session.Quiet {
		showBriefStats(session, time.Since(startTime))
	}
	return nil
}

// sendTyped streams a message over the typed event stream and renders the
// assembled parts once the stream completes.
func (s *ChatSession) sendTyped(ctx context.Context, convID, input string) (part.Message, error) {
	// Submitted until the first event arrives; the assembler promotes it.
	msg := &part.Message{
		ID:        convo.NewMessageID(),
		Role:      part.RoleAssistant,
		CreatedAt: time.Now(),
		Status:    part.StatusSubmitted,
	}

	// The backend may assign its own conversation id on the first message.
	asm := assembler.New(msg, s.Tools, func(serverID string) {
		s.Registry.AdoptServerID(convID, serverID)
	})

	err := s.Client.Send(ctx, asm, cloud.SendOptions{
		ConversationID:         convID,
		Text:                   input,
		Cache:                  s.Cache,
		OnRefreshConversations: s.refreshConversations,
	})

	snap := asm.Snapshot()
	s.renderParts(snap)

	usage := asm.TokenUsage()
	s.TotalTokens += usage.PromptTokens + usage.CompletionTokens

	return snap, err
}

// sendRaw streams a message over the legacy text-only endpoint, printing
// deltas as they arrive.
func (s *ChatSession) sendRaw(ctx context.Context, convID, input string) (part.Message, error) {
	var printed int
	text, err := s.Client.RawChat(ctx, convID, input, func(accumulated string) {
		// The callback always carries the full text so far; print the suffix.
		if len(accumulated) > printed {
			streamToStdout(accumulated[printed:])
			printed = len(accumulated)
		}
	})

	msg := part.Message{
		ID:        convo.NewMessageID(),
		Role:      part.RoleAssistant,
		CreatedAt: time.Now(),
		Content:   text,
		Status:    part.StatusDone,
	}
	if text != "" {
		msg.Parts = []part.Part{&part.TextPart{Content: text}}
	}
	if err != nil {
		msg.Status = part.StatusError
		msg.ErrorText = err.Error()
	}
	return msg, err
}

// renderParts prints an assembled message to the terminal: tool calls and
// sources as one-line annotations, text through the markdown renderer.
func (s *ChatSession) renderParts(msg part.Message) {
	var text strings.Builder

	for _, p := range msg.Parts {
		switch v := p.(type) {
		case *part.TextPart:
			text.WriteString(v.Content)
		case *part.ReasoningPart:
			if s.Config.Chat.ShowReasoning && v.Content != "" {
				fmt.Println(infoStyle.Render("[Reasoning] " + util.TruncateRunes(v.Content, 200)))
			}
		case *part.ToolPart:
			label := v.Name
			if fn := s.Tools.Renderer(v.Name); fn != nil {
				label = fn(v)
			}
			fmt.Println(renderToolLine(label, v.State, v.ErrorText))
		case *part.DynamicToolPart:
			fmt.Println(renderToolLine(v.Name, v.State, ""))
		case *part.SourcePart:
			title := v.Title
			if title == "" {
				title = v.URL
			}
			fmt.Printf("%s %s <%s>\n", infoStyle.Render("[Source]"), title, v.URL)
		case *part.FilePart:
			fmt.Printf("%s %s (%s)\n", infoStyle.Render("[File]"), v.URL, v.MediaType)
		}
	}

	if text.Len() > 0 {
		displayResponse(text.String())
	}

	if msg.ErrorText != "" {
		fmt.Fprintf(os.Stderr, "\n%s %s\n", errorStyle.Render("[Error]"), msg.ErrorText)
	}
}

// renderToolLine formats a one-line tool invocation annotation. The label
// is either the bare tool name or a registered renderer's summary.
func renderToolLine(label string, state part.ToolState, errText string) string {
	switch state {
	case part.StateOutputError:
		line := fmt.Sprintf("[Tool %s failed]", label)
		if errText != "" {
			line = fmt.Sprintf("[Tool %s failed: %s]", label, util.TruncateRunes(errText, 120))
		}
		return errorStyle.Render(line)
	case part.StateOutputAvailable:
		return commandStyle.Render(fmt.Sprintf("[Tool %s completed]", label))
	default:
		return infoStyle.Render(fmt.Sprintf("[Tool %s running]", label))
	}
}

// refreshConversations replaces the local conversation list with the
// backend's view. Best effort: failures keep the local list.
func (s *ChatSession) refreshConversations() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	convs, err := s.Client.ListConversations(ctx)
	if err != nil {
		return
	}
	s.Registry.Replace(convs)
}

// showBriefStats shows brief stats after a response.
func showBriefStats(session *ChatSession, duration time.Duration) {
	if session.TotalTokens > 0 {
		fmt.Fprintf(os.Stderr, "%s %s tokens | %s\n",
			infoStyle.Render("[Stats]"),
			formatNumber(session.TotalTokens),
			duration.Round(time.Millisecond))
	} else {
		fmt.Fprintf(os.Stderr, "%s %s\n",
			infoStyle.Render("[Stats]"),
			duration.Round(time.Millisecond))
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func handleSlashCommand(cmd string, session *ChatSession) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?":
		printHelp()
		return true, nil

	case "/new", "/n":
		conv := session.Registry.Create("")
		session.Messages = session.Messages[:0]
		fmt.Printf("%s %s\n", commandStyle.Render("[New conversation]"), conv.ID)
		return true, nil

	case "/conversations", "/ls":
		session.refreshConversations()
		printConversations(session)
		return true, nil

	case "/switch", "/sw":
		return handleSwitchCommand(session, args)

	case "/delete", "/rm":
		return handleDeleteCommand(session, args)

	case "/history":
		printHistory(session)
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	case "/":
		printHelp()
		return true, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// handleSwitchCommand switches the active conversation and loads its history.
func handleSwitchCommand(session *ChatSession, args []string) (bool, error) {
	if len(args) == 0 {
		active := session.Registry.ActiveID()
		if active == "" {
			fmt.Println(infoStyle.Render("[No active conversation]"))
		} else {
			fmt.Printf("%s %s\n", infoStyle.Render("[Active]"), active)
		}
		return true, nil
	}

	id := args[0]
	if !session.Registry.Select(id) {
		return true, fmt.Errorf("unknown conversation: %s", id)
	}

	// Rebuild the local transcript from the backend and the output cache.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stored, err := session.Client.Messages(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s could not load history: %v\n", warningStyle.Render("[Warning]"), err)
		session.Messages = session.Messages[:0]
		return true, nil
	}

	session.Messages = session.Messages[:0]
	for _, sm := range stored {
		msg := convo.Reconstruct(sm, session.Cache)
		session.Registry.Touch(id, msg.ID)
		session.Messages = append(session.Messages, msg)
	}

	fmt.Printf("%s %s (%d messages)\n",
		commandStyle.Render("[Switched]"), id, len(session.Messages))
	return true, nil
}

// handleDeleteCommand removes a conversation locally and on the backend.
func handleDeleteCommand(session *ChatSession, args []string) (bool, error) {
	if len(args) == 0 {
		return true, fmt.Errorf("usage: /delete CONVERSATION_ID")
	}

	id := args[0]
	if _, ok := session.Registry.Get(id); !ok {
		return true, fmt.Errorf("unknown conversation: %s", id)
	}
	wasActive := session.Registry.ActiveID() == id
	session.Registry.Delete(id)
	if wasActive {
		session.Messages = session.Messages[:0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := session.Client.DeleteConversation(ctx, id); err != nil && !errors.Is(err, cloud.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "%s backend delete failed: %v\n", warningStyle.Render("[Warning]"), err)
	}

	fmt.Printf("%s %s\n", commandStyle.Render("[Deleted]"), id)
	return true, nil
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

// printWelcome prints the welcome banner.
func printWelcome(session *ChatSession) {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("relay-tui interactive chat"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n",
		infoStyle.Render("Backend:"),
		commandStyle.Render(session.Config.API.BaseURL))

	if session.RawMode {
		fmt.Printf("%s %s\n",
			infoStyle.Render("Mode:"),
			warningStyle.Render("Raw (legacy text endpoint)"))
	} else {
		fmt.Printf("%s %s\n",
			infoStyle.Render("Mode:"),
			commandStyle.Render("Streaming (typed events)"))
	}

	if session.Cache == nil {
		fmt.Printf("%s %s\n",
			infoStyle.Render("Cache:"),
			warningStyle.Render("Disabled"))
	}

	if names := session.Tools.Names(); len(names) > 0 {
		sort.Strings(names)
		fmt.Printf("%s %s\n",
			infoStyle.Render("Tools:"),
			commandStyle.Render(strings.Join(names, ", ")))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

// printHelp prints available commands.
func printHelp() {
	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Available Commands"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/new, /n", "Start a new conversation"},
		{"/conversations", "List known conversations"},
		{"/switch ID", "Switch to a conversation"},
		{"/delete ID", "Delete a conversation"},
		{"/history", "Show conversation history"},
		{"/quit, /q", "Exit chat"},
	}

	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-15s", c.cmd)),
			infoStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Tip: Ctrl+C cancels current generation, Ctrl+D exits"))
	fmt.Println()
}

// printConversations prints the known conversation list, most recent first.
func printConversations(session *ChatSession) {
	convs := session.Registry.List()
	if len(convs) == 0 {
		fmt.Println(infoStyle.Render("[No conversations yet]"))
		return
	}

	active := session.Registry.ActiveID()

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Conversations"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	for _, conv := range convs {
		marker := "  "
		if conv.ID == active {
			marker = commandStyle.Render("* ")
		}
		title := conv.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s%s  %s\n", marker, conv.ID, util.TruncateRunes(title, 50))
	}
	fmt.Println()
}

// printHistory prints the current conversation transcript.
func printHistory(session *ChatSession) {
	if len(session.Messages) == 0 {
		fmt.Println(infoStyle.Render("[No messages yet]"))
		return
	}

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Conversation History"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 25)))
	fmt.Println()

	for i, msg := range session.Messages {
		role := string(msg.Role)
		switch msg.Role {
		case part.RoleUser:
			role = promptStyle.Render("You")
		case part.RoleAssistant:
			role = welcomeStyle.Render("AI")
		}

		content := strings.ReplaceAll(msg.Text(), "\n", " ")
		fmt.Printf("  %d. %s: %s\n", i+1, role, util.TruncateRunes(content, 100))
	}

	fmt.Println()
}

// printExitSummary prints the session summary on exit.
func printExitSummary(session *ChatSession) {
	if session.QueryCount == 0 {
		fmt.Println(infoStyle.Render("Goodbye!"))
		return
	}

	elapsed := time.Since(session.StartTime).Round(time.Second)

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Session Summary"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 15)))

	fmt.Printf("  %s %d\n", infoStyle.Render("Queries:"), session.QueryCount)
	if session.TotalTokens > 0 {
		fmt.Printf("  %s %s\n", infoStyle.Render("Tokens:"), formatNumber(session.TotalTokens))
	}
	fmt.Printf("  %s %s\n", infoStyle.Render("Duration:"), elapsed.String())

	fmt.Println()
	fmt.Println(infoStyle.Render("Goodbye!"))
}

// formatNumber formats an integer with thousands separators.
func formatNumber(n int) string {
	s := util.IntToString(n)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
