// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/relay-tui/internal/assembler"
	"github.com/jeranaias/relay-tui/internal/cache"
	"github.com/jeranaias/relay-tui/internal/convo"
	"github.com/jeranaias/relay-tui/internal/part"
)

// =============================================================================
// SSE READER TESTS
// =============================================================================

func TestSSEReader_SingleEvent(t *testing.T) {
	input := "event: message\ndata: {\"type\":\"text-delta\"}\n\n"
	reader := NewSSEReader(strings.NewReader(input))

	name, data, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent error: %v", err)
	}
	if name != "message" {
		t.Errorf("event name = %q, want %q", name, "message")
	}
	if string(data) != `{"type":"text-delta"}` {
		t.Errorf("data = %q", data)
	}
}

func TestSSEReader_MultilineData(t *testing.T) {
	input := "data: line one\ndata: line two\n\n"
	reader := NewSSEReader(strings.NewReader(input))

	_, data, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent error: %v", err)
	}
	if string(data) != "line one\nline two" {
		t.Errorf("data = %q", data)
	}
}

func TestSSEReader_IgnoresCommentsAndIDs(t *testing.T) {
	input := ": keepalive\nid: 42\nretry: 1000\ndata: payload\n\n"
	reader := NewSSEReader(strings.NewReader(input))

	_, data, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent error: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("data = %q, want %q", data, "payload")
	}
}

func TestSSEReader_EOFFlushesPendingData(t *testing.T) {
	// Stream ends without a trailing blank line.
	reader := NewSSEReader(strings.NewReader("data: tail\n"))

	_, data, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent error: %v", err)
	}
	if string(data) != "tail" {
		t.Errorf("data = %q, want %q", data, "tail")
	}

	if _, _, err := reader.ReadEvent(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestSSEReader_RejectsOversizedEvent(t *testing.T) {
	huge := "data: " + strings.Repeat("x", MaxEventSize+1) + "\n\n"
	reader := NewSSEReader(strings.NewReader(huge))

	if _, _, err := reader.ReadEvent(); err == nil {
		t.Error("expected error for oversized event")
	}
}

// =============================================================================
// SEND TESTS
// =============================================================================

func sseBody(events ...string) string {
	var b strings.Builder
	for _, ev := range events {
		b.WriteString("data: ")
		b.WriteString(ev)
		b.WriteString("\n\n")
	}
	return b.String()
}

func newStreamServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/stream" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, body)
	}))
}

func newSendAssembler() *assembler.Assembler {
	msg := &part.Message{ID: "msg_send_test", Role: part.RoleAssistant, Status: part.StatusStreaming}
	return assembler.New(msg, nil, nil)
}

func TestSend_AssemblesTextAndCaches(t *testing.T) {
	server := newStreamServer(t, sseBody(
		`{"type":"text-delta","text":"Hello"}`,
		`{"type":"text-delta","text":", world"}`,
		`{"type":"finish","reason":"stop"}`,
	))
	defer server.Close()

	client := NewClient(StaticToken("relay-test-token")).WithBaseURL(server.URL)
	asm := newSendAssembler()
	store := cache.NewStore(t.TempDir())

	refreshed := false
	err := client.Send(context.Background(), asm, SendOptions{
		ConversationID:         "conv_1",
		Text:                   "hi",
		Cache:                  store,
		OnRefreshConversations: func() { refreshed = true },
	})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}

	snap := asm.Snapshot()
	if got := snap.Text(); got != "Hello, world" {
		t.Errorf("text = %q, want %q", got, "Hello, world")
	}
	if !asm.Done() {
		t.Error("assembler should be finished")
	}
	if !refreshed {
		t.Error("refresh hook was not invoked")
	}
	if _, ok := store.Get("msg_send_test"); !ok {
		t.Error("finished parts were not cached")
	}
}

// The outgoing request must carry exactly the conversation id the registry
// resolved at dispatch time, not whatever is active when bytes hit the wire.
func TestSend_RequestCarriesResolvedConversationID(t *testing.T) {
	registry := convo.NewRegistry()
	convID := registry.Resolve()

	var got sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseBody(`{"type":"finish","reason":"stop"}`))
	}))
	defer server.Close()

	client := NewClient(StaticToken("relay-test-token")).WithBaseURL(server.URL)
	asm := newSendAssembler()

	// A switch after resolution must not retarget the dispatched request.
	registry.Create("other")

	err := client.Send(context.Background(), asm, SendOptions{
		ConversationID: convID,
		Text:           "hi",
	})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if got.ConversationID != convID {
		t.Errorf("conversation_id = %q, want %q", got.ConversationID, convID)
	}
	if got.Message != "hi" {
		t.Errorf("message = %q, want %q", got.Message, "hi")
	}
}

func TestSend_FinalizesOnEOFWithoutFinishEvent(t *testing.T) {
	server := newStreamServer(t, sseBody(`{"type":"text-delta","text":"partial"}`))
	defer server.Close()

	client := NewClient(StaticToken("relay-test-token")).WithBaseURL(server.URL)
	asm := newSendAssembler()

	if err := client.Send(context.Background(), asm, SendOptions{ConversationID: "conv_1", Text: "hi"}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if !asm.Done() {
		t.Error("assembler should be finished after EOF")
	}
	if got := asm.Snapshot().Text(); got != "partial" {
		t.Errorf("text = %q", got)
	}
}

func TestSend_CancelSkipsCacheWrite(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "data: {\"type\":\"text-delta\",\"text\":\"Draft answer\"}\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(StaticToken("relay-test-token")).WithBaseURL(server.URL)
	asm := newSendAssembler()
	store := cache.NewStore(t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Send(ctx, asm, SendOptions{ConversationID: "conv_1", Text: "hi", Cache: store})
	}()

	// Let the first event land before aborting.
	deadline := time.After(2 * time.Second)
	for asm.Snapshot().Text() == "" {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for first event")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	err := <-errCh
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// Assembled parts survive the abort; the cache does not record them.
	if got := asm.Snapshot().Text(); got != "Draft answer" {
		t.Errorf("text = %q, want %q", got, "Draft answer")
	}
	if _, ok := store.Get("msg_send_test"); ok {
		t.Error("cancelled stream must not write to the cache")
	}
}

func TestSend_MalformedEventIsFatal(t *testing.T) {
	server := newStreamServer(t, sseBody(
		`{"type":"text-delta","text":"good so far"}`,
		`{not json`,
	))
	defer server.Close()

	client := NewClient(StaticToken("relay-test-token")).WithBaseURL(server.URL)
	asm := newSendAssembler()
	store := cache.NewStore(t.TempDir())

	err := client.Send(context.Background(), asm, SendOptions{ConversationID: "conv_1", Text: "hi", Cache: store})
	if err == nil {
		t.Fatal("expected error for malformed event")
	}
	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("expected *StreamError, got %T", err)
	}
	if streamErr.Partial != "good so far" {
		t.Errorf("partial = %q", streamErr.Partial)
	}
	if _, ok := store.Get("msg_send_test"); ok {
		t.Error("failed stream must not write to the cache")
	}
}

func TestSend_ErrorEventKeepsParts(t *testing.T) {
	server := newStreamServer(t, sseBody(
		`{"type":"text-delta","text":"before the failure"}`,
		`{"type":"error","error_text":"model overloaded"}`,
	))
	defer server.Close()

	client := NewClient(StaticToken("relay-test-token")).WithBaseURL(server.URL)
	asm := newSendAssembler()
	store := cache.NewStore(t.TempDir())

	err := client.Send(context.Background(), asm, SendOptions{ConversationID: "conv_1", Text: "hi", Cache: store})
	if err == nil {
		t.Fatal("expected error from error event")
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("error = %v", err)
	}

	snap := asm.Snapshot()
	if got := snap.Text(); got != "before the failure" {
		t.Errorf("text = %q", got)
	}
	if snap.Status != part.StatusError {
		t.Errorf("status = %q, want %q", snap.Status, part.StatusError)
	}
	if _, ok := store.Get("msg_send_test"); ok {
		t.Error("errored stream must not write to the cache")
	}
}

func TestSend_HTTPErrorMapsToTaxonomy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":"unauthorized","message":"bad token"}}`)
	}))
	defer server.Close()

	client := NewClient(StaticToken("relay-test-token")).WithBaseURL(server.URL)
	asm := newSendAssembler()

	err := client.Send(context.Background(), asm, SendOptions{ConversationID: "conv_1", Text: "hi"})
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
}

// =============================================================================
// RAW DECODER TESTS
// =============================================================================

func TestDecodeRawStream_AccumulatesText(t *testing.T) {
	input := strings.Join([]string{
		`data: {"type":"text","text":"Hel"}`,
		`data: {"type":"text","text":"lo"}`,
		`data: {"type":"complete"}`,
	}, "\n") + "\n"

	var seen []string
	got, err := DecodeRawStream(context.Background(), strings.NewReader(input), func(s string) {
		seen = append(seen, s)
	})
	if err != nil {
		t.Fatalf("DecodeRawStream error: %v", err)
	}
	if got != "Hello" {
		t.Errorf("final text = %q, want %q", got, "Hello")
	}
	// Each record surfaces the full accumulated text, not the fragment.
	want := []string{"Hel", "Hello"}
	if len(seen) != len(want) {
		t.Fatalf("callback count = %d, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("callback %d = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestDecodeRawStream_SkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`data: {"type":"text","text":"keep "}`,
		`noise without prefix`,
		`data: {broken json`,
		`data: {"type":"heartbeat"}`,
		`data: {"type":"text","text":"going"}`,
		`data: {"type":"complete"}`,
	}, "\n") + "\n"

	got, err := DecodeRawStream(context.Background(), strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("DecodeRawStream error: %v", err)
	}
	if got != "keep going" {
		t.Errorf("text = %q, want %q", got, "keep going")
	}
}

func TestDecodeRawStream_ErrorRecord(t *testing.T) {
	input := strings.Join([]string{
		`data: {"type":"text","text":"partial"}`,
		`data: {"type":"error","message":"backend down"}`,
	}, "\n") + "\n"

	got, err := DecodeRawStream(context.Background(), strings.NewReader(input), nil)
	if err == nil || !strings.Contains(err.Error(), "backend down") {
		t.Errorf("expected backend error, got %v", err)
	}
	if got != "partial" {
		t.Errorf("partial text = %q", got)
	}
}

func TestRawChat_StreamsLegacyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/raw" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "data: {\"type\":\"text\",\"text\":\"legacy reply\"}\n")
		io.WriteString(w, "data: {\"type\":\"complete\"}\n")
	}))
	defer server.Close()

	client := NewClient(StaticToken("relay-test-token")).WithBaseURL(server.URL)
	got, err := client.RawChat(context.Background(), "conv_1", "hi", nil)
	if err != nil {
		t.Fatalf("RawChat error: %v", err)
	}
	if got != "legacy reply" {
		t.Errorf("reply = %q", got)
	}
}
