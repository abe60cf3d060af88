// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jeranaias/relay-tui/internal/assembler"
	"github.com/jeranaias/relay-tui/internal/cache"
)

// STREAMING: typed event decode with strict in-order delivery

// =============================================================================
// SSE READER
// =============================================================================

// MaxEventSize is the maximum allowed size for a single event (64KB).
const MaxEventSize = 64 * 1024

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReader(r)}
}

// ReadEvent reads the next SSE event from the stream, returning the event
// name (often empty) and the joined data payload. Returns io.EOF when the
// stream ends.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte
	var size int

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				// Flush any data gathered before the stream closed.
				if len(dataLines) > 0 {
					return eventType, bytes.Join(dataLines, []byte("\n")), nil
				}
				return "", nil, io.EOF
			}
			return "", nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Blank line terminates the event.
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[6:]))
		case bytes.HasPrefix(line, []byte("data:")):
			data := bytes.TrimSpace(line[5:])
			size += len(data)
			if size > MaxEventSize {
				return "", nil, fmt.Errorf("event too large: %d bytes", size)
			}
			dataLines = append(dataLines, data)
		}
		// Other fields (id:, retry:, comments) are ignored.
	}
}

// =============================================================================
// SEND
// =============================================================================

// sendRequest is the body of a streaming chat request.
type sendRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// SendOptions configures one streaming send.
type SendOptions struct {
	// ConversationID must be resolved by the caller immediately before
	// dispatch (Registry.Resolve), never read from stale view state.
	ConversationID string

	// Text is the user message.
	Text string

	// Cache receives the finished parts. Nil disables caching.
	Cache *cache.Store

	// OnRefreshConversations is invoked after a clean finish; titles and
	// ordering may have changed server-side. May be nil.
	OnRefreshConversations func()
}

// Send opens exactly one streaming request for a user message and applies
// every decoded event, in arrival order, to the assembler.
//
// Completion behavior:
//   - clean finish: the assembler is finished (if the backend omitted the
//     finish event), the cacheable parts are persisted, and the refresh
//     hook runs;
//   - context cancellation: decoding stops, assembled parts are kept, and
//     the cache write is skipped — aborted state is never durable;
//   - backend-reported error event: assembled parts are kept and the
//     error is returned for the surface to display;
//   - undecodable typed event: fatal for this stream, returned as a
//     StreamError preserving the partial text.
func (c *Client) Send(ctx context.Context, asm *assembler.Assembler, opts SendOptions) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(sendRequest{
		ConversationID: opts.ConversationID,
		Message:        opts.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/stream", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if err := c.setHeaders(req); err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streaming.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		return c.handleErrorResponse(resp, errBody)
	}

	streamErr := c.decodeEvents(ctx, resp.Body, asm)

	if streamErr != nil {
		if errors.Is(streamErr, context.Canceled) || errors.Is(streamErr, context.DeadlineExceeded) {
			// Aborted: last assembled state stands, nothing is cached.
			return streamErr
		}
		return &StreamError{Partial: asm.Snapshot().Text(), Err: streamErr}
	}

	// The backend normally closes with a finish event; an EOF without one
	// still finalizes the message.
	asm.Finish()

	snap := asm.Snapshot()
	if snap.ErrorText != "" {
		// Backend-reported error event: parts stay visible, no cache.
		return &StreamError{Partial: snap.Text(), Err: errors.New(snap.ErrorText)}
	}

	if opts.Cache != nil {
		opts.Cache.Put(snap.ID, snap.Parts)
	}
	if opts.OnRefreshConversations != nil {
		opts.OnRefreshConversations()
	}
	return nil
}

// decodeEvents reads the SSE stream and forwards typed events until
// finish, error, EOF, or context cancellation.
func (c *Client) decodeEvents(ctx context.Context, body io.Reader, asm *assembler.Assembler) error {
	reader := NewSSEReader(body)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			// The transport context may have been cancelled mid-read.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if bytes.Equal(data, []byte("[DONE]")) {
			return nil
		}

		var ev assembler.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			// A malformed typed event is fatal to the stream: downstream
			// state can no longer be trusted to match the backend.
			return fmt.Errorf("failed to decode event: %w", err)
		}

		asm.Apply(ev)

		switch ev.Type {
		case assembler.EventFinish, assembler.EventError:
			return nil
		}
	}
}
