// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// =============================================================================
// RAW STREAM DECODER
// =============================================================================

// rawEventPrefix marks a payload line on the legacy text endpoint.
const rawEventPrefix = "data: "

// RawEvent is one record of the legacy deprecated text stream. The legacy
// endpoint carries no tool calls, no reasoning, and no sources: text in,
// text out.
type RawEvent struct {
	Type    string `json:"type"` // "text", "complete", or "error"
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// DecodeRawStream reads a line-delimited legacy stream and invokes onText
// with the full accumulated text after every text record. Lines without the
// payload prefix and records that fail to decode are skipped; a partially
// usable stream beats none at all.
//
// Returns the final accumulated text. An error record ends the stream and
// is returned alongside whatever text arrived before it.
func DecodeRawStream(ctx context.Context, r io.Reader, onText func(string)) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxEventSize)

	var accumulated strings.Builder

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return accumulated.String(), ctx.Err()
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, rawEventPrefix) {
			continue
		}
		payload := strings.TrimPrefix(line, rawEventPrefix)
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var ev RawEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "text":
			accumulated.WriteString(ev.Text)
			if onText != nil {
				onText(accumulated.String())
			}
		case "complete":
			return accumulated.String(), nil
		case "error":
			return accumulated.String(), fmt.Errorf("stream error: %s", ev.Message)
		}
		// Unknown record types are skipped.
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return accumulated.String(), ctx.Err()
		}
		return accumulated.String(), err
	}
	return accumulated.String(), nil
}

// =============================================================================
// LEGACY CHAT
// =============================================================================

// rawChatRequest is the body of a legacy text-only chat request.
type rawChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// RawChat sends a message on the legacy text endpoint and streams the reply
// through onText (full accumulated text per record). Used by the line-mode
// REPL, which has no part model to render.
func (c *Client) RawChat(ctx context.Context, conversationID, message string, onText func(string)) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(rawChatRequest{
		ConversationID: conversationID,
		Message:        message,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/raw", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if err := c.setHeaders(req); err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.streaming.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		return "", c.handleErrorResponse(resp, errBody)
	}

	return DecodeRawStream(ctx, resp.Body, onText)
}
