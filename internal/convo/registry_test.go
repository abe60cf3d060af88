// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convo

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// ACTIVE POINTER
// =============================================================================

// Resolve with no selection creates a conversation and returns its id
// before the caller dispatches the request, so the outgoing send never
// carries an empty conversation id.
func TestResolveCreatesConversation(t *testing.T) {
	r := NewRegistry()

	id := r.Resolve()
	if id == "" {
		t.Fatal("Resolve returned empty id")
	}
	if !strings.HasPrefix(id, "conv_") {
		t.Errorf("id = %q, want conv_ prefix", id)
	}
	if got := r.ActiveID(); got != id {
		t.Errorf("ActiveID = %q, want %q", got, id)
	}
	// A second resolve reuses the selection.
	if again := r.Resolve(); again != id {
		t.Errorf("second Resolve = %q, want %q", again, id)
	}
}

func TestCreateUpdatesPointerSynchronously(t *testing.T) {
	r := NewRegistry()
	first := r.Create("one")

	if got := r.ActiveID(); got != first.ID {
		t.Errorf("ActiveID = %q, want %q", got, first.ID)
	}

	second := r.Create("two")
	if got := r.ActiveID(); got != second.ID {
		t.Errorf("ActiveID after second create = %q, want %q", got, second.ID)
	}
}

func TestSelectUnknownIDKeepsSelection(t *testing.T) {
	r := NewRegistry()
	c := r.Create("one")

	if r.Select("conv_missing") {
		t.Error("Select(unknown) = true")
	}
	if got := r.ActiveID(); got != c.ID {
		t.Errorf("ActiveID = %q, want %q", got, c.ID)
	}
}

func TestDeleteActiveClearsPointer(t *testing.T) {
	r := NewRegistry()
	c := r.Create("one")

	r.Delete(c.ID)
	if got := r.ActiveID(); got != "" {
		t.Errorf("ActiveID after delete = %q, want empty", got)
	}
	if _, ok := r.Get(c.ID); ok {
		t.Error("deleted conversation still present")
	}
}

// =============================================================================
// SERVER ID ADOPTION
// =============================================================================

func TestAdoptServerID(t *testing.T) {
	r := NewRegistry()
	local := r.Create("")

	r.AdoptServerID(local.ID, "conv_server_1")

	if got := r.ActiveID(); got != "conv_server_1" {
		t.Errorf("ActiveID = %q, want adopted id", got)
	}
	if _, ok := r.Get(local.ID); ok {
		t.Error("local id still resolvable after adoption")
	}
	if _, ok := r.Get("conv_server_1"); !ok {
		t.Error("server id not resolvable after adoption")
	}
}

// =============================================================================
// LISTING AND REFRESH
// =============================================================================

func TestListOrdersByRecency(t *testing.T) {
	r := NewRegistry()
	a := r.Create("a")
	b := r.Create("b")

	// Touching a makes it the most recent.
	time.Sleep(time.Millisecond)
	r.Touch(a.ID, "msg_1")

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != a.ID || list[1].ID != b.ID {
		t.Errorf("order = [%s %s], want [%s %s]", list[0].ID, list[1].ID, a.ID, b.ID)
	}
}

func TestTouchAppendsMessageIDOnce(t *testing.T) {
	r := NewRegistry()
	c := r.Create("a")

	r.Touch(c.ID, "msg_1")
	r.Touch(c.ID, "msg_1")
	r.Touch(c.ID, "msg_2")

	got, _ := r.Get(c.ID)
	if len(got.MessageIDs) != 2 {
		t.Errorf("MessageIDs = %v, want 2 unique ids", got.MessageIDs)
	}
}

func TestReplacePreservesActiveWhenPresent(t *testing.T) {
	r := NewRegistry()
	c := r.Create("local title")

	r.Replace([]Conversation{
		{ID: c.ID, Title: "server title"},
		{ID: "conv_other", Title: "another"},
	})

	if got := r.ActiveID(); got != c.ID {
		t.Errorf("ActiveID = %q, want %q", got, c.ID)
	}
	got, _ := r.Get(c.ID)
	if got.Title != "server title" {
		t.Errorf("Title = %q, want server copy", got.Title)
	}
}

func TestReplaceClearsDanglingActive(t *testing.T) {
	r := NewRegistry()
	r.Create("gone soon")

	r.Replace([]Conversation{{ID: "conv_other"}})

	if got := r.ActiveID(); got != "" {
		t.Errorf("ActiveID = %q, want empty", got)
	}
}
