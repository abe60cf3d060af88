// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convo

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CONVERSATION
// =============================================================================

// Conversation is one chat thread known to the client.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// MessageIDs is the ordered list of message ids seen locally.
	MessageIDs []string `json:"message_ids,omitempty"`
}

// NewConversationID creates a fresh local conversation id. The backend may
// later replace it via Registry.AdoptServerID when it assigns its own.
func NewConversationID() string {
	return "conv_" + uuid.NewString()
}

// NewMessageID creates a fresh message id.
func NewMessageID() string {
	return "msg_" + uuid.NewString()
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry tracks known conversations and the active conversation pointer.
//
// Selection changes write the active pointer before returning, so callers
// that resolve-then-send in one call path never read a stale id. The UI
// may observe the same changes asynchronously through its own update loop.
type Registry struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
	order         []string // creation order
	active        string
}

// NewRegistry creates an empty registry with no active conversation.
func NewRegistry() *Registry {
	return &Registry{conversations: make(map[string]*Conversation)}
}

// Create adds a conversation and makes it active. The pointer update is
// synchronous with the creation.
func (r *Registry) Create(title string) Conversation {
	now := time.Now()
	c := &Conversation{
		ID:        NewConversationID(),
		Title:     strings.TrimSpace(title),
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.conversations[c.ID] = c
	r.order = append(r.order, c.ID)
	r.active = c.ID
	r.mu.Unlock()

	return *c
}

// Select makes an existing conversation active. Unknown ids are ignored
// and the previous selection stands.
func (r *Registry) Select(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[id]; !ok {
		return false
	}
	r.active = id
	return true
}

// Delete removes a conversation. Deleting the active conversation clears
// the pointer (selection-to-nil happens in the same critical section).
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[id]; !ok {
		return
	}
	delete(r.conversations, id)
	for i, cid := range r.order {
		if cid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.active == id {
		r.active = ""
	}
}

// ActiveID returns the current active conversation id, or "".
func (r *Registry) ActiveID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Resolve returns the active conversation id, creating a conversation
// first when none is selected. The returned id is the one a send must
// carry: resolve-then-call keeps the pointer and the outgoing request in
// lockstep.
func (r *Registry) Resolve() string {
	r.mu.Lock()
	if r.active != "" {
		id := r.active
		r.mu.Unlock()
		return id
	}
	r.mu.Unlock()

	return r.Create("").ID
}

// AdoptServerID renames a locally created conversation to the id the
// backend assigned on first send. The active pointer follows if it was
// pointing at the local id.
func (r *Registry) AdoptServerID(localID, serverID string) {
	if localID == "" || serverID == "" || localID == serverID {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[localID]
	if !ok {
		return
	}
	delete(r.conversations, localID)
	c.ID = serverID
	r.conversations[serverID] = c
	for i, id := range r.order {
		if id == localID {
			r.order[i] = serverID
			break
		}
	}
	if r.active == localID {
		r.active = serverID
	}
}

// =============================================================================
// BOOKKEEPING
// =============================================================================

// Touch records activity on a conversation and appends a message id.
func (r *Registry) Touch(convID, messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[convID]
	if !ok {
		return
	}
	c.UpdatedAt = time.Now()
	if messageID != "" {
		for _, id := range c.MessageIDs {
			if id == messageID {
				return
			}
		}
		c.MessageIDs = append(c.MessageIDs, messageID)
	}
}

// Get returns a copy of one conversation.
func (r *Registry) Get(id string) (Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return Conversation{}, false
	}
	return *c, true
}

// List returns copies of all conversations, most recently updated first.
func (r *Registry) List() []Conversation {
	r.mu.Lock()
	out := make([]Conversation, 0, len(r.order))
	for _, id := range r.order {
		if c, ok := r.conversations[id]; ok {
			out = append(out, *c)
		}
	}
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Replace swaps the known set for a server-provided list (titles and
// ordering may have changed server-side after a send). The active pointer
// is preserved when its conversation still exists, cleared otherwise.
func (r *Registry) Replace(list []Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	known := make(map[string]*Conversation, len(list))
	order := make([]string, 0, len(list))
	for i := range list {
		c := list[i]
		if prev, ok := r.conversations[c.ID]; ok && len(c.MessageIDs) == 0 {
			c.MessageIDs = prev.MessageIDs
		}
		known[c.ID] = &c
		order = append(order, c.ID)
	}

	r.conversations = known
	r.order = order
	if _, ok := known[r.active]; !ok {
		r.active = ""
	}
}
