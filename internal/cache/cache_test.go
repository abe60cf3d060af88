// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/relay-tui/internal/part"
	"github.com/jeranaias/relay-tui/internal/util"
)

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestRoundTripRestrictsToCacheable(t *testing.T) {
	s := NewStore(t.TempDir())

	parts := []part.Part{
		&part.TextPart{Content: "Hi there"},
		&part.ToolPart{CallID: "t1", Name: "get_weather", State: part.StateInputStreaming},
		&part.ToolPart{
			CallID: "t2", Name: "get_weather",
			State:  part.StateOutputAvailable,
			Output: json.RawMessage(`{"temp":72}`),
		},
		&part.DataPart{Kind: "chart", Payload: json.RawMessage(`{}`)},
	}

	s.Put("m1", parts)

	got, ok := s.Get("m1")
	require.True(t, ok)
	require.Len(t, got, 3, "mid-flight tool must be filtered out")

	assert.Equal(t, "Hi there", got[0].(*part.TextPart).Content)
	tool := got[1].(*part.ToolPart)
	assert.Equal(t, part.StateOutputAvailable, tool.State)
	assert.JSONEq(t, `{"temp":72}`, string(tool.Output))
	assert.Equal(t, "chart", got[2].(*part.DataPart).Kind)
}

func TestGetMissingEntry(t *testing.T) {
	s := NewStore(t.TempDir())

	_, ok := s.Get("nope")
	assert.False(t, ok)
}

func TestPutNothingCacheableCreatesNoEntry(t *testing.T) {
	s := NewStore(t.TempDir())

	s.Put("m1", []part.Part{
		&part.ToolPart{CallID: "t1", Name: "x", State: part.StateInputStreaming},
	})

	_, ok := s.Get("m1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

// =============================================================================
// DURABILITY
// =============================================================================

func TestEntriesSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	s := NewStore(dir)
	s.Put("m1", []part.Part{&part.TextPart{Content: "persisted"}})

	reopened := NewStore(dir)
	got, ok := reopened.Get("m1")
	require.True(t, ok)
	assert.Equal(t, "persisted", got[0].(*part.TextPart).Content)
}

func TestCorruptRecordStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, util.AtomicWriteFile(filepath.Join(dir, "output_cache.json"), []byte("{not json"), 0644))

	s := NewStore(dir)
	assert.Equal(t, 0, s.Len())

	// The store stays usable after discarding the corrupt record.
	s.Put("m1", []part.Part{&part.TextPart{Content: "fresh"}})
	_, ok := s.Get("m1")
	assert.True(t, ok)
}

// Caching is best-effort: an unwritable directory must not panic or block.
func TestUnwritableDirIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "ro")
	require.NoError(t, os.MkdirAll(sub, 0555))
	t.Cleanup(func() { _ = os.Chmod(sub, 0755) })

	s := NewStore(sub)
	s.Put("m1", []part.Part{&part.TextPart{Content: "x"}})

	// The in-memory entry is still served even though the flush failed.
	_, ok := s.Get("m1")
	assert.True(t, ok)
}

// =============================================================================
// EVICTION
// =============================================================================

func TestFIFOEviction(t *testing.T) {
	s := NewStoreWithLimit(t.TempDir(), 200)

	for i := 0; i < 200; i++ {
		s.Put(msgID(i), []part.Part{&part.TextPart{Content: "x"}})
	}
	require.Equal(t, 200, s.Len())

	// The 201st insert evicts exactly the oldest entry.
	s.Put(msgID(200), []part.Part{&part.TextPart{Content: "new"}})

	assert.Equal(t, 200, s.Len())
	_, ok := s.Get(msgID(0))
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = s.Get(msgID(1))
	assert.True(t, ok, "second-oldest entry should survive")
	_, ok = s.Get(msgID(200))
	assert.True(t, ok, "newest entry should be present")
}

func TestOverwriteDoesNotGrowOrder(t *testing.T) {
	s := NewStoreWithLimit(t.TempDir(), 3)

	s.Put("m1", []part.Part{&part.TextPart{Content: "a"}})
	s.Put("m1", []part.Part{&part.TextPart{Content: "b"}})

	assert.Equal(t, 1, s.Len())
	got, _ := s.Get("m1")
	assert.Equal(t, "b", got[0].(*part.TextPart).Content)
}

func msgID(i int) string {
	return "msg_" + util.IntToString(i)
}
