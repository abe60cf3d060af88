// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package part

import "sync"

// =============================================================================
// TOOL REGISTRY
// =============================================================================

// ToolRenderer formats a tool invocation for display.
type ToolRenderer func(t *ToolPart) string

// ToolRegistry maps known tool names to renderers. It is populated once at
// startup; tool names absent from the registry fall through to the
// DynamicToolPart variant during assembly, so new backend tools work
// without per-tool branches.
type ToolRegistry struct {
	mu        sync.RWMutex
	renderers map[string]ToolRenderer
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{renderers: make(map[string]ToolRenderer)}
}

// Register adds a known tool. A nil renderer marks the name as known
// without customizing its display.
func (r *ToolRegistry) Register(name string, render ToolRenderer) {
	if r == nil || name == "" {
		return
	}
	r.mu.Lock()
	if r.renderers == nil {
		r.renderers = make(map[string]ToolRenderer)
	}
	r.renderers[name] = render
	r.mu.Unlock()
}

// Known reports whether the tool name has a static registration.
func (r *ToolRegistry) Known(name string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	_, ok := r.renderers[name]
	r.mu.RUnlock()
	return ok
}

// Renderer returns the renderer for a tool name, or nil.
func (r *ToolRegistry) Renderer(name string) ToolRenderer {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	fn := r.renderers[name]
	r.mu.RUnlock()
	return fn
}

// Names returns the registered tool names in unspecified order.
func (r *ToolRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	return names
}
