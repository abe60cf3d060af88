// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package part

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// BUILT-IN TOOLS
// =============================================================================

// DefaultTools returns the registry of tools the Relay backend ships with.
// Names absent from this set still work: they assemble as DynamicToolPart
// records and render generically.
func DefaultTools() *ToolRegistry {
	r := NewToolRegistry()
	r.Register("web_search", renderWebSearch)
	r.Register("fetch_url", renderFetchURL)
	// run_code output carries a {"code","language"} payload; the generic
	// preview already syntax-highlights it, so no custom renderer.
	r.Register("run_code", nil)
	return r
}

// renderWebSearch summarizes a search invocation by its query.
func renderWebSearch(t *ToolPart) string {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(t.Input, &in); err == nil && in.Query != "" {
		return fmt.Sprintf("web_search %q", in.Query)
	}
	return "web_search"
}

// renderFetchURL summarizes a fetch invocation by its target URL.
func renderFetchURL(t *ToolPart) string {
	var in struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(t.Input, &in); err == nil && in.URL != "" {
		return "fetch_url " + in.URL
	}
	return "fetch_url"
}
