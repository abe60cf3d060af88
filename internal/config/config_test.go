// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.API.BaseURL != "https://api.relay.sh" {
		t.Errorf("base_url = %q", cfg.API.BaseURL)
	}
	if cfg.Cache.MaxEntries != 200 {
		t.Errorf("max_entries = %d, want 200", cfg.Cache.MaxEntries)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache should be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.API.Token = "relay-secret"
	cfg.UI.Theme = "light"
	cfg.Chat.RawMode = true

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML error: %v", err)
	}

	// Saved files must be private: they carry the API token.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat error: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file mode = %o, want 0600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath error: %v", err)
	}
	if loaded.API.Token != "relay-secret" {
		t.Errorf("token = %q", loaded.API.Token)
	}
	if loaded.UI.Theme != "light" {
		t.Errorf("theme = %q", loaded.UI.Theme)
	}
	if !loaded.Chat.RawMode {
		t.Error("raw_mode not round-tripped")
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	partial := "[api]\ntoken = \"relay-partial\"\n"
	if err := os.WriteFile(path, []byte(partial), 0600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath error: %v", err)
	}
	if cfg.API.Token != "relay-partial" {
		t.Errorf("token = %q", cfg.API.Token)
	}
	if cfg.API.BaseURL != "https://api.relay.sh" {
		t.Errorf("base_url should fall back to default, got %q", cfg.API.BaseURL)
	}
	if cfg.Cache.MaxEntries != 200 {
		t.Errorf("max_entries should fall back to default, got %d", cfg.Cache.MaxEntries)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.API.BaseURL = "not a url"
	cfg.API.MaxRetries = 99
	cfg.UI.Theme = "neon"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	errs, ok := err.(ValidateErrors)
	if !ok {
		t.Fatalf("expected ValidateErrors, got %T", err)
	}
	if len(errs) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(errs), errs)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("RELAY_API_URL", "https://staging.relay.sh")
	t.Setenv("RELAY_TOKEN", "relay-env-token")
	t.Setenv("RELAY_NO_CACHE", "1")
	t.Setenv("RELAY_RAW_MODE", "true")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.API.BaseURL != "https://staging.relay.sh" {
		t.Errorf("base_url = %q", cfg.API.BaseURL)
	}
	if cfg.API.Token != "relay-env-token" {
		t.Errorf("token = %q", cfg.API.Token)
	}
	if cfg.Cache.Enabled {
		t.Error("RELAY_NO_CACHE should disable the cache")
	}
	if !cfg.Chat.RawMode {
		t.Error("RELAY_RAW_MODE should enable raw mode")
	}
}

func TestGetSetDotNotation(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("ui.theme", "light"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, err := cfg.Get("ui.theme")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "light" {
		t.Errorf("theme = %v", got)
	}

	// String values are converted for numeric fields.
	if err := cfg.Set("cache.max_entries", "50"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if cfg.Cache.MaxEntries != 50 {
		t.Errorf("max_entries = %d, want 50", cfg.Cache.MaxEntries)
	}

	if _, err := cfg.Get("nope.nothing"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestGetAllKeysResolvable(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("key %q does not resolve: %v", key, err)
		}
	}
}

func TestStringRedactsToken(t *testing.T) {
	cfg := Default()
	cfg.API.Token = "relay-super-secret"

	s := cfg.String()
	if strings.Contains(s, "relay-super-secret") {
		t.Error("String() leaked the API token")
	}
	if !strings.Contains(s, "[REDACTED]") {
		t.Error("String() should mark the token as redacted")
	}
	// Redaction must not touch the original.
	if cfg.API.Token != "relay-super-secret" {
		t.Error("String() mutated the config")
	}
}

// TestConfig_ConcurrentAccess tests that Global(), SetGlobal(), and
// ReloadGlobal() can be safely called concurrently.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()

		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
