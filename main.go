// relay-tui - A terminal interface for the Relay conversational AI API.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/relay-tui/internal/cache"
	"github.com/jeranaias/relay-tui/internal/cli"
	"github.com/jeranaias/relay-tui/internal/cloud"
	"github.com/jeranaias/relay-tui/internal/config"
	"github.com/jeranaias/relay-tui/internal/convo"
	"github.com/jeranaias/relay-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	args := cli.NewArgParser(os.Args[1:])

	switch args.Subcommand() {
	case "":
		runTUI()

	case "chat":
		err := cli.HandleChatCommand(cli.Options{
			RawMode: args.BoolFlag("raw"),
			Quiet:   args.BoolFlag("quiet"),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "config":
		if err := handleConfig(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "version":
		fmt.Printf("relay-tui %s (%s, built %s)\n", Version, GitCommit, BuildDate)

	case "help", "--help", "-h":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args.Subcommand())
		printUsage()
		os.Exit(1)
	}
}

// runTUI starts the full-screen chat surface.
func runTUI() {
	if err := cli.RequiresTTY("the chat UI"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Hint: use 'relay-tui chat' for line mode")
		os.Exit(1)
	}

	cfg := config.Global()

	client := cloud.NewClient(cloud.StaticToken(cfg.API.Token)).
		WithBaseURL(cfg.API.BaseURL).
		WithMaxRetries(cfg.API.MaxRetries)

	if !client.IsConfigured() {
		fmt.Fprintln(os.Stderr, "No API token configured.")
		fmt.Fprintln(os.Stderr, "Set api.token in ~/.relay/config.toml or export RELAY_TOKEN.")
		os.Exit(1)
	}

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

	// Background errors go to a log file; the alternate screen owns stdout.
	if dir, err := config.ConfigDir(); err == nil {
		if f, err := tea.LogToFile(filepath.Join(dir, "relay.log"), "relay"); err == nil {
			defer f.Close()
		}
	}

	// Hot-reload config edits while the UI runs. Reload failures keep the
	// previous config.
	if watcher, err := config.NewWatcher(nil); err == nil {
		if err := watcher.Watch(); err == nil {
			defer watcher.Close()
		}
	}

	model := chat.New(cfg, client, convo.NewRegistry(), store)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// handleConfig implements `relay-tui config [get KEY | set KEY VALUE | list | path]`.
func handleConfig(args *cli.ArgParser) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch args.Positional(1) {
	case "get":
		key := args.Positional(2)
		if key == "" {
			return fmt.Errorf("usage: relay-tui config get KEY")
		}
		val, err := cfg.Get(key)
		if err != nil {
			return err
		}
		fmt.Println(val)
		return nil

	case "set":
		key, value := args.Positional(2), args.Positional(3)
		if key == "" || value == "" {
			return fmt.Errorf("usage: relay-tui config set KEY VALUE")
		}
		if err := cfg.Set(key, value); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return config.Save(cfg)

	case "list", "":
		for _, key := range config.GetAllKeys() {
			val, err := cfg.Get(key)
			if err != nil {
				continue
			}
			if strings.Contains(key, "token") {
				val = "[REDACTED]"
			}
			fmt.Printf("%-20s = %v\n", key, val)
		}
		return nil

	case "path":
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil

	default:
		return fmt.Errorf("unknown config subcommand: %s", args.Positional(1))
	}
}

func printUsage() {
	fmt.Println(`relay-tui - chat with the Relay API from your terminal

Usage:
  relay-tui              Start the full-screen chat UI
  relay-tui chat         Interactive chat in line mode
  relay-tui chat --raw   Line mode on the legacy text endpoint
  relay-tui config       Show or change configuration
  relay-tui version      Print version information

Configuration lives at ~/.relay/config.toml. Environment overrides:
  RELAY_TOKEN            API token
  RELAY_API_URL          Backend base URL
  RELAY_RAW_MODE         Default chat to the legacy endpoint
  RELAY_NO_CACHE         Disable the output cache
  RELAY_THEME            UI theme (dark, light, auto)`)
}
