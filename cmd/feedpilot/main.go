package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"feedpilot/internal/api"
	"feedpilot/internal/config"
	"feedpilot/internal/journal"
	"feedpilot/internal/secrets"
	"feedpilot/internal/session"
	"feedpilot/internal/tui"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// prefill the start form from stored credentials when config has none
	if cfg.Session.ClientID == "" || cfg.Session.ClientSecret == "" {
		if creds, err := secrets.Fetch(); err == nil {
			if cfg.Session.ClientID == "" {
				cfg.Session.ClientID = creds.ClientID
			}
			if cfg.Session.ClientSecret == "" {
				cfg.Session.ClientSecret = creds.ClientSecret
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
		log.Fatalf("mkdir journal dir: %v", err)
	}

	if err := journal.RunMigrations(cfg.Journal.Path, cfg.Journal.MigrationsPath); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	defer db.Close()

	entries := journal.NewEntryRepo(db)
	client := api.New(cfg.API.BaseURL, cfg.API.Timeout)
	model := session.NewModel()

	coordinator := &session.Coordinator{Client: client, Model: model, Journal: entries}
	arbiter := &session.Arbiter{Client: client, Model: model, Journal: entries}

	p := tea.NewProgram(tui.New(ctx, cfg, model, coordinator, arbiter, entries), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}
